package main

import "github.com/ValentinKolb/dDetect/cmd"

func main() {
	cmd.Execute()
}
