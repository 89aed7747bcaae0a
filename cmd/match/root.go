package match

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ValentinKolb/dDetect/cmd/util"
	"github.com/ValentinKolb/dDetect/lib/match"
	"github.com/ValentinKolb/dDetect/rpc/client"
	"github.com/ValentinKolb/dDetect/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	matcher client.IMatcher

	// MatchCmd matches targets against a catalog
	MatchCmd = &cobra.Command{
		Use:   "match [target...]",
		Short: "Match user agents, request headers or device ids",
		Long: `Match user agents against a catalog. Without arguments targets are read from
stdin, one per line. The catalog is loaded in process (--catalog) or queried on
a server (--transport-endpoints).`,
		PersistentPreRunE: setupMatcher,
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if matcher != nil {
				return matcher.Close()
			}
			return nil
		},
		RunE: run,
	}
)

func init() {
	util.SetupCatalogFlags(MatchCmd)
	util.SetupMatchFlags(MatchCmd)
	util.SetupRPCClientFlags(MatchCmd)

	key := "stage"
	MatchCmd.Flags().String(key, "", util.WrapString("Run a single stage instead of the cascade (device-id, exact, edit-distance, segment, version, ris)"))

	key = "header"
	MatchCmd.Flags().StringArrayP(key, "H", nil, util.WrapString("Match request headers instead of targets. Format: NAME: VALUE, repeatable"))

	key = "device-id"
	MatchCmd.Flags().Bool(key, false, util.WrapString("Treat the targets as device ids"))

	key = "json"
	MatchCmd.Flags().Bool(key, false, util.WrapString("Print the results as JSON"))
}

// setupMatcher creates the in process or remote matcher
func setupMatcher(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	var err error
	matcher, err = util.GetMatcher()
	return err
}

func run(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	// header match
	if headers, _ := cmd.Flags().GetStringArray("header"); len(headers) > 0 {
		parsed, err := ParseHeaders(headers)
		if err != nil {
			return err
		}
		res, err := matcher.MatchHeaders(parsed)
		if err != nil {
			return err
		}
		return printResult(out, res)
	}

	stage, err := match.ParseStage(viper.GetString("stage"))
	if err != nil {
		return err
	}
	if viper.GetBool("device-id") {
		stage = match.StageDeviceID
	}

	matchOne := func(target string) error {
		var res *common.MatchResult
		if stage == match.StageDeviceID {
			res, err = matcher.MatchDeviceID(target)
		} else {
			res, err = matcher.MatchStage(target, stage)
		}
		if err != nil {
			return err
		}
		return printResult(out, res)
	}

	if len(args) > 0 {
		for _, target := range args {
			if err := matchOne(target); err != nil {
				return err
			}
		}
		return nil
	}

	// targets from stdin
	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if target := strings.TrimSpace(scanner.Text()); target != "" {
			if err := matchOne(target); err != nil {
				return err
			}
		}
	}
	return scanner.Err()
}

// ParseHeaders parses headers in the format "Name: Value" (or "Name=Value")
func ParseHeaders(headers []string) (map[string]string, error) {
	parsed := make(map[string]string, len(headers))
	for _, h := range headers {
		i := strings.IndexAny(h, ":=")
		if i <= 0 {
			return nil, fmt.Errorf("invalid header %q (expected NAME: VALUE)", h)
		}
		parsed[strings.TrimSpace(h[:i])] = strings.TrimSpace(h[i+1:])
	}
	return parsed, nil
}

func printResult(w io.Writer, res *common.MatchResult) error {
	if viper.GetBool("json") {
		return util.PrintJSON(w, res)
	}
	return WriteResult(w, res)
}

// WriteResult renders a result as text
func WriteResult(w io.Writer, res *common.MatchResult) error {
	var sb strings.Builder

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	sb.WriteString(fmt.Sprintf("%s\n", res.Target))
	addField("Method", res.Method.String())
	addField("Stage", res.Stage.String())
	addField("Difference", fmt.Sprint(res.Difference))
	addField("Signatures Compared", fmt.Sprint(res.SignaturesCompared))
	if res.DeviceID != "" {
		addField("Device ID", res.DeviceID)
	}
	if res.SignatureIndex >= 0 {
		addField("Signature", fmt.Sprintf("#%d %s", res.SignatureIndex, res.Signature))
	}

	headers := make([]string, 0, len(res.Targets))
	for name := range res.Targets {
		headers = append(headers, name)
	}
	sort.Strings(headers)
	for _, name := range headers {
		addField("Header "+name, res.Targets[name])
	}

	names := make([]string, 0, len(res.Properties))
	for name := range res.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		addField(name, strings.Join(res.Properties[name], ", "))
	}

	_, err := fmt.Fprintln(w, sb.String())
	return err
}

