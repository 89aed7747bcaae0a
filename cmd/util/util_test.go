package util

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/ValentinKolb/dDetect/lib/catalog"
)

func TestWrapString(t *testing.T) {
	wrapped := WrapString(strings.Repeat("word ", 30))
	for _, line := range strings.Split(wrapped, "\n") {
		if len(line) > Wrap {
			t.Errorf("Expected lines of at most %d characters, got %d", Wrap, len(line))
		}
	}
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err      error
		expected int
	}{
		{nil, ExitOK},
		{fmt.Errorf("load: %w", catalog.ErrCorruptCatalog), ExitCorruptCatalog},
		{fmt.Errorf("load: %w", catalog.ErrUnsupportedFormat), ExitUnsupportedFormat},
		{fmt.Errorf("load: %w", catalog.ErrIO), ExitIO},
		{fmt.Errorf("open: %w", os.ErrNotExist), ExitIO},
		{fmt.Errorf("find: %w", catalog.ErrUnknownProperty), ExitUnknownProperty},
		{fmt.Errorf("find: %w", catalog.ErrUnknownValue), ExitUnknownProperty},
		{errors.New("other"), ExitError},
	}
	for _, tc := range cases {
		if got := ExitCode(tc.err); got != tc.expected {
			t.Errorf("ExitCode(%v): expected %d, got %d", tc.err, tc.expected, got)
		}
	}
}
