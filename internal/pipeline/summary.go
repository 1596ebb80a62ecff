package pipeline

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Summary writes one line per leg and one indented line per step.
func Summary(w io.Writer, results []Result) {
	fmt.Fprintln(w, "Matrix Summary")
	fmt.Fprintln(w, "--------------")
	for _, res := range results {
		fmt.Fprintf(w, "%s %-12s %s\n", icon(res.Err == nil), res.Variant, res.Duration.Round(time.Millisecond))
		for _, s := range res.Steps {
			line := fmt.Sprintf("    %-14s %-8s", s.Step, s.Status)
			switch {
			case s.Err != nil:
				line += " " + firstLine(s.Err.Error())
			case s.Reason != "":
				line += " (" + s.Reason + ")"
			}
			fmt.Fprintln(w, strings.TrimRight(line, " "))
		}
	}
	failed := len(Failed(results))
	fmt.Fprintf(w, "\n%d passed, %d failed\n", len(results)-failed, failed)
}

func icon(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
