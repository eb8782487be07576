package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// WriteText renders the report grouped by file, followed by the JSON
// summary on its own line.
func WriteText(w io.Writer, r *Report) error {
	for _, g := range r.ByFile() {
		name := g.File
		if name == "" {
			name = "(corpus)"
		}
		if _, err := fmt.Fprintln(w, name); err != nil {
			return err
		}
		for _, is := range g.Issues {
			if _, err := fmt.Fprintln(w, "  "+formatIssue(is)); err != nil {
				return err
			}
		}
		for _, d := range g.Diagnostics {
			loc := ""
			if d.Line > 0 {
				loc = fmt.Sprintf(":%d", d.Line)
			}
			if _, err := fmt.Fprintf(w, "  diagnostic%s [%s] %s\n", loc, d.Code, d.Message); err != nil {
				return err
			}
		}
	}
	summary, err := json.Marshal(r.Summary())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", summary)
	return err
}

func formatIssue(is Issue) string {
	var b strings.Builder
	b.WriteString(string(is.Severity))
	if is.Line > 0 {
		fmt.Fprintf(&b, ":%d", is.Line)
	}
	fmt.Fprintf(&b, " [%s] %s", is.Kind, is.Message)
	if len(is.Cycle) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(is.Cycle, " -> "))
	}
	if is.Suggestion != "" {
		fmt.Fprintf(&b, "; suggestion: %s", is.Suggestion)
	}
	return b.String()
}
