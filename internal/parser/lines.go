package parser

import (
	"regexp"
	"strings"
)

var (
	headingRe = regexp.MustCompile(`^(#{1,6})\s+(.*?)\s*#*\s*$`)
	ruleRe    = regexp.MustCompile(`^\s*([-*_])(\s*([-*_])){2,}\s*$`)
)

type heading struct {
	level int
	title string
}

func parseHeading(line string) (heading, bool) {
	m := headingRe.FindStringSubmatch(line)
	if m == nil {
		return heading{}, false
	}
	return heading{level: len(m[1]), title: m[2]}, true
}

func isRule(line string) bool {
	return ruleRe.MatchString(line)
}

// fenceTracker follows ``` and ~~~ code fences. A fence is closed only by
// a line using the same marker character at least as long as the opener;
// an unclosed fence extends to end of file.
type fenceTracker struct {
	marker byte
	width  int
}

func fenceMarker(line string) (byte, int) {
	t := strings.TrimLeft(line, " ")
	if len(line)-len(t) > 3 || len(t) < 3 {
		return 0, 0
	}
	c := t[0]
	if c != '`' && c != '~' {
		return 0, 0
	}
	n := 0
	for n < len(t) && t[n] == c {
		n++
	}
	if n < 3 {
		return 0, 0
	}
	return c, n
}

// step consumes one line and reports whether that line belongs to a fence
// (including the opening and closing marker lines).
func (f *fenceTracker) step(line string) bool {
	c, n := fenceMarker(line)
	if f.marker == 0 {
		if c != 0 {
			f.marker, f.width = c, n
			return true
		}
		return false
	}
	if c == f.marker && n >= f.width && strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), string(c))) == "" {
		f.marker, f.width = 0, 0
	}
	return true
}

func splitLines(text string) []string {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}
