package parser

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/starford/archgraph/internal/models"
)

// DefaultLookahead is the number of lines after a component heading in
// which a **File** or **Location** field is accepted.
const DefaultLookahead = 6

var componentSections = []string{"architecture", "components", "implementation"}

var (
	numberedRe  = regexp.MustCompile(`^\s*\d+[.)]\s+(.+)$`)
	backtickRe  = regexp.MustCompile("`([^`]+)`")
	methodRe    = regexp.MustCompile("^\\s*[-*+]\\s+`?[A-Za-z_][A-Za-z0-9_.]*\\(")
	pathShapeRe = regexp.MustCompile(`^[A-Za-z0-9_.@~\-/]+$`)
	bulletRe    = regexp.MustCompile(`^[-*+]\s+`)
)

// Extraction is the result of one matcher attempt. Standalone extractions
// carry their own name and emit a component immediately; field extractions
// supply the path of the component heading currently open.
type Extraction struct {
	Name       string
	Path       string
	Standalone bool
	Empty      bool
}

// ComponentMatcher attempts to extract a component from a single line.
type ComponentMatcher interface {
	Extract(line string) (Extraction, bool)
}

// DefaultMatchers is the ordered matcher list; the first match wins.
func DefaultMatchers() []ComponentMatcher {
	return []ComponentMatcher{
		numberedItemMatcher{},
		fieldMatcher{label: "File"},
		fieldMatcher{label: "Location"},
	}
}

// numberedItemMatcher recognizes "1. **Name** - `path/to/file.go`".
type numberedItemMatcher struct{}

func (numberedItemMatcher) Extract(line string) (Extraction, bool) {
	m := numberedRe.FindStringSubmatch(line)
	if m == nil {
		return Extraction{}, false
	}
	item := m[1]
	loc := backtickRe.FindStringSubmatchIndex(item)
	for loc != nil {
		candidate := strings.TrimSpace(item[loc[2]:loc[3]])
		if looksLikePath(candidate) {
			name := cleanName(item[:loc[0]])
			if name == "" {
				name = path.Base(candidate)
			}
			return Extraction{Name: name, Path: normalizePath(candidate), Standalone: true}, true
		}
		next := backtickRe.FindStringSubmatchIndex(item[loc[1]:])
		if next == nil {
			break
		}
		for i := range next {
			next[i] += loc[1]
		}
		loc = next
	}
	return Extraction{}, false
}

// fieldMatcher recognizes "**File**: `path`" style fields.
type fieldMatcher struct {
	label string
}

func (f fieldMatcher) Extract(line string) (Extraction, bool) {
	t := bulletRe.ReplaceAllString(strings.TrimSpace(line), "")
	prefixes := []string{
		"**" + f.label + "**:",
		"**" + f.label + ":**",
	}
	for _, p := range prefixes {
		if !strings.HasPrefix(t, p) {
			continue
		}
		v := strings.TrimSpace(t[len(p):])
		if m := backtickRe.FindStringSubmatch(v); m != nil {
			v = m[1]
		} else if fields := strings.Fields(v); len(fields) > 0 {
			v = fields[0]
		}
		v = strings.TrimSpace(v)
		if v == "" {
			return Extraction{Empty: true}, true
		}
		return Extraction{Path: normalizePath(v)}, true
	}
	return Extraction{}, false
}

func looksLikePath(s string) bool {
	if s == "" || !pathShapeRe.MatchString(s) {
		return false
	}
	return strings.Contains(s, "/") || path.Ext(s) != ""
}

func normalizePath(p string) string {
	p = strings.TrimPrefix(strings.TrimSpace(p), "./")
	return path.Clean(p)
}

func cleanName(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, "-:–— \t")
	return strings.TrimSpace(s)
}

type scanState int

const (
	stateOutside scanState = iota
	stateInSection
	stateInComponent
)

type pendingComponent struct {
	name       string
	line       int
	path       string
	sawMethods bool
}

// componentScanner is the state machine over {Outside, InSection,
// InComponent}. Components are emitted when InComponent is left.
type componentScanner struct {
	matchers     []ComponentMatcher
	lookahead    int
	state        scanState
	sectionLevel int
	pending      pendingComponent

	components []models.Component
	diags      []models.Diagnostic
}

func newComponentScanner(matchers []ComponentMatcher, lookahead int) *componentScanner {
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	return &componentScanner{matchers: matchers, lookahead: lookahead}
}

func isComponentSection(h heading) bool {
	if h.level > 2 {
		return false
	}
	title := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(h.title, "*", "")))
	for _, s := range componentSections {
		if strings.HasPrefix(title, s) {
			return true
		}
	}
	return false
}

// step feeds one non-fenced line. lineNo is 1-based.
func (s *componentScanner) step(lineNo int, line string) {
	h, isHeading := parseHeading(line)

	switch s.state {
	case stateOutside:
		if isHeading && isComponentSection(h) {
			s.state = stateInSection
			s.sectionLevel = h.level
		}

	case stateInSection:
		if isHeading {
			s.onHeadingInSection(lineNo, h)
			return
		}
		if ext, ok := s.match(line); ok && ext.Standalone {
			s.emit(models.Component{Name: ext.Name, Path: ext.Path, Line: lineNo})
		}

	case stateInComponent:
		if isHeading && h.level > 3 {
			// Sub-headings stay inside the component.
			return
		}
		if isHeading {
			s.exitComponent()
			s.onHeadingInSection(lineNo, h)
			return
		}
		if methodRe.MatchString(line) {
			s.pending.sawMethods = true
			return
		}
		ext, ok := s.match(line)
		if !ok {
			return
		}
		switch {
		case ext.Standalone:
			s.emit(models.Component{Name: ext.Name, Path: ext.Path, Line: lineNo})
		case lineNo-s.pending.line > s.lookahead || s.pending.path != "":
			// Outside the lookahead window or already resolved.
		case ext.Empty:
			s.diags = append(s.diags, models.Diagnostic{
				Line:    lineNo,
				Code:    "empty_path",
				Message: fmt.Sprintf("component %q has an empty file field", s.pending.name),
			})
		default:
			s.pending.path = ext.Path
		}
	}
}

func (s *componentScanner) onHeadingInSection(lineNo int, h heading) {
	if h.level <= s.sectionLevel {
		s.state = stateOutside
		if isComponentSection(h) {
			s.state = stateInSection
			s.sectionLevel = h.level
		}
		return
	}
	if h.level == 3 {
		s.state = stateInComponent
		s.pending = pendingComponent{name: cleanName(strings.Trim(h.title, "`")), line: lineNo}
	}
}

func (s *componentScanner) match(line string) (Extraction, bool) {
	for _, m := range s.matchers {
		if ext, ok := m.Extract(line); ok {
			return ext, true
		}
	}
	return Extraction{}, false
}

func (s *componentScanner) emit(c models.Component) {
	s.components = append(s.components, c)
}

func (s *componentScanner) exitComponent() {
	p := s.pending
	s.pending = pendingComponent{}
	s.state = stateInSection
	switch {
	case p.path != "":
		s.emit(models.Component{Name: p.name, Path: p.path, Line: p.line})
	case p.sawMethods:
		s.diags = append(s.diags, models.Diagnostic{
			Line: p.line,
			Code: "missing_path",
			Message: fmt.Sprintf("component %q lists methods but has no **File** or **Location** field within %d lines",
				p.name, s.lookahead),
		})
	}
}

// finish closes any open state at end of file.
func (s *componentScanner) finish() {
	if s.state == stateInComponent {
		s.exitComponent()
	}
	s.state = stateOutside
}
