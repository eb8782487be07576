package parser

import (
	"regexp"
	"strings"
)

var (
	defTitleRe = regexp.MustCompile(`^\[\[([^\[\]|]+)\]\]$`)
	termRefRe  = regexp.MustCompile(`\[\[([^\[\]|]+?)(?:\|[^\[\]]*)?\]\]`)
	metaRe     = regexp.MustCompile(`(?i)^\s*[-*+]?\s*\*\*(type|scope|aliases|related|not to confuse|parent)(?::\*\*|\*\*\s*:?)\s*(.*)$`)
	mentionRe  = regexp.MustCompile("`(\\.?/?[A-Za-z0-9_@\\-][A-Za-z0-9_.@\\-/]*\\.[A-Za-z0-9]+)`")
)

// MaxDefinitionLevel is the deepest heading level treated as a term
// definition.
const MaxDefinitionLevel = 3

// TermDef is a term definition heading with its metadata block.
type TermDef struct {
	Name         string
	Line         int
	Level        int
	Type         string
	Scope        string
	Aliases      []string
	Related      []string
	NotToConfuse []string
	Parent       string
	Definition   string
}

// TermRef is one [[name]] occurrence outside headings and fences.
type TermRef struct {
	Name    string
	Line    int
	Context string
}

type termScan struct {
	defs     []TermDef
	refs     []TermRef
	mentions []string
}

// scanTerms walks body lines (starting at index start) collecting term
// definitions, references and backtick path mentions. fenced[i] marks lines
// inside code fences.
func scanTerms(lines []string, start int, fenced []bool) termScan {
	var out termScan
	seenMention := make(map[string]struct{})

	for i := start; i < len(lines); i++ {
		if fenced[i] {
			continue
		}
		line := lines[i]

		if h, ok := parseHeading(line); ok {
			if h.level <= MaxDefinitionLevel {
				if m := defTitleRe.FindStringSubmatch(strings.TrimSpace(h.title)); m != nil {
					def := TermDef{Name: strings.TrimSpace(m[1]), Line: i + 1, Level: h.level}
					readDefinitionBlock(&def, lines, i+1, fenced)
					out.defs = append(out.defs, def)
				}
			}
			continue
		}

		for _, m := range termRefRe.FindAllStringSubmatch(line, -1) {
			name := strings.TrimSpace(m[1])
			if name == "" {
				continue
			}
			out.refs = append(out.refs, TermRef{Name: name, Line: i + 1, Context: strings.TrimSpace(line)})
		}

		for _, m := range mentionRe.FindAllStringSubmatch(line, -1) {
			p := normalizePath(m[1])
			if _, dup := seenMention[p]; dup {
				continue
			}
			seenMention[p] = struct{}{}
			out.mentions = append(out.mentions, p)
		}
	}
	return out
}

// readDefinitionBlock parses the metadata lines following a definition
// heading and then the first non-metadata paragraph.
func readDefinitionBlock(def *TermDef, lines []string, from int, fenced []bool) {
	i := from
	for ; i < len(lines); i++ {
		if fenced[i] {
			return
		}
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := metaRe.FindStringSubmatch(line)
		if m == nil {
			break
		}
		applyMeta(def, strings.ToLower(m[1]), strings.TrimSpace(m[2]))
	}

	var para []string
	for ; i < len(lines); i++ {
		line := lines[i]
		if fenced[i] || strings.TrimSpace(line) == "" || isRule(line) {
			break
		}
		if _, ok := parseHeading(line); ok {
			break
		}
		para = append(para, strings.TrimSpace(line))
	}
	def.Definition = strings.Join(para, " ")
}

func applyMeta(def *TermDef, key, val string) {
	switch key {
	case "type":
		def.Type = plainValue(val)
	case "scope":
		def.Scope = strings.ToLower(plainValue(val))
	case "aliases":
		def.Aliases = append(def.Aliases, listValue(val)...)
	case "related":
		def.Related = append(def.Related, listValue(val)...)
	case "not to confuse":
		def.NotToConfuse = append(def.NotToConfuse, listValue(val)...)
	case "parent":
		if vs := listValue(val); len(vs) > 0 {
			def.Parent = vs[0]
		}
	}
}

func plainValue(v string) string {
	return strings.Trim(strings.TrimSpace(v), "`\"'")
}

// listValue reads either [[A]], [[B]] bracket names or a comma separated
// list of plain names.
func listValue(v string) []string {
	if ms := termRefRe.FindAllStringSubmatch(v, -1); len(ms) > 0 {
		out := make([]string, 0, len(ms))
		for _, m := range ms {
			if n := strings.TrimSpace(m[1]); n != "" {
				out = append(out, n)
			}
		}
		return out
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := plainValue(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
