// Package template implements the typed line model the build pipeline
// works on. A template is tokenized once into assignment, anchor and
// opaque lines; substitution and bundling are transforms over that list
// and always produce a new template, never mutate one in place.
package template

import (
	"regexp"
	"strings"
)

// LineKind classifies a template line.
type LineKind int

const (
	// LineOpaque is any line the pipeline passes through untouched.
	LineOpaque LineKind = iota
	// LineAssignment is a whole-line NAME="value" assignment.
	LineAssignment
	// LineAnchor is a dot-source of a repo-relative library fragment.
	LineAnchor
)

// Line is a single tokenized template line, without its trailing newline.
type Line struct {
	Kind LineKind
	// Name is the variable name for assignments and the fragment name
	// for anchors, empty for opaque lines.
	Name string
	Raw  string
}

var (
	// assignPattern matches the whole line or nothing: identifier,
	// equals sign, double-quoted value.
	assignPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)="([^"]*)"$`)

	// anchorPattern matches a dot-source of a lib/ fragment, with the
	// path optionally quoted.
	anchorPattern = regexp.MustCompile(`^\. "?lib/([A-Za-z0-9][A-Za-z0-9._-]*)"?$`)
)

// Template is an immutable ordered sequence of tokenized lines.
type Template struct {
	lines []Line
}

// Parse tokenizes text into a template. The exact line structure,
// including a trailing newline, round-trips through Render.
func Parse(text string) *Template {
	raw := strings.Split(text, "\n")
	lines := make([]Line, len(raw))
	for i, s := range raw {
		lines[i] = classify(s)
	}
	return &Template{lines: lines}
}

func classify(s string) Line {
	if m := assignPattern.FindStringSubmatch(s); m != nil {
		return Line{Kind: LineAssignment, Name: m[1], Raw: s}
	}
	if m := anchorPattern.FindStringSubmatch(s); m != nil {
		return Line{Kind: LineAnchor, Name: m[1], Raw: s}
	}
	return Line{Kind: LineOpaque, Raw: s}
}

// Lines returns a copy of the tokenized lines.
func (t *Template) Lines() []Line {
	out := make([]Line, len(t.lines))
	copy(out, t.lines)
	return out
}

// Len returns the number of lines in the template.
func (t *Template) Len() int {
	return len(t.lines)
}

// Anchors lists the fragment names referenced by anchor lines, in order
// of appearance.
func (t *Template) Anchors() []string {
	var names []string
	for _, line := range t.lines {
		if line.Kind == LineAnchor {
			names = append(names, line.Name)
		}
	}
	return names
}

// Render reassembles the template text.
func (t *Template) Render() string {
	raw := make([]string, len(t.lines))
	for i, line := range t.lines {
		raw[i] = line.Raw
	}
	return strings.Join(raw, "\n")
}

// Substitute rewrites every assignment line whose name is bound in vars to
// carry the resolved value, leaving all other lines byte-identical. The
// transform is line-local and idempotent: the rewritten line is itself an
// assignment with the new value, so a second pass is a fixed point. The
// output has the same line count as the input.
func (t *Template) Substitute(vars map[string]string) *Template {
	lines := make([]Line, len(t.lines))
	for i, line := range t.lines {
		if line.Kind == LineAssignment {
			if value, ok := vars[line.Name]; ok {
				lines[i] = Line{
					Kind: LineAssignment,
					Name: line.Name,
					Raw:  line.Name + `="` + value + `"`,
				}
				continue
			}
		}
		lines[i] = line
	}
	return &Template{lines: lines}
}
