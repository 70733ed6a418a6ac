package template

import (
	"strings"

	"github.com/pl-luk/depthcharge-tools/pkg/errors"
	"github.com/pl-luk/depthcharge-tools/pkg/logging"
)

// MissingFragmentPolicy decides what happens when an anchor references a
// fragment the set does not contain.
type MissingFragmentPolicy int

const (
	// MissingBlankLine replaces the anchor with a single blank line,
	// stripping the external reference. The payload script is expected
	// to source such fragments from their installed location instead.
	MissingBlankLine MissingFragmentPolicy = iota
	// MissingError fails the bundling pass instead.
	MissingError
)

// FragmentSet is the fixed set of named library fragments available for
// inlining, plus the policy applied to unresolved anchors.
type FragmentSet struct {
	fragments map[string][]string
	policy    MissingFragmentPolicy
}

// NewFragmentSet creates an empty fragment set with the given policy.
func NewFragmentSet(policy MissingFragmentPolicy) *FragmentSet {
	return &FragmentSet{
		fragments: make(map[string][]string),
		policy:    policy,
	}
}

// Add registers a fragment body under name. A trailing newline on the body
// is not part of the fragment's line sequence.
func (s *FragmentSet) Add(name, body string) {
	s.fragments[name] = strings.Split(strings.TrimSuffix(body, "\n"), "\n")
}

// Has reports whether the set contains a fragment named name.
func (s *FragmentSet) Has(name string) bool {
	_, ok := s.fragments[name]
	return ok
}

// Bundle replaces every anchor line in t with the named fragment's lines,
// verbatim and in the anchor's position. Fragments are leaves: their
// content is inserted as opaque lines and never scanned for further
// anchors. The result contains no anchor syntax.
func (s *FragmentSet) Bundle(t *Template) (*Template, error) {
	logger := logging.GetLogger("template.bundle")

	lines := make([]Line, 0, len(t.lines))
	for _, line := range t.lines {
		if line.Kind != LineAnchor {
			lines = append(lines, line)
			continue
		}

		body, ok := s.fragments[line.Name]
		if !ok {
			if s.policy == MissingError {
				return nil, errors.Newf(errors.ErrMissingFragment,
					"anchor references unknown fragment %s", line.Name)
			}
			logger.Warn().Str("fragment", line.Name).
				Msg("anchor references unknown fragment, stripped to blank line")
			lines = append(lines, Line{Kind: LineOpaque, Raw: ""})
			continue
		}

		for _, raw := range body {
			lines = append(lines, Line{Kind: LineOpaque, Raw: raw})
		}
		logger.Debug().Str("fragment", line.Name).Int("lines", len(body)).
			Msg("inlined fragment")
	}
	return &Template{lines: lines}, nil
}
