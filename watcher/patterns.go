package watcher

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
	"github.com/revel/devproxy/model"
)

// PatternSet matches paths below a root against an ordered list of globs.
// Globs use forward slashes and may contain "**".
type PatternSet struct {
	root     string
	patterns []string
}

// NewPatternSet validates the globs, which are relative to root.
func NewPatternSet(root string, patterns []string) (*PatternSet, error) {
	if len(patterns) == 0 {
		return nil, model.ErrNoPatterns
	}
	for _, p := range patterns {
		if strings.HasPrefix(p, "/") || filepath.IsAbs(p) {
			return nil, errors.Errorf("watch pattern %q must be relative", p)
		}
		if !doublestar.ValidatePattern(p) {
			return nil, errors.Errorf("invalid watch pattern %q", p)
		}
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(err, "watch root")
	}
	return &PatternSet{root: root, patterns: patterns}, nil
}

// Root is the absolute directory the globs are relative to.
func (s *PatternSet) Root() string {
	return s.root
}

// Rel returns the slash separated path of name relative to the root,
// or false when name is outside of it.
func (s *PatternSet) Rel(name string) (string, bool) {
	rel, err := filepath.Rel(s.root, name)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// Match reports whether name (absolute, or relative to the working
// directory of the process) matches any of the globs.
func (s *PatternSet) Match(name string) bool {
	if !filepath.IsAbs(name) {
		if abs, err := filepath.Abs(name); err == nil {
			name = abs
		}
	}
	rel, ok := s.Rel(name)
	if !ok {
		return false
	}
	return s.MatchRel(rel)
}

// MatchRel reports whether the slash separated relative path matches.
func (s *PatternSet) MatchRel(rel string) bool {
	for _, p := range s.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Roots returns the distinct static directories the globs start from.
func (s *PatternSet) Roots() []string {
	var roots []string
	seen := map[string]bool{}
	for _, p := range s.patterns {
		base, _ := doublestar.SplitPattern(p)
		dir := filepath.Join(s.root, filepath.FromSlash(path.Clean(base)))
		if !seen[dir] {
			seen[dir] = true
			roots = append(roots, dir)
		}
	}
	return roots
}
