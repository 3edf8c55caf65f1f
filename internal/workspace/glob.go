package workspace

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/Iron-Ham/mailcd/internal/errors"
)

// Matcher matches slash-separated paths relative to the workspace root.
// `*` stays inside one path segment and `**` crosses segments. A pattern
// that starts with `**/` also matches at the root, so `**/*.txt` matches
// `a.txt` as well as `sub/a.txt`.
type Matcher struct {
	pattern string
	globs   []glob.Glob
}

// CompileGlob compiles pattern into a Matcher.
func CompileGlob(pattern string) (*Matcher, error) {
	pattern = strings.TrimPrefix(strings.ReplaceAll(strings.TrimSpace(pattern), `\`, "/"), "./")
	if pattern == "" {
		return nil, errors.NewValidationError("empty glob pattern").WithField("pattern")
	}

	alternatives := []string{pattern}
	if rest, ok := strings.CutPrefix(pattern, "**/"); ok && rest != "" {
		alternatives = append(alternatives, rest)
	}

	m := &Matcher{pattern: pattern}
	for _, p := range alternatives {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, errors.NewValidationError("invalid glob pattern").
				WithField("pattern").WithValue(pattern).WithCause(err)
		}
		m.globs = append(m.globs, g)
	}
	return m, nil
}

// Pattern returns the normalized pattern.
func (m *Matcher) Pattern() string {
	return m.pattern
}

// Match reports whether rel matches.
func (m *Matcher) Match(rel string) bool {
	for _, g := range m.globs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// Glob returns the workspace paths matching pattern, relative and
// slash-separated, sorted. Nothing under the local root (.mb) matches.
// Regular files always qualify; directories qualify only when includeDirs
// is set, in which case a matched directory is not descended into.
func (l *Layout) Glob(pattern string, includeDirs bool) ([]string, error) {
	m, err := CompileGlob(pattern)
	if err != nil {
		return nil, err
	}

	var matches []string
	err = filepath.WalkDir(l.workspace, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == l.workspace {
			return nil
		}
		rel, err := filepath.Rel(l.workspace, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel == l.localRoot {
				return filepath.SkipDir
			}
			if includeDirs && m.Match(rel) {
				matches = append(matches, rel)
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && m.Match(rel) {
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}
