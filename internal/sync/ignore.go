package sync

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

const IgnoreFileName = ".neocitiesignore"

// ignoreRule is one pattern line of an ignore file. Negated rules re-include
// paths excluded by an earlier rule.
type ignoreRule struct {
	negate  bool
	dirOnly bool
	matcher *gitignore.GitIgnore
}

// parseIgnoreLines compiles pattern lines into ordered rules. Blank lines
// and # comments are skipped, trailing whitespace trimmed.
func parseIgnoreLines(lines []string) []*ignoreRule {
	var rules []*ignoreRule
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		negate := false
		switch {
		case strings.HasPrefix(line, "!"):
			negate = true
			line = line[1:]
		case strings.HasPrefix(line, `\!`) || strings.HasPrefix(line, `\#`):
			line = line[1:]
		}

		dirOnly := strings.HasSuffix(line, "/")
		line = strings.TrimSuffix(line, "/")
		if line == "" {
			continue
		}

		rules = append(rules, &ignoreRule{
			negate:  negate,
			dirOnly: dirOnly,
			matcher: gitignore.CompileIgnoreLines(line),
		})
	}
	return rules
}

// ruleScope holds the parsed rules of one ignore file, scoped to the
// directory that contains it.
type ruleScope struct {
	// dir is the scope directory relative to the site root, "" for the root
	dir   string
	rules []*ignoreRule
}

// match evaluates the scope's rules in order against a path relative to the
// scope directory; the last matching rule wins. decided is false when no
// rule matched either way.
func (rs *ruleScope) match(rel string, isDir bool) (decided, excluded bool) {
	for _, rule := range rs.rules {
		if rule.dirOnly && !isDir {
			continue
		}
		if rule.matcher.MatchesPath(rel) {
			decided = true
			excluded = !rule.negate
		}
	}
	return decided, excluded
}

// IgnoreStack layers per-directory ignore rule sets along a walk of the
// tree, ancestor scopes first. The innermost scope that matches a path
// wins, so a negation near the path re-includes what an ancestor rule
// excluded. Re-including below an excluded parent is impossible by
// construction: the scanner never descends into excluded directories.
type IgnoreStack struct {
	scopes []*ruleScope
}

// PushFile parses the ignore file at path into a scope for dir and pushes it.
func (s *IgnoreStack) PushFile(dir, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open ignore file: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read ignore file: %w", err)
	}

	s.Push(dir, lines)
	return nil
}

// Push compiles the given pattern lines into a scope for dir.
func (s *IgnoreStack) Push(dir string, lines []string) {
	s.scopes = append(s.scopes, &ruleScope{dir: dir, rules: parseIgnoreLines(lines)})
}

// PopTo drops scopes that no longer contain dir. Called when the walk moves
// to a directory outside the innermost scopes.
func (s *IgnoreStack) PopTo(dir string) {
	for len(s.scopes) > 0 {
		top := s.scopes[len(s.scopes)-1]
		if withinScope(top.dir, dir) {
			return
		}
		s.scopes = s.scopes[:len(s.scopes)-1]
	}
}

// Excluded reports whether the root-relative path is excluded by the active
// scopes. Unmatched paths are included.
func (s *IgnoreStack) Excluded(relPath string, isDir bool) bool {
	excluded := false
	for _, scope := range s.scopes {
		rel, ok := scopeRel(scope.dir, relPath)
		if !ok {
			continue
		}
		if decided, matched := scope.match(rel, isDir); decided {
			excluded = matched
		}
	}
	return excluded
}

// scopeRel rewrites a root-relative path as scope-relative, or reports that
// the path is outside the scope.
func scopeRel(scopeDir, relPath string) (string, bool) {
	if scopeDir == "" {
		return relPath, true
	}
	if relPath == scopeDir {
		return "", false // the scope directory itself is governed by its parents
	}
	if !strings.HasPrefix(relPath, scopeDir+"/") {
		return "", false
	}
	return relPath[len(scopeDir)+1:], true
}

// withinScope reports whether dir is scopeDir or a descendant of it.
func withinScope(scopeDir, dir string) bool {
	if scopeDir == "" || dir == scopeDir {
		return true
	}
	return strings.HasPrefix(dir, scopeDir+"/")
}
