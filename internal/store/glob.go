package store

import (
	"strings"

	"github.com/gobwas/glob"
)

// compileGlob compiles pattern into a matcher function. Grammar per
// spec.md §4.2: '*' (any run), '?' (single char), '[...]'/'[^...]'
// (character classes). gobwas/glob (github.com/gobwas/glob) already
// implements '*', '?' and '[...]' identically, but spells negated
// classes '[!...]' instead of '[^...]' — so '[^' is rewritten to '[!'
// before compiling. This does not handle a pattern that wants a literal
// '^' as the first character of a non-negated class (spec.md's grammar
// doesn't distinguish that case either), which is the one corner this
// translation leaves unaddressed.
func compileGlob(pattern string) (func(string) bool, error) {
	rewritten := strings.ReplaceAll(pattern, "[^", "[!")
	g, err := glob.Compile(rewritten)
	if err != nil {
		return nil, err
	}
	return g.Match, nil
}
