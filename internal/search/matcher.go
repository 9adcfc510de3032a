package search

import (
	"strings"
)

// Pattern matches entry names against a query.
// It holds no mutable state and is shared by all workers.
type Pattern struct {
	query         string
	runes         []rune // folded query, only used for wildcard matching
	wildcard      bool
	caseSensitive bool
}

// NewPattern compiles query. Without * or ? (or when literal is set) the
// query is compared for equality, otherwise it is a glob.
func NewPattern(query string, caseSensitive, literal bool) *Pattern {
	p := &Pattern{
		query:         query,
		caseSensitive: caseSensitive,
		wildcard:      !literal && strings.ContainsAny(query, "*?"),
	}
	if p.wildcard {
		p.runes = p.fold([]rune(query))
	}
	return p
}

// IsWildcard reports whether the pattern is matched as a glob
func (p *Pattern) IsWildcard() bool {
	return p.wildcard
}

func (p *Pattern) String() string {
	return p.query
}

// Matches reports whether name matches the pattern
func (p *Pattern) Matches(name string) bool {
	if !p.wildcard {
		if p.caseSensitive {
			return name == p.query
		}
		return equalFoldASCII(name, p.query)
	}
	return matchGlob(p.runes, p.fold([]rune(name)))
}

func (p *Pattern) fold(rs []rune) []rune {
	if p.caseSensitive {
		return rs
	}
	for i, r := range rs {
		rs[i] = lowerASCII(r)
	}
	return rs
}

func lowerASCII(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

// equalFoldASCII is strings.EqualFold restricted to ASCII letters
func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if lowerASCII(rune(a[i])) != lowerASCII(rune(b[i])) {
			return false
		}
	}
	return true
}

// matchGlob is a single pass over text. On a mismatch after a star the
// star is made to swallow one more character and matching resumes from
// there, so the worst case is O(len(pattern)*len(text)).
func matchGlob(pattern, text []rune) bool {
	p, t := 0, 0
	star := -1 // index of the last * seen in pattern
	mark := 0  // text index the last * is matched up to

	for t < len(text) {
		switch {
		case p < len(pattern) && pattern[p] == '*':
			star = p
			mark = t
			p++
		case p < len(pattern) && (pattern[p] == '?' || pattern[p] == text[t]):
			p++
			t++
		case star >= 0:
			p = star + 1
			mark++
			t = mark
		default:
			return false
		}
	}

	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}
