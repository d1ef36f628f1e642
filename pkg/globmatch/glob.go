// Package globmatch implements the restricted glob grammar used to decide
// whether a kernel function name should be included in, or excluded from,
// an attachment plan. The grammar has exactly one wildcard, '*', and it is
// only meaningful at the edges of the pattern:
//
//	*       matches everything
//	X*      prefix match
//	*X      suffix match
//	*X*     substring match
//	X       exact match
//
// A literal "**" anywhere in the pattern is rejected at compile time.
package globmatch

import (
	"fmt"
	"strings"
)

// Kind identifies which of the five match shapes a Glob compiled to.
type Kind int

const (
	KindExact Kind = iota
	KindPrefix
	KindSuffix
	KindSubstring
	KindUniversal
)

// Glob is a compiled pattern. The zero value is not valid; use Compile.
type Glob struct {
	pattern string
	body    string
	kind    Kind
}

// Pattern returns the original, uncompiled pattern string.
func (g Glob) Pattern() string {
	return g.pattern
}

// Compile validates and compiles a glob pattern. The only accepted
// wildcard is '*', and only as the first and/or last byte of the pattern.
func Compile(pattern string) (Glob, error) {
	if pattern == "" {
		return Glob{}, fmt.Errorf("globmatch: empty pattern")
	}
	if strings.Contains(pattern, "**") {
		return Glob{}, fmt.Errorf("globmatch: %q: \"**\" is not a supported wildcard", pattern)
	}
	if pattern == "*" {
		return Glob{pattern: pattern, kind: KindUniversal}, nil
	}

	leading := pattern[0] == '*'
	trailing := pattern[len(pattern)-1] == '*'
	body := pattern
	if leading {
		body = body[1:]
	}
	if trailing {
		body = body[:len(body)-1]
	}
	if strings.ContainsRune(body, '*') {
		return Glob{}, fmt.Errorf("globmatch: %q: '*' is only allowed as the first and/or last character", pattern)
	}

	switch {
	case leading && trailing:
		return Glob{pattern: pattern, body: body, kind: KindSubstring}, nil
	case trailing:
		return Glob{pattern: pattern, body: body, kind: KindPrefix}, nil
	case leading:
		return Glob{pattern: pattern, body: body, kind: KindSuffix}, nil
	default:
		return Glob{pattern: pattern, body: body, kind: KindExact}, nil
	}
}

// MustCompile is like Compile but panics on an invalid pattern. Intended
// for the attacher's own built-in, always-denied glob list, whose patterns
// are compile-time constants.
func MustCompile(pattern string) Glob {
	g, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return g
}

// Match reports whether s satisfies the compiled glob. Comparison is
// byte-exact: no case folding, no locale awareness.
func (g Glob) Match(s string) bool {
	switch g.kind {
	case KindUniversal:
		return true
	case KindPrefix:
		return strings.HasPrefix(s, g.body)
	case KindSuffix:
		return strings.HasSuffix(s, g.body)
	case KindSubstring:
		return strings.Contains(s, g.body)
	default:
		return s == g.body
	}
}
