package expect

import (
	"bytes"
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

// Kind discriminates literal and regular expression patterns.
type Kind int

const (
	// LiteralKind patterns match an exact byte sequence.
	LiteralKind Kind = iota
	// RegexKind patterns match a regular expression.
	RegexKind
)

// Pattern is a literal string or a regular expression searched for in device output.
// Regular expressions are applied to the whole accumulated buffer, so ^ and $ refer
// to its start and end unless (?m) is used.
type Pattern struct {
	kind Kind
	text string
	re   *regexp.Regexp
}

// Literal returns a pattern matching text exactly.
func Literal(text string) Pattern {
	return Pattern{kind: LiteralKind, text: text}
}

// Regex compiles expr into a pattern.
func Regex(expr string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, errors.Wrapf(err, "invalid pattern %q", expr)
	}
	return Pattern{kind: RegexKind, text: expr, re: re}, nil
}

// MustRegex is like Regex but panics if expr does not compile.
func MustRegex(expr string) Pattern {
	p, err := Regex(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// Regexes compiles each expression in turn.
func Regexes(exprs ...string) ([]Pattern, error) {
	patterns := make([]Pattern, 0, len(exprs))
	for _, expr := range exprs {
		p, err := Regex(expr)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

// Kind reports whether the pattern is a literal or a regular expression.
func (p Pattern) Kind() Kind { return p.kind }

// IsZero reports whether p is the zero Pattern.
func (p Pattern) IsZero() bool { return p.text == "" && p.re == nil }

func (p Pattern) String() string {
	if p.kind == RegexKind {
		return "/" + p.text + "/"
	}
	return strconv.Quote(p.text)
}

// find returns the bounds of the leftmost match in b, or -1, -1.
func (p Pattern) find(b []byte) (start, end int) {
	if p.kind == RegexKind {
		loc := p.re.FindIndex(b)
		if loc == nil {
			return -1, -1
		}
		return loc[0], loc[1]
	}
	if p.text == "" {
		return -1, -1
	}
	i := bytes.Index(b, []byte(p.text))
	if i < 0 {
		return -1, -1
	}
	return i, i + len(p.text)
}
