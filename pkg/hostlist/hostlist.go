// Package hostlist expands node range expressions such as "lx[01-16,20]"
// into the concrete node names they describe.
//
// Expansion is lazy: Parse validates the expression and counts the names it
// covers without materializing them, and All yields them one at a time in
// ascending order. Each call to All starts a fresh pass.
package hostlist

import (
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"
)

// MaxRange is the largest number of names a single expression may expand to
const MaxRange = 64 * 1024

var (
	// ErrSyntax is returned for malformed bracket expressions
	ErrSyntax = errors.New("unable to parse node list")
	// ErrRangeTooLarge is returned when an expression covers more than MaxRange names
	ErrRangeTooLarge = errors.New("too many nodes in supplied range")
)

// bound is one "lo-hi" or single number inside brackets
type bound struct {
	lo, hi uint64
	width  int // zero-padded width, 0 when unpadded
}

// pattern is one comma-separated element at the top level of an expression
type pattern struct {
	prefix string
	suffix string
	bounds []bound // nil for a plain name
}

func (p *pattern) count() uint64 {
	if p.bounds == nil {
		return 1
	}
	var n uint64
	for _, b := range p.bounds {
		n += b.hi - b.lo + 1
	}
	return n
}

// HostList is a parsed node range expression
type HostList struct {
	expr     string
	patterns []pattern
	count    uint64
}

// Parse validates expr and returns its lazy expansion
func Parse(expr string) (*HostList, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrSyntax)
	}

	elems, err := splitTopLevel(expr)
	if err != nil {
		return nil, err
	}

	h := &HostList{expr: expr}
	for _, elem := range elems {
		p, err := parsePattern(elem)
		if err != nil {
			return nil, err
		}
		h.count += p.count()
		if h.count > MaxRange {
			return nil, fmt.Errorf("%w: %s", ErrRangeTooLarge, expr)
		}
		h.patterns = append(h.patterns, p)
	}
	return h, nil
}

// Len returns the number of names the expression expands to
func (h *HostList) Len() int {
	return int(h.count)
}

// String returns the original expression
func (h *HostList) String() string {
	return h.expr
}

// All yields every name in expansion order
func (h *HostList) All() iter.Seq[string] {
	return func(yield func(string) bool) {
		for i := range h.patterns {
			p := &h.patterns[i]
			if p.bounds == nil {
				if !yield(p.prefix) {
					return
				}
				continue
			}
			for _, b := range p.bounds {
				for n := b.lo; n <= b.hi; n++ {
					if !yield(p.prefix + formatNumber(n, b.width) + p.suffix) {
						return
					}
				}
			}
		}
	}
}

// Expand is a convenience for callers that need the whole list at once
func Expand(expr string) ([]string, error) {
	h, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, h.Len())
	for name := range h.All() {
		names = append(names, name)
	}
	return names, nil
}

// splitTopLevel splits on commas that are not inside brackets
func splitTopLevel(expr string) ([]string, error) {
	var elems []string
	depth, start := 0, 0
	for i, r := range expr {
		switch r {
		case '[':
			depth++
			if depth > 1 {
				return nil, fmt.Errorf("%w: nested bracket in %s", ErrSyntax, expr)
			}
		case ']':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("%w: unbalanced bracket in %s", ErrSyntax, expr)
			}
		case ',':
			if depth == 0 {
				elems = append(elems, expr[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("%w: unbalanced bracket in %s", ErrSyntax, expr)
	}
	elems = append(elems, expr[start:])

	for _, e := range elems {
		if e == "" {
			return nil, fmt.Errorf("%w: empty element in %s", ErrSyntax, expr)
		}
	}
	return elems, nil
}

func parsePattern(elem string) (pattern, error) {
	open := strings.IndexByte(elem, '[')
	if open < 0 {
		if strings.ContainsRune(elem, ']') {
			return pattern{}, fmt.Errorf("%w: %s", ErrSyntax, elem)
		}
		return pattern{prefix: elem}, nil
	}
	end := strings.IndexByte(elem, ']')
	if end < open {
		return pattern{}, fmt.Errorf("%w: %s", ErrSyntax, elem)
	}
	suffix := elem[end+1:]
	if strings.ContainsAny(suffix, "[]") {
		return pattern{}, fmt.Errorf("%w: more than one range in %s", ErrSyntax, elem)
	}

	p := pattern{prefix: elem[:open], suffix: suffix}
	body := elem[open+1 : end]
	if body == "" {
		return pattern{}, fmt.Errorf("%w: empty range in %s", ErrSyntax, elem)
	}

	var total uint64
	for _, part := range strings.Split(body, ",") {
		b, err := parseBound(part)
		if err != nil {
			return pattern{}, fmt.Errorf("%w: %s", err, elem)
		}
		total += b.hi - b.lo + 1
		if total > MaxRange {
			return pattern{}, fmt.Errorf("%w: %s", ErrRangeTooLarge, elem)
		}
		p.bounds = append(p.bounds, b)
	}
	return p, nil
}

func parseBound(part string) (bound, error) {
	loStr, hiStr, isRange := strings.Cut(part, "-")
	if !isRange {
		hiStr = loStr
	}
	lo, err := parseNumber(loStr)
	if err != nil {
		return bound{}, err
	}
	hi, err := parseNumber(hiStr)
	if err != nil {
		return bound{}, err
	}
	if hi < lo {
		return bound{}, ErrSyntax
	}
	if hi-lo >= MaxRange {
		return bound{}, ErrRangeTooLarge
	}

	b := bound{lo: lo, hi: hi}
	if len(loStr) > 1 && loStr[0] == '0' {
		b.width = len(loStr)
	}
	return b, nil
}

func parseNumber(s string) (uint64, error) {
	if s == "" {
		return 0, ErrSyntax
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, ErrSyntax
		}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, ErrRangeTooLarge
	}
	return n, nil
}

func formatNumber(n uint64, width int) string {
	s := strconv.FormatUint(n, 10)
	if len(s) < width {
		s = strings.Repeat("0", width-len(s)) + s
	}
	return s
}
