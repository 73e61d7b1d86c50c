package dice

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Expression is a parsed "NdS+M" dice expression.
// Invariant: Count >= 1 and Sides >= 2 after a successful Parse.
type Expression struct {
	Raw      string
	Count    int
	Sides    int
	Modifier int
}

var exprPattern = regexp.MustCompile(`^(\d*)d(\d+)([+-]\d+)?$`)

// Parse parses "d20", "2d6", "2d6+3" or "1d5-1" into an Expression.
//
// Postcondition: Returns an Expression with Count >= 1 and Sides >= 2, or an error naming expr.
func Parse(expr string) (Expression, error) {
	if expr == "" {
		return Expression{}, fmt.Errorf("dice: empty expression")
	}
	m := exprPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(expr)))
	if m == nil {
		return Expression{}, fmt.Errorf("dice: malformed expression %q", expr)
	}

	e := Expression{Raw: expr, Count: 1}
	if m[1] != "" {
		e.Count, _ = strconv.Atoi(m[1])
	}
	if e.Count < 1 {
		return Expression{}, fmt.Errorf("dice: die count in %q must be >= 1", expr)
	}
	e.Sides, _ = strconv.Atoi(m[2])
	if e.Sides < 2 {
		return Expression{}, fmt.Errorf("dice: die sides in %q must be >= 2", expr)
	}
	if m[3] != "" {
		e.Modifier, _ = strconv.Atoi(m[3])
	}
	return e, nil
}

// Bounds returns the smallest and largest totals e can roll.
func (e Expression) Bounds() (lo, hi int) {
	return e.Count + e.Modifier, e.Count*e.Sides + e.Modifier
}
