// Package pattern expands inventory host-range tokens such as "web[01:03]",
// "db-[a:c]" and "redis[1,3,5]" into concrete name lists.
package pattern

import (
	"fmt"
	"strconv"
	"strings"
)

// InvalidError reports malformed bracket syntax in a host token.
type InvalidError struct {
	Token  string
	Reason string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid host pattern %q: %s", e.Token, e.Reason)
}

// CardinalityError reports a host token whose name range and attached
// address range expand to different lengths.
type CardinalityError struct {
	Token     string
	NameCount int
	PairCount int
}

func (e *CardinalityError) Error() string {
	return fmt.Sprintf("pattern cardinality mismatch for %q: %d names vs %d paired values", e.Token, e.NameCount, e.PairCount)
}

// Expand turns a single host token into the ordered list of concrete names
// it denotes. A token without bracket syntax expands to itself. Numeric
// ranges inherit zero padding from the range operands ("01:03" pads to width
// 2, "1:3" does not). Alphabetic ranges expand lexicographically. Comma lists
// expand in listed order with duplicates preserved.
func Expand(token string) ([]string, error) {
	open := strings.IndexByte(token, '[')
	if open < 0 {
		if strings.IndexByte(token, ']') >= 0 {
			return nil, &InvalidError{Token: token, Reason: "unmatched ']'"}
		}
		return []string{token}, nil
	}

	closing := strings.IndexByte(token[open:], ']')
	if closing < 0 {
		return nil, &InvalidError{Token: token, Reason: "unterminated '['"}
	}
	closing += open

	prefix := token[:open]
	body := token[open+1 : closing]
	suffix := token[closing+1:]

	if strings.ContainsAny(suffix, "[]") {
		return nil, &InvalidError{Token: token, Reason: "only one bracket expression is allowed"}
	}
	if body == "" {
		return nil, &InvalidError{Token: token, Reason: "empty bracket expression"}
	}

	parts, err := expandBody(token, body)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(parts))
	for _, p := range parts {
		names = append(names, prefix+p+suffix)
	}
	return names, nil
}

// Cardinality returns the number of names a token expands to without
// materializing them, so callers can validate paired ranges cheaply.
func Cardinality(token string) (int, error) {
	names, err := Expand(token)
	if err != nil {
		return 0, err
	}
	return len(names), nil
}

// ExpandPaired expands a host token together with a paired value token (such
// as an ansible_host address carrying its own range). Both must expand to the
// same number of entries; a mismatch fails with a CardinalityError. A paired
// token without a range is replicated to match the host count.
func ExpandPaired(hostToken, pairedToken string) (hosts []string, paired []string, err error) {
	hosts, err = Expand(hostToken)
	if err != nil {
		return nil, nil, err
	}
	paired, err = Expand(pairedToken)
	if err != nil {
		return nil, nil, err
	}
	if len(paired) == 1 && len(hosts) > 1 {
		one := paired[0]
		paired = make([]string, len(hosts))
		for i := range paired {
			paired[i] = one
		}
		return hosts, paired, nil
	}
	if len(paired) != len(hosts) {
		return nil, nil, &CardinalityError{Token: hostToken, NameCount: len(hosts), PairCount: len(paired)}
	}
	return hosts, paired, nil
}

func expandBody(token, body string) ([]string, error) {
	if strings.ContainsRune(body, ',') {
		return strings.Split(body, ","), nil
	}

	bounds := strings.SplitN(body, ":", 2)
	if len(bounds) != 2 {
		return nil, &InvalidError{Token: token, Reason: "expected a range 'a:b' or a comma list"}
	}
	lo, hi := bounds[0], bounds[1]
	if lo == "" || hi == "" {
		return nil, &InvalidError{Token: token, Reason: "range bounds must not be empty"}
	}

	if isNumeric(lo) && isNumeric(hi) {
		return expandNumeric(token, lo, hi)
	}
	if isAlpha(lo) && isAlpha(hi) {
		return expandAlpha(token, lo, hi)
	}
	return nil, &InvalidError{Token: token, Reason: "range bounds must be both numeric or both alphabetic"}
}

func expandNumeric(token, lo, hi string) ([]string, error) {
	start, err := strconv.Atoi(lo)
	if err != nil {
		return nil, &InvalidError{Token: token, Reason: "bad numeric bound " + strconv.Quote(lo)}
	}
	end, err := strconv.Atoi(hi)
	if err != nil {
		return nil, &InvalidError{Token: token, Reason: "bad numeric bound " + strconv.Quote(hi)}
	}
	if end < start {
		return nil, &InvalidError{Token: token, Reason: "range end precedes start"}
	}

	// Zero padding is taken from the operand width: "01:03" pads, "1:3" does not.
	width := 0
	if len(lo) > 1 && lo[0] == '0' {
		width = len(lo)
	}

	out := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		if width > 0 {
			out = append(out, fmt.Sprintf("%0*d", width, i))
		} else {
			out = append(out, strconv.Itoa(i))
		}
	}
	return out, nil
}

func expandAlpha(token, lo, hi string) ([]string, error) {
	if len(lo) != 1 || len(hi) != 1 {
		return nil, &InvalidError{Token: token, Reason: "alphabetic bounds must be single letters"}
	}
	start, end := lo[0], hi[0]
	if end < start {
		return nil, &InvalidError{Token: token, Reason: "range end precedes start"}
	}
	out := make([]string, 0, int(end-start)+1)
	for c := start; c <= end; c++ {
		out = append(out, string(c))
	}
	return out, nil
}

func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

func isAlpha(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return len(s) > 0
}
