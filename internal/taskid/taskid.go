// Package taskid provides the structured, type-safe representation of task
// identifiers, based on the canonical format `[qualifier.]*task_<index>`.
//
// Plain tasks are addressed as `task_3`. Content inlined from an include or
// role target carries the target's stem as a qualifier, e.g.
// `common.task_3` or `webserver.setup.task_0`, which keeps ids unique across
// the whole parsed playbook even when the same file is inlined twice.
package taskid

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ID is the structured form of a task identifier.
type ID struct {
	Qualifiers []string
	Index      int
}

// segmentRe validates one qualifier segment.
var segmentRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// indexRe matches the terminal `task_<n>` segment.
var indexRe = regexp.MustCompile(`^task_(\d+)$`)

// New creates an identifier for the task at index, optionally qualified.
func New(index int, qualifiers ...string) ID {
	return ID{Qualifiers: qualifiers, Index: index}
}

// String serializes the identifier into its canonical form.
func (id ID) String() string {
	var sb strings.Builder
	for _, q := range id.Qualifiers {
		sb.WriteString(q)
		sb.WriteByte('.')
	}
	fmt.Fprintf(&sb, "task_%d", id.Index)
	return sb.String()
}

// Parse reads a canonical identifier back into its structured form.
func Parse(rawID string) (ID, error) {
	if rawID == "" {
		return ID{}, fmt.Errorf("task identifier cannot be empty")
	}

	segments := strings.Split(rawID, ".")
	last := segments[len(segments)-1]

	m := indexRe.FindStringSubmatch(last)
	if m == nil {
		return ID{}, fmt.Errorf("task identifier %q must end in a task_<n> segment", rawID)
	}
	index, err := strconv.Atoi(m[1])
	if err != nil {
		// Unreachable due to the \d+ in indexRe.
		return ID{}, fmt.Errorf("internal error parsing index: %w", err)
	}

	id := ID{Index: index}
	for _, seg := range segments[:len(segments)-1] {
		if !segmentRe.MatchString(seg) {
			return ID{}, fmt.Errorf("invalid qualifier segment %q in %q", seg, rawID)
		}
		id.Qualifiers = append(id.Qualifiers, seg)
	}
	return id, nil
}

// Qualify returns a copy of id with an additional leading qualifier.
func (id ID) Qualify(q string) ID {
	out := ID{Index: id.Index}
	out.Qualifiers = append([]string{q}, id.Qualifiers...)
	return out
}

// Stem derives a qualifier segment from an include target reference: the
// file's base name without extension, sanitized to the segment alphabet.
func Stem(ref string) string {
	base := ref
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	var sb strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	if sb.Len() == 0 {
		return "include"
	}
	return sb.String()
}
