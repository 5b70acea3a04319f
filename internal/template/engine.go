package template

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/playparse/internal/model"
	"github.com/vk/playparse/internal/scope"
)

// Diagnostic summaries emitted by the engine.
const (
	DiagUndefinedVariable = "Undefined variable"
	DiagBadExpression     = "Invalid expression"
)

// Engine evaluates expressions against one scope stack. An Engine is cheap;
// each resolution pass creates its own and never shares it across passes.
type Engine struct {
	stack *scope.Stack
}

// New creates an engine bound to the given stack. The engine reads the stack
// through Lookup only and never mutates it.
func New(stack *scope.Stack) *Engine {
	return &Engine{stack: stack}
}

// Stack returns the engine's scope stack.
func (e *Engine) Stack() *scope.Stack { return e.stack }

// Evaluate resolves a bare expression (a `when` condition, a loop source) to
// a Value. Resolution failures that can legitimately defer produce an
// unresolved Value without diagnostics; undefined variables and evaluation
// errors produce a diagnostic and an unresolved Value, never a hard stop.
func (e *Engine) Evaluate(src string, rng hcl.Range) (model.Value, hcl.Diagnostics) {
	var diags hcl.Diagnostics

	ast, err := parseExpr(src)
	if err != nil {
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  DiagBadExpression,
			Detail:   fmt.Sprintf("Cannot parse expression %q: %s.", src, err),
			Subject:  rng.Ptr(),
		})
		return model.UnresolvedValue(src, model.ReasonEvalError), diags
	}

	ev := &evaluator{stack: e.stack}
	v, err := ev.eval(ast)
	if err != nil {
		return e.valueForError(src, rng, err)
	}
	return model.LiteralValue(v), diags
}

// Interpolate resolves a string that may carry "{{ ... }}" interpolations.
// A string that is exactly one interpolation preserves the inner value's
// type; mixed content renders to a string. If any segment cannot resolve the
// whole string stays unresolved with its original text retained verbatim.
func (e *Engine) Interpolate(src string, rng hcl.Range) (model.Value, hcl.Diagnostics) {
	segments := splitInterpolation(src)
	if len(segments) == 1 && !segments[0].isExpr {
		return model.LiteralValue(cty.StringVal(src)), nil
	}
	if len(segments) == 1 && segments[0].isExpr {
		v, diags := e.Evaluate(segments[0].text, rng)
		if v.Unresolved {
			// The whole original string stands, braces included.
			return model.UnresolvedValue(src, v.Reason), diags
		}
		return v, diags
	}

	var diags hcl.Diagnostics
	var sb strings.Builder
	for _, seg := range segments {
		if !seg.isExpr {
			sb.WriteString(seg.text)
			continue
		}
		v, segDiags := e.Evaluate(seg.text, rng)
		diags = append(diags, segDiags...)
		if v.Unresolved {
			// Never partially substituted: the whole original text stands.
			return model.UnresolvedValue(src, v.Reason), diags
		}
		s, err := toString(v.Literal)
		if err != nil {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  DiagBadExpression,
				Detail:   fmt.Sprintf("Result of %q cannot be rendered into a string: %s.", seg.text, err),
				Subject:  rng.Ptr(),
			})
			return model.UnresolvedValue(src, model.ReasonEvalError), diags
		}
		sb.WriteString(s)
	}
	return model.LiteralValue(cty.StringVal(sb.String())), diags
}

func (e *Engine) valueForError(src string, rng hcl.Range, err error) (model.Value, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	switch err := err.(type) {
	case deferredError:
		return model.UnresolvedValue(src, err.reason), diags
	case undefinedError:
		detail := fmt.Sprintf("The expression %q references %q, which is not bound in any scope.", src, err.name)
		if s := nameSuggestion(err.name, e.stack.Names()); s != "" {
			detail += fmt.Sprintf(" Did you mean %q?", s)
		}
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  DiagUndefinedVariable,
			Detail:   detail,
			Subject:  rng.Ptr(),
		})
		return model.UnresolvedValue(src, model.ReasonUndefined), diags
	default:
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  DiagBadExpression,
			Detail:   fmt.Sprintf("Cannot evaluate %q: %s.", src, err),
			Subject:  rng.Ptr(),
		})
		return model.UnresolvedValue(src, model.ReasonEvalError), diags
	}
}

// HasInterpolation reports whether a string contains template syntax.
func HasInterpolation(s string) bool {
	return strings.Contains(s, "{{")
}

type segment struct {
	text   string
	isExpr bool
}

// splitInterpolation cuts a string into literal and expression segments. The
// scanner honors quotes inside expressions so a "}}" in a string literal
// does not close the interpolation early.
func splitInterpolation(src string) []segment {
	var segs []segment
	rest := src
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			break
		}
		end := findCloser(rest, open+2)
		if end < 0 {
			break
		}
		if open > 0 {
			segs = append(segs, segment{text: rest[:open]})
		}
		segs = append(segs, segment{text: strings.TrimSpace(rest[open+2 : end]), isExpr: true})
		rest = rest[end+2:]
	}
	if rest != "" || len(segs) == 0 {
		segs = append(segs, segment{text: rest})
	}
	return segs
}

func findCloser(s string, from int) int {
	var quote byte
	for i := from; i+1 < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '}':
			if s[i+1] == '}' {
				return i
			}
		}
	}
	return -1
}
