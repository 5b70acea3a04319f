package template

import (
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/playparse/internal/model"
	"github.com/vk/playparse/internal/scope"
)

func testEngine(vars map[string]cty.Value) *Engine {
	stack := scope.NewStack()
	stack.Push(scope.FromMap("test", vars))
	return New(stack)
}

func evalLiteral(t *testing.T, eng *Engine, src string) cty.Value {
	t.Helper()
	v, diags := eng.Evaluate(src, rng())
	require.False(t, diags.HasErrors(), "unexpected diagnostics for %q: %s", src, diags.Error())
	require.False(t, v.Unresolved, "expected %q to resolve, got reason %q", src, v.Reason)
	return v.Literal
}

func rng() (r hcl.Range) { return }

func TestInterpolate_PlainString(t *testing.T) {
	t.Parallel()
	eng := testEngine(nil)

	v, diags := eng.Interpolate("just text", rng())
	require.Empty(t, diags)
	require.True(t, v.IsLiteral())
	assert.Equal(t, cty.StringVal("just text"), v.Literal)
}

func TestInterpolate_SingleExpressionKeepsType(t *testing.T) {
	t.Parallel()
	eng := testEngine(map[string]cty.Value{"port": cty.NumberIntVal(8080)})

	v, diags := eng.Interpolate("{{ port }}", rng())
	require.Empty(t, diags)
	require.True(t, v.IsLiteral())
	assert.Equal(t, cty.NumberIntVal(8080), v.Literal)
}

func TestInterpolate_MixedRendersString(t *testing.T) {
	t.Parallel()
	eng := testEngine(map[string]cty.Value{
		"name": cty.StringVal("web"),
		"port": cty.NumberIntVal(8080),
	})

	v, diags := eng.Interpolate("{{ name }}:{{ port }}", rng())
	require.Empty(t, diags)
	require.True(t, v.IsLiteral())
	assert.Equal(t, cty.StringVal("web:8080"), v.Literal)
}

func TestInterpolate_RuntimeFactStaysVerbatim(t *testing.T) {
	t.Parallel()
	eng := testEngine(map[string]cty.Value{"suffix": cty.StringVal("x")})

	cases := []string{
		"{{ ansible_hostname }}",
		"prefix-{{ ansible_hostname }}-{{ suffix }}",
	}
	for _, src := range cases {
		t.Run(src, func(t *testing.T) {
			v, diags := eng.Interpolate(src, rng())
			require.False(t, diags.HasErrors())
			require.True(t, v.Unresolved)
			assert.Equal(t, src, v.Expr, "original text must be retained verbatim, never partially substituted")
			assert.Equal(t, model.ReasonRuntimeFact, v.Reason)
		})
	}
}

func TestEvaluate_UndefinedVariableIsDiagnosticNotFatal(t *testing.T) {
	t.Parallel()
	eng := testEngine(map[string]cty.Value{"port": cty.NumberIntVal(80)})

	v, diags := eng.Evaluate("porr", rng())
	require.True(t, diags.HasErrors())
	assert.Equal(t, DiagUndefinedVariable, diags[0].Summary)
	assert.Contains(t, diags[0].Detail, `"port"`, "close names should be suggested")
	require.True(t, v.Unresolved)
	assert.Equal(t, model.ReasonUndefined, v.Reason)
}

func TestEvaluate_DefaultFilterRecoversUndefined(t *testing.T) {
	t.Parallel()
	eng := testEngine(nil)

	v, diags := eng.Evaluate("missing | default('fallback')", rng())
	require.False(t, diags.HasErrors())
	require.True(t, v.IsLiteral())
	assert.Equal(t, cty.StringVal("fallback"), v.Literal)
}

func TestEvaluate_DefaultFilterPassesThroughBoundValue(t *testing.T) {
	t.Parallel()
	eng := testEngine(map[string]cty.Value{"color": cty.StringVal("red")})

	v := evalLiteral(t, eng, "color | default('blue')")
	assert.Equal(t, cty.StringVal("red"), v)
}

func TestEvaluate_Comparisons(t *testing.T) {
	t.Parallel()
	eng := testEngine(map[string]cty.Value{
		"count":   cty.NumberIntVal(3),
		"version": cty.StringVal("10"),
	})

	cases := []struct {
		src  string
		want bool
	}{
		{"count == 3", true},
		{"count != 3", false},
		{"count > 2", true},
		{"count <= 2", false},
		// Numeric strings compare numerically, not lexicographically.
		{"version > 9", true},
		{"'10' > '9'", true},
		{"version == 10", true},
	}
	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			v := evalLiteral(t, eng, tc.src)
			assert.Equal(t, cty.BoolVal(tc.want), v)
		})
	}
}

func TestEvaluate_BooleanLogicAndTruthiness(t *testing.T) {
	t.Parallel()
	eng := testEngine(map[string]cty.Value{
		"enabled": cty.StringVal("yes"),
		"debug":   cty.False,
		"items":   cty.TupleVal([]cty.Value{cty.StringVal("a")}),
	})

	cases := []struct {
		src  string
		want bool
	}{
		{"enabled and not debug", true},
		{"debug or enabled", true},
		{"not items", false},
		{"enabled | bool", true},
		{"'off' | bool", false},
	}
	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			v := evalLiteral(t, eng, tc.src)
			assert.Equal(t, cty.BoolVal(tc.want), v)
		})
	}
}

func TestEvaluate_Membership(t *testing.T) {
	t.Parallel()
	eng := testEngine(map[string]cty.Value{
		"groups_list": cty.TupleVal([]cty.Value{cty.StringVal("web"), cty.StringVal("db")}),
		"role":        cty.StringVal("web"),
	})

	assert.Equal(t, cty.True, evalLiteral(t, eng, "role in groups_list"))
	assert.Equal(t, cty.True, evalLiteral(t, eng, "'cache' not in groups_list"))
	assert.Equal(t, cty.True, evalLiteral(t, eng, "'eb' in role"))
}

func TestEvaluate_AttributeAndIndexAccess(t *testing.T) {
	t.Parallel()
	eng := testEngine(map[string]cty.Value{
		"server": cty.ObjectVal(map[string]cty.Value{
			"host":  cty.StringVal("db1"),
			"ports": cty.TupleVal([]cty.Value{cty.NumberIntVal(5432), cty.NumberIntVal(5433)}),
		}),
	})

	assert.Equal(t, cty.StringVal("db1"), evalLiteral(t, eng, "server.host"))
	assert.Equal(t, cty.NumberIntVal(5433), evalLiteral(t, eng, "server.ports[1]"))
	assert.Equal(t, cty.NumberIntVal(5432), evalLiteral(t, eng, "server['ports'][0]"))
}

func TestEvaluate_Arithmetic(t *testing.T) {
	t.Parallel()
	eng := testEngine(map[string]cty.Value{"n": cty.NumberIntVal(7)})

	cases := []struct {
		src  string
		want cty.Value
	}{
		{"n + 3", cty.NumberIntVal(10)},
		{"n - 3", cty.NumberIntVal(4)},
		{"n * 2", cty.NumberIntVal(14)},
		{"n % 2", cty.NumberIntVal(1)},
		{"n // 2", cty.NumberIntVal(3)},
		{"'a' ~ 'b' ~ n", cty.StringVal("ab7")},
		{"'2' + 3", cty.NumberIntVal(5)},
	}
	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			v := evalLiteral(t, eng, tc.src)
			assert.True(t, tc.want.RawEquals(v), "want %#v, got %#v", tc.want, v)
		})
	}
}

func TestEvaluate_Tests(t *testing.T) {
	t.Parallel()
	eng := testEngine(map[string]cty.Value{
		"present": cty.StringVal("here"),
		"empty":   cty.NullVal(cty.DynamicPseudoType),
	})

	cases := []struct {
		src  string
		want bool
	}{
		{"present is defined", true},
		{"absent is defined", false},
		{"absent is undefined", true},
		{"present is not defined", false},
		{"empty is none", true},
		{"present is string", true},
		{"present is number", false},
	}
	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			v := evalLiteral(t, eng, tc.src)
			assert.Equal(t, cty.BoolVal(tc.want), v)
		})
	}
}

func TestEvaluate_Filters(t *testing.T) {
	t.Parallel()
	eng := testEngine(map[string]cty.Value{
		"list": cty.TupleVal([]cty.Value{cty.StringVal("a"), cty.StringVal("b")}),
		"doc":  cty.StringVal("key: value"),
	})

	assert.Equal(t, cty.StringVal("a,b"), evalLiteral(t, eng, "list | join(',')"))
	assert.Equal(t, cty.StringVal(`["a","b"]`), evalLiteral(t, eng, "list | to_json"))
	assert.Equal(t, cty.StringVal("aGVsbG8="), evalLiteral(t, eng, "'hello' | b64encode"))
	assert.Equal(t, cty.StringVal("hello"), evalLiteral(t, eng, "'aGVsbG8=' | b64decode"))
	assert.Equal(t, cty.StringVal("HELLO"), evalLiteral(t, eng, "'hello' | upper"))
	assert.Equal(t, cty.StringVal("hello"), evalLiteral(t, eng, "'HELLO' | lower"))
	assert.Equal(t, cty.NumberIntVal(2), evalLiteral(t, eng, "list | length"))
	assert.Equal(t, cty.NumberIntVal(5), evalLiteral(t, eng, "'hello' | length"))
	assert.Equal(t, cty.NumberIntVal(42), evalLiteral(t, eng, "'42' | int"))
	assert.Equal(t, cty.StringVal("h_llo"), evalLiteral(t, eng, `'hello' | regex_replace('e', '_')`))

	yaml := evalLiteral(t, eng, "doc | from_yaml")
	assert.Equal(t, cty.StringVal("value"), yaml.GetAttr("key"))

	parsed := evalLiteral(t, eng, `'{"a": 1}' | from_json`)
	assert.True(t, cty.NumberIntVal(1).RawEquals(parsed.GetAttr("a")))
}

func TestEvaluate_FilterChainingIsLeftToRight(t *testing.T) {
	t.Parallel()
	eng := testEngine(nil)

	v := evalLiteral(t, eng, "'hello' | upper | lower")
	assert.Equal(t, cty.StringVal("hello"), v)
}

func TestEvaluate_UnknownFilterSuggests(t *testing.T) {
	t.Parallel()
	eng := testEngine(nil)

	v, diags := eng.Evaluate("'x' | upperr", rng())
	require.True(t, diags.HasErrors())
	assert.Contains(t, diags[0].Detail, `"upper"`)
	assert.True(t, v.Unresolved)
}

func TestEvaluate_SyntaxError(t *testing.T) {
	t.Parallel()
	eng := testEngine(nil)

	v, diags := eng.Evaluate("1 +", rng())
	require.True(t, diags.HasErrors())
	assert.Equal(t, DiagBadExpression, diags[0].Summary)
	assert.True(t, v.Unresolved)
	assert.Equal(t, model.ReasonEvalError, v.Reason)
}

func TestInterpolate_QuotedCloserInsideExpression(t *testing.T) {
	t.Parallel()
	eng := testEngine(nil)

	v, diags := eng.Interpolate(`{{ "}}" }}`, rng())
	require.False(t, diags.HasErrors())
	require.True(t, v.IsLiteral())
	assert.Equal(t, cty.StringVal("}}"), v.Literal)
}
