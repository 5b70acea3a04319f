package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestStack_LookupFirstMatchWins(t *testing.T) {
	t.Parallel()

	stack := NewStack()
	stack.Push(FromMap("group", map[string]cty.Value{
		"x": cty.NumberIntVal(1),
		"y": cty.StringVal("from-group"),
	}))
	stack.Push(FromMap("host", map[string]cty.Value{
		"x": cty.NumberIntVal(2),
	}))

	v, ok := stack.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, cty.NumberIntVal(2), v)

	v, ok = stack.Lookup("y")
	require.True(t, ok)
	assert.Equal(t, cty.StringVal("from-group"), v)

	_, ok = stack.Lookup("z")
	assert.False(t, ok)
}

func TestStack_PopRestoresShadowedBindings(t *testing.T) {
	t.Parallel()

	stack := NewStack()
	stack.Push(FromMap("base", map[string]cty.Value{"x": cty.NumberIntVal(1)}))
	stack.Push(FromMap("overlay", map[string]cty.Value{"x": cty.NumberIntVal(2)}))

	popped, err := stack.Pop()
	require.NoError(t, err)
	assert.Equal(t, "overlay", popped.Name())

	v, ok := stack.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, cty.NumberIntVal(1), v, "popping must not mutate earlier overlays")
}

func TestStack_PopEmpty(t *testing.T) {
	t.Parallel()

	stack := NewStack()
	_, err := stack.Pop()
	require.ErrorIs(t, err, ErrUnderflow)
}

func TestStack_FlattenAbove(t *testing.T) {
	t.Parallel()

	stack := NewStack()
	stack.Push(FromMap("play", map[string]cty.Value{"a": cty.NumberIntVal(1)}))
	stack.Push(FromMap("include", map[string]cty.Value{"b": cty.NumberIntVal(2)}))
	stack.Push(FromMap("nested", map[string]cty.Value{
		"b": cty.NumberIntVal(3),
		"c": cty.NumberIntVal(4),
	}))

	flat := stack.FlattenAbove(1)
	assert.NotContains(t, flat, "a", "overlays at or below the base depth are excluded")
	assert.Equal(t, cty.NumberIntVal(3), flat["b"], "upper overlays shadow lower ones")
	assert.Equal(t, cty.NumberIntVal(4), flat["c"])

	full := stack.Flatten()
	assert.Equal(t, cty.NumberIntVal(1), full["a"])
}

func TestStack_Names(t *testing.T) {
	t.Parallel()

	stack := NewStack()
	stack.Push(FromMap("one", map[string]cty.Value{"beta": cty.True}))
	stack.Push(FromMap("two", map[string]cty.Value{"alpha": cty.True, "beta": cty.False}))

	assert.Equal(t, []string{"alpha", "beta"}, stack.Names())
}
