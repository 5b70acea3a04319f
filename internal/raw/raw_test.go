package raw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestParse_MappingWithPositions(t *testing.T) {
	t.Parallel()

	src := []byte("name: demo\nport: 8080\nenabled: true\n")
	node, diags := Parse(src, "conf.yml")
	require.False(t, diags.HasErrors())
	require.NotNil(t, node)
	require.Equal(t, KindMapping, node.Kind)
	require.Len(t, node.Pairs, 3)

	assert.Equal(t, "name", node.Pairs[0].Key)
	assert.Equal(t, "conf.yml", node.Pairs[0].KeyRange.Filename)
	assert.Equal(t, 1, node.Pairs[0].KeyRange.Start.Line)
	assert.Equal(t, 2, node.Pairs[1].Value.Range.Start.Line)

	port := node.Get("port")
	require.NotNil(t, port)
	assert.Equal(t, "!!int", port.Tag)
	assert.Equal(t, "8080", port.Value)

	assert.Equal(t, "!!bool", node.Get("enabled").Tag)
	assert.Nil(t, node.Get("missing"))
}

func TestParse_SequenceAndNesting(t *testing.T) {
	t.Parallel()

	src := []byte("- a\n- [1, 2]\n- k: v\n")
	node, diags := Parse(src, "list.yml")
	require.False(t, diags.HasErrors())
	require.Equal(t, KindSequence, node.Kind)
	require.Len(t, node.Items, 3)

	assert.Equal(t, KindScalar, node.Items[0].Kind)
	assert.Equal(t, KindSequence, node.Items[1].Kind)
	assert.Equal(t, KindMapping, node.Items[2].Kind)
}

func TestParse_SyntaxErrorIsFatalForFile(t *testing.T) {
	t.Parallel()

	node, diags := Parse([]byte("key: [unclosed\n"), "bad.yml")
	assert.Nil(t, node)
	require.True(t, diags.HasErrors())
	assert.Equal(t, "Syntax error", diags[0].Summary)
	assert.Equal(t, "bad.yml", diags[0].Subject.Filename)
}

func TestParse_EmptyFile(t *testing.T) {
	t.Parallel()

	node, diags := Parse(nil, "empty.yml")
	assert.Nil(t, node)
	assert.False(t, diags.HasErrors())
}

func TestParse_JSONInput(t *testing.T) {
	t.Parallel()

	node, diags := Parse([]byte(`{"hosts": ["a", "b"]}`), "inv.json")
	require.False(t, diags.HasErrors())
	require.Equal(t, KindMapping, node.Kind)
	hosts := node.Get("hosts")
	require.NotNil(t, hosts)
	assert.Len(t, hosts.Items, 2)
}

func TestParse_AliasesAreFollowed(t *testing.T) {
	t.Parallel()

	src := []byte("base: &b\n  x: 1\nother: *b\n")
	node, diags := Parse(src, "alias.yml")
	require.False(t, diags.HasErrors())
	other := node.Get("other")
	require.NotNil(t, other)
	require.Equal(t, KindMapping, other.Kind)
	assert.Equal(t, "1", other.Get("x").Value)
}

func TestVaultTag(t *testing.T) {
	t.Parallel()

	src := []byte("secret: !vault |\n  $ANSIBLE_VAULT;1.1;AES256\n  6162636465\n")
	node, diags := Parse(src, "v.yml")
	require.False(t, diags.HasErrors())
	secret := node.Get("secret")
	require.NotNil(t, secret)
	assert.True(t, secret.IsVault())
	assert.Contains(t, secret.Value, "$ANSIBLE_VAULT;1.1;AES256")
}

func TestIsNull(t *testing.T) {
	t.Parallel()

	node, _ := Parse([]byte("explicit: null\nempty:\n"), "n.yml")
	assert.True(t, node.Get("explicit").IsNull())
	assert.True(t, node.Get("empty").IsNull())
}

func TestCtyValue(t *testing.T) {
	t.Parallel()

	src := []byte("str: hello\nnum: 3\nfloat: 1.5\nflag: true\nnothing: null\nlist: [1, two]\nmap:\n  inner: yes\n")
	node, diags := Parse(src, "c.yml")
	require.False(t, diags.HasErrors())

	v := node.CtyValue()
	assert.Equal(t, cty.StringVal("hello"), v.GetAttr("str"))
	assert.True(t, cty.NumberIntVal(3).RawEquals(v.GetAttr("num")))
	assert.True(t, cty.NumberFloatVal(1.5).RawEquals(v.GetAttr("float")))
	assert.Equal(t, cty.True, v.GetAttr("flag"))
	assert.True(t, v.GetAttr("nothing").IsNull())
	assert.Equal(t, 2, v.GetAttr("list").LengthInt())
}
