package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestValue_IsTrue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"bool true", LiteralValue(cty.True), true},
		{"bool false", LiteralValue(cty.False), false},
		{"nonempty string", LiteralValue(cty.StringVal("yes")), true},
		{"empty string", LiteralValue(cty.StringVal("")), false},
		{"string no", LiteralValue(cty.StringVal("no")), false},
		{"string off", LiteralValue(cty.StringVal("off")), false},
		{"string zero", LiteralValue(cty.StringVal("0")), false},
		{"number nonzero", LiteralValue(cty.NumberIntVal(2)), true},
		{"number zero", LiteralValue(cty.NumberIntVal(0)), false},
		{"null", LiteralValue(cty.NullVal(cty.DynamicPseudoType)), false},
		{"empty tuple", LiteralValue(cty.EmptyTupleVal), false},
		{"nonempty tuple", LiteralValue(cty.TupleVal([]cty.Value{cty.True})), true},
		{"unresolved", UnresolvedValue("{{ ansible_facts }}", ReasonRuntimeFact), false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.v.IsTrue())
		})
	}
}

func TestValue_MarshalJSON(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(LiteralValue(cty.StringVal("hello")))
	require.NoError(t, err)
	assert.JSONEq(t, `"hello"`, string(b))

	b, err = json.Marshal(LiteralValue(cty.NumberIntVal(8080)))
	require.NoError(t, err)
	assert.JSONEq(t, `8080`, string(b))

	b, err = json.Marshal(LiteralValue(cty.NullVal(cty.DynamicPseudoType)))
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))

	b, err = json.Marshal(UnresolvedValue("{{ ansible_os_family }}", ReasonRuntimeFact))
	require.NoError(t, err)
	assert.JSONEq(t, `{"__unresolved__":"{{ ansible_os_family }}","reason":"runtime-fact"}`, string(b))
}

func TestParsedPlaybook_TaskByID(t *testing.T) {
	t.Parallel()

	pb := &ParsedPlaybook{
		Plays: []*Play{{
			Tasks:    []*Task{{ID: "task_0"}, {ID: "common.task_1"}},
			Handlers: []*Handler{{Task: Task{ID: "handler.task_2", Name: "restart"}}},
		}},
	}
	require.NotNil(t, pb.TaskByID("common.task_1"))
	require.NotNil(t, pb.TaskByID("handler.task_2"))
	assert.Nil(t, pb.TaskByID("task_9"))

	h := pb.Plays[0].Handler("restart")
	require.NotNil(t, h)
	assert.Equal(t, "handler.task_2", h.ID)
	assert.Nil(t, pb.Plays[0].Handler("Restart"), "handler lookup is case-sensitive")
}
