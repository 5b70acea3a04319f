package taskid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "task_0", New(0).String())
	assert.Equal(t, "common.task_3", New(3, "common").String())
	assert.Equal(t, "webserver.setup.task_1", New(1, "webserver", "setup").String())
}

func TestParse_RoundTrip(t *testing.T) {
	t.Parallel()

	cases := []string{"task_0", "task_42", "common.task_3", "a.b-c.task_9"}
	for _, raw := range cases {
		t.Run(raw, func(t *testing.T) {
			id, err := Parse(raw)
			require.NoError(t, err)
			assert.Equal(t, raw, id.String())
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	cases := []string{"", "task_", "task_x", "nope", "bad!.task_1", "task_1.extra"}
	for _, raw := range cases {
		t.Run(raw, func(t *testing.T) {
			_, err := Parse(raw)
			assert.Error(t, err)
		})
	}
}

func TestQualify(t *testing.T) {
	t.Parallel()

	id := New(2, "inner")
	assert.Equal(t, "outer.inner.task_2", id.Qualify("outer").String())
	assert.Equal(t, "inner.task_2", id.String(), "Qualify must not mutate the receiver")
}

func TestStem(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "common", Stem("tasks/common.yml"))
	assert.Equal(t, "setup", Stem("setup.yaml"))
	assert.Equal(t, "db-init", Stem("roles/db-init"))
	assert.Equal(t, "a_b", Stem("a b.yml"))
	assert.Equal(t, "include", Stem(""))
}
