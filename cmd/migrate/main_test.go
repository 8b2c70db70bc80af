package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct{ calls []string }

func (r *recorder) Up() error                    { r.calls = append(r.calls, "up"); return nil }
func (r *recorder) Down() error                  { r.calls = append(r.calls, "down"); return nil }
func (r *recorder) Version() (uint, bool, error) { r.calls = append(r.calls, "version"); return 1, false, nil }
func (r *recorder) Steps(n int) error {
	r.calls = append(r.calls, "steps")
	if n != -1 {
		return assert.AnError
	}
	return nil
}
func (r *recorder) Force(v int) error {
	r.calls = append(r.calls, "force")
	if v != 1 {
		return assert.AnError
	}
	return nil
}

func TestRunDispatches(t *testing.T) {
	r := &recorder{}
	require.NoError(t, run(r, []string{"up"}))
	require.NoError(t, run(r, []string{"down"}))
	require.NoError(t, run(r, []string{"version"}))
	require.NoError(t, run(r, []string{"steps", "-1"}))
	require.NoError(t, run(r, []string{"force", "1"}))
	assert.Equal(t, []string{"up", "down", "version", "steps", "force"}, r.calls)
}

func TestRunRejectsBadArguments(t *testing.T) {
	r := &recorder{}
	assert.Error(t, run(r, nil))
	assert.Error(t, run(r, []string{"sideways"}))
	assert.Error(t, run(r, []string{"steps"}))
	assert.Error(t, run(r, []string{"force", "x"}))
	assert.Empty(t, r.calls)
}
