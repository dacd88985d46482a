package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/rgbd/internal/color"
	"github.com/dokzlo13/rgbd/internal/scheduler"
	"github.com/dokzlo13/rgbd/internal/sink"
)

func TestRegistry(t *testing.T) {
	t.Parallel()

	mem := sink.NewMemory()
	sched := scheduler.NewManual()
	desk := New("desk", Pins{Red: 1, Green: 2, Blue: 3}, mem, sched)
	porch := New("porch", Pins{Red: 4, Green: 5, Blue: 6}, mem, sched)

	r := NewRegistry()
	require.NoError(t, r.Add(desk))
	require.NoError(t, r.Add(porch))
	assert.Error(t, r.Add(New("desk", Pins{Red: 7, Green: 8, Blue: 9}, mem, sched)))

	got, err := r.Get("porch")
	require.NoError(t, err)
	assert.Same(t, porch, got)

	_, err = r.Get("garage")
	assert.ErrorIs(t, err, ErrUnknownChannel)

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "desk", all[0].Name())

	require.NoError(t, desk.SetRGB(color.New(1, 2, 3), nil))
	snaps := r.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, 3.0, snaps[0].Blue)

	require.NoError(t, r.CloseAll())
	assert.True(t, desk.Closed())
	assert.True(t, porch.Closed())
	assert.True(t, mem.Stopped(6))
}
