package hls

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMuxer writes its chunks one per Process call.
type fakeMuxer struct {
	chunks    [][]byte
	simulate  bool
	sink      Sink
	pos       int
	resets    int
	processed int
}

func (m *fakeMuxer) SimulationSupported() bool { return m.simulate }

func (m *fakeMuxer) SimulateSegmentSize() (int64, error) {
	var n int64
	for _, c := range m.chunks {
		n += int64(len(c))
	}
	m.pos = len(m.chunks)
	return n, nil
}

func (m *fakeMuxer) ResetSimulation() error {
	m.pos = 0
	m.resets++
	return nil
}

func (m *fakeMuxer) Process() (bool, error) {
	if m.pos >= len(m.chunks) {
		return true, nil
	}
	m.processed++
	if err := m.sink.WriteTail(m.chunks[m.pos]); err != nil {
		return false, err
	}
	m.pos++
	return m.pos == len(m.chunks), nil
}

func newFakeMuxer(simulate bool, sink Sink) *fakeMuxer {
	return &fakeMuxer{
		chunks:   [][]byte{[]byte("abc"), []byte("defgh"), []byte("ij")},
		simulate: simulate,
		sink:     sink,
	}
}

func drain(t *testing.T, p *SegmentPipeline) {
	t.Helper()
	for i := 0; i < 100; i++ {
		done, err := p.Step()
		require.NoError(t, err)
		if done {
			return
		}
	}
	t.Fatal("pipeline never finished")
}

func TestSegmentPipeline_simulate_then_stream(t *testing.T) {
	var out bytes.Buffer
	p := &SegmentPipeline{}
	m := newFakeMuxer(true, &countingSink{next: SinkFunc(func(b []byte) error {
		out.Write(b)
		return nil
	}), p: p})
	p.muxer = m

	assert.Equal(t, StateUninitialized, p.State())
	_, known := p.EstimatedSize()
	assert.False(t, known)

	_, err := p.Step()
	assert.ErrorIs(t, err, ErrInvalidState, "step before reset")

	size, err := p.Simulate()
	require.NoError(t, err)
	assert.Equal(t, int64(10), size)
	assert.Equal(t, StateSimulated, p.State())
	assert.Zero(t, out.Len(), "simulation must not write")

	require.NoError(t, p.Reset())
	assert.Equal(t, StateReady, p.State())

	drain(t, p)
	assert.Equal(t, StateDone, p.State())
	assert.Equal(t, "abcdefghij", out.String())
	assert.Equal(t, size, p.Written())

	_, err = p.Step()
	assert.ErrorIs(t, err, ErrInvalidState, "step after done")
}

func TestSegmentPipeline_repeated_cycles(t *testing.T) {
	var out bytes.Buffer
	p := &SegmentPipeline{}
	p.muxer = newFakeMuxer(true, &countingSink{next: SinkFunc(func(b []byte) error {
		out.Write(b)
		return nil
	}), p: p})

	size, err := p.Simulate()
	require.NoError(t, err)

	var first string
	for cycle := 0; cycle < 3; cycle++ {
		out.Reset()
		require.NoError(t, p.Reset())
		drain(t, p)
		assert.Equal(t, size, int64(out.Len()), "cycle %d", cycle)
		assert.Equal(t, size, p.Written(), "cycle %d", cycle)
		if cycle == 0 {
			first = out.String()
		}
		assert.Equal(t, first, out.String(), "cycle %d", cycle)
	}
}

func TestSegmentPipeline_reset_mid_stream(t *testing.T) {
	var out bytes.Buffer
	p := &SegmentPipeline{}
	p.muxer = newFakeMuxer(true, &countingSink{next: SinkFunc(func(b []byte) error {
		out.Write(b)
		return nil
	}), p: p})

	_, err := p.Simulate()
	require.NoError(t, err)
	require.NoError(t, p.Reset())

	done, err := p.Step()
	require.NoError(t, err)
	require.False(t, done)
	assert.Equal(t, StateStreaming, p.State())

	out.Reset()
	require.NoError(t, p.Reset())
	assert.Zero(t, p.Written())
	drain(t, p)
	assert.Equal(t, "abcdefghij", out.String())
}

func TestSegmentPipeline_without_simulation(t *testing.T) {
	var out bytes.Buffer
	p := &SegmentPipeline{}
	p.muxer = newFakeMuxer(false, &countingSink{next: SinkFunc(func(b []byte) error {
		out.Write(b)
		return nil
	}), p: p})

	assert.False(t, p.SimulationSupported())
	_, err := p.Simulate()
	assert.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, p.Reset())
	assert.Equal(t, StateReady, p.State())
	_, known := p.EstimatedSize()
	assert.False(t, known)

	drain(t, p)
	assert.Equal(t, "abcdefghij", out.String())

	assert.ErrorIs(t, p.Reset(), ErrInvalidState, "no second pass without simulation")
}

func TestSegmentPipeline_reset_before_simulate(t *testing.T) {
	p := NewSegmentPipeline(newFakeMuxer(true, SinkFunc(func([]byte) error { return nil })))
	assert.ErrorIs(t, p.Reset(), ErrInvalidState)
}

func TestSegmentPipeline_sink_closed(t *testing.T) {
	p := &SegmentPipeline{}
	calls := 0
	p.muxer = newFakeMuxer(true, &countingSink{next: SinkFunc(func(b []byte) error {
		calls++
		if calls == 2 {
			return ErrSinkClosed
		}
		return nil
	}), p: p})

	_, err := p.Simulate()
	require.NoError(t, err)
	require.NoError(t, p.Reset())

	_, err = p.Step()
	require.NoError(t, err)
	_, err = p.Step()
	assert.ErrorIs(t, err, ErrSinkClosed)
	assert.Equal(t, StateClosed, p.State())
	assert.Equal(t, int64(3), p.Written())

	_, err = p.Step()
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestSegmentPipeline_close(t *testing.T) {
	m := newFakeMuxer(true, SinkFunc(func([]byte) error { return nil }))
	p := NewSegmentPipeline(m)
	_, err := p.Simulate()
	require.NoError(t, err)

	p.Close()
	assert.Equal(t, StateClosed, p.State())
	assert.ErrorIs(t, p.Reset(), ErrInvalidState)
	_, err = p.Step()
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Zero(t, m.processed)
}
