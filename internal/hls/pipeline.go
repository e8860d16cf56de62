package hls

import (
	"errors"
	"fmt"
)

// PipelineState is the position of a SegmentPipeline in the
// simulate/reset/stream protocol.
type PipelineState int

const (
	StateUninitialized PipelineState = iota
	StateSimulated
	StateReady
	StateStreaming
	StateDone
	StateClosed
)

func (s PipelineState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateSimulated:
		return "simulated"
	case StateReady:
		return "ready"
	case StateStreaming:
		return "streaming"
	case StateDone:
		return "done"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("PipelineState(%d)", int(s))
	}
}

// SegmentPipeline drives a Muxer through the two-phase protocol:
//
//	Uninitialized -> Simulate -> Simulated -> Reset -> Ready -> Step... -> Done
//
// When the muxer cannot simulate, Simulate is skipped and Reset moves
// Uninitialized straight to Ready. Reset from Done starts another pass.
// A SegmentPipeline belongs to a single request and is not safe for
// concurrent use.
type SegmentPipeline struct {
	muxer     Muxer
	state     PipelineState
	size      int64
	simulated bool
	written   int64
}

// NewSegmentPipeline wraps an initialized muxer.
func NewSegmentPipeline(m Muxer) *SegmentPipeline {
	return &SegmentPipeline{muxer: m}
}

// State returns the current state.
func (p *SegmentPipeline) State() PipelineState {
	return p.state
}

// SimulationSupported reports whether the muxer can compute the size up front.
func (p *SegmentPipeline) SimulationSupported() bool {
	return p.muxer.SimulationSupported()
}

// Simulate runs the dry pass and records the segment size.
func (p *SegmentPipeline) Simulate() (int64, error) {
	if p.state != StateUninitialized {
		return 0, fmt.Errorf("simulate in state %s: %w", p.state, ErrInvalidState)
	}
	if !p.muxer.SimulationSupported() {
		return 0, fmt.Errorf("simulation not supported: %w", ErrInvalidState)
	}
	size, err := p.muxer.SimulateSegmentSize()
	if err != nil {
		p.state = StateClosed
		return 0, builderError("simulate segment size", err)
	}
	p.size = size
	p.simulated = true
	p.state = StateSimulated
	return size, nil
}

// EstimatedSize returns the simulated size and whether one is known.
func (p *SegmentPipeline) EstimatedSize() (int64, bool) {
	return p.size, p.simulated
}

// Written returns the bytes produced by the current streaming pass.
func (p *SegmentPipeline) Written() int64 {
	return p.written
}

// Reset rewinds the muxer to the start of the segment.
func (p *SegmentPipeline) Reset() error {
	switch p.state {
	case StateUninitialized:
		if p.muxer.SimulationSupported() {
			return fmt.Errorf("reset before simulate: %w", ErrInvalidState)
		}
		p.state = StateReady
		p.written = 0
		return nil
	case StateSimulated, StateStreaming, StateDone:
	default:
		return fmt.Errorf("reset in state %s: %w", p.state, ErrInvalidState)
	}
	if !p.muxer.SimulationSupported() {
		return fmt.Errorf("reset without simulation support: %w", ErrInvalidState)
	}
	if err := p.muxer.ResetSimulation(); err != nil {
		p.state = StateClosed
		return builderError("reset simulation", err)
	}
	p.state = StateReady
	p.written = 0
	return nil
}

// Step produces the next chunk. It reports done once the segment is complete.
// A sink failure closes the pipeline and is returned as is.
func (p *SegmentPipeline) Step() (done bool, err error) {
	if p.state != StateReady && p.state != StateStreaming {
		return false, fmt.Errorf("step in state %s: %w", p.state, ErrInvalidState)
	}
	p.state = StateStreaming
	done, err = p.muxer.Process()
	if err != nil {
		p.state = StateClosed
		if errors.Is(err, ErrSinkClosed) {
			return false, err
		}
		return false, builderError("process segment", err)
	}
	if done {
		p.state = StateDone
	}
	return done, nil
}

// Close releases the pipeline. Further calls fail with ErrInvalidState.
func (p *SegmentPipeline) Close() {
	p.state = StateClosed
	p.muxer = closedMuxer{}
}

// countingSink records how many bytes pass through to the caller's sink.
type countingSink struct {
	next Sink
	p    *SegmentPipeline
}

func (s *countingSink) WriteTail(b []byte) error {
	if err := s.next.WriteTail(b); err != nil {
		return err
	}
	s.p.written += int64(len(b))
	return nil
}

type closedMuxer struct{}

func (closedMuxer) SimulationSupported() bool { return false }

func (closedMuxer) SimulateSegmentSize() (int64, error) { return 0, ErrInvalidState }

func (closedMuxer) ResetSimulation() error { return ErrInvalidState }

func (closedMuxer) Process() (bool, error) { return false, ErrInvalidState }
