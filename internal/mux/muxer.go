package mux

import (
	"fmt"
	"sort"

	"hls-packager/internal/hls"
	"hls-packager/internal/media"
)

type stream struct {
	track      *media.Track
	pid        uint16
	streamID   byte
	streamType byte
	first      int // index in track.Frames of the segment's first frame
	frames     []media.Frame
	cc         byte
}

type frameRef struct {
	stream int
	frame  int
	dts    uint64 // 90 kHz
}

// frameInfo is reported to onFrame during simulation.
type frameInfo struct {
	stream *stream
	index  int // index in track.Frames
	offset int64
	size   int64
}

// Muxer writes one MPEG-TS segment of the selected tracks. It implements
// hls.Muxer.
type Muxer struct {
	params  hls.MuxerParams
	streams []*stream
	order   []frameRef
	w       packetWriter

	patCC, pmtCC byte
	pos          int
	headerDone   bool
	finished     bool

	segCipher    *segmentCipher
	sampleCipher *sampleCipher

	simulating bool
	plain      int64 // plaintext bytes emitted in the current pass
	onFrame    func(frameInfo)
}

// New allocates a muxer for params.SegmentIndex. It is a hls.MuxerFactory.
func New(p hls.MuxerParams) (hls.Muxer, error) {
	return newMuxer(p)
}

func newMuxer(p hls.MuxerParams) (*Muxer, error) {
	if p.Metadata == nil || len(p.Metadata.Tracks) == 0 {
		return nil, hls.NewStatusError(hls.StatusBadRequest, "no tracks selected")
	}
	if count := p.Segmenter.SegmentCount(p.Metadata); p.SegmentIndex >= count {
		return nil, hls.NewStatusError(hls.StatusNotFound, "segment %d out of range (%d segments)", p.SegmentIndex, count)
	}

	m := &Muxer{params: p}
	var videoID, audioID byte
	for i := range p.Metadata.Tracks {
		t := &p.Metadata.Tracks[i]
		start, end := p.Segmenter.FrameRange(t, p.SegmentIndex)
		st := &stream{
			track:      t,
			pid:        uint16(pidFirstES + i),
			streamType: streamType(t),
			first:      start,
			frames:     t.Frames[start:end],
		}
		if t.MediaType == media.MediaTypeVideo {
			st.streamID = streamIDVideo + videoID
			videoID++
		} else {
			st.streamID = streamIDAudio + audioID
			audioID++
		}
		m.streams = append(m.streams, st)
	}
	m.order = frameOrder(m.streams, p.Config.InterleaveFrames)

	var err error
	switch p.Encryption.Method {
	case hls.EncryptionAES128:
		m.segCipher, err = newSegmentCipher(p.Encryption.Key, p.Encryption.IV)
	case hls.EncryptionSampleAES:
		m.sampleCipher, err = newSampleCipher(p.Encryption.Key, p.Encryption.IV)
	}
	if err != nil {
		return nil, hls.NewStatusError(hls.StatusUnexpected, "init encryption: %v", err)
	}
	return m, nil
}

// frameOrder lists the frames of all streams in output order: by decode
// time when interleaving, otherwise one stream after another.
func frameOrder(streams []*stream, interleave bool) []frameRef {
	n := 0
	for _, st := range streams {
		n += len(st.frames)
	}
	order := make([]frameRef, 0, n)
	for si, st := range streams {
		clock := media.FrameTime(st.track, st.first)
		for fi, f := range st.frames {
			order = append(order, frameRef{stream: si, frame: fi, dts: toPES(clock, st.track.Timescale)})
			clock += uint64(f.Duration)
		}
	}
	if interleave {
		sort.SliceStable(order, func(i, j int) bool { return order[i].dts < order[j].dts })
	}
	return order
}

func toPES(t uint64, timescale uint32) uint64 {
	if timescale == 0 {
		return 0
	}
	return t * pesClockRate / uint64(timescale)
}

// SimulationSupported implements hls.Muxer. Interleaved output of an
// encrypted stream is not simulated.
func (m *Muxer) SimulationSupported() bool {
	return !(m.params.Config.InterleaveFrames && m.params.Encryption.Enabled())
}

// SimulateSegmentSize implements hls.Muxer. It reads no frame data and
// writes nothing to the sink.
func (m *Muxer) SimulateSegmentSize() (int64, error) {
	if !m.SimulationSupported() {
		return 0, hls.NewStatusError(hls.StatusUnexpected, "simulation not supported")
	}
	m.rewind()
	m.simulating = true
	defer func() { m.simulating = false }()

	for {
		done, err := m.Process()
		if err != nil {
			return 0, err
		}
		if done {
			break
		}
	}
	if m.segCipher != nil {
		return paddedSize(m.plain), nil
	}
	return m.plain, nil
}

// ResetSimulation implements hls.Muxer.
func (m *Muxer) ResetSimulation() error {
	m.rewind()
	return nil
}

func (m *Muxer) rewind() {
	m.pos = 0
	m.headerDone = false
	m.finished = false
	m.patCC, m.pmtCC = 0, 0
	m.plain = 0
	for _, st := range m.streams {
		st.cc = 0
	}
	if m.segCipher != nil {
		m.segCipher.reset()
	}
}

// Process implements hls.Muxer. The first call writes PAT and PMT, each
// following call one frame, and the last call flushes the cipher.
func (m *Muxer) Process() (bool, error) {
	if m.finished {
		return true, nil
	}

	m.w.buf = m.w.buf[:0]
	switch {
	case !m.headerDone:
		m.w.writeSection(pidPAT, &m.patCC, patSection())
		m.w.writeSection(pidPMT, &m.pmtCC, pmtSection(m.streams))
		m.headerDone = true
	case m.pos < len(m.order):
		if err := m.writeFrame(m.order[m.pos]); err != nil {
			return false, err
		}
		m.pos++
	default:
		m.finished = true
		if m.segCipher != nil && !m.simulating {
			return true, m.emit(m.segCipher.final())
		}
		return true, nil
	}
	return false, m.emitPlain(m.w.buf)
}

func (m *Muxer) writeFrame(ref frameRef) error {
	st := m.streams[ref.stream]
	f := st.frames[ref.frame]
	index := st.first + ref.frame

	dts := ref.dts
	pts := dts + toPES(uint64(f.PTSDelay), st.track.Timescale)
	var pcr *uint64
	if ref.stream == 0 {
		pcr = &dts
	}

	if m.simulating {
		count := packetCount(pesHeaderSize(pts, dts)+int(f.Size), pcr != nil)
		size := int64(count) * PacketSize
		st.cc = (st.cc + byte(count)) & 0x0F
		if m.onFrame != nil {
			m.onFrame(frameInfo{stream: st, index: index, offset: m.plain, size: size})
		}
		m.plain += size
		return nil
	}

	if m.params.Frames == nil {
		return hls.NewStatusError(hls.StatusUnexpected, "no frame reader")
	}
	data, err := m.params.Frames.ReadFrame(m.params.Metadata.DataPath, f.Offset, f.Size)
	if err != nil {
		return hls.NewStatusError(hls.StatusBadData, "read frame %d of track %d: %v", index, st.track.Index, err)
	}
	if len(data) != int(f.Size) {
		return hls.NewStatusError(hls.StatusBadData, "short frame %d of track %d", index, st.track.Index)
	}
	if m.sampleCipher != nil {
		data = append([]byte(nil), data...)
		m.sampleCipher.encryptFrame(data, st.track.MediaType == media.MediaTypeVideo)
	}

	m.w.writePayload(st.pid, &st.cc, pesHeader(st.streamID, len(data), pts, dts), data, pcr, f.KeyFrame)
	return nil
}

// emitPlain routes plaintext through the segment cipher when one is set.
func (m *Muxer) emitPlain(b []byte) error {
	m.plain += int64(len(b))
	if m.simulating {
		return nil
	}
	if m.segCipher != nil {
		b = m.segCipher.update(b)
	}
	return m.emit(b)
}

func (m *Muxer) emit(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if m.params.Sink == nil {
		return hls.NewStatusError(hls.StatusUnexpected, "no sink")
	}
	if err := m.params.Sink.WriteTail(b); err != nil {
		return fmt.Errorf("write segment: %w", err)
	}
	return nil
}
