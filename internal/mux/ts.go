package mux

import (
	"encoding/binary"
	"strings"

	"hls-packager/internal/media"
)

// MPEG-TS constants
const (
	// PacketSize is the size of a transport stream packet.
	PacketSize = 188

	syncByte = 0x47

	pidPAT      = 0x0000
	pidPMT      = 0x1000
	pidFirstES  = 0x0100
	tableIDPAT  = 0x00
	tableIDPMT  = 0x02
	programNum  = 0x0001
	transportID = 0x0001

	streamTypeH264 = 0x1B
	streamTypeHEVC = 0x24
	streamTypeAAC  = 0x0F
	streamTypeMP3  = 0x03

	streamIDVideo = 0xE0
	streamIDAudio = 0xC0

	// pesClockRate is the 90 kHz clock of PTS/DTS/PCR base.
	pesClockRate = 90000
)

// streamType returns the PMT stream_type of a track from its codec string.
func streamType(t *media.Track) byte {
	codec := strings.ToLower(t.Codec)
	switch {
	case strings.HasPrefix(codec, "hvc1"), strings.HasPrefix(codec, "hev1"):
		return streamTypeHEVC
	case strings.HasPrefix(codec, "mp4a.40.34"), strings.HasPrefix(codec, "mp3"):
		return streamTypeMP3
	case strings.HasPrefix(codec, "mp4a"):
		return streamTypeAAC
	case t.MediaType == media.MediaTypeVideo:
		return streamTypeH264
	default:
		return streamTypeAAC
	}
}

// packetWriter splits a payload into transport stream packets.
type packetWriter struct {
	buf []byte
}

// writePayload appends the packets carrying head followed by body on pid.
// pcr, when not nil, is placed in the adaptation field of the first packet.
// cc is updated.
func (w *packetWriter) writePayload(pid uint16, cc *byte, head, body []byte, pcr *uint64, randomAccess bool) {
	first := true
	for first || len(head)+len(body) > 0 {
		var pkt [PacketSize]byte
		pkt[0] = syncByte
		pidField := pid & 0x1FFF
		if first {
			pidField |= 0x4000 // payload_unit_start_indicator
		}
		binary.BigEndian.PutUint16(pkt[1:3], pidField)

		var af []byte
		if first && pcr != nil {
			flags := byte(0x10)
			if randomAccess {
				flags |= 0x40
			}
			af = append(af, 7, flags)
			af = appendPCR(af, *pcr)
		}

		space := PacketSize - 4 - len(af)
		n := len(head) + len(body)
		if n > space {
			n = space
		}
		if stuff := PacketSize - 4 - n; stuff > len(af) {
			af = padAdaptationField(af, stuff)
		}

		control := byte(0x10)
		if len(af) > 0 {
			control = 0x30
		}
		pkt[3] = control | (*cc & 0x0F)
		*cc = (*cc + 1) & 0x0F

		pos := 4 + copy(pkt[4:], af)
		end := pos + n
		c := copy(pkt[pos:end], head)
		head = head[c:]
		pos += c
		c = copy(pkt[pos:end], body)
		body = body[c:]
		w.buf = append(w.buf, pkt[:]...)
		first = false
	}
}

// pcrFieldSize is the adaptation field carrying a PCR, length byte included.
const pcrFieldSize = 8

// packetCount returns how many packets writePayload emits for a payload of
// n bytes.
func packetCount(n int, withPCR bool) int {
	space := PacketSize - 4
	if withPCR {
		space -= pcrFieldSize
	}
	if n <= space {
		return 1
	}
	rest := n - space
	return 1 + (rest+PacketSize-5)/(PacketSize-4)
}

// padAdaptationField grows af to total bytes (length byte included).
func padAdaptationField(af []byte, total int) []byte {
	if len(af) == 0 {
		if total == 1 {
			return []byte{0}
		}
		af = []byte{0, 0x00}
	}
	for len(af) < total {
		af = append(af, 0xFF)
	}
	af[0] = byte(total - 1)
	return af
}

func appendPCR(b []byte, base uint64) []byte {
	base &= 0x1FFFFFFFF
	return append(b,
		byte(base>>25),
		byte(base>>17),
		byte(base>>9),
		byte(base>>1),
		byte(base<<7)|0x7E,
		0x00,
	)
}

// writeSection appends one PSI section as a single packet padded with 0xFF.
func (w *packetWriter) writeSection(pid uint16, cc *byte, section []byte) {
	var pkt [PacketSize]byte
	for i := range pkt {
		pkt[i] = 0xFF
	}
	pkt[0] = syncByte
	binary.BigEndian.PutUint16(pkt[1:3], 0x4000|(pid&0x1FFF))
	pkt[3] = 0x10 | (*cc & 0x0F)
	*cc = (*cc + 1) & 0x0F
	pkt[4] = 0x00 // pointer_field
	copy(pkt[5:], section)
	w.buf = append(w.buf, pkt[:]...)
}

func patSection() []byte {
	s := []byte{
		tableIDPAT,
		0xB0, 13,
		byte(transportID >> 8), byte(transportID),
		0xC1, 0x00, 0x00,
		byte(programNum >> 8), byte(programNum),
		byte(0xE0 | pidPMT>>8), byte(pidPMT & 0xFF),
	}
	return binary.BigEndian.AppendUint32(s, crc32MPEG(s))
}

func pmtSection(streams []*stream) []byte {
	pcrPID := uint16(0x1FFF)
	if len(streams) > 0 {
		pcrPID = streams[0].pid
	}
	length := 13 + 5*len(streams)
	s := []byte{
		tableIDPMT,
		byte(0xB0 | length>>8), byte(length),
		byte(programNum >> 8), byte(programNum),
		0xC1, 0x00, 0x00,
		byte(0xE0 | pcrPID>>8), byte(pcrPID),
		0xF0, 0x00,
	}
	for _, st := range streams {
		s = append(s, st.streamType, byte(0xE0|st.pid>>8), byte(st.pid), 0xF0, 0x00)
	}
	return binary.BigEndian.AppendUint32(s, crc32MPEG(s))
}

// pesHeaderSize is len(pesHeader(...)) for the given timestamps.
func pesHeaderSize(pts, dts uint64) int {
	if dts != pts {
		return 19
	}
	return 14
}

// pesHeader builds the PES header of one frame.
func pesHeader(streamID byte, payloadLen int, pts, dts uint64) []byte {
	withDTS := dts != pts
	hdrLen := 5
	flags := byte(0x80)
	if withDTS {
		hdrLen = 10
		flags = 0xC0
	}

	length := 0
	if streamID != streamIDVideo {
		if l := payloadLen + 3 + hdrLen; l <= 0xFFFF {
			length = l
		}
	}

	h := []byte{0x00, 0x00, 0x01, streamID, byte(length >> 8), byte(length), 0x80, flags, byte(hdrLen)}
	h = appendTimestamp(h, flags>>6, pts)
	if withDTS {
		h = appendTimestamp(h, 0x01, dts)
	}
	return h
}

func appendTimestamp(b []byte, marker byte, ts uint64) []byte {
	ts &= 0x1FFFFFFFF
	return append(b,
		marker<<4|byte(ts>>29)&0x0E|0x01,
		byte(ts>>22),
		byte(ts>>14)&0xFE|0x01,
		byte(ts>>7),
		byte(ts<<1)|0x01,
	)
}

var crcTable = func() [256]uint32 {
	var t [256]uint32
	for i := range t {
		c := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if c&0x80000000 != 0 {
				c = c<<1 ^ 0x04C11DB7
			} else {
				c <<= 1
			}
		}
		t[i] = c
	}
	return t
}()

// crc32MPEG is the CRC-32/MPEG-2 used by PSI sections.
func crc32MPEG(data []byte) uint32 {
	crc := uint32(0xFFFFFFFF)
	for _, b := range data {
		crc = crc<<8 ^ crcTable[byte(crc>>24)^b]
	}
	return crc
}
