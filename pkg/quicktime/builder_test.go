package quicktime

import (
	"bytes"
	"encoding/binary"

	"github.com/zurustar/hecore/pkg/logger"
)

// mkAtom builds an atom with a correct size header.
func mkAtom(tag string, payload ...[]byte) []byte {
	body := bytes.Join(payload, nil)
	b := binary.BigEndian.AppendUint32(nil, uint32(8+len(body)))
	b = append(b, tag...)
	return append(b, body...)
}

// rawAtom builds an atom whose header declares size regardless of payload.
func rawAtom(size uint32, tag string, payload ...[]byte) []byte {
	b := binary.BigEndian.AppendUint32(nil, size)
	b = append(b, tag...)
	return append(b, bytes.Join(payload, nil)...)
}

func u16(vs ...uint16) []byte {
	var b []byte
	for _, v := range vs {
		b = binary.BigEndian.AppendUint16(b, v)
	}
	return b
}

func u32(vs ...uint32) []byte {
	var b []byte
	for _, v := range vs {
		b = binary.BigEndian.AppendUint32(b, v)
	}
	return b
}

func zeros(n int) []byte { return make([]byte, n) }

func fullBox(version byte) []byte { return []byte{version, 0, 0, 0} }

func pascal(s string, width int) []byte {
	b := append([]byte{byte(len(s))}, s...)
	if width > len(b) {
		b = append(b, zeros(width-len(b))...)
	}
	return b
}

var identityMatrix = []uint32{0x10000, 0, 0, 0, 0x10000, 0, 0, 0, 0x40000000}

func mvhdAtom(timeScale, duration uint32, matrix []uint32) []byte {
	return mkAtom("mvhd",
		fullBox(0), zeros(8), u32(timeScale, duration),
		u32(0x10000), u16(0x100), zeros(10),
		u32(matrix...),
		zeros(7*4),
	)
}

func tkhdAtom(duration uint32) []byte {
	return mkAtom("tkhd",
		fullBox(0), zeros(8), u32(1, 0, duration),
		zeros(8), u16(0, 0, 0x100, 0),
		u32(identityMatrix...),
		u32(320<<16, 240<<16),
	)
}

func mdhdAtom(timeScale, duration uint32) []byte {
	return mkAtom("mdhd", fullBox(0), zeros(8), u32(timeScale, duration), u16(0, 0))
}

func hdlrAtom(subtype string) []byte {
	return mkAtom("hdlr", fullBox(0), []byte("mhlr"), []byte(subtype), zeros(12), pascal("Handler", 0))
}

type edit struct {
	dur       uint32
	mediaTime int32
	rate      uint32
}

func elstAtom(edits ...edit) []byte {
	b := append(fullBox(0), u32(uint32(len(edits)))...)
	for _, e := range edits {
		b = append(b, u32(e.dur, uint32(e.mediaTime), e.rate)...)
	}
	return mkAtom("edts", mkAtom("elst", b))
}

func countedTable(tag string, rows ...uint32) []byte {
	return mkAtom(tag, fullBox(0), rows)
}

// videoEntry is a 'cvid' sample description with the given extension atoms.
func videoEntry(ext ...[]byte) []byte {
	body := [][]byte{
		zeros(6), u16(1),
		u16(0, 0), []byte("appl"), u32(0, 0),
		u16(320, 240), u32(72<<16, 72<<16), u32(0), u16(1),
		pascal("Cinepak", 32),
		u16(24), u16(0xFFFF),
	}
	return mkAtom("cvid", append(body, ext...)...)
}

func audioEntry(format string, version uint16, ext ...[]byte) []byte {
	body := [][]byte{
		zeros(6), u16(1),
		u16(version, 0), []byte("appl"),
		u16(2, 16), u16(0, 0), u32(22050 << 16),
	}
	if version == 1 {
		body = append(body, u32(64, 128, 4, 2))
	}
	return mkAtom(format, append(body, ext...)...)
}

func stsdAtom(entries ...[]byte) []byte {
	return mkAtom("stsd", fullBox(0), u32(uint32(len(entries))), bytes.Join(entries, nil))
}

func trakAtom(children ...[]byte) []byte { return mkAtom("trak", children...) }

func mdiaAtom(timeScale, duration uint32, subtype string, minf ...[]byte) []byte {
	return mkAtom("mdia",
		mdhdAtom(timeScale, duration),
		hdlrAtom(subtype),
		mkAtom("minf", minf...),
	)
}

func stblAtom(children ...[]byte) []byte { return mkAtom("stbl", children...) }

func testParser(opts ...Option) *Parser {
	return NewParser(append([]Option{WithLogger(logger.Discard())}, opts...)...)
}

func parseBytes(data []byte, opts ...Option) (*Parser, error) {
	p := testParser(opts...)
	err := p.ParseStream(bytes.NewReader(data), DisposeNo)
	return p, err
}
