package quicktime

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// aliasRecord is the fixed part of a Macintosh alias stored in an alis
// data reference.
type aliasRecord struct {
	Reserved1   [10]byte
	VolumeLen   uint8
	Volume      [27]byte
	Reserved2   [12]byte
	FilenameLen uint8
	Filename    [63]byte
	Reserved3   [16]byte
	NlvlFrom    int16
	NlvlTo      int16
	Reserved4   [16]byte
}

const aliasRecordSize = 150

// alias sub-record types
const (
	aliasDirectory    = 0
	aliasAbsolutePath = 2
	aliasEnd          = -1
)

// pascalField returns the first n bytes of b up to a NUL.
func pascalField(b []byte, n uint8) []byte {
	b = b[:min(int(n), len(b))]
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return b
}

func readDREF(ctx *ParseContext, atom Atom) error {
	t, err := ctx.track()
	if err != nil {
		return err
	}
	r, p := ctx.R, ctx.Parser
	end := atom.End()
	readFullBox(r)
	entries := r.ReadU32BE()

	for i := uint32(0); i < entries && r.Pos() < end; i++ {
		start := r.Pos()
		size := int64(r.ReadU32BE())
		next := start + size
		if size < 12 || next > end {
			return fmt.Errorf("%w: data reference %d is %d bytes", ErrBoundsOverflow, i, size)
		}
		typ := Tag(r.ReadU32BE())
		readFullBox(r)

		switch {
		case typ != tagAlis:
			p.log.Warn("unknown data reference type", "type", typ)
		case size < 12+aliasRecordSize:
			// size はエントリのヘッダ 12 バイトを含む。固定部が収まらない alis は
			// ムービー自身を指すものとして扱う
		default:
			if err := readAlias(ctx, t, next); err != nil {
				return err
			}
		}
		if _, err := r.Seek(next, io.SeekStart); err != nil {
			return err
		}
	}
	return nil
}

func readAlias(ctx *ParseContext, t *Track, end int64) error {
	r, p := ctx.R, ctx.Parser
	var rec aliasRecord
	if err := r.ReadStruct(&rec); err != nil {
		return err
	}
	t.Volume = p.decodeText(pascalField(rec.Volume[:], rec.VolumeLen))
	t.Filename = p.decodeText(pascalField(rec.Filename[:], rec.FilenameLen))
	t.NlvlFrom = rec.NlvlFrom
	t.NlvlTo = rec.NlvlTo
	p.log.Debug("alias", "volume", t.Volume, "filename", t.Filename, "nlvlFrom", t.NlvlFrom, "nlvlTo", t.NlvlTo)

	for sub := int16(0); sub != aliasEnd && r.Pos()+4 <= end; {
		sub = r.ReadS16BE()
		n := int(r.ReadU16BE())
		n += n & 1
		switch sub {
		case aliasAbsolutePath:
			// "Volume:Folder:File" からボリューム名を外す
			t.Path = strings.TrimPrefix(p.decodeText(r.ReadFixedString(n)), t.Volume)
		case aliasDirectory:
			t.Directory = p.decodeText(r.ReadFixedString(n))
		default:
			r.Skip(int64(n))
		}
		if err := r.Err(); err != nil {
			return fmt.Errorf("alias sub-record %d: %w", sub, err)
		}
	}
	p.log.Debug("alias path", "path", t.Path, "directory", t.Directory)
	return nil
}
