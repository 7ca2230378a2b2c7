package quicktime

import (
	"errors"
	"fmt"
	"io"
)

// MPEG-4 descriptor tags inside esds.
const (
	mp4ESDescTag          = 3
	mp4DecConfigDescTag   = 4
	mp4DecSpecificDescTag = 5
)

const (
	sampleEntryHeaderSize = 16
	videoSampleHeaderSize = 70
	audioSampleHeaderSize = 20
)

var errNoSampleDesc = errors.New("atom outside of a sample description")

// videoSampleHeader is the fixed part of a video sample description.
type videoSampleHeader struct {
	Version        uint16
	Revision       uint16
	Vendor         uint32
	TemporalQual   uint32
	SpatialQual    uint32
	Width          uint16
	Height         uint16
	HorizRes       uint32
	VertRes        uint32
	DataSize       uint32
	FramesPerSamp  uint16
	CompressorName [32]byte
	Depth          uint16
	ColorTableID   int16
}

// audioSampleHeader is the fixed part of a sound sample description.
type audioSampleHeader struct {
	Version       uint16
	Revision      uint16
	Vendor        uint32
	Channels      uint16
	BitsPerSample uint16
	CompressionID int16
	PacketSize    uint16
	SampleRate    uint32 // 16.16
}

// audioSampleHeaderV1 follows audioSampleHeader when Version is 1.
type audioSampleHeaderV1 struct {
	SamplesPerPacket uint32
	BytesPerPacket   uint32
	BytesPerFrame    uint32
	BytesPerSample   uint32
}

func readSTSD(ctx *ParseContext, atom Atom) error {
	t, err := ctx.track()
	if err != nil {
		return err
	}
	r, p := ctx.R, ctx.Parser
	readFullBox(r)
	count := r.ReadU32BE()
	if err := checkCount(r, atom, count, sampleEntryHeaderSize); err != nil {
		return err
	}

	for i := uint32(0); i < count; i++ {
		start := r.Pos()
		size := int64(r.ReadU32BE())
		format := Tag(r.ReadU32BE())
		r.Skip(6)
		desc := &SampleDescription{CodecTag: format, DataRefIndex: r.ReadU16BE()}
		end := start + size
		if size < sampleEntryHeaderSize || end > atom.End() {
			return fmt.Errorf("%w: sample description %d (%s) is %d bytes", ErrBoundsOverflow, i, format, size)
		}
		t.SampleDescs = append(t.SampleDescs, desc)

		parsed, err := p.sampleDesc(ctx, desc, size-sampleEntryHeaderSize)
		if err != nil {
			return fmt.Errorf("sample description %d (%s): %w", i, format, err)
		}
		p.log.Debug("stsd entry", "track", t.Index, "format", format, "size", size, "codec", t.CodecType)

		// 残りは拡張アトム (wave, esds, SMI など)
		if rest := end - r.Pos(); parsed && rest > 8 {
			ext := Atom{Type: format, Size: uint32(rest), Offset: r.Pos()}
			if err := ctx.Descend(ext); err != nil {
				p.log.Warn("bad sample description extension", "format", format, "error", err)
			}
		}
		r.ClearErr()
		if _, err := r.Seek(end, io.SeekStart); err != nil {
			return err
		}
	}
	return nil
}

// readSampleDesc is the default SampleDescReader. It decodes the fixed
// video and sound fields and leaves other codec types alone.
func readSampleDesc(ctx *ParseContext, desc *SampleDescription, size int64) (bool, error) {
	r, p := ctx.R, ctx.Parser
	switch ctx.Track.CodecType {
	case CodecVideo:
		if size < videoSampleHeaderSize {
			return false, nil
		}
		var h videoSampleHeader
		if err := r.ReadStruct(&h); err != nil {
			return false, err
		}
		n := min(int(h.CompressorName[0]), len(h.CompressorName)-1)
		desc.Video = &VideoFormat{
			Width:          h.Width,
			Height:         h.Height,
			Depth:          h.Depth,
			ColorTableID:   h.ColorTableID,
			CompressorName: p.decodeText(h.CompressorName[1 : 1+n]),
		}
		// インデックスカラーで ID 0 ならカラーテーブルが続く
		if bpp := h.Depth & 0x1F; (bpp == 1 || bpp == 2 || bpp == 4 || bpp == 8) && h.ColorTableID == 0 {
			r.Skip(4 + 2)
			entries := int64(r.ReadU16BE()) + 1
			r.Skip(entries * 8)
		}
		return true, nil

	case CodecAudio:
		if size < audioSampleHeaderSize {
			return false, nil
		}
		var h audioSampleHeader
		if err := r.ReadStruct(&h); err != nil {
			return false, err
		}
		desc.Audio = &AudioFormat{
			Version:       h.Version,
			Channels:      h.Channels,
			BitsPerSample: h.BitsPerSample,
			SampleRate:    h.SampleRate >> 16,
		}
		if h.Version == 1 {
			var v1 audioSampleHeaderV1
			if err := r.ReadStruct(&v1); err != nil {
				return false, err
			}
			desc.Audio.SamplesPerPacket = v1.SamplesPerPacket
			desc.Audio.BytesPerFrame = v1.BytesPerFrame
		}
		return true, nil
	}
	return false, nil
}

func lastSampleDesc(ctx *ParseContext) (*SampleDescription, bool) {
	if ctx.Track == nil || len(ctx.Track.SampleDescs) == 0 {
		return nil, false
	}
	return ctx.Track.SampleDescs[len(ctx.Track.SampleDescs)-1], true
}

func readWAVE(ctx *ParseContext, atom Atom) error {
	if ctx.Track == nil {
		return nil
	}
	desc, ok := lastSampleDesc(ctx)
	if !ok {
		return errNoSampleDesc
	}
	switch {
	case desc.CodecTag == tagQDM2:
		desc.ExtraData = ctx.R.ReadBytes(int(atom.Size))
	case atom.Size > 8:
		return ctx.Descend(atom)
	}
	return nil
}

func readMP4DescLength(ctx *ParseContext) int {
	length := 0
	for range 4 {
		c := ctx.R.ReadU8()
		length = length<<7 | int(c&0x7F)
		if c&0x80 == 0 {
			break
		}
	}
	return length
}

func readESDS(ctx *ParseContext, atom Atom) error {
	if ctx.Track == nil {
		return nil
	}
	desc, ok := lastSampleDesc(ctx)
	if !ok {
		return errNoSampleDesc
	}
	r := ctx.R
	readFullBox(r)

	tag := r.ReadU8()
	readMP4DescLength(ctx)
	r.ReadU16BE() // ES id
	if tag == mp4ESDescTag {
		r.ReadU8() // priority
	}

	if tag = r.ReadU8(); tag != mp4DecConfigDescTag {
		return nil
	}
	readMP4DescLength(ctx)
	desc.ObjectTypeMP4 = r.ReadU8()
	r.ReadU8() // stream type
	r.Skip(3)  // buffer size
	r.Skip(4)  // max bitrate
	r.Skip(4)  // avg bitrate

	if tag = r.ReadU8(); tag != mp4DecSpecificDescTag {
		return nil
	}
	length := readMP4DescLength(ctx)
	desc.ExtraData = r.ReadBytes(length)
	ctx.Parser.log.Debug("esds", "objectType", fmt.Sprintf("%02x", desc.ObjectTypeMP4), "extra", length)
	return nil
}

// readSMI keeps the SVQ3 decoder setup.
func readSMI(ctx *ParseContext, atom Atom) error {
	if ctx.Track == nil {
		return nil
	}
	desc, ok := lastSampleDesc(ctx)
	if !ok {
		return errNoSampleDesc
	}
	desc.ExtraData = ctx.R.ReadBytes(int(atom.Size))
	return nil
}
