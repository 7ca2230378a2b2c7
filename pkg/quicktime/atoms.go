package quicktime

import (
	"errors"
	"fmt"

	"github.com/zurustar/hecore/pkg/chunk"
)

// movieHeaderTail follows the times, scale and duration of mvhd.
type movieHeaderTail struct {
	PreferredRate     uint32
	PreferredVolume   uint16
	Reserved          [10]byte
	Matrix            [9]uint32
	PreviewTime       uint32
	PreviewDuration   uint32
	PosterTime        uint32
	SelectionTime     uint32
	SelectionDuration uint32
	CurrentTime       uint32
	NextTrackID       uint32
}

// trackHeaderTail follows the duration of tkhd.
type trackHeaderTail struct {
	Reserved       [8]byte
	Layer          int16
	AlternateGroup int16
	Volume         uint16
	Reserved2      uint16
	Matrix         [9]uint32
}

func readFullBox(r *chunk.Reader) (version uint8, flags uint32) {
	v := r.ReadU32BE()
	return uint8(v >> 24), v & 0xFFFFFF
}

// readTimes skips creation and modification times.
func readTimes(r *chunk.Reader, version uint8) {
	if version == 1 {
		r.Skip(16)
	} else {
		r.Skip(8)
	}
}

// readDuration keeps the low 32 bits of a version 1 duration.
func readDuration(r *chunk.Reader, version uint8) uint32 {
	if version == 1 {
		return uint32(r.ReadU64BE())
	}
	return r.ReadU32BE()
}

func scaleFactors(m [9]uint32) (x, y float64) {
	x, y = 1, 1
	if m[0] != 0 {
		x = 65536 / float64(m[0])
	}
	if m[4] != 0 {
		y = 65536 / float64(m[4])
	}
	return x, y
}

// checkCount fails if count entries of entrySize bytes do not fit in the
// rest of atom.
func checkCount(r *chunk.Reader, atom Atom, count uint32, entrySize int64) error {
	if avail := atom.End() - r.Pos(); int64(count)*entrySize > avail {
		return fmt.Errorf("%w: %s declares %d entries, %d bytes left", ErrTruncatedAtom, atom.Type, count, avail)
	}
	return nil
}

func readMOOV(ctx *ParseContext, atom Atom) error {
	ctx.Parser.foundMoov = true
	if err := ctx.Descend(atom); err != nil && !errors.Is(err, errMovieDone) {
		ctx.Parser.log.Warn("movie atom cut short", "offset", atom.Offset, "error", err)
	}
	return errMovieDone
}

func readTRAK(ctx *ParseContext, atom Atom) error {
	p := ctx.Parser
	t := newTrack(len(p.tracks))
	p.tracks = append(p.tracks, t)

	child := *ctx
	child.Track = t
	return child.Descend(atom)
}

func readMVHD(ctx *ParseContext, atom Atom) error {
	r, p := ctx.R, ctx.Parser
	version, _ := readFullBox(r)
	readTimes(r, version)
	p.timeScale = r.ReadU32BE()
	p.duration = readDuration(r, version)

	var tail movieHeaderTail
	if err := r.ReadStruct(&tail); err != nil {
		return err
	}
	p.scaleX, p.scaleY = scaleFactors(tail.Matrix)
	p.log.Debug("mvhd", "timescale", p.timeScale, "duration", p.duration, "scaleX", p.scaleX, "scaleY", p.scaleY)
	return nil
}

func readTKHD(ctx *ParseContext, atom Atom) error {
	t, err := ctx.track()
	if err != nil {
		return err
	}
	r := ctx.R
	version, _ := readFullBox(r)
	readTimes(r, version)
	r.ReadU32BE() // track id
	r.Skip(4)
	t.Duration = readDuration(r, version)

	var tail trackHeaderTail
	if err := r.ReadStruct(&tail); err != nil {
		return err
	}
	t.ScaleX, t.ScaleY = scaleFactors(tail.Matrix)
	return nil
}

func readELST(ctx *ParseContext, atom Atom) error {
	t, err := ctx.track()
	if err != nil {
		return err
	}
	r := ctx.R
	readFullBox(r)
	count := r.ReadU32BE()
	if err := checkCount(r, atom, count, 12); err != nil {
		return err
	}

	t.EditList = make([]EditListEntry, count)
	var offset int32
	for i := range t.EditList {
		e := &t.EditList[i]
		e.TrackDuration = r.ReadU32BE()
		e.MediaTime = r.ReadS32BE()
		e.MediaRate = float64(r.ReadU32BE()) / 65536
		e.TimeOffset = offset
		offset += int32(e.TrackDuration)
	}
	return nil
}

func readHDLR(ctx *ParseContext, atom Atom) error {
	if ctx.Track == nil {
		return nil
	}
	r := ctx.R
	readFullBox(r)
	ctype := Tag(r.ReadU32BE())
	subtype := Tag(r.ReadU32BE())

	switch subtype {
	case tagVide:
		ctx.Track.CodecType = CodecVideo
	case tagSoun:
		ctx.Track.CodecType = CodecAudio
	case tagMusi:
		ctx.Track.CodecType = CodecMIDI
	}
	ctx.Parser.log.Debug("hdlr", "track", ctx.Track.Index, "type", ctype, "subtype", subtype)
	return nil
}

func readMDHD(ctx *ParseContext, atom Atom) error {
	t, err := ctx.track()
	if err != nil {
		return err
	}
	r := ctx.R
	version, _ := readFullBox(r)
	if version > 1 {
		return fmt.Errorf("%w: mdhd version %d", ErrUnsupportedVersion, version)
	}
	readTimes(r, version)
	t.TimeScale = r.ReadU32BE()
	t.MediaDuration = readDuration(r, version)
	r.ReadU16BE() // language
	r.ReadU16BE() // quality
	return nil
}

func readVMHD(ctx *ParseContext, atom Atom) error {
	t, err := ctx.track()
	if err != nil {
		return err
	}
	r := ctx.R
	readFullBox(r)
	t.GraphicsMode = GraphicsMode(r.ReadU16BE())
	for i := range t.OpColor {
		t.OpColor[i] = r.ReadU16BE()
	}
	return nil
}

func readSTSC(ctx *ParseContext, atom Atom) error {
	t, err := ctx.track()
	if err != nil {
		return err
	}
	r := ctx.R
	readFullBox(r)
	count := r.ReadU32BE()
	if err := checkCount(r, atom, count, 12); err != nil {
		return err
	}

	t.SampleToChunk = make([]SampleToChunkEntry, count)
	for i := range t.SampleToChunk {
		t.SampleToChunk[i] = SampleToChunkEntry{
			First: r.ReadU32BE() - 1,
			Count: r.ReadU32BE(),
			ID:    r.ReadU32BE(),
		}
	}
	return nil
}

func readSTSS(ctx *ParseContext, atom Atom) error {
	t, err := ctx.track()
	if err != nil {
		return err
	}
	r := ctx.R
	readFullBox(r)
	count := r.ReadU32BE()
	if err := checkCount(r, atom, count, 4); err != nil {
		return err
	}

	t.Keyframes = make([]uint32, count)
	for i := range t.Keyframes {
		t.Keyframes[i] = r.ReadU32BE() - 1
	}
	return nil
}

func readSTSZ(ctx *ParseContext, atom Atom) error {
	t, err := ctx.track()
	if err != nil {
		return err
	}
	r := ctx.R
	readFullBox(r)
	t.SampleSize = r.ReadU32BE()
	t.SampleCount = r.ReadU32BE()
	if t.SampleSize != 0 {
		return nil
	}
	if err := checkCount(r, atom, t.SampleCount, 4); err != nil {
		return err
	}

	t.SampleSizes = make([]uint32, t.SampleCount)
	for i := range t.SampleSizes {
		t.SampleSizes[i] = r.ReadU32BE()
	}
	return nil
}

func readSTTS(ctx *ParseContext, atom Atom) error {
	t, err := ctx.track()
	if err != nil {
		return err
	}
	r := ctx.R
	readFullBox(r)
	count := r.ReadU32BE()
	if err := checkCount(r, atom, count, 8); err != nil {
		return err
	}

	t.TimeToSample = make([]TimeToSampleEntry, count)
	t.FrameCount = 0
	for i := range t.TimeToSample {
		e := TimeToSampleEntry{Count: r.ReadU32BE(), Duration: r.ReadU32BE()}
		t.TimeToSample[i] = e
		t.FrameCount += e.Count
	}
	return nil
}

func readSTCO(ctx *ParseContext, atom Atom) error {
	t, err := ctx.track()
	if err != nil {
		return err
	}
	r := ctx.R
	readFullBox(r)
	count := r.ReadU32BE()
	if err := checkCount(r, atom, count, 4); err != nil {
		return err
	}

	t.ChunkOffsets = make([]uint32, count)
	for i := range t.ChunkOffsets {
		t.ChunkOffsets[i] = r.ReadU32BE() - ctx.Parser.beginOffset
	}
	return nil
}
