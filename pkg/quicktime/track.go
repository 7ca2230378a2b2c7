package quicktime

import (
	"fmt"

	"github.com/zurustar/hecore/pkg/fileutil"
)

// CodecType classifies a track by its handler subtype.
type CodecType int

const (
	CodecOther CodecType = iota
	CodecVideo
	CodecAudio
	CodecMIDI
)

func (c CodecType) String() string {
	switch c {
	case CodecVideo:
		return "video"
	case CodecAudio:
		return "audio"
	case CodecMIDI:
		return "midi"
	default:
		return "other"
	}
}

// GraphicsMode is the transfer mode from a video media header.
type GraphicsMode uint16

const (
	GraphicsCopy               GraphicsMode = 0x0
	GraphicsBlend              GraphicsMode = 0x20
	GraphicsTransparent        GraphicsMode = 0x24
	GraphicsDitherCopy         GraphicsMode = 0x40
	GraphicsStraightAlpha      GraphicsMode = 0x100
	GraphicsPremulWhiteAlpha   GraphicsMode = 0x101
	GraphicsPremulBlackAlpha   GraphicsMode = 0x102
	GraphicsComposition        GraphicsMode = 0x103
	GraphicsStraightAlphaBlend GraphicsMode = 0x104
)

// SilentMediaTime marks an edit that plays no media.
const SilentMediaTime = -1

// EditListEntry maps a span of track time onto the media.
type EditListEntry struct {
	TrackDuration uint32
	TimeOffset    int32
	MediaTime     int32
	MediaRate     float64
}

// Silent reports whether the edit is padding.
func (e EditListEntry) Silent() bool { return e.MediaTime == SilentMediaTime }

// SampleToChunkEntry is one stsc row. First is zero-based.
type SampleToChunkEntry struct {
	First uint32
	Count uint32
	ID    uint32
}

// TimeToSampleEntry is one stts row.
type TimeToSampleEntry struct {
	Count    uint32
	Duration uint32
}

// VideoFormat holds the codec fields of a video sample description.
type VideoFormat struct {
	Width          uint16
	Height         uint16
	Depth          uint16
	ColorTableID   int16
	CompressorName string
}

// AudioFormat holds the codec fields of a sound sample description.
type AudioFormat struct {
	Version       uint16
	Channels      uint16
	BitsPerSample uint16
	SampleRate    uint32 // integer part of the 16.16 rate
	// Version 1 fields.
	SamplesPerPacket uint32
	BytesPerFrame    uint32
}

// SampleDescription is one stsd entry.
type SampleDescription struct {
	CodecTag      Tag
	DataRefIndex  uint16
	Video         *VideoFormat
	Audio         *AudioFormat
	ObjectTypeMP4 byte
	ExtraData     []byte
}

// PanoramaNode is one node of a QTVR panorama track.
type PanoramaNode struct {
	NodeID    uint32
	Timestamp uint32
}

// PanoramaInfo is the content of a pInf atom.
type PanoramaInfo struct {
	Name      string
	DefNodeID uint32
	DefZoom   float32
	Nodes     []PanoramaNode
}

// Track is one time-addressable stream of a movie.
type Track struct {
	Index         int
	CodecType     CodecType
	TimeScale     uint32
	Duration      uint32 // in movie time scale
	MediaDuration uint32 // in track time scale
	FrameCount    uint32

	EditList      []EditListEntry
	ChunkOffsets  []uint32
	SampleToChunk []SampleToChunkEntry
	SampleSize    uint32 // constant size, or 0 when SampleSizes is used
	SampleCount   uint32
	SampleSizes   []uint32
	TimeToSample  []TimeToSampleEntry
	Keyframes     []uint32 // zero-based

	ScaleX float64
	ScaleY float64

	GraphicsMode GraphicsMode
	OpColor      [3]uint16

	// Data reference alias.
	Volume    string
	Filename  string
	Path      string
	Directory string
	NlvlFrom  int16
	NlvlTo    int16

	Panorama    PanoramaInfo
	SampleDescs []*SampleDescription
}

func newTrack(index int) *Track {
	return &Track{
		Index:    index,
		ScaleX:   1,
		ScaleY:   1,
		NlvlFrom: -1,
		NlvlTo:   -1,
	}
}

// External reports whether the media lives in another file.
func (t *Track) External() bool {
	return t.Path != "" || t.Filename != ""
}

// ResolveExternalMedia finds the file named by the track's data reference
// below dir. The absolute path is tried before the bare file name.
func (t *Track) ResolveExternalMedia(dir string) (string, error) {
	if !t.External() {
		return "", fmt.Errorf("track %d has no external data reference", t.Index)
	}
	var lastErr error
	for _, name := range []string{t.Path, t.Filename} {
		if name == "" {
			continue
		}
		path, err := fileutil.Resolve(dir, name)
		if err == nil {
			return path, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("track %d: %w", t.Index, lastErr)
}

// CoalesceEdits merges adjacent edits whose silence status matches,
// summing their durations. The input is not modified.
func CoalesceEdits(edits []EditListEntry) []EditListEntry {
	if len(edits) < 2 {
		return edits
	}
	out := make([]EditListEntry, 0, len(edits))
	for _, e := range edits {
		if n := len(out); n > 0 && out[n-1].Silent() == e.Silent() {
			out[n-1].TrackDuration += e.TrackDuration
			continue
		}
		out = append(out, e)
	}
	return out
}
