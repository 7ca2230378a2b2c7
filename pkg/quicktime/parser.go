// Package quicktime parses the atom tree of QuickTime movie files into a
// list of tracks.
//
// Parsing is table driven: every atom tag maps to an AtomHandler that either
// skips the atom, descends into its children, or decodes its payload into
// the track being built. Malformed atoms are logged and skipped so that a
// partly damaged movie still yields whatever tracks could be read.
package quicktime

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/zurustar/hecore/pkg/chunk"
	"github.com/zurustar/hecore/pkg/logger"
)

var (
	ErrUnsupportedExtendedLength = errors.New("64-bit atom length is not supported")
	ErrTruncatedAtom             = errors.New("truncated atom")
	ErrBoundsOverflow            = errors.New("atom exceeds its parent")
	ErrNoMovieAtom               = errors.New("no moov atom found")
	ErrUnsupportedCompression    = errors.New("unsupported movie compression")
	ErrUnsupportedVersion        = errors.New("unsupported atom version")

	errNoTrack = errors.New("atom outside of a track")
	// moov を読み終えたら親へ伝えて打ち切る
	errMovieDone = errors.New("movie atom parsed")
)

// DisposeAfterUse tells ParseStream whether the parser owns the stream.
type DisposeAfterUse bool

const (
	DisposeNo  DisposeAfterUse = false
	DisposeYes DisposeAfterUse = true
)

// QTVRType is the panorama kind declared by a ctyp atom.
type QTVRType int

const (
	QTVRNone QTVRType = iota
	QTVRObject
	QTVRPanorama
	QTVROther
)

func (q QTVRType) String() string {
	switch q {
	case QTVRObject:
		return "object"
	case QTVRPanorama:
		return "panorama"
	case QTVROther:
		return "other"
	default:
		return "none"
	}
}

// Atom is the header of one atom. Offset and Size describe the payload,
// not including the 8-byte header.
type Atom struct {
	Type   Tag
	Size   uint32
	Offset int64
}

// End returns the offset just past the payload.
func (a Atom) End() int64 { return a.Offset + int64(a.Size) }

// ParseContext is what a handler sees: the parser, the reader positioned
// at the atom's payload and the track being populated, if any.
type ParseContext struct {
	Parser *Parser
	R      *chunk.Reader
	Track  *Track
}

// Descend parses the payload of atom as a list of child atoms.
func (c *ParseContext) Descend(atom Atom) error {
	return c.Parser.readChildren(c, atom)
}

func (c *ParseContext) track() (*Track, error) {
	if c.Track == nil {
		return nil, errNoTrack
	}
	return c.Track, nil
}

// SampleDescReader decodes the codec-specific fields of one stsd entry.
// size is the number of bytes left in the entry after its common header.
// It reports whether it consumed the codec fields; when it did not, the
// rest of the entry is skipped without looking for extension atoms.
type SampleDescReader func(ctx *ParseContext, desc *SampleDescription, size int64) (bool, error)

// Parser reads one movie.
type Parser struct {
	log         *slog.Logger
	table       *ParseTable
	enc         encoding.Encoding
	beginOffset uint32
	dropUnknown bool
	sampleDesc  SampleDescReader

	closer    io.Closer
	foundMoov bool
	tracks    []*Track
	timeScale uint32
	duration  uint32
	scaleX    float64
	scaleY    float64
	qtvr      QTVRType
	nav       Navigation
}

// Option is a functional option for configuring a Parser.
type Option func(*Parser)

// WithLogger sets the parser logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Parser) {
		p.log = log
	}
}

// WithParseTable replaces the default parse table.
func WithParseTable(t *ParseTable) Option {
	return func(p *Parser) {
		p.table = t
	}
}

// WithEncoding sets the charset of Pascal strings and alias records.
// A nil encoding keeps the raw bytes.
func WithEncoding(enc encoding.Encoding) Option {
	return func(p *Parser) {
		p.enc = enc
	}
}

// WithBeginOffset sets the offset of the movie within a larger file.
// It is subtracted from every chunk offset.
func WithBeginOffset(off uint32) Option {
	return func(p *Parser) {
		p.beginOffset = off
	}
}

// WithDropUnknownTracks removes tracks whose handler is neither video,
// sound nor music.
func WithDropUnknownTracks(drop bool) Option {
	return func(p *Parser) {
		p.dropUnknown = drop
	}
}

// WithSampleDescReader replaces the stsd codec field decoder.
func WithSampleDescReader(fn SampleDescReader) Option {
	return func(p *Parser) {
		p.sampleDesc = fn
	}
}

// NewParser creates a parser.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		log:        logger.GetLogger(),
		table:      DefaultParseTable(),
		enc:        charmap.Macintosh,
		sampleDesc: readSampleDesc,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.reset()
	return p
}

func (p *Parser) reset() {
	p.foundMoov = false
	p.tracks = nil
	p.timeScale = 0
	p.duration = 0
	p.scaleX, p.scaleY = 1, 1
	p.qtvr = QTVRNone
	p.nav = Navigation{}
}

// ParseFile opens path and parses it. The file stays open until Close.
func (p *Parser) ParseFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open movie: %w", err)
	}
	if err := p.ParseStream(f, DisposeYes); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// ParseStream parses the movie in rs starting at its current position.
// With DisposeYes the parser closes rs on Close, or right away if parsing
// fails.
func (p *Parser) ParseStream(rs io.ReadSeeker, dispose DisposeAfterUse) error {
	p.Close()
	p.reset()
	if dispose {
		if c, ok := rs.(io.Closer); ok {
			p.closer = c
		}
	}

	r, err := chunk.NewReader(rs)
	if err != nil {
		p.Close()
		return err
	}
	ctx := &ParseContext{Parser: p, R: r}
	root := Atom{Offset: r.Pos(), Size: uint32(min(r.Remaining(), math.MaxUint32))}
	if err := p.readChildren(ctx, root); err != nil && !errors.Is(err, errMovieDone) {
		// 末尾のゴミなど。moov が読めていれば問題ない
		p.log.Warn("stopped reading top-level atoms", "offset", r.Pos(), "error", err)
	}
	if !p.foundMoov {
		p.Close()
		return ErrNoMovieAtom
	}
	p.finalize()
	p.log.Debug("movie parsed", "tracks", len(p.tracks), "timescale", p.timeScale, "duration", p.duration)
	return nil
}

// readChildren walks the atoms inside parent. Errors from a child's
// handler abandon that child and continue with its next sibling; errors in
// the headers themselves end the walk and are returned to the caller.
func (p *Parser) readChildren(ctx *ParseContext, parent Atom) error {
	r := ctx.R
	end := parent.End()
	for {
		pos := r.Pos()
		if pos+8 > end || pos+8 > r.Size() {
			return nil
		}
		size := int64(r.ReadU32BE())
		tag := Tag(r.ReadU32BE())
		if err := r.Err(); err != nil {
			return fmt.Errorf("%w: header at offset %d: %v", ErrTruncatedAtom, pos, err)
		}

		switch {
		case size == 1:
			return fmt.Errorf("%w: %s at offset %d", ErrUnsupportedExtendedLength, tag, pos)
		case size == 0:
			size = end - pos
		case size < 8:
			return fmt.Errorf("%w: %s declares %d bytes at offset %d", ErrTruncatedAtom, tag, size, pos)
		}
		if pos+size > end {
			return fmt.Errorf("%w: %s at offset %d ends at %d, parent %s ends at %d",
				ErrBoundsOverflow, tag, pos, pos+size, parent.Type, end)
		}

		atom := Atom{Type: tag, Size: uint32(size - 8), Offset: pos + 8}
		if err := p.dispatch(ctx, atom); err != nil {
			if errors.Is(err, errMovieDone) {
				return err
			}
			p.log.Warn("skipping atom", "tag", tag, "offset", pos, "error", err)
		}
		r.ClearErr()
		if _, err := r.Seek(atom.End(), io.SeekStart); err != nil {
			return err
		}
	}
}

func (p *Parser) dispatch(ctx *ParseContext, atom Atom) error {
	h, known := p.table.Lookup(atom.Type)
	if !known {
		p.log.Debug("unknown atom", "tag", atom.Type, "size", atom.Size, "kind", h.Kind)
	}

	var err error
	switch {
	case h.Func != nil:
		err = h.Func(ctx, atom)
	case h.Kind == KindDescend:
		err = ctx.Descend(atom)
	default:
		return nil
	}
	if err != nil {
		return err
	}
	if rerr := ctx.R.Err(); rerr != nil {
		return fmt.Errorf("%w: %s: %v", ErrTruncatedAtom, atom.Type, rerr)
	}
	if ctx.R.Pos() > atom.End() {
		return fmt.Errorf("%w: %s handler read to %d, payload ends at %d",
			ErrBoundsOverflow, atom.Type, ctx.R.Pos(), atom.End())
	}
	return nil
}

func (p *Parser) finalize() {
	kept := p.tracks[:0]
	for _, t := range p.tracks {
		if t.CodecType == CodecOther && p.dropUnknown {
			p.log.Debug("dropping track of unknown type", "track", t.Index)
			continue
		}
		if t.TimeScale == 0 {
			t.TimeScale = p.timeScale
		}
		t.EditList = CoalesceEdits(t.EditList)
		if len(t.EditList) == 0 {
			t.EditList = []EditListEntry{{TrackDuration: t.Duration, MediaRate: 1}}
		}
		t.Index = len(kept)
		kept = append(kept, t)
	}
	p.tracks = kept
}

func (p *Parser) decodeText(b []byte) string {
	if p.enc == nil {
		return string(b)
	}
	s, err := p.enc.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}

// Tracks returns the parsed tracks in file order.
func (p *Parser) Tracks() []*Track { return p.tracks }

// TimeScale returns the movie time scale from mvhd.
func (p *Parser) TimeScale() uint32 { return p.timeScale }

// Duration returns the movie duration in movie time scale units.
func (p *Parser) Duration() uint32 { return p.duration }

// ScaleFactor returns the horizontal and vertical scale of the movie matrix.
func (p *Parser) ScaleFactor() (x, y float64) { return p.scaleX, p.scaleY }

// QTVRType returns the panorama type, or QTVRNone for a plain movie.
func (p *Parser) QTVRType() QTVRType { return p.qtvr }

// Navigation returns the object movie navigation parameters.
func (p *Parser) Navigation() Navigation { return p.nav }

// Close releases the stream if the parser owns it.
func (p *Parser) Close() error {
	if p.closer == nil {
		return nil
	}
	err := p.closer.Close()
	p.closer = nil
	return err
}
