package quicktime

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/zurustar/hecore/pkg/chunk"
)

// maxMovieHeaderSize bounds the inflated size a cmov may declare.
const maxMovieHeaderSize = 64 << 20

// readCMOV inflates a compressed movie header and parses it in place of
// the cmov payload. The outer reader is left untouched; the caller seeks
// past the atom afterwards.
func readCMOV(ctx *ParseContext, atom Atom) error {
	r := ctx.R

	r.ReadU32BE() // dcom size
	if tag := Tag(r.ReadU32BE()); tag != TagDCOM {
		return fmt.Errorf("cmov: expected dcom, found %s", tag)
	}
	if method := Tag(r.ReadU32BE()); method != tagZlib {
		return fmt.Errorf("%w: %s", ErrUnsupportedCompression, method)
	}

	cmvdSize := r.ReadU32BE()
	if tag := Tag(r.ReadU32BE()); tag != TagCMVD {
		return fmt.Errorf("cmov: expected cmvd, found %s", tag)
	}
	if cmvdSize < 12 {
		return fmt.Errorf("%w: cmvd declares %d bytes", ErrTruncatedAtom, cmvdSize)
	}
	size := r.ReadU32BE()
	if size > maxMovieHeaderSize {
		return fmt.Errorf("cmov: inflated size %d is too large", size)
	}
	compressed := r.ReadBytes(int(cmvdSize - 12))
	if err := r.Err(); err != nil {
		return err
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("failed to open cmov stream: %w", err)
	}
	defer zr.Close()
	data := make([]byte, size)
	if _, err := io.ReadFull(zr, data); err != nil {
		return fmt.Errorf("failed to inflate cmov: %w", err)
	}

	inner := &ParseContext{Parser: ctx.Parser, R: chunk.FromBytes(data), Track: ctx.Track}
	return inner.Descend(Atom{Type: TagMOOV, Size: size})
}
