package quicktime

import "io"

// MovieType is the object movie kind from a NAVG atom.
type MovieType uint16

const (
	MovieStandardObject         MovieType = 1
	MovieOldNavigableMovieScene MovieType = 2
	MovieObjectInScene          MovieType = 3
)

// Navigation holds the object movie parameters of a NAVG atom. Angles are
// in degrees.
type Navigation struct {
	Columns       uint16
	Rows          uint16
	LoopSize      uint16
	FrameDuration uint16
	MovieType     MovieType
	LoopTicks     uint16
	FieldOfView   float32
	StartHPan     float32
	EndHPan       float32
	EndVPan       float32
	StartVPan     float32
	InitialHPan   float32
	InitialVPan   float32
}

// appleFloat is a signed 16.16 fixed-point value.
type appleFloat struct {
	Int  int16
	Frac uint16
}

func (f appleFloat) Float32() float32 {
	return float32(f.Int) + float32(f.Frac)/65536
}

type navgAtom struct {
	Version       uint16
	Columns       uint16
	Rows          uint16
	Reserved      uint16
	LoopSize      uint16
	FrameDuration uint16
	MovieType     uint16
	LoopTicks     uint16
	FieldOfView   appleFloat
	StartHPan     appleFloat
	EndHPan       appleFloat
	EndVPan       appleFloat
	StartVPan     appleFloat
	InitialHPan   appleFloat
	InitialVPan   appleFloat
	Reserved2     uint32
}

func readCTYP(ctx *ParseContext, atom Atom) error {
	p := ctx.Parser
	ctype := Tag(ctx.R.ReadU32BE())
	switch ctype {
	case tagStna:
		p.qtvr = QTVRObject
	case TagSTPN, tagStpn:
		p.qtvr = QTVRPanorama
	default:
		p.qtvr = QTVROther
		p.log.Warn("unknown QTVR type", "ctype", ctype)
	}
	return nil
}

func readNAVG(ctx *ParseContext, atom Atom) error {
	var a navgAtom
	if err := ctx.R.ReadStruct(&a); err != nil {
		return err
	}
	ctx.Parser.nav = Navigation{
		Columns:       a.Columns,
		Rows:          a.Rows,
		LoopSize:      a.LoopSize,
		FrameDuration: a.FrameDuration,
		MovieType:     MovieType(a.MovieType),
		LoopTicks:     a.LoopTicks,
		FieldOfView:   a.FieldOfView.Float32(),
		StartHPan:     a.StartHPan.Float32(),
		EndHPan:       a.EndHPan.Float32(),
		EndVPan:       a.EndVPan.Float32(),
		StartVPan:     a.StartVPan.Float32(),
		InitialHPan:   a.InitialHPan.Float32(),
		InitialVPan:   a.InitialVPan.Float32(),
	}
	return nil
}

func readPINF(ctx *ParseContext, atom Atom) error {
	t, err := ctx.track()
	if err != nil {
		return err
	}
	r := ctx.R
	info := PanoramaInfo{Name: ctx.Parser.decodeText(r.ReadPascalString())}
	// 名前は 32 バイト固定
	if _, err := r.Seek(atom.Offset+32, io.SeekStart); err != nil {
		return err
	}
	info.DefNodeID = r.ReadU32BE()
	info.DefZoom = appleFloat{Int: r.ReadS16BE(), Frac: r.ReadU16BE()}.Float32()
	r.Skip(4) // reserved
	r.Skip(2) // padding
	n := r.ReadS16BE()
	if n < 0 {
		n = 0
	}
	if err := checkCount(r, atom, uint32(n), 8); err != nil {
		return err
	}

	info.Nodes = make([]PanoramaNode, n)
	for i := range info.Nodes {
		info.Nodes[i] = PanoramaNode{NodeID: r.ReadU32BE(), Timestamp: r.ReadU32BE()}
	}
	t.Panorama = info
	return nil
}
