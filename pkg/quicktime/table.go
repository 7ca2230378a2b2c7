package quicktime

import (
	"fmt"
	"maps"
	"slices"
)

// HandlerKind selects what the parser does with an atom.
type HandlerKind int

const (
	// KindLeaf skips the atom's payload.
	KindLeaf HandlerKind = iota
	// KindDescend parses the payload as a list of child atoms.
	KindDescend
	// KindField hands the payload to a handler function.
	KindField
)

func (k HandlerKind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindDescend:
		return "descend"
	case KindField:
		return "field"
	default:
		return fmt.Sprintf("HandlerKind(%d)", int(k))
	}
}

// HandlerFunc reads an atom's payload. The reader is positioned at the
// start of the payload; bytes the handler leaves unread are skipped.
type HandlerFunc func(ctx *ParseContext, atom Atom) error

// AtomHandler is one parse table entry. Func is required for KindField and
// optional for the other kinds, where it replaces the default behaviour.
type AtomHandler struct {
	Kind HandlerKind
	Func HandlerFunc
}

// ParseTable maps atom tags to handlers.
type ParseTable struct {
	handlers map[Tag]AtomHandler
	fallback HandlerKind
}

// NewParseTable returns an empty table whose unregistered tags are skipped.
func NewParseTable() *ParseTable {
	return &ParseTable{handlers: make(map[Tag]AtomHandler), fallback: KindLeaf}
}

// DefaultParseTable returns a table with every built-in atom registered.
func DefaultParseTable() *ParseTable {
	t := NewParseTable()
	descend := AtomHandler{Kind: KindDescend}
	leaf := AtomHandler{Kind: KindLeaf}
	field := func(fn HandlerFunc) AtomHandler { return AtomHandler{Kind: KindField, Func: fn} }

	for _, tag := range []Tag{TagDINF, TagEDTS, TagMDIA, TagMINF, TagSTBL, TagUDTA, TagGMHD, TagSTPN} {
		t.handlers[tag] = descend
	}
	for _, tag := range []Tag{TagMDAT, TagSMHD, TagGMIN} {
		t.handlers[tag] = leaf
	}
	t.handlers[TagMOOV] = AtomHandler{Kind: KindDescend, Func: readMOOV}
	t.handlers[TagTRAK] = AtomHandler{Kind: KindDescend, Func: readTRAK}
	t.handlers[TagCMOV] = field(readCMOV)
	t.handlers[TagMVHD] = field(readMVHD)
	t.handlers[TagTKHD] = field(readTKHD)
	t.handlers[TagELST] = field(readELST)
	t.handlers[TagHDLR] = field(readHDLR)
	t.handlers[TagMDHD] = field(readMDHD)
	t.handlers[TagVMHD] = field(readVMHD)
	t.handlers[TagSTSD] = field(readSTSD)
	t.handlers[TagSTSC] = field(readSTSC)
	t.handlers[TagSTSS] = field(readSTSS)
	t.handlers[TagSTSZ] = field(readSTSZ)
	t.handlers[TagSTTS] = field(readSTTS)
	t.handlers[TagSTCO] = field(readSTCO)
	t.handlers[TagDREF] = field(readDREF)
	t.handlers[TagWAVE] = field(readWAVE)
	t.handlers[TagESDS] = field(readESDS)
	t.handlers[TagSMI] = field(readSMI)
	t.handlers[TagCTYP] = field(readCTYP)
	t.handlers[TagNAVG] = field(readNAVG)
	t.handlers[TagPINF] = field(readPINF)
	return t
}

// Register installs h for tag, replacing any previous entry.
func (t *ParseTable) Register(tag Tag, h AtomHandler) error {
	if h.Kind == KindField && h.Func == nil {
		return fmt.Errorf("field handler for %s has no function", tag)
	}
	t.handlers[tag] = h
	return nil
}

// SetFallback chooses what happens to unregistered tags.
func (t *ParseTable) SetFallback(kind HandlerKind) {
	t.fallback = kind
}

// Lookup returns the handler for tag and whether it was registered. An
// unregistered tag yields the fallback kind.
func (t *ParseTable) Lookup(tag Tag) (AtomHandler, bool) {
	h, ok := t.handlers[tag]
	if !ok {
		return AtomHandler{Kind: t.fallback}, false
	}
	return h, true
}

// Tags returns the registered tags in ascending order.
func (t *ParseTable) Tags() []Tag {
	return slices.Sorted(maps.Keys(t.handlers))
}
