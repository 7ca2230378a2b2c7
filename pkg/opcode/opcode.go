// Package opcode defines the byte-coded instruction set shared by the
// interpreter and the disassembler.
//
// The table follows the HE v72 numbering. Each code carries the layout of
// the operands it fetches from the script stream so that tools can walk
// bytecode without executing it.
package opcode

import "fmt"

// Code is a single instruction byte.
type Code byte

// Core instruction codes.
const (
	PushByte             Code = 0x00
	PushWord             Code = 0x01
	PushDWord            Code = 0x02
	PushWordVar          Code = 0x03
	WordArrayRead        Code = 0x07
	WordArrayIndexedRead Code = 0x0B
	Dup                  Code = 0x0C
	Not                  Code = 0x0D
	Eq                   Code = 0x0E
	Neq                  Code = 0x0F
	Gt                   Code = 0x10
	Lt                   Code = 0x11
	Le                   Code = 0x12
	Ge                   Code = 0x13
	Add                  Code = 0x14
	Sub                  Code = 0x15
	Mul                  Code = 0x16
	Div                  Code = 0x17
	Land                 Code = 0x18
	Lor                  Code = 0x19
	Pop                  Code = 0x1A
	CompareStackList     Code = 0x1B

	WriteWordVar          Code = 0x43
	WordArrayWrite        Code = 0x47
	WordArrayIndexedWrite Code = 0x4B
	WordVarInc            Code = 0x4F
	WordArrayInc          Code = 0x53
	WordVarDec            Code = 0x57
	GetTimer              Code = 0x58
	SetTimer              Code = 0x59
	WordArrayDec          Code = 0x5B

	If               Code = 0x5C
	IfNot            Code = 0x5D
	StartScript      Code = 0x5E
	StartScriptQuick Code = 0x5F
	StartObject      Code = 0x60
	GetArrayDimSize  Code = 0x63
	StopObjectCode   Code = 0x65
	StopObjectCode2  Code = 0x66
	BreakHere        Code = 0x6C
	Jump             Code = 0x73
	StopScript       Code = 0x7C

	GetRandomNumber      Code = 0x87
	GetRandomNumberRange Code = 0x88
	IsScriptRunning      Code = 0x8B
	ArrayOps             Code = 0xA4
	Pop2                 Code = 0xA7
	IsAnyOf              Code = 0xAD
	Delay                Code = 0xB0
	DelaySeconds         Code = 0xB1
	DelayMinutes         Code = 0xB2
	DimArray             Code = 0xBC
	Dummy                Code = 0xBD
	StartObjectQuick     Code = 0xBE
	StartScriptQuick2    Code = 0xBF
	Dim2DimArray         Code = 0xC0
	Abs                  Code = 0xC4
	DelayFrames          Code = 0xCA
	PickOneOf            Code = 0xCB
	PickOneOfDefault     Code = 0xCC
	Shuffle              Code = 0xD4
	JumpToScript         Code = 0xD5
	Band                 Code = 0xD6
	Bor                  Code = 0xD7
	CloseFile            Code = 0xD9
	OpenFile             Code = 0xDA
	ReadFile             Code = 0xDB
	WriteFile            Code = 0xDC
	DeleteFile           Code = 0xDE
	PickVarRandom        Code = 0xE3
	RedimArray           Code = 0xEA
	StringLen            Code = 0xEE
)

// Operand describes one inline operand fetched from the script stream.
type Operand int

const (
	// Byte is an unsigned 8-bit operand.
	Byte Operand = iota
	// Word is a signed 16-bit little-endian operand.
	Word
	// DWord is a signed 32-bit little-endian operand.
	DWord
	// Var is a 16-bit variable index.
	Var
	// Rel is a signed 16-bit jump displacement relative to the next instruction.
	Rel
	// String is a NUL-terminated inline string. A lone NUL means the string
	// comes from an array whose id is on the stack.
	String
)

func (o Operand) String() string {
	switch o {
	case Byte:
		return "byte"
	case Word:
		return "word"
	case DWord:
		return "dword"
	case Var:
		return "var"
	case Rel:
		return "rel"
	case String:
		return "string"
	}
	return fmt.Sprintf("operand(%d)", int(o))
}

// SubOp is one branch of an instruction that selects its behaviour with a
// second byte.
type SubOp struct {
	Name     string
	Operands []Operand
}

// Info describes an instruction's mnemonic and inline operand layout.
// When SubOps is non-nil the first inline byte selects an entry and the
// entry's Operands follow it.
type Info struct {
	Name     string
	Operands []Operand
	SubOps   map[byte]SubOp
}

var dimTypes = map[byte]SubOp{
	2: {"bit", []Operand{Var}},
	3: {"nibble", []Operand{Var}},
	4: {"byte", []Operand{Var}},
	5: {"int", []Operand{Var}},
	6: {"dword", []Operand{Var}},
	7: {"string", []Operand{Var}},
}

var table = map[Code]Info{
	PushByte:             {Name: "pushByte", Operands: []Operand{Byte}},
	PushWord:             {Name: "pushWord", Operands: []Operand{Word}},
	PushDWord:            {Name: "pushDWord", Operands: []Operand{DWord}},
	PushWordVar:          {Name: "pushWordVar", Operands: []Operand{Var}},
	WordArrayRead:        {Name: "wordArrayRead", Operands: []Operand{Var}},
	WordArrayIndexedRead: {Name: "wordArrayIndexedRead", Operands: []Operand{Var}},
	Dup:                  {Name: "dup"},
	Not:                  {Name: "not"},
	Eq:                   {Name: "eq"},
	Neq:                  {Name: "neq"},
	Gt:                   {Name: "gt"},
	Lt:                   {Name: "lt"},
	Le:                   {Name: "le"},
	Ge:                   {Name: "ge"},
	Add:                  {Name: "add"},
	Sub:                  {Name: "sub"},
	Mul:                  {Name: "mul"},
	Div:                  {Name: "div"},
	Land:                 {Name: "land"},
	Lor:                  {Name: "lor"},
	Pop:                  {Name: "pop"},
	CompareStackList:     {Name: "compareStackList"},

	WriteWordVar:          {Name: "writeWordVar", Operands: []Operand{Var}},
	WordArrayWrite:        {Name: "wordArrayWrite", Operands: []Operand{Var}},
	WordArrayIndexedWrite: {Name: "wordArrayIndexedWrite", Operands: []Operand{Var}},
	WordVarInc:            {Name: "wordVarInc", Operands: []Operand{Var}},
	WordArrayInc:          {Name: "wordArrayInc", Operands: []Operand{Var}},
	WordVarDec:            {Name: "wordVarDec", Operands: []Operand{Var}},
	GetTimer: {Name: "getTimer", SubOps: map[byte]SubOp{
		10: {"get", nil},
	}},
	SetTimer: {Name: "setTimer", SubOps: map[byte]SubOp{
		158: {"reset", nil},
	}},
	WordArrayDec: {Name: "wordArrayDec", Operands: []Operand{Var}},

	If:               {Name: "if", Operands: []Operand{Rel}},
	IfNot:            {Name: "ifNot", Operands: []Operand{Rel}},
	StartScript:      {Name: "startScript", Operands: []Operand{Byte}},
	StartScriptQuick: {Name: "startScriptQuick"},
	StartObject:      {Name: "startObject", Operands: []Operand{Byte}},
	GetArrayDimSize: {Name: "getArrayDimSize", SubOps: map[byte]SubOp{
		1: {"dim1", []Operand{Var}},
		2: {"dim2", []Operand{Var}},
		3: {"dim1", []Operand{Var}},
	}},
	StopObjectCode:  {Name: "stopObjectCode"},
	StopObjectCode2: {Name: "stopObjectCode"},
	BreakHere:       {Name: "breakHere"},
	Jump:            {Name: "jump", Operands: []Operand{Rel}},
	StopScript:      {Name: "stopScript"},

	GetRandomNumber:      {Name: "getRandomNumber"},
	GetRandomNumberRange: {Name: "getRandomNumberRange"},
	IsScriptRunning:      {Name: "isScriptRunning"},
	ArrayOps: {Name: "arrayOps", SubOps: map[byte]SubOp{
		7:   {"assignString", []Operand{Var, String}},
		194: {"assignFormattedString", []Operand{Var, String}},
		208: {"assignIntList", []Operand{Var}},
		212: {"assign2DimList", []Operand{Var}},
	}},
	Pop2:              {Name: "pop"},
	IsAnyOf:           {Name: "isAnyOf"},
	Delay:             {Name: "delay"},
	DelaySeconds:      {Name: "delaySeconds"},
	DelayMinutes:      {Name: "delayMinutes"},
	DimArray:          {Name: "dimArray", SubOps: withUndim(dimTypes)},
	Dummy:             {Name: "dummy"},
	StartObjectQuick:  {Name: "startObjectQuick"},
	StartScriptQuick2: {Name: "startScriptQuick2"},
	Dim2DimArray:      {Name: "dim2dimArray", SubOps: dimTypes},
	Abs:               {Name: "abs"},
	DelayFrames:       {Name: "delayFrames"},
	PickOneOf:         {Name: "pickOneOf"},
	PickOneOfDefault:  {Name: "pickOneOfDefault"},
	Shuffle:           {Name: "shuffle", Operands: []Operand{Var}},
	JumpToScript:      {Name: "jumpToScript", Operands: []Operand{Byte}},
	Band:              {Name: "band"},
	Bor:               {Name: "bor"},
	CloseFile:         {Name: "closeFile"},
	OpenFile:          {Name: "openFile", Operands: []Operand{String}},
	ReadFile: {Name: "readFile", SubOps: map[byte]SubOp{
		4: {"byte", nil},
		5: {"word", nil},
		6: {"dword", nil},
		8: {"array", []Operand{Byte}},
	}},
	WriteFile: {Name: "writeFile", SubOps: map[byte]SubOp{
		4: {"byte", nil},
		5: {"word", nil},
		6: {"dword", nil},
		8: {"array", nil},
	}},
	DeleteFile:    {Name: "deleteFile", Operands: []Operand{String}},
	PickVarRandom: {Name: "pickVarRandom", Operands: []Operand{Var}},
	RedimArray: {Name: "redimArray", SubOps: map[byte]SubOp{
		4: {"byte", []Operand{Var}},
		5: {"int", []Operand{Var}},
		6: {"dword", []Operand{Var}},
	}},
	StringLen: {Name: "stringLen"},
}

func withUndim(m map[byte]SubOp) map[byte]SubOp {
	out := make(map[byte]SubOp, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[204] = SubOp{"undim", []Operand{Var}}
	return out
}

// Lookup returns the layout of c. The second result is false for codes
// outside the core set.
func Lookup(c Code) (Info, bool) {
	info, ok := table[c]
	return info, ok
}

// Codes returns every code in the core set in ascending order.
func Codes() []Code {
	out := make([]Code, 0, len(table))
	for i := 0; i < 256; i++ {
		if _, ok := table[Code(i)]; ok {
			out = append(out, Code(i))
		}
	}
	return out
}

// String returns the mnemonic, or a hex form for codes outside the core set.
func (c Code) String() string {
	if info, ok := table[c]; ok {
		return info.Name
	}
	return fmt.Sprintf("op_%02X", byte(c))
}
