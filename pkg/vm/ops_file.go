package vm

import (
	"encoding/binary"
	"errors"
	"io"
)

const (
	fileSubByte  = 4
	fileSubWord  = 5
	fileSubDWord = 6
	fileSubArray = 8
)

func opOpenFile(in *Interpreter) error {
	name, err := in.FetchString()
	if err != nil {
		return err
	}
	mode, err := in.Pop()
	if err != nil {
		return err
	}
	slot, err := in.session.files.Open(string(name), mode)
	if err != nil {
		return err
	}
	in.log.Debug("openFile", "name", string(name), "mode", mode, "slot", slot)
	in.Push(slot)
	return nil
}

func opCloseFile(in *Interpreter) error {
	slot, err := in.Pop()
	if err != nil {
		return err
	}
	if slot == -1 {
		return nil
	}
	return in.session.files.Close(slot)
}

func opDeleteFile(in *Interpreter) error {
	name, err := in.FetchString()
	if err != nil {
		return err
	}
	return in.session.files.Delete(string(name))
}

func fileIOError(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return NewScriptError(ErrorFile, "read past end of file")
	}
	return NewScriptError(ErrorFile, "%v", err)
}

func opReadFile(in *Interpreter) error {
	sub, err := in.FetchByte()
	if err != nil {
		return err
	}

	switch sub {
	case fileSubByte, fileSubWord, fileSubDWord:
		slot, err := in.Pop()
		if err != nil {
			return err
		}
		r, err := in.session.files.Reader(slot)
		if err != nil {
			return err
		}
		var buf [4]byte
		n := map[byte]int{fileSubByte: 1, fileSubWord: 2, fileSubDWord: 4}[sub]
		if _, err := io.ReadFull(r, buf[:n]); err != nil {
			return fileIOError(err)
		}
		switch sub {
		case fileSubByte:
			in.Push(int32(buf[0]))
		case fileSubWord:
			in.Push(int32(binary.LittleEndian.Uint16(buf[:])))
		default:
			in.Push(int32(binary.LittleEndian.Uint32(buf[:])))
		}
		return nil

	case fileSubArray:
		if _, err := in.FetchByte(); err != nil {
			return err
		}
		size, err := in.Pop()
		if err != nil {
			return err
		}
		slot, err := in.Pop()
		if err != nil {
			return err
		}
		id, err := in.readFileToArray(slot, size)
		if err != nil {
			return err
		}
		in.Push(id)
		return nil
	}
	return errUnknownSubOp("readFile", sub)
}

// readFileToArray reads size bytes (or the rest of the file when size is 0)
// into a new byte array referenced by variable 0 and returns its id.
func (in *Interpreter) readFileToArray(slot, size int32) (int32, error) {
	files := in.session.files
	r, err := files.Reader(slot)
	if err != nil {
		return 0, err
	}
	if size == 0 {
		rest, err := files.Remaining(slot)
		if err != nil {
			return 0, err
		}
		if rest >= MaxArrayBytes {
			return 0, NewScriptError(ErrorInvalidDimension, "file slot %d: %d bytes left, limit %d", slot, rest, MaxArrayBytes)
		}
		size = int32(rest)
	}

	if err := in.WriteVar(0, 0); err != nil {
		return 0, err
	}
	a, err := in.DefineArray(0, TypeByte, Range{0, 0}, Range{0, size})
	if err != nil {
		return 0, err
	}
	if _, err := io.ReadFull(r, a.Data[:size]); err != nil {
		return 0, fileIOError(err)
	}
	return in.ReadVar(0)
}

func opWriteFile(in *Interpreter) error {
	value, err := in.Pop()
	if err != nil {
		return err
	}
	slot, err := in.Pop()
	if err != nil {
		return err
	}
	sub, err := in.FetchByte()
	if err != nil {
		return err
	}
	w, err := in.session.files.Writer(slot)
	if err != nil {
		return err
	}

	var buf []byte
	switch sub {
	case fileSubByte:
		buf = []byte{byte(value)}
	case fileSubWord:
		buf = binary.LittleEndian.AppendUint16(nil, uint16(value))
	case fileSubDWord:
		buf = binary.LittleEndian.AppendUint32(nil, uint32(value))
	case fileSubArray:
		a, err := in.session.state.Arrays.Get(int32(int16(value)))
		if err != nil {
			return err
		}
		buf = a.Data
	default:
		return errUnknownSubOp("writeFile", sub)
	}
	if _, err := w.Write(buf); err != nil {
		return fileIOError(err)
	}
	return nil
}
