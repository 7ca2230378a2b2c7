// Package savestate persists the shared script state of a session.
//
// A snapshot is encoded as canonical CBOR inside a small versioned envelope
// and kept in numbered slots of a SQLite database.
package savestate

import (
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/zurustar/hecore/pkg/vm"
)

// FormatVersion is written into every encoded snapshot.
const FormatVersion = 1

var (
	ErrVersion      = errors.New("unsupported save format version")
	ErrGameMismatch = errors.New("save belongs to another game")
)

// Envelope is the encoded form of one save.
type Envelope struct {
	Version int          `cbor:"1,keyasint"`
	Game    string       `cbor:"2,keyasint"`
	SavedAt time.Time    `cbor:"3,keyasint"`
	State   *vm.Snapshot `cbor:"4,keyasint"`
}

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("savestate: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Encode serializes snap for game.
func Encode(game string, savedAt time.Time, snap *vm.Snapshot) ([]byte, error) {
	if snap == nil {
		return nil, errors.New("savestate: nil snapshot")
	}
	data, err := encMode.Marshal(&Envelope{
		Version: FormatVersion,
		Game:    game,
		SavedAt: savedAt.UTC(),
		State:   snap,
	})
	if err != nil {
		return nil, fmt.Errorf("savestate: marshal: %w", err)
	}
	return data, nil
}

// Decode parses data produced by Encode.
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("savestate: unmarshal: %w", err)
	}
	if env.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrVersion, env.Version)
	}
	if env.State == nil {
		return nil, errors.New("savestate: save has no state")
	}
	return &env, nil
}
