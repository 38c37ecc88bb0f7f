// Package chain defines the contract between the core pipeline and its two
// external collaborators: the block-streaming source (archive gateway + live
// follow) and the generated storage bindings that decode chain state at a
// given block. The core never talks to an RPC node directly.
package chain

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// AccountID is a 32-byte chain account, rendered as 0x-prefixed hex on
// external interfaces.
type AccountID [32]byte

func (a AccountID) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

func AccountIDFromHex(s string) (AccountID, error) {
	var a AccountID
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("account id %q: %w", s, err)
	}
	if len(b) != len(a) {
		return a, fmt.Errorf("account id %q: expected 32 bytes, got %d", s, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// Event is a decoded runtime event. Args carry the SCALE-decoded payload as
// JSON produced by the source; versioned decoders in the core pick it apart.
type Event struct {
	Pallet string
	Name   string
	Args   json.RawMessage
}

func (e Event) Is(pallet, name string) bool {
	return e.Pallet == pallet && e.Name == name
}

// Call is a decoded extrinsic call. Only successful calls are considered by
// the change detector.
type Call struct {
	Pallet  string
	Name    string
	Args    json.RawMessage
	Success bool
}

func (c Call) Is(pallet, name string) bool {
	return c.Pallet == pallet && c.Name == name
}

// Block is one unit of work delivered by the source. Storage is a handle
// scoped to exactly this block's state root.
type Block struct {
	Height      uint32
	Hash        string
	ParentHash  string
	Timestamp   time.Time
	SpecVersion uint32
	Events      []Event
	Calls       []Call
	Storage     Storage
}

// Head identifies a block by height and hash.
type Head struct {
	Height uint32
	Hash   string
}

// Batch is what the source hands the pipeline: blocks in ascending height
// order plus the highest head the source asserts is irreversible.
type Batch struct {
	Blocks        []*Block
	FinalizedHead Head
}

// BatchHandler processes one batch. Returning an error aborts the source.
type BatchHandler func(ctx context.Context, batch *Batch) error

// Source streams batches of blocks starting at fromBlock, invoking handler
// once per batch, in order, until the context is cancelled or toBlock (when
// non-zero) has been delivered.
type Source interface {
	Run(ctx context.Context, fromBlock, toBlock uint32, handler BatchHandler) error
}
