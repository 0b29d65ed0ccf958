package gossip

import (
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"
)

// TopicWitnessedEvents is the single broadcast topic carrying witnessed
// event attestations between validators.
const TopicWitnessedEvents = "WitnessedEvent"

// EventIDSize is the fixed width of an event identifier.
const EventIDSize = 32

// EventID identifies an externally observed occurrence.
type EventID [EventIDSize]byte

// EventIDFromBytes copies b into an EventID, rejecting any length other
// than exactly EventIDSize.
func EventIDFromBytes(b []byte) (EventID, error) {
	var id EventID
	if len(b) != EventIDSize {
		return id, fmt.Errorf("event id must be %d bytes, got %d", EventIDSize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// EventIDFromHex parses the hex form used on the CLI and REST surfaces.
func EventIDFromHex(s string) (EventID, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return EventID{}, fmt.Errorf("invalid event id hex: %v", err)
	}
	return EventIDFromBytes(raw)
}

// NewEventID derives an identifier from arbitrary payload bytes.
func NewEventID(data []byte) EventID {
	return blake2b.Sum256(data)
}

func (id EventID) Bytes() []byte {
	out := make([]byte, EventIDSize)
	copy(out, id[:])
	return out
}

func (id EventID) String() string {
	return hex.EncodeToString(id[:])
}

// WitnessedEvent is a validator's signed claim that the identified
// occurrence took place. The wire form is a fixed-order CBOR array
// (signature, public key, identifier); the identifier is a fixed 32-byte
// field, so untrusted input carrying any other identifier length fails to
// decode and never reaches code assuming fixed width.
type WitnessedEvent struct {
	_         struct{} `cbor:",toarray"`
	Signature []byte
	PubKey    []byte
	EventID   EventID
}

// Encode serializes the event into its wire form.
func (e *WitnessedEvent) Encode() ([]byte, error) {
	data, err := cbor.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode witnessed event: %v", err)
	}
	return data, nil
}

// DecodeWitnessedEvent parses untrusted wire bytes. Anything that is not
// exactly the three-field shape above is an error, never a panic.
func DecodeWitnessedEvent(data []byte) (*WitnessedEvent, error) {
	var ev WitnessedEvent
	if err := cbor.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("failed to decode witnessed event: %v", err)
	}
	return &ev, nil
}
