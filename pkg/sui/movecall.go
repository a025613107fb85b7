package sui

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// MoveCall describes a single programmable move call. The on-chain wire
// format is the ledger SDK's contract; this client only needs stable bytes
// to hash, sign and submit.
type MoveCall struct {
	Sender  string        `cbor:"sender"`
	Target  string        `cbor:"target"`
	Args    []interface{} `cbor:"args"`
	GasRef  string        `cbor:"gasRef,omitempty"`
	Budget  uint64        `cbor:"budget,omitempty"`
	Network string        `cbor:"network,omitempty"`
}

// Build serializes the call into transaction bytes.
func (m *MoveCall) Build() ([]byte, error) {
	if m.Sender == "" {
		return nil, fmt.Errorf("move call has no sender")
	}
	if m.Target == "" {
		return nil, fmt.Errorf("move call has no target")
	}
	txBytes, err := cbor.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("unable to serialize move call: %w", err)
	}
	return txBytes, nil
}
