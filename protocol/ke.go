package protocol

import (
	"github.com/msgboxio/packets"
)

// KePayload carries the Diffie-Hellman public value for the group named
// in the header. KeyData is the fixed-width big-endian encoding of the
// public value - callers own padding it to the group's modulus width
// before handing it to Encode (the crypto package does this via
// big.Int.FillBytes when building the payload).
type KePayload struct {
	*PayloadHeader
	DhTransformId DhTransformId
	KeyData       []byte
}

func (s *KePayload) Type() PayloadType { return PayloadTypeKE }

func (s *KePayload) Decode(b []byte) error {
	if len(b) < 4 {
		return ErrF(ERR_INVALID_SYNTAX, "ke payload too small %d", len(b))
	}
	dh, _ := packets.ReadB16(b, 0)
	s.DhTransformId = DhTransformId(dh)
	s.KeyData = append([]byte{}, b[4:]...)
	return nil
}

func (s *KePayload) Encode() []byte {
	b := make([]byte, 4+len(s.KeyData))
	packets.WriteB16(b, 0, uint16(s.DhTransformId))
	copy(b[4:], s.KeyData)
	return b
}
