package protocol

import "github.com/msgboxio/packets"

// DeletePayload requests deletion of one or more SAs of ProtocolId - an
// empty Spis list (IKE SA delete) implicitly deletes the whole IKE SA
// and every Child SA under it.
type DeletePayload struct {
	*PayloadHeader
	ProtocolId ProtocolId
	SpiSize    uint8
	Spis       [][]byte
}

func NewDeletePayload(prot ProtocolId, spis ...[]byte) *DeletePayload {
	spiSize := uint8(0)
	if len(spis) > 0 {
		spiSize = uint8(len(spis[0]))
	}
	return &DeletePayload{ProtocolId: prot, SpiSize: spiSize, Spis: spis}
}

func (s *DeletePayload) Type() PayloadType { return PayloadTypeD }

func (s *DeletePayload) Decode(b []byte) error {
	if len(b) < 4 {
		return ErrF(ERR_INVALID_SYNTAX, "delete payload too small %d", len(b))
	}
	s.ProtocolId = ProtocolId(b[0])
	s.SpiSize = b[1]
	numSpis, _ := packets.ReadB16(b, 2)
	cursor := 4
	for i := 0; i < int(numSpis); i++ {
		if cursor+int(s.SpiSize) > len(b) {
			return ErrF(ERR_INVALID_SYNTAX, "delete payload spi %d overruns payload", i)
		}
		s.Spis = append(s.Spis, append([]byte{}, b[cursor:cursor+int(s.SpiSize)]...))
		cursor += int(s.SpiSize)
	}
	return nil
}

func (s *DeletePayload) Encode() []byte {
	b := make([]byte, 4)
	b[0] = uint8(s.ProtocolId)
	b[1] = s.SpiSize
	packets.WriteB16(b, 2, uint16(len(s.Spis)))
	for _, spi := range s.Spis {
		b = append(b, spi...)
	}
	return b
}
