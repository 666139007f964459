package protocol

import (
	"github.com/msgboxio/packets"
)

const MIN_LEN_PROPOSAL = 8

// SaProposal is one numbered alternative within a Security Association
// payload: a protocol (IKE/AH/ESP), an optional SPI, and the transforms
// that make it up.
type SaProposal struct {
	IsLast     bool
	Number     uint8
	ProtocolId ProtocolId
	Spi        []byte
	Transforms []*SaTransform
}

func decodeProposal(b []byte) (*SaProposal, int, error) {
	if len(b) < MIN_LEN_PROPOSAL {
		return nil, 0, ErrF(ERR_INVALID_SYNTAX, "proposal too small %d", len(b))
	}
	last, _ := packets.ReadB8(b, 0)
	num, _ := packets.ReadB8(b, 2)
	protoId, _ := packets.ReadB8(b, 3)
	spiSize, _ := packets.ReadB8(b, 4)
	numTransforms, _ := packets.ReadB8(b, 5)
	plen, _ := packets.ReadB16(b, 6)
	if int(plen) < MIN_LEN_PROPOSAL || int(plen) > len(b) {
		return nil, 0, ErrF(ERR_INVALID_SYNTAX, "proposal length %d out of range", plen)
	}
	prop := &SaProposal{
		IsLast:     last == 0,
		Number:     num,
		ProtocolId: ProtocolId(protoId),
	}
	cursor := MIN_LEN_PROPOSAL
	if spiSize > 0 {
		if cursor+int(spiSize) > int(plen) {
			return nil, 0, ErrF(ERR_INVALID_SYNTAX, "proposal spi overruns proposal")
		}
		prop.Spi = append([]byte{}, b[cursor:cursor+int(spiSize)]...)
		cursor += int(spiSize)
	}
	for i := 0; i < int(numTransforms); i++ {
		if cursor >= int(plen) {
			return nil, 0, ErrF(ERR_INVALID_SYNTAX, "proposal missing transform %d of %d", i, numTransforms)
		}
		tr, n, err := decodeTransform(b[cursor:plen])
		if err != nil {
			return nil, 0, err
		}
		prop.Transforms = append(prop.Transforms, tr)
		cursor += n
	}
	return prop, int(plen), nil
}

func encodeProposal(prop *SaProposal) []byte {
	body := make([]byte, MIN_LEN_PROPOSAL)
	if prop.IsLast {
		body[0] = 0
	} else {
		body[0] = 2
	}
	body[2] = prop.Number
	body[3] = uint8(prop.ProtocolId)
	body[4] = uint8(len(prop.Spi))
	body[5] = uint8(len(prop.Transforms))
	body = append(body, prop.Spi...)
	for i, tr := range prop.Transforms {
		tr.IsLast = i == len(prop.Transforms)-1
		body = append(body, encodeTransform(tr)...)
	}
	packets.WriteB16(body, 6, uint16(len(body)))
	return body
}

// SaPayload is the Security Association payload: an ordered list of
// alternative proposals, the first acceptable one wins.
type SaPayload struct {
	*PayloadHeader
	Proposals []*SaProposal
}

func (s *SaPayload) Type() PayloadType { return PayloadTypeSA }

func (s *SaPayload) Decode(b []byte) error {
	cursor := 0
	for cursor < len(b) {
		prop, n, err := decodeProposal(b[cursor:])
		if err != nil {
			return err
		}
		s.Proposals = append(s.Proposals, prop)
		cursor += n
		if prop.IsLast {
			break
		}
	}
	return nil
}

func (s *SaPayload) Encode() []byte {
	var body []byte
	for i, prop := range s.Proposals {
		prop.IsLast = i == len(s.Proposals)-1
		body = append(body, encodeProposal(prop)...)
	}
	return body
}

// ProposalsFromTransform builds a single-proposal SA payload body from a
// configured transform set, numbering it 1 and attaching spi when given.
func ProposalsFromTransform(prot ProtocolId, transforms Transforms, spi []byte) []*SaProposal {
	return []*SaProposal{{
		IsLast:     true,
		Number:     1,
		ProtocolId: prot,
		Spi:        spi,
		Transforms: transforms.AsList(),
	}}
}
