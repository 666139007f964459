package eapaka

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"hash"

	"github.com/msgboxio/ike/protocol"
)

// Packet is one EAP-AKA/AKA'/SIM message: an EAP header (RFC 3748 §4)
// followed, for Request/Response, by the method Type/Subtype and a TLV
// attribute chain (RFC 4187 §8.1). Success/Failure carry no body.
type Packet struct {
	Code       uint8
	Identifier uint8
	Type       uint8
	Subtype    uint8
	Attributes []Attribute
}

// Get returns the first attribute of type t, or nil.
func (p *Packet) Get(t AttributeType) Attribute {
	for _, a := range p.Attributes {
		if a.Type() == t {
			return a
		}
	}
	return nil
}

func (p *Packet) Marshal() ([]byte, error) {
	var attrs bytes.Buffer
	if p.Code == CodeRequest || p.Code == CodeResponse {
		attrs.WriteByte(p.Type)
		attrs.WriteByte(p.Subtype)
		attrs.Write([]byte{0, 0})
		for _, a := range p.Attributes {
			b, err := a.Marshal()
			if err != nil {
				return nil, err
			}
			attrs.Write(b)
		}
	}
	eapLen := 4 + attrs.Len()
	if eapLen > 65535 {
		return nil, protocol.ErrF(0, "eap-aka packet too long")
	}
	var buf bytes.Buffer
	buf.WriteByte(p.Code)
	buf.WriteByte(p.Identifier)
	binary.Write(&buf, binary.BigEndian, uint16(eapLen))
	buf.Write(attrs.Bytes())
	return buf.Bytes(), nil
}

// Parse decodes one EAP message. Only AKA/AKA'/SIM type bodies are
// attribute-decoded; a differently-typed Request/Response still parses
// the EAP header so a caller can at least see Code/Identifier/Type.
func Parse(data []byte) (*Packet, error) {
	if len(data) < 4 {
		return nil, protocol.ErrF(0, "eap packet too short")
	}
	p := &Packet{Code: data[0], Identifier: data[1]}
	length := int(binary.BigEndian.Uint16(data[2:4]))
	if length > len(data) {
		return nil, protocol.ErrF(0, "eap packet length mismatch")
	}
	body := data[4:length]
	if p.Code == CodeSuccess || p.Code == CodeFailure || len(body) == 0 {
		return p, nil
	}
	p.Type = body[0]
	if p.Type != TypeAKA && p.Type != TypeAKAPrime && p.Type != TypeSIM {
		return p, nil
	}
	if len(body) < 4 {
		return nil, protocol.ErrF(0, "eap-aka header truncated")
	}
	p.Subtype = body[1]
	attrData := body[4:]
	offset := 0
	for offset < len(attrData) {
		if offset+2 > len(attrData) {
			return nil, protocol.ErrF(0, "eap-aka attribute header truncated")
		}
		t := AttributeType(attrData[offset])
		attrLen := int(attrData[offset+1]) * 4
		if attrLen == 0 || offset+attrLen > len(attrData) {
			return nil, protocol.ErrF(0, "eap-aka attribute %d length overflow", t)
		}
		attr, err := decodeAttribute(t, attrData[offset+2:offset+attrLen])
		if err != nil {
			return nil, err
		}
		p.Attributes = append(p.Attributes, attr)
		offset += attrLen
	}
	return p, nil
}

// CalculateAndSetMac zeroes the packet's AT_MAC, marshals it, and fills
// in the MAC over the result keyed on kAut (RFC 4187 §10.15).
func (p *Packet) CalculateAndSetMac(kAut []byte) error {
	mac, ok := p.Get(AT_MAC).(*AtMac)
	if !ok {
		return protocol.ErrF(0, "packet carries no AT_MAC to fill in")
	}
	mac.MAC = make([]byte, 16)
	data, err := p.Marshal()
	if err != nil {
		return err
	}
	sum, err := p.calculateMac(kAut, data)
	if err != nil {
		return err
	}
	mac.MAC = sum
	return nil
}

// VerifyMac checks the packet's AT_MAC against one computed over the
// packet with AT_MAC zeroed, as the sender did before setting it.
func (p *Packet) VerifyMac(kAut []byte) (bool, error) {
	mac, ok := p.Get(AT_MAC).(*AtMac)
	if !ok {
		return false, protocol.ErrF(0, "packet carries no AT_MAC to verify")
	}
	received := append([]byte{}, mac.MAC...)
	mac.MAC = make([]byte, 16)
	data, err := p.Marshal()
	mac.MAC = received
	if err != nil {
		return false, err
	}
	expected, err := p.calculateMac(kAut, data)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(received, expected) == 1, nil
}

func (p *Packet) calculateMac(kAut []byte, data []byte) ([]byte, error) {
	var h hash.Hash
	switch p.Type {
	case TypeAKA, TypeSIM:
		h = hmac.New(sha1.New, kAut)
	case TypeAKAPrime:
		h = hmac.New(sha256.New, kAut)
	default:
		return nil, protocol.ErrF(0, "unsupported eap type %d for MAC", p.Type)
	}
	h.Write(data)
	return h.Sum(nil)[:16], nil
}
