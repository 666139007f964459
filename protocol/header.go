// Package protocol implements the IKEv2 wire format: the fixed header,
// the payload chain, and the Security Association / proposal / transform
// / traffic-selector sub-structures defined in RFC 7296.
package protocol

import (
	"encoding/hex"

	"github.com/msgboxio/log"
	"github.com/msgboxio/packets"
)

const (
	IKE_PORT      = 500
	IKE_NATT_PORT = 4500

	LOG_CODEC = 3
)

const (
	IKEV2_MAJOR_VERSION = 2
	IKEV2_MINOR_VERSION = 0
)

// Spi is an IKE SA security parameter index - 8 octets, always present
// (zero for the responder SPI before IKE_SA_INIT completes).
type Spi [8]byte

type IkeExchangeType uint8

const (
	IKE_SA_INIT        IkeExchangeType = 34
	IKE_AUTH           IkeExchangeType = 35
	CREATE_CHILD_SA    IkeExchangeType = 36
	INFORMATIONAL      IkeExchangeType = 37
	IKE_SESSION_RESUME IkeExchangeType = 38
)

type PayloadType uint8

const (
	PayloadTypeNone    PayloadType = 0
	PayloadTypeSA      PayloadType = 33
	PayloadTypeKE      PayloadType = 34
	PayloadTypeIDi     PayloadType = 35
	PayloadTypeIDr     PayloadType = 36
	PayloadTypeCERT    PayloadType = 37
	PayloadTypeCERTREQ PayloadType = 38
	PayloadTypeAUTH    PayloadType = 39
	PayloadTypeNonce   PayloadType = 40
	PayloadTypeN       PayloadType = 41
	PayloadTypeD       PayloadType = 42
	PayloadTypeV       PayloadType = 43
	PayloadTypeTSi     PayloadType = 44
	PayloadTypeTSr     PayloadType = 45
	PayloadTypeSK      PayloadType = 46
	PayloadTypeCP      PayloadType = 47
	PayloadTypeEAP     PayloadType = 48
)

type IkeFlags uint8

const (
	RESPONSE  IkeFlags = 1 << 5
	VERSION   IkeFlags = 1 << 4
	INITIATOR IkeFlags = 1 << 3
)

func (f IkeFlags) IsResponse() bool  { return f&RESPONSE != 0 }
func (f IkeFlags) IsInitiator() bool { return f&INITIATOR != 0 }

type ProtocolId uint8

const (
	IKE ProtocolId = 1
	AH  ProtocolId = 2
	ESP ProtocolId = 3
)

const IKE_HEADER_LEN = 28

// IkeHeader is the 28-octet fixed header that precedes every IKE message.
type IkeHeader struct {
	SpiI, SpiR                 Spi
	NextPayload                PayloadType
	MajorVersion, MinorVersion uint8
	ExchangeType               IkeExchangeType
	Flags                      IkeFlags
	MsgId                      uint32
	MsgLength                  uint32
}

func DecodeIkeHeader(b []byte) (*IkeHeader, error) {
	if len(b) < IKE_HEADER_LEN {
		log.V(LOG_CODEC).Infof("ike header too short: %d", len(b))
		return nil, ErrF(ERR_INVALID_SYNTAX, "header truncated")
	}
	h := &IkeHeader{}
	copy(h.SpiI[:], b[0:8])
	copy(h.SpiR[:], b[8:16])
	pt, _ := packets.ReadB8(b, 16)
	h.NextPayload = PayloadType(pt)
	ver, _ := packets.ReadB8(b, 17)
	h.MajorVersion = ver >> 4
	h.MinorVersion = ver & 0x0f
	et, _ := packets.ReadB8(b, 18)
	h.ExchangeType = IkeExchangeType(et)
	flags, _ := packets.ReadB8(b, 19)
	h.Flags = IkeFlags(flags)
	h.MsgId, _ = packets.ReadB32(b, 20)
	h.MsgLength, _ = packets.ReadB32(b, 24)
	if h.MsgLength < IKE_HEADER_LEN {
		return nil, ErrF(ERR_INVALID_SYNTAX, "message length %d too small", h.MsgLength)
	}
	log.V(LOG_CODEC).Infof("ike header: %+v from\n%s", *h, hex.Dump(b[:IKE_HEADER_LEN]))
	return h, nil
}

func (h *IkeHeader) Encode() []byte {
	b := make([]byte, IKE_HEADER_LEN)
	copy(b[0:8], h.SpiI[:])
	copy(b[8:16], h.SpiR[:])
	packets.WriteB8(b, 16, uint8(h.NextPayload))
	packets.WriteB8(b, 17, h.MajorVersion<<4|h.MinorVersion)
	packets.WriteB8(b, 18, uint8(h.ExchangeType))
	packets.WriteB8(b, 19, uint8(h.Flags))
	packets.WriteB32(b, 20, h.MsgId)
	packets.WriteB32(b, 24, h.MsgLength)
	return b
}

const PAYLOAD_HEADER_LENGTH = 4

// PayloadHeader is the generic 4-octet "Next Payload | Critical | Length"
// header shared by every IKE payload.
type PayloadHeader struct {
	NextPayload   PayloadType
	IsCritical    bool
	PayloadLength uint16
}

func (h *PayloadHeader) NextPayloadType() PayloadType { return h.NextPayload }

func encodePayloadHeader(pt PayloadType, bodyLen int) []byte {
	b := make([]byte, PAYLOAD_HEADER_LENGTH)
	packets.WriteB8(b, 0, uint8(pt))
	packets.WriteB16(b, 2, uint16(bodyLen+PAYLOAD_HEADER_LENGTH))
	return b
}

func (h *PayloadHeader) Decode(b []byte) error {
	if len(b) < PAYLOAD_HEADER_LENGTH {
		return ErrF(ERR_INVALID_SYNTAX, "payload header truncated: %d", len(b))
	}
	pt, _ := packets.ReadB8(b, 0)
	h.NextPayload = PayloadType(pt)
	if c, _ := packets.ReadB8(b, 1); c&0x80 != 0 {
		h.IsCritical = true
	}
	h.PayloadLength, _ = packets.ReadB16(b, 2)
	if h.PayloadLength < PAYLOAD_HEADER_LENGTH {
		return ErrF(ERR_INVALID_SYNTAX, "payload length %d too small", h.PayloadLength)
	}
	return nil
}

// Payload is implemented by every concrete IKE payload.
type Payload interface {
	Type() PayloadType
	Decode([]byte) error
	Encode() []byte
	NextPayloadType() PayloadType
}
