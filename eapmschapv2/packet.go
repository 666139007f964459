package eapmschapv2

import (
	"encoding/binary"
	"strings"

	"github.com/msgboxio/ike/protocol"
)

// EapType is the legacy vendor EAP method number MS-CHAP-v2 is carried
// under (no IANA allocation exists; every interoperating stack uses 26).
const EapType uint8 = 26

// OpCode distinguishes the four MS-CHAP-v2 message shapes multiplexed
// over the single EAP type (RFC 2759 §2).
type OpCode uint8

const (
	OpChallenge OpCode = 1
	OpResponse  OpCode = 2
	OpSuccess   OpCode = 3
	OpFailure   OpCode = 4
)

// ChallengePacket is an EAP-Request carrying OpChallenge: the
// authenticator's 16-byte challenge and its own name (RFC 2759 §3).
type ChallengePacket struct {
	Identifier uint8
	MsChapID   uint8
	Challenge  []byte
	Name       string
}

func ParseChallenge(eapMessage []byte) (*ChallengePacket, error) {
	if len(eapMessage) < 4 {
		return nil, protocol.ErrF(0, "eap-mschapv2 packet too short")
	}
	if eapMessage[0] != uint8(CodeRequest) {
		return nil, protocol.ErrF(0, "expected eap code Request")
	}
	identifier := eapMessage[1]
	if len(eapMessage) < 5 || eapMessage[4] != EapType {
		return nil, protocol.ErrF(0, "expected eap-mschapv2 type")
	}
	body := eapMessage[5:]
	if len(body) < 5 || OpCode(body[0]) != OpChallenge {
		return nil, protocol.ErrF(0, "expected MS-CHAP-v2 Challenge op")
	}
	msChapID := body[1]
	msLen := int(binary.BigEndian.Uint16(body[2:4]))
	if msLen > len(body) {
		return nil, protocol.ErrF(0, "MS-CHAP-v2 length overflow")
	}
	valueSize := int(body[4])
	if 5+valueSize > len(body) || 5+valueSize > msLen {
		return nil, protocol.ErrF(0, "MS-CHAP-v2 challenge value truncated")
	}
	return &ChallengePacket{
		Identifier: identifier,
		MsChapID:   msChapID,
		Challenge:  append([]byte{}, body[5:5+valueSize]...),
		Name:       string(body[5+valueSize : msLen]),
	}, nil
}

// Code mirrors eapaka's own small set of EAP codes, duplicated here so
// this package has no dependency on eapaka's wire layer.
type Code uint8

const (
	CodeRequest  Code = 1
	CodeResponse Code = 2
	CodeSuccess  Code = 3
	CodeFailure  Code = 4
)

// ResponsePacket is the peer's OpResponse answer: its own 16-byte
// nonce, the 24-byte NT-Response, and a flags octet (RFC 2759 §5).
type ResponsePacket struct {
	Identifier    uint8
	MsChapID      uint8
	PeerChallenge []byte
	NtResponse    []byte
	Name          string
}

func (p *ResponsePacket) Marshal() []byte {
	value := make([]byte, 49)
	copy(value[0:16], p.PeerChallenge)
	// bytes 16:24 reserved, left zero
	copy(value[24:48], p.NtResponse)
	// byte 48 (Flags) left zero - no MPPE negotiation
	name := []byte(p.Name)
	msBody := make([]byte, 5+len(value)+len(name))
	msBody[0] = uint8(OpResponse)
	msBody[1] = p.MsChapID
	binary.BigEndian.PutUint16(msBody[2:4], uint16(len(msBody)))
	msBody[4] = uint8(len(value))
	copy(msBody[5:], value)
	copy(msBody[5+len(value):], name)

	eap := make([]byte, 5+len(msBody))
	eap[0] = uint8(CodeResponse)
	eap[1] = p.Identifier
	binary.BigEndian.PutUint16(eap[2:4], uint16(len(eap)))
	eap[4] = EapType
	copy(eap[5:], msBody)
	return eap
}

// parseSuccessMessage pulls the "S=<hex>" authenticator-response field
// out of an OpSuccess message body (RFC 2759 §4).
func parseSuccessMessage(msg string) (authResponse []byte, ok bool) {
	idx := strings.Index(msg, "S=")
	if idx < 0 || idx+2+40 > len(msg) {
		return nil, false
	}
	hexPart := msg[idx+2 : idx+2+40]
	b := make([]byte, 20)
	if _, err := hexDecode(b, hexPart); err != nil {
		return nil, false
	}
	return b, true
}

func hexDecode(dst []byte, s string) (int, error) {
	n := 0
	for i := 0; i+1 < len(s) && n < len(dst); i += 2 {
		hi, err := hexVal(s[i])
		if err != nil {
			return n, err
		}
		lo, err := hexVal(s[i+1])
		if err != nil {
			return n, err
		}
		dst[n] = hi<<4 | lo
		n++
	}
	return n, nil
}

func hexVal(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, protocol.ErrF(0, "invalid hex digit %q", c)
	}
}

// buildSuccessAck builds the empty EAP-Response RFC 2759 requires the
// peer to send once it accepts the server's Success message, before the
// server's own EAP-Success arrives.
func buildSuccessAck(identifier uint8) []byte {
	eap := make([]byte, 5)
	eap[0] = uint8(CodeResponse)
	eap[1] = identifier
	binary.BigEndian.PutUint16(eap[2:4], uint16(len(eap)))
	eap[4] = EapType
	return eap
}

// isFailure reports whether an incoming EAP-Request body is an
// OpFailure message, so the state machine can stop instead of treating
// it as a second Challenge.
func isFailure(eapMessage []byte) bool {
	if len(eapMessage) < 6 {
		return false
	}
	return eapMessage[4] == EapType && OpCode(eapMessage[5]) == OpFailure
}

func isSuccess(eapMessage []byte) (msg string, ok bool) {
	if len(eapMessage) < 6 || eapMessage[4] != EapType || OpCode(eapMessage[5]) != OpSuccess {
		return "", false
	}
	return string(eapMessage[6:]), true
}
