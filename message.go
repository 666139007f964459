package ike

import (
	"io"
	"net"

	"github.com/msgboxio/ike/protocol"
)

// Message wraps a decoded protocol.Message with the network metadata a
// Session needs to validate and route it. Until a Tkm is available to
// decrypt it, an incoming SK-protected Message carries only its header -
// the raw wire bytes are kept in Data for the later decrypt pass.
type Message struct {
	IkeHeader *protocol.IkeHeader
	Payloads  *protocol.Payloads
	Data      []byte

	LocalAddr, RemoteAddr net.Addr
}

// DecodeMessage decodes the fixed header, then the payload chain if it is
// not SK-protected. SK-protected chains are left for handleEncryptedMessage
// once a Tkm is available.
func DecodeMessage(b []byte) (*Message, error) {
	h, err := protocol.DecodeIkeHeader(b)
	if err != nil {
		return nil, err
	}
	if int(h.MsgLength) > len(b) {
		return nil, io.ErrShortBuffer
	}
	m := &Message{IkeHeader: h, Data: b}
	if h.NextPayload != protocol.PayloadTypeSK {
		inner := &protocol.Message{IkeHeader: h}
		if err := inner.DecodePayloads(b[protocol.IKE_HEADER_LEN:h.MsgLength], nil); err != nil {
			return nil, err
		}
		m.Payloads = inner.Payloads
	}
	return m, nil
}

// EnsurePayloads checks that every payload type in want was present.
func (m *Message) EnsurePayloads(want []protocol.PayloadType) error {
	for _, pt := range want {
		if m.Payloads.Get(pt) == nil {
			return protocol.ErrF(protocol.ERR_INVALID_SYNTAX, "missing required payload %s", pt)
		}
	}
	return nil
}

// DecodePayloadsEncrypted decrypts and decodes the SK-protected chain of an
// already header-decoded Message, using tkm for the session's direction.
func (m *Message) DecodePayloadsEncrypted(tkm *Tkm) error {
	inner := &protocol.Message{IkeHeader: m.IkeHeader}
	if err := inner.DecodePayloads(m.Data[protocol.IKE_HEADER_LEN:m.IkeHeader.MsgLength], tkm); err != nil {
		return err
	}
	m.Payloads = inner.Payloads
	return nil
}

// Encode serializes the message, encrypting the payload chain under tkm
// when tkm is non-nil.
func (m *Message) Encode(tkm *Tkm) ([]byte, error) {
	inner := &protocol.Message{IkeHeader: m.IkeHeader, Payloads: m.Payloads}
	var cipher protocol.Cipher
	if tkm != nil {
		cipher = tkm
	}
	b, err := inner.Encode(cipher)
	if err != nil {
		return nil, err
	}
	m.Data = b
	return b, nil
}
