package protocol

import (
	"github.com/msgboxio/log"
	"github.com/pkg/errors"
)

// Cipher is the collaborator a Message needs to decode/encode an SK
// (encrypted) payload. Implemented by crypto.Tkm; kept as an interface
// here so the codec does not import the crypto package.
type Cipher interface {
	// VerifyDecrypt checks the integrity checksum trailing ike, then
	// decrypts and un-pads the payload. Direction (initiator/responder
	// keys) is tracked internally by the implementation.
	VerifyDecrypt(ike []byte) ([]byte, error)
	// EncryptMac pads and encrypts payload, appends the integrity
	// checksum computed over headers||ciphertext. headers must already
	// carry the final message length - see EncryptedLen.
	EncryptMac(headers, payload []byte) ([]byte, error)
	// EncryptedLen returns the length of the SK payload body (IV +
	// padded ciphertext + pad-length byte + MAC) that EncryptMac will
	// produce for a plaintext of plaintextLen bytes, so the caller can
	// fill in the message header's length field before the MAC is
	// computed over it.
	EncryptedLen(plaintextLen int) int
}

func makePayload(pt PayloadType) Payload {
	switch pt {
	case PayloadTypeSA:
		return &SaPayload{}
	case PayloadTypeKE:
		return &KePayload{}
	case PayloadTypeIDi:
		return &IdPayload{IdPayloadType: PayloadTypeIDi}
	case PayloadTypeIDr:
		return &IdPayload{IdPayloadType: PayloadTypeIDr}
	case PayloadTypeCERT:
		return &CertPayload{}
	case PayloadTypeCERTREQ:
		return &CertRequestPayload{}
	case PayloadTypeAUTH:
		return &AuthPayload{}
	case PayloadTypeNonce:
		return &NoncePayload{nonceType: PayloadTypeNonce}
	case PayloadTypeN:
		return &NotifyPayload{}
	case PayloadTypeD:
		return &DeletePayload{}
	case PayloadTypeV:
		return &VendorIdPayload{}
	case PayloadTypeTSi:
		return &TrafficSelectorPayload{trafficSelectorPayloadType: PayloadTypeTSi}
	case PayloadTypeTSr:
		return &TrafficSelectorPayload{trafficSelectorPayloadType: PayloadTypeTSr}
	case PayloadTypeCP:
		return &ConfigurationPayload{}
	case PayloadTypeEAP:
		return &EapPayload{}
	default:
		return nil
	}
}

// Payloads is the decoded, typed payload chain of one Message.
type Payloads struct {
	Map   map[PayloadType]int
	Array []Payload
}

// MakePayloads returns an empty Payloads chain ready for Add calls, for
// building an outgoing Message.
func MakePayloads() *Payloads {
	return &Payloads{Map: make(map[PayloadType]int)}
}

func (p *Payloads) Add(payload Payload) {
	p.Map[payload.Type()] = len(p.Array)
	p.Array = append(p.Array, payload)
}

func (p *Payloads) Get(pt PayloadType) Payload {
	if idx, ok := p.Map[pt]; ok {
		return p.Array[idx]
	}
	return nil
}

// GetAll returns every payload of type pt in chain order. Most payload
// types appear at most once per message, but Notify payloads routinely
// don't (NAT detection, COOKIE, SIGNATURE_HASH_ALGORITHMS can all ride
// the same IKE_SA_INIT response), so Get's last-one-wins map lookup
// isn't enough for those.
func (p *Payloads) GetAll(pt PayloadType) []Payload {
	var out []Payload
	for _, payload := range p.Array {
		if payload.Type() == pt {
			out = append(out, payload)
		}
	}
	return out
}

// Message is a fully decoded (or about-to-be-encoded) IKE packet.
type Message struct {
	IkeHeader *IkeHeader
	Payloads  *Payloads
	// set by DecodePayloads/Encode when the SK payload is present
	wasEncrypted bool
}

func (m *Message) DecodeHeader(b []byte) error {
	h, err := DecodeIkeHeader(b)
	if err != nil {
		return err
	}
	m.IkeHeader = h
	return nil
}

// DecodePayloads walks the payload chain starting at b (the bytes after
// the fixed header). If the chain's first payload is SK, cipher decrypts
// it in place and decoding continues over the plaintext inner chain.
func (m *Message) DecodePayloads(b []byte, cipher Cipher) error {
	m.Payloads = MakePayloads()
	nextPayload := m.IkeHeader.NextPayload
	for nextPayload != PayloadTypeNone {
		if len(b) < PAYLOAD_HEADER_LENGTH {
			return ErrF(ERR_INVALID_SYNTAX, "truncated payload chain, want %s", nextPayload)
		}
		ph := &PayloadHeader{}
		if err := ph.Decode(b); err != nil {
			return err
		}
		body := b[PAYLOAD_HEADER_LENGTH:ph.PayloadLength]
		rest := b[ph.PayloadLength:]

		if nextPayload == PayloadTypeSK {
			if cipher == nil {
				return ErrF(ERR_INVALID_SYNTAX, "encountered SK payload without a cipher")
			}
			// the integrity checksum covers the fixed IKE header too, not
			// just the SK payload - reconstruct it from the already-decoded
			// header rather than requiring callers to pass raw header bytes
			// through DecodePayloads.
			ike := append(m.IkeHeader.Encode(), b[:len(b)-len(rest)]...)
			dec, err := cipher.VerifyDecrypt(ike)
			if err != nil {
				return errors.Wrap(err, "verify/decrypt SK payload")
			}
			m.wasEncrypted = true
			innerNext := ph.NextPayload
			log.V(LOG_CODEC).Infof("decrypted SK payload: %d bytes, inner next %s", len(dec), innerNext)
			if err := m.decodeChain(innerNext, dec); err != nil {
				return err
			}
			nextPayload = PayloadTypeNone
			b = rest
			continue
		}

		payload := makePayload(nextPayload)
		if payload == nil {
			if ph.IsCritical {
				return ErrF(ERR_UNSUPPORTED_CRITICAL_PAYLOAD, "unknown critical payload %d", nextPayload)
			}
			log.Warningf("skipping unsupported non-critical payload %d", nextPayload)
		} else {
			if err := payload.Decode(body); err != nil {
				return err
			}
			m.Payloads.Add(payload)
		}
		nextPayload = ph.NextPayload
		b = rest
	}
	return nil
}

func (m *Message) decodeChain(nextPayload PayloadType, b []byte) error {
	for nextPayload != PayloadTypeNone {
		if len(b) < PAYLOAD_HEADER_LENGTH {
			return ErrF(ERR_INVALID_SYNTAX, "truncated inner payload chain, want %s", nextPayload)
		}
		ph := &PayloadHeader{}
		if err := ph.Decode(b); err != nil {
			return err
		}
		if int(ph.PayloadLength) > len(b) {
			return ErrF(ERR_INVALID_SYNTAX, "inner payload length %d overruns chain", ph.PayloadLength)
		}
		body := b[PAYLOAD_HEADER_LENGTH:ph.PayloadLength]
		payload := makePayload(nextPayload)
		if payload == nil {
			if ph.IsCritical {
				return ErrF(ERR_UNSUPPORTED_CRITICAL_PAYLOAD, "unknown critical payload %d", nextPayload)
			}
			log.Warningf("skipping unsupported non-critical inner payload %d", nextPayload)
		} else {
			if err := payload.Decode(body); err != nil {
				return err
			}
			m.Payloads.Add(payload)
		}
		nextPayload = ph.NextPayload
		b = b[ph.PayloadLength:]
	}
	return nil
}

func encodePayloadChain(payloads []Payload) []byte {
	var out []byte
	for i, p := range payloads {
		next := PayloadTypeNone
		if i < len(payloads)-1 {
			next = payloads[i+1].Type()
		}
		body := p.Encode()
		out = append(out, encodePayloadHeader(next, len(body))...)
		out = append(out, body...)
	}
	return out
}

// Encode serializes the header and payload chain. When cipher is
// non-nil, every payload in m.Payloads is wrapped in a single SK payload
// encrypted with cipher.
func (m *Message) Encode(cipher Cipher) ([]byte, error) {
	headerCopy := *m.IkeHeader
	if cipher == nil {
		if len(m.Payloads.Array) > 0 {
			headerCopy.NextPayload = m.Payloads.Array[0].Type()
		} else {
			headerCopy.NextPayload = PayloadTypeNone
		}
		body := encodePayloadChain(m.Payloads.Array)
		headerCopy.MsgLength = uint32(IKE_HEADER_LEN + len(body))
		return append(headerCopy.Encode(), body...), nil
	}

	headerCopy.NextPayload = PayloadTypeSK
	inner := encodePayloadChain(m.Payloads.Array)
	innerNext := PayloadTypeNone
	if len(m.Payloads.Array) > 0 {
		innerNext = m.Payloads.Array[0].Type()
	}
	skBodyLen := cipher.EncryptedLen(len(inner))
	headerCopy.MsgLength = uint32(IKE_HEADER_LEN + PAYLOAD_HEADER_LENGTH + skBodyLen)
	headerBytes := headerCopy.Encode()
	enc, err := cipher.EncryptMac(headerBytes, inner)
	if err != nil {
		return nil, errors.Wrap(err, "encrypt/mac SK payload")
	}
	if len(enc) != skBodyLen {
		return nil, ErrF(ERR_INVALID_SYNTAX, "cipher produced %d bytes, expected %d", len(enc), skBodyLen)
	}
	skPayload := append(encodePayloadHeader(PayloadTypeNone, len(enc)), enc...)
	// the SK payload's own "next payload" field names the inner chain's head
	skPayload[0] = uint8(innerNext)

	out := headerCopy.Encode()
	out = append(out, skPayload...)
	return out, nil
}
