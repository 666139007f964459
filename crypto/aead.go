package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	crand "crypto/rand"
	"encoding/hex"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/msgboxio/ike/protocol"
)

// aeadCipher implements the package-internal Cipher interface for
// AEAD_AES_GCM_* transforms (RFC 5282): no separate integrity key, no
// explicit HMAC step - the AEAD tag covers both confidentiality and
// integrity over the cleartext headers (skA is unused, accepted only to
// satisfy the shared Cipher interface).
type aeadCipher struct {
	protocol.EncrTransformId
	keyLen  int
	icvLen  int
	saltLen int
}

func (c *aeadCipher) String() string { return c.EncrTransformId.String() }

const gcmExplicitIvLen = 8 // the explicit per-packet IV carried on the wire

func (c *aeadCipher) gcm(skE []byte) (g cipher.AEAD, salt []byte, err error) {
	key := skE[:c.keyLen]
	salt = skE[c.keyLen : c.keyLen+c.saltLen]
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}
	g, err = cipher.NewGCMWithTagSize(block, c.icvLen)
	return
}

func (c *aeadCipher) Overhead(clear []byte) int {
	return gcmExplicitIvLen + c.icvLen
}

func (c *aeadCipher) EncryptedLen(plaintextLen int) int {
	return gcmExplicitIvLen + plaintextLen + c.icvLen
}

func (c *aeadCipher) EncryptMac(headers, payload, _, skE []byte, l log.Logger) ([]byte, error) {
	g, salt, err := c.gcm(skE)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, gcmExplicitIvLen)
	if _, err := crand.Read(iv); err != nil {
		return nil, err
	}
	nonce := append(append([]byte{}, salt...), iv...)
	sealed := g.Seal(nil, nonce, payload, headers)
	level.Debug(l).Log("msg", "aead seal", "IV", hex.EncodeToString(iv))
	return append(iv, sealed...), nil
}

func (c *aeadCipher) VerifyDecrypt(ike, _, skE []byte, l log.Logger) ([]byte, error) {
	g, salt, err := c.gcm(skE)
	if err != nil {
		return nil, err
	}
	headers := ike[:protocol.IKE_HEADER_LEN+protocol.PAYLOAD_HEADER_LENGTH]
	body := ike[len(headers):]
	if len(body) < gcmExplicitIvLen+c.icvLen {
		return nil, protocol.ErrF(protocol.ERR_INVALID_SYNTAX, "aead payload too short")
	}
	iv := body[:gcmExplicitIvLen]
	nonce := append(append([]byte{}, salt...), iv...)
	level.Debug(l).Log("msg", "aead open", "IV", hex.EncodeToString(iv))
	return g.Open(nil, nonce, body[gcmExplicitIvLen:], headers)
}

func aeadTransform(cipherId uint16, keyLen int, existing *aeadCipher) (*aeadCipher, int, bool) {
	var icvLen int
	switch protocol.EncrTransformId(cipherId) {
	case protocol.AEAD_AES_GCM_8:
		icvLen = 8
	case protocol.AEAD_AES_GCM_12:
		icvLen = 12
	case protocol.AEAD_AES_GCM_16:
		icvLen = 16
	default:
		return existing, keyLen, false
	}
	if keyLen == 0 {
		keyLen = 16 // AEAD_AES_128_GCM default, matches the teacher's negotiated combos
	}
	c := existing
	if c == nil {
		c = &aeadCipher{}
	}
	c.EncrTransformId = protocol.EncrTransformId(cipherId)
	c.keyLen = keyLen
	c.icvLen = icvLen
	c.saltLen = 4
	// total key material requested includes the 4-byte salt appended
	// after the cipher key, per RFC 5282.
	return c, keyLen + c.saltLen, true
}
