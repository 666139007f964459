package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"

	"github.com/msgboxio/ike/protocol"
)

// macFunc computes a checksum over data with key. The funcs that
// integrityTransform installs already truncate to the wire length cs.macLen.
type macFunc func(key, data []byte) []byte

func hmacSHA1(key, data []byte) []byte {
	m := hmac.New(sha1.New, key)
	m.Write(data)
	return m.Sum(nil)
}

func hmacSHA2_256(key, data []byte) []byte {
	m := hmac.New(sha256.New, key)
	m.Write(data)
	return m.Sum(nil)
}

func hmacSHA2_384(key, data []byte) []byte {
	m := hmac.New(sha512.New384, key)
	m.Write(data)
	return m.Sum(nil)
}

func hmacSHA2_512(key, data []byte) []byte {
	m := hmac.New(sha512.New, key)
	m.Write(data)
	return m.Sum(nil)
}

func truncate(f macFunc, n int) macFunc {
	return func(key, data []byte) []byte {
		full := f(key, data)
		if len(full) <= n {
			return full
		}
		return full[:n]
	}
}

// aesXcbcFull is the untruncated 128-bit AES-XCBC-MAC output (RFC 3566),
// used directly as PRF_AES128_XCBC and truncated to 96 bits for
// AUTH_AES_XCBC_96.
func aesXcbcFull(key, data []byte) []byte {
	block, err := aes.NewCipher(key)
	if err != nil {
		return make([]byte, 16)
	}
	return xcbcMac(block, data)
}

func aesXcbc96(key, data []byte) []byte {
	return aesXcbcFull(key, data)[:12]
}

// xcbcMac is the generic AES-XCBC-MAC-PRF core (RFC 3566 §4).
func xcbcMac(block cipher.Block, data []byte) []byte {
	const bs = 16
	k1, k2, k3 := xcbcSubkeys(block)
	c1, err := aes.NewCipher(k1)
	if err != nil {
		return make([]byte, bs)
	}
	e := make([]byte, bs)
	full := len(data) / bs
	if len(data)%bs == 0 && full > 0 {
		full--
	}
	for i := 0; i < full; i++ {
		xorBlock(e, data[i*bs:(i+1)*bs])
		c1.Encrypt(e, e)
	}
	last := data[full*bs:]
	var m [bs]byte
	copy(m[:], last)
	if len(last) == bs {
		xorBlock(m[:], k2)
	} else {
		m[len(last)] = 0x80
		xorBlock(m[:], k3)
	}
	xorBlock(e, m[:])
	c1.Encrypt(e, e)
	return e
}

func xcbcSubkeys(block cipher.Block) (k1, k2, k3 []byte) {
	mk := func(b byte) []byte {
		in := make([]byte, 16)
		for i := range in {
			in[i] = b
		}
		out := make([]byte, 16)
		block.Encrypt(out, in)
		return out
	}
	return mk(0x01), mk(0x02), mk(0x03)
}

func xorBlock(dst, src []byte) {
	for i := range dst {
		dst[i] ^= src[i]
	}
}

// integrityTransform builds (or augments) a simpleCipher with the
// requested INTEG transform's macFunc/macLen/macKeyLen.
func integrityTransform(authId uint16, cs *simpleCipher) (*simpleCipher, bool) {
	if cs == nil {
		cs = &simpleCipher{}
	}
	switch protocol.AuthTransformId(authId) {
	case protocol.AUTH_HMAC_SHA1_96:
		cs.macFunc = truncate(hmacSHA1, 12)
		cs.macLen, cs.macKeyLen = 12, 20
	case protocol.AUTH_HMAC_SHA2_256_128:
		cs.macFunc = truncate(hmacSHA2_256, 16)
		cs.macLen, cs.macKeyLen = 16, 32
	case protocol.AUTH_HMAC_SHA2_384_192:
		cs.macFunc = truncate(hmacSHA2_384, 24)
		cs.macLen, cs.macKeyLen = 24, 48
	case protocol.AUTH_HMAC_SHA2_512_256:
		cs.macFunc = truncate(hmacSHA2_512, 32)
		cs.macLen, cs.macKeyLen = 32, 64
	case protocol.AUTH_AES_XCBC_96:
		cs.macFunc = aesXcbc96
		cs.macLen, cs.macKeyLen = 12, 16
	case protocol.AUTH_NONE:
		// integrity is carried by the AEAD cipher instead
	default:
		return nil, false
	}
	cs.AuthTransformId = protocol.AuthTransformId(authId)
	return cs, true
}
