package crypto

import (
	"fmt"

	"github.com/msgboxio/ike/protocol"
)

// Prf is a negotiated pseudo-random function: HMAC(key, data) with a
// known output width, used both directly (AUTH, SKEYSEED) and as the
// seed of the PRF+ key-expansion ladder (RFC 7296 §2.13).
type Prf struct {
	Length int
	apply  macFunc
}

func (p *Prf) Apply(key, data []byte) []byte { return p.apply(key, data) }

func prfTranform(prfId uint16) (*Prf, error) {
	switch protocol.PrfTransformId(prfId) {
	case protocol.PRF_HMAC_SHA1:
		return &Prf{Length: 20, apply: hmacSHA1}, nil
	case protocol.PRF_HMAC_SHA2_256:
		return &Prf{Length: 32, apply: hmacSHA2_256}, nil
	case protocol.PRF_HMAC_SHA2_384:
		return &Prf{Length: 48, apply: hmacSHA2_384}, nil
	case protocol.PRF_HMAC_SHA2_512:
		return &Prf{Length: 64, apply: hmacSHA2_512}, nil
	case protocol.PRF_AES128_XCBC:
		return &Prf{Length: 16, apply: aesXcbcFull}, nil
	default:
		return nil, fmt.Errorf("unsupported prf transform %d", prfId)
	}
}

// prfPlus is the PRF+ key-expansion ladder of RFC 7296 §2.13:
//
//	T1 = PRF(K, S | 0x01)
//	Tn = PRF(K, T(n-1) | S | n)
//	PRF+(K,S) = T1 | T2 | T3 | ...
func prfPlus(prf *Prf, key, seed []byte, wantLen int) []byte {
	var out, prev []byte
	for round := byte(1); len(out) < wantLen; round++ {
		data := append(append(append([]byte{}, prev...), seed...), round)
		prev = prf.Apply(key, data)
		out = append(out, prev...)
	}
	return out[:wantLen]
}
