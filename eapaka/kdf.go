package eapaka

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
)

// Keys is the key hierarchy exported by an AKA/AKA'/SIM run: K_encr and
// K_aut protect the EAP-AKA channel itself, MSK/EMSK key the outer IKE
// SA (RFC 5998) and anything above it.
type Keys struct {
	Kencr []byte
	Kaut  []byte
	MSK   []byte
	EMSK  []byte
}

// DeriveKeysAKA runs the RFC 4187 §7 key hierarchy: MK = SHA1(Identity |
// IK | CK), expanded with the FIPS-186-2 PRF into 160 bytes.
func DeriveKeysAKA(identity string, ck, ik []byte) Keys {
	h := sha1.New()
	h.Write([]byte(identity))
	h.Write(ik)
	h.Write(ck)
	mk := h.Sum(nil)
	block := prfFips1862(mk, 160)
	return Keys{
		Kencr: block[0:16],
		Kaut:  block[16:32],
		MSK:   block[32:96],
		EMSK:  block[96:160],
	}
}

// DeriveKeysAKAPrime runs the RFC 5448 §3.3/3.4 hierarchy: PRF'(IK' |
// CK', "EAP-AKA'" | Identity) expanded to 208 bytes, where K_aut/K_re
// are each twice as long as the plain-AKA equivalents.
func DeriveKeysAKAPrime(identity string, ckPrime, ikPrime []byte) (keys Keys, kRe []byte) {
	key := append(append([]byte{}, ikPrime...), ckPrime...)
	seed := append([]byte("EAP-AKA'"), []byte(identity)...)
	block := prfPlus(key, seed, 208)
	return Keys{
		Kencr: block[0:16],
		Kaut:  block[16:48],
		MSK:   block[80:144],
		EMSK:  block[144:208],
	}, block[48:80]
}

// DeriveCKIKPrime derives CK'/IK' from CK/IK and the access network name
// (RFC 5448 §3.1/3.2); netName is typically the NAI realm ("WLAN" in
// the common Wi-Fi calling deployment this package was grounded on).
func DeriveCKIKPrime(ck, ik []byte, netName string) (ckPrime, ikPrime []byte) {
	key := append(append([]byte{}, ik...), ck...)
	an := []byte(netName)
	seed := func(fc byte) []byte {
		s := make([]byte, 0, 1+8+2+len(an)+2)
		s = append(s, fc)
		s = append(s, []byte("EAP-AKA'")...)
		s = append(s, 0x00, 0x08)
		s = append(s, an...)
		s = append(s, byte(len(an)>>8), byte(len(an)))
		return s
	}
	ckPrime = prfPlus(key, seed(0x20), 32)[:16]
	ikPrime = prfPlus(key, seed(0x21), 32)[:16]
	return
}

// DeriveKeysSIM runs the RFC 4186 §7 key hierarchy for n GSM triplets:
// MK = SHA1(Identity | Kc_1 | ... | Kc_n | NONCE_MT | Version), expanded
// the same way EAP-AKA's MK is.
func DeriveKeysSIM(identity string, kcs [][]byte, nonceMt, version []byte) Keys {
	h := sha1.New()
	h.Write([]byte(identity))
	for _, kc := range kcs {
		h.Write(kc)
	}
	h.Write(nonceMt)
	h.Write(version)
	mk := h.Sum(nil)
	block := prfFips1862(mk, 160)
	return Keys{
		Kencr: block[0:16],
		Kaut:  block[16:32],
		MSK:   block[32:96],
		EMSK:  block[96:160],
	}
}

// prfFips1862 is the SHA1-based generator from FIPS 186-2 Change Notice
// 1 Appendix 3.1 that RFC 4186/4187 reuse (RFC 4187's own words: "not
// actually a FIPS-approved use", but it is what every interoperating
// implementation runs): x0 = SHA1(MK|0), xj = SHA1(MK|x(j-1)).
func prfFips1862(mk []byte, outputLen int) []byte {
	var out, cur []byte
	h := sha1.New()
	h.Write(mk)
	h.Write([]byte{0})
	cur = h.Sum(nil)
	out = append(out, cur...)
	for len(out) < outputLen {
		h.Reset()
		h.Write(mk)
		h.Write(cur)
		cur = h.Sum(nil)
		out = append(out, cur...)
	}
	return out[:outputLen]
}

// prfPlus is IKEv2's PRF+ (RFC 7296 §2.13) with HMAC-SHA-256, the PRF
// RFC 5448 names for every AKA' key expansion.
func prfPlus(key, seed []byte, outputLen int) []byte {
	var out, prev []byte
	counter := byte(1)
	for len(out) < outputLen {
		h := hmac.New(sha256.New, key)
		h.Write(prev)
		h.Write(seed)
		h.Write([]byte{counter})
		prev = h.Sum(nil)
		out = append(out, prev...)
		counter++
	}
	return out[:outputLen]
}
