// Package eapmschapv2 implements EAP-MSCHAPv2 (RFC 2759, carried as EAP
// type 26 per the legacy Microsoft vendor allocation), the Challenge/
// Response/Success-Request/Success inner method this repository's EAP
// method set carries alongside eapaka's AKA/AKA'/SIM.
package eapmschapv2

import (
	"crypto/des"
	"crypto/hmac"
	"crypto/sha1"
	"unicode/utf16"

	"github.com/msgboxio/ike/protocol"
	"golang.org/x/crypto/md4"
)

// NtPasswordHash is MD4(UTF16LE(password)) (RFC 2759 §8.1 "NtPasswordHash").
func NtPasswordHash(password string) []byte {
	h := md4.New()
	h.Write(utf16le(password))
	return h.Sum(nil)
}

// HashNtPasswordHash is MD4 applied again to the password hash (RFC 2759
// §8.1 "HashNtPasswordHash"), used by the authenticator-response check.
func HashNtPasswordHash(passwordHash []byte) []byte {
	h := md4.New()
	h.Write(passwordHash)
	return h.Sum(nil)
}

// ChallengeHash combines the peer and authenticator nonces with the
// username into the 8-byte "Challenge" the NT-Response is actually
// computed over (RFC 2759 §8.2).
func ChallengeHash(peerChallenge, authChallenge []byte, username string) []byte {
	h := sha1.New()
	h.Write(peerChallenge)
	h.Write(authChallenge)
	h.Write([]byte(username))
	return h.Sum(nil)[:8]
}

// ChallengeResponse splits a 16-byte password hash into three 7-byte DES
// keys (zero-padded to 8 with the DES parity bit unused) and encrypts
// the 8-byte challenge with each, producing the 24-byte NT-Response
// (RFC 2759 §8.3/8.5).
func ChallengeResponse(challenge, passwordHash []byte) ([]byte, error) {
	padded := make([]byte, 21)
	copy(padded, passwordHash)
	resp := make([]byte, 24)
	for i := 0; i < 3; i++ {
		key := desKey(padded[i*7 : i*7+7])
		block, err := des.NewCipher(key)
		if err != nil {
			return nil, protocol.ErrF(0, "eap-mschapv2: des key setup: %s", err)
		}
		block.Encrypt(resp[i*8:i*8+8], challenge)
	}
	return resp, nil
}

// desKey expands a 7-byte key into the 8 bytes crypto/des expects
// (RFC 2759 Appendix A, "DesEncrypt"): 7 key bits in the high bits of
// each byte, with the low parity bit left zero, which crypto/des ignores.
func desKey(k7 []byte) []byte {
	k8 := make([]byte, 8)
	k8[0] = k7[0] >> 1
	k8[1] = (k7[0]<<6 | k7[1]>>2) & 0xff
	k8[2] = (k7[1]<<5 | k7[2]>>3) & 0xff
	k8[3] = (k7[2]<<4 | k7[3]>>4) & 0xff
	k8[4] = (k7[3]<<3 | k7[4]>>5) & 0xff
	k8[5] = (k7[4]<<2 | k7[5]>>6) & 0xff
	k8[6] = (k7[5]<<1 | k7[6]>>7) & 0xff
	k8[7] = k7[6] & 0x7f
	for i := range k8 {
		k8[i] <<= 1
	}
	return k8
}

// GenerateNTResponse is the peer-side entry point RFC 2759 §8.1 names:
// it hashes the password, folds in the two challenges and the username,
// and returns the 24-byte NT-Response to send back.
func GenerateNTResponse(authChallenge, peerChallenge []byte, username, password string) ([]byte, error) {
	challenge := ChallengeHash(peerChallenge, authChallenge, username)
	return ChallengeResponse(challenge, NtPasswordHash(password))
}

// AuthenticatorResponse computes the 20-byte authenticator response
// digest of RFC 2759 §8.7. The server's Success message carries it hex
// encoded as "S=<hex>", and the peer checks it to authenticate the server.
func AuthenticatorResponse(password string, ntResponse, peerChallenge, authChallenge []byte, username string) []byte {
	magic1 := []byte{
		0x4D, 0x61, 0x67, 0x69, 0x63, 0x20, 0x73, 0x65, 0x72, 0x76, 0x65, 0x72, 0x20, 0x74, 0x6F, 0x20,
		0x63, 0x6C, 0x69, 0x65, 0x6E, 0x74, 0x20, 0x73, 0x69, 0x67, 0x6E, 0x69, 0x6E, 0x67, 0x20, 0x63,
		0x6F, 0x6E, 0x73, 0x74, 0x61, 0x6E, 0x74,
	}
	magic2 := []byte{
		0x50, 0x61, 0x64, 0x20, 0x74, 0x6F, 0x20, 0x6D, 0x61, 0x6B, 0x65, 0x20, 0x69, 0x74, 0x20, 0x64,
		0x6F, 0x20, 0x6D, 0x6F, 0x72, 0x65, 0x20, 0x74, 0x68, 0x61, 0x6E, 0x20, 0x6F, 0x6E, 0x65, 0x20,
		0x69, 0x74, 0x65, 0x72, 0x61, 0x74, 0x69, 0x6F, 0x6E,
	}
	passwordHashHash := HashNtPasswordHash(NtPasswordHash(password))
	h := sha1.New()
	h.Write(passwordHashHash)
	h.Write(ntResponse)
	h.Write(magic1)
	digest := h.Sum(nil)

	challenge := ChallengeHash(peerChallenge, authChallenge, username)
	h2 := sha1.New()
	h2.Write(digest)
	h2.Write(challenge)
	h2.Write(magic2)
	return h2.Sum(nil)
}

// GetMasterKey and GetAsymmetricStartKey implement the RFC 3079
// MPPE key derivation draft-kamath-pppext-eap-mschapv2-00 §2.3 reuses
// to export an MSK/EMSK from an MS-CHAP-v2 run, so its result can seed
// the final IKE_AUTH payload identically to eapaka's MSK export.

var masterKeyMagic = []byte{
	0x54, 0x68, 0x69, 0x73, 0x20, 0x69, 0x73, 0x20, 0x74, 0x68, 0x65, 0x20, 0x4D, 0x50, 0x50, 0x45,
	0x20, 0x4D, 0x61, 0x73, 0x74, 0x65, 0x72, 0x20, 0x4B, 0x65, 0x79,
}

var sendKeyMagic = []byte{
	0x4F, 0x6E, 0x20, 0x74, 0x68, 0x65, 0x20, 0x63, 0x6C, 0x69, 0x65, 0x6E, 0x74, 0x20, 0x73, 0x69,
	0x64, 0x65, 0x2C, 0x20, 0x74, 0x68, 0x69, 0x73, 0x20, 0x69, 0x73, 0x20, 0x74, 0x68, 0x65, 0x20,
	0x73, 0x65, 0x6E, 0x64, 0x20, 0x6B, 0x65, 0x79, 0x3B, 0x20, 0x6F, 0x6E, 0x20, 0x74, 0x68, 0x65,
	0x20, 0x73, 0x65, 0x72, 0x76, 0x65, 0x72, 0x20, 0x73, 0x69, 0x64, 0x65, 0x2C, 0x20, 0x69, 0x74,
	0x20, 0x69, 0x73, 0x20, 0x74, 0x68, 0x65, 0x20, 0x72, 0x65, 0x63, 0x65, 0x69, 0x76, 0x65, 0x20,
	0x6B, 0x65, 0x79, 0x2E,
}

var recvKeyMagic = []byte{
	0x4F, 0x6E, 0x20, 0x74, 0x68, 0x65, 0x20, 0x63, 0x6C, 0x69, 0x65, 0x6E, 0x74, 0x20, 0x73, 0x69,
	0x64, 0x65, 0x2C, 0x20, 0x74, 0x68, 0x69, 0x73, 0x20, 0x69, 0x73, 0x20, 0x74, 0x68, 0x65, 0x20,
	0x72, 0x65, 0x63, 0x65, 0x69, 0x76, 0x65, 0x20, 0x6B, 0x65, 0x79, 0x3B, 0x20, 0x6F, 0x6E, 0x20,
	0x74, 0x68, 0x65, 0x20, 0x73, 0x65, 0x72, 0x76, 0x65, 0x72, 0x20, 0x73, 0x69, 0x64, 0x65, 0x2C,
	0x20, 0x69, 0x74, 0x20, 0x69, 0x73, 0x20, 0x74, 0x68, 0x65, 0x20, 0x73, 0x65, 0x6E, 0x64, 0x20,
	0x6B, 0x65, 0x79, 0x2E,
}

var shsPad1 = make([]byte, 40)
var shsPad2 = func() []byte {
	p := make([]byte, 40)
	for i := range p {
		p[i] = 0xf2
	}
	return p
}()

func getMasterKey(passwordHashHash, ntResponse []byte) []byte {
	h := sha1.New()
	h.Write(passwordHashHash)
	h.Write(ntResponse)
	h.Write(masterKeyMagic)
	return h.Sum(nil)[:16]
}

func getAsymmetricStartKey(masterKey, magic []byte, keyLen int, isSend bool) []byte {
	h := sha1.New()
	h.Write(masterKey)
	h.Write(shsPad1)
	h.Write(magic)
	h.Write(shsPad2)
	sum := h.Sum(nil)
	return sum[:keyLen]
}

// ExportKeys derives MSK/EMSK from a completed MS-CHAP-v2 run. The MSK
// is SendKey|RecvKey, the two 16-byte RFC 3079 keys, followed by 32 zero
// bytes (draft-kamath §2.3). RFC 2759/3079 define no EMSK; here EMSK is
// HMAC-SHA1 of the label "eap-mschapv2 emsk" keyed by the MasterKey,
// repeated to fill 64 bytes.
func ExportKeys(password string, ntResponse []byte) (msk, emsk []byte) {
	passwordHashHash := HashNtPasswordHash(NtPasswordHash(password))
	master := getMasterKey(passwordHashHash, ntResponse)
	send := getAsymmetricStartKey(master, sendKeyMagic, 16, true)
	recv := getAsymmetricStartKey(master, recvKeyMagic, 16, false)
	msk = make([]byte, 0, 64)
	msk = append(msk, send...)
	msk = append(msk, recv...)
	msk = append(msk, make([]byte, 32)...) // pad to the 64-byte MSK IKE_AUTH expects
	mac := hmac.New(sha1.New, master)
	mac.Write([]byte("eap-mschapv2 emsk"))
	for len(emsk) < 64 {
		emsk = append(emsk, mac.Sum(nil)...)
	}
	emsk = emsk[:64]
	return msk, emsk
}

func utf16le(s string) []byte {
	runes := utf16.Encode([]rune(s))
	b := make([]byte, len(runes)*2)
	for i, r := range runes {
		b[i*2] = byte(r)
		b[i*2+1] = byte(r >> 8)
	}
	return b
}
