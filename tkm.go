package ike

import (
	"crypto/rand"
	"math/big"

	gokitlog "github.com/go-kit/kit/log"
	"github.com/msgboxio/ike/crypto"
	"github.com/msgboxio/ike/protocol"
)

// Tkm is the keying material manager for one IKE SA: it runs the
// Diffie-Hellman exchange, derives SKEYSEED/KEYMAT per RFC 7296 §2.14,
// and implements protocol.Cipher so encoded/decoded Messages are
// transparently protected with the right per-direction keys.
type Tkm struct {
	suite    *crypto.CipherSuite // negotiated IKE SA transforms
	espSuite *crypto.CipherSuite // negotiated first Child SA transforms

	isInitiator bool

	Ni, Nr []byte

	dhPrivate *big.Int
	DhPublic  []byte
	dhShared  []byte

	// kept around for diagnostics/tests, not used after derivation
	SKEYSEED, KEYMAT []byte

	skD        []byte // further keying material for child SAs
	skPi, skPr []byte
	skAi, skAr []byte // integrity protection keys
	skEi, skEr []byte // encryption keys

	logger gokitlog.Logger
}

func newTkm(suite, espSuite *crypto.CipherSuite, isInitiator bool) *Tkm {
	return &Tkm{
		suite:       suite,
		espSuite:    espSuite,
		isInitiator: isInitiator,
		logger:      gokitlog.NewNopLogger(),
	}
}

// NewTkmInitiator creates the keying material manager for a session that
// is about to send IKE_SA_INIT: it picks its own nonce and DH key pair up
// front, before anything has been heard from the peer.
func NewTkmInitiator(suite, espSuite *crypto.CipherSuite) (*Tkm, error) {
	t := newTkm(suite, espSuite, true)
	var err error
	if t.Ni, err = t.nonce(suite.Prf.Length * 8); err != nil {
		return nil, err
	}
	if err := t.dhCreate(); err != nil {
		return nil, err
	}
	return t, nil
}

// nonce generates a nonce of at least bits/8 bytes, per RFC 7296 §2.10
// (at least half the key size of the negotiated PRF, and never under
// 128 bits).
func (t *Tkm) nonce(bits int) ([]byte, error) {
	if bits < protocol.MIN_LEN_NONCE*8 {
		bits = protocol.MIN_LEN_NONCE * 8
	}
	b := make([]byte, bits/8)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// dhCreate picks our DH private exponent and computes the public value
// to send to the peer.
func (t *Tkm) dhCreate() error {
	priv, pub, err := t.suite.DhGroup.NewKeyPair()
	if err != nil {
		return err
	}
	t.dhPrivate = priv
	t.DhPublic = pub
	return nil
}

// DhGenerateKey computes the shared secret once the peer's public value
// has been received.
func (t *Tkm) DhGenerateKey(theirPublic []byte) error {
	shared, err := t.suite.DhGroup.SharedSecret(t.dhPrivate, theirPublic)
	if err != nil {
		return err
	}
	t.dhShared = shared
	return nil
}

// IsaCreate derives SK_d/SK_ai/SK_ar/SK_ei/SK_er/SK_pi/SK_pr from the DH
// shared secret and both nonces (RFC 7296 §2.14). oldSkD is non-nil only
// when rekeying an existing IKE SA (RFC 7296 §2.18's SKEYSEED').
func (t *Tkm) IsaCreate(spiI, spiR []byte, oldSkD []byte) {
	prf := t.suite.Prf
	if oldSkD != nil {
		t.SKEYSEED = prf.Apply(oldSkD, append(append(append([]byte{}, t.dhShared...), t.Ni...), t.Nr...))
	} else {
		t.SKEYSEED = prf.Apply(append(append([]byte{}, t.Ni...), t.Nr...), t.dhShared)
	}
	kmLen := 3*prf.Length + 2*t.suite.KeyLen + 2*t.suite.MacKeyLen
	seed := append(append(append([]byte{}, t.Ni...), t.Nr...), append(spiI, spiR...)...)
	keymat := crypto.ExpandKeyMaterial(prf, t.SKEYSEED, seed, kmLen)

	offset := 0
	next := func(n int) []byte { b := keymat[offset : offset+n]; offset += n; return b }
	t.skD = next(prf.Length)
	t.skAi = next(t.suite.MacKeyLen)
	t.skAr = next(t.suite.MacKeyLen)
	t.skEi = next(t.suite.KeyLen)
	t.skEr = next(t.suite.KeyLen)
	t.skPi = next(prf.Length)
	t.skPr = next(prf.Length)

	t.KEYMAT = keymat
}

// VerifyDecrypt implements protocol.Cipher: decrypt messages from the
// peer, which were protected with the peer's SK_a/SK_e (SK_ar/SK_er for
// an initiator, SK_ai/SK_ei for a responder).
func (t *Tkm) VerifyDecrypt(ike []byte) ([]byte, error) {
	skA, skE := t.skAr, t.skEr
	if !t.isInitiator {
		skA, skE = t.skAi, t.skEi
	}
	return t.suite.Cipher.VerifyDecrypt(ike, skA, skE, t.logger)
}

// EncryptMac implements protocol.Cipher: protect messages we send with
// our own SK_a/SK_e (SK_ai/SK_ei for an initiator, SK_ar/SK_er for a
// responder).
func (t *Tkm) EncryptMac(headers, payload []byte) ([]byte, error) {
	skA, skE := t.skAi, t.skEi
	if !t.isInitiator {
		skA, skE = t.skAr, t.skEr
	}
	return t.suite.Cipher.EncryptMac(headers, payload, skA, skE, t.logger)
}

// EncryptedLen implements protocol.Cipher.
func (t *Tkm) EncryptedLen(plaintextLen int) int {
	return t.suite.Cipher.EncryptedLen(plaintextLen)
}

// Auth computes the AUTH payload octets per RFC 7296 §2.15:
//
//	InitiatorSignedOctets = RealMessage1 | NonceRData | MACedIDForI
//	AUTH = prf(prf(Shared Secret, "Key Pad for IKEv2"), SignedOctets)
//
// id is the IDi/IDr payload of the side whose AUTH this is; flag carries
// that side's initiator bit (so a responder can build AUTH over IDr
// while still running as the IKE_AUTH initiator's peer).
func (t *Tkm) Auth(sharedSecret, signed1 []byte, id *protocol.IdPayload, flag protocol.IkeFlags) []byte {
	key := t.skPr
	if flag.IsInitiator() {
		key = t.skPi
	}
	signed := append(append([]byte{}, signed1...), t.suite.Prf.Apply(key, id.Encode())...)
	padKey := t.suite.Prf.Apply(sharedSecret, []byte("Key Pad for IKEv2"))
	return t.suite.Prf.Apply(padKey, signed)
}

// IpsecSaCreate derives the first Child SA's KEYMAT from SK_d (RFC 7296
// §2.17): KEYMAT = prf+(SK_d, Ni | Nr); no PFS g^ir (new) is mixed in.
func (t *Tkm) IpsecSaCreate(spiI, spiR []byte) (espEi, espAi, espEr, espAr []byte) {
	kmLen := 2*t.espSuite.KeyLen + 2*t.espSuite.MacKeyLen
	keymat := crypto.ExpandKeyMaterial(t.suite.Prf, t.skD, append(append([]byte{}, t.Ni...), t.Nr...), kmLen)

	offset := 0
	next := func(n int) []byte { b := keymat[offset : offset+n]; offset += n; return b }
	espEi = next(t.espSuite.KeyLen)
	espAi = next(t.espSuite.MacKeyLen)
	espEr = next(t.espSuite.KeyLen)
	espAr = next(t.espSuite.MacKeyLen)
	return
}
