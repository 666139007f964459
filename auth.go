package ike

import (
	"crypto"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"errors"

	"github.com/msgboxio/ike/protocol"
)

// Identity names one side's IKE identity (the IDi/IDr payload) and
// whatever key material it proves that identity with.
type Identity interface {
	IdPayload() *protocol.IdPayload
}

// PSKIdentity authenticates with a pre-shared key (RFC 7296 §2.15,
// AUTH_SHARED_KEY_MESSAGE_INTEGRITY_CODE).
type PSKIdentity struct {
	Id     *protocol.IdPayload
	Secret []byte
}

func (p *PSKIdentity) IdPayload() *protocol.IdPayload { return p.Id }

// CertIdentity authenticates with an RSA signature over a certificate
// chain (RFC 7296 §2.15 / RFC 7427 for the rfc7427Signatures path).
type CertIdentity struct {
	Id    *protocol.IdPayload
	Cert  *x509.Certificate
	Key   *rsa.PrivateKey
	Roots *x509.CertPool // trusted CAs, used to verify the peer's chain
}

func (c *CertIdentity) IdPayload() *protocol.IdPayload { return c.Id }

// EapIdentity is the initiator's identity when authentication is carried
// out by an inner EAP method (RFC 7296 §2.16): IDi names the peer being
// authenticated, but the AUTH payload - when the initiator finally sends
// one - is keyed on the EAP method's exported MSK rather than a
// configured secret.
type EapIdentity struct {
	Id *protocol.IdPayload
}

func (e *EapIdentity) IdPayload() *protocol.IdPayload { return e.Id }

// Authenticator computes and checks one side's AUTH payload octets.
// signed1 is the "RealMessage | NonceData" prefix of the signed octets
// (RFC 7296 §2.15); the ID payload's contribution is added internally
// since every method needs Tkm.Auth's PRF over it.
type Authenticator interface {
	Method() protocol.AuthMethod
	Sign(signed1 []byte, flag protocol.IkeFlags) ([]byte, error)
	Verify(signed1, auth []byte, flag protocol.IkeFlags) error
}

// NewAuthenticator builds the Authenticator matching id's concrete type
// and the negotiated method.
func NewAuthenticator(id Identity, tkm *Tkm, method protocol.AuthMethod) Authenticator {
	switch v := id.(type) {
	case *PSKIdentity:
		return &pskAuthenticator{id: v, tkm: tkm}
	case *CertIdentity:
		return &certAuthenticator{id: v, tkm: tkm, method: method}
	case *EapIdentity:
		return &eapAuthenticator{id: v, tkm: tkm}
	default:
		return &pskAuthenticator{id: &PSKIdentity{Id: id.IdPayload()}, tkm: tkm}
	}
}

type pskAuthenticator struct {
	id  *PSKIdentity
	tkm *Tkm
}

func (a *pskAuthenticator) Method() protocol.AuthMethod {
	return protocol.AUTH_SHARED_KEY_MESSAGE_INTEGRITY_CODE
}

func (a *pskAuthenticator) Sign(signed1 []byte, flag protocol.IkeFlags) ([]byte, error) {
	return a.tkm.Auth(a.id.Secret, signed1, a.id.Id, flag), nil
}

func (a *pskAuthenticator) Verify(signed1, auth []byte, flag protocol.IkeFlags) error {
	expected, err := a.Sign(signed1, flag)
	if err != nil {
		return err
	}
	if !hmac.Equal(expected, auth) {
		return protocol.ErrF(protocol.ERR_AUTHENTICATION_FAILED, "psk auth mismatch")
	}
	return nil
}

type certAuthenticator struct {
	id     *CertIdentity
	tkm    *Tkm
	method protocol.AuthMethod
}

func (a *certAuthenticator) Method() protocol.AuthMethod { return a.method }

// Sign signs signed1 | prf(sk_p, IDi/IDr) directly with the private key,
// matching RFC 7296 §2.15's "digital signature" AUTH construction (no
// PRF indirection through a shared secret, unlike the PSK method).
func (a *certAuthenticator) Sign(signed1 []byte, flag protocol.IkeFlags) ([]byte, error) {
	if a.id.Key == nil {
		return nil, errors.New("no private key configured for signing")
	}
	key := a.tkm.skPr
	if flag.IsInitiator() {
		key = a.tkm.skPi
	}
	signed := append(append([]byte{}, signed1...), a.tkm.suite.Prf.Apply(key, a.id.Id.Encode())...)
	digest := sha256.Sum256(signed)
	return rsa.SignPKCS1v15(rand.Reader, a.id.Key, crypto.SHA256, digest[:])
}

func (a *certAuthenticator) Verify(signed1, auth []byte, flag protocol.IkeFlags) error {
	if a.id.Cert == nil {
		return errors.New("no peer certificate to verify against")
	}
	if a.id.Roots != nil {
		if _, err := a.id.Cert.Verify(x509.VerifyOptions{Roots: a.id.Roots}); err != nil {
			return errors.New("certificate chain did not validate: " + err.Error())
		}
	}
	key := a.tkm.skPi
	if flag.IsInitiator() {
		key = a.tkm.skPr
	}
	signed := append(append([]byte{}, signed1...), a.tkm.suite.Prf.Apply(key, a.id.Id.Encode())...)
	digest := sha256.Sum256(signed)
	pub, ok := a.id.Cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return errors.New("only RSA peer certificates are supported")
	}
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], auth); err != nil {
		return protocol.ErrF(protocol.ERR_AUTHENTICATION_FAILED, "signature did not verify: %s", err)
	}
	return nil
}

// eapAuthenticator keys the final AUTH payload on an EAP method's
// exported MSK (RFC 5998) instead of a statically configured secret.
// Msk is filled in by the session once its EAP state machine reaches
// EAP-Success; Sign/Verify fail until then.
type eapAuthenticator struct {
	id  *EapIdentity
	tkm *Tkm
	Msk []byte
}

func (a *eapAuthenticator) Method() protocol.AuthMethod {
	return protocol.AUTH_SHARED_KEY_MESSAGE_INTEGRITY_CODE
}

func (a *eapAuthenticator) Sign(signed1 []byte, flag protocol.IkeFlags) ([]byte, error) {
	if a.Msk == nil {
		return nil, errors.New("EAP method has not exported an MSK yet")
	}
	return a.tkm.Auth(a.Msk, signed1, a.id.Id, flag), nil
}

func (a *eapAuthenticator) Verify(signed1, auth []byte, flag protocol.IkeFlags) error {
	expected, err := a.Sign(signed1, flag)
	if err != nil {
		return err
	}
	if !hmac.Equal(expected, auth) {
		return protocol.ErrF(protocol.ERR_AUTHENTICATION_FAILED, "eap-derived auth mismatch")
	}
	return nil
}
