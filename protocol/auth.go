package protocol

type AuthMethod uint8

const (
	AUTH_RSA_DIGITAL_SIGNATURE                AuthMethod = 1
	AUTH_SHARED_KEY_MESSAGE_INTEGRITY_CODE     AuthMethod = 2
	AUTH_DSS_DIGITAL_SIGNATURE                 AuthMethod = 3
	AUTH_ECDSA_256                             AuthMethod = 9
	AUTH_ECDSA_384                             AuthMethod = 10
	AUTH_ECDSA_521                             AuthMethod = 11
	AUTH_DIGITAL_SIGNATURE                     AuthMethod = 14
)

// AuthPayload carries the AUTH octets that prove possession of the
// shared/private key over the first message plus the peer's nonce and ID.
type AuthPayload struct {
	*PayloadHeader
	Method AuthMethod
	Data   []byte
}

func (s *AuthPayload) Type() PayloadType { return PayloadTypeAUTH }

func (s *AuthPayload) Decode(b []byte) error {
	if len(b) < 4 {
		return ErrF(ERR_INVALID_SYNTAX, "auth payload too small %d", len(b))
	}
	s.Method = AuthMethod(b[0])
	s.Data = append([]byte{}, b[4:]...)
	return nil
}

func (s *AuthPayload) Encode() []byte {
	b := make([]byte, 4, 4+len(s.Data))
	b[0] = uint8(s.Method)
	return append(b, s.Data...)
}
