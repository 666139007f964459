package protocol

// EapPayload is the outer IKEv2 EAP payload (RFC 7296 §3.16) - a thin
// wrapper around an inner EAP message (RFC 3748 header plus whatever
// eapaka/eapmschapv2 put in the type-data). The inner codec is a
// concern of the eap method packages, not of this one.
type EapPayload struct {
	*PayloadHeader
	EapMessage []byte
}

func NewEapPayload(eapMessage []byte) *EapPayload {
	return &EapPayload{EapMessage: eapMessage}
}

func (s *EapPayload) Type() PayloadType { return PayloadTypeEAP }

func (s *EapPayload) Decode(b []byte) error {
	s.EapMessage = append([]byte{}, b...)
	return nil
}

func (s *EapPayload) Encode() []byte {
	return s.EapMessage
}
