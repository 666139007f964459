package protocol

type IdType uint8

const (
	ID_IPV4_ADDR    IdType = 1
	ID_FQDN         IdType = 2
	ID_RFC822_ADDR  IdType = 3
	ID_IPV6_ADDR    IdType = 5
	ID_DER_ASN1_DN  IdType = 9
	ID_DER_ASN1_GN  IdType = 10
	ID_KEY_ID       IdType = 11
)

// IdPayload carries IDi/IDr - same wire shape, distinguished by
// IdPayloadType (PayloadTypeIDi or PayloadTypeIDr) so the codec can
// return the right Payload.Type() from one struct.
type IdPayload struct {
	*PayloadHeader
	IdPayloadType PayloadType
	IdType        IdType
	Data          []byte
}

func NewIdPayload(which PayloadType, idType IdType, data []byte) *IdPayload {
	return &IdPayload{IdPayloadType: which, IdType: idType, Data: data}
}

func (s *IdPayload) Type() PayloadType { return s.IdPayloadType }

func (s *IdPayload) Decode(b []byte) error {
	if len(b) < 4 {
		return ErrF(ERR_INVALID_SYNTAX, "id payload too small %d", len(b))
	}
	s.IdType = IdType(b[0])
	s.Data = append([]byte{}, b[4:]...)
	return nil
}

// Encode produces the "signed octets" wire shape, which is also what
// Tkm.Auth's MACedIDForI/MACedIDForR contribution signs (RFC 7296
// §2.15): 1 octet ID type, 3 reserved octets, then the identification
// data - the payload header is not part of what gets signed.
func (s *IdPayload) Encode() []byte {
	b := make([]byte, 4, 4+len(s.Data))
	b[0] = uint8(s.IdType)
	return append(b, s.Data...)
}
