package protocol

// VendorIdPayload carries an implementation-defined byte string used to
// advertise vendor-specific behavior; unrecognized values are ignored
// per RFC 7296 §3.12.
type VendorIdPayload struct {
	*PayloadHeader
	Vid []byte
}

func NewVendorIdPayload(vid []byte) *VendorIdPayload {
	return &VendorIdPayload{Vid: vid}
}

func (s *VendorIdPayload) Type() PayloadType { return PayloadTypeV }

func (s *VendorIdPayload) Decode(b []byte) error {
	s.Vid = append([]byte{}, b...)
	return nil
}

func (s *VendorIdPayload) Encode() []byte {
	return s.Vid
}
