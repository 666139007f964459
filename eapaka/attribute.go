package eapaka

import (
	"encoding/binary"

	"github.com/msgboxio/ike/protocol"
)

// Attribute is one TLV attribute inside an AKA/AKA'/SIM packet body.
type Attribute interface {
	Type() AttributeType
	Marshal() ([]byte, error)
	Unmarshal(data []byte) error
}

// marshalAttribute wraps data in the 2-byte Type/Length header and pads
// to a multiple of 4 octets (RFC 4187 §8.1); Length counts in words.
func marshalAttribute(t AttributeType, data []byte) ([]byte, error) {
	total := 2 + len(data)
	if total%4 != 0 {
		total += 4 - total%4
	}
	if total > 255*4 {
		return nil, protocol.ErrF(0, "eap-aka attribute %d too long", t)
	}
	b := make([]byte, total)
	b[0] = uint8(t)
	b[1] = uint8(total / 4)
	copy(b[2:], data)
	return b, nil
}

func decodeAttribute(t AttributeType, data []byte) (Attribute, error) {
	var attr Attribute
	switch t {
	case AT_RAND:
		attr = &AtRand{}
	case AT_AUTN:
		attr = &AtAutn{}
	case AT_RES:
		attr = &AtRes{}
	case AT_AUTS:
		attr = &AtAuts{}
	case AT_MAC:
		attr = &AtMac{}
	case AT_IDENTITY:
		attr = &AtIdentity{}
	case AT_PERMANENT_ID_REQ:
		attr = &AtPermanentIdReq{}
	case AT_ANY_ID_REQ:
		attr = &AtAnyIdReq{}
	case AT_FULLAUTH_ID_REQ:
		attr = &AtFullauthIdReq{}
	case AT_RESULT_IND:
		attr = &AtResultInd{}
	case AT_PADDING:
		attr = &AtPadding{}
	case AT_KDF_INPUT:
		attr = &AtKdfInput{}
	case AT_KDF:
		attr = &AtKdf{}
	case AT_NONCE_MT:
		attr = &AtNonceMt{}
	case AT_NOTIFICATION:
		attr = &AtNotification{}
	case AT_VERSION_LIST:
		attr = &AtVersionList{}
	case AT_SELECTED_VERSION:
		attr = &AtSelectedVersion{}
	case AT_COUNTER:
		attr = &AtCounter{}
	case AT_COUNTER_TOO_SMALL:
		attr = &AtCounterTooSmall{}
	case AT_NONCE_S:
		attr = &AtNonceS{}
	case AT_CLIENT_ERROR_CODE:
		attr = &AtClientErrorCode{}
	default:
		attr = &GenericAttribute{AttrType: t}
	}
	if err := attr.Unmarshal(data); err != nil {
		return nil, protocol.ErrF(0, "eap-aka attribute %d: %s", t, err)
	}
	return attr, nil
}

// fixed16 attributes (AT_RAND/AT_AUTN/AT_RES-fixed-length variants) all
// share "2 reserved bytes then 16 octets of value" or "16 octets, no
// reserved" depending on attribute - spelled out per type below since
// RFC 4187 is not uniform about it.

// AtRand carries one 16-byte RAND (AKA/AKA') or, for EAP-SIM, n RANDs
// concatenated (RFC 4186 §10.3 packs all n GSM challenges into a single
// AT_RAND).
type AtRand struct{ Rand []byte }

func (a *AtRand) Type() AttributeType { return AT_RAND }
func (a *AtRand) Marshal() ([]byte, error) {
	if len(a.Rand) == 0 || len(a.Rand)%16 != 0 {
		return nil, protocol.ErrF(0, "AT_RAND must be a non-zero multiple of 16 bytes")
	}
	buf := make([]byte, 2+len(a.Rand))
	copy(buf[2:], a.Rand)
	return marshalAttribute(AT_RAND, buf)
}
func (a *AtRand) Unmarshal(data []byte) error {
	if len(data) < 18 || (len(data)-2)%16 != 0 {
		return protocol.ErrF(0, "AT_RAND too short or misaligned")
	}
	a.Rand = append([]byte{}, data[2:]...)
	return nil
}

type AtAutn struct{ Autn []byte }

func (a *AtAutn) Type() AttributeType { return AT_AUTN }
func (a *AtAutn) Marshal() ([]byte, error) {
	if len(a.Autn) != 16 {
		return nil, protocol.ErrF(0, "AT_AUTN must be 16 bytes")
	}
	buf := make([]byte, 2+16)
	copy(buf[2:], a.Autn)
	return marshalAttribute(AT_AUTN, buf)
}
func (a *AtAutn) Unmarshal(data []byte) error {
	if len(data) < 18 {
		return protocol.ErrF(0, "AT_AUTN too short")
	}
	a.Autn = append([]byte{}, data[2:18]...)
	return nil
}

// AtRes carries RES (AKA) or the concatenated SRES values (SIM), as a
// bit length plus value per RFC 4187 §10.8.
type AtRes struct{ Res []byte }

func (a *AtRes) Type() AttributeType { return AT_RES }
func (a *AtRes) Marshal() ([]byte, error) {
	buf := make([]byte, 2+len(a.Res))
	binary.BigEndian.PutUint16(buf, uint16(len(a.Res)*8))
	copy(buf[2:], a.Res)
	return marshalAttribute(AT_RES, buf)
}
func (a *AtRes) Unmarshal(data []byte) error {
	if len(data) < 2 {
		return protocol.ErrF(0, "AT_RES too short")
	}
	bits := binary.BigEndian.Uint16(data)
	n := int(bits+7) / 8
	if len(data) < 2+n {
		return protocol.ErrF(0, "AT_RES length overflow")
	}
	a.Res = append([]byte{}, data[2:2+n]...)
	return nil
}

type AtAuts struct{ Auts []byte }

func (a *AtAuts) Type() AttributeType { return AT_AUTS }
func (a *AtAuts) Marshal() ([]byte, error) {
	if len(a.Auts) != 14 {
		return nil, protocol.ErrF(0, "AT_AUTS must be 14 bytes")
	}
	return marshalAttribute(AT_AUTS, a.Auts)
}
func (a *AtAuts) Unmarshal(data []byte) error {
	if len(data) < 14 {
		return protocol.ErrF(0, "AT_AUTS too short")
	}
	a.Auts = append([]byte{}, data[:14]...)
	return nil
}

// AtMac carries the packet MAC; callers zero it before computing and
// fill it in afterwards via Packet.CalculateAndSetMac/VerifyMac.
type AtMac struct{ MAC []byte }

func (a *AtMac) Type() AttributeType { return AT_MAC }
func (a *AtMac) Marshal() ([]byte, error) {
	buf := make([]byte, 2+16)
	if len(a.MAC) == 16 {
		copy(buf[2:], a.MAC)
	}
	return marshalAttribute(AT_MAC, buf)
}
func (a *AtMac) Unmarshal(data []byte) error {
	if len(data) < 18 {
		return protocol.ErrF(0, "AT_MAC too short")
	}
	a.MAC = append([]byte{}, data[2:18]...)
	return nil
}

type AtIdentity struct{ Identity string }

func (a *AtIdentity) Type() AttributeType { return AT_IDENTITY }
func (a *AtIdentity) Marshal() ([]byte, error) {
	id := []byte(a.Identity)
	buf := make([]byte, 2+len(id))
	binary.BigEndian.PutUint16(buf, uint16(len(id)))
	copy(buf[2:], id)
	return marshalAttribute(AT_IDENTITY, buf)
}
func (a *AtIdentity) Unmarshal(data []byte) error {
	if len(data) < 2 {
		return protocol.ErrF(0, "AT_IDENTITY too short")
	}
	n := int(binary.BigEndian.Uint16(data))
	if len(data) < 2+n {
		return protocol.ErrF(0, "AT_IDENTITY length overflow")
	}
	a.Identity = string(data[2 : 2+n])
	return nil
}

// reserved2 is the shared shape of every attribute whose value is just
// two reserved octets (AT_PERMANENT_ID_REQ, AT_ANY_ID_REQ, ...).
type reserved2 struct{}

func (reserved2) Unmarshal(data []byte) error {
	if len(data) < 2 {
		return protocol.ErrF(0, "attribute too short")
	}
	return nil
}

type AtPermanentIdReq struct{ reserved2 }

func (a *AtPermanentIdReq) Type() AttributeType { return AT_PERMANENT_ID_REQ }
func (a *AtPermanentIdReq) Marshal() ([]byte, error) {
	return marshalAttribute(AT_PERMANENT_ID_REQ, make([]byte, 2))
}

type AtAnyIdReq struct{ reserved2 }

func (a *AtAnyIdReq) Type() AttributeType { return AT_ANY_ID_REQ }
func (a *AtAnyIdReq) Marshal() ([]byte, error) {
	return marshalAttribute(AT_ANY_ID_REQ, make([]byte, 2))
}

type AtFullauthIdReq struct{ reserved2 }

func (a *AtFullauthIdReq) Type() AttributeType { return AT_FULLAUTH_ID_REQ }
func (a *AtFullauthIdReq) Marshal() ([]byte, error) {
	return marshalAttribute(AT_FULLAUTH_ID_REQ, make([]byte, 2))
}

type AtResultInd struct{ reserved2 }

func (a *AtResultInd) Type() AttributeType { return AT_RESULT_IND }
func (a *AtResultInd) Marshal() ([]byte, error) {
	return marshalAttribute(AT_RESULT_IND, make([]byte, 2))
}

// AtPadding pads a packet body out to a MAC-friendly length; its value
// is ignored on decode, ours are always zero octets on encode.
type AtPadding struct{ Length int }

func (a *AtPadding) Type() AttributeType { return AT_PADDING }
func (a *AtPadding) Marshal() ([]byte, error) {
	return marshalAttribute(AT_PADDING, make([]byte, a.Length))
}
func (a *AtPadding) Unmarshal(data []byte) error {
	a.Length = len(data)
	return nil
}

// AtKdfInput carries the AKA' network name, used both as an AT_KDF_INPUT
// attribute and as the "AN-ID" fed into DeriveCKPrimeIKPrime.
type AtKdfInput struct{ NetworkName string }

func (a *AtKdfInput) Type() AttributeType { return AT_KDF_INPUT }
func (a *AtKdfInput) Marshal() ([]byte, error) {
	name := []byte(a.NetworkName)
	buf := make([]byte, 2+len(name))
	binary.BigEndian.PutUint16(buf, uint16(len(name)))
	copy(buf[2:], name)
	return marshalAttribute(AT_KDF_INPUT, buf)
}
func (a *AtKdfInput) Unmarshal(data []byte) error {
	if len(data) < 2 {
		return protocol.ErrF(0, "AT_KDF_INPUT too short")
	}
	n := int(binary.BigEndian.Uint16(data))
	if len(data) < 2+n {
		return protocol.ErrF(0, "AT_KDF_INPUT length overflow")
	}
	a.NetworkName = string(data[2 : 2+n])
	return nil
}

type AtKdf struct{ KDF uint16 }

func (a *AtKdf) Type() AttributeType { return AT_KDF }
func (a *AtKdf) Marshal() ([]byte, error) {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, a.KDF)
	return marshalAttribute(AT_KDF, buf)
}
func (a *AtKdf) Unmarshal(data []byte) error {
	if len(data) < 2 {
		return protocol.ErrF(0, "AT_KDF too short")
	}
	a.KDF = binary.BigEndian.Uint16(data)
	return nil
}

type AtNonceMt struct{ NonceMt []byte }

func (a *AtNonceMt) Type() AttributeType { return AT_NONCE_MT }
func (a *AtNonceMt) Marshal() ([]byte, error) {
	if len(a.NonceMt) != 16 {
		return nil, protocol.ErrF(0, "AT_NONCE_MT must be 16 bytes")
	}
	buf := make([]byte, 2+16)
	copy(buf[2:], a.NonceMt)
	return marshalAttribute(AT_NONCE_MT, buf)
}
func (a *AtNonceMt) Unmarshal(data []byte) error {
	if len(data) < 18 {
		return protocol.ErrF(0, "AT_NONCE_MT too short")
	}
	a.NonceMt = append([]byte{}, data[2:18]...)
	return nil
}

// AtNotification carries a server or peer notification code; the S bit
// marks "authentication has succeeded" framing on a failure-path message.
type AtNotification struct {
	Success bool
	Code    uint16
}

func (a *AtNotification) Type() AttributeType { return AT_NOTIFICATION }
func (a *AtNotification) Marshal() ([]byte, error) {
	val := a.Code & 0x3fff
	if !a.Success {
		val |= 0x8000
	}
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, val)
	return marshalAttribute(AT_NOTIFICATION, buf)
}
func (a *AtNotification) Unmarshal(data []byte) error {
	if len(data) < 2 {
		return protocol.ErrF(0, "AT_NOTIFICATION too short")
	}
	val := binary.BigEndian.Uint16(data)
	a.Success = val&0x8000 == 0
	a.Code = val & 0x3fff
	return nil
}

type AtVersionList struct{ Versions []uint16 }

func (a *AtVersionList) Type() AttributeType { return AT_VERSION_LIST }
func (a *AtVersionList) Marshal() ([]byte, error) {
	n := len(a.Versions) * 2
	buf := make([]byte, 2+n)
	binary.BigEndian.PutUint16(buf, uint16(n))
	for i, v := range a.Versions {
		binary.BigEndian.PutUint16(buf[2+i*2:], v)
	}
	return marshalAttribute(AT_VERSION_LIST, buf)
}
func (a *AtVersionList) Unmarshal(data []byte) error {
	if len(data) < 2 {
		return protocol.ErrF(0, "AT_VERSION_LIST too short")
	}
	n := int(binary.BigEndian.Uint16(data))
	if len(data) < 2+n {
		return protocol.ErrF(0, "AT_VERSION_LIST length overflow")
	}
	a.Versions = make([]uint16, n/2)
	for i := range a.Versions {
		a.Versions[i] = binary.BigEndian.Uint16(data[2+i*2:])
	}
	return nil
}

type AtSelectedVersion struct{ Version uint16 }

func (a *AtSelectedVersion) Type() AttributeType { return AT_SELECTED_VERSION }
func (a *AtSelectedVersion) Marshal() ([]byte, error) {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, a.Version)
	return marshalAttribute(AT_SELECTED_VERSION, buf)
}
func (a *AtSelectedVersion) Unmarshal(data []byte) error {
	if len(data) < 2 {
		return protocol.ErrF(0, "AT_SELECTED_VERSION too short")
	}
	a.Version = binary.BigEndian.Uint16(data)
	return nil
}

type AtCounter struct{ Counter uint16 }

func (a *AtCounter) Type() AttributeType { return AT_COUNTER }
func (a *AtCounter) Marshal() ([]byte, error) {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, a.Counter)
	return marshalAttribute(AT_COUNTER, buf)
}
func (a *AtCounter) Unmarshal(data []byte) error {
	if len(data) < 2 {
		return protocol.ErrF(0, "AT_COUNTER too short")
	}
	a.Counter = binary.BigEndian.Uint16(data)
	return nil
}

type AtCounterTooSmall struct{ reserved2 }

func (a *AtCounterTooSmall) Type() AttributeType { return AT_COUNTER_TOO_SMALL }
func (a *AtCounterTooSmall) Marshal() ([]byte, error) {
	return marshalAttribute(AT_COUNTER_TOO_SMALL, make([]byte, 2))
}

type AtNonceS struct{ NonceS []byte }

func (a *AtNonceS) Type() AttributeType { return AT_NONCE_S }
func (a *AtNonceS) Marshal() ([]byte, error) {
	if len(a.NonceS) != 16 {
		return nil, protocol.ErrF(0, "AT_NONCE_S must be 16 bytes")
	}
	buf := make([]byte, 2+16)
	copy(buf[2:], a.NonceS)
	return marshalAttribute(AT_NONCE_S, buf)
}
func (a *AtNonceS) Unmarshal(data []byte) error {
	if len(data) < 18 {
		return protocol.ErrF(0, "AT_NONCE_S too short")
	}
	a.NonceS = append([]byte{}, data[2:18]...)
	return nil
}

type AtClientErrorCode struct{ Code uint16 }

func (a *AtClientErrorCode) Type() AttributeType { return AT_CLIENT_ERROR_CODE }
func (a *AtClientErrorCode) Marshal() ([]byte, error) {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, a.Code)
	return marshalAttribute(AT_CLIENT_ERROR_CODE, buf)
}
func (a *AtClientErrorCode) Unmarshal(data []byte) error {
	if len(data) < 2 {
		return protocol.ErrF(0, "AT_CLIENT_ERROR_CODE too short")
	}
	a.Code = binary.BigEndian.Uint16(data)
	return nil
}

// GenericAttribute preserves an attribute this package does not
// interpret (AT_IV/AT_ENCR_DATA pseudonym re-auth, vendor extensions)
// so re-marshaling a parsed packet round-trips byte for byte.
type GenericAttribute struct {
	AttrType AttributeType
	Data     []byte
}

func (a *GenericAttribute) Type() AttributeType { return a.AttrType }
func (a *GenericAttribute) Marshal() ([]byte, error) {
	return marshalAttribute(a.AttrType, a.Data)
}
func (a *GenericAttribute) Unmarshal(data []byte) error {
	a.Data = append([]byte{}, data...)
	return nil
}
