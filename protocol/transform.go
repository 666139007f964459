package protocol

import (
	"github.com/msgboxio/packets"
)

type TransformType uint8

const (
	TRANSFORM_TYPE_ENCR  TransformType = 1
	TRANSFORM_TYPE_PRF   TransformType = 2
	TRANSFORM_TYPE_INTEG TransformType = 3
	TRANSFORM_TYPE_DH    TransformType = 4
	TRANSFORM_TYPE_ESN   TransformType = 5
)

type EncrTransformId uint16

const (
	ENCR_DES_IV64   EncrTransformId = 1
	ENCR_DES        EncrTransformId = 2
	ENCR_3DES       EncrTransformId = 3
	ENCR_RC5        EncrTransformId = 4
	ENCR_IDEA       EncrTransformId = 5
	ENCR_CAST       EncrTransformId = 6
	ENCR_BLOWFISH   EncrTransformId = 7
	ENCR_3IDEA      EncrTransformId = 8
	ENCR_DES_IV32   EncrTransformId = 9
	ENCR_NULL       EncrTransformId = 11
	ENCR_AES_CBC    EncrTransformId = 12
	ENCR_AES_CTR    EncrTransformId = 13

	AEAD_AES_GCM_8            EncrTransformId = 18
	AEAD_AES_GCM_12           EncrTransformId = 19
	AEAD_AES_GCM_16           EncrTransformId = 20
	ENCR_NULL_AUTH_AES_GMAC   EncrTransformId = 21

	ENCR_CAMELLIA_CBC         EncrTransformId = 23
	ENCR_CAMELLIA_CTR         EncrTransformId = 24
	ENCR_CAMELLIA_CCM_8_ICV   EncrTransformId = 25
	ENCR_CAMELLIA_CCM_12_ICV  EncrTransformId = 26
	ENCR_CAMELLIA_CCM_16_ICV  EncrTransformId = 27
)

type PrfTransformId uint16

const (
	PRF_HMAC_MD5      PrfTransformId = 1
	PRF_HMAC_SHA1     PrfTransformId = 2
	PRF_HMAC_TIGER    PrfTransformId = 3
	PRF_AES128_XCBC   PrfTransformId = 4
	PRF_HMAC_SHA2_256 PrfTransformId = 5
	PRF_HMAC_SHA2_384 PrfTransformId = 6
	PRF_HMAC_SHA2_512 PrfTransformId = 7
	PRF_AES128_CMAC   PrfTransformId = 8
)

type AuthTransformId uint16

const (
	AUTH_NONE               AuthTransformId = 0
	AUTH_HMAC_MD5_96        AuthTransformId = 1
	AUTH_HMAC_SHA1_96       AuthTransformId = 2
	AUTH_DES_MAC            AuthTransformId = 3
	AUTH_KPDK_MD5           AuthTransformId = 4
	AUTH_AES_XCBC_96        AuthTransformId = 5
	AUTH_HMAC_MD5_128       AuthTransformId = 6
	AUTH_HMAC_SHA1_160      AuthTransformId = 7
	AUTH_AES_CMAC_96        AuthTransformId = 8
	AUTH_AES_128_GMAC       AuthTransformId = 9
	AUTH_AES_192_GMAC       AuthTransformId = 10
	AUTH_AES_256_GMAC       AuthTransformId = 11
	AUTH_HMAC_SHA2_256_128  AuthTransformId = 12
	AUTH_HMAC_SHA2_384_192  AuthTransformId = 13
	AUTH_HMAC_SHA2_512_256  AuthTransformId = 14
)

type DhTransformId uint16

const (
	MODP_NONE DhTransformId = 0
	MODP_768  DhTransformId = 1
	MODP_1024 DhTransformId = 2
	MODP_1536 DhTransformId = 5
	MODP_2048 DhTransformId = 14
	MODP_3072 DhTransformId = 15
	MODP_4096 DhTransformId = 16
	MODP_6144 DhTransformId = 17
	MODP_8192 DhTransformId = 18
)

type EsnTransformid uint16

const (
	ESN_NONE EsnTransformid = 0
	ESN      EsnTransformid = 1
)

type HashAlgorithmId uint16

const (
	HASH_RESERVED HashAlgorithmId = 0
	HASH_SHA1     HashAlgorithmId = 1
	HASH_SHA2_256 HashAlgorithmId = 2
	HASH_SHA2_384 HashAlgorithmId = 3
	HASH_SHA2_512 HashAlgorithmId = 4
)

// Transform identifies one (type, id) pair within a proposal, e.g.
// (TRANSFORM_TYPE_ENCR, ENCR_AES_CBC).
type Transform struct {
	Type        TransformType
	TransformId uint16
}

func (t Transform) String() string {
	if name, ok := transforms[t]; ok {
		return name
	}
	return "UNKNOWN_TRANSFORM"
}

type AttributeType uint16

const ATTRIBUTE_TYPE_KEY_LENGTH AttributeType = 14

const MIN_LEN_ATTRIBUTE = 4

// TransformAttribute is the single attribute type IKEv2 defines: a
// TV-form (AF bit set) key-length attribute attached to a transform.
// TLV-form attributes are rejected.
type TransformAttribute struct {
	Type  AttributeType
	Value uint16
}

func decodeAttribute(b []byte) (*TransformAttribute, int, error) {
	if len(b) < MIN_LEN_ATTRIBUTE {
		return nil, 0, ErrF(ERR_INVALID_SYNTAX, "attribute too small %d", len(b))
	}
	af, _ := packets.ReadB16(b, 0)
	at := AttributeType(af &^ 0x8000)
	if af&0x8000 == 0 {
		return nil, 0, ErrF(ERR_INVALID_SYNTAX, "TLV-form attributes not supported")
	}
	if at != ATTRIBUTE_TYPE_KEY_LENGTH {
		return nil, 0, ErrF(ERR_INVALID_SYNTAX, "unknown attribute type %d", at)
	}
	val, _ := packets.ReadB16(b, 2)
	return &TransformAttribute{Type: at, Value: val}, MIN_LEN_ATTRIBUTE, nil
}

func (a *TransformAttribute) encode() []byte {
	b := make([]byte, MIN_LEN_ATTRIBUTE)
	packets.WriteB16(b, 0, uint16(a.Type)|0x8000)
	packets.WriteB16(b, 2, a.Value)
	return b
}

const MIN_LEN_TRANSFORM = 8

// SaTransform is one proposed/configured transform plus its optional
// key-length attribute.
type SaTransform struct {
	Transform Transform
	KeyLength uint16
	IsLast    bool
}

func decodeTransform(b []byte) (*SaTransform, int, error) {
	if len(b) < MIN_LEN_TRANSFORM {
		return nil, 0, ErrF(ERR_INVALID_SYNTAX, "transform too small %d", len(b))
	}
	last, _ := packets.ReadB8(b, 0)
	tt, _ := packets.ReadB8(b, 1)
	tlen, _ := packets.ReadB16(b, 2)
	tid, _ := packets.ReadB16(b, 6)
	if int(tlen) < MIN_LEN_TRANSFORM || int(tlen) > len(b) {
		return nil, 0, ErrF(ERR_INVALID_SYNTAX, "transform length %d out of range", tlen)
	}
	tr := &SaTransform{
		Transform: Transform{Type: TransformType(tt), TransformId: tid},
		IsLast:    last == 0,
	}
	if int(tlen) > MIN_LEN_TRANSFORM {
		attr, _, err := decodeAttribute(b[MIN_LEN_TRANSFORM:tlen])
		if err != nil {
			return nil, 0, err
		}
		tr.KeyLength = attr.Value
	}
	return tr, int(tlen), nil
}

func encodeTransform(tr *SaTransform) []byte {
	body := make([]byte, MIN_LEN_TRANSFORM)
	if tr.IsLast {
		body[0] = 0
	} else {
		body[0] = 3
	}
	body[1] = uint8(tr.Transform.Type)
	packets.WriteB16(body, 6, tr.Transform.TransformId)
	if tr.KeyLength != 0 {
		attr := (&TransformAttribute{Type: ATTRIBUTE_TYPE_KEY_LENGTH, Value: tr.KeyLength}).encode()
		packets.WriteB16(body, 2, uint16(len(body)+len(attr)))
		body = append(body, attr...)
	} else {
		packets.WriteB16(body, 2, uint16(len(body)))
	}
	return body
}
