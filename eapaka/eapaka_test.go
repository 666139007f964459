package eapaka

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributeRoundTrip(t *testing.T) {
	cases := []Attribute{
		&AtRand{Rand: bytes.Repeat([]byte{0x11}, 16)},
		&AtAutn{Autn: bytes.Repeat([]byte{0x22}, 16)},
		&AtRes{Res: []byte{0xaa, 0xbb, 0xcc}},
		&AtAuts{Auts: bytes.Repeat([]byte{0x33}, 14)},
		&AtMac{MAC: bytes.Repeat([]byte{0x44}, 16)},
		&AtIdentity{Identity: "alice@example.com"},
		&AtKdfInput{NetworkName: "WLAN"},
		&AtKdf{KDF: 1},
		&AtNonceMt{NonceMt: bytes.Repeat([]byte{0x55}, 16)},
		&AtNotification{Success: true, Code: 0},
		&AtVersionList{Versions: []uint16{1, 2}},
		&AtSelectedVersion{Version: 1},
		&AtCounter{Counter: 3},
		&AtNonceS{NonceS: bytes.Repeat([]byte{0x66}, 16)},
		&AtClientErrorCode{Code: ClientErrorUnableToProcess},
	}
	for _, orig := range cases {
		b, err := orig.Marshal()
		require.NoError(t, err)
		assert.Equal(t, 0, len(b)%4, "attribute %T must pad to a word boundary", orig)

		decoded, err := decodeAttribute(orig.Type(), b[2:])
		require.NoError(t, err)
		assert.Equal(t, orig, decoded, "%T did not round-trip", orig)
	}
}

func TestGenericAttributeRoundTrip(t *testing.T) {
	orig := &GenericAttribute{AttrType: AttributeType(200), Data: []byte{0x01, 0x02}}
	b, err := orig.Marshal()
	require.NoError(t, err)
	decoded, err := decodeAttribute(orig.Type(), b[2:])
	require.NoError(t, err)
	assert.Equal(t, orig, decoded)
}

func TestPacketMarshalParseRoundTrip(t *testing.T) {
	pkt := &Packet{
		Code: CodeRequest, Identifier: 7, Type: TypeAKA, Subtype: SubtypeChallenge,
		Attributes: []Attribute{
			&AtRand{Rand: bytes.Repeat([]byte{0x01}, 16)},
			&AtAutn{Autn: bytes.Repeat([]byte{0x02}, 16)},
			&AtMac{},
		},
	}
	kAut := bytes.Repeat([]byte{0x09}, 16)
	require.NoError(t, pkt.CalculateAndSetMac(kAut))

	b, err := pkt.Marshal()
	require.NoError(t, err)

	parsed, err := Parse(b)
	require.NoError(t, err)
	assert.Equal(t, pkt.Code, parsed.Code)
	assert.Equal(t, pkt.Identifier, parsed.Identifier)
	assert.Equal(t, pkt.Type, parsed.Type)
	assert.Equal(t, pkt.Subtype, parsed.Subtype)

	ok, err := parsed.VerifyMac(kAut)
	require.NoError(t, err)
	assert.True(t, ok)

	wrongKey := bytes.Repeat([]byte{0x0a}, 16)
	ok, err = parsed.VerifyMac(wrongKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSuccessFailurePacketsCarryNoBody(t *testing.T) {
	pkt := &Packet{Code: CodeSuccess, Identifier: 5}
	b, err := pkt.Marshal()
	require.NoError(t, err)
	require.Len(t, b, 4)

	parsed, err := Parse(b)
	require.NoError(t, err)
	assert.Equal(t, uint8(CodeSuccess), parsed.Code)
	assert.Empty(t, parsed.Attributes)
}

// fakeOracle is a 3GPP AKA test double: it returns a fixed RES/CK/IK for
// any RAND/AUTN it's handed and never reports a synchronization failure.
type fakeOracle struct {
	res, ck, ik []byte
}

func (o *fakeOracle) RunAKA(rnd, autn []byte) (res, ck, ik []byte, synced bool, auts []byte, err error) {
	return o.res, o.ck, o.ik, true, nil, nil
}

type resyncOracle struct {
	auts []byte
}

func (o *resyncOracle) RunAKA(rnd, autn []byte) (res, ck, ik []byte, synced bool, auts []byte, err error) {
	return nil, nil, nil, false, o.auts, nil
}

func challengeRequest(t uint8, kAut []byte) []byte {
	pkt := &Packet{
		Code: CodeRequest, Identifier: 1, Type: t, Subtype: SubtypeChallenge,
		Attributes: []Attribute{
			&AtRand{Rand: bytes.Repeat([]byte{0x01}, 16)},
			&AtAutn{Autn: bytes.Repeat([]byte{0x02}, 16)},
			&AtMac{},
		},
	}
	if err := pkt.CalculateAndSetMac(kAut); err != nil {
		panic(err)
	}
	b, err := pkt.Marshal()
	if err != nil {
		panic(err)
	}
	return b
}

func TestMethodAKAChallengeSuccess(t *testing.T) {
	oracle := &fakeOracle{
		res: []byte{0xde, 0xad, 0xbe, 0xef},
		ck:  bytes.Repeat([]byte{0x30}, 16),
		ik:  bytes.Repeat([]byte{0x31}, 16),
	}
	m := &Method{Variant: VariantAKA, Identity: "0123456789012345@nai.epc.mnc001.mcc001.3gppnetwork.org", Oracle: oracle}

	keys := DeriveKeysAKA(m.Identity, oracle.ck, oracle.ik)
	req := challengeRequest(TypeAKA, keys.Kaut)

	resp, done, msk, err := m.HandleRequest(req)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Nil(t, msk)
	require.NotNil(t, resp)

	parsed, err := Parse(resp)
	require.NoError(t, err)
	assert.Equal(t, uint8(CodeResponse), parsed.Code)
	assert.Equal(t, SubtypeChallenge, parsed.Subtype)
	res, ok := parsed.Get(AT_RES).(*AtRes)
	require.True(t, ok)
	assert.Equal(t, oracle.res, res.Res)
	ok2, err := parsed.VerifyMac(keys.Kaut)
	require.NoError(t, err)
	assert.True(t, ok2)

	successReq, err := (&Packet{Code: CodeSuccess, Identifier: 2}).Marshal()
	require.NoError(t, err)
	_, done, msk, err = m.HandleRequest(successReq)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, keys.MSK, msk)
}

func TestMethodAKARejectsBadMac(t *testing.T) {
	oracle := &fakeOracle{
		res: []byte{0x01},
		ck:  bytes.Repeat([]byte{0x30}, 16),
		ik:  bytes.Repeat([]byte{0x31}, 16),
	}
	m := &Method{Variant: VariantAKA, Identity: "alice", Oracle: oracle}
	req := challengeRequest(TypeAKA, bytes.Repeat([]byte{0xff}, 16)) // wrong Kaut
	_, _, _, err := m.HandleRequest(req)
	assert.Error(t, err)
}

func TestMethodAKASynchronizationFailure(t *testing.T) {
	auts := bytes.Repeat([]byte{0x07}, 14)
	m := &Method{Variant: VariantAKA, Identity: "alice", Oracle: &resyncOracle{auts: auts}}

	pkt := &Packet{
		Code: CodeRequest, Identifier: 1, Type: TypeAKA, Subtype: SubtypeChallenge,
		Attributes: []Attribute{
			&AtRand{Rand: bytes.Repeat([]byte{0x01}, 16)},
			&AtAutn{Autn: bytes.Repeat([]byte{0x02}, 16)},
			&AtMac{},
		},
	}
	req, err := pkt.Marshal()
	require.NoError(t, err)

	resp, done, msk, err := m.HandleRequest(req)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Nil(t, msk)

	parsed, err := Parse(resp)
	require.NoError(t, err)
	assert.Equal(t, SubtypeSynchronizationFailure, parsed.Subtype)
	a, ok := parsed.Get(AT_AUTS).(*AtAuts)
	require.True(t, ok)
	assert.Equal(t, auts, a.Auts)
}

func TestMethodAKAPrimeDerivesFromNetworkName(t *testing.T) {
	oracle := &fakeOracle{
		res: []byte{0x01, 0x02},
		ck:  bytes.Repeat([]byte{0x40}, 16),
		ik:  bytes.Repeat([]byte{0x41}, 16),
	}
	m := &Method{Variant: VariantAKAPrime, Identity: "alice", NetworkName: "WLAN", Oracle: oracle}

	ckPrime, ikPrime := DeriveCKIKPrime(oracle.ck, oracle.ik, "WLAN")
	keys, _ := DeriveKeysAKAPrime(m.Identity, ckPrime, ikPrime)

	pkt := &Packet{
		Code: CodeRequest, Identifier: 1, Type: TypeAKAPrime, Subtype: SubtypeChallenge,
		Attributes: []Attribute{
			&AtRand{Rand: bytes.Repeat([]byte{0x01}, 16)},
			&AtAutn{Autn: bytes.Repeat([]byte{0x02}, 16)},
			&AtKdf{KDF: 1},
			&AtKdfInput{NetworkName: "WLAN"},
			&AtMac{},
		},
	}
	require.NoError(t, pkt.CalculateAndSetMac(keys.Kaut))
	req, err := pkt.Marshal()
	require.NoError(t, err)

	resp, done, _, err := m.HandleRequest(req)
	require.NoError(t, err)
	assert.False(t, done)
	parsed, err := Parse(resp)
	require.NoError(t, err)
	ok, err := parsed.VerifyMac(keys.Kaut)
	require.NoError(t, err)
	assert.True(t, ok)
}

func identityRequest(which AttributeType) []byte {
	pkt := &Packet{
		Code: CodeRequest, Identifier: 1, Type: TypeAKA, Subtype: SubtypeIdentity,
	}
	var attr Attribute
	switch which {
	case AT_PERMANENT_ID_REQ:
		attr = &AtPermanentIdReq{}
	case AT_ANY_ID_REQ:
		attr = &AtAnyIdReq{}
	case AT_FULLAUTH_ID_REQ:
		attr = &AtFullauthIdReq{}
	}
	if attr != nil {
		pkt.Attributes = append(pkt.Attributes, attr)
	}
	b, err := pkt.Marshal()
	if err != nil {
		panic(err)
	}
	return b
}

func TestMethodIdentityAppliesImsiPrefix(t *testing.T) {
	m := &Method{Variant: VariantAKA, Identity: "0123456789012345@nai.epc.mnc001.mcc001.3gppnetwork.org"}
	resp, _, _, err := m.HandleRequest(identityRequest(AT_PERMANENT_ID_REQ))
	require.NoError(t, err)
	parsed, err := Parse(resp)
	require.NoError(t, err)
	id, ok := parsed.Get(AT_IDENTITY).(*AtIdentity)
	require.True(t, ok)
	assert.Equal(t, "0"+m.Identity, id.Identity)
}

func TestMethodIdentityPrimeAppliesImsiPrefix(t *testing.T) {
	m := &Method{Variant: VariantAKAPrime, Identity: "0123456789012345@nai.epc.mnc001.mcc001.3gppnetwork.org"}
	resp, _, _, err := m.HandleRequest(identityRequest(AT_ANY_ID_REQ))
	require.NoError(t, err)
	parsed, err := Parse(resp)
	require.NoError(t, err)
	id, ok := parsed.Get(AT_IDENTITY).(*AtIdentity)
	require.True(t, ok)
	assert.Equal(t, "6"+m.Identity, id.Identity)
}

func TestMethodIdentityRejectsAmbiguousRequest(t *testing.T) {
	m := &Method{Variant: VariantAKA, Identity: "alice"}
	_, _, _, err := m.HandleRequest(identityRequest(AttributeType(0))) // no id-req attribute at all
	assert.Error(t, err)
}

func TestMethodIdentityRejectsWhenMacPresent(t *testing.T) {
	pkt := &Packet{
		Code: CodeRequest, Identifier: 1, Type: TypeAKA, Subtype: SubtypeIdentity,
		Attributes: []Attribute{
			&AtPermanentIdReq{},
			&AtMac{},
		},
	}
	b, err := pkt.Marshal()
	require.NoError(t, err)
	m := &Method{Variant: VariantAKA, Identity: "alice"}
	_, _, _, err = m.HandleRequest(b)
	assert.Error(t, err)
}

func TestMethodIdentityUnavailable(t *testing.T) {
	m := &Method{Variant: VariantAKA}
	_, _, _, err := m.HandleRequest(identityRequest(AT_PERMANENT_ID_REQ))
	assert.Error(t, err)
}

func TestMatchNetworkName(t *testing.T) {
	assert.False(t, match("a:b:c", "a:b:d"))
	assert.True(t, match("a:b", "a:b:c"))
	assert.True(t, match("", "anything"))
}

func TestMethodAKAPrimeRejectsNetworkNameMismatch(t *testing.T) {
	oracle := &fakeOracle{
		res: []byte{0x01, 0x02},
		ck:  bytes.Repeat([]byte{0x40}, 16),
		ik:  bytes.Repeat([]byte{0x41}, 16),
	}
	m := &Method{Variant: VariantAKAPrime, Identity: "alice", NetworkName: "WLAN", Oracle: oracle}

	pkt := &Packet{
		Code: CodeRequest, Identifier: 1, Type: TypeAKAPrime, Subtype: SubtypeChallenge,
		Attributes: []Attribute{
			&AtRand{Rand: bytes.Repeat([]byte{0x01}, 16)},
			&AtAutn{Autn: bytes.Repeat([]byte{0x02}, 16)},
			&AtKdf{KDF: 1},
			&AtKdfInput{NetworkName: "WIFI"},
			&AtMac{},
		},
	}
	// MAC key is irrelevant here: the network-name mismatch is caught
	// before Kaut is even derived from the (wrong) network name.
	require.NoError(t, pkt.CalculateAndSetMac(bytes.Repeat([]byte{0xff}, 16)))
	req, err := pkt.Marshal()
	require.NoError(t, err)

	resp, done, msk, err := m.HandleRequest(req)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Nil(t, msk)
	parsed, err := Parse(resp)
	require.NoError(t, err)
	assert.Equal(t, SubtypeAuthenticationReject, parsed.Subtype)
}

func TestMethodAKAPrimeRejectsBadKdf(t *testing.T) {
	oracle := &fakeOracle{
		res: []byte{0x01, 0x02},
		ck:  bytes.Repeat([]byte{0x40}, 16),
		ik:  bytes.Repeat([]byte{0x41}, 16),
	}
	m := &Method{Variant: VariantAKAPrime, Identity: "alice", NetworkName: "WLAN", Oracle: oracle}

	pkt := &Packet{
		Code: CodeRequest, Identifier: 1, Type: TypeAKAPrime, Subtype: SubtypeChallenge,
		Attributes: []Attribute{
			&AtRand{Rand: bytes.Repeat([]byte{0x01}, 16)},
			&AtAutn{Autn: bytes.Repeat([]byte{0x02}, 16)},
			&AtKdf{KDF: 2},
			&AtKdfInput{NetworkName: "WLAN"},
			&AtMac{},
		},
	}
	require.NoError(t, pkt.CalculateAndSetMac(bytes.Repeat([]byte{0xff}, 16)))
	req, err := pkt.Marshal()
	require.NoError(t, err)

	resp, _, _, err := m.HandleRequest(req)
	require.NoError(t, err)
	parsed, err := Parse(resp)
	require.NoError(t, err)
	assert.Equal(t, SubtypeAuthenticationReject, parsed.Subtype)
}

type fakeGsmOracle struct{ calls int }

func (o *fakeGsmOracle) RunGSM(rnd []byte) (sres, kc []byte, err error) {
	o.calls++
	return bytes.Repeat([]byte{byte(o.calls)}, 4), bytes.Repeat([]byte{byte(o.calls + 0x10)}, 8), nil
}

func TestMethodSimStartAndChallenge(t *testing.T) {
	gsm := &fakeGsmOracle{}
	m := &Method{Variant: VariantSIM, Identity: "1234567890@wlan.mnc001.mcc001.3gppnetwork.org", GsmOracle: gsm, SimRounds: 2}

	startReq, err := (&Packet{
		Code: CodeRequest, Identifier: 1, Type: TypeSIM, Subtype: SubtypeIdentity,
		Attributes: []Attribute{&AtVersionList{Versions: []uint16{1}}},
	}).Marshal()
	require.NoError(t, err)

	resp, done, _, err := m.HandleRequest(startReq)
	require.NoError(t, err)
	assert.False(t, done)
	parsed, err := Parse(resp)
	require.NoError(t, err)
	nonce, ok := parsed.Get(AT_NONCE_MT).(*AtNonceMt)
	require.True(t, ok)
	assert.Len(t, nonce.NonceMt, 16)
	assert.Equal(t, m.nonceMt, nonce.NonceMt)

	rand2 := bytes.Repeat([]byte{0x01}, 16)
	rand1 := bytes.Repeat([]byte{0x02}, 16)
	kcs := [][]byte{
		bytes.Repeat([]byte{0x11}, 8),
		bytes.Repeat([]byte{0x12}, 8),
	}
	keys := DeriveKeysSIM(m.Identity, kcs, m.nonceMt, []byte{0x00, 0x01})

	challengePkt := &Packet{
		Code: CodeRequest, Identifier: 2, Type: TypeSIM, Subtype: SubtypeChallenge,
		Attributes: []Attribute{
			&AtRand{Rand: append(append([]byte{}, rand1...), rand2...)},
			&AtMac{},
		},
	}
	require.NoError(t, challengePkt.CalculateAndSetMac(keys.Kaut))
	req, err := challengePkt.Marshal()
	require.NoError(t, err)

	_, done, _, err = m.HandleRequest(req)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 2, gsm.calls)
}
