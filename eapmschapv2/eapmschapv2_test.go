package eapmschapv2

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test vectors from RFC 2759 §9.
var (
	rfcAuthChallenge = mustHex("5B5D7C7D7B3F2F3E3C2C602132262628")
	rfcPeerChallenge = mustHex("21402324255E262A28295F2B3A337C7E")
	rfcUsername      = "User"
	rfcPassword      = "clientPass"
	rfcNTResponse    = mustHex("82309ECD8D708B5EA08FAA3981CD83544233114A3D85D6DF")
)

func mustHex(s string) []byte {
	s = stripSpace(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

func stripSpace(s string) string {
	out := make([]byte, 0, len(s))
	for _, c := range []byte(s) {
		if c != ' ' {
			out = append(out, c)
		}
	}
	return string(out)
}

func TestGenerateNTResponseVector(t *testing.T) {
	got, err := GenerateNTResponse(rfcAuthChallenge, rfcPeerChallenge, rfcUsername, rfcPassword)
	require.NoError(t, err)
	assert.Equal(t, rfcNTResponse, got)
}

func TestAuthenticatorResponseVector(t *testing.T) {
	got := AuthenticatorResponse(rfcPassword, rfcNTResponse, rfcPeerChallenge, rfcAuthChallenge, rfcUsername)
	assert.Equal(t, "407A5589115FD0D6209F510FE9C04566932CDA56", hexUpper(got))
}

func hexUpper(b []byte) string {
	s := hex.EncodeToString(b)
	out := make([]byte, len(s))
	for i := range s {
		c := s[i]
		if c >= 'a' && c <= 'f' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

func TestChallengePacketRoundTrip(t *testing.T) {
	msBody := []byte{byte(OpChallenge), 9, 0, 0, 16}
	msBody = append(msBody, rfcAuthChallenge...)
	msBody = append(msBody, []byte("auth1")...)
	msBody[2] = byte(len(msBody) >> 8)
	msBody[3] = byte(len(msBody))

	eap := []byte{byte(CodeRequest), 1, 0, 0, EapType}
	eap = append(eap, msBody...)
	eap[2] = byte(len(eap) >> 8)
	eap[3] = byte(len(eap))

	ch, err := ParseChallenge(eap)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), ch.Identifier)
	assert.Equal(t, uint8(9), ch.MsChapID)
	assert.Equal(t, rfcAuthChallenge, ch.Challenge)
	assert.Equal(t, "auth1", ch.Name)
}

func TestResponsePacketMarshal(t *testing.T) {
	resp := &ResponsePacket{
		Identifier:    2,
		MsChapID:      9,
		PeerChallenge: rfcPeerChallenge,
		NtResponse:    rfcNTResponse,
		Name:          rfcUsername,
	}
	eap := resp.Marshal()
	require.True(t, len(eap) > 5)
	assert.Equal(t, uint8(CodeResponse), eap[0])
	assert.Equal(t, EapType, eap[4])
	assert.Equal(t, byte(OpResponse), eap[5])
}

func TestParseSuccessMessage(t *testing.T) {
	msg := "S=407A5589115FD0D6209F510FE9C04566932CDA56 M=OK"
	got, ok := parseSuccessMessage(msg)
	require.True(t, ok)
	assert.Equal(t, mustHex("407A5589115FD0D6209F510FE9C04566932CDA56"), got)
}

func buildChallengeFrame(identifier, msChapID uint8, challenge []byte, name string) []byte {
	msBody := []byte{byte(OpChallenge), msChapID, 0, 0, byte(len(challenge))}
	msBody = append(msBody, challenge...)
	msBody = append(msBody, []byte(name)...)
	l := len(msBody)
	msBody[2] = byte(l >> 8)
	msBody[3] = byte(l)

	eap := []byte{byte(CodeRequest), identifier, 0, 0, EapType}
	eap = append(eap, msBody...)
	l = len(eap)
	eap[2] = byte(l >> 8)
	eap[3] = byte(l)
	return eap
}

func buildSuccessFrame(identifier, msChapID uint8, authRsp []byte) []byte {
	msg := "S=" + hexUpper(authRsp) + " M=OK"
	msBody := append([]byte{byte(OpSuccess)}, []byte(msg)...)
	eap := []byte{byte(CodeRequest), identifier, 0, 0, EapType}
	eap = append(eap, msBody...)
	l := len(eap)
	eap[2] = byte(l >> 8)
	eap[3] = byte(l)
	return eap
}

func TestMethodFullHandshake(t *testing.T) {
	m := &Method{Username: rfcUsername, Password: rfcPassword}

	challengeFrame := buildChallengeFrame(1, 9, rfcAuthChallenge, "authenticator")
	resp, done, msk, err := m.HandleRequest(challengeFrame)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Nil(t, msk)
	require.NotEmpty(t, resp)

	// The peer's own nonce was generated internally; recompute the
	// expected authenticator response using it rather than the RFC
	// vector's fixed PeerChallenge.
	require.Len(t, m.peerChallenge, 16)
	expectedAuthRsp := AuthenticatorResponse(rfcPassword, m.ntResponse, m.peerChallenge, rfcAuthChallenge, rfcUsername)

	successFrame := buildSuccessFrame(2, 9, expectedAuthRsp)
	resp, done, msk, err = m.HandleRequest(successFrame)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Nil(t, msk)
	require.NotEmpty(t, resp)
	assert.Equal(t, uint8(CodeResponse), resp[0])
	assert.True(t, m.wantSuccessAck)

	eapSuccess := []byte{byte(CodeSuccess), 3, 0, 4}
	_, done, msk, err = m.HandleRequest(eapSuccess)
	require.NoError(t, err)
	assert.True(t, done)
	require.NotNil(t, msk)
	assert.Len(t, msk, 64)
}

func TestMethodRejectsBadAuthenticatorResponse(t *testing.T) {
	m := &Method{Username: rfcUsername, Password: rfcPassword}
	challengeFrame := buildChallengeFrame(1, 9, rfcAuthChallenge, "authenticator")
	_, _, _, err := m.HandleRequest(challengeFrame)
	require.NoError(t, err)

	badAuthRsp := make([]byte, 20)
	successFrame := buildSuccessFrame(2, 9, badAuthRsp)
	_, _, _, err = m.HandleRequest(successFrame)
	assert.Error(t, err)
}

func TestMethodRejectsEapSuccessBeforeAck(t *testing.T) {
	m := &Method{Username: rfcUsername, Password: rfcPassword}
	eapSuccess := []byte{byte(CodeSuccess), 1, 0, 4}
	_, _, _, err := m.HandleRequest(eapSuccess)
	assert.Error(t, err)
}

func TestMethodRejectsFailureFrame(t *testing.T) {
	m := &Method{Username: rfcUsername, Password: rfcPassword}
	eapFailure := []byte{byte(CodeFailure), 1, 0, 4}
	_, _, _, err := m.HandleRequest(eapFailure)
	assert.Error(t, err)
}
