package eapmschapv2

import (
	"crypto/rand"

	"github.com/msgboxio/ike/protocol"
	"github.com/msgboxio/log"
)

// Method drives one EAP-MSCHAPv2 run: Challenge, Response, then the
// server's Success (checked against the expected authenticator
// response) or Failure.
type Method struct {
	Username string
	Password string

	peerChallenge   []byte
	ntResponse      []byte
	authChallenge   []byte
	wantSuccessAck  bool
	expectedAuthRsp []byte
}

// HandleRequest implements ike's EapMethod interface. A run sees three
// kinds of frame: the MS-CHAP-v2 Challenge (an EAP-Request carrying
// OpChallenge), the MS-CHAP-v2 Success-Request (an EAP-Request carrying
// OpSuccess, checked then acked with an empty Response), and finally the
// bare terminating EAP-Success/EAP-Failure (RFC 3748 §4, no method Type
// at all) that closes out the EAP conversation.
func (m *Method) HandleRequest(req []byte) (resp []byte, done bool, msk []byte, err error) {
	if len(req) >= 2 {
		switch Code(req[0]) {
		case CodeSuccess:
			if !m.wantSuccessAck || m.ntResponse == nil {
				return nil, false, nil, protocol.ErrF(protocol.ERR_AUTHENTICATION_FAILED, "eap-mschapv2: eap-success before mschap success was acked")
			}
			msk, _ := ExportKeys(m.Password, m.ntResponse)
			return nil, true, msk, nil
		case CodeFailure:
			return nil, false, nil, protocol.ErrF(protocol.ERR_AUTHENTICATION_FAILED, "eap-mschapv2: server reported eap failure")
		}
	}
	if isFailure(req) {
		return nil, false, nil, protocol.ErrF(protocol.ERR_AUTHENTICATION_FAILED, "eap-mschapv2: server reported failure")
	}
	if msg, ok := isSuccess(req); ok {
		return m.handleSuccess(req, msg)
	}
	if m.wantSuccessAck {
		return nil, false, nil, protocol.ErrF(protocol.ERR_AUTHENTICATION_FAILED, "eap-mschapv2: expected EAP-Success, got another request")
	}
	return m.handleChallenge(req)
}

func (m *Method) handleChallenge(req []byte) ([]byte, bool, []byte, error) {
	ch, err := ParseChallenge(req)
	if err != nil {
		return nil, false, nil, err
	}
	m.authChallenge = ch.Challenge
	m.peerChallenge = make([]byte, 16)
	if _, err := rand.Read(m.peerChallenge); err != nil {
		return nil, false, nil, err
	}
	ntResponse, err := GenerateNTResponse(ch.Challenge, m.peerChallenge, m.Username, m.Password)
	if err != nil {
		return nil, false, nil, err
	}
	m.ntResponse = ntResponse
	m.expectedAuthRsp = AuthenticatorResponse(m.Password, ntResponse, m.peerChallenge, ch.Challenge, m.Username)

	resp := &ResponsePacket{
		Identifier:    ch.Identifier,
		MsChapID:      ch.MsChapID,
		PeerChallenge: m.peerChallenge,
		NtResponse:    ntResponse,
		Name:          m.Username,
	}
	return resp.Marshal(), false, nil, nil
}

// handleSuccess checks the server's "S=<hex>" authenticator response
// against the one we computed when answering the Challenge (RFC 2759
// §4) and acks it; the terminating EAP-Success that actually exports
// the MSK is a separate, bare frame handled in HandleRequest.
func (m *Method) handleSuccess(req []byte, msg string) ([]byte, bool, []byte, error) {
	if m.expectedAuthRsp == nil {
		return nil, false, nil, protocol.ErrF(protocol.ERR_AUTHENTICATION_FAILED, "eap-mschapv2: success before challenge answered")
	}
	authRsp, ok := parseSuccessMessage(msg)
	if !ok {
		return nil, false, nil, protocol.ErrF(protocol.ERR_AUTHENTICATION_FAILED, "eap-mschapv2: malformed success message")
	}
	if !bytesEqual(authRsp, m.expectedAuthRsp) {
		return nil, false, nil, protocol.ErrF(protocol.ERR_AUTHENTICATION_FAILED, "eap-mschapv2: server authenticator response did not verify")
	}
	log.Infof("eap-mschapv2: server authenticator response verified")
	m.wantSuccessAck = true
	return buildSuccessAck(req[1]), false, nil, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
