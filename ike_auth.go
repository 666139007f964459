package ike

import (
	"github.com/msgboxio/ike/protocol"
	"github.com/msgboxio/log"
)

// InitPayloads names the payloads that distinguish an IKE SA rekey
// request (CREATE_CHILD_SA carrying a fresh SA/KE/Nonce triple, same
// shape as IKE_SA_INIT) from a plain Child SA rekey/create.
var InitPayloads = []protocol.PayloadType{
	protocol.PayloadTypeSA, protocol.PayloadTypeKE, protocol.PayloadTypeNonce,
}

// signed1 returns RealMessage1 | NonceData, the first component of the
// octets an AUTH payload signs (RFC 7296 §2.15). forInitiator selects
// whose RealMessage/Nonce pair: ours (signing our own AUTH) or the
// peer's (verifying theirs).
func signed1(o *Session, forInitiator bool) []byte {
	if forInitiator {
		return append(append([]byte{}, o.initIb...), o.tkm.Nr...)
	}
	return append(append([]byte{}, o.initRb...), o.tkm.Ni...)
}

// AuthFromSession builds the IKE_AUTH request: our ID, our AUTH payload
// (left out when an EAP method is configured, so that the peer starts
// EAP), the ESP SA proposal, and traffic selectors.
func AuthFromSession(o *Session) *Message {
	payloads := protocol.MakePayloads()
	id := o.cfg.LocalID.IdPayload()
	if id == nil {
		return nil
	}
	idType := protocol.PayloadTypeIDi
	if !o.isInitiator {
		idType = protocol.PayloadTypeIDr
	}
	payloads.Add(protocol.NewIdPayload(idType, id.IdType, id.Data))

	flag := protocol.IkeFlags(0)
	if o.isInitiator {
		flag = protocol.INITIATOR
	}
	if o.cfg.EapMethod == nil {
		auth, err := o.authLocal.Sign(signed1(o, o.isInitiator), flag)
		if err != nil {
			log.Error(o.Tag()+"failed to build AUTH payload: ", err)
			return nil
		}
		payloads.Add(&protocol.AuthPayload{Method: o.authLocal.Method(), Data: auth})
	}
	// IKE_AUTH with EAP configured sends no AUTH payload on the first
	// round trip - the EAP exchange runs first, and the AUTH payload
	// that finally proves MSK possession goes out once it completes
	// (see Session.HandleIkeAuth/handleEapForSession).

	payloads.Add(&protocol.SaPayload{Proposals: protocol.ProposalsFromTransform(protocol.ESP, o.cfg.ProposalEsp, o.EspSpiI)})
	payloads.Add(protocol.NewTrafficSelectorPayload(protocol.PayloadTypeTSi, o.cfg.TsI...))
	payloads.Add(protocol.NewTrafficSelectorPayload(protocol.PayloadTypeTSr, o.cfg.TsR...))

	var spiI, spiR protocol.Spi
	copy(spiI[:], o.IkeSpiI)
	copy(spiR[:], o.IkeSpiR)
	return &Message{
		IkeHeader: &protocol.IkeHeader{
			SpiI:         spiI,
			SpiR:         spiR,
			MajorVersion: protocol.IKEV2_MAJOR_VERSION,
			MinorVersion: protocol.IKEV2_MINOR_VERSION,
			ExchangeType: protocol.IKE_AUTH,
			Flags:        flag,
		},
		Payloads: payloads,
	}
}

func (o *Session) authFlag() protocol.IkeFlags {
	if o.isInitiator {
		return protocol.INITIATOR
	}
	return 0
}

// errEapContinue signals HandleAuthForSession finished one round of an
// in-progress EAP exchange rather than the whole IKE_AUTH exchange -
// Session.HandleIkeAuth treats it as "stay in STATE_AUTH, wait for the
// next response" instead of an authentication failure.
var errEapContinue = protocol.ErrF(0, "eap exchange in progress")

// handleEapForSession runs one round trip of the configured EAP method
// against an inner EAP-Request, queuing the IKE_AUTH request that
// carries its response (RFC 7296 §2.16). Once the method reports done,
// the queued request also carries our final AUTH payload, keyed on the
// method's exported MSK; the peer's own final AUTH still arrives in a
// later, non-EAP IKE_AUTH response that HandleAuthForSession's other
// branch verifies.
func handleEapForSession(o *Session, m *Message, eapPayload *protocol.EapPayload) error {
	method := o.cfg.EapMethod
	if method == nil {
		return protocol.ErrF(protocol.ERR_AUTHENTICATION_FAILED, "peer started EAP but none is configured")
	}
	resp, done, msk, err := method.HandleRequest(eapPayload.EapMessage)
	if err != nil {
		return protocol.ErrF(protocol.ERR_AUTHENTICATION_FAILED, "eap method failed: %s", err)
	}

	payloads := protocol.MakePayloads()
	if resp != nil {
		payloads.Add(protocol.NewEapPayload(resp))
	}
	if done {
		if msk == nil {
			return protocol.ErrF(protocol.ERR_AUTHENTICATION_FAILED, "eap method finished without exporting an MSK")
		}
		if ea, ok := o.authLocal.(*eapAuthenticator); ok {
			ea.Msk = msk
		}
		if ea, ok := o.authRemote.(*eapAuthenticator); ok {
			ea.Msk = msk
		}
		auth, err := o.authLocal.Sign(signed1(o, o.isInitiator), o.authFlag())
		if err != nil {
			return err
		}
		id := o.cfg.LocalID.IdPayload()
		idType := protocol.PayloadTypeIDi
		if !o.isInitiator {
			idType = protocol.PayloadTypeIDr
		}
		payloads.Add(protocol.NewIdPayload(idType, id.IdType, id.Data))
		payloads.Add(&protocol.AuthPayload{Method: o.authLocal.Method(), Data: auth})
	}

	var spiI, spiR protocol.Spi
	copy(spiI[:], o.IkeSpiI)
	copy(spiR[:], o.IkeSpiR)
	req := &Message{
		IkeHeader: &protocol.IkeHeader{
			SpiI:         spiI,
			SpiR:         spiR,
			MajorVersion: protocol.IKEV2_MAJOR_VERSION,
			MinorVersion: protocol.IKEV2_MINOR_VERSION,
			ExchangeType: protocol.IKE_AUTH,
			Flags:        o.authFlag(),
			MsgId:        o.msgIdInc(!o.isInitiator),
		},
		Payloads: payloads,
	}
	o.sendMsg(req.Encode(o.tkm))
	return errEapContinue
}

// HandleAuthForSession processes an IKE_AUTH response: if it carries an
// EAP-Request, feeds it to the configured EAP method and expects another
// round trip; otherwise it must carry the peer's final AUTH payload,
// which is verified before the Child SA parameters are checked.
func HandleAuthForSession(o *Session, m *Message) error {
	if eapPayload, ok := m.Payloads.Get(protocol.PayloadTypeEAP).(*protocol.EapPayload); ok {
		return handleEapForSession(o, m, eapPayload)
	}

	if err := m.EnsurePayloads([]protocol.PayloadType{protocol.PayloadTypeAUTH}); err != nil {
		return err
	}
	auth := m.Payloads.Get(protocol.PayloadTypeAUTH).(*protocol.AuthPayload)
	if err := o.authRemote.Verify(signed1(o, !o.isInitiator), auth.Data, protocol.IkeFlags(0)); err != nil {
		return err
	}

	if err := o.cfg.CheckAuthResponse(m); err != nil {
		return err
	}
	espSa := m.Payloads.Get(protocol.PayloadTypeSA).(*protocol.SaPayload)
	o.EspSpiR = append([]byte{}, espSa.Proposals[0].Spi...)
	log.Infof(o.Tag() + "IKE SA established")
	return nil
}
