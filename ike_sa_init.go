package ike

import (
	"bytes"

	"github.com/msgboxio/ike/protocol"
	"github.com/msgboxio/log"
	"github.com/pkg/errors"
)

// initParams is the subset of an IKE_SA_INIT message this package cares
// about, whichever direction it travels: our own parameters when
// building a request, or the peer's when checking a response.
type initParams struct {
	spiI, spiR    protocol.Spi
	proposals     []*protocol.SaProposal
	cookie        []byte
	dhTransformId protocol.DhTransformId
	dhPublic      []byte
	nonce         []byte
	notifications []*protocol.NotifyPayload
	rfc7427Signatures bool
}

func makeInit(p *initParams) *Message {
	payloads := protocol.MakePayloads()
	payloads.Add(&protocol.SaPayload{Proposals: p.proposals})
	payloads.Add(&protocol.KePayload{DhTransformId: p.dhTransformId, KeyData: p.dhPublic})
	payloads.Add(protocol.NewNoncePayload(p.nonce))
	if p.cookie != nil {
		payloads.Add(protocol.NewNotifyPayload(protocol.COOKIE, p.cookie))
	}
	if p.rfc7427Signatures {
		payloads.Add(protocol.NewNotifyPayload(protocol.SIGNATURE_HASH_ALGORITHMS, []byte{0, 2})) // SHA2-256
	}
	return &Message{
		IkeHeader: &protocol.IkeHeader{
			SpiI:         p.spiI,
			SpiR:         p.spiR,
			MajorVersion: protocol.IKEV2_MAJOR_VERSION,
			MinorVersion: protocol.IKEV2_MINOR_VERSION,
			ExchangeType: protocol.IKE_SA_INIT,
			Flags:        protocol.INITIATOR,
		},
		Payloads: payloads,
	}
}

// InitFromSession builds the IKE_SA_INIT request this initiator sends,
// including a COOKIE notify if the peer previously demanded one.
func InitFromSession(o *Session) *Message {
	var spiI protocol.Spi
	copy(spiI[:], o.IkeSpiI)
	dh := protocol.DhTransformId(o.cfg.ProposalIke[protocol.TRANSFORM_TYPE_DH].Transform.TransformId)
	return makeInit(&initParams{
		spiI:              spiI,
		proposals:         protocol.ProposalsFromTransform(protocol.IKE, o.cfg.ProposalIke, nil),
		cookie:            o.cookie,
		dhTransformId:     dh,
		dhPublic:          o.tkm.DhPublic,
		nonce:             o.tkm.Ni,
		rfc7427Signatures: o.cfg.AuthMethod == protocol.AUTH_DIGITAL_SIGNATURE,
	})
}

// parseInitParams reads the SA/KE/Nonce/Notify payloads of a decoded
// IKE_SA_INIT message - a responder's response, since this package never
// plays the responder role.
func parseInitParams(m *Message) (*initParams, error) {
	if err := m.EnsurePayloads([]protocol.PayloadType{
		protocol.PayloadTypeSA, protocol.PayloadTypeKE, protocol.PayloadTypeNonce,
	}); err != nil {
		return nil, err
	}
	sa := m.Payloads.Get(protocol.PayloadTypeSA).(*protocol.SaPayload)
	ke := m.Payloads.Get(protocol.PayloadTypeKE).(*protocol.KePayload)
	nonce := m.Payloads.Get(protocol.PayloadTypeNonce).(*protocol.NoncePayload)
	p := &initParams{
		spiI:          m.IkeHeader.SpiI,
		spiR:          m.IkeHeader.SpiR,
		proposals:     sa.Proposals,
		dhTransformId: ke.DhTransformId,
		dhPublic:      ke.KeyData,
		nonce:         nonce.Nonce,
	}
	for _, payload := range m.Payloads.GetAll(protocol.PayloadTypeN) {
		p.notifications = append(p.notifications, payload.(*protocol.NotifyPayload))
	}
	return p, nil
}

// CheckInitResponseForSession validates a peer's IKE_SA_INIT response
// against what we asked for: it must carry a non-zero, distinct
// responder SPI, and it must not be carrying an error/cookie notify we
// haven't already dealt with.
func CheckInitResponseForSession(o *Session, init *initParams) error {
	if bytes.Equal(init.spiR[:], init.spiI[:]) {
		return errors.WithStack(protocol.ERR_INVALID_SYNTAX)
	}
	for _, notif := range init.notifications {
		switch notif.NotificationType {
		case protocol.COOKIE:
			return CookieError{Cookie: notif.Data}
		case protocol.INVALID_KE_PAYLOAD:
			return protocol.ERR_INVALID_KE_PAYLOAD
		case protocol.NO_PROPOSAL_CHOSEN:
			return protocol.ERR_NO_PROPOSAL_CHOSEN
		case protocol.SIGNATURE_HASH_ALGORITHMS:
			o.rfc7427Signatures = true
		}
	}
	if SpiToInt64(init.spiR[:]) == 0 {
		return errors.WithStack(protocol.ERR_INVALID_SYNTAX)
	}
	return nil
}

// checkSignatureAlgo returns an error if secure signatures were
// configured but the peer never signalled support for them.
func checkSignatureAlgo(o *Session, isEnabled bool) error {
	if !isEnabled {
		log.Warningln(o.Tag() + "peer did not offer secure signatures")
		if o.cfg.AuthMethod == protocol.AUTH_DIGITAL_SIGNATURE {
			return errors.New("peer does not support secure signatures")
		}
	}
	return nil
}

// HandleInitForSession processes the responder's IKE_SA_INIT reply:
// checks it, derives the DH shared secret, and runs the SKEYSEED/KEYMAT
// ladder so the following IKE_AUTH exchange can be encrypted.
func HandleInitForSession(o *Session, m *Message) error {
	init, err := parseInitParams(m)
	if err != nil {
		return err
	}
	if err := CheckInitResponseForSession(o, init); err != nil {
		return err
	}
	if err := checkSignatureAlgo(o, o.rfc7427Signatures); err != nil {
		return err
	}
	// NAT_DETECTION_* is informational only for a client behind NAT -
	// the port the packets already arrived on tells us everything a
	// client-side peer needs to know, so we only log a mismatch here.
	for _, notif := range init.notifications {
		switch notif.NotificationType {
		case protocol.NAT_DETECTION_DESTINATION_IP:
			if !checkNatHash(notif.Data, init.spiI[:], init.spiR[:], m.LocalAddr) {
				log.Infof(o.Tag()+"NAT detected between us and %s", m.LocalAddr)
			}
		case protocol.NAT_DETECTION_SOURCE_IP:
			if !checkNatHash(notif.Data, init.spiI[:], init.spiR[:], m.RemoteAddr) {
				log.Infof(o.Tag()+"NAT detected between %s and us", m.RemoteAddr)
			}
		}
	}
	o.tkm.Nr = init.nonce
	o.IkeSpiR = append([]byte{}, init.spiR[:]...)
	if err := o.tkm.DhGenerateKey(init.dhPublic); err != nil {
		return err
	}
	o.tkm.IsaCreate(o.IkeSpiI, o.IkeSpiR, nil)
	log.Infof(o.Tag() + "IKE SA initialized")
	o.initRb = m.Data
	return nil
}
