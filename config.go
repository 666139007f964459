package ike

import (
	"errors"
	"net"

	"github.com/msgboxio/ike/protocol"
	"github.com/msgboxio/log"
)

// Config carries the negotiable parameters of a session: the proposals
// this side is willing to accept, the traffic it wants to carry over the
// Child SA, and how it proves its identity.
type Config struct {
	ProposalIke, ProposalEsp protocol.Transforms

	TsI, TsR []*protocol.Selector

	IsTransportMode bool

	// AuthMethod selects how IKE_AUTH's AUTH payload is computed: a PSK
	// (SHARED_KEY_MESSAGE_INTEGRITY_CODE) or a signature
	// (AUTH_DIGITAL_SIGNATURE, RFC 7427). EAP is layered independently -
	// see Config.EapMethod.
	AuthMethod protocol.AuthMethod

	LocalID, RemoteID Identity

	// EapMethod, when non-nil, runs an EAP exchange inside IKE_AUTH
	// before the final AUTH payload - see the eapaka/eapmschapv2 packages.
	EapMethod EapMethod

	// ThrottleInitRequests is carried with the configuration, but no code
	// in this package reads it: a COOKIE the responder demands (RFC 7296
	// §2.6) is handled the same way whether it is set or not.
	ThrottleInitRequests bool
}

func DefaultConfig() *Config {
	return &Config{
		ProposalIke: protocol.IKE_AES_CBC_SHA2_256_128_DH_2048,
		ProposalEsp: protocol.ESP_AES_CBC_SHA2_256_128,
		AuthMethod:  protocol.AUTH_SHARED_KEY_MESSAGE_INTEGRITY_CODE,
	}
}

// CheckProposals checks if incoming proposals include our configuration.
func (cfg *Config) CheckProposals(prot protocol.ProtocolId, proposals []*protocol.SaProposal) error {
	for _, prop := range proposals {
		if prop.ProtocolId != prot {
			continue
		}
		switch prot {
		case protocol.IKE:
			if cfg.ProposalIke.Within(prop.Transforms) {
				return nil
			}
		case protocol.ESP:
			if cfg.ProposalEsp.Within(prop.Transforms) {
				return nil
			}
		}
	}
	return errors.New("acceptable proposals are missing")
}

// AddSelector builds selectors from an initiator/responder address pair.
func (cfg *Config) AddSelector(initiator, responder *net.IPNet) error {
	first, last, err := IPNetToFirstLastAddress(initiator)
	if err != nil {
		return err
	}
	cfg.TsI = []*protocol.Selector{{
		Type:         protocol.TS_IPV4_ADDR_RANGE,
		IpProtocolId: 0,
		StartPort:    0,
		EndPort:      65535,
		StartAddress: first,
		EndAddress:   last,
	}}
	first, last, err = IPNetToFirstLastAddress(responder)
	if err != nil {
		return err
	}
	cfg.TsR = []*protocol.Selector{{
		Type:         protocol.TS_IPV4_ADDR_RANGE,
		IpProtocolId: 0,
		StartPort:    0,
		EndPort:      65535,
		StartAddress: first,
		EndAddress:   last,
	}}
	return nil
}

// CheckInitResponse takes an IKE_SA_INIT response and checks that an
// acceptable IKE proposal was selected.
func (cfg *Config) CheckInitResponse(initR *Message) error {
	ikeSa, ok := initR.Payloads.Get(protocol.PayloadTypeSA).(*protocol.SaPayload)
	if !ok {
		return errors.New("missing SA payload")
	}
	return cfg.CheckProposals(protocol.IKE, ikeSa.Proposals)
}

// CheckAuthResponse checks the ESP proposal and traffic selectors
// returned in an IKE_AUTH response.
func (cfg *Config) CheckAuthResponse(authR *Message) error {
	espSa, ok := authR.Payloads.Get(protocol.PayloadTypeSA).(*protocol.SaPayload)
	if !ok {
		return errors.New("missing SA payload")
	}
	if err := cfg.CheckProposals(protocol.ESP, espSa.Proposals); err != nil {
		return err
	}
	tsIp := authR.Payloads.Get(protocol.PayloadTypeTSi)
	tsRp := authR.Payloads.Get(protocol.PayloadTypeTSr)
	if tsIp == nil || tsRp == nil {
		return errors.New("acceptable traffic selectors are missing")
	}
	tsI := tsIp.(*protocol.TrafficSelectorPayload).Selectors
	tsR := tsRp.(*protocol.TrafficSelectorPayload).Selectors
	if len(tsI) == 0 || len(tsR) == 0 {
		return errors.New("acceptable traffic selectors are missing")
	}
	for _, sel := range append(append([]*protocol.Selector{}, tsI...), tsR...) {
		if sel.Type != protocol.TS_IPV4_ADDR_RANGE {
			return errors.New("only IPv4 traffic selectors are accepted")
		}
	}
	log.Infof("Configured selectors: [INI]%s<=>%s[RES]", cfg.TsI, cfg.TsR)
	log.Infof("Offered selectors: [INI]%s<=>%s[RES]", tsI, tsR)
	return nil
}
