package ike

import (
	"github.com/msgboxio/ike/protocol"
	"github.com/msgboxio/ike/state"
	"github.com/msgboxio/log"
)

func informationalHeader(o *Session, isResponse bool) *protocol.IkeHeader {
	var spiI, spiR protocol.Spi
	copy(spiI[:], o.IkeSpiI)
	copy(spiR[:], o.IkeSpiR)
	flag := o.authFlag()
	if isResponse {
		flag |= protocol.RESPONSE
	}
	return &protocol.IkeHeader{
		SpiI:         spiI,
		SpiR:         spiR,
		MajorVersion: protocol.IKEV2_MAJOR_VERSION,
		MinorVersion: protocol.IKEV2_MINOR_VERSION,
		ExchangeType: protocol.INFORMATIONAL,
		Flags:        flag,
	}
}

// EmptyFromSession builds an empty INFORMATIONAL exchange, used both as
// a Dead Peer Detection liveness probe and to acknowledge one.
func EmptyFromSession(o *Session, isResponse bool) *Message {
	return &Message{IkeHeader: informationalHeader(o, isResponse), Payloads: protocol.MakePayloads()}
}

// NotifyFromSession builds an INFORMATIONAL request carrying a single
// error notification, used to tell the peer why we are about to close
// the IKE SA.
func NotifyFromSession(o *Session, ie protocol.IkeErrorCode) *Message {
	payloads := protocol.MakePayloads()
	payloads.Add(&protocol.NotifyPayload{ProtocolId: protocol.IKE, NotificationType: protocol.NotificationType(ie)})
	return &Message{IkeHeader: informationalHeader(o, false), Payloads: payloads}
}

// DeleteFromSession builds the INFORMATIONAL request that tears down the
// whole IKE SA (an empty Spis list implies every Child SA under it too).
func DeleteFromSession(o *Session) *Message {
	payloads := protocol.MakePayloads()
	payloads.Add(protocol.NewDeletePayload(protocol.IKE))
	return &Message{IkeHeader: informationalHeader(o, false), Payloads: payloads}
}

// checkSaForSession runs once IKE_AUTH has completed: confirms the
// negotiated Child SA actually has both ESP SPIs before chaining into
// InstallSa.
func checkSaForSession(o *Session, m *Message) state.StateEvent {
	if SpiToInt64(o.EspSpiI) == 0 || SpiToInt64(o.EspSpiR) == 0 {
		return state.StateEvent{Event: state.AUTH_FAIL, Data: protocol.ERR_NO_PROPOSAL_CHOSEN}
	}
	return state.StateEvent{Event: state.SUCCESS}
}

// HandleInformationalForSession processes a peer-initiated INFORMATIONAL
// exchange: Delete payloads close the IKE SA (or just log a Child SA
// delete, since this package only ever negotiates one), Notify payloads
// carrying an error code are surfaced via CheckError, and anything empty
// is just a DPD probe we ack by sending our own empty response.
func HandleInformationalForSession(o *Session, m *Message) *state.StateEvent {
	if del, ok := m.Payloads.Get(protocol.PayloadTypeD).(*protocol.DeletePayload); ok {
		if del.ProtocolId == protocol.IKE {
			log.Infof(o.Tag() + "peer requested IKE SA delete")
			return &state.StateEvent{Event: state.DELETE_IKE_SA}
		}
		log.Infof(o.Tag() + "peer requested Child SA delete")
		o.SendEmptyInformational(true)
		return nil
	}
	for _, payload := range m.Payloads.GetAll(protocol.PayloadTypeN) {
		notif := payload.(*protocol.NotifyPayload)
		// a notification the peer sent us is surfaced through CheckError's
		// NotificationType branch (log and ignore) - its IkeErrorCode branch
		// is for errors we originate and still need to transmit.
		o.CheckError(notif.NotificationType)
	}
	if !m.IkeHeader.Flags.IsResponse() {
		o.SendEmptyInformational(true)
	}
	return nil
}
