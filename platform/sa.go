// Package platform describes the Child SA parameters a Session derives
// after IKE_AUTH completes, for a caller to program into whatever
// packet-processing layer it runs (a kernel XFRM policy, a userspace
// ESP stack, a test double). Programming the SA into anything concrete
// is the caller's job - this package only carries the negotiated
// values across that boundary.
package platform

import (
	"net"

	"github.com/msgboxio/ike/protocol"
)

// Direction distinguishes the two unidirectional ESP SAs that make up
// one Child SA.
type Direction int

const (
	OUTBOUND Direction = iota
	INBOUND
)

// SaParams carries everything needed to install one direction of an ESP
// Child SA: SPIs, the negotiated transform, per-direction keys, and the
// traffic it should carry.
type SaParams struct {
	IkeSpiI, IkeSpiR []byte

	SpiI, SpiR []byte // ESP SPIs: initiator-assigned, responder-assigned

	EncryptionAlgo protocol.EncrTransformId
	EncryptionKeyI []byte // keys ESP packets we send are protected with
	EncryptionKeyR []byte // keys ESP packets we receive are protected with

	IntegrityAlgo protocol.AuthTransformId
	IntegrityKeyI []byte
	IntegrityKeyR []byte

	IsTransportMode bool

	TsI, TsR []*protocol.Selector

	Lifetime struct {
		Bytes, Packets uint64
	}

	Initiator bool

	LocalAddr, RemoteAddr net.Addr
}
