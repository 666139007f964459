package ike

import (
	"github.com/msgboxio/ike/platform"
	"github.com/msgboxio/ike/protocol"
	"github.com/msgboxio/log"
)

// addSa derives the first Child SA's keying material and assembles the
// platform.SaParams a caller's SaCallback installs.
func addSa(tkm *Tkm, ikeSpiI, ikeSpiR, espSpiI, espSpiR []byte, cfg *Config, isInitiator bool) *platform.SaParams {
	espEi, espAi, espEr, espAr := tkm.IpsecSaCreate(ikeSpiI, ikeSpiR)
	encr, _ := cfg.ProposalEsp[protocol.TRANSFORM_TYPE_ENCR]
	integ, _ := cfg.ProposalEsp[protocol.TRANSFORM_TYPE_INTEG]
	sa := &platform.SaParams{
		IkeSpiI: ikeSpiI, IkeSpiR: ikeSpiR,
		SpiI: espSpiI, SpiR: espSpiR,
		EncryptionKeyI: espEi, EncryptionKeyR: espEr,
		IntegrityKeyI:   espAi,
		IntegrityKeyR:   espAr,
		IsTransportMode: cfg.IsTransportMode,
		TsI:             cfg.TsI,
		TsR:             cfg.TsR,
		Initiator:       isInitiator,
	}
	if encr != nil {
		sa.EncryptionAlgo = protocol.EncrTransformId(encr.TransformId)
	}
	if integ != nil {
		sa.IntegrityAlgo = protocol.AuthTransformId(integ.TransformId)
	}
	log.Infof("installing Child SA: esp[%#x]<=>esp[%#x]", espSpiI, espSpiR)
	return sa
}

// removeSa builds the same parameters addSa did, for a caller's
// SaCallback to match against whatever it installed and tear down.
func removeSa(tkm *Tkm, ikeSpiI, ikeSpiR, espSpiI, espSpiR []byte, cfg *Config, isInitiator bool) *platform.SaParams {
	log.Infof("removing Child SA: esp[%#x]<=>esp[%#x]", espSpiI, espSpiR)
	return &platform.SaParams{
		IkeSpiI: ikeSpiI, IkeSpiR: ikeSpiR,
		SpiI: espSpiI, SpiR: espSpiR,
		IsTransportMode: cfg.IsTransportMode,
		TsI:             cfg.TsI,
		TsR:             cfg.TsR,
		Initiator:       isInitiator,
	}
}
