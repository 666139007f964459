package eapaka

import (
	"crypto/rand"
	"strings"

	"github.com/msgboxio/ike/protocol"
	"github.com/msgboxio/log"
)

// Variant selects which inner method Method runs; the wire codec, MAC
// and most of the state machine are shared, only the Challenge step and
// key derivation differ.
type Variant int

const (
	VariantAKA Variant = iota
	VariantAKAPrime
	VariantSIM
)

// Oracle runs the 3GPP AKA algorithm (TS 33.102) against one RAND/AUTN
// challenge - backed by a UICC, a test double, or an HSS/AuC client.
// This package only consumes its output.
type Oracle interface {
	// RunAKA returns res/ck/ik on success. synced is false when AUTN's
	// sequence number fails the freshness check the USIM enforces; auts
	// is then the resynchronization token and res/ck/ik are unused.
	RunAKA(rnd, autn []byte) (res, ck, ik []byte, synced bool, auts []byte, err error)
}

// GsmOracle runs the GSM A3/A8 algorithm EAP-SIM's Challenge needs once
// per RAND in the n-triplet set the server sends.
type GsmOracle interface {
	RunGSM(rnd []byte) (sres, kc []byte, err error)
}

// Method drives one EAP-AKA/AKA'/SIM run: Identity (or SIM's Start) then
// Challenge then Success/Failure, exporting an MSK once the server's
// final MAC verifies.
type Method struct {
	Variant     Variant
	Identity    string // NAI sent in response to an identity request
	NetworkName string // AKA' access network identity (AT_KDF_INPUT)
	Oracle      Oracle
	GsmOracle   GsmOracle
	SimRounds   int // n in {2,3}, GSM triplets EAP-SIM requires

	// AllowNetworkNameMismatch skips the RFC 5448 §3.1 network-name match
	// between m.NetworkName and the server's AT_KDF_INPUT instead of
	// replying with an Authentication-Reject.
	AllowNetworkNameMismatch bool

	identifier uint8
	keys       Keys
	nonceMt    []byte // EAP-SIM: generated at Start, needed for MK
	version    uint16
}

// HandleRequest implements ike's EapMethod interface.
func (m *Method) HandleRequest(req []byte) (resp []byte, done bool, msk []byte, err error) {
	pkt, err := Parse(req)
	if err != nil {
		return nil, false, nil, err
	}
	m.identifier = pkt.Identifier

	switch pkt.Code {
	case CodeSuccess:
		if m.keys.MSK == nil {
			return nil, false, nil, protocol.ErrF(protocol.ERR_AUTHENTICATION_FAILED, "eap-aka success before challenge completed")
		}
		return nil, true, m.keys.MSK, nil
	case CodeFailure:
		return nil, false, nil, protocol.ErrF(protocol.ERR_AUTHENTICATION_FAILED, "eap-aka server reported failure")
	}

	switch pkt.Subtype {
	case SubtypeIdentity:
		return m.handleIdentity(pkt)
	case SubtypeChallenge:
		return m.handleChallenge(pkt)
	case SubtypeNotification:
		return m.handleNotification(pkt)
	default:
		return nil, false, nil, protocol.ErrF(protocol.ERR_AUTHENTICATION_FAILED, "unsupported eap-aka subtype %d", pkt.Subtype)
	}
}

func (m *Method) eapType() uint8 {
	switch m.Variant {
	case VariantAKAPrime:
		return TypeAKAPrime
	case VariantSIM:
		return TypeSIM
	default:
		return TypeAKA
	}
}

// handleIdentity answers an identity request with our NAI; for EAP-SIM
// the server instead asks for a version and nonce at this step (RFC
// 4186's Start round), signalled by an AT_VERSION_LIST attribute.
func (m *Method) handleIdentity(pkt *Packet) ([]byte, bool, []byte, error) {
	if m.Variant == VariantSIM {
		if vl, ok := pkt.Get(AT_VERSION_LIST).(*AtVersionList); ok {
			return m.respondSimStart(vl)
		}
	}
	if !isValidIdentityAttributes(pkt) {
		return nil, false, nil, protocol.ErrF(protocol.ERR_INVALID_SYNTAX, "eap-aka identity request carries an invalid attribute combination")
	}
	if m.Identity == "" {
		return nil, false, nil, protocol.ErrF(0, "eap-aka: identity unavailable")
	}
	resp := &Packet{
		Code: CodeResponse, Identifier: m.identifier,
		Type: m.eapType(), Subtype: SubtypeIdentity,
		Attributes: []Attribute{&AtIdentity{Identity: m.prefixedIdentity()}},
	}
	b, err := resp.Marshal()
	return b, false, nil, err
}

// isValidIdentityAttributes implements the Identity-state attribute
// check: exactly one of the three ID-request attributes, and none of
// AT_MAC/AT_IV/AT_ENCR_DATA (those belong to a Challenge or reauthentication
// message, never an identity request).
func isValidIdentityAttributes(pkt *Packet) bool {
	idReqs := 0
	for _, t := range []AttributeType{AT_PERMANENT_ID_REQ, AT_ANY_ID_REQ, AT_FULLAUTH_ID_REQ} {
		if pkt.Get(t) != nil {
			idReqs++
		}
	}
	if idReqs != 1 {
		return false
	}
	for _, t := range []AttributeType{AT_MAC, AT_IV, AT_ENCR_DATA} {
		if pkt.Get(t) != nil {
			return false
		}
	}
	return true
}

// prefixedIdentity applies the permanent-identity prefix RFC 4187/5448
// require in the AT_IDENTITY response: "0" for EAP-AKA, "6" for EAP-AKA'.
func (m *Method) prefixedIdentity() string {
	if m.Variant == VariantAKAPrime {
		return "6" + m.Identity
	}
	return "0" + m.Identity
}

func (m *Method) respondSimStart(vl *AtVersionList) ([]byte, bool, []byte, error) {
	selected := uint16(1)
	found := false
	for _, v := range vl.Versions {
		if v == selected {
			found = true
			break
		}
	}
	if !found {
		return nil, false, nil, protocol.ErrF(protocol.ERR_AUTHENTICATION_FAILED, "eap-sim: no supported version offered")
	}
	m.version = selected
	m.nonceMt = make([]byte, 16)
	if _, err := rand.Read(m.nonceMt); err != nil {
		return nil, false, nil, err
	}
	resp := &Packet{
		Code: CodeResponse, Identifier: m.identifier,
		Type: TypeSIM, Subtype: SubtypeIdentity,
		Attributes: []Attribute{
			&AtIdentity{Identity: m.Identity},
			&AtNonceMt{NonceMt: m.nonceMt},
			&AtSelectedVersion{Version: selected},
		},
	}
	b, err := resp.Marshal()
	return b, false, nil, err
}

func (m *Method) handleChallenge(pkt *Packet) ([]byte, bool, []byte, error) {
	switch m.Variant {
	case VariantSIM:
		return m.challengeSim(pkt)
	default:
		return m.challengeAka(pkt)
	}
}

// challengeAka runs one AKA/AKA' Challenge round: compute RES/CK/IK via
// the Oracle, derive K_aut, verify the server's MAC with it (binding
// the derivation to a server that actually knows the shared key), then
// answer with our own RES and MAC - or, on a synchronization failure,
// with AT_AUTS and no MSK yet.
func (m *Method) challengeAka(pkt *Packet) ([]byte, bool, []byte, error) {
	if !isValidChallengeAttributes(pkt) {
		return nil, false, nil, protocol.ErrF(protocol.ERR_INVALID_SYNTAX, "eap-aka challenge missing AT_RAND/AT_AUTN/AT_MAC")
	}
	rndAttr := pkt.Get(AT_RAND).(*AtRand)
	autnAttr := pkt.Get(AT_AUTN).(*AtAutn)
	if m.Variant == VariantAKAPrime {
		if kdf, ok := pkt.Get(AT_KDF).(*AtKdf); !ok || kdf.KDF != 1 {
			return m.rejectChallenge()
		}
	}
	if m.Oracle == nil {
		return nil, false, nil, protocol.ErrF(protocol.ERR_AUTHENTICATION_FAILED, "no AKA oracle configured")
	}
	res, ck, ik, synced, auts, err := m.Oracle.RunAKA(rndAttr.Rand, autnAttr.Autn)
	if err != nil {
		return nil, false, nil, err
	}
	if !synced {
		log.Infof("eap-aka: synchronization failure, requesting resync")
		resp := &Packet{
			Code: CodeResponse, Identifier: m.identifier,
			Type: m.eapType(), Subtype: SubtypeSynchronizationFailure,
			Attributes: []Attribute{&AtAuts{Auts: auts}},
		}
		b, err := resp.Marshal()
		return b, false, nil, err
	}

	var networkName string
	if m.Variant == VariantAKAPrime {
		kdfi, ok := pkt.Get(AT_KDF_INPUT).(*AtKdfInput)
		if !ok {
			return nil, false, nil, protocol.ErrF(protocol.ERR_INVALID_SYNTAX, "eap-aka' challenge missing AT_KDF_INPUT")
		}
		networkName = kdfi.NetworkName
		if !m.AllowNetworkNameMismatch && !match(m.NetworkName, networkName) {
			log.Infof("eap-aka': network name %q does not match configured %q, rejecting", networkName, m.NetworkName)
			return m.rejectChallenge()
		}
		ckPrime, ikPrime := DeriveCKIKPrime(ck, ik, networkName)
		keys, _ := DeriveKeysAKAPrime(m.Identity, ckPrime, ikPrime)
		m.keys = keys
	} else {
		m.keys = DeriveKeysAKA(m.Identity, ck, ik)
	}

	if ok, err := pkt.VerifyMac(m.keys.Kaut); err != nil || !ok {
		return nil, false, nil, protocol.ErrF(protocol.ERR_AUTHENTICATION_FAILED, "eap-aka challenge MAC did not verify")
	}

	resp := &Packet{
		Code: CodeResponse, Identifier: m.identifier,
		Type: m.eapType(), Subtype: SubtypeChallenge,
		Attributes: []Attribute{
			&AtRes{Res: res},
			&AtMac{},
		},
	}
	if err := resp.CalculateAndSetMac(m.keys.Kaut); err != nil {
		return nil, false, nil, err
	}
	b, err := resp.Marshal()
	return b, false, nil, err
}

// isValidChallengeAttributes checks the AKA/AKA' Challenge carries the
// three attributes the round requires: AT_RAND, AT_AUTN and AT_MAC.
func isValidChallengeAttributes(pkt *Packet) bool {
	if _, ok := pkt.Get(AT_RAND).(*AtRand); !ok {
		return false
	}
	if _, ok := pkt.Get(AT_AUTN).(*AtAutn); !ok {
		return false
	}
	return pkt.Get(AT_MAC) != nil
}

// rejectChallenge answers a Challenge with Authentication-Reject, the
// AKA'/AKA response to a Challenge the peer will not process further
// (RFC 4187 §6.4, RFC 5448 §3.1's KDF/network-name failure case).
func (m *Method) rejectChallenge() ([]byte, bool, []byte, error) {
	resp := &Packet{
		Code: CodeResponse, Identifier: m.identifier,
		Type: m.eapType(), Subtype: SubtypeAuthenticationReject,
	}
	b, err := resp.Marshal()
	return b, false, nil, err
}

// match implements the RFC 5448 §3.1 network-name comparison: the
// shorter of two colon-separated name strings must be a whole-component
// prefix of the longer, and an empty configured name always matches
// (i.e. skips validation when no network name is configured).
func match(configured, offered string) bool {
	if configured == "" {
		return true
	}
	a := strings.Split(configured, ":")
	b := strings.Split(offered, ":")
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// challengeSim runs the GSM-triplet Challenge round: one GsmOracle.RunGSM
// call per RAND the server sent, MK derived over the resulting Kc set
// plus the nonce generated during Start.
func (m *Method) challengeSim(pkt *Packet) ([]byte, bool, []byte, error) {
	rndAttr, ok := pkt.Get(AT_RAND).(*AtRand)
	if !ok || len(rndAttr.Rand)%16 != 0 {
		return nil, false, nil, protocol.ErrF(protocol.ERR_AUTHENTICATION_FAILED, "eap-sim challenge missing AT_RAND")
	}
	if m.GsmOracle == nil {
		return nil, false, nil, protocol.ErrF(protocol.ERR_AUTHENTICATION_FAILED, "no GSM oracle configured")
	}
	n := len(rndAttr.Rand) / 16
	var sres []byte
	kcList := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		s, kc, err := m.GsmOracle.RunGSM(rndAttr.Rand[i*16 : (i+1)*16])
		if err != nil {
			return nil, false, nil, err
		}
		sres = append(sres, s...)
		kcList = append(kcList, kc)
	}
	versionBytes := []byte{byte(m.version >> 8), byte(m.version)}
	m.keys = DeriveKeysSIM(m.Identity, kcList, m.nonceMt, versionBytes)

	if ok, err := pkt.VerifyMac(m.keys.Kaut); err != nil || !ok {
		return nil, false, nil, protocol.ErrF(protocol.ERR_AUTHENTICATION_FAILED, "eap-sim challenge MAC did not verify")
	}

	resp := &Packet{
		Code: CodeResponse, Identifier: m.identifier,
		Type: TypeSIM, Subtype: SubtypeChallenge,
		Attributes: []Attribute{
			&AtRes{Res: sres},
			&AtMac{},
		},
	}
	if err := resp.CalculateAndSetMac(m.keys.Kaut); err != nil {
		return nil, false, nil, err
	}
	b, err := resp.Marshal()
	return b, false, nil, err
}

// handleNotification acks a server notification; the S bit tells us
// whether it arrived before or after the Challenge/MAC succeeded, which
// only changes whether we should expect a Success next.
func (m *Method) handleNotification(pkt *Packet) ([]byte, bool, []byte, error) {
	notif, _ := pkt.Get(AT_NOTIFICATION).(*AtNotification)
	if notif != nil && !notif.Success {
		return nil, false, nil, protocol.ErrF(protocol.ERR_AUTHENTICATION_FAILED, "eap-aka server notification code %d", notif.Code)
	}
	resp := &Packet{
		Code: CodeResponse, Identifier: m.identifier,
		Type: m.eapType(), Subtype: SubtypeNotification,
	}
	b, err := resp.Marshal()
	return b, false, nil, err
}
