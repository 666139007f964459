package protocol

import (
	"bytes"
	"net"

	"github.com/msgboxio/packets"
)

type SelectorType uint8

const (
	TS_IPV4_ADDR_RANGE SelectorType = 7
	TS_IPV6_ADDR_RANGE SelectorType = 8
)

const MIN_LEN_SELECTOR = 8

// Selector is one traffic selector: an IP protocol and port range over an
// address range, restricting which traffic a Child SA may carry.
type Selector struct {
	Type         SelectorType
	IpProtocolId uint8
	StartPort    uint16
	EndPort      uint16
	StartAddress net.IP
	EndAddress   net.IP
}

func decodeSelector(b []byte) (*Selector, int, error) {
	if len(b) < MIN_LEN_SELECTOR {
		return nil, 0, ErrF(ERR_INVALID_SELECTORS, "selector too small %d", len(b))
	}
	st, _ := packets.ReadB8(b, 0)
	proto, _ := packets.ReadB8(b, 1)
	slen, _ := packets.ReadB16(b, 2)
	startPort, _ := packets.ReadB16(b, 4)
	endPort, _ := packets.ReadB16(b, 6)
	s := &Selector{
		Type:         SelectorType(st),
		IpProtocolId: proto,
		StartPort:    startPort,
		EndPort:      endPort,
	}
	iplen := 4
	if s.Type == TS_IPV6_ADDR_RANGE {
		iplen = 16
	}
	if int(slen) != MIN_LEN_SELECTOR+2*iplen {
		return nil, 0, ErrF(ERR_INVALID_SELECTORS, "selector length %d inconsistent with address family", slen)
	}
	if int(slen) > len(b) {
		return nil, 0, ErrF(ERR_INVALID_SELECTORS, "selector length %d overruns payload", slen)
	}
	s.StartAddress = net.IP(append([]byte{}, b[MIN_LEN_SELECTOR:MIN_LEN_SELECTOR+iplen]...))
	s.EndAddress = net.IP(append([]byte{}, b[MIN_LEN_SELECTOR+iplen:MIN_LEN_SELECTOR+2*iplen]...))
	if s.StartPort > s.EndPort {
		return nil, 0, ErrF(ERR_INVALID_SYNTAX, "selector start port %d exceeds end port %d", s.StartPort, s.EndPort)
	}
	if bytes.Compare(s.StartAddress, s.EndAddress) > 0 {
		return nil, 0, ErrF(ERR_INVALID_SYNTAX, "selector start address %s exceeds end address %s", s.StartAddress, s.EndAddress)
	}
	return s, int(slen), nil
}

func encodeSelector(s *Selector) []byte {
	iplen := 4
	if s.Type == TS_IPV6_ADDR_RANGE {
		iplen = 16
	}
	b := make([]byte, MIN_LEN_SELECTOR+2*iplen)
	b[0] = uint8(s.Type)
	b[1] = s.IpProtocolId
	packets.WriteB16(b, 2, uint16(len(b)))
	packets.WriteB16(b, 4, s.StartPort)
	packets.WriteB16(b, 6, s.EndPort)
	copy(b[MIN_LEN_SELECTOR:], s.StartAddress.To16()[16-iplen:])
	copy(b[MIN_LEN_SELECTOR+iplen:], s.EndAddress.To16()[16-iplen:])
	return b
}

const MIN_LEN_TRAFFIC_SELECTOR = 4

// TrafficSelectorPayload is TSi or TSr - a list of Selectors, any one of
// which matching is sufficient.
type TrafficSelectorPayload struct {
	*PayloadHeader
	trafficSelectorPayloadType PayloadType
	Selectors                  []*Selector
}

func NewTrafficSelectorPayload(which PayloadType, selectors ...*Selector) *TrafficSelectorPayload {
	return &TrafficSelectorPayload{trafficSelectorPayloadType: which, Selectors: selectors}
}

func (s *TrafficSelectorPayload) Type() PayloadType { return s.trafficSelectorPayloadType }

func (s *TrafficSelectorPayload) Decode(b []byte) error {
	if len(b) < MIN_LEN_TRAFFIC_SELECTOR {
		return ErrF(ERR_INVALID_SYNTAX, "ts payload too small %d", len(b))
	}
	numTs, _ := packets.ReadB8(b, 0)
	cursor := MIN_LEN_TRAFFIC_SELECTOR
	for i := 0; i < int(numTs); i++ {
		if cursor >= len(b) {
			return ErrF(ERR_INVALID_SELECTORS, "ts payload missing selector %d of %d", i, numTs)
		}
		sel, n, err := decodeSelector(b[cursor:])
		if err != nil {
			return err
		}
		s.Selectors = append(s.Selectors, sel)
		cursor += n
	}
	if cursor != len(b) {
		return ErrF(ERR_INVALID_SYNTAX, "ts payload has %d trailing bytes after %d selectors", len(b)-cursor, numTs)
	}
	return nil
}

func (s *TrafficSelectorPayload) Encode() []byte {
	b := make([]byte, MIN_LEN_TRAFFIC_SELECTOR)
	b[0] = uint8(len(s.Selectors))
	for _, sel := range s.Selectors {
		b = append(b, encodeSelector(sel)...)
	}
	return b
}
