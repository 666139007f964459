package protocol

import "github.com/msgboxio/packets"

type ConfigurationType uint8

const (
	CFG_REQUEST ConfigurationType = 1
	CFG_REPLY   ConfigurationType = 2
	CFG_SET     ConfigurationType = 3
	CFG_ACK     ConfigurationType = 4
)

type ConfigAttributeType uint16

const (
	INTERNAL_IP4_ADDRESS ConfigAttributeType = 1
	INTERNAL_IP4_NETMASK ConfigAttributeType = 2
	INTERNAL_IP4_DNS     ConfigAttributeType = 3
	INTERNAL_IP6_ADDRESS ConfigAttributeType = 8
	INTERNAL_IP6_DNS     ConfigAttributeType = 10
)

type ConfigAttribute struct {
	Type  ConfigAttributeType
	Value []byte
}

// ConfigurationPayload negotiates addresses/DNS servers handed to the
// client on the virtual interface (RFC 7296 §3.15).
type ConfigurationPayload struct {
	*PayloadHeader
	ConfigurationType ConfigurationType
	Attributes        []*ConfigAttribute
}

func (s *ConfigurationPayload) Type() PayloadType { return PayloadTypeCP }

func (s *ConfigurationPayload) Decode(b []byte) error {
	if len(b) < 4 {
		return ErrF(ERR_INVALID_SYNTAX, "cp payload too small %d", len(b))
	}
	s.ConfigurationType = ConfigurationType(b[0])
	cursor := 4
	for cursor+4 <= len(b) {
		at, _ := packets.ReadB16(b, cursor)
		alen, _ := packets.ReadB16(b, cursor+2)
		cursor += 4
		if cursor+int(alen) > len(b) {
			return ErrF(ERR_INVALID_SYNTAX, "cp attribute overruns payload")
		}
		s.Attributes = append(s.Attributes, &ConfigAttribute{
			Type:  ConfigAttributeType(at &^ 0x8000),
			Value: append([]byte{}, b[cursor:cursor+int(alen)]...),
		})
		cursor += int(alen)
	}
	return nil
}

func (s *ConfigurationPayload) Encode() []byte {
	b := make([]byte, 4)
	b[0] = uint8(s.ConfigurationType)
	for _, a := range s.Attributes {
		ab := make([]byte, 4)
		packets.WriteB16(ab, 0, uint16(a.Type))
		packets.WriteB16(ab, 2, uint16(len(a.Value)))
		ab = append(ab, a.Value...)
		b = append(b, ab...)
	}
	return b
}
