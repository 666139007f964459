package protocol

import "github.com/msgboxio/packets"

type NotificationType uint16

const (
	UNSUPPORTED_CRITICAL_PAYLOAD NotificationType = 1
	INVALID_IKE_SPI              NotificationType = 4
	INVALID_MAJOR_VERSION        NotificationType = 5
	INVALID_SYNTAX               NotificationType = 7
	INVALID_MESSAGE_ID           NotificationType = 9
	INVALID_SPI                  NotificationType = 11
	NO_PROPOSAL_CHOSEN           NotificationType = 14
	INVALID_KE_PAYLOAD           NotificationType = 17
	AUTHENTICATION_FAILED        NotificationType = 24
	SINGLE_PAIR_REQUIRED         NotificationType = 34
	NO_ADDITIONAL_SAS            NotificationType = 35
	INTERNAL_ADDRESS_FAILURE     NotificationType = 36
	FAILED_CP_REQUIRED           NotificationType = 37
	TS_UNACCEPTABLE              NotificationType = 38
	INVALID_SELECTORS            NotificationType = 39
	TEMPORARY_FAILURE            NotificationType = 43
	CHILD_SA_NOT_FOUND           NotificationType = 44

	INITIAL_CONTACT                     NotificationType = 16384
	SET_WINDOW_SIZE                     NotificationType = 16385
	ADDITIONAL_TS_POSSIBLE              NotificationType = 16386
	IPCOMP_SUPPORTED                    NotificationType = 16387
	NAT_DETECTION_SOURCE_IP             NotificationType = 16388
	NAT_DETECTION_DESTINATION_IP        NotificationType = 16389
	COOKIE                              NotificationType = 16390
	USE_TRANSPORT_MODE                  NotificationType = 16391
	HTTP_CERT_LOOKUP_SUPPORTED          NotificationType = 16392
	REKEY_SA                            NotificationType = 16393
	ESP_TFC_PADDING_NOT_SUPPORTED       NotificationType = 16394
	NON_FIRST_FRAGMENTS_ALSO            NotificationType = 16395
	MOBIKE_SUPPORTED                    NotificationType = 16396
	ADDITIONAL_IP4_ADDRESS              NotificationType = 16397
	ADDITIONAL_IP6_ADDRESS              NotificationType = 16398
	NO_ADDITIONAL_ADDRESSES             NotificationType = 16399
	UPDATE_SA_ADDRESSES                 NotificationType = 16400
	COOKIE2                             NotificationType = 16401
	NO_NATS_ALLOWED                     NotificationType = 16402
	AUTH_LIFETIME                       NotificationType = 16403
	MULTIPLE_AUTH_SUPPORTED             NotificationType = 16404
	ANOTHER_AUTH_FOLLOWS                NotificationType = 16405
	REDIRECT_SUPPORTED                  NotificationType = 16406
	REDIRECT                            NotificationType = 16407
	REDIRECTED_FROM                     NotificationType = 16408
	TICKET_LT_OPAQUE                    NotificationType = 16409
	TICKET_REQUEST                      NotificationType = 16410
	TICKET_ACK                          NotificationType = 16411
	TICKET_NACK                         NotificationType = 16412
	TICKET_OPAQUE                       NotificationType = 16413
	LINK_ID                             NotificationType = 16414
	USE_WESP_MODE                       NotificationType = 16415
	ROHC_SUPPORTED                      NotificationType = 16416
	EAP_ONLY_AUTHENTICATION             NotificationType = 16417
	CHILDLESS_IKEV2_SUPPORTED           NotificationType = 16418
	QUICK_CRASH_DETECTION               NotificationType = 16419
	IKEV2_MESSAGE_ID_SYNC_SUPPORTED     NotificationType = 16420
	IPSEC_REPLAY_COUNTER_SYNC_SUPPORTED NotificationType = 16421
	IKEV2_MESSAGE_ID_SYNC               NotificationType = 16422
	IPSEC_REPLAY_COUNTER_SYNC           NotificationType = 16423
	SECURE_PASSWORD_METHOD              NotificationType = 16424
	PSK_PERSIST                         NotificationType = 16425
	PSK_CONFIRM                         NotificationType = 16426
	ERX_SUPPORTED                       NotificationType = 16427
	IFOM_CAPABILITY                     NotificationType = 16428
	SENDER_REQUEST_ID                   NotificationType = 16429
	IKEV2_FRAGMENTATION_SUPPORTED       NotificationType = 16430
	SIGNATURE_HASH_ALGORITHMS           NotificationType = 16431
)

// NotifyPayload carries an error or status notification, optionally
// scoped to a protocol and SPI (e.g. REKEY_SA on a Child SA).
type NotifyPayload struct {
	*PayloadHeader
	ProtocolId       ProtocolId
	NotificationType NotificationType
	Spi              []byte
	Data             []byte
}

func NewNotifyPayload(nt NotificationType, data []byte) *NotifyPayload {
	return &NotifyPayload{NotificationType: nt, Data: data}
}

func (s *NotifyPayload) Type() PayloadType { return PayloadTypeN }

func (s *NotifyPayload) Decode(b []byte) error {
	if len(b) < 4 {
		return ErrF(ERR_INVALID_SYNTAX, "notify payload too small %d", len(b))
	}
	s.ProtocolId = ProtocolId(b[0])
	spiSize := int(b[1])
	nt, _ := packets.ReadB16(b, 2)
	s.NotificationType = NotificationType(nt)
	cursor := 4
	if spiSize > 0 {
		if cursor+spiSize > len(b) {
			return ErrF(ERR_INVALID_SYNTAX, "notify spi overruns payload")
		}
		s.Spi = append([]byte{}, b[cursor:cursor+spiSize]...)
		cursor += spiSize
	}
	s.Data = append([]byte{}, b[cursor:]...)
	return nil
}

func (s *NotifyPayload) Encode() []byte {
	b := make([]byte, 4, 4+len(s.Spi)+len(s.Data))
	b[0] = uint8(s.ProtocolId)
	b[1] = uint8(len(s.Spi))
	packets.WriteB16(b, 2, uint16(s.NotificationType))
	b = append(b, s.Spi...)
	return append(b, s.Data...)
}
