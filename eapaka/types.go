// Package eapaka implements the EAP-AKA (RFC 4187), EAP-AKA' (RFC 5448)
// and EAP-SIM (RFC 4186) inner authentication methods used by ike's
// EapMethod interface. The three share one attribute codec and MAC/key
// derivation machinery, differing only in which subtype runs the
// Challenge round and which PRF expands the master key.
package eapaka

// EAP codes, RFC 3748 §4.
const (
	CodeRequest  uint8 = 1
	CodeResponse uint8 = 2
	CodeSuccess  uint8 = 3
	CodeFailure  uint8 = 4
)

// EAP method type numbers (RFC 3748 §6).
const (
	TypeSIM      uint8 = 18 // RFC 4186
	TypeAKA      uint8 = 23 // RFC 4187
	TypeAKAPrime uint8 = 50 // RFC 5448
)

// Subtypes, shared by AKA/AKA'/SIM (RFC 4187 §8.1, RFC 4186 §8.1).
const (
	SubtypeChallenge              uint8 = 1
	SubtypeAuthenticationReject   uint8 = 2
	SubtypeSynchronizationFailure uint8 = 4
	SubtypeIdentity               uint8 = 5
	SubtypeNotification           uint8 = 12
	SubtypeReauthentication       uint8 = 13
	SubtypeClientError            uint8 = 14
)

// AttributeType is one TLV attribute's type octet (RFC 4187 §8.2).
type AttributeType uint8

const (
	AT_RAND              AttributeType = 1
	AT_AUTN              AttributeType = 2
	AT_RES               AttributeType = 3
	AT_AUTS              AttributeType = 4
	AT_PADDING           AttributeType = 6
	AT_NONCE_MT          AttributeType = 7 // RFC 4186
	AT_PERMANENT_ID_REQ  AttributeType = 10
	AT_MAC               AttributeType = 11
	AT_NOTIFICATION      AttributeType = 12
	AT_ANY_ID_REQ        AttributeType = 13
	AT_IDENTITY          AttributeType = 14
	AT_VERSION_LIST      AttributeType = 15 // RFC 4186
	AT_SELECTED_VERSION  AttributeType = 16 // RFC 4186
	AT_FULLAUTH_ID_REQ   AttributeType = 17
	AT_COUNTER           AttributeType = 19
	AT_COUNTER_TOO_SMALL AttributeType = 20
	AT_NONCE_S           AttributeType = 21
	AT_CLIENT_ERROR_CODE AttributeType = 22
	AT_KDF_INPUT         AttributeType = 23 // RFC 5448 §3.1, AKA' network name
	AT_KDF               AttributeType = 24 // RFC 5448 §3.2, AKA' KDF negotiation
	AT_IV                AttributeType = 129
	AT_ENCR_DATA         AttributeType = 130
	AT_NEXT_PSEUDONYM    AttributeType = 132
	AT_NEXT_REAUTH_ID    AttributeType = 133
	AT_RESULT_IND        AttributeType = 135
)

// client error codes an AT_CLIENT_ERROR_CODE can carry (RFC 4187 §9.9).
const (
	ClientErrorUnableToProcess uint16 = 0
)
