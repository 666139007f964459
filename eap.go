package ike

// EapMethod drives one inner EAP authentication method (EAP-AKA, AKA',
// SIM, or MSCHAPv2) across the several IKE_AUTH request/response round
// trips RFC 7296 §2.16 allows while EAP is in progress. The session feeds
// it each EAP-Request payload it receives from the peer (as raw EAP
// message octets) and sends whatever response it returns.
type EapMethod interface {
	// HandleRequest processes one EAP-Request and returns the EAP-Response
	// to send back. done is true once the method has seen EAP-Success, at
	// which point msk holds the 64-byte exported MSK used to key the final
	// IKE AUTH payload. A failed method returns a non-nil err and done false.
	HandleRequest(req []byte) (resp []byte, done bool, msk []byte, err error)
}
