package ike_test

import (
	"fmt"

	ike "github.com/msgboxio/ike"
	"github.com/msgboxio/ike/eapaka"
	"github.com/msgboxio/ike/eapmschapv2"
)

// simUSIM is a fake 3GPP AKA oracle for documentation purposes only - a
// real Config would back eapaka.Method.Oracle with a UICC or HSS client.
type simUSIM struct{}

func (simUSIM) RunAKA(rnd, autn []byte) (res, ck, ik []byte, synced bool, auts []byte, err error) {
	return nil, nil, nil, false, nil, fmt.Errorf("simUSIM: not a real oracle")
}

// ExampleConfig_withEapAka shows wiring an EAP-AKA' run into
// Config.EapMethod, carried alongside PSK/cert AUTH as an alternative
// IKE_AUTH identity proof.
func ExampleConfig_withEapAka() {
	cfg := ike.DefaultConfig()
	cfg.EapMethod = &eapaka.Method{
		Variant:     eapaka.VariantAKAPrime,
		Identity:    "0123456789012345@nai.epc.mnc001.mcc001.3gppnetwork.org",
		NetworkName: "WLAN",
		Oracle:      simUSIM{},
	}
	fmt.Println(cfg.EapMethod != nil)
	// Output: true
}

// ExampleConfig_withEapMschapv2 shows wiring EAP-MSCHAPv2 (username/
// password inner auth) into Config.EapMethod instead of EAP-AKA.
func ExampleConfig_withEapMschapv2() {
	cfg := ike.DefaultConfig()
	cfg.EapMethod = &eapmschapv2.Method{
		Username: "alice",
		Password: "correct horse battery staple",
	}
	fmt.Println(cfg.EapMethod != nil)
	// Output: true
}
