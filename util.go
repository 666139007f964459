package ike

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"net"
)

// MakeSpi generates a random 8-octet SPI suitable for an IKE SA; callers
// that need a 4-octet ESP SPI slice the result down with [:4].
func MakeSpi() []byte {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		panic(err) // crypto/rand not functioning is unrecoverable
	}
	return b
}

// SpiToInt64 reads an SPI (any length up to 8 bytes) as a big-endian
// integer, for logging and the "is this SPI still zero" checks of
// RFC 7296 §2.6.
func SpiToInt64(spi []byte) uint64 {
	var buf [8]byte
	copy(buf[8-len(spi):], spi)
	return binary.BigEndian.Uint64(buf[:])
}

// getCookie computes the COOKIE a responder would have issued for this
// (Ni, SpiI, remote address) triple, per RFC 7296 §2.6: a keyed hash a
// client can reproduce without needing any server-side state of its own.
// A client only ever needs to reproduce this to sanity check it isn't
// being asked to loop forever, not to issue cookies itself.
func getCookie(nonce, spiI []byte, remote net.Addr) []byte {
	mac := hmac.New(sha256.New, spiI)
	mac.Write(nonce)
	mac.Write([]byte(remote.String()))
	return mac.Sum(nil)[:20]
}

// checkNatHash verifies a NAT_DETECTION_* notify payload per RFC 7296
// §2.23: SHA1(SPIi | SPIr | addr | port).
func checkNatHash(hash, spiI, spiR []byte, addr net.Addr) bool {
	expected := natHash(spiI, spiR, addr)
	return hmac.Equal(hash, expected)
}

func natHash(spiI, spiR []byte, addr net.Addr) []byte {
	udp, ok := addr.(*net.UDPAddr)
	if !ok {
		return nil
	}
	h := sha1.New()
	h.Write(spiI)
	h.Write(spiR)
	if ip4 := udp.IP.To4(); ip4 != nil {
		h.Write(ip4)
	} else {
		h.Write(udp.IP.To16())
	}
	var portB [2]byte
	binary.BigEndian.PutUint16(portB[:], uint16(udp.Port))
	h.Write(portB[:])
	return h.Sum(nil)
}

// IPNetToFirstLastAddress returns the first and last usable addresses in
// an IPv4 network, for building a host-range traffic selector.
func IPNetToFirstLastAddress(n *net.IPNet) (first, last net.IP, err error) {
	ip4 := n.IP.To4()
	if ip4 == nil {
		return nil, nil, errors.New("only IPv4 networks are supported")
	}
	mask := n.Mask
	first = ip4.Mask(mask)
	last = make(net.IP, 4)
	for i := range ip4 {
		last[i] = ip4[i] | ^mask[i]
	}
	return first, last, nil
}

// CookieError signals that the peer demanded a COOKIE notify payload
// before it will proceed; the initiator must resend IKE_SA_INIT carrying
// the cookie bytes. MissingCookieError is declared alongside it; no code
// in this package returns it.
type CookieError struct {
	Cookie []byte
}

func (CookieError) Error() string { return "peer requires a cookie" }

var MissingCookieError = errors.New("cookie required")
