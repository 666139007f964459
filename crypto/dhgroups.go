package crypto

import (
	"crypto/rand"
	"math/big"

	"github.com/msgboxio/ike/protocol"
)

// DhGroup is one negotiable Diffie-Hellman group. The teacher's
// cipher_suites.go references a dhGroup type and a kexAlgoMap registry
// but never defines the MODP prime/generator constants anywhere in the
// retrieved sources - these are authored here from RFC 3526's published
// 1024-bit (group 2, originally RFC 2409 §6.2) and 2048-bit (group 14)
// MODP primes.
type DhGroup interface {
	// Length is the fixed width, in bytes, of public values and the
	// shared secret in this group.
	Length() int
	// NewKeyPair generates a private exponent and the corresponding
	// public value g^priv mod p, encoded to a fixed-width slice.
	NewKeyPair() (priv *big.Int, pub []byte, err error)
	// SharedSecret computes peerPublic^priv mod p, encoded fixed-width,
	// validating 1 < peerPublic < p-1 first.
	SharedSecret(priv *big.Int, peerPublic []byte) ([]byte, error)
}

type modpGroup struct {
	p *big.Int
	g *big.Int
}

func newModpGroup(primeHex string, generator int64) *modpGroup {
	p, ok := new(big.Int).SetString(primeHex, 16)
	if !ok {
		panic("crypto: invalid MODP prime constant")
	}
	return &modpGroup{p: p, g: big.NewInt(generator)}
}

func (g *modpGroup) Length() int { return (g.p.BitLen() + 7) / 8 }

func (g *modpGroup) generatePrivate() (*big.Int, error) {
	// A private exponent the width of the group is conservative and
	// matches what common IKE implementations use for MODP groups.
	max := new(big.Int).Sub(g.p, big.NewInt(2))
	priv, err := rand.Int(rand.Reader, max)
	if err != nil {
		return nil, err
	}
	return priv.Add(priv, big.NewInt(2)), nil
}

func (g *modpGroup) publicKey(priv *big.Int) []byte {
	pub := new(big.Int).Exp(g.g, priv, g.p)
	out := make([]byte, g.Length())
	pub.FillBytes(out)
	return out
}

func (g *modpGroup) NewKeyPair() (*big.Int, []byte, error) {
	priv, err := g.generatePrivate()
	if err != nil {
		return nil, nil, err
	}
	return priv, g.publicKey(priv), nil
}

func (g *modpGroup) SharedSecret(priv *big.Int, peerPublic []byte) ([]byte, error) {
	y := new(big.Int).SetBytes(peerPublic)
	one := big.NewInt(1)
	pMinus1 := new(big.Int).Sub(g.p, one)
	if y.Cmp(one) <= 0 || y.Cmp(pMinus1) >= 0 {
		return nil, protocol.ErrF(protocol.ERR_INVALID_KE_PAYLOAD, "peer public value out of range")
	}
	secret := new(big.Int).Exp(y, priv, g.p)
	out := make([]byte, g.Length())
	secret.FillBytes(out)
	return out, nil
}

// modp1024Hex is the 1024-bit MODP group (RFC 2409 §6.2 Second Oakley
// Group, renumbered MODP_1024 / group 2 by RFC 7296's IANA registry).
const modp1024Hex = "FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD" +
	"129024E088A67CC74020BBEA63B139B22514A08798E3404" +
	"DDEF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C" +
	"245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406" +
	"B7EDEE386BFB5A899FA5AE9F24117C4B1FE649286651ECE" +
	"65381FFFFFFFFFFFFFFFF"

// modp2048Hex is RFC 3526 §3's 2048-bit MODP Group (group 14). It shares
// modp1024Hex's prefix (every RFC 3526 group is built by extending the
// same digits-of-pi-derived bit pattern) then continues further before
// terminating in the same all-ones tail.
const modp2048Hex = "FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD" +
	"129024E088A67CC74020BBEA63B139B22514A08798E3404" +
	"DDEF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C" +
	"245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406" +
	"B7EDEE386BFB5A899FA5AE9F24117C4B1FE649286651ECE" +
	"45B3DC2007CB8A163BF0598DA48361C55D39A69163FA8FD" +
	"24CF5F83655D23DCA3AD961C62F356208552BB9ED529077" +
	"096966D670C354E4ABC9804F1746C08CA18217C32905E46" +
	"2E36CE3BE39E772C180E86039B2783A2EC07A28FB5C55DF" +
	"06F4C52C9DE2BCBF6955817183995497CEA956AE515D226" +
	"1898FA051015728E5A8AACAA68FFFFFFFFFFFFFFFF"

var (
	modp1024 = newModpGroup(modp1024Hex, 2)
	modp2048 = newModpGroup(modp2048Hex, 2)
)

var kexAlgoMap = map[protocol.DhTransformId]DhGroup{
	protocol.MODP_1024: modp1024,
	protocol.MODP_2048: modp2048,
}
