package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"

	"github.com/dgryski/go-camellia"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/msgboxio/ike/protocol"
)

// Must returm an interface
// Interface can be either cipher.BlockMode or cipher.Stream
type cipherFunc func(key, iv []byte, isRead bool) interface{}

func (cipherFunc) MarshalJSON() ([]byte, error) { return []byte("{}"), nil }

// TODO - check if the parameters are valid
func cipherTransform(cipherId uint16, keyLen int, cipher *simpleCipher) (*simpleCipher, bool) {
	blockSize, cipherFunc, ok := _cipherTransform(cipherId)
	if !ok {
		return nil, false
	}
	if cipher == nil {
		cipher = &simpleCipher{}
	}
	cipher.keyLen = keyLen
	cipher.blockLen = blockSize
	cipher.ivLen = blockSize
	cipher.cipherFunc = cipherFunc
	cipher.EncrTransformId = protocol.EncrTransformId(cipherId)
	return cipher, true
}

func _cipherTransform(cipherId uint16) (int, cipherFunc, bool) {
	switch protocol.EncrTransformId(cipherId) {
	case protocol.ENCR_CAMELLIA_CBC:
		return camellia.BlockSize, cipherCamellia, true
	case protocol.ENCR_AES_CBC:
		return aes.BlockSize, cipherAES, true
	case protocol.ENCR_NULL:
		return 0, cipherNull, true
	default:
		return 0, nil, false
	}
}

// Cipher interface implementation

type simpleCipher struct {
	// macLen is the on-wire truncated integrity checksum length; macKeyLen
	// is the length of the SK_a key this algorithm consumes (not always
	// equal to macLen - e.g. AES-XCBC-96 truncates a 16-byte output to 12).
	macLen, macKeyLen int
	macFunc

	keyLen, ivLen, blockLen int
	cipherFunc

	protocol.EncrTransformId
	protocol.AuthTransformId
}

// EncryptedLen implements protocol.Cipher: IV, padded ciphertext (at
// least one pad byte), and the truncated MAC.
func (cs *simpleCipher) EncryptedLen(plaintextLen int) int {
	padded := plaintextLen + (cs.blockLen - plaintextLen%cs.blockLen)
	return cs.ivLen + padded + cs.macLen
}

func (cs *simpleCipher) String() string {
	return cs.EncrTransformId.String() + "+" + cs.AuthTransformId.String()
}

func (cs *simpleCipher) Overhead(clear []byte) int {
	return cs.blockLen - len(clear)%cs.blockLen + cs.macLen + cs.ivLen
}
func (cs *simpleCipher) VerifyDecrypt(ike, skA, skE []byte, l log.Logger) (dec []byte, err error) {
	level.Debug(l).Log(
		"msg", "simple verify&decrypt",
		"Clear", hex.Dump(ike), "SkA", hex.Dump(skA), "SkE", hex.Dump(skE))
	// MAC-then-decrypt
	if err = verifyMac(skA, ike, cs.macLen, cs.macFunc); err != nil {
		return
	}
	b := ike[protocol.IKE_HEADER_LEN:]
	dec, err = decrypt(b[protocol.PAYLOAD_HEADER_LENGTH:len(b)-cs.macLen], skE, cs.ivLen, cs.cipherFunc, l)
	return
}

func (cs *simpleCipher) EncryptMac(headers, payload, skA, skE []byte, l log.Logger) (b []byte, err error) {
	// encrypt-then-MAC
	encr, err := encrypt(payload, skE, cs.ivLen, cs.cipherFunc, l)
	if err != nil {
		return
	}
	data := append(headers, encr...)
	mac := cs.macFunc(skA, data)
	b = append(data, mac...)
	level.Debug(l).Log(
		"msg", "simple encrypt&mac",
		"Mac", hex.Dump(mac), "SkA", hex.Dump(skA), "SkE", hex.Dump(skE))
	return
}

// verifyMac checks the trailing truncated integrity checksum on ike
// (covering everything preceding it) against a freshly computed one,
// in constant time.
func verifyMac(skA, ike []byte, macLen int, mf macFunc) error {
	if len(ike) < macLen {
		return errors.New("message too short to carry a checksum")
	}
	split := len(ike) - macLen
	want := ike[split:]
	got := mf(skA, ike[:split])
	if subtle.ConstantTimeCompare(want, got) != 1 {
		return protocol.ErrF(protocol.ERR_AUTHENTICATION_FAILED, "integrity check failed")
	}
	return nil
}

// cipherFunc Implementations

func cipherAES(key, iv []byte, isRead bool) interface{} {
	block, _ := aes.NewCipher(key)
	if isRead {
		return cipher.NewCBCDecrypter(block, iv)
	}
	return cipher.NewCBCEncrypter(block, iv)
}

func cipherCamellia(key, iv []byte, isRead bool) interface{} {
	block, _ := camellia.New(key)
	if isRead {
		return cipher.NewCBCDecrypter(block, iv)
	}
	return cipher.NewCBCEncrypter(block, iv)
}

// TODO - this needs a proper do nothing implementation
func cipherNull([]byte, []byte, bool) interface{} { return nil }

// decryption & encryption routines

func decrypt(b, key []byte, ivLen int, cipherFn cipherFunc, l log.Logger) (dec []byte, err error) {
	iv := b[0:ivLen]
	ciphertext := b[ivLen:]
	// block ciphers only yet
	mode := cipherFn(key, iv, true)
	if mode == nil {
		// null transform
		return b, nil
	}
	block := mode.(cipher.BlockMode)
	// CBC mode always works in whole blocks.
	if len(ciphertext)%block.BlockSize() != 0 {
		err = errors.New("ciphertext is not a multiple of the block size")
		return
	}
	clear := make([]byte, len(ciphertext))
	block.CryptBlocks(clear, ciphertext)
	padlen := clear[len(clear)-1] + 1 // padlen byte itself
	if int(padlen) > block.BlockSize() {
		err = errors.New("pad length is larger than block size")
		return
	}
	dec = clear[:len(clear)-int(padlen)]
	level.Debug(l).Log(
		"Pad ", padlen,
		"Clear", hex.Dump(clear),
		"Cyp", hex.Dump(ciphertext),
		"IV", hex.Dump(iv))
	return
}

func encrypt(clear, key []byte, ivLen int, cipherFn cipherFunc, l log.Logger) (b []byte, err error) {
	iv := make([]byte, ivLen)
	if _, err = rand.Read(iv); err != nil {
		return
	}
	mode := cipherFn(key, iv, false)
	if mode == nil {
		// null transform
		return clear, nil
	}
	// TODO - block mode supported only
	block := mode.(cipher.BlockMode)
	// CBC mode always works in whole blocks.
	// (b - (length % b)) % b
	// pl := (block.BlockSize() - (len(clear) % block.BlockSize())) % block.BlockSize()
	padlen := block.BlockSize() - len(clear)%block.BlockSize()
	if padlen != 0 {
		pad := make([]byte, padlen)
		pad[padlen-1] = byte(padlen - 1)
		clear = append(clear, pad...)
	}
	ciphertext := make([]byte, len(clear))
	block.CryptBlocks(ciphertext, clear)
	b = append(iv, ciphertext...)
	level.Debug(l).Log(
		"Pad ", padlen,
		"Clear", hex.Dump(clear),
		"Cyp", hex.Dump(ciphertext),
		"IV", hex.Dump(iv))
	return
}
