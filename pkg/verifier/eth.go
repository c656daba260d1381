package verifier

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

// ErrMalformedSignature is returned for signatures that are not 65-byte r||s||v.
var ErrMalformedSignature = errors.New("malformed signature")

func keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// PersonalMessageHash returns the EIP-191 "personal_sign" digest of text.
func PersonalMessageHash(text string) []byte {
	prefix := "\x19Ethereum Signed Message:\n" + strconv.Itoa(len(text))
	return keccak256([]byte(prefix), []byte(text))
}

// Address derives the EIP-55 checksummed address of a public key.
func Address(pub *secp256k1.PublicKey) string {
	raw := pub.SerializeUncompressed()
	return checksum(keccak256(raw[1:])[12:])
}

func checksum(addr []byte) string {
	lower := hex.EncodeToString(addr)
	hash := hex.EncodeToString(keccak256([]byte(lower)))
	out := []byte(lower)
	for i, c := range out {
		if c >= 'a' && c <= 'f' && hash[i] >= '8' {
			out[i] = c - 'a' + 'A'
		}
	}
	return "0x" + string(out)
}

// RecoverAddress recovers the address that produced an Ethereum-style
// personal-message signature over text. The signature is hex r||s||v where v
// is 27/28 or 0/1.
func RecoverAddress(text, signature string) (string, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(signature), "0x"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	if len(sig) != 65 {
		return "", fmt.Errorf("%w: length %d", ErrMalformedSignature, len(sig))
	}
	v := sig[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return "", fmt.Errorf("%w: recovery id %d", ErrMalformedSignature, sig[64])
	}

	// Compact form expected by the recovery routine: [27+v] || r || s.
	compact := make([]byte, 65)
	compact[0] = 27 + v
	copy(compact[1:], sig[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, PersonalMessageHash(text))
	if err != nil {
		return "", fmt.Errorf("signature recovery failed: %w", err)
	}
	return Address(pub), nil
}
