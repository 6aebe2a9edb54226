package domain

import (
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

// PublicKeySize is the byte length of an encoded ledger public key.
const PublicKeySize = len(types.Address{})

// EncodeAddress converts a raw public key into its checksummed base32 address.
func EncodeAddress(publicKey []byte) (string, error) {
	if len(publicKey) != PublicKeySize {
		return "", fmt.Errorf("%w: address must be %d bytes, got %d", ErrDecode, PublicKeySize, len(publicKey))
	}
	var addr types.Address
	copy(addr[:], publicKey)
	return addr.String(), nil
}

// IsValidAddress reports whether addr is a well-formed address with a matching checksum.
func IsValidAddress(addr string) bool {
	_, err := types.DecodeAddress(addr)
	return err == nil
}
