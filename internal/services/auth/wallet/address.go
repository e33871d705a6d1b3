package wallet

import (
	"encoding/hex"
	"strings"

	apperrors "github.com/louisbranch/gatehouse/internal/platform/errors"
	"golang.org/x/crypto/sha3"
)

// AddressLength is the byte length of an account address.
const AddressLength = 20

// ErrInvalidAddress indicates a string that is not a 20-byte hex address.
var ErrInvalidAddress = apperrors.New(apperrors.CodeInvalidArgument, "invalid wallet address")

func keccak256(data ...[]byte) []byte {
	hash := sha3.NewLegacyKeccak256()
	for _, chunk := range data {
		hash.Write(chunk)
	}
	return hash.Sum(nil)
}

func parseAddress(raw string) ([]byte, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	if len(trimmed) != AddressLength*2 {
		return nil, ErrInvalidAddress
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, ErrInvalidAddress
	}
	return decoded, nil
}

// NormalizeAddress returns the lowercase 0x-prefixed form used as the storage
// key.
func NormalizeAddress(raw string) (string, error) {
	decoded, err := parseAddress(raw)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(decoded), nil
}

// ChecksumAddress returns the EIP-55 mixed-case form of an address.
func ChecksumAddress(raw string) (string, error) {
	decoded, err := parseAddress(raw)
	if err != nil {
		return "", err
	}
	return checksum(decoded), nil
}

func checksum(address []byte) string {
	lower := hex.EncodeToString(address)
	hash := keccak256([]byte(lower))
	out := make([]byte, 0, len(lower)+2)
	out = append(out, '0', 'x')
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		if c >= 'a' && c <= 'f' {
			nibble := hash[i/2]
			if i%2 == 0 {
				nibble >>= 4
			}
			if nibble&0x0f >= 8 {
				c -= 'a' - 'A'
			}
		}
		out = append(out, c)
	}
	return string(out)
}
