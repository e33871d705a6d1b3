package wallet

import (
	"bytes"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	apperrors "github.com/louisbranch/gatehouse/internal/platform/errors"
)

// SignatureLength is r || s || v.
const SignatureLength = 65

var (
	// ErrMalformedSignature indicates a signature that cannot be decoded.
	ErrMalformedSignature = apperrors.New(apperrors.CodeInvalidArgument, "malformed signature")
	// ErrInvalidSignature indicates a signature from a different key.
	ErrInvalidSignature = apperrors.New(apperrors.CodeInvalidSignature, "signature does not match address")
)

// HashMessage returns the EIP-191 personal-sign digest of message.
func HashMessage(message []byte) []byte {
	prefix := "\x19Ethereum Signed Message:\n" + strconv.Itoa(len(message))
	return keccak256([]byte(prefix), message)
}

// DecodeSignature parses a hex signature with or without a 0x prefix.
func DecodeSignature(raw string) ([]byte, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	signature, err := hex.DecodeString(trimmed)
	if err != nil || len(signature) != SignatureLength {
		return nil, ErrMalformedSignature
	}
	return signature, nil
}

// RecoverAddress returns the checksummed address that produced signature over
// message.
func RecoverAddress(message, signature []byte) (string, error) {
	if len(signature) != SignatureLength {
		return "", ErrMalformedSignature
	}
	v := signature[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return "", ErrMalformedSignature
	}

	// btcec expects the recovery byte first, offset by 27 for uncompressed keys.
	compact := make([]byte, SignatureLength)
	compact[0] = 27 + v
	copy(compact[1:], signature[:64])

	publicKey, _, err := ecdsa.RecoverCompact(compact, HashMessage(message))
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInvalidSignature, "signature recovery failed", err)
	}
	uncompressed := publicKey.SerializeUncompressed()
	return checksum(keccak256(uncompressed[1:])[12:]), nil
}

// Verify reports whether signature over message was produced by the key
// behind claimedAddress.
func Verify(claimedAddress string, message, signature []byte) bool {
	claimed, err := parseAddress(claimedAddress)
	if err != nil {
		return false
	}
	recovered, err := RecoverAddress(message, signature)
	if err != nil {
		return false
	}
	recoveredBytes, err := parseAddress(recovered)
	if err != nil {
		return false
	}
	return bytes.Equal(claimed, recoveredBytes)
}
