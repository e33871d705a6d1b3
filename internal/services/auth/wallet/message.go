package wallet

import (
	"strconv"
	"strings"
	"time"

	apperrors "github.com/louisbranch/gatehouse/internal/platform/errors"
)

// DefaultMaxAge bounds how old a signed login message may be.
const DefaultMaxAge = 10 * time.Minute

// clockSkew tolerates client clocks running slightly ahead.
const clockSkew = time.Minute

var (
	// ErrMalformedMessage indicates a message that is not a login message.
	ErrMalformedMessage = apperrors.New(apperrors.CodeInvalidArgument, "malformed login message")
	// ErrMessageExpired indicates a message issued outside the accepted window.
	ErrMessageExpired = apperrors.New(apperrors.CodeExpired, "login message expired")
	// ErrAddressMismatch indicates a message naming a different address than
	// the one submitted.
	ErrAddressMismatch = apperrors.New(apperrors.CodeInvalidSignature, "message address does not match")
)

const (
	headerSuffix  = " wants you to sign in with your Ethereum account:"
	chainIDPrefix = "Chain ID: "
	issuedPrefix  = "Issued At: "
)

// LoginMessage is the text a wallet signs to log in.
type LoginMessage struct {
	Domain   string
	Address  string
	ChainID  int64
	IssuedAt time.Time
}

// String renders the message exactly as it must be signed.
func (m LoginMessage) String() string {
	var b strings.Builder
	b.WriteString(m.Domain + headerSuffix + "\n")
	b.WriteString(m.Address + "\n\n")
	b.WriteString("Sign in to " + m.Domain + ".\n\n")
	b.WriteString(chainIDPrefix + strconv.FormatInt(m.ChainID, 10) + "\n")
	b.WriteString(issuedPrefix + m.IssuedAt.UTC().Format(time.RFC3339))
	return b.String()
}

// NewLoginMessage builds a message for address issued at now.
func NewLoginMessage(domain, address string, chainID int64, now time.Time) (LoginMessage, error) {
	checksummed, err := ChecksumAddress(address)
	if err != nil {
		return LoginMessage{}, err
	}
	if strings.TrimSpace(domain) == "" {
		return LoginMessage{}, apperrors.New(apperrors.CodeInvalidArgument, "domain is required")
	}
	return LoginMessage{
		Domain:   domain,
		Address:  checksummed,
		ChainID:  chainID,
		IssuedAt: now.UTC().Truncate(time.Second),
	}, nil
}

// ParseLoginMessage reads the fields back out of a signed message.
func ParseLoginMessage(text string) (LoginMessage, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if len(lines) < 2 || !strings.HasSuffix(lines[0], headerSuffix) {
		return LoginMessage{}, ErrMalformedMessage
	}
	msg := LoginMessage{
		Domain:  strings.TrimSuffix(lines[0], headerSuffix),
		Address: strings.TrimSpace(lines[1]),
	}
	var sawIssued bool
	for _, line := range lines[2:] {
		switch {
		case strings.HasPrefix(line, chainIDPrefix):
			chainID, err := strconv.ParseInt(strings.TrimPrefix(line, chainIDPrefix), 10, 64)
			if err != nil {
				return LoginMessage{}, ErrMalformedMessage
			}
			msg.ChainID = chainID
		case strings.HasPrefix(line, issuedPrefix):
			issuedAt, err := time.Parse(time.RFC3339, strings.TrimPrefix(line, issuedPrefix))
			if err != nil {
				return LoginMessage{}, ErrMalformedMessage
			}
			msg.IssuedAt = issuedAt
			sawIssued = true
		}
	}
	if !sawIssued || msg.Domain == "" {
		return LoginMessage{}, ErrMalformedMessage
	}
	return msg, nil
}

// Verifier checks login submissions against a clock and message age limit.
type Verifier struct {
	maxAge time.Duration
	clock  func() time.Time
}

// NewVerifier builds a Verifier. A non-positive maxAge uses DefaultMaxAge.
func NewVerifier(maxAge time.Duration, clock func() time.Time) *Verifier {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if clock == nil {
		clock = time.Now
	}
	return &Verifier{maxAge: maxAge, clock: clock}
}

// Message builds a fresh login message for address.
func (v *Verifier) Message(domain, address string, chainID int64) (LoginMessage, error) {
	return NewLoginMessage(domain, address, chainID, v.clock())
}

// VerifyLogin validates a signed login message and returns it with the
// address in lowercase storage form.
func (v *Verifier) VerifyLogin(claimedAddress, message, signatureHex string) (LoginMessage, error) {
	address, err := NormalizeAddress(claimedAddress)
	if err != nil {
		return LoginMessage{}, err
	}
	signature, err := DecodeSignature(signatureHex)
	if err != nil {
		return LoginMessage{}, err
	}
	parsed, err := ParseLoginMessage(message)
	if err != nil {
		return LoginMessage{}, err
	}
	messageAddress, err := NormalizeAddress(parsed.Address)
	if err != nil || messageAddress != address {
		return LoginMessage{}, ErrAddressMismatch
	}

	now := v.clock().UTC()
	if parsed.IssuedAt.Before(now.Add(-v.maxAge)) || parsed.IssuedAt.After(now.Add(clockSkew)) {
		return LoginMessage{}, apperrors.WithMetadata(apperrors.CodeExpired, ErrMessageExpired.Message,
			map[string]string{"issued_at": parsed.IssuedAt.Format(time.RFC3339)})
	}
	if !Verify(address, []byte(message), signature) {
		return LoginMessage{}, ErrInvalidSignature
	}
	parsed.Address = address
	return parsed, nil
}

