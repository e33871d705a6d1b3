package user

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode"

	apperrors "github.com/louisbranch/gatehouse/internal/platform/errors"
	"github.com/louisbranch/gatehouse/internal/platform/id"
	"golang.org/x/net/idna"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrInvalidUsername indicates a username that does not match the required format.
	ErrInvalidUsername = apperrors.New(apperrors.CodeInvalidArgument, "username must be 3-32 lowercase alphanumeric, dot, dash, or underscore characters")
	// ErrInvalidEmail indicates an email address that cannot be parsed.
	ErrInvalidEmail = apperrors.New(apperrors.CodeInvalidArgument, "invalid email address")

	usernamePattern = regexp.MustCompile(`^[a-z0-9_.\-]{3,32}$`)
	usernameInvalid = regexp.MustCompile(`[^a-z0-9_.\-]+`)
)

const (
	// GuestPrefix starts every guest username.
	GuestPrefix = "guest"

	maxBaseLength = 20
	fallbackBase  = "user"
)

// Theme is a UI theme preference.
type Theme string

const (
	ThemeSystem Theme = "system"
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
)

// Contact holds optional postal and contact fields.
type Contact struct {
	AddressLine string
	City        string
	PostalCode  string
	Country     string
	Phone       string
}

// User represents an authenticated identity record.
type User struct {
	ID              string
	Username        string
	Email           string
	EmailVerifiedAt *time.Time
	AvatarURL       string
	IsAdmin         bool
	IsSuperadmin    bool
	// Guest marks an anonymous user created by the guest bootstrapper. It is
	// cleared once the user attaches an email.
	Guest           bool
	Theme           Theme
	Contact         Contact
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EmailVerified reports whether the user's current email has been verified.
func (u User) EmailVerified() bool {
	return u.Email != "" && u.EmailVerifiedAt != nil
}

// IsGuest reports whether the user is still an anonymous guest.
func (u User) IsGuest() bool {
	return u.Guest
}

// CreateUserInput describes the metadata needed to create a user.
type CreateUserInput struct {
	Username      string
	Email         string
	EmailVerified bool
	AvatarURL     string
	Guest         bool
}

// CreateUser creates a user from validated input. Email may be blank for
// wallet and guest identities.
func CreateUser(input CreateUserInput, now func() time.Time, idGenerator func() (string, error)) (User, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	username := strings.ToLower(strings.TrimSpace(input.Username))
	if err := ValidateUsername(username); err != nil {
		return User{}, err
	}
	email := ""
	if strings.TrimSpace(input.Email) != "" {
		normalized, err := NormalizeEmail(input.Email)
		if err != nil {
			return User{}, err
		}
		email = normalized
	}

	userID, err := idGenerator()
	if err != nil {
		return User{}, fmt.Errorf("generate user id: %w", err)
	}

	createdAt := now().UTC()
	created := User{
		ID:        userID,
		Username:  username,
		Email:     email,
		AvatarURL: strings.TrimSpace(input.AvatarURL),
		Guest:     input.Guest && email == "",
		Theme:     ThemeSystem,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if email != "" && input.EmailVerified {
		verifiedAt := createdAt
		created.EmailVerifiedAt = &verifiedAt
	}
	return created, nil
}

// ValidateUsername enforces canonical username constraints.
func ValidateUsername(s string) error {
	if !usernamePattern.MatchString(s) {
		return ErrInvalidUsername
	}
	return nil
}

// NormalizeEmail parses raw, lowercases it and converts the domain to its
// ASCII form so that lookups compare equal across encodings.
func NormalizeEmail(raw string) (string, error) {
	parsed, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", ErrInvalidEmail
	}
	local, domain, ok := strings.Cut(parsed.Address, "@")
	if !ok || local == "" || domain == "" {
		return "", ErrInvalidEmail
	}
	asciiDomain, err := idna.Lookup.ToASCII(domain)
	if err != nil {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(local + "@" + asciiDomain), nil
}

// UsernameBase derives a username stem from a display name or email address.
// Accents are stripped, the result is lowercased and characters outside the
// username alphabet collapse to underscores.
func UsernameBase(seed string) string {
	seed = strings.TrimSpace(seed)
	if local, _, ok := strings.Cut(seed, "@"); ok {
		seed = local
	}
	folded, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), seed)
	if err != nil {
		folded = seed
	}
	base := usernameInvalid.ReplaceAllString(cases.Lower(language.Und).String(folded), "_")
	base = strings.Trim(base, "_.-")
	if len(base) > maxBaseLength {
		base = strings.TrimRight(base[:maxBaseLength], "_.-")
	}
	if len(base) < 3 {
		return fallbackBase
	}
	return base
}

// UsernameCandidate returns the probe for attempt n: the bare base first,
// then base_1, base_2, and so on.
func UsernameCandidate(base string, attempt int) string {
	if attempt <= 0 {
		return base
	}
	return fmt.Sprintf("%s_%d", base, attempt)
}

// RandomUsername appends a random suffix to base.
func RandomUsername(base string, suffix func() (string, error)) (string, error) {
	if suffix == nil {
		suffix = randomSuffix
	}
	value, err := suffix()
	if err != nil {
		return "", fmt.Errorf("generate username suffix: %w", err)
	}
	return base + "_" + value, nil
}

// GuestUsername returns a randomly suffixed guest name.
func GuestUsername(suffix func() (string, error)) (string, error) {
	return RandomUsername(GuestPrefix, suffix)
}

func randomSuffix() (string, error) {
	value, err := id.NewID()
	if err != nil {
		return "", err
	}
	return value[:8], nil
}
