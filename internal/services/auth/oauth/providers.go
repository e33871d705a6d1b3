package oauth

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/louisbranch/gatehouse/internal/platform/errors"
)

// UserInfo is the canonical profile every provider is normalised into.
type UserInfo struct {
	ID            string
	Email         string
	EmailVerified bool
	Name          string
	AvatarURL     string
}

// ProfileParser turns a provider userinfo payload into UserInfo.
type ProfileParser interface {
	ParseProfile(body []byte) (UserInfo, error)
}

// EmailParser is implemented by providers that expose verified addresses
// on a separate endpoint.
type EmailParser interface {
	ParseEmails(body []byte) (email string, verified bool, err error)
}

// ParserFor returns the profile parser for a provider id.
func ParserFor(providerID string) (ProfileParser, bool) {
	switch providerID {
	case ProviderGitHub:
		return githubProfile{}, true
	case ProviderGoogle:
		return googleProfile{}, true
	case ProviderDiscord:
		return discordProfile{}, true
	default:
		return nil, false
	}
}

func decodeProfile(body []byte, target any) error {
	if err := json.Unmarshal(body, target); err != nil {
		return apperrors.Wrap(apperrors.CodeDeserialization, "unexpected provider response", err)
	}
	return nil
}

func missingID() error {
	return apperrors.New(apperrors.CodeDeserialization, "provider profile has no id")
}

// githubProfile reads https://api.github.com/user. The numeric id is the
// stable key; login is the fallback display name.
type githubProfile struct{}

func (githubProfile) ParseProfile(body []byte) (UserInfo, error) {
	var payload struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := decodeProfile(body, &payload); err != nil {
		return UserInfo{}, err
	}
	if payload.ID == 0 {
		return UserInfo{}, missingID()
	}
	return UserInfo{
		ID:        strconv.FormatInt(payload.ID, 10),
		Email:     payload.Email,
		Name:      firstNonEmpty(payload.Name, payload.Login),
		AvatarURL: payload.AvatarURL,
	}, nil
}

// ParseEmails picks the primary verified address from /user/emails, or any
// verified one when no primary is verified.
func (githubProfile) ParseEmails(body []byte) (string, bool, error) {
	var entries []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := decodeProfile(body, &entries); err != nil {
		return "", false, err
	}
	fallback := ""
	for _, entry := range entries {
		if !entry.Verified {
			continue
		}
		if entry.Primary {
			return entry.Email, true, nil
		}
		if fallback == "" {
			fallback = entry.Email
		}
	}
	return fallback, fallback != "", nil
}

// googleProfile reads the v2 userinfo endpoint.
type googleProfile struct{}

func (googleProfile) ParseProfile(body []byte) (UserInfo, error) {
	var payload struct {
		ID            string `json:"id"`
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		VerifiedEmail *bool  `json:"verified_email"`
		EmailVerified *bool  `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := decodeProfile(body, &payload); err != nil {
		return UserInfo{}, err
	}
	userID := firstNonEmpty(payload.ID, payload.Sub)
	if userID == "" {
		return UserInfo{}, missingID()
	}
	verified := (payload.VerifiedEmail != nil && *payload.VerifiedEmail) ||
		(payload.EmailVerified != nil && *payload.EmailVerified)
	return UserInfo{
		ID:            userID,
		Email:         payload.Email,
		EmailVerified: verified && payload.Email != "",
		Name:          firstNonEmpty(payload.Name, payload.Email),
		AvatarURL:     payload.Picture,
	}, nil
}

const discordCDN = "https://cdn.discordapp.com"

// discordProfile reads /users/@me. Discord returns an avatar hash, not a URL.
type discordProfile struct{}

func (discordProfile) ParseProfile(body []byte) (UserInfo, error) {
	var payload struct {
		ID         string  `json:"id"`
		Username   string  `json:"username"`
		GlobalName *string `json:"global_name"`
		Avatar     *string `json:"avatar"`
		Email      *string `json:"email"`
		Verified   bool    `json:"verified"`
	}
	if err := decodeProfile(body, &payload); err != nil {
		return UserInfo{}, err
	}
	if payload.ID == "" {
		return UserInfo{}, missingID()
	}
	info := UserInfo{
		ID:        payload.ID,
		Name:      payload.Username,
		AvatarURL: discordAvatarURL(payload.ID, deref(payload.Avatar)),
	}
	if name := deref(payload.GlobalName); name != "" {
		info.Name = name
	}
	if email := deref(payload.Email); email != "" {
		info.Email = email
		info.EmailVerified = payload.Verified
	}
	return info, nil
}

func discordAvatarURL(userID, hash string) string {
	if hash != "" {
		ext := "png"
		if strings.HasPrefix(hash, "a_") {
			ext = "gif"
		}
		return fmt.Sprintf("%s/avatars/%s/%s.%s", discordCDN, userID, hash, ext)
	}
	index := uint64(0)
	if snowflake, err := strconv.ParseUint(userID, 10, 64); err == nil {
		index = (snowflake >> 22) % 6
	}
	return fmt.Sprintf("%s/embed/avatars/%d.png", discordCDN, index)
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
