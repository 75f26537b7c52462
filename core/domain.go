package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidPlatform = errors.New("core: invalid platform")
	ErrInvalidUserID   = errors.New("core: invalid user id")
)

// Platform identifies one of the supported external social-media platforms.
type Platform string

const (
	PlatformYouTube  Platform = "youtube"
	PlatformFacebook Platform = "facebook"
)

func ParsePlatform(value string) (Platform, error) {
	normalized := Platform(strings.TrimSpace(strings.ToLower(value)))
	switch normalized {
	case PlatformYouTube, PlatformFacebook:
		return normalized, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPlatform, value)
}

func (p Platform) Validate() error {
	_, err := ParsePlatform(string(p))
	return err
}

func (p Platform) String() string {
	return string(p)
}

// Credential is the stored access/refresh-token pair for one
// (user, platform, external account) triple. Records are snapshots:
// callers never mutate one they were handed, all mutation goes
// through the store upsert.
type Credential struct {
	UserID            int64
	Platform          Platform
	ExternalAccountID string
	AccessToken       string
	RefreshToken      string
	ExpiresAt         time.Time
	CreatedAt         time.Time
}

func (c Credential) Key() CredentialKey {
	return CredentialKey{
		UserID:            c.UserID,
		Platform:          c.Platform,
		ExternalAccountID: c.ExternalAccountID,
	}
}

// CredentialKey is the unique identity triple of a credential record.
type CredentialKey struct {
	UserID            int64
	Platform          Platform
	ExternalAccountID string
}

func (k CredentialKey) Validate() error {
	if k.UserID <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidUserID, k.UserID)
	}
	if err := k.Platform.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(k.ExternalAccountID) == "" {
		return fmt.Errorf("core: external account id is required")
	}
	return nil
}

func (k CredentialKey) String() string {
	return fmt.Sprintf("%d/%s/%s", k.UserID, k.Platform, k.ExternalAccountID)
}

// Grant is the outcome of a provider token exchange: the credential
// payload plus the external account identity it authenticates as.
type Grant struct {
	AccessToken       string
	RefreshToken      string
	ExpiresAt         time.Time
	ExternalAccountID string
}

func (g Grant) Validate() error {
	if strings.TrimSpace(g.AccessToken) == "" {
		return fmt.Errorf("core: grant access token is required")
	}
	if g.ExpiresAt.IsZero() {
		return fmt.Errorf("core: grant expiry is required")
	}
	if strings.TrimSpace(g.ExternalAccountID) == "" {
		return fmt.Errorf("core: grant external account id is required")
	}
	return nil
}
