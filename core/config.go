package core

import (
	"fmt"
	"strings"
)

// PlatformCredentials holds the confidential-client settings for one
// provider. The values are injected into the provider at construction;
// core logic never reads them from ambient state.
type PlatformCredentials struct {
	ClientID     string `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret string `koanf:"client_secret" mapstructure:"client_secret"`
	RedirectURI  string `koanf:"redirect_uri" mapstructure:"redirect_uri"`
}

func (c PlatformCredentials) IsZero() bool {
	return strings.TrimSpace(c.ClientID) == "" &&
		strings.TrimSpace(c.ClientSecret) == "" &&
		strings.TrimSpace(c.RedirectURI) == ""
}

type Config struct {
	ServiceName string              `koanf:"service_name" mapstructure:"service_name"`
	YouTube     PlatformCredentials `koanf:"youtube" mapstructure:"youtube"`
	Facebook    PlatformCredentials `koanf:"facebook" mapstructure:"facebook"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "connections",
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	return nil
}

func (c Config) Platform(platform Platform) (PlatformCredentials, error) {
	switch platform {
	case PlatformYouTube:
		return c.YouTube, nil
	case PlatformFacebook:
		return c.Facebook, nil
	}
	return PlatformCredentials{}, fmt.Errorf("%w: %q", ErrInvalidPlatform, platform)
}
