package query

import (
	"fmt"

	"github.com/socivio/connections/core"
)

const (
	TypeGetCredentials = "tokens.query.credentials.get"
	TypeListPlatforms  = "tokens.query.platforms.list"
)

type GetCredentialsMessage struct {
	Query core.CredentialQuery
}

func (GetCredentialsMessage) Type() string { return TypeGetCredentials }

func (m GetCredentialsMessage) Validate() error {
	if m.Query.UserID <= 0 {
		return fmt.Errorf("query: user id is required")
	}
	if m.Query.Platform != "" {
		if err := m.Query.Platform.Validate(); err != nil {
			return err
		}
	}
	return nil
}

type ListPlatformsMessage struct{}

func (ListPlatformsMessage) Type() string { return TypeListPlatforms }

func (ListPlatformsMessage) Validate() error { return nil }
