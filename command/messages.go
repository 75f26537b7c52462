package command

import (
	"fmt"
	"strings"

	"github.com/socivio/connections/core"
)

const (
	TypeBeginConnect = "tokens.command.connect.begin"
	TypeIngestGrant  = "tokens.command.grant.ingest"
	TypeRenew        = "tokens.command.credential.renew"
	TypeRevokeAll    = "tokens.command.user.revoke_all"
)

type BeginConnectMessage struct {
	Request core.BeginAuthRequest
}

func (BeginConnectMessage) Type() string { return TypeBeginConnect }

func (m BeginConnectMessage) Validate() error {
	if m.Request.UserID <= 0 {
		return fmt.Errorf("command: user id is required")
	}
	if err := m.Request.Platform.Validate(); err != nil {
		return err
	}
	return nil
}

type IngestGrantMessage struct {
	Request core.IngestGrantRequest
}

func (IngestGrantMessage) Type() string { return TypeIngestGrant }

func (m IngestGrantMessage) Validate() error {
	if m.Request.UserID <= 0 {
		return fmt.Errorf("command: user id is required")
	}
	if err := m.Request.Platform.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(m.Request.Code) == "" {
		return fmt.Errorf("command: authorization code is required")
	}
	return nil
}

type RenewMessage struct {
	Request core.RenewRequest
}

func (RenewMessage) Type() string { return TypeRenew }

func (m RenewMessage) Validate() error {
	return m.Request.Key.Validate()
}

type RevokeAllMessage struct {
	UserID int64
}

func (RevokeAllMessage) Type() string { return TypeRevokeAll }

func (m RevokeAllMessage) Validate() error {
	if m.UserID <= 0 {
		return fmt.Errorf("command: user id is required")
	}
	return nil
}
