package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/socivio/connections/core"
)

// MutatingService is the slice of the lifecycle service commands write
// through.
type MutatingService interface {
	BeginConnect(ctx context.Context, req core.BeginAuthRequest) (core.BeginAuthResponse, error)
	IngestGrant(ctx context.Context, req core.IngestGrantRequest) (core.Credential, error)
	Renew(ctx context.Context, req core.RenewRequest) (core.Credential, error)
	RevokeAll(ctx context.Context, userID int64) (int64, error)
}

type BeginConnectCommand struct {
	service MutatingService
}

func NewBeginConnectCommand(service MutatingService) *BeginConnectCommand {
	return &BeginConnectCommand{service: service}
}

func (c *BeginConnectCommand) Execute(ctx context.Context, msg BeginConnectMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: connect service is required")
	}
	out, err := c.service.BeginConnect(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type IngestGrantCommand struct {
	service MutatingService
}

func NewIngestGrantCommand(service MutatingService) *IngestGrantCommand {
	return &IngestGrantCommand{service: service}
}

func (c *IngestGrantCommand) Execute(ctx context.Context, msg IngestGrantMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: grant service is required")
	}
	out, err := c.service.IngestGrant(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RenewCommand struct {
	service MutatingService
}

func NewRenewCommand(service MutatingService) *RenewCommand {
	return &RenewCommand{service: service}
}

func (c *RenewCommand) Execute(ctx context.Context, msg RenewMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: renew service is required")
	}
	out, err := c.service.Renew(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RevokeAllCommand struct {
	service MutatingService
}

func NewRevokeAllCommand(service MutatingService) *RevokeAllCommand {
	return &RevokeAllCommand{service: service}
}

func (c *RevokeAllCommand) Execute(ctx context.Context, msg RevokeAllMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: revoke service is required")
	}
	out, err := c.service.RevokeAll(ctx, msg.UserID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
