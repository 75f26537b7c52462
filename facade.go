package connections

import (
	"fmt"

	tokenscommand "github.com/socivio/connections/command"
	tokensquery "github.com/socivio/connections/query"
)

// CommandQueryService is what the facade needs from the lifecycle
// service: the write operations plus the renewing read path.
type CommandQueryService interface {
	tokenscommand.MutatingService
	tokensquery.CredentialReader
}

type Commands struct {
	BeginConnect *tokenscommand.BeginConnectCommand
	IngestGrant  *tokenscommand.IngestGrantCommand
	Renew        *tokenscommand.RenewCommand
	RevokeAll    *tokenscommand.RevokeAllCommand
}

type Queries struct {
	GetCredentials *tokensquery.GetCredentialsQuery
	ListPlatforms  *tokensquery.ListPlatformsQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("connections: command/query service is required")
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		BeginConnect: tokenscommand.NewBeginConnectCommand(service),
		IngestGrant:  tokenscommand.NewIngestGrantCommand(service),
		Renew:        tokenscommand.NewRenewCommand(service),
		RevokeAll:    tokenscommand.NewRevokeAllCommand(service),
	}
	facade.queries = Queries{
		GetCredentials: tokensquery.NewGetCredentialsQuery(service),
		ListPlatforms:  tokensquery.NewListPlatformsQuery(resolvePlatformReader(service)),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

func resolvePlatformReader(service CommandQueryService) tokensquery.PlatformReader {
	if reader, ok := service.(tokensquery.PlatformReader); ok {
		return reader
	}
	provider, ok := service.(interface{ Registry() Registry })
	if !ok {
		return nil
	}
	registry := provider.Registry()
	if registry == nil {
		return nil
	}
	return registry
}
