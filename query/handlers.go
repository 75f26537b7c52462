package query

import (
	"context"

	"github.com/socivio/connections/core"
)

// CredentialReader is the read slice of the lifecycle service. The
// read path still renews stale tokens before returning them, so the
// query handler stays a thin adapter.
type CredentialReader interface {
	GetCredentials(ctx context.Context, query core.CredentialQuery) ([]core.Credential, error)
}

type PlatformReader interface {
	List() []core.Provider
}

type GetCredentialsQuery struct {
	reader CredentialReader
}

func NewGetCredentialsQuery(reader CredentialReader) *GetCredentialsQuery {
	return &GetCredentialsQuery{reader: reader}
}

func (q *GetCredentialsQuery) Query(ctx context.Context, msg GetCredentialsMessage) ([]core.Credential, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: credential reader is required")
	}
	return q.reader.GetCredentials(ctx, msg.Query)
}

type ListPlatformsQuery struct {
	reader PlatformReader
}

func NewListPlatformsQuery(reader PlatformReader) *ListPlatformsQuery {
	return &ListPlatformsQuery{reader: reader}
}

func (q *ListPlatformsQuery) Query(_ context.Context, _ ListPlatformsMessage) ([]core.Platform, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: platform reader is required")
	}
	providers := q.reader.List()
	platforms := make([]core.Platform, 0, len(providers))
	for _, provider := range providers {
		platforms = append(platforms, provider.Platform())
	}
	return platforms, nil
}
