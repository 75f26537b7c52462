package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/socivio/connections/core"
	"github.com/uptrace/bun"
)

// CredentialStore persists credentials keyed by the
// (user, platform, external account) triple. One row per triple: the
// upsert rewrites the existing row in place instead of versioning.
type CredentialStore struct {
	db   *bun.DB
	repo repository.Repository[*userCredentialRecord]
}

// Upsert writes the credential for its triple, creating the row on
// first connect and overwriting it on re-connect or renewal. The
// select-then-write pair runs in one transaction so concurrent writers
// for the same triple resolve last-writer-wins without duplicating the
// row.
func (s *CredentialStore) Upsert(ctx context.Context, in core.UpsertCredentialInput) (core.Credential, error) {
	if s == nil || s.repo == nil || s.db == nil {
		return core.Credential{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	externalAccountID := strings.TrimSpace(in.ExternalAccountID)
	key := core.CredentialKey{
		UserID:            in.UserID,
		Platform:          in.Platform,
		ExternalAccountID: externalAccountID,
	}
	if err := key.Validate(); err != nil {
		return core.Credential{}, err
	}
	if strings.TrimSpace(in.AccessToken) == "" {
		return core.Credential{}, fmt.Errorf("sqlstore: access token is required")
	}

	now := time.Now().UTC()
	var saved core.Credential
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := &userCredentialRecord{}
		findErr := tx.NewSelect().
			Model(existing).
			Where("?TableAlias.user_id = ?", in.UserID).
			Where("?TableAlias.platform = ?", string(in.Platform)).
			Where("?TableAlias.external_account_id = ?", externalAccountID).
			Limit(1).
			Scan(ctx)
		if findErr != nil && !errors.Is(findErr, sql.ErrNoRows) {
			return findErr
		}

		if findErr == nil {
			existing.AccessToken = in.AccessToken
			existing.RefreshToken = in.RefreshToken
			existing.ExpiresAt = in.ExpiresAt.UTC()
			existing.UpdatedAt = now
			if _, updateErr := tx.NewUpdate().
				Model(existing).
				Column("access_token", "refresh_token", "expires_at", "updated_at").
				WherePK().
				Exec(ctx); updateErr != nil {
				return updateErr
			}
			saved = existing.toDomain()
			return nil
		}

		record := &userCredentialRecord{
			ID:                uuid.New().String(),
			UserID:            in.UserID,
			Platform:          string(in.Platform),
			ExternalAccountID: externalAccountID,
			AccessToken:       in.AccessToken,
			RefreshToken:      in.RefreshToken,
			ExpiresAt:         in.ExpiresAt.UTC(),
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		inserted, createErr := s.repo.CreateTx(ctx, tx, record)
		if createErr != nil {
			return createErr
		}
		saved = inserted.toDomain()
		return nil
	})
	if err != nil {
		return core.Credential{}, err
	}
	return saved, nil
}

// Find returns the stored credentials matching the query in creation
// order. An empty result is returned as-is; promoting it to an error is
// the caller's call.
func (s *CredentialStore) Find(ctx context.Context, query core.CredentialQuery) ([]core.Credential, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: credential store is not configured")
	}
	if query.UserID <= 0 {
		return nil, fmt.Errorf("sqlstore: user id is required")
	}

	criteria := []repository.SelectCriteria{
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.user_id = ?", query.UserID)
		}),
	}
	if strings.TrimSpace(string(query.Platform)) != "" {
		criteria = append(criteria, repository.SelectBy("platform", "=", string(query.Platform)))
	}
	if accountID := strings.TrimSpace(query.ExternalAccountID); accountID != "" {
		criteria = append(criteria, repository.SelectBy("external_account_id", "=", accountID))
	}
	criteria = append(criteria, repository.OrderBy("created_at ASC"))

	records, _, err := s.repo.List(ctx, criteria...)
	if err != nil {
		return nil, err
	}

	credentials := make([]core.Credential, 0, len(records))
	for _, record := range records {
		credentials = append(credentials, record.toDomain())
	}
	return credentials, nil
}

// DeleteAllForUser removes every credential row the user holds across
// all platforms and reports how many went away. Zero is a valid
// outcome, not an error.
func (s *CredentialStore) DeleteAllForUser(ctx context.Context, userID int64) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: credential store is not configured")
	}
	if userID <= 0 {
		return 0, fmt.Errorf("sqlstore: user id is required")
	}

	result, err := s.db.NewDelete().
		Model((*userCredentialRecord)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
