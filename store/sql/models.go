package sqlstore

import (
	"strings"
	"time"

	"github.com/socivio/connections/core"
	"github.com/uptrace/bun"
)

type userCredentialRecord struct {
	bun.BaseModel `bun:"table:user_credentials,alias:uc"`

	ID                string    `bun:"id,pk"`
	UserID            int64     `bun:"user_id,notnull"`
	Platform          string    `bun:"platform,notnull"`
	ExternalAccountID string    `bun:"external_account_id,notnull"`
	AccessToken       string    `bun:"access_token,notnull"`
	RefreshToken      string    `bun:"refresh_token"`
	ExpiresAt         time.Time `bun:"expires_at,notnull"`
	CreatedAt         time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *userCredentialRecord) toDomain() core.Credential {
	if r == nil {
		return core.Credential{}
	}
	return core.Credential{
		UserID:            r.UserID,
		Platform:          core.Platform(strings.TrimSpace(r.Platform)),
		ExternalAccountID: strings.TrimSpace(r.ExternalAccountID),
		AccessToken:       r.AccessToken,
		RefreshToken:      r.RefreshToken,
		ExpiresAt:         r.ExpiresAt.UTC(),
		CreatedAt:         r.CreatedAt.UTC(),
	}
}
