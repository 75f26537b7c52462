package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/socivio/connections/core"
)

var (
	_ gocmd.Querier[GetCredentialsMessage, []core.Credential] = (*GetCredentialsQuery)(nil)
	_ gocmd.Querier[ListPlatformsMessage, []core.Platform]    = (*ListPlatformsQuery)(nil)
)
