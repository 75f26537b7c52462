package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[BeginConnectMessage] = (*BeginConnectCommand)(nil)
	_ gocmd.Commander[IngestGrantMessage]  = (*IngestGrantCommand)(nil)
	_ gocmd.Commander[RenewMessage]        = (*RenewCommand)(nil)
	_ gocmd.Commander[RevokeAllMessage]    = (*RevokeAllCommand)(nil)
)
