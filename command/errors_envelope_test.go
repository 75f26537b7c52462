package command

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/socivio/connections/core"
)

func TestBeginConnectCommand_NilServiceReturnsRichError(t *testing.T) {
	var cmd *BeginConnectCommand
	err := cmd.Execute(context.Background(), BeginConnectMessage{})
	if err == nil {
		t.Fatalf("expected command dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
	if rich.TextCode != core.TokensErrorInternal {
		t.Fatalf("expected %q text code, got %q", core.TokensErrorInternal, rich.TextCode)
	}
}

func TestRevokeAllCommand_NilServiceReturnsRichError(t *testing.T) {
	var cmd *RevokeAllCommand
	err := cmd.Execute(context.Background(), RevokeAllMessage{UserID: 7})
	if err == nil {
		t.Fatalf("expected command dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
}
