package query

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/socivio/connections/core"
)

func TestGetCredentialsQuery_NilReaderReturnsRichError(t *testing.T) {
	var handler *GetCredentialsQuery
	_, err := handler.Query(context.Background(), GetCredentialsMessage{})
	if err == nil {
		t.Fatalf("expected query dependency error")
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

func TestListPlatformsQuery_NilReaderReturnsRichError(t *testing.T) {
	var handler *ListPlatformsQuery
	_, err := handler.Query(context.Background(), ListPlatformsMessage{})
	if err == nil {
		t.Fatalf("expected query dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
}
