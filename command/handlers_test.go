package command

import (
	"context"
	"fmt"
	"testing"

	gocmd "github.com/goliatone/go-command"
	"github.com/socivio/connections/core"
)

func TestBeginConnectCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	expected := core.BeginAuthResponse{URL: "https://example.com/auth", State: "st"}
	called := false

	svc := stubMutatingService{
		beginConnectFn: func(_ context.Context, req core.BeginAuthRequest) (core.BeginAuthResponse, error) {
			called = true
			if req.Platform != core.PlatformYouTube {
				t.Fatalf("expected youtube platform, got %q", req.Platform)
			}
			return expected, nil
		},
	}

	cmd := NewBeginConnectCommand(svc)
	collector := gocmd.NewResult[core.BeginAuthResponse]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, BeginConnectMessage{Request: core.BeginAuthRequest{
		UserID:   7,
		Platform: core.PlatformYouTube,
	}})
	if err != nil {
		t.Fatalf("execute begin connect: %v", err)
	}
	if !called {
		t.Fatalf("expected begin connect service invocation")
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.URL != expected.URL || result.State != expected.State {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestMutationCommands_DelegateToService(t *testing.T) {
	t.Run("ingest grant", func(t *testing.T) {
		expected := core.Credential{
			UserID:            7,
			Platform:          core.PlatformYouTube,
			ExternalAccountID: "yt-account-1",
			AccessToken:       "T1",
		}
		called := false
		svc := stubMutatingService{
			ingestGrantFn: func(_ context.Context, req core.IngestGrantRequest) (core.Credential, error) {
				called = true
				if req.Code != "code-1" {
					t.Fatalf("unexpected grant code %q", req.Code)
				}
				return expected, nil
			},
		}

		cmd := NewIngestGrantCommand(svc)
		collector := gocmd.NewResult[core.Credential]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := cmd.Execute(ctx, IngestGrantMessage{Request: core.IngestGrantRequest{
			UserID:   7,
			Platform: core.PlatformYouTube,
			Code:     "code-1",
		}}); err != nil {
			t.Fatalf("execute ingest grant: %v", err)
		}
		if !called {
			t.Fatalf("expected ingest grant invocation")
		}
		stored, ok := collector.Load()
		if !ok {
			t.Fatalf("expected credential result")
		}
		if stored.AccessToken != expected.AccessToken {
			t.Fatalf("unexpected credential result: %#v", stored)
		}
	})

	t.Run("renew", func(t *testing.T) {
		called := false
		svc := stubMutatingService{
			renewFn: func(_ context.Context, req core.RenewRequest) (core.Credential, error) {
				called = true
				if req.Key.ExternalAccountID != "yt-account-1" {
					t.Fatalf("unexpected renew key: %#v", req.Key)
				}
				return core.Credential{AccessToken: "T2"}, nil
			},
		}

		cmd := NewRenewCommand(svc)
		collector := gocmd.NewResult[core.Credential]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := cmd.Execute(ctx, RenewMessage{Request: core.RenewRequest{
			Key: core.CredentialKey{
				UserID:            7,
				Platform:          core.PlatformYouTube,
				ExternalAccountID: "yt-account-1",
			},
		}}); err != nil {
			t.Fatalf("execute renew: %v", err)
		}
		if !called {
			t.Fatalf("expected renew invocation")
		}
		stored, ok := collector.Load()
		if !ok {
			t.Fatalf("expected renewed credential result")
		}
		if stored.AccessToken != "T2" {
			t.Fatalf("unexpected renewed credential: %#v", stored)
		}
	})

	t.Run("revoke all", func(t *testing.T) {
		called := false
		svc := stubMutatingService{
			revokeAllFn: func(_ context.Context, userID int64) (int64, error) {
				called = true
				if userID != 7 {
					t.Fatalf("unexpected revoke user %d", userID)
				}
				return 3, nil
			},
		}

		cmd := NewRevokeAllCommand(svc)
		collector := gocmd.NewResult[int64]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := cmd.Execute(ctx, RevokeAllMessage{UserID: 7}); err != nil {
			t.Fatalf("execute revoke all: %v", err)
		}
		if !called {
			t.Fatalf("expected revoke all invocation")
		}
		stored, ok := collector.Load()
		if !ok {
			t.Fatalf("expected revoke count result")
		}
		if stored != 3 {
			t.Fatalf("expected 3 revoked credentials, got %d", stored)
		}
	})

	t.Run("service error propagates", func(t *testing.T) {
		svc := stubMutatingService{
			revokeAllFn: func(context.Context, int64) (int64, error) {
				return 0, fmt.Errorf("storage down")
			},
		}
		if err := NewRevokeAllCommand(svc).Execute(context.Background(), RevokeAllMessage{UserID: 7}); err == nil {
			t.Fatalf("expected service error to propagate")
		}
	})
}

func TestMessageValidation(t *testing.T) {
	tests := []struct {
		name    string
		msg     interface{ Validate() error }
		wantErr bool
	}{
		{
			name: "begin connect valid",
			msg: BeginConnectMessage{Request: core.BeginAuthRequest{
				UserID:   7,
				Platform: core.PlatformYouTube,
			}},
			wantErr: false,
		},
		{
			name: "begin connect missing user",
			msg: BeginConnectMessage{Request: core.BeginAuthRequest{
				Platform: core.PlatformYouTube,
			}},
			wantErr: true,
		},
		{
			name: "begin connect unknown platform",
			msg: BeginConnectMessage{Request: core.BeginAuthRequest{
				UserID:   7,
				Platform: core.Platform("myspace"),
			}},
			wantErr: true,
		},
		{
			name: "ingest grant valid",
			msg: IngestGrantMessage{Request: core.IngestGrantRequest{
				UserID:   7,
				Platform: core.PlatformFacebook,
				Code:     "code-1",
			}},
			wantErr: false,
		},
		{
			name: "ingest grant missing code",
			msg: IngestGrantMessage{Request: core.IngestGrantRequest{
				UserID:   7,
				Platform: core.PlatformFacebook,
			}},
			wantErr: true,
		},
		{
			name: "renew valid",
			msg: RenewMessage{Request: core.RenewRequest{Key: core.CredentialKey{
				UserID:            7,
				Platform:          core.PlatformYouTube,
				ExternalAccountID: "yt-account-1",
			}}},
			wantErr: false,
		},
		{
			name:    "renew missing account",
			msg:     RenewMessage{Request: core.RenewRequest{Key: core.CredentialKey{UserID: 7, Platform: core.PlatformYouTube}}},
			wantErr: true,
		},
		{
			name:    "revoke all missing user",
			msg:     RevokeAllMessage{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

type stubMutatingService struct {
	beginConnectFn func(ctx context.Context, req core.BeginAuthRequest) (core.BeginAuthResponse, error)
	ingestGrantFn  func(ctx context.Context, req core.IngestGrantRequest) (core.Credential, error)
	renewFn        func(ctx context.Context, req core.RenewRequest) (core.Credential, error)
	revokeAllFn    func(ctx context.Context, userID int64) (int64, error)
}

func (s stubMutatingService) BeginConnect(ctx context.Context, req core.BeginAuthRequest) (core.BeginAuthResponse, error) {
	if s.beginConnectFn == nil {
		return core.BeginAuthResponse{}, fmt.Errorf("begin connect not configured")
	}
	return s.beginConnectFn(ctx, req)
}

func (s stubMutatingService) IngestGrant(ctx context.Context, req core.IngestGrantRequest) (core.Credential, error) {
	if s.ingestGrantFn == nil {
		return core.Credential{}, fmt.Errorf("ingest grant not configured")
	}
	return s.ingestGrantFn(ctx, req)
}

func (s stubMutatingService) Renew(ctx context.Context, req core.RenewRequest) (core.Credential, error) {
	if s.renewFn == nil {
		return core.Credential{}, fmt.Errorf("renew not configured")
	}
	return s.renewFn(ctx, req)
}

func (s stubMutatingService) RevokeAll(ctx context.Context, userID int64) (int64, error) {
	if s.revokeAllFn == nil {
		return 0, fmt.Errorf("revoke all not configured")
	}
	return s.revokeAllFn(ctx, userID)
}

var _ MutatingService = stubMutatingService{}
