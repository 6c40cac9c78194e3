package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/spec-kit/sector-mail-desk/internal/config"
)

var scopes = []string{
	gmail.GmailModifyScope,
	gmail.GmailLabelsScope,
	gmail.GmailSendScope,
}

// NewHTTPClient builds an authorized client. A token file selects the
// installed-app flow; otherwise the credentials are a service account key,
// optionally impersonating a mailbox.
func NewHTTPClient(ctx context.Context, cfg config.GmailConfig) (*http.Client, error) {
	creds, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	if cfg.UsesUserToken() {
		oauthCfg, err := google.ConfigFromJSON(creds, scopes...)
		if err != nil {
			return nil, fmt.Errorf("parse oauth client: %w", err)
		}
		raw, err := os.ReadFile(cfg.TokenFile)
		if err != nil {
			return nil, fmt.Errorf("read token: %w", err)
		}
		var token oauth2.Token
		if err := json.Unmarshal(raw, &token); err != nil {
			return nil, fmt.Errorf("decode token: %w", err)
		}
		return oauthCfg.Client(ctx, &token), nil
	}

	jwtCfg, err := google.JWTConfigFromJSON(creds, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse service account: %w", err)
	}
	jwtCfg.Subject = cfg.ImpersonateUser
	return jwtCfg.Client(ctx), nil
}

// NewService returns a Gmail service over an authorized client.
func NewService(ctx context.Context, cfg config.GmailConfig) (*gmail.Service, error) {
	client, err := NewHTTPClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}
	return svc, nil
}
