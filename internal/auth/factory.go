package auth

import (
	"context"
	"fmt"

	"github.com/promptguild/promptguild/internal/config"
)

// New builds the authenticator selected by cfg.AuthMode.
func New(ctx context.Context, cfg *config.Config) (Authenticator, error) {
	switch cfg.AuthMode {
	case "dev":
		if cfg.IsProduction() {
			return nil, fmt.Errorf("dev authentication is not allowed in production")
		}
		return NewDevAuthenticator(), nil
	case "jwt":
		return NewJWTAuthenticator(cfg.JWTSecret, cfg.JWTIssuer)
	case "oidc":
		return NewOIDCAuthenticator(ctx, cfg.OIDCIssuer, cfg.OIDCClientID)
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.AuthMode)
	}
}
