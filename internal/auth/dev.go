package auth

import (
	"context"
	"strings"
)

const (
	// DevAPIKey is the development mode key. It must never be accepted in production.
	DevAPIKey = "LOCAL_DEV_MODE_NOT_FOR_PRODUCTION"

	DevUserID = "promptguild-dev"
	devDomain = "dev.promptguild.local"
)

// DevAuthenticator accepts DevAPIKey, resolving to DevUserID, and
// "DevAPIKey:<user>" to act as another local user.
type DevAuthenticator struct{}

func NewDevAuthenticator() *DevAuthenticator { return &DevAuthenticator{} }

func (DevAuthenticator) Authenticate(_ context.Context, token string) (*Identity, error) {
	user := DevUserID
	if token != DevAPIKey {
		rest, ok := strings.CutPrefix(token, DevAPIKey+":")
		if !ok || strings.TrimSpace(rest) == "" || strings.ContainsAny(rest, " @") {
			return nil, ErrInvalidToken
		}
		user = rest
	}
	return &Identity{UserID: user, Email: user + "@" + devDomain, DisplayName: user}, nil
}

// DevToken returns the dev key acting as user.
func DevToken(user string) string {
	if user == "" || user == DevUserID {
		return DevAPIKey
	}
	return DevAPIKey + ":" + user
}
