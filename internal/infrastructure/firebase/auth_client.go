package firebase

import (
	"context"

	"firebase.google.com/go/v4/auth"

	"tradepost/pkg/errors"
)

// AuthClient adapts Firebase Auth to the chat core's AuthVerifier
// collaborator. Tokens for disabled accounts are rejected even when the
// signature still verifies.
type AuthClient struct {
	client *auth.Client
}

func NewAuthClient(client *auth.Client) *AuthClient {
	return &AuthClient{
		client: client,
	}
}

func (c *AuthClient) VerifyToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", errors.Unauthorized("Authentication credential is required", nil)
	}

	decoded, err := c.client.VerifyIDToken(ctx, token)
	if err != nil {
		return "", errors.Unauthorized("Invalid or expired credential", err)
	}

	user, err := c.client.GetUser(ctx, decoded.UID)
	if err != nil {
		return "", errors.Unauthorized("Account lookup failed", err)
	}
	if user.Disabled {
		return "", errors.Unauthorized("Account is blocked or deleted", nil)
	}

	return decoded.UID, nil
}
