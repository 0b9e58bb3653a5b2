package domain

import "context"

// Registry resolves and authenticates registered clients.
type Registry interface {
	Create(ctx context.Context, req CreateClientRequest) (*RegisteredClient, error)
	Resolve(ctx context.Context, clientID string) (*RegisteredClient, error)
	// Authenticate checks the presented secret under the given method. For
	// public clients (method none) it succeeds without a secret; PKCE
	// enforcement then falls to the grant flow.
	Authenticate(ctx context.Context, clientID, presentedSecret string, method AuthMethod) (*RegisteredClient, error)
}

type CreateClientRequest struct {
	ClientID        string
	ClientName      string
	ClientSecret    string
	AuthMethods     []AuthMethod
	GrantTypes      []GrantType
	RedirectURIs    []string
	Scopes          []string
	RequireProofKey bool
}
