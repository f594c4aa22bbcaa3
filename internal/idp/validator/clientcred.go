package validator

import (
	"context"
	"errors"

	"github.com/zonegate/identity/internal/idp/domain"
	"github.com/zonegate/identity/internal/idp/store"
	"github.com/zonegate/identity/pkg/cryptox"
)

// ClientCredential authenticates OAuth2 clients presenting their own
// credentials. The principal identifier is the client ID and the secret
// material is the client secret.
type ClientCredential struct {
	clients store.Clients
	verify  VerifyFunc
}

func NewClientCredential(clients store.Clients, verify VerifyFunc) *ClientCredential {
	if verify == nil {
		verify = cryptox.VerifyPassword
	}
	return &ClientCredential{clients: clients, verify: verify}
}

func (v *ClientCredential) Name() string { return "client-credential" }

func (v *ClientCredential) Validate(ctx context.Context, req domain.CredentialRequest) domain.AuthenticationResult {
	client, err := v.clients.GetClient(ctx, req.ZoneID, req.Principal)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.FailureResult("invalid client")
		}
		return domain.FailureResult("client-credential: client lookup: " + err.Error())
	}

	if !client.Active {
		return domain.FailureResult("invalid client")
	}

	if err := v.verify(req.Secret, client.SecretHash); err != nil {
		return domain.FailureResult("invalid client")
	}

	return domain.SuccessResult(client.ID, client.Authorities)
}
