// Package validator defines the credential-validation capability each
// identity-provider backend implements, plus the concrete variants the
// dispatcher composes: internal database, LDAP-backed, SAML-backed,
// client-credential, and a composite chain.
package validator

import (
	"context"

	"github.com/zonegate/identity/internal/idp/domain"
)

// CredentialValidator validates one credential request against a single
// backend. Backend failures (unreachable server, bad record) surface as a
// Failure result with a reason attached for audit, never as a panic or a
// silent success.
//
// Implementations holding pooled resources additionally implement io.Closer;
// the dispatcher closes them on shutdown and refresh.
type CredentialValidator interface {
	// Name identifies the validator in audit reasons and logs.
	Name() string

	Validate(ctx context.Context, req domain.CredentialRequest) domain.AuthenticationResult
}

// VerifyFunc checks a plaintext secret against a stored hash. The default is
// cryptox.VerifyPassword; deployments with their own encoder inject a
// replacement.
type VerifyFunc func(secret, hash string) error
