package validator

import (
	"context"
	"io"

	"github.com/zonegate/identity/internal/idp/domain"
)

// LDAPIdentity is what a successful bind resolves to.
type LDAPIdentity struct {
	DN       string
	Username string
	Groups   []string
}

// BindFunc performs a bind against an LDAP backend. The wire protocol and
// connection pooling live in the injected implementation; a timeout is the
// implementation's responsibility and surfaces here as an error.
type BindFunc func(ctx context.Context, username, password string) (LDAPIdentity, error)

// LDAP validates credentials by binding against an external directory.
type LDAP struct {
	origin string
	bind   BindFunc

	// pool is the delegate's pooled connection handle, closed on dispatcher
	// shutdown. May be nil for poolless implementations.
	pool io.Closer
}

func NewLDAP(origin string, bind BindFunc, pool io.Closer) *LDAP {
	return &LDAP{origin: origin, bind: bind, pool: pool}
}

func (v *LDAP) Name() string { return "ldap:" + v.origin }

func (v *LDAP) Validate(ctx context.Context, req domain.CredentialRequest) domain.AuthenticationResult {
	identity, err := v.bind(ctx, req.Principal, req.Secret)
	if err != nil {
		// Unreachable backend and bad credentials both land here; the
		// reason is kept for audit, the outcome is a plain failure.
		return domain.FailureResult("ldap: " + err.Error())
	}

	principal := identity.DN
	if principal == "" {
		principal = identity.Username
	}
	return domain.SuccessResult(principal, identity.Groups)
}

// Close releases the delegate's connection pool.
func (v *LDAP) Close() error {
	if v.pool == nil {
		return nil
	}
	return v.pool.Close()
}
