package validator

import (
	"context"
	"errors"

	"github.com/pquerna/otp/totp"

	"github.com/zonegate/identity/internal/idp/domain"
	"github.com/zonegate/identity/internal/idp/store"
	"github.com/zonegate/identity/pkg/cryptox"
	"github.com/zonegate/identity/pkg/slogx"
)

// Internal validates credentials against the internal user database. It is
// the default validator every zone falls back to.
type Internal struct {
	users  store.Users
	verify VerifyFunc
}

// NewInternal builds an internal-database validator. verify may be nil, in
// which case the default Argon2id verifier is used.
func NewInternal(users store.Users, verify VerifyFunc) *Internal {
	if verify == nil {
		verify = cryptox.VerifyPassword
	}
	return &Internal{users: users, verify: verify}
}

func (v *Internal) Name() string { return "internal" }

func (v *Internal) Validate(ctx context.Context, req domain.CredentialRequest) domain.AuthenticationResult {
	user, err := v.users.GetByUsername(ctx, req.ZoneID, req.Origin, req.Principal)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Same reason as a wrong password so callers can't probe for
			// which usernames exist.
			return domain.FailureResult("invalid credentials")
		}
		slogx.FromContext(ctx).Error("user lookup failed", "error", err)
		return domain.FailureResult("internal: user lookup: " + err.Error())
	}

	if !user.Active {
		return domain.FailureResult("invalid credentials")
	}

	if err := v.verify(req.Secret, user.PasswordHash); err != nil {
		return domain.FailureResult("invalid credentials")
	}

	// Second factor, when enrolled.
	if user.TOTPSecret != "" {
		if req.Passcode == "" || !totp.Validate(req.Passcode, user.TOTPSecret) {
			return domain.FailureResult("invalid passcode")
		}
	}

	return domain.SuccessResult(user.ID, user.Authorities)
}
