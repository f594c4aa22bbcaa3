package validator

import (
	"context"

	"github.com/zonegate/identity/internal/idp/domain"
)

// SAMLIdentity is the principal a verified assertion attests to.
type SAMLIdentity struct {
	NameID     string
	Attributes map[string][]string
}

// AssertionFunc verifies a serialized SAML assertion. XML parsing and
// signature validation live in the injected implementation.
type AssertionFunc func(ctx context.Context, assertion string) (SAMLIdentity, error)

// SAML validates requests whose secret material is a serialized assertion
// from an external IdP.
type SAML struct {
	origin string
	check  AssertionFunc
}

func NewSAML(origin string, check AssertionFunc) *SAML {
	return &SAML{origin: origin, check: check}
}

func (v *SAML) Name() string { return "saml:" + v.origin }

func (v *SAML) Validate(ctx context.Context, req domain.CredentialRequest) domain.AuthenticationResult {
	identity, err := v.check(ctx, req.Secret)
	if err != nil {
		return domain.FailureResult("saml: " + err.Error())
	}

	var groups []string
	if identity.Attributes != nil {
		groups = identity.Attributes["groups"]
	}
	return domain.SuccessResult(identity.NameID, groups)
}
