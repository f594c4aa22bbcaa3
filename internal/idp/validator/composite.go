package validator

import (
	"context"
	"strings"

	"github.com/zonegate/identity/internal/idp/domain"
)

// Composite tries member validators in configured order and returns the
// first success. When every member fails, the failure reasons are
// aggregated so the audit trail shows what each backend said.
type Composite struct {
	members []CredentialValidator
}

func NewComposite(members ...CredentialValidator) *Composite {
	return &Composite{members: members}
}

func (v *Composite) Name() string { return "composite" }

// Members returns the chain in evaluation order.
func (v *Composite) Members() []CredentialValidator {
	return v.members
}

func (v *Composite) Validate(ctx context.Context, req domain.CredentialRequest) domain.AuthenticationResult {
	if len(v.members) == 0 {
		return domain.FailureResult("composite: no validators configured")
	}

	reasons := make([]string, 0, len(v.members))
	for _, member := range v.members {
		res := member.Validate(ctx, req)
		if res.Succeeded() {
			return res
		}
		reasons = append(reasons, member.Name()+": "+res.FailureReason)
	}

	return domain.FailureResult(strings.Join(reasons, "; "))
}
