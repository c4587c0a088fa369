package auth

// policy.go holds the pure RBAC decision functions. Nothing here touches
// storage or HTTP; middleware and handlers feed in a Principal built from
// freshly loaded account state and act on the returned decisions.

// AdminRoles are the role names that grant administrative access.
var AdminRoles = []string{"admin", "super_admin"}

// RestrictedSelfFields are the fields a non-admin may never change on their
// own record through a general update endpoint. Allowing them would let a
// user re-activate themselves, hop exercises, or clear their own lockout.
var RestrictedSelfFields = []string{"is_active", "exercise_id", "failed_attempts", "locked_until"}

// Principal is the authenticated identity attached to a request after the
// authorization middleware re-fetched the account and its effective roles.
type Principal struct {
	ID         uint64
	Email      string
	Name       string
	Roles      []string
	IsActive   bool
	ExerciseID *uint64
}

// HasAnyRole reports whether the principal's effective role set intersects
// the allowed set.
func (p *Principal) HasAnyRole(allowed ...string) bool {
	for _, have := range p.Roles {
		for _, want := range allowed {
			if have == want {
				return true
			}
		}
	}
	return false
}

// IsAdmin reports whether the principal holds an administrative role.
func (p *Principal) IsAdmin() bool {
	return p.HasAnyRole(AdminRoles...)
}

// ModifyDecision is the outcome of CanModify. Both flags are exposed so
// handlers can branch on finer-grained permissions (an owner may view a
// record but not set admin-only fields on it).
type ModifyDecision struct {
	IsAdmin bool
	IsOwner bool
}

// Allowed reports whether the principal may touch the target at all.
func (d ModifyDecision) Allowed() bool { return d.IsAdmin || d.IsOwner }

// CanModify decides whether the principal may modify the target user:
// admins may modify anyone, everyone may modify themselves.
func CanModify(p *Principal, targetID uint64) ModifyDecision {
	return ModifyDecision{IsAdmin: p.IsAdmin(), IsOwner: p.ID == targetID}
}

// SelfEscalationFields returns the subset of requested fields a non-admin
// principal is forbidden to change on their own record. An empty result
// means the update may proceed. Admins and updates targeting other users
// are never restricted here (other checks still apply).
func SelfEscalationFields(p *Principal, targetID uint64, requested []string) []string {
	if p.ID != targetID || p.IsAdmin() {
		return nil
	}
	var offending []string
	for _, f := range requested {
		for _, r := range RestrictedSelfFields {
			if f == r {
				offending = append(offending, f)
			}
		}
	}
	return offending
}
