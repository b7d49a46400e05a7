package entity

const (
	RoleUser     = "user"
	RoleBusiness = "business"
	RoleAdmin    = "admin"
)

// Principal is the authenticated caller as supplied by the identity provider.
type Principal struct {
	UserID     string `json:"user_id"`
	Role       string `json:"role"`
	BusinessID string `json:"business_id,omitempty"`
}

// ActsAsBusiness reports whether the caller speaks for a business.
func (p Principal) ActsAsBusiness() bool {
	return p.Role == RoleBusiness && p.BusinessID != ""
}
