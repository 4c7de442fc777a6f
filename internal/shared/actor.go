package shared

import "fmt"

// Role is the caller's relationship to a store, resolved upstream.
type Role string

const (
	// RoleOwner operates the store that owns the purchase order.
	RoleOwner Role = "owner"
	// RoleSupplier acts on behalf of a supplier linked to a user account.
	RoleSupplier Role = "supplier"
)

// ParseRole converts the gateway header value into a Role.
func ParseRole(value string) (Role, error) {
	switch Role(value) {
	case RoleOwner, RoleSupplier:
		return Role(value), nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrValidation, value)
	}
}

// Actor identifies the authenticated caller of a core operation.
type Actor struct {
	UserID  int64
	StoreID int64
	Role    Role
}

// IsOwner reports whether the actor owns the store.
func (a Actor) IsOwner() bool {
	return a.Role == RoleOwner
}

// IsSupplier reports whether the actor acts for a supplier.
func (a Actor) IsSupplier() bool {
	return a.Role == RoleSupplier
}

// RequireOwner returns ErrForbidden unless the actor owns the store.
func (a Actor) RequireOwner() error {
	if !a.IsOwner() {
		return fmt.Errorf("%w: store owner required", ErrForbidden)
	}
	return nil
}

// RequireSupplier returns ErrForbidden unless the actor is a supplier user.
func (a Actor) RequireSupplier() error {
	if !a.IsSupplier() {
		return fmt.Errorf("%w: supplier required", ErrForbidden)
	}
	return nil
}
