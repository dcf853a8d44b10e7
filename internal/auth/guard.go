package auth

import "github.com/geocoder89/userapi/internal/domain/user"

// Override is an extra grant checked before the guard forbids a request.
type Override func(id user.Identity) bool

// SelfOverride grants access when the identity is the target user.
func SelfOverride(targetID int64) Override {
	return func(id user.Identity) bool {
		return id.ID == targetID
	}
}

// Guard checks an identity against a permitted role set. An empty set admits
// any authenticated role.
type Guard struct {
	roles map[user.Role]struct{}
}

func NewGuard(roles ...user.Role) *Guard {
	allowed := make(map[user.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return &Guard{roles: allowed}
}

func (g *Guard) Check(id *user.Identity, overrides ...Override) error {
	if id == nil {
		return ErrUnauthenticated
	}

	if len(g.roles) == 0 {
		return nil
	}

	if _, ok := g.roles[id.Role]; ok {
		return nil
	}

	for _, o := range overrides {
		if o != nil && o(*id) {
			return nil
		}
	}

	return ErrForbidden
}

// Authorize is the one-shot form of NewGuard(roles...).Check(id).
func Authorize(id *user.Identity, roles []user.Role, overrides ...Override) error {
	return NewGuard(roles...).Check(id, overrides...)
}
