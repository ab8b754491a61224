package enums

import "fmt"

// ActorRole is the studio role carried by an actor token.
type ActorRole string

const (
	ActorRoleBoss   ActorRole = "BOSS"
	ActorRoleArtist ActorRole = "ARTIST"
	ActorRoleStaff  ActorRole = "STAFF"
)

var validActorRoles = []ActorRole{
	ActorRoleBoss,
	ActorRoleArtist,
	ActorRoleStaff,
}

// String implements fmt.Stringer.
func (r ActorRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ActorRole.
func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseActorRole converts raw input into a ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
