package auth

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/inkledger-backend/pkg/enums"
)

// Actor is the authenticated identity performing a billing operation.
type Actor struct {
	ID       uuid.UUID
	Role     enums.ActorRole
	BranchID uuid.UUID
}

// SystemActor runs batch utilities. It carries BOSS scope.
var SystemActor = Actor{ID: uuid.Nil, Role: enums.ActorRoleBoss}

func (a Actor) IsBoss() bool {
	return a.Role == enums.ActorRoleBoss
}

func (a Actor) IsArtist() bool {
	return a.Role == enums.ActorRoleArtist
}
