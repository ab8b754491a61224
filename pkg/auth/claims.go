package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/inkledger-backend/pkg/enums"
)

// ActorClaims is the JWT body the studio auth service issues to staff.
type ActorClaims struct {
	UserID   uuid.UUID       `json:"user_id"`
	Role     enums.ActorRole `json:"role"`
	BranchID uuid.UUID       `json:"branch_id"`
	jwt.RegisteredClaims
}

// Actor returns the identity carried by the claims.
func (c ActorClaims) Actor() Actor {
	return Actor{ID: c.UserID, Role: c.Role, BranchID: c.BranchID}
}
