package bills

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/inkledger-backend/pkg/auth"
	"github.com/angelmondragon/inkledger-backend/pkg/db/models"
	"github.com/angelmondragon/inkledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/inkledger-backend/pkg/errors"
)

// Authorize applies the bill access policy: BOSS may act on any bill, an
// ARTIST on bills assigned to them or stored-value bills they created, and
// any other role on bills of its own branch.
func Authorize(actor auth.Actor, bill *models.Bill) error {
	if bill == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "bill not found")
	}
	switch actor.Role {
	case enums.ActorRoleBoss:
		return nil
	case enums.ActorRoleArtist:
		if bill.ArtistID != nil && *bill.ArtistID == actor.ID {
			return nil
		}
		if bill.BillType.IsStoredValue() && bill.CreatedBy == actor.ID {
			return nil
		}
	default:
		if actor.Role.IsValid() && actor.BranchID != uuid.Nil && bill.BranchID == actor.BranchID {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "bill is outside the actor's scope").
		WithDetails(map[string]any{"billId": bill.ID.String()})
}

func requireBoss(actor auth.Actor, operation string) error {
	if actor.IsBoss() {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, operation+" requires the studio owner")
}

func scopeFor(actor auth.Actor) scope {
	switch actor.Role {
	case enums.ActorRoleBoss:
		return scope{all: true}
	case enums.ActorRoleArtist:
		id := actor.ID
		return scope{artistID: &id}
	default:
		if !actor.Role.IsValid() || actor.BranchID == uuid.Nil {
			return scope{}
		}
		branch := actor.BranchID
		return scope{branchID: &branch}
	}
}
