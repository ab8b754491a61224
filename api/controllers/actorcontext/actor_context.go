package actorcontext

import (
	"net/http"

	"github.com/angelmondragon/inkledger-backend/api/middleware"
	"github.com/angelmondragon/inkledger-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/inkledger-backend/pkg/errors"
)

// ResolveActor returns the authenticated actor or an Unauthorized error.
func ResolveActor(r *http.Request) (auth.Actor, error) {
	if r == nil {
		return auth.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor context missing")
	}
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return auth.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor context missing")
	}
	if !actor.Role.IsValid() {
		return auth.Actor{}, pkgerrors.New(pkgerrors.CodeForbidden, "unknown actor role")
	}
	return actor, nil
}
