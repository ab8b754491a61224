package controllers

import (
	"net/http"

	"github.com/angelmondragon/inkledger-backend/api/middleware"
	"github.com/angelmondragon/inkledger-backend/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"scope": "public", "status": "ok"})
	}
}

// PrivatePing echoes the authenticated actor so clients can check their token.
func PrivatePing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"scope": "private", "status": "ok"}
		if actor, ok := middleware.ActorFromContext(r.Context()); ok {
			payload["actor_id"] = actor.ID.String()
			payload["role"] = string(actor.Role)
			payload["branch_id"] = actor.BranchID.String()
		}
		responses.WriteSuccess(w, payload)
	}
}
