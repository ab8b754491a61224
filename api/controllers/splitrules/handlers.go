package splitrules

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/inkledger-backend/api/controllers/actorcontext"
	"github.com/angelmondragon/inkledger-backend/api/responses"
	"github.com/angelmondragon/inkledger-backend/api/validators"
	rulesvc "github.com/angelmondragon/inkledger-backend/internal/splitrules"
	"github.com/angelmondragon/inkledger-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/inkledger-backend/pkg/errors"
	"github.com/angelmondragon/inkledger-backend/pkg/logger"
)

// Service is the subset of the split rule service the handlers need.
type Service interface {
	Get(ctx context.Context, artistID uuid.UUID) (*rulesvc.Rule, error)
	Set(ctx context.Context, actor auth.Actor, artistID uuid.UUID, rule rulesvc.Rule) (*rulesvc.Rule, error)
}

type ruleRequest struct {
	ArtistRateBps *int `json:"artist_rate_bps" validate:"required,min=0,max=10000"`
	ShopRateBps   *int `json:"shop_rate_bps" validate:"required,min=0,max=10000"`
}

type ruleResponse struct {
	ArtistID      uuid.UUID `json:"artist_id"`
	ArtistRateBps int       `json:"artist_rate_bps"`
	ShopRateBps   int       `json:"shop_rate_bps"`
}

func Get(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "split rule service unavailable"))
			return
		}
		if _, err := actorcontext.ResolveActor(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		artistID, err := validators.ParsePathUUID(r, "artistId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rule, err := svc.Get(r.Context(), artistID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ruleResponse{ArtistID: artistID, ArtistRateBps: rule.ArtistRateBps, ShopRateBps: rule.ShopRateBps})
	}
}

// Set replaces the artist's split rule. Only bills recomputed afterwards use it.
func Set(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "split rule service unavailable"))
			return
		}
		actor, err := actorcontext.ResolveActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		artistID, err := validators.ParsePathUUID(r, "artistId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload ruleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rule, err := svc.Set(r.Context(), actor, artistID, rulesvc.Rule{
			ArtistRateBps: *payload.ArtistRateBps,
			ShopRateBps:   *payload.ShopRateBps,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ruleResponse{ArtistID: artistID, ArtistRateBps: rule.ArtistRateBps, ShopRateBps: rule.ShopRateBps})
	}
}
