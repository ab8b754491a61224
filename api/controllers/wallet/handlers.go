package wallet

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/inkledger-backend/api/controllers/actorcontext"
	walletdto "github.com/angelmondragon/inkledger-backend/api/controllers/wallet/dto"
	"github.com/angelmondragon/inkledger-backend/api/responses"
	"github.com/angelmondragon/inkledger-backend/api/validators"
	billsvc "github.com/angelmondragon/inkledger-backend/internal/bills"
	walletsvc "github.com/angelmondragon/inkledger-backend/internal/wallet"
	"github.com/angelmondragon/inkledger-backend/pkg/auth"
	"github.com/angelmondragon/inkledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/inkledger-backend/pkg/errors"
	"github.com/angelmondragon/inkledger-backend/pkg/logger"
	"github.com/angelmondragon/inkledger-backend/pkg/pagination"
)

// StoredValueService creates the top-up and refund bills behind wallet credits.
type StoredValueService interface {
	CreateStoredValueTopup(ctx context.Context, actor auth.Actor, input billsvc.TopupInput) (*billsvc.Detail, error)
	RefundToStoredValue(ctx context.Context, actor auth.Actor, input billsvc.RefundInput) (*billsvc.Detail, error)
}

// Reader exposes wallet balances and ledger history.
type Reader interface {
	Summary(ctx context.Context, memberID uuid.UUID) (*walletsvc.Summary, error)
	Entries(ctx context.Context, memberID uuid.UUID, params pagination.Params) (*walletsvc.EntryPage, error)
}

func Topup(svc StoredValueService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stored value service unavailable"))
			return
		}
		actor, memberID, err := actorAndMember(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload walletdto.TopupRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.CreateStoredValueTopup(r.Context(), actor, billsvc.TopupInput{
			MemberID: memberID,
			Amount:   payload.Amount,
			Method:   enums.PaymentMethod(payload.Method),
			PaidAt:   payload.PaidAt,
			Notes:    payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, detail)
	}
}

func Refund(svc StoredValueService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stored value service unavailable"))
			return
		}
		actor, memberID, err := actorAndMember(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload walletdto.RefundRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.RefundToStoredValue(r.Context(), actor, billsvc.RefundInput{
			MemberID:     memberID,
			Amount:       payload.Amount,
			SourceBillID: payload.SourceBillID,
			Notes:        payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, detail)
	}
}

// Summary returns the member's balance and lifetime spend.
func Summary(reader Reader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet unavailable"))
			return
		}
		_, memberID, err := actorAndMember(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := reader.Summary(r.Context(), memberID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// Entries pages through the member's ledger, newest first.
func Entries(reader Reader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet unavailable"))
			return
		}
		_, memberID, err := actorAndMember(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := reader.Entries(r.Context(), memberID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func actorAndMember(r *http.Request) (actor auth.Actor, memberID uuid.UUID, err error) {
	actor, err = actorcontext.ResolveActor(r)
	if err != nil {
		return actor, uuid.Nil, err
	}
	memberID, err = validators.ParsePathUUID(r, "memberId")
	return actor, memberID, err
}
