package bills

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/inkledger-backend/api/controllers/actorcontext"
	billdto "github.com/angelmondragon/inkledger-backend/api/controllers/bills/dto"
	"github.com/angelmondragon/inkledger-backend/api/responses"
	"github.com/angelmondragon/inkledger-backend/api/validators"
	billsvc "github.com/angelmondragon/inkledger-backend/internal/bills"
	"github.com/angelmondragon/inkledger-backend/pkg/auth"
	"github.com/angelmondragon/inkledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/inkledger-backend/pkg/errors"
	"github.com/angelmondragon/inkledger-backend/pkg/logger"
)

// EnsureForAppointment creates or refreshes the bill of an appointment.
func EnsureForAppointment(svc billsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bill service unavailable"))
			return
		}
		actor, err := actorcontext.ResolveActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		appointmentID, err := validators.ParsePathUUID(r, "appointmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.EnsureForAppointment(r.Context(), actor, appointmentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// List returns the flattened bill report visible to the actor.
func List(svc billsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bill service unavailable"))
			return
		}
		actor, err := actorcontext.ResolveActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query, err := parseListQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.List(r.Context(), actor, query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if rows == nil {
			rows = []billsvc.ReportRow{}
		}
		responses.WriteSuccess(w, map[string]any{
			"bills":  rows,
			"limit":  query.Limit,
			"offset": query.Offset,
		})
	}
}

// Get returns one bill with its lines, payments and allocations.
func Get(svc billsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bill service unavailable"))
			return
		}
		actor, billID, err := actorAndBill(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.Get(r.Context(), actor, billID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// CreateManual opens a walk-in or other bill without an appointment.
func CreateManual(svc billsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bill service unavailable"))
			return
		}
		actor, err := actorcontext.ResolveActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload billdto.ManualBillRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		branchID := actor.BranchID
		if payload.BranchID != nil {
			branchID = *payload.BranchID
		}

		detail, err := svc.CreateManualBill(r.Context(), actor, toManualBillInput(branchID, payload))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, detail)
	}
}

// RecordPayment appends a payment or refund to a bill.
func RecordPayment(svc billsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bill service unavailable"))
			return
		}
		actor, billID, err := actorAndBill(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload billdto.RecordPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.RecordPayment(r.Context(), actor, toRecordPaymentInput(billID, payload))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, detail)
	}
}

// FullEdit replaces a bill's header, lines and payments in one step.
func FullEdit(svc billsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bill service unavailable"))
			return
		}
		actor, billID, err := actorAndBill(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload billdto.FullEditRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.FullEdit(r.Context(), actor, toFullEditInput(billID, payload))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// Void marks a bill VOID with a reason.
func Void(svc billsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bill service unavailable"))
			return
		}
		actor, billID, err := actorAndBill(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload billdto.ReasonRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.Void(r.Context(), actor, billID, payload.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// Delete removes a bill and undoes its wallet effects.
func Delete(svc billsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bill service unavailable"))
			return
		}
		actor, billID, err := actorAndBill(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload billdto.ReasonRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.DeleteHard(r.Context(), actor, billID, payload.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func actorAndBill(r *http.Request) (actor auth.Actor, billID uuid.UUID, err error) {
	actor, err = actorcontext.ResolveActor(r)
	if err != nil {
		return actor, uuid.Nil, err
	}
	billID, err = validators.ParsePathUUID(r, "billId")
	return actor, billID, err
}

func parseListQuery(r *http.Request) (billsvc.ListQuery, error) {
	var q billsvc.ListQuery
	var err error
	values := r.URL.Query()

	if q.BranchID, err = validators.ParseQueryUUID(r, "branch_id"); err != nil {
		return q, err
	}
	if q.ArtistID, err = validators.ParseQueryUUID(r, "artist_id"); err != nil {
		return q, err
	}
	if raw := strings.TrimSpace(values.Get("status")); raw != "" {
		status, parseErr := enums.ParseBillStatus(strings.ToUpper(raw))
		if parseErr != nil {
			return q, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid status")
		}
		q.Status = &status
	}
	if raw := strings.TrimSpace(values.Get("bill_type")); raw != "" {
		billType, parseErr := enums.ParseBillType(strings.ToUpper(raw))
		if parseErr != nil {
			return q, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid bill type")
		}
		q.BillType = &billType
	}
	if q.From, err = validators.ParseQueryTime(r, "from"); err != nil {
		return q, err
	}
	if q.To, err = validators.ParseQueryTime(r, "to"); err != nil {
		return q, err
	}
	if q.MinTotal, err = validators.ParseQueryInt64(r, "min_total"); err != nil {
		return q, err
	}
	if q.MaxTotal, err = validators.ParseQueryInt64(r, "max_total"); err != nil {
		return q, err
	}

	q.Sort = billsvc.SortField(strings.ToLower(strings.TrimSpace(values.Get("sort"))))
	switch strings.ToLower(strings.TrimSpace(values.Get("order"))) {
	case "", "asc":
	case "desc":
		q.Desc = true
	default:
		return q, pkgerrors.New(pkgerrors.CodeValidation, "order must be asc or desc")
	}

	if q.Limit, err = validators.ParseQueryInt(r, "limit", 50, 1, 500); err != nil {
		return q, err
	}
	if q.Offset, err = validators.ParseQueryInt(r, "offset", 0, 0, 1_000_000); err != nil {
		return q, err
	}
	return q, nil
}
