package appointments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/inkledger-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/inkledger-backend/pkg/errors"
	"github.com/angelmondragon/inkledger-backend/pkg/logger"
)

// CartSource reports where the derived lines came from.
type CartSource string

const (
	SourceAppointmentCart CartSource = "appointment_cart"
	SourceContactCart     CartSource = "contact_cart"
	SourceService         CartSource = "service"
)

// Snapshot is the billing view of one appointment.
type Snapshot struct {
	AppointmentID uuid.UUID
	BranchID      uuid.UUID
	CustomerID    *uuid.UUID
	ArtistID      *uuid.UUID
	StartsAt      time.Time
	Source        CartSource
	Cart          cart.Result
}

// Reader resolves appointment snapshots.
type Reader struct {
	repo Repository
	logg *logger.Logger
}

// NewReader builds a Reader.
func NewReader(repo Repository, logg *logger.Logger) (*Reader, error) {
	if repo == nil {
		return nil, errors.New("appointments repository required")
	}
	return &Reader{repo: repo, logg: logg}, nil
}

// Snapshot loads the appointment and derives its bill lines. The appointment
// cart wins over the contact cart; a booked service with a price is the last
// resort. tx may be nil for reads outside a transaction.
func (r *Reader) Snapshot(ctx context.Context, tx *gorm.DB, appointmentID uuid.UUID) (*Snapshot, error) {
	repo := r.repo.WithTx(tx)
	appt, err := repo.FindAppointment(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "appointment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load appointment")
	}

	snap := &Snapshot{
		AppointmentID: appt.ID,
		BranchID:      appt.BranchID,
		CustomerID:    appt.CustomerID,
		ArtistID:      appt.ArtistID,
		StartsAt:      appt.StartsAt,
	}

	if result, ok := r.derive(ctx, appt.ID, SourceAppointmentCart, appt.CartSnapshot); ok {
		snap.Source, snap.Cart = SourceAppointmentCart, result
		return snap, nil
	}

	if appt.ContactID != nil {
		contact, err := repo.FindContact(ctx, *appt.ContactID)
		switch {
		case err == nil:
			if result, ok := r.derive(ctx, appt.ID, SourceContactCart, contact.CartSnapshot); ok {
				snap.Source, snap.Cart = SourceContactCart, result
				return snap, nil
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load contact")
		}
	}

	if appt.ServicePrice != nil {
		name := "service"
		if appt.ServiceName != nil && strings.TrimSpace(*appt.ServiceName) != "" {
			name = strings.TrimSpace(*appt.ServiceName)
		}
		price := *appt.ServicePrice
		if price < 0 {
			price = 0
		}
		lines := []cart.Line{{ServiceID: appt.ServiceID, Name: name, BasePrice: price, FinalPrice: price}}
		snap.Source = SourceService
		snap.Cart = cart.Result{Totals: cart.Summarize(lines), Lines: lines}
		return snap, nil
	}

	return nil, pkgerrors.New(pkgerrors.CodeValidation, "appointment has no cart or priced service").
		WithDetails(map[string]any{"appointmentId": appt.ID.String()})
}

func (r *Reader) derive(ctx context.Context, appointmentID uuid.UUID, source CartSource, raw []byte) (cart.Result, bool) {
	if len(raw) == 0 {
		return cart.Result{}, false
	}
	payload, err := cart.Decode(raw)
	if err == nil {
		var result cart.Result
		result, err = cart.Normalize(payload)
		if err == nil {
			return result, true
		}
	}
	if r.logg != nil && !errors.Is(err, cart.ErrNoDerivation) {
		logCtx := r.logg.WithFields(ctx, map[string]any{
			"appointment_id": appointmentID.String(),
			"source":         string(source),
		})
		r.logg.Warn(logCtx, "cart snapshot unusable: "+err.Error())
	}
	return cart.Result{}, false
}
