package bills

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/inkledger-backend/internal/appointments"
	"github.com/angelmondragon/inkledger-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/inkledger-backend/pkg/errors"
)

const (
	batchPageSize = 200

	jobRebuildAll   = "rebuild_all"
	jobRecomputeAll = "recompute_allocations"
)

// BatchReport summarizes a best-effort pass over many bills. Err aggregates
// the per-bill failures; bills that succeeded stay committed.
type BatchReport struct {
	Processed int   `json:"processed"`
	Changed   int   `json:"changed"`
	Failed    int   `json:"failed"`
	Err       error `json:"-"`
}

// RebuildAll re-derives the lines of every non-void appointment bill whose
// total drifted from its appointment cart. Bills priced from the service
// fallback are left alone.
func (s *service) RebuildAll(ctx context.Context) (*BatchReport, error) {
	actor := auth.SystemActor
	return s.runBatch(ctx, jobRebuildAll, BatchFilter{AppointmentOnly: true, SkipVoid: true}, func(tx *gorm.DB, billID uuid.UUID) (bool, error) {
		repo := s.repo.WithTx(tx)
		bill, err := s.loadBill(ctx, repo, billID)
		if err != nil {
			return false, err
		}
		if bill.IsVoid() || bill.AppointmentID == nil {
			return false, nil
		}
		snap, err := s.appointments.Snapshot(ctx, tx, *bill.AppointmentID)
		if err != nil {
			return false, err
		}
		if snap.Source == appointments.SourceService || snap.Cart.BillTotal == bill.BillTotal {
			return false, nil
		}
		st, err := s.loadState(ctx, repo, bill)
		if err != nil {
			return false, err
		}
		return true, s.rebuild(ctx, tx, actor, st, snap.Cart.Lines)
	})
}

// RecomputeAllAllocations recomputes every payment split from the current
// split rules, in payment order per bill.
func (s *service) RecomputeAllAllocations(ctx context.Context) (*BatchReport, error) {
	return s.runBatch(ctx, jobRecomputeAll, BatchFilter{}, func(tx *gorm.DB, billID uuid.UUID) (bool, error) {
		repo := s.repo.WithTx(tx)
		bill, err := s.loadBill(ctx, repo, billID)
		if err != nil {
			return false, err
		}
		st, err := s.loadState(ctx, repo, bill)
		if err != nil {
			return false, err
		}
		before := st.allocations
		rule, err := s.rules.Resolve(ctx, tx, bill.ArtistID)
		if err != nil {
			return false, err
		}
		if err := s.reallocateAll(ctx, repo, st, rule); err != nil {
			return false, err
		}
		for id, split := range st.allocations {
			if before[id] != split {
				return true, nil
			}
		}
		return false, nil
	})
}

func (s *service) runBatch(ctx context.Context, job string, filter BatchFilter, visit func(tx *gorm.DB, billID uuid.UUID) (bool, error)) (*BatchReport, error) {
	started := time.Now()
	report := &BatchReport{}
	defer func() {
		s.batchMetrics.ObserveDuration(job, time.Since(started))
		s.batchMetrics.AddProcessed(job, report.Processed-report.Failed, report.Failed)
	}()

	after := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		ids, err := s.repo.ListBillIDs(ctx, filter, after, batchPageSize)
		if err != nil {
			return report, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bills for "+job)
		}
		if len(ids) == 0 {
			break
		}
		for _, id := range ids {
			report.Processed++
			var changed bool
			err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
				var err error
				changed, err = visit(tx, id)
				return err
			})
			if err != nil {
				report.Failed++
				report.Err = multierr.Append(report.Err, fmt.Errorf("bill %s: %w", id, err))
				s.logBatchFailure(ctx, job, id, err)
				continue
			}
			if changed {
				report.Changed++
			}
		}
		after = ids[len(ids)-1]
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"job":       job,
			"processed": report.Processed,
			"changed":   report.Changed,
			"failed":    report.Failed,
		})
		s.logg.Info(logCtx, "batch finished")
	}
	return report, nil
}

func (s *service) logBatchFailure(ctx context.Context, job string, billID uuid.UUID, err error) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithBillID(s.logg.WithField(ctx, "job", job), billID.String())
	s.logg.Error(logCtx, "batch bill failed", err)
}
