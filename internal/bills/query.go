package bills

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/inkledger-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/inkledger-backend/pkg/errors"
)

func (s *service) Get(ctx context.Context, actor auth.Actor, billID uuid.UUID) (*Detail, error) {
	bill, err := s.loadBill(ctx, s.repo, billID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, bill); err != nil {
		return nil, err
	}
	st, err := s.loadState(ctx, s.repo, bill)
	if err != nil {
		return nil, err
	}
	return st.detail(), nil
}

// List returns report rows visible to actor. Filters narrow the actor's scope;
// they never widen it.
func (s *service) List(ctx context.Context, actor auth.Actor, query ListQuery) ([]ReportRow, error) {
	q, err := query.normalized()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	sc := scopeFor(actor)
	if !sc.all && sc.artistID == nil && sc.branchID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "actor has no bill scope")
	}
	rows, err := s.repo.Report(ctx, ReportQuery{ListQuery: q, scope: sc})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bills")
	}
	return rows, nil
}
