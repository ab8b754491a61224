package splitrules

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/inkledger-backend/pkg/auth"
	"github.com/angelmondragon/inkledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/inkledger-backend/pkg/errors"
	"github.com/angelmondragon/inkledger-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service resolves and maintains the current split rule per artist. The newest
// rule wins; no effective dating is applied.
type Service interface {
	// Resolve returns nil when artistID is nil or the artist has no usable rule.
	Resolve(ctx context.Context, tx *gorm.DB, artistID *uuid.UUID) (*Rule, error)
	Get(ctx context.Context, artistID uuid.UUID) (*Rule, error)
	Set(ctx context.Context, actor auth.Actor, artistID uuid.UUID, rule Rule) (*Rule, error)
}

type service struct {
	repo Repository
	tx   txRunner
	logg *logger.Logger
}

// NewService builds a split rule service.
func NewService(repo Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("split rule repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, logg: logg}, nil
}

func (s *service) Resolve(ctx context.Context, tx *gorm.DB, artistID *uuid.UUID) (*Rule, error) {
	if artistID == nil || *artistID == uuid.Nil {
		return nil, nil
	}
	row, err := s.repo.WithTx(tx).Latest(ctx, *artistID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load split rule")
	}
	rule, ok := Normalize(row.ArtistRateBps, row.ShopRateBps)
	if !ok {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "artist_id", artistID.String()), "split rule carries no ratio; allocating nothing")
		}
		return nil, nil
	}
	return &rule, nil
}

func (s *service) Get(ctx context.Context, artistID uuid.UUID) (*Rule, error) {
	if artistID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "artist id required")
	}
	rule, err := s.Resolve(ctx, nil, &artistID)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "split rule not found")
	}
	return rule, nil
}

func (s *service) Set(ctx context.Context, actor auth.Actor, artistID uuid.UUID, rule Rule) (*Rule, error) {
	if !actor.IsBoss() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the studio owner may change split rules")
	}
	if artistID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "artist id required")
	}
	if !rule.Validate() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rates must be within 0..10000 and sum to 10000").
			WithDetails(map[string]any{"artistRateBps": rule.ArtistRateBps, "shopRateBps": rule.ShopRateBps})
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		row := &models.SplitRule{
			ArtistID:      artistID,
			ArtistRateBps: rule.ArtistRateBps,
			ShopRateBps:   rule.ShopRateBps,
			CreatedBy:     actor.ID,
		}
		if err := s.repo.WithTx(tx).ReplaceForArtist(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace split rule")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"artist_id":       artistID.String(),
			"artist_rate_bps": rule.ArtistRateBps,
			"actor_id":        actor.ID.String(),
		})
		s.logg.Info(logCtx, "split rule replaced")
	}
	return &rule, nil
}
