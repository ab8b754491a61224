package wallet

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/inkledger-backend/pkg/db/models"
	"github.com/angelmondragon/inkledger-backend/pkg/enums"
	"github.com/angelmondragon/inkledger-backend/pkg/pagination"
)

// Repository persists member balances and ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindMember(ctx context.Context, memberID uuid.UUID) (*models.Member, error)
	// AdjustBalance applies both deltas. A debit is applied only when the
	// resulting balance stays non-negative; credits always apply. It reports
	// whether a row was updated.
	AdjustBalance(ctx context.Context, memberID uuid.UUID, balanceDelta, spentDelta int64) (bool, error)
	InsertEntry(ctx context.Context, entry *models.WalletLedgerEntry) error
	DeleteEntry(ctx context.Context, entryID uuid.UUID) error
	FindCandidates(ctx context.Context, q CandidateQuery) ([]models.WalletLedgerEntry, error)
	// ListEntries returns up to limit entries older than cursor, newest first.
	ListEntries(ctx context.Context, memberID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.WalletLedgerEntry, error)
}

// CandidateQuery narrows the ledger entries a reversal may delete.
type CandidateQuery struct {
	MemberID  uuid.UUID
	EntryType enums.WalletEntryType
	Amount    int64
	Operators []uuid.UUID
	From      time.Time
	To        time.Time
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a wallet repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindMember(ctx context.Context, memberID uuid.UUID) (*models.Member, error) {
	var member models.Member
	if err := r.db.WithContext(ctx).Where("id = ?", memberID).First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repository) AdjustBalance(ctx context.Context, memberID uuid.UUID, balanceDelta, spentDelta int64) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.Member{}).Where("id = ?", memberID)
	if balanceDelta < 0 {
		query = query.Where("stored_value_balance + ? >= 0", balanceDelta)
	}
	res := query.Updates(map[string]any{
			"stored_value_balance": gorm.Expr("stored_value_balance + ?", balanceDelta),
			"total_spent":          gorm.Expr("total_spent + ?", spentDelta),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) InsertEntry(ctx context.Context, entry *models.WalletLedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) DeleteEntry(ctx context.Context, entryID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", entryID).Delete(&models.WalletLedgerEntry{}).Error
}

// FindCandidates filters on exact columns in SQL; the time window is applied
// by the caller so the comparison does not depend on driver time encoding.
func (r *repository) FindCandidates(ctx context.Context, q CandidateQuery) ([]models.WalletLedgerEntry, error) {
	if len(q.Operators) == 0 {
		return nil, nil
	}
	var rows []models.WalletLedgerEntry
	err := r.db.WithContext(ctx).
		Where("member_id = ? AND type = ? AND amount = ?", q.MemberID, q.EntryType, q.Amount).
		Where("operator_id IN ?", q.Operators).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, row := range rows {
		if row.OccurredAt.Before(q.From) || row.OccurredAt.After(q.To) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (r *repository) ListEntries(ctx context.Context, memberID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.WalletLedgerEntry, error) {
	query := r.db.WithContext(ctx).Where("member_id = ?", memberID)
	if cursor != nil {
		query = query.Where("(occurred_at, id) < (?, ?)", cursor.At, cursor.ID)
	}
	var rows []models.WalletLedgerEntry
	err := query.Order("occurred_at DESC, id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}
