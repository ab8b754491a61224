package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/inkledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/inkledger-backend/pkg/db/models"
	"github.com/angelmondragon/inkledger-backend/pkg/enums"
)

func TestEmitWritesEnvelopeInsideTransaction(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	svc := NewService(repo, nil)
	billID := uuid.New()
	branchID := uuid.New()

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventBillCreated,
			AggregateType: enums.AggregateBill,
			AggregateID:   billID,
			Actor:         &ActorRef{UserID: uuid.New(), BranchID: &branchID, Role: "BOSS"},
			Data:          map[string]any{"billTotal": 1200},
		})
	})
	require.NoError(t, err)

	rows, err := repo.ListByAggregate(nil, enums.AggregateBill, billID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, &branchID, envelope.Actor.BranchID)
	assert.JSONEq(t, `{"billTotal":1200}`, string(envelope.Data))
}

func TestEmitRolledBackWithTransaction(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	svc := NewService(repo, nil)
	billID := uuid.New()

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventBillVoided,
			AggregateType: enums.AggregateBill,
			AggregateID:   billID,
			Data:          map[string]any{},
		}); err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)

	rows, err := repo.ListByAggregate(nil, enums.AggregateBill, billID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestEmitIfNotExistsQueuesOnce(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	svc := NewService(repo, nil)
	billID := uuid.New()
	event := DomainEvent{
		EventType:     enums.EventBillSettled,
		AggregateType: enums.AggregateBill,
		AggregateID:   billID,
		Data:          map[string]any{},
	}

	for i := 0; i < 2; i++ {
		require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
			return svc.EmitIfNotExists(context.Background(), tx, event)
		}))
	}

	rows, err := repo.ListByAggregate(nil, enums.AggregateBill, billID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestFetchUnpublishedSkipsPublishedAndTerminalRows(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())

	insert := func() uuid.UUID {
		row := models.OutboxEvent{
			EventType:     enums.EventBillCreated,
			AggregateType: enums.AggregateBill,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
		}
		require.NoError(t, client.DB().Create(&row).Error)
		return row.ID
	}
	published := insert()
	terminal := insert()
	failing := insert()
	pending := insert()

	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := repo.MarkPublishedTx(tx, published); err != nil {
			return err
		}
		if err := repo.MarkTerminalTx(tx, terminal, errors.New("bad payload"), 3); err != nil {
			return err
		}
		return repo.MarkFailedTx(tx, failing, errors.New("timeout"))
	}))

	var rows []models.OutboxEvent
	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		var err error
		rows, err = repo.FetchUnpublishedForPublish(tx, 10, 3)
		return err
	}))

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{failing, pending}, ids)
	for _, row := range rows {
		if row.ID == failing {
			assert.Equal(t, 1, row.AttemptCount)
			require.NotNil(t, row.LastError)
			assert.Equal(t, "timeout", *row.LastError)
		}
	}
}

func TestDLQInsertTruncatesMessage(t *testing.T) {
	client := dbtest.Open(t)
	dlq := NewDLQRepository(client.DB())
	eventID := uuid.New()
	long := make([]byte, maxDLQErrorLen+200)
	for i := range long {
		long[i] = 'x'
	}
	msg := string(long)

	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return dlq.InsertTx(tx, models.OutboxDLQ{
			EventID:       eventID,
			EventType:     enums.EventBillDeleted,
			AggregateType: enums.AggregateBill,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			ErrorReason:   enums.OutboxDLQReasonNonRetryable,
			ErrorMessage:  &msg,
		})
	}))

	row, err := dlq.FindByEventID(context.Background(), eventID)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Len(t, *row.ErrorMessage, maxDLQErrorLen)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, row.ErrorReason)

	missing, err := dlq.FindByEventID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDeletePublishedBeforeKeepsRecentAndRetryingRows(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	old := time.Now().UTC().Add(-48 * time.Hour)

	insert := func(publishedAt *time.Time, attempts int) uuid.UUID {
		row := models.OutboxEvent{
			EventType:     enums.EventBillCreated,
			AggregateType: enums.AggregateBill,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
		}
		require.NoError(t, client.DB().Create(&row).Error)
		require.NoError(t, client.DB().Model(&models.OutboxEvent{}).Where("id = ?", row.ID).Updates(map[string]any{
			"created_at":    old,
			"published_at":  publishedAt,
			"attempt_count": attempts,
		}).Error)
		return row.ID
	}
	recent := time.Now().UTC()

	oldPublished := insert(&old, 1)
	recentPublished := insert(&recent, 1)
	parked := insert(nil, 3)
	retrying := insert(nil, 1)

	deleted, err := repo.DeletePublishedBefore(context.Background(), nil, time.Now().UTC().Add(-24*time.Hour), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	var remaining []models.OutboxEvent
	require.NoError(t, client.DB().Find(&remaining).Error)
	ids := make([]uuid.UUID, 0, len(remaining))
	for _, row := range remaining {
		ids = append(ids, row.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{recentPublished, retrying}, ids)
	assert.NotContains(t, ids, oldPublished)
	assert.NotContains(t, ids, parked)
}

func TestDeletePublishedBeforeKeepsHistoryOfUndeliveredBill(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	old := time.Now().UTC().Add(-48 * time.Hour)
	billID := uuid.New()

	insert := func(eventType enums.OutboxEventType, publishedAt *time.Time, attempts int) uuid.UUID {
		row := models.OutboxEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateBill,
			AggregateID:   billID,
			Payload:       json.RawMessage(`{}`),
		}
		require.NoError(t, client.DB().Create(&row).Error)
		require.NoError(t, client.DB().Model(&models.OutboxEvent{}).Where("id = ?", row.ID).Updates(map[string]any{
			"created_at":    old,
			"published_at":  publishedAt,
			"attempt_count": attempts,
		}).Error)
		return row.ID
	}
	created := insert(enums.EventBillCreated, &old, 1)
	settled := insert(enums.EventBillSettled, nil, 1)

	deleted, err := repo.DeletePublishedBefore(context.Background(), nil, time.Now().UTC().Add(-24*time.Hour), 3)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	require.NoError(t, repo.MarkPublishedTx(client.DB(), settled))
	deleted, err = repo.DeletePublishedBefore(context.Background(), nil, time.Now().UTC().Add(-24*time.Hour), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	rows, err := repo.ListByAggregate(nil, enums.AggregateBill, billID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, settled, rows[0].ID)
	assert.NotEqual(t, created, rows[0].ID)
}

func TestDLQDeleteFailedBefore(t *testing.T) {
	client := dbtest.Open(t)
	dlq := NewDLQRepository(client.DB())
	now := time.Now().UTC()

	for _, failedAt := range []time.Time{now.Add(-100 * 24 * time.Hour), now.Add(-time.Hour)} {
		require.NoError(t, dlq.InsertTx(client.DB(), models.OutboxDLQ{
			EventID:       uuid.New(),
			EventType:     enums.EventBillSettled,
			AggregateType: enums.AggregateBill,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
			FailedAt:      failedAt,
		}))
	}

	deleted, err := dlq.DeleteFailedBefore(context.Background(), nil, now.Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	rows, err := dlq.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
