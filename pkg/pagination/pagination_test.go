package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsSize(t *testing.T) {
	assert.Equal(t, DefaultLimit, Params{}.Size())
	assert.Equal(t, MaxLimit, Params{Limit: 1000}.Size())
	assert.Equal(t, 7, Params{Limit: 7}.Size())
	assert.Equal(t, 8, Params{Limit: 7}.FetchLimit())
}

func TestCursorRoundTripKeepsNanoseconds(t *testing.T) {
	member := uuid.New()
	c := Cursor{Scope: member, At: time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC), ID: uuid.New()}

	got, err := Decode(c.Encode(), member)
	require.NoError(t, err)
	assert.Equal(t, c, *got)
}

func TestDecodeRejectsForeignAndMalformedCursors(t *testing.T) {
	token := Cursor{Scope: uuid.New(), At: time.Now(), ID: uuid.New()}.Encode()

	_, err := Decode(token, uuid.New())
	assert.ErrorIs(t, err, ErrForeignCursor)

	_, err = Decode("!!", uuid.New())
	assert.Error(t, err)

	empty, err := Decode("  ", uuid.New())
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestTrimEmitsCursorOnlyWhenMoreRowsExist(t *testing.T) {
	member := uuid.New()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	type row struct {
		at time.Time
		id uuid.UUID
	}
	rows := []row{{base.Add(2 * time.Minute), uuid.New()}, {base.Add(time.Minute), uuid.New()}, {base, uuid.New()}}
	key := func(r row) (time.Time, uuid.UUID) { return r.at, r.id }

	page, next := Trim(rows, Params{Limit: 2}, member, key)
	require.Len(t, page, 2)
	c, err := Decode(next, member)
	require.NoError(t, err)
	assert.Equal(t, rows[1].id, c.ID)
	assert.True(t, rows[1].at.Equal(c.At))

	page, next = Trim(rows[:2], Params{Limit: 2}, member, key)
	assert.Len(t, page, 2)
	assert.Empty(t, next)
}
