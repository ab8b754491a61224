package splitrules

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/inkledger-backend/pkg/auth"
	"github.com/angelmondragon/inkledger-backend/pkg/db"
	"github.com/angelmondragon/inkledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/inkledger-backend/pkg/db/models"
	"github.com/angelmondragon/inkledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/inkledger-backend/pkg/errors"
)

func newTestService(t *testing.T) (Service, *db.Client) {
	t.Helper()
	client := dbtest.Open(t)
	svc, err := NewService(NewRepository(client.DB()), client, nil)
	require.NoError(t, err)
	return svc, client
}

var boss = auth.Actor{ID: uuid.New(), Role: enums.ActorRoleBoss}

func TestResolveWithoutArtistIsNone(t *testing.T) {
	svc, _ := newTestService(t)
	rule, err := svc.Resolve(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, rule)

	missing := uuid.New()
	rule, err = svc.Resolve(context.Background(), nil, &missing)
	require.NoError(t, err)
	assert.Nil(t, rule)
}

func TestSetKeepsSingleLatestRule(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	artist := uuid.New()

	_, err := svc.Set(ctx, boss, artist, Rule{ArtistRateBps: 6000, ShopRateBps: 4000})
	require.NoError(t, err)
	_, err = svc.Set(ctx, boss, artist, Rule{ArtistRateBps: 7000, ShopRateBps: 3000})
	require.NoError(t, err)

	var count int64
	require.NoError(t, client.DB().Model(&models.SplitRule{}).Where("artist_id = ?", artist).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	rule, err := svc.Get(ctx, artist)
	require.NoError(t, err)
	assert.Equal(t, Rule{ArtistRateBps: 7000, ShopRateBps: 3000}, *rule)
}

func TestResolveRenormalizesDriftedNewestRule(t *testing.T) {
	svc, client := newTestService(t)
	artist := uuid.New()
	older := time.Now().Add(-time.Hour)
	require.NoError(t, client.DB().Create(&models.SplitRule{ArtistID: artist, ArtistRateBps: 5000, ShopRateBps: 5000, CreatedBy: boss.ID, CreatedAt: older, UpdatedAt: older}).Error)
	require.NoError(t, client.DB().Create(&models.SplitRule{ArtistID: artist, ArtistRateBps: 60, ShopRateBps: 40, CreatedBy: boss.ID}).Error)

	rule, err := svc.Resolve(context.Background(), nil, &artist)
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, Rule{ArtistRateBps: 6000, ShopRateBps: 4000}, *rule)
}

func TestSetRequiresBossAndValidRates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	artist := uuid.New()

	_, err := svc.Set(ctx, auth.Actor{ID: artist, Role: enums.ActorRoleArtist}, artist, Rule{ArtistRateBps: 9000, ShopRateBps: 1000})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())

	_, err = svc.Set(ctx, boss, artist, Rule{ArtistRateBps: 9000, ShopRateBps: 2000})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = svc.Get(ctx, artist)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}
