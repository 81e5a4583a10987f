package markers

import (
	"context"
	"errors"
	"testing"
	"time"

	"registration-workflow/internal/common/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func newStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	mr, client := setupRedis(t)
	return mr, NewRedisStore(client, time.Hour, logger.NewTestLogger(t))
}

// ==========================
// Flags
// ==========================

func TestRedisStore_TeamFillFlags(t *testing.T) {
	ctx := context.Background()
	mr, store := newStore(t)

	on, err := store.TeamFill(ctx, "C-1")
	require.NoError(t, err)
	assert.False(t, on)

	require.NoError(t, store.SetTeamFill(ctx, "C-1", true))
	require.NoError(t, store.SetTicketTeamFill(ctx, "T-100", true))

	on, err = store.TeamFill(ctx, "C-1")
	require.NoError(t, err)
	assert.True(t, on)

	on, err = store.TicketTeamFill(ctx, "T-100")
	require.NoError(t, err)
	assert.True(t, on)
	assert.True(t, mr.TTL(keyPrefix+"team_fill_ticket:T-100") > 0)

	require.NoError(t, store.SetTicketTeamFill(ctx, "T-100", false))
	assert.False(t, mr.Exists(keyPrefix+"team_fill_ticket:T-100"))
}

func TestRedisStore_MarkersExpire(t *testing.T) {
	ctx := context.Background()
	mr, store := newStore(t)

	require.NoError(t, store.SetEditingTicket(ctx, "C-1", "T-100"))
	mr.FastForward(2 * time.Hour)

	ticket, err := store.EditingTicket(ctx, "C-1")
	require.NoError(t, err)
	assert.Empty(t, ticket)
}

// ==========================
// On-behalf pair
// ==========================

func TestRedisStore_OnBehalfPair(t *testing.T) {
	ctx := context.Background()
	_, store := newStore(t)

	pair, err := store.OnBehalf(ctx, "admin-1")
	require.NoError(t, err)
	assert.Nil(t, pair)

	require.NoError(t, store.SetOnBehalf(ctx, "admin-1", OnBehalf{ClientID: "C-1", TicketID: "T-100"}))

	pair, err = store.OnBehalf(ctx, "admin-1")
	require.NoError(t, err)
	require.NotNil(t, pair)
	assert.Equal(t, "C-1", pair.ClientID)
	assert.Equal(t, "T-100", pair.TicketID)

	require.NoError(t, store.ClearOnBehalf(ctx, "admin-1"))
	pair, err = store.OnBehalf(ctx, "admin-1")
	require.NoError(t, err)
	assert.Nil(t, pair)
}

// ==========================
// Transient state
// ==========================

func TestRedisStore_ClearTransient(t *testing.T) {
	ctx := context.Background()
	_, store := newStore(t)

	require.NoError(t, store.SetPaymentReference(ctx, "C-1", "pay_123"))
	require.NoError(t, store.SetSelectedPackage(ctx, "C-1", "pvt-ltd-basic"))
	require.NoError(t, store.SetEditingTicket(ctx, "C-1", "T-100"))
	require.NoError(t, store.SetTeamFill(ctx, "C-1", true))

	require.NoError(t, store.ClearTransient(ctx, "C-1", "T-100"))

	ref, err := store.PaymentReference(ctx, "C-1")
	require.NoError(t, err)
	assert.Empty(t, ref)

	pkg, err := store.SelectedPackage(ctx, "C-1")
	require.NoError(t, err)
	assert.Empty(t, pkg)

	ticket, err := store.EditingTicket(ctx, "C-1")
	require.NoError(t, err)
	assert.Empty(t, ticket)

	// team fill is not draft-scoped transient state
	on, err := store.TeamFill(ctx, "C-1")
	require.NoError(t, err)
	assert.True(t, on)
}

func TestRedisStore_ReadFailure(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client, time.Hour, logger.NewTestLogger(t))

	mock.ExpectGet(keyPrefix + "team_fill:C-1").SetErr(errors.New("connection refused"))

	_, err := store.TeamFill(context.Background(), "C-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "team_fill:C-1")
	assert.NoError(t, mock.ExpectationsWereMet())
}
