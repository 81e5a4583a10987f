package guard

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"registration-workflow/internal/common/config"
	"registration-workflow/internal/common/errors"
	"registration-workflow/internal/common/logger"
	"registration-workflow/internal/models"
	"registration-workflow/internal/registration/draft"
	"registration-workflow/internal/registration/fulfillment"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeStore struct {
	mu      sync.Mutex
	records map[string]*models.Application
	saves   int
	block   chan struct{}
	entered chan struct{}
	fail    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*models.Application)}
}

func (s *fakeStore) Get(_ context.Context, ticketID string) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.records[ticketID]
	if !ok {
		return nil, errors.NewDraftNotFoundError(ticketID)
	}
	return app.Clone(), nil
}

func (s *fakeStore) Save(_ context.Context, ticketID string, app *models.Application, meta draft.SaveMeta) (string, error) {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.fail != nil {
		return "", s.fail
	}
	if ticketID == "" {
		ticketID = "T-NEW"
	}
	stored := app.Clone()
	stored.TicketID = ticketID
	if meta.Final {
		stored.Status = models.StatusSubmitted
	}
	s.records[ticketID] = stored
	return ticketID, nil
}

type mockClearer struct {
	mock.Mock
}

func (m *mockClearer) ClearTransient(ctx context.Context, ownerID, ticketID string) error {
	args := m.Called(ctx, ownerID, ticketID)
	return args.Error(0)
}

var testRoutes = config.RoutesConfig{
	Dashboard: "/dashboard",
	AdminList: "/admin/registrations",
}

func ticketedApp() *models.Application {
	app := models.NewApplication("C-1", "company_registration")
	app.TicketID = "T-100"
	for i := 1; i <= 3; i++ {
		app.Steps[i] = models.StepPayload{"done": true}
	}
	return app
}

// ==========================
// Idempotency
// ==========================

func TestGuard_ConcurrentSubmitWritesOnce(t *testing.T) {
	store := newFakeStore()
	store.block = make(chan struct{})
	store.entered = make(chan struct{}, 2)
	clearer := &mockClearer{}
	clearer.On("ClearTransient", mock.Anything, "C-1", "T-100").Return(nil).Once()

	g := New(NewMemoryLocker(), store, clearer, testRoutes, logger.NewTestLogger(t))
	req := SubmitRequest{Application: ticketedApp(), Actor: fulfillment.RoleApplicant}

	type outcome struct {
		res *Result
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		res, err := g.Submit(context.Background(), req)
		first <- outcome{res, err}
	}()

	<-store.entered

	_, err := g.Submit(context.Background(), req)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrAlreadyInProgress))

	close(store.block)
	out := <-first
	require.NoError(t, out.err)
	assert.Equal(t, "T-100", out.res.TicketID)
	assert.Equal(t, "/dashboard", out.res.Route)

	assert.Equal(t, 1, store.saves)
	assert.Len(t, store.records, 1)
	clearer.AssertExpectations(t)
}

func TestGuard_RetryAfterFailureIsAllowed(t *testing.T) {
	store := newFakeStore()
	store.fail = stderrors.New("backend rejected")
	clearer := &mockClearer{}

	g := New(NewMemoryLocker(), store, clearer, testRoutes, logger.NewTestLogger(t))
	req := SubmitRequest{Application: ticketedApp(), Actor: fulfillment.RoleApplicant}

	_, err := g.Submit(context.Background(), req)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrSubmitFailed))
	clearer.AssertNotCalled(t, "ClearTransient", mock.Anything, mock.Anything, mock.Anything)

	store.fail = nil
	clearer.On("ClearTransient", mock.Anything, "C-1", "T-100").Return(nil)

	res, err := g.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "T-100", res.TicketID)
	assert.Equal(t, 2, store.saves)
}

// ==========================
// Routing and transient state
// ==========================

func TestGuard_AdminKeepsTransientStateAndUsesClose(t *testing.T) {
	store := newFakeStore()
	clearer := &mockClearer{}
	g := New(NewMemoryLocker(), store, clearer, testRoutes, logger.NewTestLogger(t))

	var closedWith string
	res, err := g.Submit(context.Background(), SubmitRequest{
		Application: ticketedApp(),
		Actor:       fulfillment.RoleAdmin,
		Close:       func(ticketID string) { closedWith = ticketID },
	})
	require.NoError(t, err)

	assert.True(t, res.Closed)
	assert.Empty(t, res.Route)
	assert.Equal(t, "T-100", closedWith)
	clearer.AssertNotCalled(t, "ClearTransient", mock.Anything, mock.Anything, mock.Anything)
}

func TestGuard_AdminWithoutCloseGoesToAdminList(t *testing.T) {
	g := New(NewMemoryLocker(), newFakeStore(), &mockClearer{}, testRoutes, logger.NewTestLogger(t))

	res, err := g.Submit(context.Background(), SubmitRequest{Application: ticketedApp(), Actor: fulfillment.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, "/admin/registrations", res.Route)
	assert.False(t, res.Closed)
}

func TestGuard_AdminScreenLeftBeforeWriteFinished(t *testing.T) {
	g := New(NewMemoryLocker(), newFakeStore(), &mockClearer{}, testRoutes, logger.NewTestLogger(t))

	calls := 0
	res, err := g.Submit(context.Background(), SubmitRequest{
		Application: ticketedApp(),
		Actor:       fulfillment.RoleAdmin,
		Close:       func(string) { calls++ },
		Current:     func() bool { return false },
	})
	require.NoError(t, err)

	assert.Equal(t, 0, calls)
	assert.False(t, res.Closed)
	assert.Empty(t, res.Route)
	assert.Equal(t, "T-100", res.TicketID)
}

func TestKey(t *testing.T) {
	app := models.NewApplication("C-1", "company_registration")
	assert.Equal(t, "C-1:submitting_new", Key(SubmitRequest{Application: app, Actor: fulfillment.RoleApplicant}))
	assert.Equal(t, "admin-7:submitting_new", Key(SubmitRequest{Application: app, Actor: fulfillment.RoleAdmin, AdminID: "admin-7"}))

	app.TicketID = "T-100"
	assert.Equal(t, "submitting_T-100", Key(SubmitRequest{Application: app, Actor: fulfillment.RoleAdmin, AdminID: "admin-7"}))
}

// ==========================
// Lockers
// ==========================

func TestRedisLocker_TestAndSet(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	locker := NewRedisLocker(client, time.Minute)
	ctx := context.Background()

	ok, err := locker.TryAcquire(ctx, "submitting_T-100")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = locker.TryAcquire(ctx, "submitting_T-100")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, locker.Release(ctx, "submitting_T-100"))

	ok, err = locker.TryAcquire(ctx, "submitting_T-100")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = locker.TryAcquire(ctx, "submitting_T-100")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLocker_ReleaseKeepsMarkerTakenOverAfterExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	first := NewRedisLocker(client, time.Minute)
	second := NewRedisLocker(client, time.Minute)
	ctx := context.Background()

	ok, err := first.TryAcquire(ctx, "submitting_T-100")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = second.TryAcquire(ctx, "submitting_T-100")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, first.Release(ctx, "submitting_T-100"))
	assert.True(t, mr.Exists("registration:guard:submitting_T-100"))

	ok, err = first.TryAcquire(ctx, "submitting_T-100")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, second.Release(ctx, "submitting_T-100"))
	assert.False(t, mr.Exists("registration:guard:submitting_T-100"))
}

func TestGuard_LockerFailureDoesNoIO(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()

	store := newFakeStore()
	g := New(NewRedisLocker(client, time.Minute), store, &mockClearer{}, testRoutes, logger.NewTestLogger(t))

	_, err = g.Submit(context.Background(), SubmitRequest{Application: ticketedApp(), Actor: fulfillment.RoleApplicant})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrSubmitFailed))
	assert.Equal(t, 0, store.saves)
}
