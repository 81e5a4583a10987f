package nameregistration

import (
	"context"
	"errors"
	"testing"

	"registration-workflow/internal/common/logger"
	"registration-workflow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishMessage(ctx context.Context, name, correlationKey string, variables map[string]interface{}) error {
	args := m.Called(ctx, name, correlationKey, variables)
	return args.Error(0)
}

func TestZeebeRegistrar_PublishesStepOne(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("PublishMessage", mock.Anything, DefaultMessageName, "T-100",
		mock.MatchedBy(func(vars map[string]interface{}) bool {
			name, ok := vars["nameApplication"].(map[string]interface{})
			return ok && name["proposedName"] == "Acme Widgets" && vars["ownerClientId"] == "C-1"
		})).Return(nil).Once()

	app := models.NewApplication("C-1", "company_registration")
	app.TicketID = "T-100"
	app.Steps[1] = models.StepPayload{"proposedName": "Acme Widgets"}

	r := NewZeebeRegistrar(pub, "", logger.NewTestLogger(t))
	require.NoError(t, r.SubmitProposedName(context.Background(), app))
	pub.AssertExpectations(t)
}

func TestZeebeRegistrar_TicketLessCorrelatesByOwner(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("PublishMessage", mock.Anything, "name-check", "owner:C-1", mock.Anything).
		Return(errors.New("broker unavailable"))

	app := models.NewApplication("C-1", "company_registration")

	r := NewZeebeRegistrar(pub, "name-check", logger.NewTestLogger(t))
	err := r.SubmitProposedName(context.Background(), app)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner:C-1")
}
