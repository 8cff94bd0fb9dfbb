package billing

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/subledger/backend/internal/domain/billing"
	"github.com/subledger/backend/internal/domain/shared"
)

func newSchedulerFixture(channel billing.NotificationChannel, today time.Time) (*NotificationScheduler, *ledgerMocks, *recordingPublisher) {
	m := newLedgerMocks()
	events := &recordingPublisher{}
	cfg := billing.DefaultBillingConfig()
	cfg.DueDay = 10
	s := NewNotificationScheduler(m.customers, m.installments, m.notifications, staticConfig{cfg: cfg},
		channel, events, shared.NewFixedClock(today), nil, nil)
	return s, m, events
}

func TestNotificationScheduler_EvaluateCycle_SkipsAlreadyLogged(t *testing.T) {
	s, m, events := newSchedulerFixture(nil, date(2024, 3, 5))
	c := newTestCustomer(t)
	m.customers.On("FindByID", mock.Anything, c.ID).Return(c, nil)
	m.installments.On("FindByCustomer", mock.Anything, c.ID).Return([]billing.Installment{}, nil)
	m.notifications.On("InsertIfAbsent", mock.Anything, mock.Anything).Return(true, nil).Once()
	m.notifications.On("InsertIfAbsent", mock.Anything, mock.Anything).Return(false, nil).Once()

	first, err := s.EvaluateCycle(t.Context(), c.ID, date(2024, 3, 5))
	require.NoError(t, err)
	second, err := s.EvaluateCycle(t.Context(), c.ID, date(2024, 3, 5))
	require.NoError(t, err)

	require.Len(t, first, 1)
	assert.Equal(t, billing.NotificationKindReminder, first[0].Kind)
	assert.Equal(t, date(2024, 3, 10), first[0].DueDate)
	assert.Equal(t, billing.DeliveryStatusPending, first[0].Status)
	assert.Empty(t, second)
	assert.Equal(t, []string{billing.EventTypeNotificationEmitted}, events.types())
}

func TestNotificationScheduler_EvaluateCycle_UnknownCustomer(t *testing.T) {
	s, m, _ := newSchedulerFixture(nil, date(2024, 3, 5))
	id := uuid.New()
	m.customers.On("FindByID", mock.Anything, id).Return(nil, shared.ErrNotFound)

	_, err := s.EvaluateCycle(t.Context(), id, date(2024, 3, 5))
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestNotificationScheduler_RunDaily_RecordsDeliveryOutcome(t *testing.T) {
	channel := new(mockChannel)
	s, m, _ := newSchedulerFixture(channel, date(2024, 3, 5))
	ok := newTestCustomer(t)
	failing, err := billing.NewCustomer("Bruno", ok.PlanPrice, date(2024, 1, 5))
	require.NoError(t, err)
	failing.SetContact("+5215550001", "")

	m.customers.On("FindIDsByStatus", mock.Anything, []billing.CustomerStatus{billing.CustomerStatusActive}).
		Return([]uuid.UUID{ok.ID, failing.ID}, nil)
	for _, c := range []*billing.Customer{ok, failing} {
		m.customers.On("FindByID", mock.Anything, c.ID).Return(c, nil)
		m.installments.On("FindByCustomer", mock.Anything, c.ID).Return([]billing.Installment{}, nil)
	}
	m.notifications.On("InsertIfAbsent", mock.Anything, mock.Anything).Return(true, nil)
	channel.On("Deliver", mock.Anything, mock.MatchedBy(func(n billing.Notice) bool { return n.CustomerName == "Ana" })).Return(nil)
	channel.On("Deliver", mock.Anything, mock.MatchedBy(func(n billing.Notice) bool { return n.CustomerName == "Bruno" })).
		Return(errors.New("gateway timeout"))

	var statuses []billing.NotificationEvent
	m.notifications.On("UpdateStatus", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		statuses = append(statuses, *args.Get(1).(*billing.NotificationEvent))
	}).Return(nil)

	report, err := s.RunDaily(t.Context())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []uuid.UUID{failing.ID}, report.FailedIDs)
	assert.Equal(t, 2, report.Affected)

	require.Len(t, statuses, 2)
	byCustomer := map[uuid.UUID]billing.NotificationEvent{}
	for _, e := range statuses {
		byCustomer[e.CustomerID] = e
	}
	assert.Equal(t, billing.DeliveryStatusSent, byCustomer[ok.ID].Status)
	assert.NotNil(t, byCustomer[ok.ID].DeliveredAt)
	assert.Equal(t, billing.DeliveryStatusFailed, byCustomer[failing.ID].Status)
	assert.Equal(t, "gateway timeout", byCustomer[failing.ID].LastError)
	channel.AssertExpectations(t)
}

func TestNotificationScheduler_RunDaily_WithoutChannelLeavesPending(t *testing.T) {
	s, m, _ := newSchedulerFixture(nil, date(2024, 3, 5))
	c := newTestCustomer(t)
	m.customers.On("FindIDsByStatus", mock.Anything, mock.Anything).Return([]uuid.UUID{c.ID}, nil)
	m.customers.On("FindByID", mock.Anything, c.ID).Return(c, nil)
	m.installments.On("FindByCustomer", mock.Anything, c.ID).Return([]billing.Installment{}, nil)
	m.notifications.On("InsertIfAbsent", mock.Anything, mock.Anything).Return(true, nil)

	report, err := s.RunDaily(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Affected)
	assert.False(t, report.HasFailures())
	m.notifications.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
}

func TestNotificationScheduler_RunDaily_IsolatesCustomerFailures(t *testing.T) {
	s, m, _ := newSchedulerFixture(nil, date(2024, 3, 5))
	broken, healthy := uuid.New(), newTestCustomer(t)
	m.customers.On("FindIDsByStatus", mock.Anything, mock.Anything).Return([]uuid.UUID{broken, healthy.ID}, nil)
	m.customers.On("FindByID", mock.Anything, broken).Return(nil, errors.New("connection reset"))
	m.customers.On("FindByID", mock.Anything, healthy.ID).Return(healthy, nil)
	m.installments.On("FindByCustomer", mock.Anything, healthy.ID).Return([]billing.Installment{}, nil)
	m.notifications.On("InsertIfAbsent", mock.Anything, mock.Anything).Return(true, nil)

	report, err := s.RunDaily(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, []uuid.UUID{broken}, report.FailedIDs)
	assert.Equal(t, 1, report.Affected)
}

func TestNotificationScheduler_Acknowledge(t *testing.T) {
	s, m, _ := newSchedulerFixture(nil, date(2024, 3, 6))
	event := billing.NewNotificationEvent(uuid.New(),
		billing.NotificationCandidate{Kind: billing.NotificationKindReminder, DueDate: date(2024, 3, 10)}, date(2024, 3, 5))
	m.notifications.On("FindByID", mock.Anything, event.ID).Return(event, nil)
	m.notifications.On("UpdateStatus", mock.Anything, event).Return(nil)

	acked, err := s.Acknowledge(t.Context(), event.ID, billing.DeliveryStatusSent, "")
	require.NoError(t, err)
	assert.Equal(t, billing.DeliveryStatusSent, acked.Status)

	_, err = s.Acknowledge(t.Context(), event.ID, billing.DeliveryStatusFailed, "late")
	assert.ErrorIs(t, err, shared.NewDomainError(shared.CodeInvalidState, ""))

	missing := uuid.New()
	m.notifications.On("FindByID", mock.Anything, missing).Return(nil, shared.ErrNotFound)
	_, err = s.Acknowledge(t.Context(), missing, billing.DeliveryStatusSent, "")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
