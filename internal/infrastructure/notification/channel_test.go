package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/subledger/backend/internal/domain/billing"
	"github.com/subledger/backend/internal/domain/shared"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type mockChannel struct {
	mock.Mock
}

func (m *mockChannel) Name() string { return "mock" }

func (m *mockChannel) Deliver(ctx context.Context, notice billing.Notice) error {
	return m.Called(ctx, notice).Error(0)
}

func testNotice() billing.Notice {
	ev := billing.NewNotificationEvent(uuid.New(), billing.NotificationCandidate{
		Kind:    billing.NotificationKindCutoffWarning,
		DueDate: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
	}, time.Now())
	return billing.Notice{Event: *ev, CustomerName: "Ana Ruiz", Text: ev.Message()}
}

func TestLogChannel_Deliver(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ch := NewLogChannel(zap.New(core))

	notice := testNotice()
	assert.NoError(t, ch.Deliver(context.Background(), notice))

	entries := logs.All()
	assert.Len(t, entries, 1)
	assert.Equal(t, notice.Text, entries[0].Message)
	assert.Equal(t, "cutoff_warning", entries[0].ContextMap()["kind"])
}

func TestMultiChannel_Deliver(t *testing.T) {
	notice := testNotice()

	t.Run("one success is enough", func(t *testing.T) {
		failing := new(mockChannel)
		failing.On("Deliver", mock.Anything, notice).Return(errors.New("sms gateway down"))
		ok := new(mockChannel)
		ok.On("Deliver", mock.Anything, notice).Return(nil)

		assert.NoError(t, NewMultiChannel(time.Second, failing, ok).Deliver(context.Background(), notice))
		failing.AssertExpectations(t)
		ok.AssertExpectations(t)
	})

	t.Run("all failing is an adapter error", func(t *testing.T) {
		failing := new(mockChannel)
		failing.On("Deliver", mock.Anything, notice).Return(errors.New("sms gateway down"))

		err := NewMultiChannel(0, failing).Deliver(context.Background(), notice)
		assert.ErrorIs(t, err, shared.ErrExternalAdapter)
		assert.Contains(t, err.Error(), "sms gateway down")
	})

	t.Run("no channels", func(t *testing.T) {
		err := NewMultiChannel(0).Deliver(context.Background(), notice)
		assert.ErrorIs(t, err, shared.ErrExternalAdapter)
	})
}
