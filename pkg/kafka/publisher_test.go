package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Astemirdum/library-desk/pkg/circuit_breaker"
	"github.com/Astemirdum/library-desk/pkg/kafka"
	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEventPublisher_Publish(t *testing.T) {
	t.Parallel()
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev kafka.Event
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev.Type != kafka.EventFineIssued || ev.Amount != 15 || ev.LoanID != 7 {
			return errors.New("unexpected event payload")
		}
		if ev.Timestamp.IsZero() {
			return errors.New("timestamp not set")
		}
		return nil
	})

	p := kafka.NewEventPublisher(producer, "", zap.NewNop())
	err := p.Publish(context.Background(), kafka.Event{Type: kafka.EventFineIssued, LoanID: 7, Amount: 15})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestEventPublisher_OpensBreaker(t *testing.T) {
	t.Parallel()
	producer := mocks.NewSyncProducer(t, nil)
	for i := 0; i < 5; i++ {
		producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	}

	p := kafka.NewEventPublisher(producer, "library.test", zap.NewNop())
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.ErrorIs(t, p.Publish(ctx, kafka.Event{Type: kafka.EventLoanCreated, LoanID: 1}), sarama.ErrOutOfBrokers)
	}
	// half of the window failed: further events are dropped without reaching the producer
	require.ErrorIs(t, p.Publish(ctx, kafka.Event{Type: kafka.EventLoanCreated, LoanID: 1}), circuit_breaker.ErrOpenCB)
	require.NoError(t, p.Close())
}

func TestNewPublisher_Disabled(t *testing.T) {
	t.Parallel()
	p, err := kafka.NewPublisher(kafka.Config{}, zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, kafka.NopPublisher{}, p)
	require.NoError(t, p.Publish(context.Background(), kafka.Event{Type: kafka.EventFinePaid}))
}

func TestEvent_Key(t *testing.T) {
	t.Parallel()
	require.Equal(t, "loan-12", kafka.Event{LoanID: 12, MemberID: 3}.Key())
	require.Equal(t, "member-3", kafka.Event{MemberID: 3}.Key())
	require.Equal(t, "FINE_PAID", kafka.Event{Type: kafka.EventFinePaid}.Key())
}
