package temporal

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/brojonat/soltrack/service/poller"
	"github.com/brojonat/soltrack/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	temporalsdk "go.temporal.io/sdk/temporal"
)

type MockPoller struct {
	mock.Mock
	account solanago.PublicKey
}

func (m *MockPoller) Account() solanago.PublicKey {
	return m.account
}

func (m *MockPoller) ListSignatures(ctx context.Context) ([]solana.SignatureInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]solana.SignatureInfo), args.Error(1)
}

func (m *MockPoller) ProcessSignature(ctx context.Context, info solana.SignatureInfo) (poller.Outcome, error) {
	args := m.Called(ctx, info)
	return args.Get(0).(poller.Outcome), args.Error(1)
}

func newTestActivities(t *testing.T) (*Activities, *MockPoller) {
	t.Helper()
	p := &MockPoller{account: solanago.NewWallet().PublicKey()}
	return NewActivities(p, nil, slog.Default()), p
}

func TestListSignatures(t *testing.T) {
	ctx := context.Background()

	t.Run("returns listed signatures", func(t *testing.T) {
		activities, p := newTestActivities(t)
		sigs := []solana.SignatureInfo{{Signature: "sig1", Slot: 10}, {Signature: "sig2", Slot: 9}}
		p.On("ListSignatures", mock.Anything).Return(sigs, nil)

		result, err := activities.ListSignatures(ctx, PollAccountInput{Account: p.account.String()})
		require.NoError(t, err)
		assert.Equal(t, sigs, result.Signatures)
		p.AssertExpectations(t)
	})

	t.Run("wraps rpc error", func(t *testing.T) {
		activities, p := newTestActivities(t)
		p.On("ListSignatures", mock.Anything).Return(nil, errors.New("connection refused"))

		_, err := activities.ListSignatures(ctx, PollAccountInput{Account: p.account.String()})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("rejects other account", func(t *testing.T) {
		activities, p := newTestActivities(t)
		other := solanago.NewWallet().PublicKey().String()

		_, err := activities.ListSignatures(ctx, PollAccountInput{Account: other})
		require.Error(t, err)

		var appErr *temporalsdk.ApplicationError
		require.True(t, errors.As(err, &appErr))
		assert.True(t, appErr.NonRetryable())
		assert.Equal(t, "AccountMismatch", appErr.Type())
		p.AssertNotCalled(t, "ListSignatures", mock.Anything)
	})
}

func TestProcessSignature(t *testing.T) {
	ctx := context.Background()

	t.Run("passes outcome through", func(t *testing.T) {
		activities, p := newTestActivities(t)
		info := solana.SignatureInfo{Signature: "sig1", Slot: 42}
		p.On("ProcessSignature", mock.Anything, info).Return(poller.OutcomeInserted, nil)

		result, err := activities.ProcessSignature(ctx, ProcessSignatureInput{
			Account:   p.account.String(),
			Signature: info,
		})
		require.NoError(t, err)
		assert.Equal(t, poller.OutcomeInserted, result.Outcome)
		p.AssertExpectations(t)
	})

	t.Run("storage failure is an error", func(t *testing.T) {
		activities, p := newTestActivities(t)
		info := solana.SignatureInfo{Signature: "sig1"}
		p.On("ProcessSignature", mock.Anything, info).Return(poller.Outcome(""), errors.New("db down"))

		_, err := activities.ProcessSignature(ctx, ProcessSignatureInput{
			Account:   p.account.String(),
			Signature: info,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sig1")
		assert.Contains(t, err.Error(), "db down")
	})

	t.Run("rejects other account", func(t *testing.T) {
		activities, p := newTestActivities(t)

		_, err := activities.ProcessSignature(ctx, ProcessSignatureInput{
			Account:   "someone-else",
			Signature: solana.SignatureInfo{Signature: "sig1"},
		})
		require.Error(t, err)
		p.AssertNotCalled(t, "ProcessSignature", mock.Anything, mock.Anything)
	})
}

func TestEnsurePollSchedule(t *testing.T) {
	ctx := context.Background()
	account := solanago.NewWallet().PublicKey().String()

	t.Run("upserts schedule", func(t *testing.T) {
		s := NewMockScheduler()
		require.NoError(t, EnsurePollSchedule(ctx, s, account, 10*time.Second, slog.Default()))

		interval, ok := s.Interval(account)
		require.True(t, ok)
		assert.Equal(t, "10s", interval.String())

		// a second call replaces the interval
		require.NoError(t, EnsurePollSchedule(ctx, s, account, 30*time.Second, slog.Default()))
		interval, _ = s.Interval(account)
		assert.Equal(t, "30s", interval.String())
	})

	t.Run("rejects sub-second interval", func(t *testing.T) {
		s := NewMockScheduler()
		err := EnsurePollSchedule(ctx, s, account, time.Millisecond, slog.Default())
		require.Error(t, err)
		_, ok := s.Interval(account)
		assert.False(t, ok)
	})

	t.Run("propagates scheduler error", func(t *testing.T) {
		s := NewMockScheduler()
		s.SetUpsertError(errors.New("temporal unavailable"))
		err := EnsurePollSchedule(ctx, s, account, 10*time.Second, slog.Default())
		require.Error(t, err)
	})

	t.Run("delete unknown schedule fails", func(t *testing.T) {
		s := NewMockScheduler()
		require.Error(t, s.DeletePollSchedule(ctx, account))
	})
}
