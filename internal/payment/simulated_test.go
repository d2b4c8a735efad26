package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatedProvider_Handshake(t *testing.T) {
	sut := NewSimulatedProvider(AlwaysApprove{})

	id, err := sut.CreateTransaction(context.Background(), dec("215"), "USD")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, sut.Approve(context.Background(), id))

	details, err := sut.Capture(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, details.Amount.Equal(dec("215")))
	assert.Equal(t, "USD", details.Currency)
	assert.Equal(t, id, details.ProviderOrderID)
}

func TestSimulatedProvider_CaptureRequiresApproval(t *testing.T) {
	sut := NewSimulatedProvider(AlwaysApprove{})

	id, err := sut.CreateTransaction(context.Background(), dec("10"), "USD")
	require.NoError(t, err)

	_, err = sut.Capture(context.Background(), id)
	require.Error(t, err)
}

func TestSimulatedProvider_DoubleCaptureRejected(t *testing.T) {
	sut := NewSimulatedProvider(AlwaysApprove{})

	id, err := sut.CreateTransaction(context.Background(), dec("10"), "USD")
	require.NoError(t, err)
	require.NoError(t, sut.Approve(context.Background(), id))
	_, err = sut.Capture(context.Background(), id)
	require.NoError(t, err)

	_, err = sut.Capture(context.Background(), id)
	require.Error(t, err, "funds are pulled at most once")
}

func TestSimulatedProvider_UnknownTransaction(t *testing.T) {
	sut := NewSimulatedProvider(AlwaysApprove{})

	require.ErrorIs(t, sut.Approve(context.Background(), "SIM-404"), ErrTransactionNotFound)
	_, err := sut.Capture(context.Background(), "SIM-404")
	require.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestRandomOutcome_Bounds(t *testing.T) {
	never := RandomOutcome{FailurePercent: 0}
	for i := 0; i < 50; i++ {
		assert.NoError(t, never.Outcome())
	}

	always := RandomOutcome{FailurePercent: 100}
	for i := 0; i < 50; i++ {
		assert.ErrorIs(t, always.Outcome(), ErrProviderDeclined)
	}
}
