package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_CreatesPendingRun(t *testing.T) {
	m := NewManager()
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	run, err := m.Register("run-1", 42, cancel)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, run.Status)
	assert.Equal(t, uint64(42), run.Seed)
}

func TestRegister_RejectsDuplicateID(t *testing.T) {
	m := NewManager()
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := m.Register("run-1", 1, cancel)
	require.NoError(t, err)

	_, err = m.Register("run-1", 2, cancel)
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestTransition_AdvancesPhaseAndStatus(t *testing.T) {
	m := NewManager()
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, _ = m.Register("run-1", 1, cancel)

	require.NoError(t, m.Transition("run-1", StatusRunning, 3))

	run, err := m.Get("run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, run.Status)
	assert.Equal(t, 3, run.CurrentPhase)
}

func TestTransition_RefusesAfterTerminal(t *testing.T) {
	m := NewManager()
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, _ = m.Register("run-1", 1, cancel)

	require.NoError(t, m.Transition("run-1", StatusSucceeded, 10))
	err := m.Transition("run-1", StatusRunning, 4)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestFail_RecordsErrorAndTerminates(t *testing.T) {
	m := NewManager()
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, _ = m.Register("run-1", 1, cancel)

	boom := errors.New("boom")
	require.NoError(t, m.Fail("run-1", boom))

	run, err := m.Get("run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, run.Status)
	assert.ErrorIs(t, run.Err, boom)
	assert.False(t, run.CompletedAt.IsZero())
}

func TestCancelRun_InvokesRegisteredCancelFunc(t *testing.T) {
	m := NewManager()
	ctx, cancel := context.WithCancel(context.Background())
	_, _ = m.Register("run-1", 1, cancel)

	ok := m.CancelRun("run-1")
	assert.True(t, ok)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestCancelRun_ReturnsFalseForUnknownRun(t *testing.T) {
	m := NewManager()
	assert.False(t, m.CancelRun("nonexistent"))
}

func TestActiveRunIDs_ExcludesTerminalRuns(t *testing.T) {
	m := NewManager()
	_, cancelA := context.WithCancel(context.Background())
	_, cancelB := context.WithCancel(context.Background())
	_, _ = m.Register("run-a", 1, cancelA)
	_, _ = m.Register("run-b", 2, cancelB)

	require.NoError(t, m.Transition("run-a", StatusSucceeded, 10))

	active := m.ActiveRunIDs()
	assert.Equal(t, []string{"run-b"}, active)
}

func TestGet_ReturnsNotFoundForUnknownRun(t *testing.T) {
	m := NewManager()
	_, err := m.Get("ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}
