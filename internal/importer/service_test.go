package importer

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_StartAndGet(t *testing.T) {
	svc := NewService(newFakeStore(), zerolog.Nop())

	s, err := svc.Start(SessionOptions{UserID: "u1", AccountID: "visa"})
	require.NoError(t, err)

	got, err := svc.Get("u1", s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = svc.Get("u2", s.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound, "sessions are private to their user")
	_, err = svc.Get("u1", "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestService_Discard(t *testing.T) {
	svc := NewService(newFakeStore(), zerolog.Nop())
	s, err := svc.Start(SessionOptions{UserID: "u1"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Discard("u2", s.ID()), ErrSessionNotFound)
	require.NoError(t, svc.Discard("u1", s.ID()))
	_, err = svc.Get("u1", s.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestService_OneCommitPerUser(t *testing.T) {
	store := newFakeStore()
	store.gate = make(chan struct{})
	store.entered = make(chan struct{})
	svc := NewService(store, zerolog.Nop())

	s, err := svc.Start(SessionOptions{UserID: "u1", AccountID: "visa"})
	require.NoError(t, err)
	require.NoError(t, s.Upload("c.csv", readFixture(t, "chase_checking.csv")))
	_, err = s.Preview(context.Background())
	require.NoError(t, err)

	second, err := svc.Start(SessionOptions{UserID: "u1", AccountID: "visa"})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Commit(context.Background(), "u1", s.ID())
		done <- err
	}()
	<-store.entered

	_, err = svc.Start(SessionOptions{UserID: "u1"})
	assert.ErrorIs(t, err, ErrImportInProgress)
	_, err = svc.Commit(context.Background(), "u1", second.ID())
	assert.ErrorIs(t, err, ErrImportInProgress)
	assert.ErrorIs(t, svc.Discard("u1", s.ID()), ErrBusy)

	// Other users are not blocked.
	_, err = svc.Start(SessionOptions{UserID: "u2"})
	assert.NoError(t, err)

	close(store.gate)
	require.NoError(t, <-done)

	_, err = svc.Start(SessionOptions{UserID: "u1"})
	assert.NoError(t, err)
	assert.ErrorIs(t, svc.Discard("u1", s.ID()), ErrSessionNotFound, "committed sessions are forgotten")
}

func TestService_ForgetsFinishedSessions(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, zerolog.Nop())
	ctx := context.Background()

	s, err := svc.Start(SessionOptions{UserID: "u1", AccountID: "visa"})
	require.NoError(t, err)
	require.NoError(t, s.Upload("c.csv", readFixture(t, "chase_checking.csv")))
	_, err = s.Preview(ctx)
	require.NoError(t, err)

	summary, err := svc.Commit(ctx, "u1", s.ID())
	require.NoError(t, err)
	assert.Equal(t, 6, summary.ImportedCount)

	_, err = svc.Get("u1", s.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.Commit(ctx, "u1", s.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	require.Len(t, store.batches, 1)
	assert.Equal(t, s.Batch().ID, store.batches[0].ID)
}

func TestService_KeepsSessionAfterRefusedCommit(t *testing.T) {
	svc := NewService(newFakeStore(), zerolog.Nop())
	s, err := svc.Start(SessionOptions{UserID: "u1", AccountID: "visa"})
	require.NoError(t, err)

	_, err = svc.Commit(context.Background(), "u1", s.ID())
	var se *StateError
	require.ErrorAs(t, err, &se)

	got, err := svc.Get("u1", s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)
}

func TestService_CommitUnknownSession(t *testing.T) {
	svc := NewService(newFakeStore(), zerolog.Nop())
	_, err := svc.Commit(context.Background(), "u1", "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
