package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newTestStore starts a disposable PostgreSQL container, applies the
// embedded migrations against it, and returns a ready Store.
func newTestStore(t *testing.T) *Store {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("adaptationengine_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	s, err := Open(ctx, Config{
		Host: host, Port: port.Int(), User: "test", Password: "test",
		Database: "adaptationengine_test", SSLMode: "disable",
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	return s
}

func TestStore_JournalRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	details, _ := json.Marshal(map[string]string{"event_name": "cpu_high"})
	err := s.InsertJournalEntry(ctx, JournalEntry{
		StackID:   "stack-1",
		Type:      "event_received",
		Timestamp: time.Now().UTC().Truncate(time.Second),
		Details:   details,
	})
	require.NoError(t, err)

	err = s.ClearJournal(ctx)
	assert.NoError(t, err)
}

func TestStore_ResourceEntryUpsertAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	actions, _ := json.Marshal([]int{0, 3})
	row := ResourceRow{
		ResourceID:        "res-1",
		StackID:           "stack-1",
		EventName:         "cpu_high",
		AgreementID:       "agr-1",
		OrderedActionList: actions,
		Embargo:           60,
	}
	require.NoError(t, s.UpsertResourceEntry(ctx, row))

	got, err := s.ListResourceEntries(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "res-1", got[0].ResourceID)
	assert.Equal(t, 60, got[0].Embargo)

	require.NoError(t, s.DeleteResourceEntry(ctx, "res-1"))

	got, err = s.ListResourceEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_BlacklistedActionsAreIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	raw, _ := json.Marshal(map[string]string{"kind": "Migrate"})
	require.NoError(t, s.RecordBlacklistedAction(ctx, "stack-1", "cpu_high", "hash-1", raw))
	require.NoError(t, s.RecordBlacklistedAction(ctx, "stack-1", "cpu_high", "hash-1", raw))

	got, err := s.ListBlacklistedActions(ctx, "stack-1", "cpu_high")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestStore_Healthy(t *testing.T) {
	s := newTestStore(t)
	assert.True(t, s.Healthy(context.Background()))
}
