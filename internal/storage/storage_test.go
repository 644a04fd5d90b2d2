package storage

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/reminderbot/internal/domain"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "data", "reminders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func mustRecurrence(t *testing.T, s domain.Schedule, message string) domain.Recurrence {
	t.Helper()
	rec, err := domain.NewRecurrence(s, message)
	require.NoError(t, err)
	return rec
}

func TestAddGetRule(t *testing.T) {
	s := newTestStorage(t)

	weekly, err := domain.NewWeekly(domain.Tuesday, "tue", 10, 30)
	require.NoError(t, err)
	rec := mustRecurrence(t, weekly, "Take out the trash")

	before := time.Now().Add(-time.Second)
	id, err := s.AddRule(42, -1001, rec)
	require.NoError(t, err)
	assert.Positive(t, id)

	got, err := s.GetRule(id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, int64(42), got.OwnerID)
	assert.Equal(t, int64(-1001), got.ChannelID)
	assert.Equal(t, rec, got.Recurrence)
	assert.Equal(t, "Every Tue at 10:30", got.Recurrence.Description())
	assert.True(t, got.CreatedAt.After(before))
}

func TestGetMissingRule(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.GetRule(999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRule(t *testing.T) {
	s := newTestStorage(t)

	daily, _ := domain.NewDaily(8, 0)
	id, err := s.AddRule(1, 1, mustRecurrence(t, daily, "Walk"))
	require.NoError(t, err)

	deleted, err := s.DeleteRule(id)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = s.GetRule(id)
	assert.ErrorIs(t, err, ErrNotFound)

	deleted, err = s.DeleteRule(id)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestIDsAreNeverReused(t *testing.T) {
	s := newTestStorage(t)

	daily, _ := domain.NewDaily(8, 0)
	first, err := s.AddRule(1, 1, mustRecurrence(t, daily, "One"))
	require.NoError(t, err)
	_, err = s.DeleteRule(first)
	require.NoError(t, err)

	second, err := s.AddRule(1, 1, mustRecurrence(t, daily, "Two"))
	require.NoError(t, err)
	assert.Greater(t, second, first)
}

func TestListRulesByOwnerNewestFirst(t *testing.T) {
	s := newTestStorage(t)

	daily, _ := domain.NewDaily(8, 0)
	monthly, _ := domain.NewMonthly(3, 11, 0)

	older, err := s.AddRule(7, 7, mustRecurrence(t, daily, "Older"))
	require.NoError(t, err)
	newer, err := s.AddRule(7, 7, mustRecurrence(t, monthly, "Newer"))
	require.NoError(t, err)
	_, err = s.AddRule(8, 8, mustRecurrence(t, daily, "Someone else"))
	require.NoError(t, err)

	rules, err := s.ListRulesByOwner(7)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, newer, rules[0].ID)
	assert.Equal(t, older, rules[1].ID)

	none, err := s.ListRulesByOwner(100)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListAllRules(t *testing.T) {
	s := newTestStorage(t)

	daily, _ := domain.NewDaily(8, 0)
	for owner := int64(1); owner <= 3; owner++ {
		_, err := s.AddRule(owner, owner, mustRecurrence(t, daily, "Hello"))
		require.NoError(t, err)
	}

	rules, err := s.ListAllRules()
	require.NoError(t, err)
	assert.Len(t, rules, 3)
}

func TestRulesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reminders.db")
	s, err := New(path)
	require.NoError(t, err)

	monthly, _ := domain.NewMonthly(31, 9, 0)
	id, err := s.AddRule(5, 6, mustRecurrence(t, monthly, "Pay rent"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetRule(id)
	require.NoError(t, err)
	assert.Equal(t, "On day 31 of the month at 09:00", got.Recurrence.Description())
}

func TestConcurrentAdds(t *testing.T) {
	s := newTestStorage(t)
	daily, _ := domain.NewDaily(8, 0)
	rec := mustRecurrence(t, daily, "Concurrent")

	const n = 20
	var wg sync.WaitGroup
	ids := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := s.AddRule(1, 1, rec)
			assert.NoError(t, err)
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}

	rules, err := s.ListAllRules()
	require.NoError(t, err)
	assert.Len(t, rules, n)
}

func TestPostgresStorage(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	s, err := NewPostgres(dsn)
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	defer s.Close()

	daily, _ := domain.NewDaily(6, 45)
	id, err := s.AddRule(77, 77, mustRecurrence(t, daily, "Stretch"))
	require.NoError(t, err)
	defer s.DeleteRule(id)

	got, err := s.GetRule(id)
	require.NoError(t, err)
	assert.Equal(t, "Daily at 06:45", got.Recurrence.Description())
	assert.Equal(t, "Stretch", got.Recurrence.Message)
}
