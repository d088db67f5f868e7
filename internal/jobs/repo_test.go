package jobs

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Insert(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	t.Run("new jobs are pending with zero progress", func(t *testing.T) {
		j := &Job{Type: TypeSummarization, TargetID: 3, OwnerID: 9, Status: StatusRunning, Progress: 40}
		require.NoError(t, s.Insert(ctx, j))
		require.NotEmpty(t, j.ID)

		got, err := s.GetByID(ctx, j.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, got.Status)
		assert.Equal(t, 0, got.Progress)
		assert.Equal(t, uint64(3), got.TargetID)
		assert.NotNil(t, got.Metadata)
		assert.Nil(t, got.ErrorMessage)
	})

	t.Run("unknown type is rejected", func(t *testing.T) {
		err := s.Insert(ctx, &Job{Type: "translation", TargetID: 1})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnknownJobType))
	})

	t.Run("metadata round trips", func(t *testing.T) {
		j := &Job{Type: TypeTranscription, TargetID: 4, Metadata: JSONMap{"file_name": "standup.webm"}}
		require.NoError(t, s.Insert(ctx, j))
		got, err := s.GetByID(ctx, j.ID)
		require.NoError(t, err)
		assert.Equal(t, "standup.webm", got.Metadata.String("file_name"))
	})

	t.Run("missing job", func(t *testing.T) {
		_, err := s.GetByID(ctx, "does-not-exist")
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestStore_ListByStatus_OldestFirst(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t)

	first := insertJob(t, s, clock, TypeTranscription, 1)
	second := insertJob(t, s, clock, TypeSummarization, 2)
	third := insertJob(t, s, clock, TypeCardExtraction, 3)

	got, err := s.ListByStatus(ctx, StatusPending, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{first.ID, second.ID, third.ID}, []string{got[0].ID, got[1].ID, got[2].ID})

	one, err := s.ListByStatus(ctx, StatusPending, 1)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, first.ID, one[0].ID)

	none, err := s.ListByStatus(ctx, StatusRunning, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_ConditionalUpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("exactly one concurrent claimer wins", func(t *testing.T) {
		s, clock := newTestStore(t)
		j := insertJob(t, s, clock, TypeSummarization, 1)

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				ok, err := s.Claim(ctx, j.ID, "worker-"+string(rune('a'+n)))
				assert.NoError(t, err)
				if ok {
					wins.Add(1)
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())

		got, err := s.GetByID(ctx, j.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusRunning, got.Status)
		require.NotNil(t, got.LockedBy)
		assert.NotNil(t, got.StartedAt)
	})

	t.Run("stale expectation affects nothing", func(t *testing.T) {
		s, clock := newTestStore(t)
		j := insertJob(t, s, clock, TypeSummarization, 1)
		ok, err := s.ConditionalUpdateStatus(ctx, j.ID, StatusRunning, StatusCompleted, nil)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := s.GetByID(ctx, j.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, got.Status)
	})

	t.Run("illegal transitions are refused", func(t *testing.T) {
		s, clock := newTestStore(t)
		j := insertJob(t, s, clock, TypeSummarization, 1)
		_, err := s.ConditionalUpdateStatus(ctx, j.ID, StatusPending, StatusCompleted, nil)
		assert.True(t, errors.Is(err, ErrInvalidTransition))
		_, err = s.ConditionalUpdateStatus(ctx, j.ID, StatusFailed, StatusRunning, nil)
		assert.True(t, errors.Is(err, ErrInvalidTransition))
	})

	t.Run("extra fields land with the status change", func(t *testing.T) {
		s, clock := newTestStore(t)
		j := insertJob(t, s, clock, TypeSummarization, 1)
		ok, err := s.ConditionalUpdateStatus(ctx, j.ID, StatusPending, StatusRunning, map[string]any{"progress": 5})
		require.NoError(t, err)
		require.True(t, ok)

		got, err := s.GetByID(ctx, j.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, got.Progress)
		assert.True(t, clock.Now().Equal(got.UpdatedAt))
	})
}

func TestStore_TerminalWritesRequireLock(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t)

	j := insertJob(t, s, clock, TypeCardExtraction, 1)
	ok, err := s.Claim(ctx, j.ID, "worker-a")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Complete(ctx, j.ID, "worker-b", JSONMap{"card_count": 1})
	require.NoError(t, err)
	assert.False(t, ok, "another worker must not finish a job it does not hold")

	ok, err = s.Fail(ctx, j.ID, "worker-a", "boom")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.GetByID(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "boom", got.FailureMessage())
	assert.NotNil(t, got.FinishedAt)

	ok, err = s.Complete(ctx, j.ID, "worker-a", nil)
	require.NoError(t, err)
	assert.False(t, ok, "terminal jobs stay terminal")
}

func TestStore_Update(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t)
	j := insertJob(t, s, clock, TypeTranscription, 1)

	err := s.Update(ctx, j.ID, map[string]any{"status": StatusCompleted})
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	clock.Advance(time.Minute)
	require.NoError(t, s.Update(ctx, j.ID, map[string]any{"progress": 30}))
	got, err := s.GetByID(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, got.Progress)
	assert.Equal(t, StatusPending, got.Status)
	assert.True(t, clock.Now().Equal(got.UpdatedAt))
}

func TestStore_UpdateLocked(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t)
	j := insertJob(t, s, clock, TypeTranscription, 1)

	_, err := s.UpdateLocked(ctx, j.ID, "w1", map[string]any{"status": StatusCompleted})
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	ok, err := s.UpdateLocked(ctx, j.ID, "w1", map[string]any{"progress": 30})
	require.NoError(t, err)
	assert.False(t, ok, "pending jobs have no lock holder")

	ok, err = s.Claim(ctx, j.ID, "w1")
	require.NoError(t, err)
	require.True(t, ok)

	clock.Advance(time.Minute)
	ok, err = s.UpdateLocked(ctx, j.ID, "w1", map[string]any{"progress": 30})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.UpdateLocked(ctx, j.ID, "w2", map[string]any{"progress": 90})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.GetByID(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, got.Progress)
	assert.Equal(t, StatusRunning, got.Status)
	assert.True(t, clock.Now().Equal(got.UpdatedAt))
}

func TestStore_ListByOwner(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t)

	a := insertJob(t, s, clock, TypeTranscription, 1)
	b := insertJob(t, s, clock, TypeSummarization, 1)
	other := &Job{Type: TypeSummarization, TargetID: 2, OwnerID: 99}
	require.NoError(t, s.Insert(ctx, other))

	got, err := s.ListByOwner(ctx, 7, "", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, b.ID, got[0].ID)
	assert.Equal(t, a.ID, got[1].ID)

	ok, err := s.Claim(ctx, a.ID, "w")
	require.NoError(t, err)
	require.True(t, ok)

	running, err := s.ListByOwner(ctx, 7, StatusRunning, 10)
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, a.ID, running[0].ID)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusRunning))
	assert.True(t, CanTransition(StatusRunning, StatusCompleted))
	assert.True(t, CanTransition(StatusRunning, StatusFailed))

	assert.False(t, CanTransition(StatusPending, StatusCompleted))
	assert.False(t, CanTransition(StatusPending, StatusFailed))
	assert.False(t, CanTransition(StatusCompleted, StatusRunning))
	assert.False(t, CanTransition(StatusFailed, StatusPending))
	assert.False(t, CanTransition(StatusRunning, StatusPending))
}
