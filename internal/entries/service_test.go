package entries

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	repo, _ := newTestRepo(t)
	svc := NewService(repo, nil)
	clock := time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return svc
}

func TestServiceCreateAssignsIdentity(t *testing.T) {
	svc := newTestService(t)
	in := validEntry()
	in.ID = "local-should-be-dropped"
	in.Pending = true
	in.Technologies = Technologies{"Go", "go", "PWA"}

	created, total, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.NotEmpty(t, created.ID)
	assert.False(t, IsLocalID(created.ID))
	assert.False(t, created.Pending)
	assert.Equal(t, "2025-02-10T09:01:00Z", created.Timestamp)
	assert.Empty(t, created.UpdatedAt)
	assert.Equal(t, Technologies{"Go", "PWA"}, created.Technologies)
}

func TestServiceCreateRejectsInvalidEntry(t *testing.T) {
	svc := newTestService(t)
	in := validEntry()
	in.TaskDescription = words(9)

	_, _, err := svc.Create(context.Background(), in)
	assert.ErrorIs(t, err, ErrValidation)

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestServiceUpdateKeepsIdentityAndStampsUpdatedAt(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	created, _, err := svc.Create(ctx, validEntry())
	require.NoError(t, err)

	name := "Learning Service Workers"
	updated, err := svc.Update(ctx, created.ID, Patch{JournalName: &name})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.Timestamp, updated.Timestamp)
	assert.Equal(t, "2025-02-10T09:02:00Z", updated.UpdatedAt)
	assert.Equal(t, name, updated.JournalName)
	assert.Equal(t, created.TaskDescription, updated.TaskDescription)

	short := "too short"
	_, err = svc.Update(ctx, created.ID, Patch{TaskDescription: &short})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Update(ctx, "unknown", Patch{JournalName: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceUpdateReportsMissingBeforeInvalid(t *testing.T) {
	svc := newTestService(t)
	blank := "   "
	_, err := svc.Update(context.Background(), "unknown", Patch{JournalName: &blank})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrValidation)
}

func TestServiceCreateIdempotentReplaysKey(t *testing.T) {
	repo, fs := newTestRepo(t)
	keys := NewIdempotencyStore(fs, KeysPath(dataPath), 0, nil)
	svc := NewService(repo, nil).WithIdempotency(keys)
	ctx := context.Background()

	first, total, replayed, err := svc.CreateIdempotent(ctx, "local-1", validEntry())
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, 1, total)

	again, total, replayed, err := svc.CreateIdempotent(ctx, "local-1", validEntry())
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first, again)
	assert.Equal(t, 1, total)

	// keys outlive the process
	restarted := NewService(NewFileRepository(fs, dataPath, nil), nil).
		WithIdempotency(NewIdempotencyStore(fs, KeysPath(dataPath), 0, nil))
	again, _, replayed, err = restarted.CreateIdempotent(ctx, "local-1", validEntry())
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, again.ID)

	// a deleted entry is not recreated by a late retry
	_, err = svc.Delete(ctx, first.ID)
	require.NoError(t, err)
	_, total, replayed, err = svc.CreateIdempotent(ctx, "local-1", validEntry())
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, 0, total)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestServiceCreateIdempotentConcurrentRetries(t *testing.T) {
	repo, fs := newTestRepo(t)
	svc := NewService(repo, nil).WithIdempotency(NewIdempotencyStore(fs, KeysPath(dataPath), 0, nil))
	ctx := context.Background()

	var g errgroup.Group
	ids := make([]string, 8)
	for i := range ids {
		g.Go(func() error {
			created, _, _, err := svc.CreateIdempotent(ctx, "local-same", validEntry())
			ids[i] = created.ID
			return err
		})
	}
	require.NoError(t, g.Wait())
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestServiceCreateIdempotentRejectsOversizedKey(t *testing.T) {
	repo, fs := newTestRepo(t)
	svc := NewService(repo, nil).WithIdempotency(NewIdempotencyStore(fs, KeysPath(dataPath), 0, nil))
	_, _, _, err := svc.CreateIdempotent(context.Background(), strings.Repeat("k", 200), validEntry())
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, ErrIdempotencyKey)
}

func TestServiceDelete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	a, _, err := svc.Create(ctx, validEntry())
	require.NoError(t, err)
	_, _, err = svc.Create(ctx, validEntry())
	require.NoError(t, err)

	total, err := svc.Delete(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	_, err = svc.Get(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
