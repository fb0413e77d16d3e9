package app

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/ytgrab-go/internal/domain"
)

func TestJobStore_CreateAndGet(t *testing.T) {
	store := NewJobStore()
	job := domain.NewJob("https://valid.example/watch?v=X", "mp4", "720p", "title")

	require.NoError(t, store.Create(job))

	got, ok := store.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, 0.0, got.Progress)
	assert.Equal(t, job.URL, got.URL)
}

func TestJobStore_CreateDuplicate(t *testing.T) {
	store := NewJobStore()
	job := domain.NewJob("u", "mp4", "720p", "")

	require.NoError(t, store.Create(job))
	assert.ErrorIs(t, store.Create(job), domain.ErrDuplicateJob)
	assert.Equal(t, 1, store.Len())
}

func TestJobStore_GetReturnsCopy(t *testing.T) {
	store := NewJobStore()
	job := domain.NewJob("u", "mp4", "720p", "")
	require.NoError(t, store.Create(job))

	job.Status = domain.StatusError
	got, _ := store.Get(job.ID)
	got.Title = "changed"

	again, _ := store.Get(job.ID)
	assert.Equal(t, domain.StatusPending, again.Status)
	assert.NotEqual(t, "changed", again.Title)
}

func TestJobStore_Mutate(t *testing.T) {
	store := NewJobStore()
	job := domain.NewJob("u", "mp4", "720p", "")
	require.NoError(t, store.Create(job))

	updated, err := store.Mutate(job.ID, (*domain.Job).MarkDownloading)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDownloading, updated.Status)

	got, _ := store.Get(job.ID)
	assert.Equal(t, domain.StatusDownloading, got.Status)
}

func TestJobStore_MutateErrorLeavesRecordUntouched(t *testing.T) {
	store := NewJobStore()
	job := domain.NewJob("u", "mp4", "720p", "")
	require.NoError(t, store.Create(job))

	_, err := store.Mutate(job.ID, func(j *domain.Job) error {
		j.Title = "half written"
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)

	got, _ := store.Get(job.ID)
	assert.Equal(t, domain.DefaultTitle, got.Title)
}

func TestJobStore_MutateMissing(t *testing.T) {
	store := NewJobStore()
	_, err := store.Mutate("nope", (*domain.Job).MarkDownloading)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestJobStore_Delete(t *testing.T) {
	store := NewJobStore()
	job := domain.NewJob("u", "mp4", "720p", "")
	require.NoError(t, store.Create(job))

	removed, ok := store.Delete(job.ID)
	require.True(t, ok)
	assert.Equal(t, job.ID, removed.ID)

	_, ok = store.Get(job.ID)
	assert.False(t, ok)
	_, ok = store.Delete(job.ID)
	assert.False(t, ok)
	assert.Empty(t, store.List())
}

func TestJobStore_ListKeepsInsertionOrder(t *testing.T) {
	store := NewJobStore()
	var ids []string
	for i := 0; i < 5; i++ {
		job := domain.NewJob(fmt.Sprintf("u%d", i), "mp4", "720p", "")
		require.NoError(t, store.Create(job))
		ids = append(ids, job.ID)
	}
	store.Delete(ids[2])

	var listed []string
	for _, job := range store.List() {
		listed = append(listed, job.ID)
	}
	assert.Equal(t, []string{ids[0], ids[1], ids[3], ids[4]}, listed)
}

func TestJobStore_CountByStatus(t *testing.T) {
	store := NewJobStore()
	a := domain.NewJob("a", "mp4", "720p", "")
	b := domain.NewJob("b", "mp4", "720p", "")
	require.NoError(t, store.Create(a))
	require.NoError(t, store.Create(b))
	_, err := store.Mutate(b.ID, (*domain.Job).MarkDownloading)
	require.NoError(t, err)

	counts := store.CountByStatus()
	assert.Equal(t, 1, counts[domain.StatusPending])
	assert.Equal(t, 1, counts[domain.StatusDownloading])
}

func TestJobStore_ConcurrentReadersNeverSeePartialCompletion(t *testing.T) {
	store := NewJobStore()
	job := domain.NewJob("u", "mp4", "720p", "")
	require.NoError(t, store.Create(job))
	_, err := store.Mutate(job.ID, (*domain.Job).MarkDownloading)
	require.NoError(t, err)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	violations := make(chan domain.Job, 1)

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				got, _ := store.Get(job.ID)
				if (got.Status == domain.StatusCompleted) != (got.Filename != "") {
					select {
					case violations <- got:
					default:
					}
				}
			}
		}()
	}

	for i := 1; i <= 100; i++ {
		pct := float64(i)
		store.Mutate(job.ID, func(j *domain.Job) error { return j.UpdateProgress(pct) })
	}
	_, err = store.Mutate(job.ID, func(j *domain.Job) error { return j.MarkCompleted("/tmp/downloads/x.mp4") })
	require.NoError(t, err)

	close(stop)
	wg.Wait()
	close(violations)
	for v := range violations {
		t.Fatalf("observed inconsistent record: %+v", v)
	}
}
