package rl

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janosik-trading/janosik/store"
)

func writeVersion(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("weights"), 0o644))
}

func TestRegistryPromoteAndRollback(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	r, err := NewRegistry(dir)
	require.NoError(t, err)

	cur, err := r.Current()
	require.NoError(t, err)
	assert.Empty(t, cur)

	writeVersion(t, dir, "v1")
	writeVersion(t, dir, "v2")

	require.NoError(t, r.Promote("v1"))
	cur, _ = r.Current()
	assert.Equal(t, "v1", cur)

	require.NoError(t, r.Promote("v2"))
	cur, _ = r.Current()
	assert.Equal(t, "v2", cur)

	require.NoError(t, r.Rollback())
	cur, _ = r.Current()
	assert.Equal(t, "v1", cur)

	// Rolling back again swaps forward.
	require.NoError(t, r.Rollback())
	cur, _ = r.Current()
	assert.Equal(t, "v2", cur)
}

func TestRegistryPromoteMissingVersion(t *testing.T) {
	t.Parallel()

	r, err := NewRegistry(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, r.Promote("v9"))
}

func TestRegistryRollbackWithoutHistory(t *testing.T) {
	t.Parallel()

	r, err := NewRegistry(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, r.Rollback())
}

func TestRegistryVersions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	r, err := NewRegistry(dir)
	require.NoError(t, err)

	writeVersion(t, dir, "v1")
	writeVersion(t, dir, "v2")
	require.NoError(t, r.Promote("v1"))

	versions, err := r.Versions()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"v1", "v2"}, versions)
}

type memTrainingLog struct {
	runs []store.TrainingRun
}

func (m *memTrainingLog) LogTraining(_ context.Context, run store.TrainingRun) error {
	m.runs = append(m.runs, run)
	return nil
}

func (m *memTrainingLog) TrainingHistory(_ context.Context, _ int) ([]store.TrainingRun, error) {
	if len(m.runs) == 0 {
		return nil, nil
	}
	return []store.TrainingRun{m.runs[len(m.runs)-1]}, nil
}

func TestSchedulerRunOnce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	registry, err := NewRegistry(dir)
	require.NoError(t, err)
	writeVersion(t, dir, "v1")
	require.NoError(t, registry.Promote("v1"))

	log := &memTrainingLog{}
	s := NewScheduler(time.Hour, NewNopTrainer(registry), log, nil)

	require.NoError(t, s.RunOnce(context.Background()))
	require.NoError(t, s.RunOnce(context.Background()))

	require.Len(t, log.runs, 2)
	assert.Equal(t, 1, log.runs[0].Episode)
	assert.Equal(t, 2, log.runs[1].Episode)
	assert.Equal(t, "v1", log.runs[1].ModelVersion)
}

func TestSchedulerResumesEpisodes(t *testing.T) {
	t.Parallel()

	log := &memTrainingLog{runs: []store.TrainingRun{{Episode: 41}}}
	s := NewScheduler(time.Hour, NewNopTrainer(nil), log, nil)

	require.NoError(t, s.Start(context.Background()))
	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, 42, log.runs[len(log.runs)-1].Episode)
}
