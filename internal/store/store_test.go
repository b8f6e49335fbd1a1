package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/druarnfield/otto/internal/engine"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "otto.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_MigratesFreshDatabase(t *testing.T) {
	s := openTest(t)
	v, err := s.currentVersion()
	if err != nil {
		t.Fatalf("currentVersion: %v", err)
	}
	if v != schemaVersion {
		t.Errorf("currentVersion = %d, want %d", v, schemaVersion)
	}
}

func TestOpen_MigrateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "otto.db")
	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open (1st): %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("Open (2nd): %v", err)
	}
	defer s2.Close()
	v, err := s2.currentVersion()
	if err != nil {
		t.Fatalf("currentVersion: %v", err)
	}
	if v != schemaVersion {
		t.Errorf("currentVersion after reopen = %d, want %d", v, schemaVersion)
	}
}

func TestRunAndTaskLifecycle(t *testing.T) {
	s := openTest(t)

	meta := &engine.RunMetadata{
		OttofilePath: "/proj/ottofile.yaml",
		ProjectHash:  "abcd1234",
		Timestamp:    1000,
		Cwd:          "/proj",
		User:         "alice",
		Hostname:     "devbox",
		Argv:         []string{"otto", "run", "build"},
		RunUUID:      "r-1",
	}

	runID, err := s.RecordRunStart(meta)
	require.NoError(t, err)

	taskID, err := s.RecordTaskStart(runID, "build", "deadbeef", "/t/stdout.log", "/t/stderr.log", "/t/script.sh")
	require.NoError(t, err)
	require.NoError(t, s.RecordTaskComplete(taskID, 0, engine.TaskCompleted))
	_, err = s.RecordTaskSkipped(runID, "lint", "cafebabe")
	require.NoError(t, err)

	size := int64(4096)
	require.NoError(t, s.RecordRunComplete(meta.Timestamp, engine.RunSuccess, &size))

	runs, err := s.GetRecentRuns(10, "")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, string(engine.RunSuccess), runs[0].Status)
	require.Equal(t, []string{"otto", "run", "build"}, runs[0].Args)

	tasks, err := s.GetRunTasks(runID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	history, err := s.GetTaskHistory("build", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, string(engine.TaskCompleted), history[0].Status)

	stats, err := s.GetOverallStats()
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.TotalRuns)
	require.EqualValues(t, 1, stats.SuccessfulRuns)
	require.EqualValues(t, 2, stats.TotalTasks)

	taskStats, err := s.GetTaskStats("build")
	require.NoError(t, err)
	require.EqualValues(t, 1, taskStats.TotalExecutions)
	require.EqualValues(t, 1, taskStats.SuccessfulExecutions)

	projects, err := s.GetAllProjects()
	require.NoError(t, err)
	require.Len(t, projects, 1)
	require.Equal(t, "abcd1234", projects[0].Hash)
	require.EqualValues(t, 1, projects[0].RunCount)
}

func TestFindOldRunsAndDeleteRun(t *testing.T) {
	s := openTest(t)

	oldMeta := &engine.RunMetadata{ProjectHash: "p1", Timestamp: 100}
	newMeta := &engine.RunMetadata{ProjectHash: "p1", Timestamp: 500000}

	_, err := s.RecordRunStart(oldMeta)
	require.NoError(t, err)
	_, err = s.RecordRunStart(newMeta)
	require.NoError(t, err)

	old, err := s.FindOldRuns(RetentionPolicy{KeepDays: 1}, 500100)
	require.NoError(t, err)
	require.Len(t, old, 1)
	require.EqualValues(t, 100, old[0].Timestamp)

	deleted, err := s.DeleteRun(100)
	require.NoError(t, err)
	require.NotNil(t, deleted)
	require.EqualValues(t, 100, deleted.Timestamp)

	remaining, err := s.GetRecentRuns(10, "")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.EqualValues(t, 500000, remaining[0].Timestamp)
}
