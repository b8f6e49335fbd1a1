package store

// RunRecord is a run as read back from the database.
type RunRecord struct {
	ID              int64
	ProjectID       int64
	Timestamp       int64
	Status          string
	DurationSeconds *float64
	SizeBytes       *int64
	OttofilePath    *string
	Cwd             *string
	User            *string
	Hostname        *string
	Args            []string
	RunUUID         *string
	EndedAt         *int64
}

// TaskRecord is a task execution as read back from the database.
type TaskRecord struct {
	ID              int64
	RunID           int64
	Name            string
	Status          string
	ScriptHash      *string
	ExitCode        *int
	StartedAt       *int64
	EndedAt         *int64
	DurationSeconds *float64
	StdoutPath      *string
	StderrPath      *string
	ScriptPath      *string
}

// OverallStats summarizes every run this StateStore has ever recorded.
type OverallStats struct {
	TotalRuns             int64
	SuccessfulRuns        int64
	FailedRuns            int64
	RunningRuns           int64
	TotalTasks            int64
	TotalDiskUsage        int64
	TotalDurationSeconds  float64
}

// TaskStats aggregates one task's execution history across runs.
type TaskStats struct {
	TaskName              string
	TotalExecutions       int64
	SuccessfulExecutions  int64
	FailedExecutions      int64
	SkippedExecutions     int64
	AvgDurationSeconds    *float64
	MinDurationSeconds    *float64
	MaxDurationSeconds    *float64
	LastExecuted          *int64
	LastStatus            *string
	ByProject             []ProjectTaskStats
}

// ProjectTaskStats is one project's slice of a TaskStats breakdown,
// per spec.md §4.7 ("get_task_stats(name) — broken down per project").
type ProjectTaskStats struct {
	ProjectHash          string
	TotalExecutions      int64
	SuccessfulExecutions int64
	FailedExecutions     int64
	SkippedExecutions    int64
	AvgDurationSeconds   *float64
}

// ProjectSummary is one row of `otto stats --projects`.
type ProjectSummary struct {
	ID           int64
	Hash         string
	OttofilePath *string
	RunCount     int64
	LastSeen     int64
}
