package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/druarnfield/otto/internal/engine"
)

// ensureProject returns the id of the project row for hash, inserting
// one (run_count 0) if it doesn't exist. RecordRunStart, its caller,
// bumps last_seen/run_count afterwards.
func (s *Store) ensureProject(tx *sql.Tx, hash string, ottofilePath string, timestamp int64) (int64, error) {
	var id int64
	err := tx.QueryRow(`SELECT id FROM projects WHERE hash = ?`, hash).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		res, err := tx.Exec(`INSERT INTO projects (hash, ottofile_path, run_count, last_seen) VALUES (?, ?, 0, ?)`,
			hash, nullableString(ottofilePath), timestamp)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	case err != nil:
		return 0, err
	default:
		return id, nil
	}
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// RecordRunStart inserts a new run row (status "running") and returns
// its id, ensuring the owning project row exists first.
func (s *Store) RecordRunStart(meta *engine.RunMetadata) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, s.wrapErr(err)
	}
	defer tx.Rollback()

	projectID, err := s.ensureProject(tx, meta.ProjectHash, meta.OttofilePath, meta.Timestamp)
	if err != nil {
		return 0, s.wrapErr(fmt.Errorf("ensuring project: %w", err))
	}

	var argsJSON interface{}
	if len(meta.Argv) > 0 {
		b, err := json.Marshal(meta.Argv)
		if err != nil {
			return 0, s.wrapErr(err)
		}
		argsJSON = string(b)
	}

	res, err := tx.Exec(`INSERT INTO runs (project_id, timestamp, status, ottofile_path, cwd, user, hostname, args, run_uuid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		projectID, meta.Timestamp, string(engine.RunRunning),
		nullableString(meta.OttofilePath), nullableString(meta.Cwd), nullableString(meta.User), nullableString(meta.Hostname),
		argsJSON, nullableString(meta.RunUUID))
	if err != nil {
		return 0, s.wrapErr(err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, s.wrapErr(err)
	}

	if _, err := tx.Exec(`UPDATE projects SET last_seen = ?, run_count = run_count + 1 WHERE id = ?`, meta.Timestamp, projectID); err != nil {
		return 0, s.wrapErr(err)
	}

	if err := tx.Commit(); err != nil {
		return 0, s.wrapErr(err)
	}
	return runID, nil
}

// RecordRunComplete marks the run identified by its start timestamp
// finished, deriving duration from now - timestamp.
func (s *Store) RecordRunComplete(timestamp int64, status engine.RunStatus, sizeBytes *int64) error {
	endedAt := time.Now().Unix()
	duration := float64(endedAt - timestamp)
	_, err := s.db.Exec(`UPDATE runs SET status = ?, duration_seconds = ?, size_bytes = ?, ended_at = ? WHERE timestamp = ?`,
		string(status), duration, sizeBytes, endedAt, timestamp)
	return s.wrapErr(err)
}

// RecordTaskStart inserts a "running" task row and returns its id.
func (s *Store) RecordTaskStart(runID int64, taskName string, scriptHash, stdoutPath, stderrPath, scriptPath string) (int64, error) {
	startedAt := time.Now().Unix()
	res, err := s.db.Exec(`INSERT INTO tasks (run_id, name, status, script_hash, started_at, stdout_path, stderr_path, script_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, taskName, string(engine.TaskRunning), nullableString(scriptHash), startedAt,
		nullableString(stdoutPath), nullableString(stderrPath), nullableString(scriptPath))
	if err != nil {
		return 0, s.wrapErr(err)
	}
	return res.LastInsertId()
}

// RecordTaskComplete marks a task row finished with its exit code and
// final status ("completed" or "failed").
func (s *Store) RecordTaskComplete(taskID int64, exitCode int, status engine.TaskStatus) error {
	endedAt := time.Now().Unix()
	var startedAt int64
	if err := s.db.QueryRow(`SELECT started_at FROM tasks WHERE id = ?`, taskID).Scan(&startedAt); err != nil {
		return s.wrapErr(err)
	}
	duration := float64(endedAt - startedAt)
	_, err := s.db.Exec(`UPDATE tasks SET status = ?, exit_code = ?, ended_at = ?, duration_seconds = ? WHERE id = ?`,
		string(status), exitCode, endedAt, duration, taskID)
	return s.wrapErr(err)
}

// RecordTaskSkipped inserts a "skipped" task row — no started_at,
// exit_code, or duration, since the task never ran.
func (s *Store) RecordTaskSkipped(runID int64, taskName, scriptHash string) (int64, error) {
	res, err := s.db.Exec(`INSERT INTO tasks (run_id, name, status, script_hash) VALUES (?, ?, ?, ?)`,
		runID, taskName, string(engine.TaskSkipped), nullableString(scriptHash))
	if err != nil {
		return 0, s.wrapErr(err)
	}
	return res.LastInsertId()
}

// GetRecentRuns returns up to limit most-recent runs, optionally
// filtered to a single project hash.
func (s *Store) GetRecentRuns(limit int, projectHash string) ([]RunRecord, error) {
	var rows *sql.Rows
	var err error
	if projectHash != "" {
		rows, err = s.db.Query(`SELECT r.id, r.project_id, r.timestamp, r.status, r.duration_seconds,
				r.size_bytes, r.ottofile_path, r.cwd, r.user, r.hostname, r.args, r.ended_at
			FROM runs r JOIN projects p ON r.project_id = p.id
			WHERE p.hash = ? ORDER BY r.timestamp DESC LIMIT ?`, projectHash, limit)
	} else {
		rows, err = s.db.Query(`SELECT id, project_id, timestamp, status, duration_seconds,
				size_bytes, ottofile_path, cwd, user, hostname, args, ended_at
			FROM runs ORDER BY timestamp DESC LIMIT ?`, limit)
	}
	if err != nil {
		return nil, s.wrapErr(err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

func scanRuns(rows *sql.Rows) ([]RunRecord, error) {
	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var argsJSON sql.NullString
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.Timestamp, &r.Status, &r.DurationSeconds,
			&r.SizeBytes, &r.OttofilePath, &r.Cwd, &r.User, &r.Hostname, &argsJSON, &r.EndedAt); err != nil {
			return nil, err
		}
		if argsJSON.Valid {
			_ = json.Unmarshal([]byte(argsJSON.String), &r.Args)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRunTasks returns every task row belonging to a run, oldest first.
func (s *Store) GetRunTasks(runID int64) ([]TaskRecord, error) {
	rows, err := s.db.Query(`SELECT id, run_id, name, status, script_hash, exit_code, started_at, ended_at,
		duration_seconds, stdout_path, stderr_path, script_path FROM tasks WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, s.wrapErr(err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// GetTaskHistory returns up to limit most-recent executions of a
// named task across all runs.
func (s *Store) GetTaskHistory(taskName string, limit int) ([]TaskRecord, error) {
	rows, err := s.db.Query(`SELECT id, run_id, name, status, script_hash, exit_code, started_at, ended_at,
		duration_seconds, stdout_path, stderr_path, script_path FROM tasks
		WHERE name = ? ORDER BY id DESC LIMIT ?`, taskName, limit)
	if err != nil {
		return nil, s.wrapErr(err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

func scanTasks(rows *sql.Rows) ([]TaskRecord, error) {
	var out []TaskRecord
	for rows.Next() {
		var t TaskRecord
		if err := rows.Scan(&t.ID, &t.RunID, &t.Name, &t.Status, &t.ScriptHash, &t.ExitCode, &t.StartedAt,
			&t.EndedAt, &t.DurationSeconds, &t.StdoutPath, &t.StderrPath, &t.ScriptPath); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetOverallStats aggregates every run and task this store has seen.
func (s *Store) GetOverallStats() (*OverallStats, error) {
	var stats OverallStats
	row := s.db.QueryRow(`SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'running' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(size_bytes), 0),
		COALESCE(SUM(duration_seconds), 0)
		FROM runs`)
	if err := row.Scan(&stats.TotalRuns, &stats.SuccessfulRuns, &stats.FailedRuns, &stats.RunningRuns,
		&stats.TotalDiskUsage, &stats.TotalDurationSeconds); err != nil {
		return nil, s.wrapErr(err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM tasks`).Scan(&stats.TotalTasks); err != nil {
		return nil, s.wrapErr(err)
	}
	return &stats, nil
}

// GetAllProjects lists every project this store has recorded runs for.
func (s *Store) GetAllProjects() ([]ProjectSummary, error) {
	rows, err := s.db.Query(`SELECT id, hash, ottofile_path, run_count, last_seen FROM projects ORDER BY last_seen DESC`)
	if err != nil {
		return nil, s.wrapErr(err)
	}
	defer rows.Close()

	var out []ProjectSummary
	for rows.Next() {
		var p ProjectSummary
		if err := rows.Scan(&p.ID, &p.Hash, &p.OttofilePath, &p.RunCount, &p.LastSeen); err != nil {
			return nil, s.wrapErr(err)
		}
		out = append(out, p)
	}
	return out, s.wrapErr(rows.Err())
}

// GetTaskStats aggregates execution counts and durations for a single
// named task across every run, plus a per-project breakdown of the
// same counts (spec.md §4.7: "get_task_stats(name) — broken down per
// project").
func (s *Store) GetTaskStats(taskName string) (*TaskStats, error) {
	stats := TaskStats{TaskName: taskName}
	row := s.db.QueryRow(`SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'skipped' THEN 1 ELSE 0 END), 0),
		AVG(duration_seconds), MIN(duration_seconds), MAX(duration_seconds),
		MAX(started_at)
		FROM tasks WHERE name = ?`, taskName)
	if err := row.Scan(&stats.TotalExecutions, &stats.SuccessfulExecutions, &stats.FailedExecutions,
		&stats.SkippedExecutions, &stats.AvgDurationSeconds, &stats.MinDurationSeconds, &stats.MaxDurationSeconds,
		&stats.LastExecuted); err != nil {
		return nil, s.wrapErr(err)
	}
	if stats.LastExecuted != nil {
		var last string
		if err := s.db.QueryRow(`SELECT status FROM tasks WHERE name = ? ORDER BY id DESC LIMIT 1`, taskName).Scan(&last); err == nil {
			stats.LastStatus = &last
		}
	}

	byProject, err := s.taskStatsByProject(taskName)
	if err != nil {
		return nil, err
	}
	stats.ByProject = byProject
	return &stats, nil
}

// taskStatsByProject breaks taskName's execution counts down per
// project by joining tasks -> runs -> projects and grouping on the
// project's hash.
func (s *Store) taskStatsByProject(taskName string) ([]ProjectTaskStats, error) {
	rows, err := s.db.Query(`SELECT p.hash,
		COUNT(*),
		COALESCE(SUM(CASE WHEN t.status = 'completed' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN t.status = 'failed' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN t.status = 'skipped' THEN 1 ELSE 0 END), 0),
		AVG(t.duration_seconds)
		FROM tasks t
		JOIN runs r ON t.run_id = r.id
		JOIN projects p ON r.project_id = p.id
		WHERE t.name = ?
		GROUP BY p.hash
		ORDER BY p.hash`, taskName)
	if err != nil {
		return nil, s.wrapErr(err)
	}
	defer rows.Close()

	var out []ProjectTaskStats
	for rows.Next() {
		var p ProjectTaskStats
		if err := rows.Scan(&p.ProjectHash, &p.TotalExecutions, &p.SuccessfulExecutions,
			&p.FailedExecutions, &p.SkippedExecutions, &p.AvgDurationSeconds); err != nil {
			return nil, s.wrapErr(err)
		}
		out = append(out, p)
	}
	return out, s.wrapErr(rows.Err())
}

// GetAllTaskStats returns TaskStats for every distinct task name ever
// recorded, most-recently-executed first, optionally bounded to the
// limit most-recent task names (limit <= 0 means unbounded).
func (s *Store) GetAllTaskStats(limit int) ([]TaskStats, error) {
	query := `SELECT name FROM tasks GROUP BY name ORDER BY MAX(started_at) DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, s.wrapErr(err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, s.wrapErr(err)
		}
		names = append(names, name)
	}
	rows.Close()

	out := make([]TaskStats, 0, len(names))
	for _, name := range names {
		stats, err := s.GetTaskStats(name)
		if err != nil {
			return nil, err
		}
		out = append(out, *stats)
	}
	return out, nil
}

// GetRunsWithFilters returns up to limit runs matching the given
// status and/or project hash (either may be empty to mean "any"),
// newest first — spec.md §4.7's get_runs_with_filters(status?,
// project?, limit).
func (s *Store) GetRunsWithFilters(status string, projectHash string, limit int) ([]RunRecord, error) {
	query := `SELECT r.id, r.project_id, r.timestamp, r.status, r.duration_seconds,
		r.size_bytes, r.ottofile_path, r.cwd, r.user, r.hostname, r.args, r.ended_at
		FROM runs r JOIN projects p ON r.project_id = p.id
		WHERE (? = '' OR r.status = ?) AND (? = '' OR p.hash = ?)
		ORDER BY r.timestamp DESC LIMIT ?`
	rows, err := s.db.Query(query, status, status, projectHash, projectHash, limit)
	if err != nil {
		return nil, s.wrapErr(err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// RetentionPolicy mirrors find_old_runs's parameters exactly: always
// keep the KeepLast most-recent runs (within ProjectFilter if set);
// among the rest, a run is eligible once it's older than the cutoff —
// KeepDays for non-failed runs, KeepFailedDays for failed runs when set.
type RetentionPolicy struct {
	KeepDays       int
	KeepLast       int
	KeepFailedDays *int
	ProjectFilter  string
}

// FindOldRuns returns the runs eligible for deletion under policy,
// sorted oldest-first, used by the cleanup engine's retention sweep.
func (s *Store) FindOldRuns(policy RetentionPolicy, now int64) ([]RunRecord, error) {
	all, err := s.GetRecentRuns(1_000_000_000, policy.ProjectFilter)
	if err != nil {
		return nil, err
	}
	// GetRecentRuns returns newest-first; the first KeepLast are exempt.
	keep := policy.KeepLast
	if keep < 0 {
		keep = 0
	}
	var candidates []RunRecord
	if keep < len(all) {
		candidates = all[keep:]
	}

	cutoff := now - int64(policy.KeepDays)*86400
	var eligible []RunRecord
	for _, r := range candidates {
		c := cutoff
		if r.Status == string(engine.RunFailed) && policy.KeepFailedDays != nil {
			c = now - int64(*policy.KeepFailedDays)*86400
		}
		if r.Timestamp < c {
			eligible = append(eligible, r)
		}
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].Timestamp < eligible[j].Timestamp })
	return eligible, nil
}

// DeleteRun removes a run and its tasks by start timestamp, returning
// the deleted record (nil if no such run existed).
func (s *Store) DeleteRun(timestamp int64) (*RunRecord, error) {
	runs, err := s.db.Query(`SELECT id, project_id, timestamp, status, duration_seconds,
		size_bytes, ottofile_path, cwd, user, hostname, args, ended_at
		FROM runs WHERE timestamp = ?`, timestamp)
	if err != nil {
		return nil, s.wrapErr(err)
	}
	found, err := scanRuns(runs)
	runs.Close()
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	rec := found[0]

	tx, err := s.db.Begin()
	if err != nil {
		return nil, s.wrapErr(err)
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM tasks WHERE run_id = ?`, rec.ID); err != nil {
		return nil, s.wrapErr(err)
	}
	if _, err := tx.Exec(`DELETE FROM runs WHERE id = ?`, rec.ID); err != nil {
		return nil, s.wrapErr(err)
	}
	if _, err := tx.Exec(`UPDATE projects SET run_count = MAX(run_count - 1, 0) WHERE id = ?`, rec.ProjectID); err != nil {
		return nil, s.wrapErr(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, s.wrapErr(err)
	}
	return &rec, nil
}
