package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/hylla/metricops/internal/app"
	"github.com/hylla/metricops/internal/domain"
)

// driverName defines a package constant value.
const driverName = "sqlite"

const (
	busyTimeoutMillis = 5000
	pingMaxElapsed    = 5 * time.Second
)

// tsLayout is fixed width so text order matches time order.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

// Repository is an append-only record log backed by SQLite. Every stream is
// an insert-only table keyed by an AUTOINCREMENT seq; the current version of
// an id is its row with the highest seq.
type Repository struct {
	db *sql.DB
}

var _ app.RecordLog = (*Repository)(nil)

// Open opens or creates the database file at path.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_txlock=immediate",
		path,
		busyTimeoutMillis,
	)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return initRepository(db)
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory() (*Repository, error) {
	dsn := fmt.Sprintf("file:metricops-%s?mode=memory&cache=shared&_txlock=immediate", uuid.NewString())
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// One connection keeps the shared-cache database alive and avoids table locks.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	return initRepository(db)
}

func initRepository(db *sql.DB) (*Repository, error) {
	ctx := context.Background()
	if err := pingWithBackoff(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// pingWithBackoff retries the first ping while another process holds the file.
func pingWithBackoff(ctx context.Context, db *sql.DB) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxElapsedTime = pingMaxElapsed
	return backoff.Retry(func() error {
		err := db.PingContext(ctx)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(bo, ctx))
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping reports whether the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS work_items (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			work_id TEXT NOT NULL,
			board TEXT NOT NULL,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			stage TEXT NOT NULL,
			status TEXT NOT NULL,
			priority TEXT NOT NULL,
			business_area TEXT NOT NULL,
			owner_user_id TEXT NOT NULL,
			requester_user_id TEXT NOT NULL,
			due_at TEXT,
			sla_hours INTEGER,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			blocker_count INTEGER NOT NULL DEFAULT 0,
			needs_approval INTEGER NOT NULL DEFAULT 0,
			last_event_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS work_deps (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			dep_id TEXT NOT NULL,
			work_id TEXT NOT NULL,
			depends_on_work_id TEXT NOT NULL,
			dep_type TEXT NOT NULL,
			is_deleted INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS approvals (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			approval_id TEXT NOT NULL,
			work_id TEXT NOT NULL,
			gate TEXT NOT NULL,
			required_from_user_id TEXT NOT NULL,
			status TEXT NOT NULL,
			decision_note TEXT NOT NULL DEFAULT '',
			decided_at TEXT,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL,
			work_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			actor_user_id TEXT NOT NULL,
			keys_json TEXT NOT NULL DEFAULT '[]',
			values_json TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS comments (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			comment_id TEXT NOT NULL,
			work_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS artifacts (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			artifact_id TEXT NOT NULL,
			work_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			title TEXT NOT NULL,
			url TEXT NOT NULL,
			created_by_user_id TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_work_items_id_seq ON work_items(work_id, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_work_deps_id_seq ON work_deps(dep_id, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_work_deps_work ON work_deps(work_id);`,
		`CREATE INDEX IF NOT EXISTS idx_work_deps_depends_on ON work_deps(depends_on_work_id);`,
		`CREATE INDEX IF NOT EXISTS idx_approvals_id_seq ON approvals(approval_id, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_approvals_work ON approvals(work_id);`,
		`CREATE INDEX IF NOT EXISTS idx_events_work_seq ON events(work_id, seq DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_comments_work_seq ON comments(work_id, seq DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_artifacts_work_seq ON artifacts(work_id, seq);`,
		`CREATE VIEW IF NOT EXISTS work_items_current AS
			SELECT w.* FROM work_items w
			WHERE w.seq = (SELECT MAX(seq) FROM work_items WHERE work_id = w.work_id);`,
		`CREATE VIEW IF NOT EXISTS work_deps_current AS
			SELECT d.* FROM work_deps d
			WHERE d.seq = (SELECT MAX(seq) FROM work_deps WHERE dep_id = d.dep_id);`,
		`CREATE VIEW IF NOT EXISTS approvals_current AS
			SELECT a.* FROM approvals a
			WHERE a.seq = (SELECT MAX(seq) FROM approvals WHERE approval_id = a.approval_id);`,
	}

	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

const workItemColumns = `seq, work_id, board, type, title, description, stage, status, priority, business_area,
	owner_user_id, requester_user_id, due_at, sla_hours, created_at, updated_at, blocker_count, needs_approval, last_event_at`

// AppendWorkItem appends a version when baseSeq still names the current one.
func (r *Repository) AppendWorkItem(ctx context.Context, item domain.WorkItem, baseSeq int64) (stored domain.WorkItem, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WorkItem{}, fmt.Errorf("begin append work item: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var currentSeq int64
	if err = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM work_items WHERE work_id = ?`, item.ID).Scan(&currentSeq); err != nil {
		return domain.WorkItem{}, fmt.Errorf("read current work item seq: %w", err)
	}
	if currentSeq != baseSeq {
		err = app.ErrConflict
		return domain.WorkItem{}, err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO work_items(
			work_id, board, type, title, description, stage, status, priority, business_area,
			owner_user_id, requester_user_id, due_at, sla_hours, created_at, updated_at, blocker_count, needs_approval, last_event_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		item.ID,
		string(item.Board),
		item.Type,
		item.Title,
		item.Description,
		item.Stage,
		string(item.Status),
		string(item.Priority),
		item.BusinessArea,
		item.OwnerUserID,
		item.RequesterUserID,
		nullableTS(item.DueAt),
		nullableInt(item.SLAHours),
		ts(item.CreatedAt),
		ts(item.UpdatedAt),
		item.BlockerCount,
		boolToInt(item.NeedsApproval),
		ts(item.LastEventAt),
	)
	if err != nil {
		return domain.WorkItem{}, fmt.Errorf("insert work item: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return domain.WorkItem{}, fmt.Errorf("read work item seq: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return domain.WorkItem{}, fmt.Errorf("commit work item: %w", err)
	}
	item.Seq = seq
	return item, nil
}

// CurrentWorkItem returns the highest-seq version of a work item.
func (r *Repository) CurrentWorkItem(ctx context.Context, id string) (domain.WorkItem, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+workItemColumns+` FROM work_items_current WHERE work_id = ?`, id)
	item, err := scanWorkItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WorkItem{}, app.ErrNotFound
	}
	if err != nil {
		return domain.WorkItem{}, fmt.Errorf("get work item: %w", err)
	}
	return item, nil
}

// WorkItemVersions returns every version of a work item in append order.
func (r *Repository) WorkItemVersions(ctx context.Context, id string) ([]domain.WorkItem, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+workItemColumns+` FROM work_items WHERE work_id = ? ORDER BY seq ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("list work item versions: %w", err)
	}
	defer rows.Close()
	out, err := collectRows(rows, scanWorkItem)
	if err != nil {
		return nil, fmt.Errorf("scan work item versions: %w", err)
	}
	if len(out) == 0 {
		return nil, app.ErrNotFound
	}
	return out, nil
}

// ListWorkItems returns current work items matching filter, newest update first.
func (r *Repository) ListWorkItems(ctx context.Context, filter app.WorkItemFilter) ([]domain.WorkItem, error) {
	where := []string{"1=1"}
	args := make([]any, 0)
	for _, eq := range []struct {
		column string
		value  string
	}{
		{"board", string(filter.Board)},
		{"stage", filter.Stage},
		{"status", string(filter.Status)},
		{"owner_user_id", filter.OwnerUserID},
		{"priority", string(filter.Priority)},
		{"business_area", filter.BusinessArea},
	} {
		if eq.value == "" {
			continue
		}
		where = append(where, eq.column+" = ?")
		args = append(args, eq.value)
	}
	if filter.BlockedOnly {
		where = append(where, "blocker_count > 0")
	}
	if filter.NeedsApprovalOnly {
		where = append(where, "needs_approval = 1")
	}
	if filter.Search != "" {
		where = append(where, "(instr(lower(title), lower(?)) > 0 OR instr(lower(description), lower(?)) > 0)")
		args = append(args, filter.Search, filter.Search)
	}
	limit := -1
	if filter.Limit > 0 {
		limit = filter.Limit
	}
	args = append(args, limit)

	query := `SELECT ` + workItemColumns + ` FROM work_items_current WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY updated_at DESC, seq DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}
	defer rows.Close()
	out, err := collectRows(rows, scanWorkItem)
	if err != nil {
		return nil, fmt.Errorf("scan work items: %w", err)
	}
	return out, nil
}

const depColumns = `seq, dep_id, work_id, depends_on_work_id, dep_type, is_deleted, created_at`

// AppendDependency appends a dependency edge version.
func (r *Repository) AppendDependency(ctx context.Context, edge domain.DependencyEdge) (domain.DependencyEdge, error) {
	seq, err := insertReturningSeq(ctx, r.db, `
		INSERT INTO work_deps(dep_id, work_id, depends_on_work_id, dep_type, is_deleted, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, edge.ID, edge.WorkItemID, edge.DependsOnID, string(edge.Type), boolToInt(edge.Deleted), ts(edge.CreatedAt))
	if err != nil {
		return domain.DependencyEdge{}, fmt.Errorf("insert dependency: %w", err)
	}
	edge.Seq = seq
	return edge, nil
}

// CurrentDependency returns the highest-seq version of an edge.
func (r *Repository) CurrentDependency(ctx context.Context, id string) (domain.DependencyEdge, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+depColumns+` FROM work_deps_current WHERE dep_id = ?`, id)
	edge, err := scanDependency(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DependencyEdge{}, app.ErrNotFound
	}
	if err != nil {
		return domain.DependencyEdge{}, fmt.Errorf("get dependency: %w", err)
	}
	return edge, nil
}

// ListDependencies returns current edges touching workItemID in append order.
func (r *Repository) ListDependencies(ctx context.Context, workItemID string) ([]domain.DependencyEdge, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+depColumns+` FROM work_deps_current
		WHERE work_id = ? OR depends_on_work_id = ?
		ORDER BY seq ASC
	`, workItemID, workItemID)
	if err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}
	defer rows.Close()
	out, err := collectRows(rows, scanDependency)
	if err != nil {
		return nil, fmt.Errorf("scan dependencies: %w", err)
	}
	return out, nil
}

const approvalColumns = `seq, approval_id, work_id, gate, required_from_user_id, status, decision_note, decided_at, created_at`

// AppendApproval appends an approval version.
func (r *Repository) AppendApproval(ctx context.Context, approval domain.Approval) (domain.Approval, error) {
	seq, err := insertReturningSeq(ctx, r.db, `
		INSERT INTO approvals(approval_id, work_id, gate, required_from_user_id, status, decision_note, decided_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		approval.ID,
		approval.WorkItemID,
		string(approval.Gate),
		approval.RequiredFromUserID,
		string(approval.Status),
		approval.DecisionNote,
		nullableTS(approval.DecidedAt),
		ts(approval.CreatedAt),
	)
	if err != nil {
		return domain.Approval{}, fmt.Errorf("insert approval: %w", err)
	}
	approval.Seq = seq
	return approval, nil
}

// CurrentApproval returns the highest-seq version of an approval.
func (r *Repository) CurrentApproval(ctx context.Context, id string) (domain.Approval, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+approvalColumns+` FROM approvals_current WHERE approval_id = ?`, id)
	approval, err := scanApproval(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Approval{}, app.ErrNotFound
	}
	if err != nil {
		return domain.Approval{}, fmt.Errorf("get approval: %w", err)
	}
	return approval, nil
}

// ListApprovals returns current approvals of a work item in append order.
func (r *Repository) ListApprovals(ctx context.Context, workItemID string) ([]domain.Approval, error) {
	return r.listApprovals(ctx, `work_id = ?`, workItemID)
}

// ListPendingApprovals returns current pending approvals across all work items.
func (r *Repository) ListPendingApprovals(ctx context.Context) ([]domain.Approval, error) {
	return r.listApprovals(ctx, `status = ?`, string(domain.ApprovalPending))
}

func (r *Repository) listApprovals(ctx context.Context, where string, arg any) ([]domain.Approval, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+approvalColumns+` FROM approvals_current WHERE `+where+` ORDER BY seq ASC`, arg)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	defer rows.Close()
	out, err := collectRows(rows, scanApproval)
	if err != nil {
		return nil, fmt.Errorf("scan approvals: %w", err)
	}
	return out, nil
}

// AppendEvent appends an audit event. Payload keys and values are stored as
// parallel arrays to keep their order.
func (r *Repository) AppendEvent(ctx context.Context, event domain.Event) (domain.Event, error) {
	keysJSON, err := json.Marshal(event.Keys())
	if err != nil {
		return domain.Event{}, err
	}
	valuesJSON, err := json.Marshal(event.Values())
	if err != nil {
		return domain.Event{}, err
	}
	seq, err := insertReturningSeq(ctx, r.db, `
		INSERT INTO events(event_id, work_id, event_type, actor_user_id, keys_json, values_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, event.ID, event.WorkItemID, string(event.Type), event.ActorID, string(keysJSON), string(valuesJSON), ts(event.CreatedAt))
	if err != nil {
		return domain.Event{}, fmt.Errorf("insert event: %w", err)
	}
	event.Seq = seq
	return event, nil
}

// ListEvents returns up to limit events of a work item, newest first.
func (r *Repository) ListEvents(ctx context.Context, workItemID string, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT seq, event_id, work_id, event_type, actor_user_id, keys_json, values_json, created_at
		FROM events
		WHERE work_id = ?
		ORDER BY seq DESC
		LIMIT ?
	`, workItemID, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	out, err := collectRows(rows, scanEvent)
	if err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	return out, nil
}

// AppendComment appends a comment.
func (r *Repository) AppendComment(ctx context.Context, comment domain.Comment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO comments(comment_id, work_id, user_id, body, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, comment.ID, comment.WorkItemID, comment.UserID, comment.Body, ts(comment.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// ListComments returns up to limit comments of a work item, newest first.
func (r *Repository) ListComments(ctx context.Context, workItemID string, limit int) ([]domain.Comment, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT comment_id, work_id, user_id, body, created_at
		FROM comments
		WHERE work_id = ?
		ORDER BY seq DESC
		LIMIT ?
	`, workItemID, limit)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()
	out, err := collectRows(rows, scanComment)
	if err != nil {
		return nil, fmt.Errorf("scan comments: %w", err)
	}
	return out, nil
}

// AppendArtifact appends an artifact link.
func (r *Repository) AppendArtifact(ctx context.Context, artifact domain.Artifact) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO artifacts(artifact_id, work_id, kind, title, url, created_by_user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, artifact.ID, artifact.WorkItemID, string(artifact.Kind), artifact.Title, artifact.URL, artifact.CreatedByUserID, ts(artifact.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}

// ListArtifacts returns the artifacts of a work item in append order.
func (r *Repository) ListArtifacts(ctx context.Context, workItemID string) ([]domain.Artifact, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT artifact_id, work_id, kind, title, url, created_by_user_id, created_at
		FROM artifacts
		WHERE work_id = ?
		ORDER BY seq ASC
	`, workItemID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()
	out, err := collectRows(rows, scanArtifact)
	if err != nil {
		return nil, fmt.Errorf("scan artifacts: %w", err)
	}
	return out, nil
}

// execerContext represents execer context data used by this package.
type execerContext interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

// insertReturningSeq runs one insert and returns the assigned seq.
func insertReturningSeq(ctx context.Context, execer execerContext, query string, args ...any) (int64, error) {
	res, err := execer.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

// collectRows scans every row with scan and reports iteration errors.
func collectRows[T any](rows *sql.Rows, scan func(scanner) (T, error)) ([]T, error) {
	out := make([]T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// scanWorkItem decodes a work item row.
func scanWorkItem(s scanner) (domain.WorkItem, error) {
	var (
		item          domain.WorkItem
		board         string
		status        string
		priority      string
		dueAt         sql.NullString
		slaHours      sql.NullInt64
		createdAt     string
		updatedAt     string
		needsApproval int
		lastEventAt   string
	)
	if err := s.Scan(
		&item.Seq,
		&item.ID,
		&board,
		&item.Type,
		&item.Title,
		&item.Description,
		&item.Stage,
		&status,
		&priority,
		&item.BusinessArea,
		&item.OwnerUserID,
		&item.RequesterUserID,
		&dueAt,
		&slaHours,
		&createdAt,
		&updatedAt,
		&item.BlockerCount,
		&needsApproval,
		&lastEventAt,
	); err != nil {
		return domain.WorkItem{}, err
	}
	item.Board = domain.Board(board)
	item.Status = domain.Status(status)
	item.Priority = domain.Priority(priority)
	item.DueAt = parseNullTS(dueAt)
	if slaHours.Valid {
		sla := int(slaHours.Int64)
		item.SLAHours = &sla
	}
	item.CreatedAt = parseTS(createdAt)
	item.UpdatedAt = parseTS(updatedAt)
	item.NeedsApproval = needsApproval != 0
	item.LastEventAt = parseTS(lastEventAt)
	return item, nil
}

// scanDependency decodes a dependency edge row.
func scanDependency(s scanner) (domain.DependencyEdge, error) {
	var (
		edge      domain.DependencyEdge
		depType   string
		deleted   int
		createdAt string
	)
	if err := s.Scan(&edge.Seq, &edge.ID, &edge.WorkItemID, &edge.DependsOnID, &depType, &deleted, &createdAt); err != nil {
		return domain.DependencyEdge{}, err
	}
	edge.Type = domain.DepType(depType)
	edge.Deleted = deleted != 0
	edge.CreatedAt = parseTS(createdAt)
	return edge, nil
}

// scanApproval decodes an approval row.
func scanApproval(s scanner) (domain.Approval, error) {
	var (
		approval  domain.Approval
		gate      string
		status    string
		decidedAt sql.NullString
		createdAt string
	)
	if err := s.Scan(
		&approval.Seq,
		&approval.ID,
		&approval.WorkItemID,
		&gate,
		&approval.RequiredFromUserID,
		&status,
		&approval.DecisionNote,
		&decidedAt,
		&createdAt,
	); err != nil {
		return domain.Approval{}, err
	}
	approval.Gate = domain.Gate(gate)
	approval.Status = domain.ApprovalStatus(status)
	approval.DecidedAt = parseNullTS(decidedAt)
	approval.CreatedAt = parseTS(createdAt)
	return approval, nil
}

// scanEvent decodes an event row and zips its payload arrays.
func scanEvent(s scanner) (domain.Event, error) {
	var (
		event      domain.Event
		eventType  string
		keysJSON   string
		valuesJSON string
		createdAt  string
	)
	if err := s.Scan(&event.Seq, &event.ID, &event.WorkItemID, &eventType, &event.ActorID, &keysJSON, &valuesJSON, &createdAt); err != nil {
		return domain.Event{}, err
	}
	var keys, values []string
	if err := json.Unmarshal([]byte(keysJSON), &keys); err != nil {
		return domain.Event{}, fmt.Errorf("decode event keys: %w", err)
	}
	if err := json.Unmarshal([]byte(valuesJSON), &values); err != nil {
		return domain.Event{}, fmt.Errorf("decode event values: %w", err)
	}
	event.Payload = make([]domain.KV, 0, len(keys))
	for i, key := range keys {
		value := ""
		if i < len(values) {
			value = values[i]
		}
		event.Payload = append(event.Payload, domain.KV{Key: key, Value: value})
	}
	event.Type = domain.EventType(eventType)
	event.CreatedAt = parseTS(createdAt)
	return event, nil
}

// scanComment decodes a comment row.
func scanComment(s scanner) (domain.Comment, error) {
	var (
		comment   domain.Comment
		createdAt string
	)
	if err := s.Scan(&comment.ID, &comment.WorkItemID, &comment.UserID, &comment.Body, &createdAt); err != nil {
		return domain.Comment{}, err
	}
	comment.CreatedAt = parseTS(createdAt)
	return comment, nil
}

// scanArtifact decodes an artifact row.
func scanArtifact(s scanner) (domain.Artifact, error) {
	var (
		artifact  domain.Artifact
		kind      string
		createdAt string
	)
	if err := s.Scan(&artifact.ID, &artifact.WorkItemID, &kind, &artifact.Title, &artifact.URL, &artifact.CreatedByUserID, &createdAt); err != nil {
		return domain.Artifact{}, err
	}
	artifact.Kind = domain.ArtifactKind(kind)
	artifact.CreatedAt = parseTS(createdAt)
	return artifact, nil
}

func ts(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

// nullableTS handles nullable ts.
func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return ts(*t)
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	parsed, err := time.Parse(tsLayout, v)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}

// parseNullTS parses input into a normalized form.
func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	parsed := parseTS(v.String)
	return &parsed
}
