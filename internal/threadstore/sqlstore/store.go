// Package sqlstore is the production ThreadStore backend: a single
// goqu-built query layer that drives either Postgres (via pgx/v5's stdlib
// driver) or SQLite (via modernc.org/sqlite, pure Go) depending on
// TYLER_DB_TYPE, grounded on rakunlabs-at's goqu-over-database/sql
// Postgres store (spec.md §4.2).
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/flores8/tyler/internal/threadstore"
	"github.com/flores8/tyler/pkg/models"
)

// Dialect names the two supported backends.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

var (
	tableThreads  = goqu.T("threads")
	tableMessages = goqu.T("messages")
)

// Store is the sqlstore-backed threadstore.Store implementation.
type Store struct {
	db      *sql.DB
	goqu    *goqu.Database
	dialect Dialect
}

// Open connects to dsn for dialect, runs pending migrations, and returns a
// ready Store. Callers are responsible for calling Close.
func Open(ctx context.Context, dialect Dialect, dsn string, poolSize int) (*Store, error) {
	driverName := "pgx"
	goquDialect := "postgres"
	if dialect == DialectSQLite {
		driverName = "sqlite"
		goquDialect = "sqlite3"
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", dialect, err)
	}
	if poolSize > 0 {
		db.SetMaxOpenConns(poolSize)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: ping %s: %w", dialect, err)
	}

	if err := RunMigrations(db, dialect); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, goqu: goqu.New(goquDialect, db), dialect: dialect}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

type threadRow struct {
	ID         string
	Title      string
	Attributes string
	Source     string
	Metrics    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type messageRow struct {
	ID          string
	ThreadID    string
	Sequence    int
	Role        string
	Content     sql.NullString
	Name        sql.NullString
	ToolCallID  sql.NullString
	ToolCalls   sql.NullString
	Attributes  sql.NullString
	Timestamp   time.Time
	Source      sql.NullString
	Attachments sql.NullString
	Metrics     sql.NullString
}

// Save upserts thread and diff-applies its messages (spec.md §4.2): the
// thread row is last-writer-wins; message rows are merged by id, which
// stays idempotent because message ids are content-derived hashes.
func (s *Store) Save(ctx context.Context, thread *models.Thread) error {
	if thread == nil || thread.ID == "" {
		return errors.New("sqlstore: thread id is required")
	}

	attrsJSON, err := json.Marshal(thread.Attributes)
	if err != nil {
		return fmt.Errorf("sqlstore: marshal attributes: %w", err)
	}
	sourceJSON, err := json.Marshal(thread.Source)
	if err != nil {
		return fmt.Errorf("sqlstore: marshal source: %w", err)
	}
	metricsJSON, err := json.Marshal(thread.Metrics)
	if err != nil {
		return fmt.Errorf("sqlstore: marshal metrics: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	txGoqu := s.goqu.WithTx(tx)

	now := time.Now().UTC()
	upsertThread, _, err := txGoqu.Insert(tableThreads).Rows(goqu.Record{
		"id":         thread.ID,
		"title":      thread.Title,
		"attributes": string(attrsJSON),
		"source":     string(sourceJSON),
		"metrics":    string(metricsJSON),
		"created_at": thread.CreatedAt,
		"updated_at": now,
	}).OnConflict(goqu.DoUpdate("id", goqu.Record{
		"title":      thread.Title,
		"attributes": string(attrsJSON),
		"source":     string(sourceJSON),
		"metrics":    string(metricsJSON),
		"updated_at": now,
	})).ToSQL()
	if err != nil {
		return fmt.Errorf("sqlstore: build thread upsert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsertThread); err != nil {
		return fmt.Errorf("sqlstore: upsert thread: %w", err)
	}

	for _, m := range thread.Messages {
		if err := saveMessage(ctx, tx, txGoqu, thread.ID, m); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit: %w", err)
	}
	thread.UpdatedAt = now
	return nil
}

func saveMessage(ctx context.Context, tx *sql.Tx, txGoqu *goqu.TxDatabase, threadID string, m *models.Message) error {
	contentJSON, err := json.Marshal(m.Content)
	if err != nil {
		return fmt.Errorf("sqlstore: marshal message content: %w", err)
	}
	toolCallsJSON, err := json.Marshal(m.ToolCalls)
	if err != nil {
		return fmt.Errorf("sqlstore: marshal tool calls: %w", err)
	}
	attrsJSON, err := json.Marshal(m.Attributes)
	if err != nil {
		return fmt.Errorf("sqlstore: marshal message attributes: %w", err)
	}
	sourceJSON, err := json.Marshal(m.Source)
	if err != nil {
		return fmt.Errorf("sqlstore: marshal message source: %w", err)
	}
	attachmentsJSON, err := json.Marshal(m.Attachments)
	if err != nil {
		return fmt.Errorf("sqlstore: marshal attachments: %w", err)
	}
	metricsJSON, err := json.Marshal(m.Metrics)
	if err != nil {
		return fmt.Errorf("sqlstore: marshal message metrics: %w", err)
	}

	record := goqu.Record{
		"id":           m.ID,
		"thread_id":    threadID,
		"sequence":     m.Sequence,
		"role":         string(m.Role),
		"content":      string(contentJSON),
		"name":         nullableString(m.Name),
		"tool_call_id": nullableString(m.ToolCallID),
		"tool_calls":   string(toolCallsJSON),
		"attributes":   string(attrsJSON),
		"timestamp":    m.Timestamp,
		"source":       string(sourceJSON),
		"attachments":  string(attachmentsJSON),
		"metrics":      string(metricsJSON),
	}

	query, _, err := txGoqu.Insert(tableMessages).Rows(record).
		OnConflict(goqu.DoUpdate("id", record)).ToSQL()
	if err != nil {
		return fmt.Errorf("sqlstore: build message upsert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("sqlstore: upsert message %s: %w", m.ID, err)
	}
	return nil
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// Get returns the fully populated thread for id, or (nil, nil) on a miss.
func (s *Store) Get(ctx context.Context, id string) (*models.Thread, error) {
	query, _, err := s.goqu.From(tableThreads).Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("sqlstore: build thread query: %w", err)
	}
	row := threadRow{}
	err = s.db.QueryRowContext(ctx, query).Scan(&row.ID, &row.Title, &row.Attributes, &row.Source, &row.Metrics, &row.CreatedAt, &row.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get thread %s: %w", id, err)
	}

	thread, err := row.toThread()
	if err != nil {
		return nil, err
	}

	messages, err := s.loadMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	thread.Messages = messages
	return thread, nil
}

func (s *Store) loadMessages(ctx context.Context, threadID string) ([]*models.Message, error) {
	query, _, err := s.goqu.From(tableMessages).
		Where(goqu.I("thread_id").Eq(threadID)).
		Order(goqu.I("sequence").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("sqlstore: build messages query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list messages for %s: %w", threadID, err)
	}
	defer rows.Close()

	var out []*models.Message
	for rows.Next() {
		var r messageRow
		if err := rows.Scan(&r.ID, &r.ThreadID, &r.Sequence, &r.Role, &r.Content, &r.Name, &r.ToolCallID, &r.ToolCalls, &r.Attributes, &r.Timestamp, &r.Source, &r.Attachments, &r.Metrics); err != nil {
			return nil, fmt.Errorf("sqlstore: scan message row: %w", err)
		}
		m, err := r.toMessage()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r threadRow) toThread() (*models.Thread, error) {
	var attrs, source map[string]any
	if err := json.Unmarshal([]byte(r.Attributes), &attrs); err != nil {
		return nil, fmt.Errorf("sqlstore: unmarshal thread attributes: %w", err)
	}
	if err := json.Unmarshal([]byte(r.Source), &source); err != nil {
		return nil, fmt.Errorf("sqlstore: unmarshal thread source: %w", err)
	}
	var metrics models.ThreadMetrics
	if err := json.Unmarshal([]byte(r.Metrics), &metrics); err != nil {
		return nil, fmt.Errorf("sqlstore: unmarshal thread metrics: %w", err)
	}
	return &models.Thread{
		ID:         r.ID,
		Title:      r.Title,
		Attributes: attrs,
		Source:     source,
		Metrics:    metrics,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}, nil
}

func (r messageRow) toMessage() (*models.Message, error) {
	var content models.Content
	if r.Content.Valid && r.Content.String != "" {
		if err := json.Unmarshal([]byte(r.Content.String), &content); err != nil {
			return nil, fmt.Errorf("sqlstore: unmarshal message content: %w", err)
		}
	}
	var toolCalls []models.ToolCall
	if r.ToolCalls.Valid && r.ToolCalls.String != "" && r.ToolCalls.String != "null" {
		if err := json.Unmarshal([]byte(r.ToolCalls.String), &toolCalls); err != nil {
			return nil, fmt.Errorf("sqlstore: unmarshal tool calls: %w", err)
		}
	}
	var attrs map[string]any
	if r.Attributes.Valid && r.Attributes.String != "" {
		_ = json.Unmarshal([]byte(r.Attributes.String), &attrs)
	}
	var source map[string]any
	if r.Source.Valid && r.Source.String != "" {
		_ = json.Unmarshal([]byte(r.Source.String), &source)
	}
	var attachments []models.Attachment
	if r.Attachments.Valid && r.Attachments.String != "" && r.Attachments.String != "null" {
		if err := json.Unmarshal([]byte(r.Attachments.String), &attachments); err != nil {
			return nil, fmt.Errorf("sqlstore: unmarshal attachments: %w", err)
		}
	}
	var metrics models.MessageMetrics
	if r.Metrics.Valid && r.Metrics.String != "" {
		_ = json.Unmarshal([]byte(r.Metrics.String), &metrics)
	}

	return &models.Message{
		ID:          r.ID,
		Role:        models.Role(r.Role),
		Content:     content,
		Sequence:    r.Sequence,
		Name:        r.Name.String,
		ToolCallID:  r.ToolCallID.String,
		ToolCalls:   toolCalls,
		Attributes:  attrs,
		Timestamp:   r.Timestamp.UTC(),
		Source:      source,
		Attachments: attachments,
		Metrics:     metrics,
	}, nil
}

// Delete cascade-removes thread and its messages (FK ON DELETE CASCADE).
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	query, _, err := s.goqu.Delete(tableThreads).Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return false, fmt.Errorf("sqlstore: build delete: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return false, fmt.Errorf("sqlstore: delete thread %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlstore: rows affected: %w", err)
	}
	return affected > 0, nil
}

// List returns threads ordered by updated_at desc, paginated.
func (s *Store) List(ctx context.Context, limit, offset int) ([]*models.Thread, error) {
	return s.listOrdered(ctx, limit, offset)
}

// ListRecent returns the limit most recently updated threads.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]*models.Thread, error) {
	return s.listOrdered(ctx, limit, 0)
}

func (s *Store) listOrdered(ctx context.Context, limit, offset int) ([]*models.Thread, error) {
	ds := s.goqu.From(tableThreads).Order(goqu.I("updated_at").Desc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	if offset > 0 {
		ds = ds.Offset(uint(offset))
	}
	query, _, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("sqlstore: build list query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list threads: %w", err)
	}
	defer rows.Close()

	var ids []string
	var out []*models.Thread
	for rows.Next() {
		var r threadRow
		if err := rows.Scan(&r.ID, &r.Title, &r.Attributes, &r.Source, &r.Metrics, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlstore: scan thread row: %w", err)
		}
		th, err := r.toThread()
		if err != nil {
			return nil, err
		}
		out = append(out, th)
		ids = append(ids, th.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, th := range out {
		msgs, err := s.loadMessages(ctx, th.ID)
		if err != nil {
			return nil, err
		}
		th.Messages = msgs
	}
	return out, nil
}

// FindByAttributes scans threads ordered by updated_at desc, filtering in
// Go on decoded JSON. The corpus carries no dialect-portable JSON-path
// query helper, so this trades a full-table attribute scan for staying
// dialect-agnostic across Postgres jsonb and SQLite's json1 extension
// (see DESIGN.md).
func (s *Store) FindByAttributes(ctx context.Context, attrs map[string]any) ([]*models.Thread, error) {
	all, err := s.listOrdered(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	var out []*models.Thread
	for _, th := range all {
		if matchesAll(th.Attributes, attrs) {
			out = append(out, th)
		}
	}
	return out, nil
}

// FindBySource matches threads whose source.name equals sourceName and
// whose remaining source fields match properties, using the same
// scan-and-filter approach as FindByAttributes.
func (s *Store) FindBySource(ctx context.Context, sourceName string, properties map[string]any) ([]*models.Thread, error) {
	all, err := s.listOrdered(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	var out []*models.Thread
	for _, th := range all {
		if th.Source == nil {
			continue
		}
		if name, _ := th.Source["name"].(string); name != sourceName {
			continue
		}
		if matchesAll(th.Source, properties) {
			out = append(out, th)
		}
	}
	return out, nil
}

func matchesAll(have, want map[string]any) bool {
	for k, v := range want {
		hv, ok := have[k]
		if !ok || fmt.Sprint(hv) != fmt.Sprint(v) {
			return false
		}
	}
	return true
}

// ListAllAttachmentFileIDs scans every message row for stored attachment
// file ids, for filestore.CleanupOrphaned.
func (s *Store) ListAllAttachmentFileIDs(ctx context.Context) (map[string]struct{}, error) {
	query, _, err := s.goqu.From(tableMessages).Select("attachments").ToSQL()
	if err != nil {
		return nil, fmt.Errorf("sqlstore: build attachments scan: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: scan attachments: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var raw sql.NullString
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("sqlstore: scan attachments row: %w", err)
		}
		if !raw.Valid || raw.String == "" || raw.String == "null" {
			continue
		}
		var attachments []models.Attachment
		if err := json.Unmarshal([]byte(raw.String), &attachments); err != nil {
			continue
		}
		for _, a := range attachments {
			if a.FileID != "" {
				ids[a.FileID] = struct{}{}
			}
		}
	}
	return ids, rows.Err()
}

var _ threadstore.Store = (*Store)(nil)
