package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/54b3r/hiresync-go/internal/logging"
	"github.com/54b3r/hiresync-go/internal/model"
)

// Document is a record the repository can persist.
type Document interface {
	GetID() string
	SetID(id string)
	// Tenant returns the owning organization id, or "".
	Tenant() string
	// Stamp sets the creation time if unset and the update time to now.
	Stamp(now time.Time)
	// Validate rejects malformed records and fills defaults.
	Validate() error
}

// Listener receives lifecycle events after each write commits. Events for
// one record are delivered synchronously, in commit order.
type Listener[E any] interface {
	OnCreated(ctx context.Context, e E)
	OnUpdated(ctx context.Context, e E)
	OnDeleted(ctx context.Context, e E)
}

// BulkListener is implemented by listeners that handle the records touched
// by UpdateWhere as one batch. Listeners without it get one OnUpdated per
// record.
type BulkListener[E any] interface {
	OnBulkUpdated(ctx context.Context, es []E)
}

// Filter selects records. Empty fields match everything.
type Filter struct {
	// Org restricts the selection to one organization.
	Org string
	// IDs restricts the selection to the listed ids.
	IDs []string
	// Fields matches top-level document fields by equality.
	Fields map[string]any
}

// ListOptions pages through a List.
type ListOptions struct {
	Org    string
	Limit  int
	Offset int
}

// maxIDsPerStatement bounds the ids bound into one IN list, well under
// SQLite's host parameter limit.
const maxIDsPerStatement = 500

// fieldName guards the JSON paths built from caller-supplied field names.
var fieldName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// immutableFields cannot be changed by UpdateWhere.
var immutableFields = map[string]bool{"id": true, "org": true, "created_at": true}

// Repository stores documents of type E in one table.
type Repository[E Document] struct {
	db     *sql.DB
	table  string
	newDoc func() E
	log    *slog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	listeners []Listener[E]
}

func newRepository[E Document](db *DB, table string, newDoc func() E, log *slog.Logger) *Repository[E] {
	return &Repository[E]{
		db:     db.db,
		table:  table,
		newDoc: newDoc,
		log:    logging.Component(log, "store").With(slog.String("table", table)),
		now:    time.Now,
	}
}

// NewOrganizations returns the organization repository.
func NewOrganizations(db *DB, log *slog.Logger) *Repository[*model.Organization] {
	return newRepository(db, tableOrganizations, func() *model.Organization { return &model.Organization{} }, log)
}

// NewCandidates returns the candidate repository.
func NewCandidates(db *DB, log *slog.Logger) *Repository[*model.Candidate] {
	return newRepository(db, tableCandidates, func() *model.Candidate { return &model.Candidate{} }, log)
}

// NewJobListings returns the job listing repository.
func NewJobListings(db *DB, log *slog.Logger) *Repository[*model.JobListing] {
	return newRepository(db, tableJobListings, func() *model.JobListing { return &model.JobListing{} }, log)
}

// Subscribe registers l for lifecycle events.
func (r *Repository[E]) Subscribe(l Listener[E]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// Create validates and inserts e, assigning an id when it has none.
func (r *Repository[E]) Create(ctx context.Context, e E) error {
	if e.GetID() == "" {
		e.SetID(uuid.NewString())
	}
	if err := e.Validate(); err != nil {
		return err
	}
	e.Stamp(r.now())

	doc, created, updated, err := r.encode(e)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, org, doc, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`, r.table)
	if _, err := r.db.ExecContext(ctx, q, e.GetID(), e.Tenant(), doc, created, updated); err != nil {
		return fmt.Errorf("store: create %s %s: %w", r.table, e.GetID(), err)
	}

	for _, l := range r.snapshot() {
		l.OnCreated(ctx, e)
	}
	return nil
}

// Update validates and replaces e. It returns ErrNotFound if e does not exist.
func (r *Repository[E]) Update(ctx context.Context, e E) error {
	if e.GetID() == "" {
		return fmt.Errorf("%w: id is required for update", model.ErrInvalid)
	}
	if err := e.Validate(); err != nil {
		return err
	}
	e.Stamp(r.now())

	doc, _, updated, err := r.encode(e)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`UPDATE %s SET org = ?, doc = ?, updated_at = ? WHERE id = ?`, r.table)
	res, err := r.db.ExecContext(ctx, q, e.Tenant(), doc, updated, e.GetID())
	if err != nil {
		return fmt.Errorf("store: update %s %s: %w", r.table, e.GetID(), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	for _, l := range r.snapshot() {
		l.OnUpdated(ctx, e)
	}
	return nil
}

// Delete removes the record with id and returns it.
func (r *Repository[E]) Delete(ctx context.Context, id string) (E, error) {
	e, err := r.Get(ctx, id)
	if err != nil {
		return e, err
	}
	q := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, r.table)
	if _, err := r.db.ExecContext(ctx, q, id); err != nil {
		return e, fmt.Errorf("store: delete %s %s: %w", r.table, id, err)
	}

	for _, l := range r.snapshot() {
		l.OnDeleted(ctx, e)
	}
	return e, nil
}

// Get returns the record with id, or ErrNotFound.
func (r *Repository[E]) Get(ctx context.Context, id string) (E, error) {
	q := fmt.Sprintf(`SELECT doc FROM %s WHERE id = ?`, r.table)
	var doc string
	err := r.db.QueryRowContext(ctx, q, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		var zero E
		return zero, ErrNotFound
	}
	if err != nil {
		var zero E
		return zero, fmt.Errorf("store: get %s %s: %w", r.table, id, err)
	}
	return r.decode(doc)
}

// GetMany returns the records with ids in the order given, skipping ids
// that do not exist.
func (r *Repository[E]) GetMany(ctx context.Context, ids []string) ([]E, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []E
	for _, f := range (Filter{IDs: ids}).chunks() {
		part, err := r.query(ctx, f, "", nil)
		if err != nil {
			return nil, err
		}
		found = append(found, part...)
	}
	byID := make(map[string]E, len(found))
	for _, e := range found {
		byID[e.GetID()] = e
	}
	out := make([]E, 0, len(ids))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// List returns records ordered by creation time.
func (r *Repository[E]) List(ctx context.Context, opts ListOptions) ([]E, error) {
	suffix := " ORDER BY created_at ASC, id ASC"
	var args []any
	if opts.Limit > 0 {
		suffix += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, max(opts.Offset, 0))
	}
	return r.query(ctx, Filter{Org: opts.Org}, suffix, args)
}

// IDsWhere returns the ids of the records matching f in id order.
func (r *Repository[E]) IDsWhere(ctx context.Context, f Filter) ([]string, error) {
	return r.matchingIDs(ctx, r.db, f)
}

// matchingIDs runs one SELECT per id chunk of f and merges the results.
func (r *Repository[E]) matchingIDs(ctx context.Context, q queryer, f Filter) ([]string, error) {
	var ids []string
	for _, part := range f.chunks() {
		where, args, err := part.where()
		if err != nil {
			return nil, err
		}
		got, err := collectIDs(ctx, q, fmt.Sprintf(`SELECT id FROM %s%s ORDER BY id`, r.table, where), args)
		if err != nil {
			return nil, err
		}
		ids = append(ids, got...)
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

// UpdateWhere applies patch to every record matching f in one transaction
// and returns the number of records changed. The affected ids are captured
// before the update; afterwards the records are re-read and handed to
// listeners, as one batch to a BulkListener or one OnUpdated each otherwise.
func (r *Repository[E]) UpdateWhere(ctx context.Context, f Filter, patch map[string]any) (int, error) {
	if len(patch) == 0 {
		return 0, nil
	}
	setExpr, setArgs, err := patchExpr(patch)
	if err != nil {
		return 0, err
	}
	if _, _, err := f.where(); err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ids, err := r.matchingIDs(ctx, tx, f)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	now := r.now().UTC()
	stamp, _ := json.Marshal(now)
	for chunk := range slices.Chunk(ids, maxIDsPerStatement) {
		inWhere, inArgs := inClause(chunk)
		q := fmt.Sprintf(`UPDATE %s SET doc = json_set(doc, %s, '$.updated_at', json(?)), updated_at = ? WHERE %s`,
			r.table, setExpr, inWhere)
		args := slices.Concat(setArgs, []any{string(stamp), now.UnixNano()}, inArgs)
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return 0, fmt.Errorf("store: bulk update %s: %w", r.table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}

	updated, err := r.GetMany(ctx, ids)
	if err != nil {
		r.log.Error("bulk update committed but records could not be re-read for listeners",
			slog.Int("count", len(ids)),
			slog.Any("error", err),
		)
		return len(ids), nil
	}
	for _, l := range r.snapshot() {
		if bl, ok := l.(BulkListener[E]); ok {
			bl.OnBulkUpdated(ctx, updated)
			continue
		}
		for _, e := range updated {
			l.OnUpdated(ctx, e)
		}
	}
	return len(ids), nil
}

func (r *Repository[E]) query(ctx context.Context, f Filter, suffix string, extra []any) ([]E, error) {
	where, args, err := f.where()
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT doc FROM %s%s%s`, r.table, where, suffix)
	rows, err := r.db.QueryContext(ctx, q, append(args, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("store: query %s: %w", r.table, err)
	}
	defer rows.Close()

	var out []E
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("store: query scan: %w", err)
		}
		e, err := r.decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: query rows: %w", err)
	}
	return out, nil
}

func (r *Repository[E]) snapshot() []Listener[E] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Listener[E](nil), r.listeners...)
}

func (r *Repository[E]) encode(e E) (doc string, created, updated int64, err error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", 0, 0, fmt.Errorf("store: encode %s: %w", r.table, err)
	}
	var stamps struct {
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}
	_ = json.Unmarshal(data, &stamps)
	return string(data), stamps.CreatedAt.UnixNano(), stamps.UpdatedAt.UnixNano(), nil
}

func (r *Repository[E]) decode(doc string) (E, error) {
	e := r.newDoc()
	if err := json.Unmarshal([]byte(doc), e); err != nil {
		var zero E
		return zero, fmt.Errorf("store: decode %s: %w", r.table, err)
	}
	return e, nil
}

// chunks splits f so that no part binds more than maxIDsPerStatement ids.
func (f Filter) chunks() []Filter {
	if len(f.IDs) <= maxIDsPerStatement {
		return []Filter{f}
	}
	var parts []Filter
	for ids := range slices.Chunk(f.IDs, maxIDsPerStatement) {
		part := f
		part.IDs = ids
		parts = append(parts, part)
	}
	return parts
}

// where renders f as a SQL WHERE clause. Field names are validated before
// being embedded in JSON paths.
func (f Filter) where() (string, []any, error) {
	var (
		clauses []string
		args    []any
	)
	if f.Org != "" {
		clauses = append(clauses, "org = ?")
		args = append(args, f.Org)
	}
	if f.IDs != nil {
		if len(f.IDs) == 0 {
			clauses = append(clauses, "0")
		} else {
			in, inArgs := inClause(f.IDs)
			clauses = append(clauses, in)
			args = append(args, inArgs...)
		}
	}
	for _, name := range sortedKeys(f.Fields) {
		if !fieldName.MatchString(name) {
			return "", nil, fmt.Errorf("%w: invalid filter field %q", model.ErrInvalid, name)
		}
		clauses = append(clauses, fmt.Sprintf("json_extract(doc, '$.%s') = ?", name))
		args = append(args, sqlValue(f.Fields[name]))
	}
	if len(clauses) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func patchExpr(patch map[string]any) (string, []any, error) {
	parts := make([]string, 0, len(patch))
	args := make([]any, 0, len(patch))
	for _, name := range sortedKeys(patch) {
		if !fieldName.MatchString(name) || immutableFields[name] {
			return "", nil, fmt.Errorf("%w: field %q cannot be patched", model.ErrInvalid, name)
		}
		data, err := json.Marshal(patch[name])
		if err != nil {
			return "", nil, fmt.Errorf("%w: patch value for %q: %v", model.ErrInvalid, name, err)
		}
		parts = append(parts, fmt.Sprintf("'$.%s', json(?)", name))
		args = append(args, string(data))
	}
	return strings.Join(parts, ", "), args, nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func collectIDs(ctx context.Context, q queryer, query string, args []any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: select ids: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: select ids scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func inClause(ids []string) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return "id IN (" + strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",") + ")", args
}

// sqlValue maps a filter value onto what json_extract yields for it: named
// string types become plain strings and booleans become 0 or 1.
func sqlValue(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		if rv.Bool() {
			return 1
		}
		return 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return v
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}
