// Package store persists records for registered models. Statements use
// PostgreSQL placeholder syntax; writes return the stored row via RETURNING
// so callers never re-read after a write.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/panelkit/panelkit/internal/admin/query"
	"github.com/panelkit/panelkit/internal/admin/registry"
	"github.com/panelkit/panelkit/internal/admin/schema"
)

// Querier is the subset of *sql.DB and *sql.Tx the store needs. Service code
// passes the transaction it holds so every statement in one operation shares
// a snapshot.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store reads and writes records as column-keyed maps.
type Store interface {
	GetByID(ctx context.Context, q Querier, model *registry.Model, columns []string, id any) (map[string]any, error)
	Insert(ctx context.Context, q Querier, model *registry.Model, values map[string]any) (map[string]any, error)
	Update(ctx context.Context, q Querier, model *registry.Model, id any, values map[string]any) (map[string]any, error)
	Delete(ctx context.Context, q Querier, model *registry.Model, id any) error
	Select(ctx context.Context, q Querier, model *registry.Model, columns []string, desc *query.Descriptor) ([]map[string]any, error)
	Count(ctx context.Context, q Querier, model *registry.Model, desc *query.Descriptor) (int64, error)
	ReplaceLinks(ctx context.Context, q Querier, rel *schema.Relation, ownerID any, targets []any) error
	SelectLinked(ctx context.Context, q Querier, rel *schema.Relation, target *registry.Model, columns []string, ownerID any) ([]map[string]any, error)
}

// SQLStore implements Store over database/sql.
type SQLStore struct{}

// NewSQLStore creates a SQLStore.
func NewSQLStore() *SQLStore {
	return &SQLStore{}
}

// GetByID fetches one record by primary key, returning ErrNotFound when no
// row matches.
func (s *SQLStore) GetByID(ctx context.Context, q Querier, model *registry.Model, columns []string, id any) (map[string]any, error) {
	if len(columns) == 0 {
		columns = model.Columns
	}
	stmt := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1",
		strings.Join(columns, ", "),
		model.Table,
		model.PrimaryKey,
	)

	row := q.QueryRowContext(ctx, stmt, id)
	record, err := scanRowWithColumns(row, columns)
	if err != nil {
		return nil, ConvertDBError(err)
	}
	return record, nil
}

// Insert writes a new record and returns the stored row, including
// database-assigned defaults.
func (s *SQLStore) Insert(ctx context.Context, q Querier, model *registry.Model, values map[string]any) (map[string]any, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("insert into %s: no values", model.Table)
	}

	names := sortedKeys(values)
	placeholders := make([]string, len(names))
	args := make([]any, len(names))
	for i, name := range names {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = values[name]
	}

	returning := returningColumns(model)
	stmt := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		model.Table,
		strings.Join(names, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(returning, ", "),
	)

	row := q.QueryRowContext(ctx, stmt, args...)
	record, err := scanRowWithColumns(row, returning)
	if err != nil {
		return nil, ConvertDBError(err)
	}
	return record, nil
}

// Update writes only the given columns and returns the full stored row.
// ErrNotFound is returned when the primary key matches nothing.
func (s *SQLStore) Update(ctx context.Context, q Querier, model *registry.Model, id any, values map[string]any) (map[string]any, error) {
	if len(values) == 0 {
		// Nothing to write; hand back the current row so updates with an
		// empty delta stay a read.
		return s.GetByID(ctx, q, model, nil, id)
	}

	names := sortedKeys(values)
	assignments := make([]string, len(names))
	args := make([]any, 0, len(names)+1)
	for i, name := range names {
		assignments[i] = fmt.Sprintf("%s = $%d", name, i+1)
		args = append(args, values[name])
	}
	args = append(args, id)

	returning := returningColumns(model)
	stmt := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = $%d RETURNING %s",
		model.Table,
		strings.Join(assignments, ", "),
		model.PrimaryKey,
		len(names)+1,
		strings.Join(returning, ", "),
	)

	row := q.QueryRowContext(ctx, stmt, args...)
	record, err := scanRowWithColumns(row, returning)
	if err != nil {
		return nil, ConvertDBError(err)
	}
	return record, nil
}

// Delete removes one record by primary key, returning ErrNotFound when no
// row matched.
func (s *SQLStore) Delete(ctx context.Context, q Querier, model *registry.Model, id any) error {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", model.Table, model.PrimaryKey)

	result, err := q.ExecContext(ctx, stmt, id)
	if err != nil {
		return ConvertDBError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Select fetches one page of records described by desc.
func (s *SQLStore) Select(ctx context.Context, q Querier, model *registry.Model, columns []string, desc *query.Descriptor) ([]map[string]any, error) {
	if len(columns) == 0 {
		columns = model.Columns
	}
	stmt, err := query.BuildSelect(model, columns, desc)
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, ConvertDBError(err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// Count counts the records matching desc's filters.
func (s *SQLStore) Count(ctx context.Context, q Querier, model *registry.Model, desc *query.Descriptor) (int64, error) {
	stmt, err := query.BuildCount(model, desc)
	if err != nil {
		return 0, err
	}

	var total int64
	if err := q.QueryRowContext(ctx, stmt.SQL, stmt.Args...).Scan(&total); err != nil {
		return 0, ConvertDBError(err)
	}
	return total, nil
}

// ReplaceLinks rewrites a many_to_many field's join-table rows so the owning
// record links exactly the given targets. An empty target list clears the
// links. Foreign key constraints on the join table surface dangling targets
// as ErrForeignKeyViolation.
func (s *SQLStore) ReplaceLinks(ctx context.Context, q Querier, rel *schema.Relation, ownerID any, targets []any) error {
	clearStmt := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", rel.JoinTable, rel.SourceColumn)
	if _, err := q.ExecContext(ctx, clearStmt, ownerID); err != nil {
		return ConvertDBError(err)
	}
	if len(targets) == 0 {
		return nil
	}

	rows := make([]string, len(targets))
	args := make([]any, 0, len(targets)+1)
	args = append(args, ownerID)
	for i, target := range targets {
		rows[i] = fmt.Sprintf("($1, $%d)", i+2)
		args = append(args, target)
	}
	stmt := fmt.Sprintf(
		"INSERT INTO %s (%s, %s) VALUES %s",
		rel.JoinTable,
		rel.SourceColumn,
		rel.TargetColumn,
		strings.Join(rows, ", "),
	)

	if _, err := q.ExecContext(ctx, stmt, args...); err != nil {
		return ConvertDBError(err)
	}
	return nil
}

// SelectLinked fetches the target-model columns of every record linked to the
// owner through a many_to_many join table, ordered by the target's primary
// key.
func (s *SQLStore) SelectLinked(ctx context.Context, q Querier, rel *schema.Relation, target *registry.Model, columns []string, ownerID any) ([]map[string]any, error) {
	if len(columns) == 0 {
		columns = target.Columns
	}
	qualified := make([]string, len(columns))
	for i, c := range columns {
		qualified[i] = target.Table + "." + c
	}
	stmt := fmt.Sprintf(
		"SELECT %s FROM %s JOIN %s ON %s.%s = %s.%s WHERE %s.%s = $1 ORDER BY %s.%s ASC",
		strings.Join(qualified, ", "),
		target.Table,
		rel.JoinTable,
		rel.JoinTable, rel.TargetColumn,
		target.Table, target.PrimaryKey,
		rel.JoinTable, rel.SourceColumn,
		target.Table, target.PrimaryKey,
	)

	rows, err := q.QueryContext(ctx, stmt, ownerID)
	if err != nil {
		return nil, ConvertDBError(err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// returningColumns lists the model columns in sorted order for determinism.
func returningColumns(model *registry.Model) []string {
	cols := make([]string, len(model.Columns))
	copy(cols, model.Columns)
	sort.Strings(cols)
	return cols
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
