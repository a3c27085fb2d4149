package storage

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
)

// Entity interface that all models must implement
type Entity interface {
	TableName() string
}

// Repository provides generic reflective CRUD for a model keyed by the
// fields tagged primary.
type Repository[T Entity] struct {
	orm       *ORM
	tableName string
}

// NewRepository creates a new repository for type T.
func NewRepository[T Entity](orm *ORM) *Repository[T] {
	var zero T
	return &Repository[T]{
		orm:       orm,
		tableName: zero.TableName(),
	}
}

// column is one tagged struct field.
type column struct {
	name    string
	primary bool
	value   any
}

// columnsOf lists the tagged fields of entity with their current values.
func columnsOf(entity any) []column {
	v := reflect.ValueOf(entity)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	t := v.Type()

	var cols []column
	for i := 0; i < t.NumField(); i++ {
		dbTag := t.Field(i).Tag.Get("db")
		if dbTag == "" || dbTag == "-" {
			continue
		}
		parts := strings.Split(dbTag, ",")
		cols = append(cols, column{
			name:    parts[0],
			primary: slices.Contains(parts[1:], "primary"),
			value:   v.Field(i).Interface(),
		})
	}
	return cols
}

// Upsert writes entity in one statement, inserting it or replacing the non-key
// columns of the row with the same primary key.
func (r *Repository[T]) Upsert(ctx context.Context, entity T) error {
	var names, keys []string
	var values []any
	for _, c := range columnsOf(entity) {
		names = append(names, c.name)
		values = append(values, c.value)
		if c.primary {
			keys = append(keys, c.name)
		}
	}
	if len(keys) == 0 {
		return fmt.Errorf("%s has no primary key columns", r.tableName)
	}

	if _, err := r.orm.Exec(ctx, r.orm.dialect.Upsert(r.tableName, names, keys), values...); err != nil {
		return fmt.Errorf("failed to upsert into %s: %w", r.tableName, err)
	}
	return nil
}

// DeleteWhere deletes the rows matching condition and returns how many were removed.
func (r *Repository[T]) DeleteWhere(ctx context.Context, condition string, args ...any) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", r.tableName, condition)
	result, err := r.orm.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", r.tableName, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows of %s: %w", r.tableName, err)
	}

	log.Debug().
		Int64("rows", n).
		Str("table", r.tableName).
		Msg("Entities deleted")

	return n, nil
}

// Select starts a query over the repository's table.
func (r *Repository[T]) Select() *Query[T] {
	return From[T](r.orm, r.tableName)
}

// First returns the first entity matching condition. It returns
// sql.ErrNoRows when nothing matches.
func (r *Repository[T]) First(ctx context.Context, condition string, args ...any) (*T, error) {
	entity, err := r.Select().
		Where(condition, args...).
		First(ctx)
	if err != nil {
		return nil, err
	}
	return &entity, nil
}
