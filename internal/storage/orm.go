package storage

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ORM is a thin query layer over database/sql.
//
// Queries are written with ? placeholders and rebound for the active dialect
// right before execution.
type ORM struct {
	db      *sql.DB
	q       querier
	dialect Dialect
}

// NewORM wraps db for the given dialect.
func NewORM(db *sql.DB, dialect Dialect) *ORM {
	return &ORM{db: db, q: db, dialect: dialect}
}

// Exec runs a statement that returns no rows.
func (orm *ORM) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	query = orm.dialect.Rebind(query)
	log.Debug().Str("query", query).Interface("args", args).Msg("Exec")
	return orm.q.ExecContext(ctx, query, args...)
}

// InTx runs fn inside a transaction bound to a transactional ORM.
//
// The transaction is committed when fn returns nil and rolled back otherwise.
func (orm *ORM) InTx(ctx context.Context, fn func(tx *ORM) error) (err error) {
	if orm.db == nil {
		return fmt.Errorf("nested transactions are not supported")
	}

	tx, err := orm.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&ORM{q: tx, dialect: orm.dialect}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Query is a SELECT over one table whose rows scan into T by db tag.
type Query[T any] struct {
	orm    *ORM
	table  string
	conds  []string
	args   []any
	order  string
	limit  int
	offset int
}

// From starts a query over table.
func From[T any](orm *ORM, table string) *Query[T] {
	return &Query[T]{orm: orm, table: table}
}

// Where adds a condition. Conditions are ANDed together.
func (q *Query[T]) Where(cond string, args ...any) *Query[T] {
	q.conds = append(q.conds, "("+cond+")")
	q.args = append(q.args, args...)
	return q
}

// OrderBy sets the ORDER BY expression.
func (q *Query[T]) OrderBy(order string) *Query[T] {
	q.order = order
	return q
}

// Limit caps the number of rows returned. Zero means no cap.
func (q *Query[T]) Limit(n int) *Query[T] {
	q.limit = n
	return q
}

// Offset skips the first n rows.
func (q *Query[T]) Offset(n int) *Query[T] {
	q.offset = n
	return q
}

// All runs the query and scans every row.
func (q *Query[T]) All(ctx context.Context) ([]T, error) {
	fields := fieldsOf[T]()

	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.column
	}
	stmt := "SELECT " + strings.Join(cols, ", ") + " FROM " + q.table + q.where()
	if q.order != "" {
		stmt += " ORDER BY " + q.order
	}
	stmt = q.orm.dialect.Rebind(stmt + q.orm.dialect.Paginate(q.limit, q.offset, q.order != ""))

	log.Debug().Str("query", stmt).Interface("args", q.args).Msg("Select")

	rows, err := q.orm.q.QueryContext(ctx, stmt, q.args...)
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", q.table, err)
	}
	defer rows.Close()

	raw := make([]any, len(fields))
	dest := make([]any, len(fields))
	for i := range raw {
		dest[i] = &raw[i]
	}

	var out []T
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", q.table, err)
		}
		var item T
		v := reflect.ValueOf(&item).Elem()
		for i, f := range fields {
			if err := assign(v.Field(f.index), raw[i]); err != nil {
				return nil, fmt.Errorf("%s.%s: %w", q.table, f.column, err)
			}
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", q.table, err)
	}
	return out, nil
}

// First returns the first matching row, or sql.ErrNoRows.
func (q *Query[T]) First(ctx context.Context) (T, error) {
	var zero T
	items, err := q.Limit(1).All(ctx)
	if err != nil {
		return zero, err
	}
	if len(items) == 0 {
		return zero, sql.ErrNoRows
	}
	return items[0], nil
}

// Count returns the number of matching rows, ignoring order and paging.
func (q *Query[T]) Count(ctx context.Context) (int64, error) {
	stmt := q.orm.dialect.Rebind("SELECT COUNT(*) FROM " + q.table + q.where())
	log.Debug().Str("query", stmt).Interface("args", q.args).Msg("Count")

	var n int64
	if err := q.orm.q.QueryRowContext(ctx, stmt, q.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", q.table, err)
	}
	return n, nil
}

func (q *Query[T]) where() string {
	if len(q.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.conds, " AND ")
}

type field struct {
	column string
	index  int
}

// fieldsOf lists the db-tagged fields of T in declaration order.
func fieldsOf[T any]() []field {
	t := reflect.TypeFor[T]()
	var fields []field
	for i := range t.NumField() {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("db"), ",")
		if name == "" || name == "-" {
			continue
		}
		fields = append(fields, field{column: name, index: i})
	}
	return fields
}

// timeLayouts are the textual timestamp formats drivers hand back.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

var timeType = reflect.TypeFor[time.Time]()

// assign stores a driver value in dst. NULL leaves value fields untouched
// and sets pointer fields to nil.
func assign(dst reflect.Value, src any) error {
	if dst.Kind() == reflect.Pointer {
		if src == nil {
			dst.SetZero()
			return nil
		}
		elem := reflect.New(dst.Type().Elem())
		if err := assign(elem.Elem(), src); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}
	if src == nil {
		return nil
	}

	if b, ok := src.([]byte); ok {
		src = string(b)
	}

	if dst.Type() == timeType {
		return assignTime(dst, src)
	}

	sv := reflect.ValueOf(src)
	switch dst.Kind() {
	case reflect.String:
		if s, ok := src.(string); ok {
			dst.SetString(s)
			return nil
		}
	case reflect.Bool:
		switch v := src.(type) {
		case bool:
			dst.SetBool(v)
			return nil
		case int64:
			dst.SetBool(v != 0)
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if sv.CanInt() || sv.CanFloat() {
			n := sv.Convert(reflect.TypeFor[int64]()).Int()
			if dst.OverflowInt(n) {
				return fmt.Errorf("value %d overflows %s", n, dst.Type())
			}
			dst.SetInt(n)
			return nil
		}
	case reflect.Float32, reflect.Float64:
		if s, ok := src.(string); ok {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return fmt.Errorf("invalid number %q: %w", s, err)
			}
			dst.SetFloat(f)
			return nil
		}
		if sv.CanInt() || sv.CanFloat() {
			dst.SetFloat(sv.Convert(reflect.TypeFor[float64]()).Float())
			return nil
		}
	}
	return fmt.Errorf("cannot assign %T to %s", src, dst.Type())
}

func assignTime(dst reflect.Value, src any) error {
	switch v := src.(type) {
	case time.Time:
		dst.Set(reflect.ValueOf(v))
		return nil
	case string:
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, v); err == nil {
				dst.Set(reflect.ValueOf(ts))
				return nil
			}
		}
		return fmt.Errorf("invalid time format: %q", v)
	}
	return fmt.Errorf("cannot assign %T to time.Time", src)
}
