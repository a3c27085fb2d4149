package storage

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Dialect captures the SQL differences between supported databases.
type Dialect struct {
	// Name is the configured driver name (sqlite, sqlserver, postgres)
	Name string

	// DriverName is the database/sql driver registered for Name
	DriverName string

	// placeholder renders the n-th (1-based) bind parameter
	placeholder func(n int) string

	// Column types used by migrations
	TextType      string
	ShortTextType string
	FloatType     string
	TimeType      string
}

var (
	sqliteDialect = Dialect{
		Name:          "sqlite",
		DriverName:    "sqlite3",
		placeholder:   func(int) string { return "?" },
		TextType:      "TEXT",
		ShortTextType: "TEXT",
		FloatType:     "REAL",
		TimeType:      "DATETIME",
	}

	sqlServerDialect = Dialect{
		Name:          "sqlserver",
		DriverName:    "sqlserver",
		placeholder:   func(n int) string { return "@p" + strconv.Itoa(n) },
		TextType:      "NVARCHAR(128)",
		ShortTextType: "NVARCHAR(16)",
		FloatType:     "FLOAT",
		TimeType:      "DATETIME2",
	}

	postgresDialect = Dialect{
		Name:          "postgres",
		DriverName:    "pgx",
		placeholder:   func(n int) string { return "$" + strconv.Itoa(n) },
		TextType:      "VARCHAR(128)",
		ShortTextType: "VARCHAR(16)",
		FloatType:     "DOUBLE PRECISION",
		TimeType:      "TIMESTAMPTZ",
	}
)

// DialectFor returns the dialect of a configured driver name.
func DialectFor(name string) (Dialect, error) {
	switch name {
	case "sqlite", "sqlite3":
		return sqliteDialect, nil
	case "sqlserver", "mssql":
		return sqlServerDialect, nil
	case "postgres", "postgresql", "pgx":
		return postgresDialect, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver: %s", name)
	}
}

// Rebind rewrites ? placeholders into the dialect's bind syntax.
// Queries must not contain literal question marks.
func (d Dialect) Rebind(query string) string {
	if d.placeholder == nil || d.Name == sqliteDialect.Name {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteString(d.placeholder(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Paginate returns the row limiting clause for limit and offset.
// SQL Server requires an ORDER BY, so orderBy reports whether one is present.
func (d Dialect) Paginate(limit, offset int, orderBy bool) string {
	if limit <= 0 && offset <= 0 {
		return ""
	}

	if d.Name == sqlServerDialect.Name {
		var b strings.Builder
		if !orderBy {
			b.WriteString(" ORDER BY (SELECT NULL)")
		}
		fmt.Fprintf(&b, " OFFSET %d ROWS", offset)
		if limit > 0 {
			fmt.Fprintf(&b, " FETCH NEXT %d ROWS ONLY", limit)
		}
		return b.String()
	}

	var b strings.Builder
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	} else if d.Name == sqliteDialect.Name {
		// SQLite accepts OFFSET only after LIMIT
		b.WriteString(" LIMIT -1")
	}
	if offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", offset)
	}
	return b.String()
}

// Upsert renders a single-statement insert-or-replace of cols into table,
// matching rows on keys. Bind parameters follow the order of cols.
func (d Dialect) Upsert(table string, cols, keys []string) string {
	var set []string
	for _, c := range cols {
		if !slices.Contains(keys, c) {
			set = append(set, c)
		}
	}

	if d.Name == sqlServerDialect.Name {
		src := make([]string, len(cols))
		on := make([]string, len(keys))
		vals := make([]string, len(cols))
		for i, c := range cols {
			src[i] = "? AS " + c
			vals[i] = "source." + c
		}
		for i, k := range keys {
			on[i] = "target." + k + " = source." + k
		}
		upd := make([]string, len(set))
		for i, c := range set {
			upd[i] = c + " = source." + c
		}
		return fmt.Sprintf(
			"MERGE %s WITH (HOLDLOCK) AS target USING (SELECT %s) AS source ON %s"+
				" WHEN MATCHED THEN UPDATE SET %s"+
				" WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s);",
			table, strings.Join(src, ", "), strings.Join(on, " AND "),
			strings.Join(upd, ", "), strings.Join(cols, ", "), strings.Join(vals, ", "),
		)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	upd := make([]string, len(set))
	for i, c := range set {
		upd[i] = c + " = excluded." + c
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		table, strings.Join(cols, ", "), placeholders, strings.Join(keys, ", "), strings.Join(upd, ", "),
	)
}
