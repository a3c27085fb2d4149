package types

import (
	"fmt"
	"strconv"

	"dbwarden/internal/scope"
)

// PaginationRequest represents pagination parameters in requests
type PaginationRequest struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=500"`
}

// Defaults fills unset pagination fields.
func (p *PaginationRequest) Defaults() {
	if p.Page == 0 {
		p.Page = 1
	}
	if p.PageSize == 0 {
		p.PageSize = 100
	}
}

// Window returns the [start, end) slice bounds of the page within total items.
func (p PaginationRequest) Window(total int) (int, int) {
	start := min((p.Page-1)*p.PageSize, total)
	end := min(start+p.PageSize, total)
	return start, end
}

// ScopeQuery selects a scope either as ?scope=database:3/7 or with the
// ?instance=&database=&file= identifiers, where an absent or empty
// identifier does not apply.
type ScopeQuery struct {
	Scope    string `form:"scope"`
	Instance string `form:"instance"`
	Database string `form:"database"`
	File     string `form:"file"`
}

// Key resolves the query into a validated scope key.
func (q ScopeQuery) Key() (scope.Key, error) {
	ids := q.Instance != "" || q.Database != "" || q.File != ""
	if q.Scope != "" {
		if ids {
			return scope.Key{}, fmt.Errorf("%w: both scope and identifiers given", scope.ErrInvalidScope)
		}
		return scope.Parse(q.Scope)
	}

	column := func(name, v string) (int32, error) {
		if v == "" {
			return scope.Unset, nil
		}
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("%w: %s %q is not a number", scope.ErrInvalidScope, name, v)
		}
		if n <= 0 {
			return 0, fmt.Errorf("%w: %s must be positive, got %d", scope.ErrInvalidScope, name, n)
		}
		return int32(n), nil
	}

	instanceID, err := column("instance", q.Instance)
	if err != nil {
		return scope.Key{}, err
	}
	databaseID, err := column("database", q.Database)
	if err != nil {
		return scope.Key{}, err
	}
	fileID, err := column("file", q.File)
	if err != nil {
		return scope.Key{}, err
	}
	return scope.FromColumns(instanceID, databaseID, fileID)
}
