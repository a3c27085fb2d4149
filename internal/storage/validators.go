package storage

import (
	"fmt"
	"unicode/utf8"
)

// Column limits shared by every dialect's DDL.
const (
	maxReferenceLength = 128
	maxShortTextLength = 16
)

// validateThresholdRow checks column limits the database would otherwise
// enforce with a dialect-specific error, or silently truncate.
func validateThresholdRow(row ThresholdRow) error {
	if row.Reference == "" {
		return fmt.Errorf("threshold reference cannot be empty")
	}
	if utf8.RuneCountInString(row.Reference) > maxReferenceLength {
		return fmt.Errorf("threshold reference too long (max %d chars)", maxReferenceLength)
	}

	if utf8.RuneCountInString(row.Mode) > maxShortTextLength {
		return fmt.Errorf("threshold mode too long (max %d chars)", maxShortTextLength)
	}
	if row.CheckType != nil && utf8.RuneCountInString(*row.CheckType) > maxShortTextLength {
		return fmt.Errorf("threshold check type too long (max %d chars)", maxShortTextLength)
	}

	for name, id := range map[string]int32{
		"instance_id": row.InstanceID,
		"database_id": row.DatabaseID,
		"file_id":     row.FileID,
	} {
		if id == 0 || id < -1 {
			return fmt.Errorf("threshold %s must be -1 or positive, got %d", name, id)
		}
	}

	if row.UpdatedAt.IsZero() {
		return fmt.Errorf("threshold updated_at cannot be zero")
	}
	return nil
}
