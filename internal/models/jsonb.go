package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB is a thin helper for storing arbitrary JSON with GORM.
// Audit log entries use it for their free-form metadata column.
type JSONB []byte

// Meta marshals a map into JSONB, swallowing marshal errors into "{}"
// because audit metadata is best-effort context, never source of truth.
func Meta(m map[string]any) JSONB {
	b, err := json.Marshal(m)
	if err != nil {
		return JSONB("{}")
	}
	return JSONB(b)
}

func (j JSONB) Value() (driver.Value, error) {
	if len(j) == 0 {
		return []byte("{}"), nil
	}
	return []byte(j), nil
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = JSONB("{}")
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = JSONB(v); return nil
	case string:
		*j = JSONB([]byte(v)); return nil
	default:
		b, err := json.Marshal(v)
		if err != nil { return fmt.Errorf("jsonb scan: %w", err) }
		*j = JSONB(b); return nil
	}
}
