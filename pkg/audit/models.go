package audit

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONStringSlice is a custom GORM type for []string stored as JSON.
type JSONStringSlice []string

// Scan implements the sql.Scanner interface for JSONStringSlice.
func (s *JSONStringSlice) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}
	b, err := scanBytes(value)
	if err != nil {
		return fmt.Errorf("JSONStringSlice: %w", err)
	}
	return json.Unmarshal(b, s)
}

// Value implements the driver.Valuer interface for JSONStringSlice.
func (s JSONStringSlice) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// JSONAny is a custom GORM type for map[string]any stored as JSON.
type JSONAny map[string]any

// Scan implements the sql.Scanner interface for JSONAny.
func (m *JSONAny) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	b, err := scanBytes(value)
	if err != nil {
		return fmt.Errorf("JSONAny: %w", err)
	}
	return json.Unmarshal(b, m)
}

// Value implements the driver.Valuer interface for JSONAny.
func (m JSONAny) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func scanBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", value)
	}
}

// Event is one audited request against the registry API.
type Event struct {
	ID          string          `gorm:"primaryKey;column:id;type:varchar(36)"`
	RequestID   string          `gorm:"column:request_id;index"`
	Actor       string          `gorm:"column:actor;index:idx_audit_actor_time,priority:1;not null"`
	Privileged  bool            `gorm:"column:privileged"`
	Method      string          `gorm:"column:method;not null"`
	Path        string          `gorm:"column:path;not null"`
	Resource    string          `gorm:"column:resource;index:idx_audit_resource_time,priority:1"`
	Action      string          `gorm:"column:action"`
	ResourceIDs JSONStringSlice `gorm:"column:resource_ids;type:text"`
	Outcome     string          `gorm:"column:outcome;not null"` // success, failure, denied
	StatusCode  int             `gorm:"column:status_code"`
	DurationMs  int64           `gorm:"column:duration_ms"`
	Metadata    JSONAny         `gorm:"column:metadata;type:text"`
	CreatedAt   time.Time       `gorm:"column:created_at;index:idx_audit_actor_time,priority:2;index:idx_audit_resource_time,priority:2;index"`
}

// TableName returns the GORM table name.
func (Event) TableName() string { return "audit_events" }
