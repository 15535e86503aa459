package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SemesterWindow configures enrollment for one semester of a degree.
type SemesterWindow struct {
	EnrollmentStart *time.Time `json:"enrollmentStart,omitempty"`
	EnrollmentEnd   *time.Time `json:"enrollmentEnd,omitempty"`
	Count           int        `json:"count"`
}

// SemesterConfig maps a semester number to its enrollment window and course quota.
type SemesterConfig map[int]SemesterWindow

// Value implements driver.Valuer storing the config as JSONB.
func (c SemesterConfig) Value() (driver.Value, error) {
	if c == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c)
}

// Scan implements sql.Scanner.
func (c *SemesterConfig) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*c = SemesterConfig{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan semester config: unsupported type %T", src)
	}
	cfg := SemesterConfig{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return fmt.Errorf("scan semester config: %w", err)
		}
	}
	*c = cfg
	return nil
}

// Degree is a versioned degree program definition.
type Degree struct {
	ProgramDefinition
	Name              string         `db:"name" json:"name"`
	Description       string         `db:"description" json:"description"`
	DurationSemesters int            `db:"duration_semesters" json:"duration_semesters"`
	SemesterConfig    SemesterConfig `db:"semester_config" json:"semester_config"`
}
