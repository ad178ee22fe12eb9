package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Dialect constants for database type detection
const (
	dialectPostgres  = "postgres"
	dialectMySQL     = "mysql"
	dialectSQLServer = "sqlserver"
	dialectSQLite    = "sqlite"
)

// textColumnType returns the large-text column type for the active dialect
func textColumnType(db *gorm.DB) string {
	switch db.Name() {
	case dialectMySQL:
		return "LONGTEXT"
	case dialectSQLServer:
		return "NVARCHAR(MAX)"
	default:
		return "TEXT"
	}
}

func scanBytes(value any, into string) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("cannot scan type %T into %s", value, into)
	}
}

// StringArray stores a string slice as a JSON array
type StringArray []string

// GormDBDataType implements the GormDBDataTypeInterface
func (StringArray) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	return textColumnType(db)
}

// Value implements the driver.Valuer interface for database writes
func (a StringArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	bytes, err := json.Marshal([]string(a))
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}

// Scan implements the sql.Scanner interface for database reads
func (a *StringArray) Scan(value any) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, err := scanBytes(value, "StringArray")
	if err != nil {
		return err
	}
	if len(bytes) == 0 {
		*a = StringArray{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(bytes, &out); err != nil {
		return fmt.Errorf("invalid StringArray value: %w", err)
	}
	*a = out
	return nil
}

// StringMap stores a string-to-string map as a JSON object
type StringMap map[string]string

// GormDBDataType implements the GormDBDataTypeInterface
func (StringMap) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	switch db.Name() {
	case dialectPostgres:
		return "JSONB"
	case dialectMySQL:
		return "JSON"
	default:
		return textColumnType(db)
	}
}

// Value implements the driver.Valuer interface for database writes.
// Returns string (not []byte) so every driver binds it as text.
func (m StringMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	bytes, err := json.Marshal(map[string]string(m))
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}

// Scan implements the sql.Scanner interface for database reads
func (m *StringMap) Scan(value any) error {
	if value == nil {
		*m = StringMap{}
		return nil
	}
	bytes, err := scanBytes(value, "StringMap")
	if err != nil {
		return err
	}
	if len(bytes) == 0 {
		*m = StringMap{}
		return nil
	}
	out := map[string]string{}
	if err := json.Unmarshal(bytes, &out); err != nil {
		return fmt.Errorf("invalid StringMap value: %w", err)
	}
	*m = out
	return nil
}

// DBBool is a cross-database boolean. MySQL uses TINYINT(1), SQL Server uses
// BIT, SQLite uses INTEGER, PostgreSQL has a native boolean.
type DBBool bool

// GormDBDataType implements the GormDBDataTypeInterface
func (DBBool) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	switch db.Name() {
	case dialectMySQL:
		return "TINYINT(1)"
	case dialectSQLServer:
		return "BIT"
	case dialectSQLite:
		return "INTEGER"
	default:
		return "BOOLEAN"
	}
}

// Scan implements the sql.Scanner interface for DBBool
func (b *DBBool) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*b = false
	case bool:
		*b = DBBool(v)
	case int64:
		*b = v != 0
	case int:
		*b = v != 0
	case []byte:
		*b = len(v) > 0 && string(v) != "0" && string(v) != "false"
	default:
		return fmt.Errorf("cannot scan type %T into DBBool", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for DBBool
func (b DBBool) Value() (driver.Value, error) {
	return bool(b), nil
}

// Bool returns the underlying bool value
func (b DBBool) Bool() bool {
	return bool(b)
}
