// Package dbschema checks a live database against the GORM models after migration.
package dbschema

import (
	"fmt"
	"strings"

	"github.com/ericfitz/oauthreg/internal/slogging"
	"gorm.io/gorm"
)

// ValidationResult lists the problems found for one model's table
type ValidationResult struct {
	TableName string
	Errors    []string
}

// Valid reports whether the table matched its model
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// ValidateSchema compares the tables and columns in db with the given models
func ValidateSchema(db *gorm.DB, models ...any) ([]ValidationResult, error) {
	logger := slogging.Get()
	migrator := db.Migrator()
	results := make([]ValidationResult, 0, len(models))

	for _, model := range models {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return nil, fmt.Errorf("failed to parse model %T: %w", model, err)
		}

		result := ValidationResult{TableName: stmt.Schema.Table}
		logger.Debug("Validating table: %s", result.TableName)

		if !migrator.HasTable(model) {
			result.Errors = append(result.Errors, fmt.Sprintf("table '%s' does not exist", result.TableName))
			results = append(results, result)
			continue
		}

		for _, field := range stmt.Schema.Fields {
			if field.DBName == "" {
				continue
			}
			if !migrator.HasColumn(model, field.DBName) {
				result.Errors = append(result.Errors,
					fmt.Sprintf("table '%s' is missing column '%s'", result.TableName, field.DBName))
			}
		}
		results = append(results, result)
	}
	return results, nil
}

// Check runs ValidateSchema and joins every problem into one error
func Check(db *gorm.DB, models ...any) error {
	results, err := ValidateSchema(db, models...)
	if err != nil {
		return err
	}

	var problems []string
	for _, r := range results {
		problems = append(problems, r.Errors...)
	}
	if len(problems) > 0 {
		return fmt.Errorf("schema validation failed: %s", strings.Join(problems, "; "))
	}

	slogging.Get().Info("Schema validation passed for %d tables", len(results))
	return nil
}
