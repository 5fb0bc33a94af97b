package persistence

import (
	"context"
	"fmt"
	"regexp"

	"gorm.io/gorm"
)

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ColumnInfo describes one table column
type ColumnInfo struct {
	Name     string
	DataType string
	Nullable bool
}

// SchemaInspector answers read-only questions about the live schema.
// It goes through the GORM migrator so it works on PostgreSQL and SQLite.
type SchemaInspector struct {
	db *gorm.DB
}

// NewSchemaInspector creates a new SchemaInspector
func NewSchemaInspector(db *gorm.DB) *SchemaInspector {
	return &SchemaInspector{db: db}
}

func checkIdent(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

// HasTable reports whether table exists
func (s *SchemaInspector) HasTable(ctx context.Context, table string) (bool, error) {
	if err := checkIdent(table); err != nil {
		return false, err
	}
	return s.db.WithContext(ctx).Migrator().HasTable(table), nil
}

// Columns lists table's columns in declaration order
func (s *SchemaInspector) Columns(ctx context.Context, table string) ([]ColumnInfo, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	types, err := s.db.WithContext(ctx).Migrator().ColumnTypes(table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	cols := make([]ColumnInfo, 0, len(types))
	for _, ct := range types {
		nullable, _ := ct.Nullable()
		cols = append(cols, ColumnInfo{
			Name:     ct.Name(),
			DataType: ct.DatabaseTypeName(),
			Nullable: nullable,
		})
	}
	return cols, nil
}

// CountRows returns the number of rows in table
func (s *SchemaInspector) CountRows(ctx context.Context, table string) (int64, error) {
	if err := checkIdent(table); err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.WithContext(ctx).Table(table).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// SampleRows returns up to limit rows of table, or every row when limit <= 0.
// With no columns every column is selected.
func (s *SchemaInspector) SampleRows(ctx context.Context, table string, columns []string, limit int) ([]map[string]any, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	for _, c := range columns {
		if err := checkIdent(c); err != nil {
			return nil, err
		}
	}

	query := s.db.WithContext(ctx).Table(table)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if len(columns) > 0 {
		query = query.Select(columns)
	}
	var rows []map[string]any
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
