// Package diagnostics holds the read-only database checks and maintenance
// tasks run by storectl. Every check prints a human-readable report.
package diagnostics

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kctmenswear/storefront/internal/domain/catalog"
	"github.com/kctmenswear/storefront/internal/infrastructure/persistence"
	"github.com/kctmenswear/storefront/internal/pkg/loadingstate"
)

// ColumnInfo describes one table column
type ColumnInfo = persistence.ColumnInfo

// Inspector answers read-only schema questions
type Inspector interface {
	HasTable(ctx context.Context, table string) (bool, error)
	Columns(ctx context.Context, table string) ([]ColumnInfo, error)
	CountRows(ctx context.Context, table string) (int64, error)
	SampleRows(ctx context.Context, table string, columns []string, limit int) ([]map[string]any, error)
}

// ObjectStorage stores exported files
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) (bool, error)
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Service runs diagnostics
type Service struct {
	inspector Inspector
	products  catalog.ProductRepository
	storage   ObjectStorage
	logger    *zap.Logger
}

// NewService creates a diagnostics Service. storage may be nil when no
// object storage is configured.
func NewService(inspector Inspector, products catalog.ProductRepository, storage ObjectStorage, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		inspector: inspector,
		products:  products,
		storage:   storage,
		logger:    logger,
	}
}

// Run executes fn as the named command. A failure is printed to w as
// "Error: <message>" and returned.
func Run(ctx context.Context, name string, w io.Writer, logger *zap.Logger, fn func(ctx context.Context) error) error {
	st := loadingstate.New(
		loadingstate.WithContext(name),
		loadingstate.WithNotifier(loadingstate.WriterNotifier{W: w}),
		loadingstate.WithLogger(logger),
	)
	return loadingstate.Run(ctx, st, fn)
}

// formatRow renders a row as "{a: 1, b: x}" with columns in the given order,
// or sorted when cols is empty
func formatRow(row map[string]any, cols []string) string {
	if len(cols) == 0 {
		cols = make([]string, 0, len(row))
		for k := range row {
			cols = append(cols, k)
		}
		sort.Strings(cols)
	}
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		parts = append(parts, c+": "+formatValue(row[c]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case []byte:
		return string(t)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func columnNames(cols []ColumnInfo) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

func hasColumn(cols []ColumnInfo, name string) bool {
	for _, c := range cols {
		if c.Name == name {
			return true
		}
	}
	return false
}

func status(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

type count struct {
	name string
	n    int
}

// sortedCounts orders counts by size, largest first, then by name
func sortedCounts(m map[string]int) []count {
	out := make([]count, 0, len(m))
	for k, v := range m {
		out = append(out, count{name: k, n: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].n != out[j].n {
			return out[i].n > out[j].n
		}
		return out[i].name < out[j].name
	})
	return out
}
