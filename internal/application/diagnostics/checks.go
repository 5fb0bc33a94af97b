package diagnostics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kctmenswear/storefront/internal/domain/catalog"
)

// ErrMissingTable is returned when a checked table does not exist
var ErrMissingTable = errors.New("table does not exist")

// CustomerColumns are the customer profile columns added for the CRM import
var CustomerColumns = []string{
	"first_name", "last_name", "name", "accepts_email_marketing",
	"total_spent", "customer_tier", "vip_status",
}

const addCustomerIDHint = "ALTER TABLE orders ADD COLUMN customer_id UUID;"

// CheckTables confirms products_enhanced and products exist and prints one
// {id, name} sample of each
func (s *Service) CheckTables(ctx context.Context, w io.Writer) error {
	var missing []string
	for _, table := range []string{"products_enhanced", "products"} {
		fmt.Fprintf(w, "Checking for %s table...\n", table)
		ok, err := s.inspector.HasTable(ctx, table)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(w, "[missing] %s table does not exist\n", table)
			missing = append(missing, table)
			continue
		}
		rows, err := s.inspector.SampleRows(ctx, table, []string{"id", "name"}, 1)
		if err != nil {
			return fmt.Errorf("failed to sample %s: %w", table, err)
		}
		sample := "none"
		if len(rows) > 0 {
			sample = formatRow(rows[0], []string{"id", "name"})
		}
		fmt.Fprintf(w, "[ok] %s table exists, sample: %s\n", table, sample)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingTable, strings.Join(missing, ", "))
	}
	return nil
}

// CheckSubcategories counts enhanced products by category and subcategory
// and prints five samples with their hero image
func (s *Service) CheckSubcategories(ctx context.Context, w io.Writer) error {
	fmt.Fprintln(w, "Checking product subcategories...")

	rows, err := s.inspector.SampleRows(ctx, "products_enhanced", []string{"category", "subcategory"}, 0)
	if err != nil {
		return fmt.Errorf("failed to read products_enhanced: %w", err)
	}
	categories := make(map[string]int)
	subcategories := make(map[string]int)
	for _, r := range rows {
		categories[orDefault(formatNullable(r["category"]), "No Category")]++
		subcategories[orDefault(formatNullable(r["subcategory"]), "No Subcategory")]++
	}

	fmt.Fprintln(w, "\nCategories:")
	for _, c := range sortedCounts(categories) {
		fmt.Fprintf(w, "  %s: %d products\n", c.name, c.n)
	}
	fmt.Fprintln(w, "\nSubcategories:")
	for _, c := range sortedCounts(subcategories) {
		fmt.Fprintf(w, "  %s: %d products\n", c.name, c.n)
	}

	samples, err := s.inspector.SampleRows(ctx, "products_enhanced", []string{"name", "subcategory", "images"}, 5)
	if err != nil {
		return fmt.Errorf("failed to sample products_enhanced: %w", err)
	}
	fmt.Fprintln(w, "\nSample products with images:")
	for _, r := range samples {
		fmt.Fprintf(w, "\n%s\n", formatNullable(r["name"]))
		fmt.Fprintf(w, "  Subcategory: %s\n", orDefault(formatNullable(r["subcategory"]), "None"))
		if hero := decodeImages(r["images"]).HeroURL(); hero != "" {
			fmt.Fprintf(w, "  Hero Image: %s\n", hero)
		}
	}
	return nil
}

// CheckCustomerTable prints the customers columns, row count, a sample of the
// first five fields and whether each profile column is present
func (s *Service) CheckCustomerTable(ctx context.Context, w io.Writer) error {
	fmt.Fprintln(w, "Checking customers table structure...")

	cols, err := s.requireColumns(ctx, "customers")
	if err != nil {
		return err
	}
	names := columnNames(cols)
	fmt.Fprintln(w, "\nColumns found in customers table:")
	fmt.Fprintln(w, strings.Join(names, ", "))

	rows, err := s.inspector.SampleRows(ctx, "customers", nil, 1)
	if err != nil {
		return fmt.Errorf("failed to sample customers: %w", err)
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, "\nNo records found, but table exists")
	} else {
		fmt.Fprintln(w, "\nSample record (first 5 fields):")
		for _, name := range names[:min(5, len(names))] {
			fmt.Fprintf(w, "  %s: %s\n", name, formatValue(rows[0][name]))
		}
	}

	n, err := s.inspector.CountRows(ctx, "customers")
	if err != nil {
		return fmt.Errorf("failed to count customers: %w", err)
	}
	fmt.Fprintf(w, "\nTotal customers in table: %d\n", n)

	fmt.Fprintln(w, "\nProfile column status:")
	for _, c := range CustomerColumns {
		fmt.Fprintf(w, "  %s: %s\n", c, status(hasColumn(cols, c), "EXISTS", "MISSING"))
	}
	return nil
}

// CheckVariantStructure prints the product_variants columns and one row
func (s *Service) CheckVariantStructure(ctx context.Context, w io.Writer) error {
	cols, err := s.requireColumns(ctx, "product_variants")
	if err != nil {
		return err
	}
	names := columnNames(cols)
	fmt.Fprintln(w, "product_variants table columns:")
	fmt.Fprintln(w, strings.Join(names, ", "))

	rows, err := s.inspector.SampleRows(ctx, "product_variants", nil, 1)
	if err != nil {
		return fmt.Errorf("failed to sample product_variants: %w", err)
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, "\nNo data in product_variants table")
		return nil
	}
	fmt.Fprintln(w, "\nSample data:")
	fmt.Fprintln(w, formatRow(rows[0], names))
	return nil
}

// CheckOrdersStructure prints the orders columns with their types and
// whether customer_id is present
func (s *Service) CheckOrdersStructure(ctx context.Context, w io.Writer) error {
	fmt.Fprintln(w, "Checking orders table structure...")

	cols, err := s.requireColumns(ctx, "orders")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "\nOrders table columns:")
	for _, c := range cols {
		fmt.Fprintf(w, "  - %s: %s%s\n", c.Name, strings.ToLower(c.DataType), status(c.Nullable, "", " not null"))
	}

	fmt.Fprintln(w, "\nChecking for customer_id column...")
	if hasColumn(cols, "customer_id") {
		fmt.Fprintln(w, "[ok] customer_id column exists")
		return nil
	}
	fmt.Fprintln(w, "[missing] customer_id column is MISSING")
	fmt.Fprintln(w, "\nTo add it, run this SQL:")
	fmt.Fprintln(w, addCustomerIDHint)
	return nil
}

// CheckSizes reports how sizes are stored: size-related columns on
// products_enhanced, the optional size tables and real sizes on variants
func (s *Service) CheckSizes(ctx context.Context, w io.Writer) error {
	fmt.Fprintln(w, "Checking how sizes are stored...")

	cols, err := s.requireColumns(ctx, "products_enhanced")
	if err != nil {
		return err
	}
	var sizeFields []string
	for _, c := range cols {
		n := strings.ToLower(c.Name)
		if strings.Contains(n, "size") || strings.Contains(n, "option") || strings.Contains(n, "variant") {
			sizeFields = append(sizeFields, c.Name)
		}
	}
	fmt.Fprintln(w, "\nproducts_enhanced fields:")
	if len(sizeFields) == 0 {
		fmt.Fprintln(w, "  Size-related fields: None found")
	} else {
		fmt.Fprintf(w, "  Size-related fields: %s\n", strings.Join(sizeFields, ", "))
	}

	for _, table := range []string{"sizes", "product_sizes"} {
		ok, err := s.inspector.HasTable(ctx, table)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(w, "\n[missing] No %s table\n", table)
			continue
		}
		rows, err := s.inspector.SampleRows(ctx, table, nil, 5)
		if err != nil {
			return fmt.Errorf("failed to sample %s: %w", table, err)
		}
		fmt.Fprintf(w, "\n[ok] %s table exists (%d sample rows)\n", table, len(rows))
		for _, r := range rows {
			fmt.Fprintf(w, "  %s\n", formatRow(r, nil))
		}
	}

	rows, err := s.inspector.SampleRows(ctx, "product_variants", []string{"size"}, 10)
	if err != nil {
		return fmt.Errorf("failed to sample product_variants: %w", err)
	}
	var sizes []string
	for _, r := range rows {
		v := catalog.Variant{Size: formatNullable(r["size"])}
		if v.HasRealSize() {
			sizes = append(sizes, v.Size)
		}
	}
	fmt.Fprintln(w, "\nproduct_variants analysis:")
	fmt.Fprintf(w, "  Total retrieved: %d\n", len(rows))
	fmt.Fprintf(w, "  With actual sizes: %d\n", len(sizes))
	if len(sizes) > 0 {
		fmt.Fprintf(w, "  Sample sizes: %s\n", strings.Join(sizes[:min(5, len(sizes))], ", "))
	}
	return nil
}

func (s *Service) requireColumns(ctx context.Context, table string) ([]ColumnInfo, error) {
	ok, err := s.inspector.HasTable(ctx, table)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingTable, table)
	}
	return s.inspector.Columns(ctx, table)
}

func formatNullable(v any) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(formatValue(v))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// decodeImages reads the images document whether the driver returns it as
// text, bytes or an already decoded map
func decodeImages(v any) catalog.ImageSet {
	var raw []byte
	switch t := v.(type) {
	case string:
		raw = []byte(t)
	case []byte:
		raw = t
	case map[string]any:
		raw, _ = json.Marshal(t)
	}
	var set catalog.ImageSet
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &set)
	}
	return set
}
