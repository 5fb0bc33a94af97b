package diagnostics

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kctmenswear/storefront/internal/domain/catalog"
	"github.com/kctmenswear/storefront/internal/domain/shared/valueobject"
)

// DefaultExportPath is where export-products writes when no path is given
const DefaultExportPath = "FULL-PRODUCT-EXPORT.csv"

// exportPrefix is the object key prefix of uploaded exports
const exportPrefix = "exports/"

const (
	galleryColumns    = 5
	descriptionLength = 200
)

// Image URL markers used to classify the primary image
const (
	placeholderMarker = "placehold"
	galleryCDNMarker  = "8ea0502"
	legacyR2Marker    = "pub-5cd"
)

// ErrStorageNotConfigured is returned when an upload is requested without storage
var ErrStorageNotConfigured = errors.New("object storage is not configured")

// ExportHeader is the CSV header row
var ExportHeader = []string{
	"Product ID", "SKU", "Product Name", "Category", "Description",
	"Price", "Price (Cents)", "Stripe Price ID", "Stripe Status", "Inventory",
	"Primary Image URL", "Image Status", "Gallery Images",
	"Gallery 1", "Gallery 2", "Gallery 3", "Gallery 4", "Gallery 5",
	"Status", "Created Date", "Updated Date", "URL Handle", "Supplier", "Brand", "Tags",
	"Variant Count", "Variant Title", "Variant ID",
}

// ExportOptions configures ExportProducts
type ExportOptions struct {
	Path   string
	Upload bool
}

// ExportSummary aggregates an export
type ExportSummary struct {
	Total         int
	ByCategory    map[string]int
	ByImageStatus map[string]int
	ByStripe      map[string]int
	MinCents      int64
	MaxCents      int64
	AvgCents      decimal.Decimal
	UploadURL     string
}

// ImageStatus classifies a product's primary image
func ImageStatus(primary string) string {
	switch {
	case primary == "":
		return "No Image"
	case strings.Contains(primary, placeholderMarker):
		return "Placeholder"
	case strings.Contains(primary, galleryCDNMarker):
		return "Gallery (New)"
	case strings.Contains(primary, legacyR2Marker):
		return "Old R2"
	default:
		return "Has Image"
	}
}

// ExportRecord converts a product into a CSV row. Price columns come from
// the first variant.
func ExportRecord(p *catalog.Product) []string {
	var v catalog.Variant
	if first, ok := p.FirstVariant(); ok {
		v = *first
	}
	gallery := p.GalleryImages()
	galleryCount := len(p.Images)

	price := ""
	cents := int64(0)
	if v.Price.IsPositive() {
		price = valueobject.Dollars(v.Price).String()
		cents = valueobject.Dollars(v.Price).Cents()
	}

	row := []string{
		p.ID.String(),
		p.SKU,
		p.Name,
		p.Category,
		truncateRunes(p.Description, descriptionLength),
		price,
		strconv.FormatInt(cents, 10),
		v.StripePriceID,
		stripeStatus(v.StripePriceID),
		strconv.Itoa(v.InventoryCount),
		p.PrimaryImage,
		ImageStatus(p.PrimaryImage),
		strconv.Itoa(galleryCount),
	}
	for i := range galleryColumns {
		if i < len(gallery) {
			row = append(row, gallery[i])
		} else {
			row = append(row, "")
		}
	}
	variantID := ""
	if v.ID != uuid.Nil {
		variantID = v.ID.String()
	}
	return append(row,
		string(p.Status),
		p.CreatedAt.UTC().Format(time.RFC3339),
		p.UpdatedAt.UTC().Format(time.RFC3339),
		p.Handle,
		p.Supplier,
		p.Brand,
		strings.Join(p.Tags, ", "),
		strconv.Itoa(len(p.Variants)),
		v.Title,
		variantID,
	)
}

func stripeStatus(priceID string) string {
	if priceID != "" {
		return "Ready"
	}
	return "Missing"
}

// ExportProducts writes every active product to a CSV file, prints a
// summary and optionally uploads the file to object storage
func (s *Service) ExportProducts(ctx context.Context, w io.Writer, opts ExportOptions) (*ExportSummary, error) {
	if opts.Upload && s.storage == nil {
		return nil, ErrStorageNotConfigured
	}
	path := opts.Path
	if path == "" {
		path = DefaultExportPath
	}

	fmt.Fprintln(w, "Exporting all products from database...")
	products, err := s.products.ListActiveForExport(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	fmt.Fprintf(w, "Found %d products\n", len(products))

	var buf bytes.Buffer
	summary, err := writeExport(&buf, products)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(w, "CSV export complete: %s\n", path)

	if opts.Upload {
		key := exportPrefix + filepath.Base(path)
		url, err := s.storage.Upload(ctx, key, buf.Bytes(), "text/csv")
		if err != nil {
			return nil, fmt.Errorf("failed to upload export: %w", err)
		}
		summary.UploadURL = url
	}

	PrintSummary(w, summary)
	return summary, nil
}

func writeExport(dst io.Writer, products []catalog.Product) (*ExportSummary, error) {
	cw := csv.NewWriter(dst)
	if err := cw.Write(ExportHeader); err != nil {
		return nil, err
	}

	summary := &ExportSummary{
		ByCategory:    make(map[string]int),
		ByImageStatus: make(map[string]int),
		ByStripe:      make(map[string]int),
		AvgCents:      decimal.Zero,
	}
	sum := int64(0)
	for i := range products {
		p := &products[i]
		row := ExportRecord(p)
		if err := cw.Write(row); err != nil {
			return nil, err
		}

		summary.Total++
		summary.ByCategory[p.Category]++
		summary.ByImageStatus[ImageStatus(p.PrimaryImage)]++

		var priceID string
		cents := int64(0)
		if v, ok := p.FirstVariant(); ok {
			priceID = v.StripePriceID
			cents = valueobject.Dollars(v.Price).Cents()
		}
		summary.ByStripe[stripeStatus(priceID)]++
		sum += cents
		if cents > 0 {
			if summary.MinCents == 0 || cents < summary.MinCents {
				summary.MinCents = cents
			}
			summary.MaxCents = max(summary.MaxCents, cents)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, err
	}
	if summary.Total > 0 {
		summary.AvgCents = decimal.NewFromInt(sum).Div(decimal.NewFromInt(int64(summary.Total)))
	}
	return summary, nil
}

// PrintSummary prints an export summary
func PrintSummary(w io.Writer, s *ExportSummary) {
	fmt.Fprintln(w, "\nExport Summary:")
	fmt.Fprintln(w, "=================")
	fmt.Fprintf(w, "Total Products: %d\n", s.Total)

	fmt.Fprintln(w, "\nBy Category:")
	for _, c := range sortedCounts(s.ByCategory) {
		fmt.Fprintf(w, "  %s: %d\n", c.name, c.n)
	}
	fmt.Fprintln(w, "\nImage Status:")
	for _, c := range sortedCounts(s.ByImageStatus) {
		fmt.Fprintf(w, "  %s: %d\n", c.name, c.n)
	}
	fmt.Fprintln(w, "\nStripe Integration:")
	for _, c := range sortedCounts(s.ByStripe) {
		fmt.Fprintf(w, "  %s: %d\n", c.name, c.n)
	}

	fmt.Fprintln(w, "\nPrice Range:")
	fmt.Fprintf(w, "  Min: %s\n", valueobject.FromCents(s.MinCents).String())
	fmt.Fprintf(w, "  Max: %s\n", valueobject.FromCents(s.MaxCents).String())
	fmt.Fprintf(w, "  Avg: $%s\n", s.AvgCents.Div(decimal.NewFromInt(100)).StringFixed(2))

	if s.UploadURL != "" {
		fmt.Fprintf(w, "\nUploaded to: %s\n", s.UploadURL)
	}
}

// SetupStorage ensures the product image bucket exists
func (s *Service) SetupStorage(ctx context.Context, w io.Writer) error {
	if s.storage == nil {
		return ErrStorageNotConfigured
	}
	fmt.Fprintln(w, "Setting up storage bucket...")
	created, err := s.storage.EnsureBucket(ctx)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintln(w, "[ok] Created product-images bucket")
	} else {
		fmt.Fprintln(w, "[ok] product-images bucket already exists")
	}
	return nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
