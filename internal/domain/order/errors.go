package order

import (
	"fmt"

	"github.com/kctmenswear/storefront/internal/domain/shared"
)

// ErrVariantNotFound is returned when a reserved variant no longer exists
var ErrVariantNotFound = shared.NewDomainError("VARIANT_NOT_FOUND", "Product variant not found")

// InsufficientStockError reports the first item that could not be reserved
type InsufficientStockError struct {
	Name      string
	Requested int
	Available int
}

// Error implements error
func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient inventory for %s", e.Name)
}

// Is lets errors.Is match shared.ErrInsufficientStock
func (e *InsufficientStockError) Is(target error) bool {
	return target == shared.ErrInsufficientStock
}
