package vendors

import (
	"github.com/google/uuid"

	"github.com/freshmandi/freshmandi-backend/pkg/db/models"
)

// CartLine is one product request inside an order being routed.
type CartLine struct {
	ProductID      uuid.UUID
	ProductName    string
	Category       string
	Subcategory    *string
	Qty            int
	UnitPricePaise int64
}

// VendorGroup is the slice of a cart one vendor will fulfill.
type VendorGroup struct {
	Vendor models.Vendor
	Lines  []CartLine
}

// UnresolvedLine reports a cart line no vendor could serve, with the reason
// so the caller can offer substitution instead of aborting the order.
type UnresolvedLine struct {
	ProductID uuid.UUID
	Reason    string
}

// Resolution is the outcome of routing a cart within a zone. A cart splitting
// across several vendors is expected, not an error; Groups is sorted by vendor
// ID so downstream reservation ordering stays deterministic.
type Resolution struct {
	Groups     []VendorGroup
	Unresolved []UnresolvedLine
}

// FullyResolved reports whether every line found a vendor.
func (r Resolution) FullyResolved() bool {
	return len(r.Unresolved) == 0
}
