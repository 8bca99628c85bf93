package catalog

import (
	"cmp"
	"slices"
	"strings"

	"storefront/models"
)

const (
	SortDefault   = "default"
	SortPriceAsc  = "price-asc"
	SortPriceDesc = "price-desc"
	SortNameAsc   = "name-asc"

	// AllCategories matches every product, as does an empty Category.
	AllCategories = "all"
)

// Query narrows and orders a product list the way the shop view does.
type Query struct {
	Category string
	Search   string
	MinPrice int64
	MaxPrice int64 // 0 means no upper bound
	Sort     string
}

// Apply returns the matching products in the requested order. The input is
// not modified and products that compare equal keep their catalog order.
func (q Query) Apply(products []models.Product) []models.Product {
	search := strings.ToLower(strings.TrimSpace(q.Search))

	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if q.Category != "" && q.Category != AllCategories && p.Category != q.Category {
			continue
		}
		if search != "" && !matches(p, search) {
			continue
		}
		if p.Price < q.MinPrice {
			continue
		}
		if q.MaxPrice > 0 && p.Price > q.MaxPrice {
			continue
		}
		out = append(out, p)
	}

	switch q.Sort {
	case SortPriceAsc:
		slices.SortStableFunc(out, func(a, b models.Product) int { return cmp.Compare(a.Price, b.Price) })
	case SortPriceDesc:
		slices.SortStableFunc(out, func(a, b models.Product) int { return cmp.Compare(b.Price, a.Price) })
	case SortNameAsc:
		slices.SortStableFunc(out, func(a, b models.Product) int {
			return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		})
	}
	return out
}

// matches tests name and description separately, so a term never spans
// the two fields.
func matches(p models.Product, term string) bool {
	return strings.Contains(strings.ToLower(p.Name), term) ||
		strings.Contains(strings.ToLower(p.Description), term)
}

// Categories lists the distinct categories in the order they first appear.
func Categories(products []models.Product) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range products {
		if p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	return out
}

// ValidSort reports whether s names a supported ordering. Empty is the
// catalog order.
func ValidSort(s string) bool {
	switch s {
	case "", SortDefault, SortPriceAsc, SortPriceDesc, SortNameAsc:
		return true
	}
	return false
}
