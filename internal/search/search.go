package search

import (
	"strings"

	"sharecrop/internal/models"
)

// MaxSuggestions caps the suggestion dropdown.
const MaxSuggestions = 5

// Facets are the selected filter values. Values within a group are OR-ed,
// groups are AND-ed, and an empty group lets everything through.
type Facets struct {
	Categories []string `json:"categories"`
	Products   []string `json:"products"`
}

func (f Facets) Empty() bool {
	return len(normalized(f.Categories)) == 0 && len(normalized(f.Products)) == 0
}

// Filter returns the listings matching every non-empty facet group, in
// input order.
func Filter(listings []models.Listing, facets Facets) []models.Listing {
	categories := normalized(facets.Categories)
	products := normalized(facets.Products)

	out := make([]models.Listing, 0, len(listings))
	for _, l := range listings {
		if len(categories) > 0 && !matchesCategory(l, categories) {
			continue
		}
		if len(products) > 0 && !matchesProduct(l, products) {
			continue
		}
		out = append(out, l)
	}
	return out
}

// Suggest applies the facets, then keeps listings whose searchable text
// contains query. A blank query yields no suggestions.
func Suggest(listings []models.Listing, facets Facets, query string) []models.Listing {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []models.Listing{}
	}

	out := make([]models.Listing, 0, MaxSuggestions)
	for _, l := range Filter(listings, facets) {
		if !matchesQuery(l, q) {
			continue
		}
		out = append(out, l)
		if len(out) == MaxSuggestions {
			break
		}
	}
	return out
}

func normalized(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func containsAny(haystack string, needles []string) bool {
	haystack = strings.ToLower(haystack)
	if haystack == "" {
		return false
	}
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func matchesCategory(l models.Listing, categories []string) bool {
	return containsAny(l.Category, categories) || containsAny(l.Type, categories)
}

func matchesProduct(l models.Listing, products []string) bool {
	for _, p := range l.Products {
		if containsAny(productName(p.Name), products) || containsAny(p.Category, products) {
			return true
		}
	}
	return false
}

// productName turns catalog slugs like "cherry-tomato" into display text.
func productName(name string) string {
	return strings.ReplaceAll(name, "-", " ")
}

func matchesQuery(l models.Listing, q string) bool {
	fields := []string{l.Name, l.Category, l.FarmerName, l.Description, l.Location}
	for _, p := range l.Products {
		fields = append(fields, productName(p.Name))
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}
