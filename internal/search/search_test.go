package search

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"sharecrop/internal/models"
)

func sample() []models.Listing {
	return []models.Listing{
		{ID: "1", Name: "Tomato Valley", Category: "Vegetables", FarmerName: "John", Products: []models.Product{{Name: "cherry-tomato", Category: "Vegetables"}}},
		{ID: "2", Name: "Golden Wheat", Category: "Grains", FarmerName: "Tom", Location: "Kansas", Products: []models.Product{{Name: "winter-wheat", Category: "Grains"}}},
		{ID: "3", Name: "Orchard Hill", Category: "Fruits", Type: "Orchard", Description: "Crisp apples", Products: []models.Product{{Name: "gala-apple", Category: "Fruits"}}},
		{ID: "4", Name: "Herb Terrace", Category: "Herbs", Products: []models.Product{{Name: "sweet-basil"}}},
	}
}

func listingIDs(in []models.Listing) []string {
	out := make([]string, 0, len(in))
	for _, l := range in {
		out = append(out, l.ID)
	}
	return out
}

func TestFilter_EmptyFacetsPassEverything(t *testing.T) {
	assert.Equal(t, []string{"1", "2", "3", "4"}, listingIDs(Filter(sample(), Facets{})))
	assert.True(t, Facets{Categories: []string{" "}}.Empty())
}

func TestFilter_OrWithinGroup(t *testing.T) {
	out := Filter(sample(), Facets{Categories: []string{"grains", "FRUITS"}})
	assert.Equal(t, []string{"2", "3"}, listingIDs(out))
}

func TestFilter_CategoryMatchesType(t *testing.T) {
	out := Filter(sample(), Facets{Categories: []string{"orchard"}})
	assert.Equal(t, []string{"3"}, listingIDs(out))
}

func TestFilter_AndAcrossGroups(t *testing.T) {
	out := Filter(sample(), Facets{Categories: []string{"Vegetables", "Grains"}, Products: []string{"wheat"}})
	assert.Equal(t, []string{"2"}, listingIDs(out))
}

func TestFilter_ProductSlugMatchesSpacedName(t *testing.T) {
	out := Filter(sample(), Facets{Products: []string{"sweet basil"}})
	assert.Equal(t, []string{"4"}, listingIDs(out))
}

func TestSuggest_BlankQuery(t *testing.T) {
	assert.Empty(t, Suggest(sample(), Facets{}, "   "))
}

func TestSuggest_SearchesTextFields(t *testing.T) {
	assert.Equal(t, []string{"2"}, listingIDs(Suggest(sample(), Facets{}, "kansas")))
	assert.Equal(t, []string{"3"}, listingIDs(Suggest(sample(), Facets{}, "APPLES")))
	assert.Equal(t, []string{"1"}, listingIDs(Suggest(sample(), Facets{}, "cherry tomato")))
	assert.Equal(t, []string{"1", "2"}, listingIDs(Suggest(sample(), Facets{}, "tom")))
}

func TestSuggest_FacetsApplyFirst(t *testing.T) {
	out := Suggest(sample(), Facets{Categories: []string{"Vegetables"}}, "tom")
	assert.Equal(t, []string{"1"}, listingIDs(out))
}

func TestSuggest_CapsResults(t *testing.T) {
	var many []models.Listing
	for i := 0; i < 8; i++ {
		many = append(many, models.Listing{ID: fmt.Sprint(i), Name: "Field"})
	}
	out := Suggest(many, Facets{}, "field")
	assert.Len(t, out, MaxSuggestions)
	assert.Equal(t, "0", out[0].ID)
}
