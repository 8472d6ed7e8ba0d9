package listing

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sharecrop/internal/catalog"
	"sharecrop/internal/logger"
	"sharecrop/internal/models"
	"sharecrop/internal/store"
)

func ids(listings []models.Listing) []string {
	out := make([]string, 0, len(listings))
	for _, l := range listings {
		out = append(out, l.ID)
	}
	return out
}

func TestAggregate_NoDuplicateIDsAndPriority(t *testing.T) {
	seed := []models.Listing{{ID: "a", Name: "seed a"}, {ID: "b", Name: "seed b"}, {ID: "a", Name: "seed a again"}}
	stored := []models.Listing{{ID: "b", Name: "stored b"}, {ID: "c", Name: "stored c"}}
	farmer := []models.Listing{{ID: "a", Name: "farmer a"}, {ID: "d", Name: "farmer d"}}

	out := Aggregate("viewer", seed, stored, farmer, nil, nil)

	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(out))
	seen := map[string]bool{}
	for _, l := range out {
		assert.False(t, seen[l.ID], "duplicate id %s", l.ID)
		seen[l.ID] = true
	}

	assert.Equal(t, "farmer a", out[0].Name)
	assert.Equal(t, models.SourceFarmerCreated, out[0].Source)
	assert.Equal(t, "stored b", out[1].Name)
	assert.Equal(t, models.SourceStored, out[1].Source)
	assert.True(t, out[0].IsFarmerCreated)
	assert.False(t, out[1].IsFarmerCreated)
}

func TestAggregate_EqualPriorityLaterWins(t *testing.T) {
	out := Aggregate("", []models.Listing{{ID: "x", Name: "first"}, {ID: "x", Name: "second"}}, nil, nil, nil, nil)
	require.Len(t, out, 1)
	assert.Equal(t, "second", out[0].Name)
}

func TestAggregate_HigherPriorityNotOverwrittenByLowerSource(t *testing.T) {
	out := Aggregate("", []models.Listing{{ID: "x", Name: "seed"}}, []models.Listing{{ID: "x", Name: "stored"}}, nil, nil, nil)
	require.Len(t, out, 1)
	assert.Equal(t, "stored", out[0].Name)
}

func TestAggregate_PurchasedIffInOrdersOrRentals(t *testing.T) {
	seed := []models.Listing{{ID: "ordered"}, {ID: "rented"}, {ID: "untouched"}}
	orders := []models.Order{{ListingID: "ordered"}}
	rented := []models.RentedField{{ID: "rented"}}

	out := Aggregate("buyer", seed, nil, nil, orders, rented)

	byID := map[string]models.Listing{}
	for _, l := range out {
		byID[l.ID] = l
	}
	assert.True(t, byID["ordered"].IsPurchased, "order without rental")
	assert.True(t, byID["rented"].IsPurchased, "rental without order")
	assert.False(t, byID["untouched"].IsPurchased)
}

func TestAggregate_OwnField(t *testing.T) {
	out := Aggregate("farmer_1", []models.Listing{{ID: "mine", FarmerID: "farmer_1"}, {ID: "theirs", FarmerID: "farmer_2"}}, nil, nil, nil, nil)
	assert.True(t, out[0].IsOwnField)
	assert.False(t, out[1].IsOwnField)

	out = Aggregate("", []models.Listing{{ID: "anon"}}, nil, nil, nil, nil)
	assert.False(t, out[0].IsOwnField)
}

type failingProvider struct{}

func (failingProvider) GetListings(context.Context) (*catalog.ListingsResponse, error) {
	return nil, errors.New("network down")
}

func newTestAggregator(t *testing.T, provider catalog.Provider) (*Aggregator, *store.Store, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	log := logger.NewWriterLogger(&buf)
	st := store.New(store.NewMemoryKV(), log, 1250)
	return NewAggregator(provider, st, log), st, &buf
}

func TestAggregator_SeedFailureFallsBackToEmpty(t *testing.T) {
	ctx := context.Background()
	agg, st, logs := newTestAggregator(t, failingProvider{})
	require.NoError(t, st.AddFarmerField(ctx, models.Listing{ID: "ff", FarmerID: "farmer_9"}))

	out, err := agg.Load(ctx, "buyer")
	require.NoError(t, err)
	assert.Equal(t, []string{"ff"}, ids(out))
	assert.Contains(t, logs.String(), "Failed to load seed catalog")
}

func TestAggregator_LoadUsesCatalogAndStore(t *testing.T) {
	ctx := context.Background()
	agg, st, _ := newTestAggregator(t, catalog.NewEmbeddedProvider(false, 0))
	require.NoError(t, st.AddOrder(ctx, models.Order{ID: "o1", BuyerID: "buyer", ListingID: "seed-golden-wheat"}))
	require.NoError(t, st.AddOrder(ctx, models.Order{ID: "o2", BuyerID: "someone-else", ListingID: "seed-tomato-valley"}))

	out, err := agg.Load(ctx, "buyer")
	require.NoError(t, err)

	byID := map[string]models.Listing{}
	for _, l := range out {
		byID[l.ID] = l
	}
	assert.True(t, byID["seed-golden-wheat"].IsPurchased)
	assert.False(t, byID["seed-tomato-valley"].IsPurchased, "other buyers' orders do not count")
	assert.Equal(t, "Golden Wheat Field", byID["seed-golden-wheat"].Name)
}

func TestAggregator_OnLoadSingleCallback(t *testing.T) {
	ctx := context.Background()
	agg, _, _ := newTestAggregator(t, catalog.NewEmbeddedProvider(false, 0))

	var first, second int
	agg.OnLoad(func(l []models.Listing) { first = len(l) })
	agg.OnLoad(func(l []models.Listing) { second = len(l) })

	out, err := agg.Load(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, first, "replaced callback is not invoked")
	assert.Equal(t, len(out), second)

	second = 0
	_, err = agg.Find(ctx, "", "seed-herb-terrace")
	require.NoError(t, err)
	assert.Zero(t, second, "Find does not notify")
}

func TestAggregator_FindMissing(t *testing.T) {
	agg, _, _ := newTestAggregator(t, catalog.NewEmbeddedProvider(false, 0))
	_, err := agg.Find(context.Background(), "", "nope")
	assert.ErrorIs(t, err, ErrListingNotFound)
}
