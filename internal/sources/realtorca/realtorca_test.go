package realtorca

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvnkmnk/rentFalcon/internal/sources/fetch"
	"github.com/pvnkmnk/rentFalcon/pkg/models"
)

func ptr(v float64) *float64 { return &v }

const embeddedStatePage = `<html><head>
<script>
window.__INITIAL_STATE__ = {"Results":[
  {
    "MlsNumber": "X1111111",
    "Price": 2100,
    "RelativeDetailsURL": "/real-estate/1111/unit-a",
    "Property": {
      "Type": "Apartment",
      "Address": {"AddressText": "99 Metcalfe St", "City": "Ottawa", "Province": "ON"},
      "Photo": [{"HighResPath": "//cdn.realtor.ca/photo1.jpg"}]
    },
    "Building": {"Bedrooms": 2, "BathroomTotal": "1"}
  },
  {
    "MlsNumber": "X2222222",
    "Price": "1,750",
    "RelativeDetailsURL": "/real-estate/2222/unit-b",
    "Property": {
      "Type": "House",
      "Address": {"AddressText": "7 Main St", "City": "Ottawa", "Province": "ON"}
    },
    "Building": {}
  }
]};
</script>
</head><body></body></html>`

func TestParseListingsFromEmbeddedJSON(t *testing.T) {
	a := New(fetch.Options{}, false)

	listings, err := a.parseListings(embeddedStatePage)
	require.NoError(t, err)
	require.Len(t, listings, 2)

	first := listings[0]
	assert.Equal(t, SourceName, first.Source)
	assert.Equal(t, "X1111111", first.ExternalID)
	assert.Equal(t, "2 Bed, 1 Bath Apartment in Ottawa", first.Title)
	require.NotNil(t, first.Price)
	assert.InDelta(t, 2100, *first.Price, 1e-9)
	assert.Equal(t, "99 Metcalfe St, Ottawa, ON", first.Location)
	assert.Equal(t, "https://www.realtor.ca/real-estate/1111/unit-a", first.URL)
	assert.Equal(t, "https://cdn.realtor.ca/photo1.jpg", first.ImageURL)
	require.NotNil(t, first.Bedrooms)
	assert.InDelta(t, 2, *first.Bedrooms, 1e-9)
	require.NotNil(t, first.Bathrooms)
	assert.InDelta(t, 1, *first.Bathrooms, 1e-9)

	second := listings[1]
	require.NotNil(t, second.Price)
	assert.InDelta(t, 1750, *second.Price, 1e-9)
	assert.Equal(t, "? Bed, ? Bath House in Ottawa", second.Title)
	assert.Nil(t, second.Bedrooms)
}

const cardsPage = `<html><body>
<div class="listingCard">
  <div class="listingCardPrice">$1,900/month</div>
  <div class="listingCardAddress">25 Laurier Ave, Ottawa, ON</div>
  <a href="/property-details/12345">details</a>
  <img src="https://cdn.realtor.ca/card1.jpg"/>
  <span>3 bed 2 bath</span>
</div>
<div class="listingCard">
  <div class="listingCardPrice">$2,400/month</div>
  <div class="listingCardAddress">123 Bank St, Ottawa, ON</div>
  <span>2 bed 1 bath</span>
</div>
<div class="listingCard">
  <div class="listingCardPrice"></div>
  <div class="listingCardAddress"></div>
</div>
</body></html>`

func TestParseListingsCardFallback(t *testing.T) {
	a := New(fetch.Options{}, false)

	listings, err := a.parseListings(cardsPage)
	require.NoError(t, err)
	require.Len(t, listings, 1, "cards without a details link or without content are skipped")
	for _, l := range listings {
		assert.NotEmpty(t, l.URL)
	}

	l := listings[0]
	require.NotNil(t, l.Price)
	assert.InDelta(t, 1900, *l.Price, 1e-9)
	assert.Equal(t, "25 Laurier Ave, Ottawa, ON", l.Location)
	assert.Equal(t, "https://www.realtor.ca/property-details/12345", l.URL)
	assert.Equal(t, "12345", l.ExternalID)
	assert.Equal(t, "3 Bed Rental in 25 Laurier Ave", l.Title)
	require.NotNil(t, l.Bedrooms)
	assert.InDelta(t, 3, *l.Bedrooms, 1e-9)
	require.NotNil(t, l.Bathrooms)
	assert.InDelta(t, 2, *l.Bathrooms, 1e-9)
}

func TestBuildSearchURL(t *testing.T) {
	a := New(fetch.Options{}, false)

	url := a.buildSearchURL(models.SearchRequest{
		Location: "ottawa",
		MinPrice: ptr(1500),
		MaxPrice: ptr(2500),
	})

	assert.True(t, strings.HasPrefix(url, "https://www.realtor.ca/map#"))
	assert.Contains(t, url, "TransactionTypeId=3")
	assert.Contains(t, url, "PriceMin=1500")
	assert.Contains(t, url, "PriceMax=2500")
	assert.Contains(t, url, "LatitudeMin=45.247")
	assert.Contains(t, url, "LatitudeMax=45.535")
}

func TestLookupBounds(t *testing.T) {
	a := New(fetch.Options{}, false)

	t.Run("exact match", func(t *testing.T) {
		assert.Equal(t, cityBounds["ottawa"], a.lookupBounds("Ottawa"))
	})

	t.Run("partial match", func(t *testing.T) {
		assert.Equal(t, cityBounds["toronto"], a.lookupBounds("toronto downtown"))
	})

	t.Run("unknown defaults to toronto", func(t *testing.T) {
		assert.Equal(t, cityBounds["toronto"], a.lookupBounds("whoville"))
	})
}
