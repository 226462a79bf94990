package marketapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/athebyme/gomarket-platform/internal/domain/models"
	pkgmodels "github.com/athebyme/gomarket-platform/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *models.APISettings) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	exec := newTestExecutor(srv.Client(), 1, ClassifyError)
	api := &models.APISettings{BaseURL: srv.URL, CampaignID: 77, Token: "secret", Currency: "RUR"}
	return NewClient(exec, "http://unused.invalid"), api
}

func TestClient_SKUMappings_Paginates(t *testing.T) {
	client, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/campaigns/77/offer-mapping-entries", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, []string{"A-1", "A-2"}, r.URL.Query()["shop_sku"])

		switch r.URL.Query().Get("page_token") {
		case "":
			_, _ = io.WriteString(w, `{"status":"OK","result":{"paging":{"nextPageToken":"p2"},
				"offerMappingEntries":[
					{"offer":{"shopSku":"A-1"},"mapping":{"marketSku":1001}},
					{"offer":{"shopSku":"A-3"}}
				]}}`)
		case "p2":
			_, _ = io.WriteString(w, `{"status":"OK","result":{"paging":{},
				"offerMappingEntries":[{"offer":{"shopSku":"A-2"},"mapping":{"marketSku":1002}}]}}`)
		default:
			t.Errorf("unexpected token %q", r.URL.Query().Get("page_token"))
		}
	})

	mappings, err := client.SKUMappings(context.Background(), api, []string{"A-1", "A-2"})
	require.NoError(t, err)
	assert.Equal(t, []pkgmodels.OfferMapping{
		{ShopSKU: "A-1", MarketSKU: "1001"},
		{ShopSKU: "A-2", MarketSKU: "1002"},
	}, mappings)
}

func TestClient_HiddenOffers(t *testing.T) {
	client, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/campaigns/77/hidden-offers", r.URL.Path)
		_, _ = io.WriteString(w, `{"status":"OK","result":{"hiddenOffers":[{"sku":"55","comment":"нет цены","ttlHours":24}]}}`)
	})

	offers, err := client.HiddenOffers(context.Background(), api)
	require.NoError(t, err)
	assert.Equal(t, []pkgmodels.HiddenOffer{{SKU: "55", Comment: "нет цены", TTLHours: 24}}, offers)
}

func TestClient_HideAndShowOffers(t *testing.T) {
	var methods []string
	var bodies []hiddenOffersRequest
	client, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/campaigns/77/hidden-offers", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body hiddenOffersRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		methods = append(methods, r.Method)
		bodies = append(bodies, body)
		_, _ = io.WriteString(w, `{"status":"OK"}`)
	})

	ctx := context.Background()
	require.NoError(t, client.HideOffers(ctx, api, []pkgmodels.HiddenOffer{{SKU: "1", Comment: "c", TTLHours: 12}}))
	require.NoError(t, client.ShowOffers(ctx, api, []string{"2", "3"}))
	require.NoError(t, client.ShowOffers(ctx, api, nil))

	assert.Equal(t, []string{http.MethodPost, http.MethodDelete}, methods)
	assert.Equal(t, []hiddenOfferDTO{{SKU: "1", Comment: "c", TTLHours: 12}}, bodies[0].HiddenOffers)
	assert.Equal(t, []hiddenOfferDTO{{SKU: "2"}, {SKU: "3"}}, bodies[1].HiddenOffers)
}

func TestClient_PushPrices_Body(t *testing.T) {
	var got pricesRequest
	client, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/campaigns/77/offer-prices/updates", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"status":"OK"}`)
	})

	err := client.PushPrices(context.Background(), api, []pkgmodels.PriceUpdate{
		{SKU: "42", Price: decimal.RequireFromString("1990.5")},
		{SKU: "43", Price: decimal.NewFromInt(100), Currency: "BYN"},
	})
	require.NoError(t, err)
	assert.Equal(t, []offerPriceDTO{
		{SKU: "42", Price: priceDTO{CurrencyID: "RUR", Value: "1990.5"}},
		{SKU: "43", Price: priceDTO{CurrencyID: "BYN", Value: "100"}},
	}, got.Offers)
}

func TestClient_PushPrices_MappingNotFound(t *testing.T) {
	client, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"status":"ERROR","errors":[
			{"code":"BAD_REQUEST","message":"Unable to find mapping for marketSku: 42"},
			{"code":"BAD_REQUEST","message":"Unable to find mapping for marketSku: 42"}]}`)
	})

	err := client.PushPrices(context.Background(), api, []pkgmodels.PriceUpdate{{SKU: "42", Price: decimal.NewFromInt(1)}})

	var mnf *models.MappingNotFoundError
	require.True(t, errors.As(err, &mnf))
	assert.Equal(t, []string{"42"}, mnf.SKUs)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestClient_ErrorEnvelopeOnSuccessStatus(t *testing.T) {
	client, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"ERROR","errors":[{"code":"X","message":"Unable to find mapping for marketSku: 7"}]}`)
	})

	err := client.HideOffers(context.Background(), api, []pkgmodels.HiddenOffer{{SKU: "7"}})

	var mnf *models.MappingNotFoundError
	require.True(t, errors.As(err, &mnf))
	assert.Equal(t, []string{"7"}, mnf.SKUs)
}

func TestClient_RequiresCampaign(t *testing.T) {
	client, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not be sent")
	})
	api.CampaignID = 0

	_, err := client.HiddenOffers(context.Background(), api)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestClassifyError_PlainBody(t *testing.T) {
	err := ClassifyError(http.StatusBadRequest, []byte("Unable to find mapping for marketSku: 5; Unable to find mapping for marketSku: 6"))

	var mnf *models.MappingNotFoundError
	require.True(t, errors.As(err, &mnf))
	assert.Equal(t, []string{"5", "6"}, mnf.SKUs)

	other := ClassifyError(http.StatusForbidden, []byte(`{"errors":[{"code":"FORBIDDEN","message":"denied"}]}`))
	assert.False(t, errors.As(other, &mnf))
	assert.EqualError(t, other, "marketplace api error 403: FORBIDDEN: denied")
}
