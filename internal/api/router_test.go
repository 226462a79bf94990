package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/athebyme/gomarket-platform/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/internal/domain/models"
	"github.com/athebyme/gomarket-platform/pkg/auth"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMarketplaces struct {
	items     map[string]*models.Marketplace
	createErr error
	listErr   error
	active    *bool
}

func newFakeMarketplaces(mps ...*models.Marketplace) *fakeMarketplaces {
	f := &fakeMarketplaces{items: make(map[string]*models.Marketplace)}
	for _, mp := range mps {
		f.items[mp.ID] = mp
	}
	return f
}

func (f *fakeMarketplaces) Create(ctx context.Context, mp *models.Marketplace) (*models.Marketplace, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if err := mp.Validate(); err != nil {
		return nil, err
	}
	mp.ID = fmt.Sprintf("mp-%d", len(f.items)+1)
	f.items[mp.ID] = mp
	return mp, nil
}

func (f *fakeMarketplaces) Update(ctx context.Context, mp *models.Marketplace) (*models.Marketplace, error) {
	if _, err := f.Get(ctx, mp.ID); err != nil {
		return nil, err
	}
	f.items[mp.ID] = mp
	return mp, nil
}

func (f *fakeMarketplaces) Get(ctx context.Context, id string) (*models.Marketplace, error) {
	mp, ok := f.items[id]
	if !ok {
		return nil, fmt.Errorf("marketplace %s: %w", id, models.ErrNotFound)
	}
	return mp, nil
}

func (f *fakeMarketplaces) List(ctx context.Context, activeOnly bool) ([]*models.Marketplace, error) {
	f.active = &activeOnly
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*models.Marketplace, 0, len(f.items))
	for _, mp := range f.items {
		if activeOnly && !mp.Active {
			continue
		}
		out = append(out, mp)
	}
	return out, nil
}

func (f *fakeMarketplaces) Delete(ctx context.Context, id string) error {
	if _, err := f.Get(ctx, id); err != nil {
		return err
	}
	delete(f.items, id)
	return nil
}

type fakeCatalog struct {
	product      *models.Product
	setting      models.MarketplaceSetting
	blockedCode  string
	blockedMP    string
	blocked      bool
	nested       bool
	blockUpdated int
}

func (f *fakeCatalog) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	if f.product == nil || f.product.ID != id {
		return nil, fmt.Errorf("product %s: %w", id, models.ErrNotFound)
	}
	return f.product, nil
}

func (f *fakeCatalog) SetProductMarketplaceSetting(ctx context.Context, productID string, update models.MarketplaceSettingUpdate) (*models.Product, error) {
	p, err := f.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	current, _ := p.MarketplaceSetting(update.MarketplaceID)
	f.setting = update.ApplyTo(current)
	p.SetMarketplaceSetting(f.setting)
	return p, nil
}

func (f *fakeCatalog) SetCategoryBlocked(ctx context.Context, code, marketplaceID string, blocked, nested bool) (int, error) {
	f.blockedCode, f.blockedMP, f.blocked, f.nested = code, marketplaceID, blocked, nested
	return f.blockUpdated, nil
}

type fakeQueue struct {
	entries       []models.SendPriceQueueEntry
	limit, offset int
}

func (f *fakeQueue) List(ctx context.Context, marketplaceID string, limit, offset int) ([]models.SendPriceQueueEntry, int, error) {
	f.limit, f.offset = limit, offset
	end := min(offset+limit, len(f.entries))
	if offset >= len(f.entries) {
		return nil, len(f.entries), nil
	}
	return f.entries[offset:end], len(f.entries), nil
}

type fakeJobs struct {
	job         models.JobType
	marketplace string
	deadline    bool
	err         error
}

func (f *fakeJobs) RunNow(ctx context.Context, jobType models.JobType, marketplaceID string) error {
	f.job, f.marketplace = jobType, marketplaceID
	_, f.deadline = ctx.Deadline()
	return f.err
}

type fixture struct {
	marketplaces *fakeMarketplaces
	catalog      *fakeCatalog
	queue        *fakeQueue
	jobs         *fakeJobs
	handler      http.Handler
}

func newFixture(t *testing.T, validator auth.TokenValidator, cfg RouterConfig) *fixture {
	t.Helper()
	f := &fixture{
		marketplaces: newFakeMarketplaces(&models.Marketplace{ID: "mp-1", Name: "Маркет", Type: models.ChannelYandexMarket, Active: true}),
		catalog:      &fakeCatalog{},
		queue:        &fakeQueue{},
		jobs:         &fakeJobs{},
	}
	f.handler = SetupRouter(Services{
		Marketplaces: f.marketplaces,
		Catalog:      f.catalog,
		PriceQueue:   f.queue,
		Jobs:         f.jobs,
	}, validator, logger.NewNop(), cfg)
	return f
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
}

func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil, RouterConfig{})
	rec, _ := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestMarketplaceCRUD(t *testing.T) {
	f := newFixture(t, nil, RouterConfig{RequestTimeout: time.Second})

	rec, env := f.do(t, http.MethodPost, "/api/v1/marketplaces",
		`{"name":"Фид","type":"yml","active":true,"minimal_price":"100","interval_minutes":60}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.Marketplace
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "mp-2", created.ID)
	assert.True(t, created.MinimalPrice.Equal(decimal.NewFromInt(100)))

	rec, env = f.do(t, http.MethodGet, "/api/v1/marketplaces/mp-2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	rec, _ = f.do(t, http.MethodPut, "/api/v1/marketplaces/mp-2", `{"name":"Фид 2","type":"yml","active":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Фид 2", f.marketplaces.items["mp-2"].Name)

	rec, _ = f.do(t, http.MethodGet, "/api/v1/marketplaces?active=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.marketplaces.active)
	assert.True(t, *f.marketplaces.active)

	rec, _ = f.do(t, http.MethodDelete, "/api/v1/marketplaces/mp-2", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotContains(t, f.marketplaces.items, "mp-2")
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(f *fixture)
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{
			name:   "not found",
			method: http.MethodGet, path: "/api/v1/marketplaces/missing",
			status: http.StatusNotFound, code: "not_found",
		},
		{
			name:   "validation",
			method: http.MethodPost, path: "/api/v1/marketplaces", body: `{"name":"","type":"yml"}`,
			status: http.StatusBadRequest, code: "bad_request",
		},
		{
			name:   "api toggle on feed channel",
			method: http.MethodPost, path: "/api/v1/marketplaces", body: `{"name":"Фид","type":"yml","update_prices_via_api":true}`,
			status: http.StatusBadRequest, code: "bad_request",
		},
		{
			name:   "duplicate",
			setup:  func(f *fixture) { f.marketplaces.createErr = &models.DuplicateError{Fields: []string{"name"}} },
			method: http.MethodPost, path: "/api/v1/marketplaces", body: `{"name":"Маркет","type":"yml"}`,
			status: http.StatusUnprocessableEntity, code: "duplicate",
		},
		{
			name:   "internal",
			setup:  func(f *fixture) { f.marketplaces.listErr = errors.New("connection refused") },
			method: http.MethodGet, path: "/api/v1/marketplaces",
			status: http.StatusInternalServerError, code: "internal_error",
		},
		{
			name:   "malformed body",
			method: http.MethodPost, path: "/api/v1/marketplaces", body: `{"name":`,
			status: http.StatusBadRequest, code: "bad_request",
		},
		{
			name:   "bad active flag",
			method: http.MethodGet, path: "/api/v1/marketplaces?active=maybe",
			status: http.StatusBadRequest, code: "bad_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, RouterConfig{})
			if tt.setup != nil {
				tt.setup(f)
			}
			rec, env := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, env.Error)
			assert.Equal(t, tt.status, env.Code)
			assert.False(t, env.Success)
		})
	}
}

func TestInternalErrorHidesCause(t *testing.T) {
	f := newFixture(t, nil, RouterConfig{})
	f.marketplaces.listErr = errors.New("password authentication failed")

	rec, env := f.do(t, http.MethodGet, "/api/v1/marketplaces", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, env.Message, "password")
}

func TestProductSetting(t *testing.T) {
	f := newFixture(t, nil, RouterConfig{})
	f.catalog.product = &models.Product{ID: "p-1", Articul: "A-1"}

	rec, env := f.do(t, http.MethodPut, "/api/v1/products/p-1/marketplaces/mp-1",
		`{"nullify_stock":true,"external_identifier":"100500"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.MarketplaceSetting{MarketplaceID: "mp-1", NullifyStock: true, ExternalIdentifier: "100500"}, f.catalog.setting)

	var product models.Product
	require.NoError(t, json.Unmarshal(env.Data, &product))
	assert.Len(t, product.MarketplaceSettings, 1)

	rec, _ = f.do(t, http.MethodPut, "/api/v1/products/p-1/marketplaces/mp-1", `{"ignore_restrictions":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.MarketplaceSetting{MarketplaceID: "mp-1", IgnoreRestrictions: true, ExternalIdentifier: "100500"}, f.catalog.setting)

	rec, _ = f.do(t, http.MethodPut, "/api/v1/products/p-1/marketplaces/mp-1", `{"external_identifier":""}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.catalog.setting.ExternalIdentifier)

	rec, _ = f.do(t, http.MethodGet, "/api/v1/products/p-2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCategoryBlocked(t *testing.T) {
	f := newFixture(t, nil, RouterConfig{})
	f.catalog.blockUpdated = 3

	rec, env := f.do(t, http.MethodPut, "/api/v1/categories/books/marketplaces/mp-1/blocked", `{"blocked":true,"nested":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "books", f.catalog.blockedCode)
	assert.Equal(t, "mp-1", f.catalog.blockedMP)
	assert.True(t, f.catalog.blocked)
	assert.True(t, f.catalog.nested)

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.EqualValues(t, 3, data["updated"])
}

func TestPriceQueuePagination(t *testing.T) {
	f := newFixture(t, nil, RouterConfig{})
	for i := 0; i < 3; i++ {
		f.queue.entries = append(f.queue.entries, models.SendPriceQueueEntry{
			MarketplaceID: "mp-1",
			ExternalSKU:   fmt.Sprintf("sku-%d", i),
			Price:         decimal.NewFromInt(int64(100 + i)),
		})
	}

	rec, env := f.do(t, http.MethodGet, "/api/v1/marketplaces/mp-1/price-queue?page=2&page_size=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.queue.limit)
	assert.Equal(t, 1, f.queue.offset)

	var page struct {
		Items      []models.SendPriceQueueEntry `json:"items"`
		Pagination struct {
			TotalItems int64 `json:"total_items"`
			TotalPages int   `json:"total_pages"`
			HasNext    bool  `json:"has_next"`
			HasPrev    bool  `json:"has_prev"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "sku-1", page.Items[0].ExternalSKU)
	assert.EqualValues(t, 3, page.Pagination.TotalItems)
	assert.Equal(t, 3, page.Pagination.TotalPages)
	assert.True(t, page.Pagination.HasNext)
	assert.True(t, page.Pagination.HasPrev)

	t.Run("page size capped", func(t *testing.T) {
		rec, _ := f.do(t, http.MethodGet, "/api/v1/marketplaces/mp-1/price-queue?page_size=1000", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 100, f.queue.limit)
	})

	t.Run("invalid page", func(t *testing.T) {
		rec, _ := f.do(t, http.MethodGet, "/api/v1/marketplaces/mp-1/price-queue?page=0", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown marketplace", func(t *testing.T) {
		rec, _ := f.do(t, http.MethodGet, "/api/v1/marketplaces/nope/price-queue", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("empty queue returns empty list", func(t *testing.T) {
		f.queue.entries = nil
		rec, env := f.do(t, http.MethodGet, "/api/v1/marketplaces/mp-1/price-queue", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, string(env.Data), `"items":[]`)
	})
}

func TestRunJob(t *testing.T) {
	f := newFixture(t, nil, RouterConfig{JobTimeout: time.Minute})

	rec, _ := f.do(t, http.MethodPost, "/api/v1/marketplaces/mp-1/jobs/feed_generation", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.JobFeedGeneration, f.jobs.job)
	assert.Equal(t, "mp-1", f.jobs.marketplace)
	assert.True(t, f.jobs.deadline)

	f.jobs.err = &models.ValidationError{Field: "job", Message: "неизвестная задача"}
	rec, env := f.do(t, http.MethodPost, "/api/v1/marketplaces/mp-1/jobs/bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", env.Error)
}

type stubValidator struct {
	roles []string
}

func (s *stubValidator) ValidateToken(ctx context.Context, token string) (*auth.KeycloakClaims, error) {
	if token != "good" {
		return nil, errors.New("invalid token")
	}
	c := &auth.KeycloakClaims{Username: "ops"}
	c.RealmAccess.Roles = s.roles
	return c, nil
}

func (s *stubValidator) HasAnyRole(claims *auth.KeycloakClaims, roles ...string) bool {
	for _, want := range roles {
		for _, have := range claims.RealmAccess.Roles {
			if want == have {
				return true
			}
		}
	}
	return false
}

func TestAuthentication(t *testing.T) {
	cfg := RouterConfig{RequiredRoles: []string{"catalog-admin"}}

	request := func(h http.Handler, token string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/marketplaces", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	admin := newFixture(t, &stubValidator{roles: []string{"catalog-admin"}}, cfg)
	assert.Equal(t, http.StatusUnauthorized, request(admin.handler, ""))
	assert.Equal(t, http.StatusUnauthorized, request(admin.handler, "bad"))
	assert.Equal(t, http.StatusOK, request(admin.handler, "good"))

	guest := newFixture(t, &stubValidator{roles: []string{"viewer"}}, cfg)
	assert.Equal(t, http.StatusForbidden, request(guest.handler, "good"))

	rec, _ := admin.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBodyLimit(t *testing.T) {
	f := newFixture(t, nil, RouterConfig{BodyLimit: 16})
	rec, _ := f.do(t, http.MethodPost, "/api/v1/marketplaces", `{"name":"очень длинное название","type":"yml"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
