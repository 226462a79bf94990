package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/athebyme/gomarket-platform/internal/domain/models"
	pkgmodels "github.com/athebyme/gomarket-platform/pkg/models"
)

type memStore struct {
	mu           sync.Mutex
	products     map[string]*models.Product
	categories   []*models.Category
	marketplaces map[string]*models.Marketplace
	watermarks   map[string]time.Time
	queue        map[[2]string]models.SendPriceQueueEntry
	settingErr   error
	blockedErr   map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		products:     make(map[string]*models.Product),
		marketplaces: make(map[string]*models.Marketplace),
		watermarks:   make(map[string]time.Time),
		queue:        make(map[[2]string]models.SendPriceQueueEntry),
		blockedErr:   make(map[string]error),
	}
}

func (m *memStore) addProduct(p *models.Product) { m.products[p.ID] = p }

func cloneProduct(p *models.Product) *models.Product {
	c := *p
	c.MarketplaceSettings = append([]models.MarketplaceSetting(nil), p.MarketplaceSettings...)
	return &c
}

func (m *memStore) ListProducts(ctx context.Context, f models.ProductFilter) ([]*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.products))
	for id := range m.products {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []*models.Product
	for _, id := range ids {
		p := m.products[id]
		if f.Listable && (p.IsDeleted || p.CategoryCode == "") {
			continue
		}
		if len(f.ProductTypes) > 0 {
			ok := false
			for _, t := range f.ProductTypes {
				if strings.EqualFold(t, p.Type) {
					ok = true
				}
			}
			if !ok {
				continue
			}
		}
		if f.MarketplaceID != "" {
			var setting *models.MarketplaceSetting
			for i := range p.MarketplaceSettings {
				if p.MarketplaceSettings[i].MarketplaceID == f.MarketplaceID {
					setting = &p.MarketplaceSettings[i]
				}
			}
			if setting == nil {
				continue
			}
			if f.MappedOnly && setting.ExternalIdentifier == "" {
				continue
			}
			if f.ExternalIdentifier != "" && setting.ExternalIdentifier != f.ExternalIdentifier {
				continue
			}
		}
		if f.PriceUpdatedSince != nil && p.PriceUpdatedAt.Before(*f.PriceUpdatedSince) {
			continue
		}
		out = append(out, cloneProduct(p))
	}
	return out, nil
}

func (m *memStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	return cloneProduct(p), nil
}

func (m *memStore) SaveMarketplaceSetting(ctx context.Context, productID string, setting models.MarketplaceSetting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settingErr != nil {
		return m.settingErr
	}
	p, ok := m.products[productID]
	if !ok {
		return models.ErrNotFound
	}
	p.SetMarketplaceSetting(setting)
	return nil
}

func (m *memStore) setting(productID, marketplaceID string) (models.MarketplaceSetting, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.products[productID].MarketplaceSettings {
		if s.MarketplaceID == marketplaceID {
			return s, true
		}
	}
	return models.MarketplaceSetting{}, false
}

func (m *memStore) ListCategories(ctx context.Context) ([]*models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.Category(nil), m.categories...), nil
}

func (m *memStore) GetCategoryByCode(ctx context.Context, code string) (*models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.categories {
		if c.Code == code {
			return c, nil
		}
	}
	return nil, nil
}

func (m *memStore) SetCategoryBlocked(ctx context.Context, code, marketplaceID string, blocked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.blockedErr[code]; err != nil {
		return err
	}
	for _, c := range m.categories {
		if c.Code == code {
			c.SetBlocked(marketplaceID, blocked)
			return nil
		}
	}
	return models.ErrNotFound
}

func (m *memStore) ListMarketplaces(ctx context.Context, activeOnly bool) ([]*models.Marketplace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Marketplace
	for _, mp := range m.marketplaces {
		if activeOnly && !mp.Active {
			continue
		}
		out = append(out, mp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetMarketplace(ctx context.Context, id string) (*models.Marketplace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.marketplaces[id], nil
}

func (m *memStore) CreateMarketplace(ctx context.Context, mp *models.Marketplace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.marketplaces[mp.ID]; ok {
		return &models.DuplicateError{Fields: []string{"id"}}
	}
	m.marketplaces[mp.ID] = mp
	return nil
}

func (m *memStore) UpdateMarketplace(ctx context.Context, mp *models.Marketplace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marketplaces[mp.ID] = mp
	return nil
}

func (m *memStore) DeleteMarketplace(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.marketplaces, id)
	return nil
}

func (m *memStore) GetWatermark(ctx context.Context, marketplaceID string, job models.JobType) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watermarks[marketplaceID+"/"+string(job)], nil
}

func (m *memStore) SetWatermark(ctx context.Context, marketplaceID string, job models.JobType, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watermarks[marketplaceID+"/"+string(job)] = at
	return nil
}

func (m *memStore) EnqueuePrices(ctx context.Context, entries []models.SendPriceQueueEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.queue[[2]string{e.MarketplaceID, e.ExternalSKU}] = e
	}
	return nil
}

func (m *memStore) sortedQueue(marketplaceID string) []models.SendPriceQueueEntry {
	var out []models.SendPriceQueueEntry
	for _, e := range m.queue {
		if e.MarketplaceID == marketplaceID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].QueuedAt.Equal(out[j].QueuedAt) {
			return out[i].QueuedAt.Before(out[j].QueuedAt)
		}
		return out[i].ExternalSKU < out[j].ExternalSKU
	})
	return out
}

func (m *memStore) OldestPrices(ctx context.Context, marketplaceID string, limit int) ([]models.SendPriceQueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sortedQueue(marketplaceID)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) DeletePrices(ctx context.Context, marketplaceID string, skus []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sku := range skus {
		delete(m.queue, [2]string{marketplaceID, sku})
	}
	return nil
}

func (m *memStore) ListPrices(ctx context.Context, marketplaceID string, limit, offset int) ([]models.SendPriceQueueEntry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sortedQueue(marketplaceID)
	total := len(all)
	if offset > total {
		offset = total
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (m *memStore) queuedSKUs(marketplaceID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.sortedQueue(marketplaceID) {
		out = append(out, e.ExternalSKU)
	}
	return out
}

type fakeAPI struct {
	mu sync.Mutex

	mappings []pkgmodels.OfferMapping
	hidden   []pkgmodels.HiddenOffer

	mappingErr error
	hiddenErr  error
	hideErr    error
	showErr    error
	pushErr    error

	mappingQueries [][]string
	hideCalls      [][]pkgmodels.HiddenOffer
	showCalls      [][]string
	pushCalls      [][]pkgmodels.PriceUpdate
}

func (f *fakeAPI) SKUMappings(ctx context.Context, api *models.APISettings, shopSKUs []string) ([]pkgmodels.OfferMapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mappingQueries = append(f.mappingQueries, shopSKUs)
	if f.mappingErr != nil {
		return nil, f.mappingErr
	}
	if len(shopSKUs) == 0 {
		return f.mappings, nil
	}
	want := make(map[string]bool)
	for _, s := range shopSKUs {
		want[s] = true
	}
	var out []pkgmodels.OfferMapping
	for _, m := range f.mappings {
		if want[m.ShopSKU] {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeAPI) HiddenOffers(ctx context.Context, api *models.APISettings) ([]pkgmodels.HiddenOffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hidden, f.hiddenErr
}

func (f *fakeAPI) HideOffers(ctx context.Context, api *models.APISettings, offers []pkgmodels.HiddenOffer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hideCalls = append(f.hideCalls, offers)
	return f.hideErr
}

func (f *fakeAPI) ShowOffers(ctx context.Context, api *models.APISettings, skus []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.showCalls = append(f.showCalls, skus)
	return f.showErr
}

func (f *fakeAPI) PushPrices(ctx context.Context, api *models.APISettings, prices []pkgmodels.PriceUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushCalls = append(f.pushCalls, prices)
	return f.pushErr
}

type repairCall struct {
	marketplaceID string
	sku           string
}

type recordingTrigger struct {
	calls []repairCall
	err   error
}

func (r *recordingTrigger) TriggerSKUResolve(ctx context.Context, marketplaceID, externalSKU string) error {
	r.calls = append(r.calls, repairCall{marketplaceID, externalSKU})
	return r.err
}

type fakeTx struct {
	calls int
}

func (f *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

type publishedMessage struct {
	topic string
	data  []byte
}

type fakePublisher struct {
	messages []publishedMessage
	err      error
}

func (p *fakePublisher) Publish(ctx context.Context, topic string, message []byte) error {
	p.messages = append(p.messages, publishedMessage{topic, message})
	return p.err
}

func yandexMarketplace() *models.Marketplace {
	return &models.Marketplace{
		ID:                 "mp-1",
		Name:               "Маркет",
		Type:               models.ChannelYandexMarket,
		Active:             true,
		UpdatePricesViaAPI: true,
		Settings:           []byte(`{"campaign_id": 10, "token": "t", "currency": "RUR"}`),
	}
}

func mappedSetting(marketplaceID, sku string) []models.MarketplaceSetting {
	return []models.MarketplaceSetting{{MarketplaceID: marketplaceID, ExternalIdentifier: sku}}
}
