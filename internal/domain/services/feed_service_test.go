package services

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/athebyme/gomarket-platform/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/internal/domain/models"
	"github.com/athebyme/gomarket-platform/internal/feed"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedService_Generate(t *testing.T) {
	store := newMemStore()
	store.categories = []*models.Category{
		{Code: "a", Name: "A", ParentCode: "b"},
		{Code: "b", Name: "B", ParentCode: "a"},
	}
	store.addProduct(&models.Product{ID: "p1", Articul: "ART-1", Name: "Товар", CategoryCode: "a", BasePrice: decimal.NewFromInt(10), Stock: 1, Type: "toy"})
	store.addProduct(&models.Product{ID: "p2", Articul: "ART-2", Name: "Без цены", CategoryCode: "a", Type: "toy"})
	store.addProduct(&models.Product{ID: "p3", Articul: "ART-3", Name: "Другой тип", CategoryCode: "a", BasePrice: decimal.NewFromInt(10), Type: "food"})

	dir := t.TempDir()
	pub := &fakePublisher{}
	svc := NewFeedService(store, store, pub, logger.NewNop(), dir, "https://img.example.com")
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }

	mp := &models.Marketplace{ID: "mp-yml", Name: "Фид", Type: models.ChannelYML, Active: true, ProductTypes: []string{"toy"}}
	res, err := svc.Generate(context.Background(), mp)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "mp-yml.xml"), res.Path)
	assert.Equal(t, 1, res.Offers)
	assert.Equal(t, 1, res.Skipped[feed.SkipNoPrice])
	assert.Len(t, res.Warnings, 1)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `<offer id="ART-1"`)

	require.Len(t, pub.messages, 1)
	assert.Equal(t, models.TopicFeedGenerated, pub.messages[0].topic)
	var event models.FeedGeneratedEvent
	require.NoError(t, json.Unmarshal(pub.messages[0].data, &event))
	assert.Equal(t, "mp-yml", event.MarketplaceID)
	assert.Equal(t, 1, event.Offers)
}

func TestFeedService_PublishFailureIsNotFatal(t *testing.T) {
	store := newMemStore()
	pub := &fakePublisher{err: errors.New("kafka down")}
	svc := NewFeedService(store, store, pub, logger.NewNop(), t.TempDir(), "")

	mp := &models.Marketplace{ID: "mp-json", Name: "JSON", Type: models.ChannelJSONCatalog, Active: true}
	res, err := svc.Generate(context.Background(), mp)
	require.NoError(t, err)
	assert.Equal(t, ".json", filepath.Ext(res.Path))
}

func TestJobs_Applicability(t *testing.T) {
	yml := &models.Marketplace{Type: models.ChannelYML, IntervalMinutes: 15}
	ym := yandexMarketplace()
	noPush := yandexMarketplace()
	noPush.UpdatePricesViaAPI = false

	feedJob := NewFeedJob(nil)
	assert.True(t, feedJob.Applies(yml))
	assert.Equal(t, 15*time.Minute, feedJob.Interval(yml))

	mapping := NewSKUMappingJob(nil, time.Hour)
	assert.False(t, mapping.Applies(yml))
	assert.True(t, mapping.Applies(ym))
	assert.Equal(t, time.Hour, mapping.Interval(ym))

	hidden := NewHiddenOffersJob(nil, 30*time.Minute)
	assert.True(t, hidden.Applies(noPush))

	fill, drain := NewPriceFillJob(nil), NewPriceDrainJob(nil)
	assert.True(t, fill.Applies(ym))
	assert.False(t, fill.Applies(noPush))
	assert.False(t, drain.Applies(yml))
	assert.Zero(t, drain.Interval(ym))
	assert.Equal(t, models.JobPriceQueueDrain, drain.Type())
}
