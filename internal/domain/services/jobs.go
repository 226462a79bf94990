package services

import (
	"context"
	"time"

	"github.com/athebyme/gomarket-platform/internal/domain/models"
)

// FeedJob перегенерирует фид с интервалом конфигурации
type FeedJob struct {
	svc *FeedService
}

func NewFeedJob(svc *FeedService) *FeedJob { return &FeedJob{svc: svc} }

func (j *FeedJob) Type() models.JobType { return models.JobFeedGeneration }
func (j *FeedJob) Applies(mp *models.Marketplace) bool { return true }
func (j *FeedJob) Interval(mp *models.Marketplace) time.Duration { return mp.Interval() }

func (j *FeedJob) Run(ctx context.Context, mp *models.Marketplace) error {
	_, err := j.svc.Generate(ctx, mp)
	return err
}

// SKUMappingJob обновляет внешние идентификаторы товаров
type SKUMappingJob struct {
	svc      *SKUMappingService
	interval time.Duration
}

func NewSKUMappingJob(svc *SKUMappingService, interval time.Duration) *SKUMappingJob {
	return &SKUMappingJob{svc: svc, interval: interval}
}

func (j *SKUMappingJob) Type() models.JobType { return models.JobSKUMapping }
func (j *SKUMappingJob) Applies(mp *models.Marketplace) bool { return mp.SupportsAPI() }
func (j *SKUMappingJob) Interval(mp *models.Marketplace) time.Duration { return j.interval }

func (j *SKUMappingJob) Run(ctx context.Context, mp *models.Marketplace) error {
	_, err := j.svc.Refresh(ctx, mp)
	return err
}

// HiddenOffersJob синхронизирует скрытые предложения
type HiddenOffersJob struct {
	svc      *HiddenOfferService
	interval time.Duration
}

func NewHiddenOffersJob(svc *HiddenOfferService, interval time.Duration) *HiddenOffersJob {
	return &HiddenOffersJob{svc: svc, interval: interval}
}

func (j *HiddenOffersJob) Type() models.JobType { return models.JobHiddenOffers }
func (j *HiddenOffersJob) Applies(mp *models.Marketplace) bool { return mp.SupportsAPI() }
func (j *HiddenOffersJob) Interval(mp *models.Marketplace) time.Duration { return j.interval }

func (j *HiddenOffersJob) Run(ctx context.Context, mp *models.Marketplace) error {
	_, err := j.svc.Sync(ctx, mp)
	return err
}

// PriceFillJob наполняет очередь цен на каждом тике
type PriceFillJob struct {
	svc *PriceQueueService
}

func NewPriceFillJob(svc *PriceQueueService) *PriceFillJob { return &PriceFillJob{svc: svc} }

func (j *PriceFillJob) Type() models.JobType { return models.JobPriceQueueFill }
func (j *PriceFillJob) Applies(mp *models.Marketplace) bool {
	return mp.SupportsAPI() && mp.UpdatePricesViaAPI
}
func (j *PriceFillJob) Interval(mp *models.Marketplace) time.Duration { return 0 }

func (j *PriceFillJob) Run(ctx context.Context, mp *models.Marketplace) error {
	_, err := j.svc.Fill(ctx, mp)
	return err
}

// PriceDrainJob отправляет очередь цен на каждом тике
type PriceDrainJob struct {
	svc *PriceQueueService
}

func NewPriceDrainJob(svc *PriceQueueService) *PriceDrainJob { return &PriceDrainJob{svc: svc} }

func (j *PriceDrainJob) Type() models.JobType { return models.JobPriceQueueDrain }
func (j *PriceDrainJob) Applies(mp *models.Marketplace) bool {
	return mp.SupportsAPI() && mp.UpdatePricesViaAPI
}
func (j *PriceDrainJob) Interval(mp *models.Marketplace) time.Duration { return 0 }

func (j *PriceDrainJob) Run(ctx context.Context, mp *models.Marketplace) error {
	_, err := j.svc.Drain(ctx, mp)
	return err
}
