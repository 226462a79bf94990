// Package scheduler запускает задачи синхронизации по конфигурациям маркетплейсов.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/athebyme/gomarket-platform/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/internal/domain/models"
	"github.com/athebyme/gomarket-platform/internal/metrics"
	"github.com/athebyme/gomarket-platform/pkg/interfaces"
)

// Job задача синхронизации одного типа
type Job interface {
	Type() models.JobType
	// Applies сообщает, относится ли задача к конфигурации
	Applies(mp *models.Marketplace) bool
	// Interval минимальный промежуток между успешными запусками для конфигурации
	Interval(mp *models.Marketplace) time.Duration
	Run(ctx context.Context, mp *models.Marketplace) error
}

// MarketplaceStore источник конфигураций
type MarketplaceStore interface {
	ListMarketplaces(ctx context.Context, activeOnly bool) ([]*models.Marketplace, error)
	GetMarketplace(ctx context.Context, id string) (*models.Marketplace, error)
}

// WatermarkStore время последнего успешного запуска по паре (конфигурация, задача)
type WatermarkStore interface {
	GetWatermark(ctx context.Context, marketplaceID string, job models.JobType) (time.Time, error)
	SetWatermark(ctx context.Context, marketplaceID string, job models.JobType, at time.Time) error
}

// IsDue сообщает, пора ли запускать задачу: конфигурация активна и
// задача еще не выполнялась или с последнего запуска прошло больше интервала.
func IsDue(active bool, lastRun time.Time, interval time.Duration, now time.Time) bool {
	if !active {
		return false
	}
	if lastRun.IsZero() {
		return true
	}
	return now.Sub(lastRun) > interval
}

// Options параметры планировщика
type Options struct {
	Backoff BackoffPolicy
	// Locker необязательная распределенная блокировка пары (задача, конфигурация)
	Locker   Locker
	LeaseTTL time.Duration
}

type registration struct {
	job  Job
	tick time.Duration
}

type failureState struct {
	count int
	last  time.Time
}

// Scheduler обходит конфигурации на каждом тике задачи.
// Внутри тика конфигурации обрабатываются строго последовательно,
// задачи разных типов работают независимо друг от друга.
type Scheduler struct {
	marketplaces MarketplaceStore
	watermarks   WatermarkStore
	logger       interfaces.LoggerPort
	opts         Options
	now          func() time.Time

	mu       sync.Mutex
	jobs     []registration
	failures map[string]failureState
}

// New создает планировщик
func New(marketplaces MarketplaceStore, watermarks WatermarkStore, log interfaces.LoggerPort, opts Options) *Scheduler {
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = 30 * time.Minute
	}
	return &Scheduler{
		marketplaces: marketplaces,
		watermarks:   watermarks,
		logger:       log,
		opts:         opts,
		now:          time.Now,
		failures:     make(map[string]failureState),
	}
}

// Register добавляет задачу с частотой тиков tick
func (s *Scheduler) Register(job Job, tick time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, registration{job: job, tick: tick})
}

// Start запускает тикер для каждой зарегистрированной задачи и блокируется до отмены ctx
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	jobs := append([]registration(nil), s.jobs...)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, r := range jobs {
		wg.Add(1)
		go func(r registration) {
			defer wg.Done()
			s.logger.Info("Задача синхронизации запущена",
				interfaces.LogField{Key: "job", Value: r.job.Type()},
				interfaces.LogField{Key: "tick", Value: r.tick.String()})
			Every(ctx, r.tick, func(ctx context.Context) {
				s.Tick(ctx, r.job)
			})
			s.logger.Info("Задача синхронизации остановлена", interfaces.LogField{Key: "job", Value: r.job.Type()})
		}(r)
	}
	wg.Wait()
}

// Tick обрабатывает все подходящие активные конфигурации по очереди.
// Ошибка или паника одной конфигурации не мешает остальным.
func (s *Scheduler) Tick(ctx context.Context, job Job) {
	list, err := s.marketplaces.ListMarketplaces(ctx, true)
	if err != nil {
		s.logger.ErrorWithContext(ctx, "Не удалось получить конфигурации маркетплейсов",
			interfaces.LogField{Key: "job", Value: job.Type()},
			interfaces.LogField{Key: "error", Value: err.Error()})
		return
	}

	for _, mp := range list {
		if ctx.Err() != nil {
			return
		}
		if !job.Applies(mp) {
			continue
		}
		_ = s.runOne(ctx, job, mp, false)
	}
}

// RunNow запускает задачу для конфигурации без проверки интервала
func (s *Scheduler) RunNow(ctx context.Context, jobType models.JobType, marketplaceID string) error {
	job := s.job(jobType)
	if job == nil {
		return &models.ValidationError{Field: "job", Message: fmt.Sprintf("неизвестная задача %q", jobType)}
	}

	mp, err := s.marketplaces.GetMarketplace(ctx, marketplaceID)
	if err != nil {
		return fmt.Errorf("failed to get marketplace: %w", err)
	}
	if mp == nil {
		return fmt.Errorf("marketplace %s: %w", marketplaceID, models.ErrNotFound)
	}
	if !job.Applies(mp) {
		return &models.ValidationError{Field: "job", Message: fmt.Sprintf("задача %s не применима к конфигурации", jobType)}
	}

	return s.runOne(ctx, job, mp, true)
}

func (s *Scheduler) job(jobType models.JobType) Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.jobs {
		if r.job.Type() == jobType {
			return r.job
		}
	}
	return nil
}

func (s *Scheduler) runOne(ctx context.Context, job Job, mp *models.Marketplace, force bool) error {
	jobType := job.Type()
	ctx = logger.ContextWithFields(ctx,
		interfaces.LogField{Key: "job", Value: jobType},
		interfaces.LogField{Key: "marketplace_id", Value: mp.ID})

	// Водяной знак берется до запуска: изменения во время работы попадут в следующий проход
	tickStart := s.now().UTC()

	if !force {
		lastRun, err := s.watermarks.GetWatermark(ctx, mp.ID, jobType)
		if err != nil {
			s.logger.ErrorWithContext(ctx, "Не удалось прочитать время последнего запуска",
				interfaces.LogField{Key: "error", Value: err.Error()})
			return err
		}
		if !IsDue(mp.Active, lastRun, job.Interval(mp), tickStart) {
			return nil
		}
		if wait := s.backoffRemaining(jobType, mp.ID, tickStart); wait > 0 {
			s.logger.DebugWithContext(ctx, "Повтор отложен после ошибок",
				interfaces.LogField{Key: "wait", Value: wait.String()})
			return nil
		}
	}

	if s.opts.Locker != nil {
		key := lockKey(jobType, mp.ID)
		acquired, err := s.opts.Locker.Acquire(ctx, key, s.opts.LeaseTTL)
		if err != nil {
			s.logger.ErrorWithContext(ctx, "Ошибка получения блокировки задачи",
				interfaces.LogField{Key: "error", Value: err.Error()})
			return err
		}
		if !acquired {
			metrics.JobRuns.WithLabelValues(string(jobType), "locked").Inc()
			s.logger.DebugWithContext(ctx, "Задача уже выполняется другим экземпляром")
			return nil
		}
		defer func() {
			if err := s.opts.Locker.Release(context.WithoutCancel(ctx), key); err != nil {
				s.logger.WarnWithContext(ctx, "Ошибка снятия блокировки задачи",
					interfaces.LogField{Key: "error", Value: err.Error()})
			}
		}()
	}

	start := time.Now()
	err := s.safeRun(ctx, job, mp)
	metrics.JobDuration.WithLabelValues(string(jobType)).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.JobRuns.WithLabelValues(string(jobType), "error").Inc()
		failures := s.recordFailure(jobType, mp.ID, tickStart)
		s.logger.ErrorWithContext(ctx, "Задача синхронизации завершилась с ошибкой",
			interfaces.LogField{Key: "error", Value: err.Error()},
			interfaces.LogField{Key: "failures", Value: failures})
		return err
	}

	metrics.JobRuns.WithLabelValues(string(jobType), "success").Inc()
	s.clearFailures(jobType, mp.ID)

	if err := s.watermarks.SetWatermark(ctx, mp.ID, jobType, tickStart); err != nil {
		s.logger.ErrorWithContext(ctx, "Не удалось сохранить время запуска",
			interfaces.LogField{Key: "error", Value: err.Error()})
		return err
	}
	metrics.JobLastSuccess.WithLabelValues(string(jobType), mp.ID).Set(float64(tickStart.Unix()))

	s.logger.DebugWithContext(ctx, "Задача синхронизации выполнена",
		interfaces.LogField{Key: "duration", Value: time.Since(start).String()})
	return nil
}

func (s *Scheduler) safeRun(ctx context.Context, job Job, mp *models.Marketplace) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return job.Run(ctx, mp)
}

func (s *Scheduler) backoffRemaining(job models.JobType, marketplaceID string, now time.Time) time.Duration {
	s.mu.Lock()
	state, ok := s.failures[failureKey(job, marketplaceID)]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	wait := s.opts.Backoff.Delay(state.count) - now.Sub(state.last)
	if wait < 0 {
		return 0
	}
	return wait
}

func (s *Scheduler) recordFailure(job models.JobType, marketplaceID string, at time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := failureKey(job, marketplaceID)
	state := s.failures[key]
	state.count++
	state.last = at
	s.failures[key] = state
	return state.count
}

func (s *Scheduler) clearFailures(job models.JobType, marketplaceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, failureKey(job, marketplaceID))
}

func failureKey(job models.JobType, marketplaceID string) string {
	return string(job) + "/" + marketplaceID
}

// Every вызывает fn сразу и затем на каждом тике до отмены ctx.
// Следующий вызов не начнется, пока не завершится предыдущий.
func Every(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) {
	if ctx.Err() != nil {
		return
	}
	fn(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fn(ctx)
		case <-ctx.Done():
			return
		}
	}
}
