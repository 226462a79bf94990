package scheduler

import "time"

// BackoffPolicy экспоненциальная задержка повтора после подряд идущих ошибок.
// Нулевое значение отключает задержку: задача повторяется на следующем тике.
type BackoffPolicy struct {
	Base time.Duration
	Max  time.Duration
}

// Delay возвращает задержку после failures подряд идущих ошибок
func (p BackoffPolicy) Delay(failures int) time.Duration {
	if p.Base <= 0 || failures <= 0 {
		return 0
	}
	d := p.Base
	for i := 1; i < failures; i++ {
		d *= 2
		if p.Max > 0 && d >= p.Max {
			return p.Max
		}
		if d <= 0 {
			return p.Max
		}
	}
	if p.Max > 0 && d > p.Max {
		return p.Max
	}
	return d
}
