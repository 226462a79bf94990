package marketapi

import (
	"context"
	"errors"
	"fmt"
)

// DefaultMaxPages ограничивает число страниц в одном обходе
const DefaultMaxPages = 1000

var (
	ErrPageLimit     = errors.New("pagination page limit exceeded")
	ErrRepeatedToken = errors.New("pagination token repeated")
)

// Page страница ответа с токеном продолжения
type Page[T any] struct {
	Items     []T
	NextToken string
}

// PageFetcher загружает страницу по токену, пустой токен означает первую страницу
type PageFetcher[T any] func(ctx context.Context, token string) (Page[T], error)

// FetchAll обходит все страницы до отсутствия токена.
// Ошибка любой страницы прерывает обход, частичный результат не возвращается.
func FetchAll[T any](ctx context.Context, fetch PageFetcher[T]) ([]T, error) {
	return FetchAllLimit(ctx, fetch, DefaultMaxPages)
}

// FetchAllLimit как FetchAll, но с явным ограничением числа страниц
func FetchAllLimit[T any](ctx context.Context, fetch PageFetcher[T], maxPages int) ([]T, error) {
	var (
		items []T
		token string
		seen  = make(map[string]struct{})
	)

	for page := 0; ; page++ {
		if page >= maxPages {
			return nil, fmt.Errorf("%w: %d", ErrPageLimit, maxPages)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p, err := fetch(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page+1, err)
		}
		items = append(items, p.Items...)

		if p.NextToken == "" {
			return items, nil
		}
		if _, dup := seen[p.NextToken]; dup {
			return nil, fmt.Errorf("%w: %s", ErrRepeatedToken, p.NextToken)
		}
		seen[p.NextToken] = struct{}{}
		token = p.NextToken
	}
}
