package postgres

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/athebyme/gomarket-platform/internal/domain/models"
	"github.com/athebyme/gomarket-platform/internal/domain/services"
	"github.com/athebyme/gomarket-platform/internal/scheduler"
	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ services.ProductStore      = (*Storage)(nil)
	_ services.CategoryStore     = (*Storage)(nil)
	_ services.MarketplaceStore  = (*Storage)(nil)
	_ services.WatermarkStore    = (*Storage)(nil)
	_ services.PriceQueueStore   = (*Storage)(nil)
	_ scheduler.MarketplaceStore = (*Storage)(nil)
	_ scheduler.WatermarkStore   = (*Storage)(nil)
	_ interfaces.StoragePort     = (*Storage)(nil)
)

func TestGenFilterConditions(t *testing.T) {
	assert.Equal(t, "", genFilterConditions(nil))
	assert.Equal(t, "WHERE a = 1", genFilterConditions([]string{"a = 1"}))
	assert.Equal(t, "WHERE a = 1 AND b = 2", genFilterConditions([]string{"a = 1", "b = 2"}))
}

func TestProductFilter_Empty(t *testing.T) {
	where, args := productFilter(models.ProductFilter{})
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestProductFilter_Listable(t *testing.T) {
	where, args := productFilter(models.ProductFilter{Listable: true, ProductTypes: []string{"Book", "TOY"}})
	assert.Equal(t, "WHERE is_deleted = FALSE AND category_code <> '' AND lower(type) = ANY($1)", where)
	require.Len(t, args, 1)
	assert.Equal(t, []string{"book", "toy"}, args[0])
}

func TestProductFilter_Marketplace(t *testing.T) {
	since := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("any setting", func(t *testing.T) {
		where, args := productFilter(models.ProductFilter{MarketplaceID: "mp-1"})
		assert.Equal(t, "WHERE marketplace_settings @> $1::jsonb", where)
		assert.Equal(t, argList{`[{"marketplace_id":"mp-1"}]`}, args)
	})

	t.Run("mapped since", func(t *testing.T) {
		where, args := productFilter(models.ProductFilter{MarketplaceID: "mp-1", MappedOnly: true, PriceUpdatedSince: &since})
		assert.Contains(t, where, "jsonb_array_elements(marketplace_settings)")
		assert.Contains(t, where, "s->>'marketplace_id' = $1")
		assert.Contains(t, where, "AND price_updated_at >= $2")
		assert.Equal(t, argList{"mp-1", since}, args)
	})

	t.Run("external identifier", func(t *testing.T) {
		where, args := productFilter(models.ProductFilter{MarketplaceID: "mp-1", MappedOnly: true, ExternalIdentifier: "777"})
		assert.Equal(t, "WHERE marketplace_settings @> $1::jsonb", where)
		assert.Equal(t, argList{`[{"external_identifier":"777","marketplace_id":"mp-1"}]`}, args)
	})
}

func TestProductFilter_Articuls(t *testing.T) {
	where, args := productFilter(models.ProductFilter{Articuls: []string{"A-1", "A-2"}})
	assert.Equal(t, "WHERE articul = ANY($1)", where)
	assert.Equal(t, argList{[]string{"A-1", "A-2"}}, args)
}

func TestArgList(t *testing.T) {
	var args argList
	assert.Equal(t, "$1", args.add("a"))
	assert.Equal(t, "$2", args.add(2))
	assert.Len(t, args, 2)
}

func TestMapWriteError(t *testing.T) {
	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "marketplaces_name_key"})

	var dupErr *models.DuplicateError
	require.True(t, errors.As(mapWriteError(dup), &dupErr))
	assert.Equal(t, []string{"name"}, dupErr.Fields)

	other := &pgconn.PgError{Code: "23503"}
	assert.Same(t, other, mapWriteError(other))

	plain := errors.New("boom")
	assert.Equal(t, plain, mapWriteError(plain))
}

func TestConstraintFields(t *testing.T) {
	assert.Equal(t, []string{"id"}, constraintFields("marketplaces_pkey"))
	assert.Equal(t, []string{"products_code_key"}, constraintFields("products_code_key"))
	assert.Nil(t, constraintFields(""))
}
