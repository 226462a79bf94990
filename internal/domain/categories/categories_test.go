package categories

import (
	"testing"

	"github.com/athebyme/gomarket-platform/internal/domain/models"
	"github.com/stretchr/testify/assert"
)

func codes(cats []*models.Category) []string {
	out := make([]string, 0, len(cats))
	for _, c := range cats {
		out = append(out, c.Code)
	}
	return out
}

func TestIsBlocked_OwnSettingOnly(t *testing.T) {
	parent := &models.Category{Code: "P"}
	parent.SetBlocked("mp", true)
	child := &models.Category{Code: "C", ParentCode: "P"}

	assert.True(t, IsBlocked(parent, "mp"))
	assert.False(t, IsBlocked(parent, "other"))
	assert.False(t, IsBlocked(child, "mp"))
	assert.False(t, IsBlocked(nil, "mp"))
}

func TestSetBlocked_NoDuplicates(t *testing.T) {
	c := &models.Category{Code: "C"}
	c.SetBlocked("mp", true)
	c.SetBlocked("mp", false)

	assert.Len(t, c.MarketplaceSettings, 1)
	assert.False(t, IsBlocked(c, "mp"))
}

func TestVisible(t *testing.T) {
	assert.True(t, Visible(&models.Category{Code: "C"}))
	assert.False(t, Visible(&models.Category{Code: "C", IsDeleted: true}))
	assert.False(t, Visible(nil))
}

func TestDescendants(t *testing.T) {
	all := []*models.Category{
		{Code: "root"},
		{Code: "a", ParentCode: "root"},
		{Code: "b", ParentCode: "root"},
		{Code: "a1", ParentCode: "a"},
		{Code: "other"},
	}

	assert.ElementsMatch(t, []string{"a", "b", "a1"}, codes(Descendants(all, "root")))
	assert.Empty(t, Descendants(all, "other"))
}

func TestDescendants_CycleTerminates(t *testing.T) {
	all := []*models.Category{
		{Code: "x", ParentCode: "y"},
		{Code: "y", ParentCode: "x"},
	}

	assert.Equal(t, []string{"y"}, codes(Descendants(all, "x")))
}
