package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogHasWriter(t *testing.T) {
	c := Default()
	p, ok := c.Lookup(DefaultProduct)
	require.True(t, ok)
	assert.Equal(t, "Writer", p.DisplayName)
	assert.Equal(t, "price_1R9UWWFCUaUjKa7SqpbwYLF3", p.PriceID)
	assert.False(t, c.Has("reader"))
}

func TestListIsCopyAndSorted(t *testing.T) {
	c := New(Product{Name: "zeta"}, Product{Name: "alpha"}, Product{Name: " "}, Product{Name: "alpha", DisplayName: "A"})
	list := c.List()
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "A", list[0].DisplayName)

	list[0].PriceID = "mutated"
	p, _ := c.Lookup("alpha")
	assert.Empty(t, p.PriceID)
}

func TestNilCatalog(t *testing.T) {
	var c *Catalog
	assert.False(t, c.Has(DefaultProduct))
	assert.Nil(t, c.List())
}
