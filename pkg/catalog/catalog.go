package catalog

import (
	"sort"
	"strings"
)

// DefaultProduct is the product assumed by endpoints that accept an
// optional product_name.
const DefaultProduct = "writer"

// Product is one sellable entry.
type Product struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	PriceID     string `json:"-"`
}

// Catalog is a read-only product table built once at startup.
type Catalog struct {
	products map[string]Product
	names    []string
}

// New copies the provided products into an immutable catalog. Later
// duplicates replace earlier ones.
func New(products ...Product) *Catalog {
	c := &Catalog{products: make(map[string]Product, len(products))}
	for _, p := range products {
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			continue
		}
		if _, exists := c.products[p.Name]; !exists {
			c.names = append(c.names, p.Name)
		}
		c.products[p.Name] = p
	}
	sort.Strings(c.names)
	return c
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return New(Product{
		Name:        DefaultProduct,
		DisplayName: "Writer",
		Description: "Auto complete for anything. Customized to your style.",
		PriceID:     "price_1R9UWWFCUaUjKa7SqpbwYLF3",
	})
}

// Lookup returns the product by name.
func (c *Catalog) Lookup(name string) (Product, bool) {
	if c == nil {
		return Product{}, false
	}
	p, ok := c.products[strings.TrimSpace(name)]
	return p, ok
}

// Has reports whether name is a known product.
func (c *Catalog) Has(name string) bool {
	_, ok := c.Lookup(name)
	return ok
}

// List returns the products ordered by name.
func (c *Catalog) List() []Product {
	if c == nil {
		return nil
	}
	out := make([]Product, 0, len(c.names))
	for _, name := range c.names {
		out = append(out, c.products[name])
	}
	return out
}
