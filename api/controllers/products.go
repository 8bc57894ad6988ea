package controllers

import (
	"net/http"

	"github.com/angelmondragon/omni-backend/api/responses"
	"github.com/angelmondragon/omni-backend/pkg/catalog"
)

// ProductList returns the public catalog. Price references stay server side.
func ProductList(c *catalog.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, c.List())
	}
}
