package database

import (
	"context"
	"fmt"

	"storefront/models"
)

// FileCatalog reads the product list from a JSON file on every call, so edits
// to the file show up without a restart.
type FileCatalog struct {
	path string
}

func NewFileCatalog(path string) *FileCatalog {
	return &FileCatalog{path: path}
}

func (c *FileCatalog) Products(_ context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := readJSON(c.path, &products); err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}
