package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/middlewares"
	"storefront/models"
	"storefront/services"
)

type ProductController struct {
	catalog services.CatalogReader
	logger  *zap.Logger
}

func NewProductController(catalog services.CatalogReader, logger *zap.Logger) *ProductController {
	return &ProductController{catalog: catalog, logger: logger}
}

// ListProducts serves the catalog file as-is.
func (pc *ProductController) ListProducts(c *gin.Context) {
	products, err := pc.catalog.Products(c.Request.Context())
	if err != nil {
		pc.logger.Error("Error reading products",
			zap.String("request_id", c.GetString(middlewares.RequestIDKey)),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to fetch products"})
		return
	}
	c.JSON(http.StatusOK, products)
}
