package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"shopflow/internal/dto/req"
	"shopflow/internal/dto/resp"
	"shopflow/internal/service"

	"github.com/gin-gonic/gin"
)

// ProductProvider is the catalog surface the handlers need.
type ProductProvider interface {
	CreateProduct(ctx context.Context, r req.CreateProductRequest) (*resp.ProductItem, error)
	UpdateProduct(ctx context.Context, sku string, r req.UpdateProductRequest) (*resp.ProductItem, error)
	GetProduct(ctx context.Context, sku string) (*resp.ProductItem, error)
	GetPrice(ctx context.Context, sku string) (*service.PriceView, error)
	ListProducts(ctx context.Context, search string, activeOnly bool, offset, limit int) (*resp.ProductListResponse, error)
}

type ProductHandler struct {
	service ProductProvider
}

func NewProductHandler(service ProductProvider) *ProductHandler {
	return &ProductHandler{service: service}
}

func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var r req.CreateProductRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "JSON format error"})
		return
	}

	item, err := h.service.CreateProduct(c.Request.Context(), r)
	if err != nil {
		if errors.Is(err, service.ErrSKUTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "sku already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	sku := c.Param("sku")
	var r req.UpdateProductRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "JSON format error"})
		return
	}

	item, err := h.service.UpdateProduct(c.Request.Context(), sku, r)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *ProductHandler) GetProduct(c *gin.Context) {
	item, err := h.service.GetProduct(c.Request.Context(), c.Param("sku"))
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *ProductHandler) GetPrice(c *gin.Context) {
	view, err := h.service.GetPrice(c.Request.Context(), c.Param("sku"))
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *ProductHandler) ListProducts(c *gin.Context) {
	search := c.Query("search")
	activeOnly := c.Query("all") != "true"
	offset := 0
	if raw := c.Query("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			offset = v
		}
	}
	limit := queryInt(c, "limit", 50)

	list, err := h.service.ListProducts(c.Request.Context(), search, activeOnly, offset, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}
