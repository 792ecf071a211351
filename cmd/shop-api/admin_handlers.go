package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jess-collection/shop-api/internal/customer"
	"github.com/jess-collection/shop-api/internal/order"
	"github.com/jess-collection/shop-api/internal/product"
	"github.com/jess-collection/shop-api/internal/review"
)

// createProductHandler godoc
// @Summary Create a catalog product
// @Accept json
// @Param product body product.CreateProductRequest true "product"
// @Success 201 {object} product.Product
// @Router /admin/products [post]
func createProductHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req product.CreateProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		if req.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}
		if !product.ValidCategory(product.Category(req.Category)) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category"})
			return
		}
		price, err := decimal.NewFromString(req.Price)
		if err != nil || price.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price"})
			return
		}
		if req.Stock < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "stock must be non-negative"})
			return
		}
		p := &product.Product{
			ID:            uuid.NewString(),
			Name:          req.Name,
			Description:   req.Description,
			Category:      product.Category(req.Category),
			Price:         price.StringFixed(2),
			StockQuantity: req.Stock,
			ImageURL:      req.ImageURL,
		}
		if err := repo.Create(c.Request.Context(), p); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create product failed"})
			return
		}
		c.JSON(http.StatusCreated, p)
	}
}

func updateProductHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req product.UpdateProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		existing, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		if req.Category != "" && !product.ValidCategory(product.Category(req.Category)) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category"})
			return
		}
		if req.Stock < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "stock must be non-negative"})
			return
		}
		updatePrice := false
		priceStr := existing.Price
		if req.Price != "" {
			price, err := decimal.NewFromString(req.Price)
			if err != nil || price.IsNegative() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price"})
				return
			}
			priceStr = price.StringFixed(2)
			updatePrice = true
		}
		p := &product.Product{
			ID:            existing.ID,
			Name:          req.Name,
			Description:   req.Description,
			Category:      product.Category(req.Category),
			Price:         priceStr,
			StockQuantity: req.Stock,
			ImageURL:      req.ImageURL,
		}
		if err := repo.Update(c.Request.Context(), p, updatePrice); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update product failed"})
			return
		}
		updated, err := repo.GetByID(c.Request.Context(), existing.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update product failed"})
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

func deleteProductHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := repo.Delete(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "delete product failed"})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func listAllOrdersHandler(repo order.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pageParams(c)
		orders, err := repo.ListAll(c.Request.Context(), limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "list orders failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": orders})
	}
}

// updateOrderStatusHandler godoc
// @Summary Advance an order one lifecycle step
// @Accept json
// @Param status body order.UpdateStatusRequest true "target status"
// @Success 200 {object} order.Order
// @Failure 409 {object} product.HTTPError
// @Router /admin/orders/{id}/status [put]
func updateOrderStatusHandler(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req order.UpdateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		target := order.Status(req.Status)
		if !order.ValidStatus(target) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown order status"})
			return
		}
		o, err := svc.Advance(c.Request.Context(), c.Param("id"), target, req.TrackingNumber)
		if err != nil {
			var te *order.TransitionError
			switch {
			case errors.As(err, &te):
				c.JSON(http.StatusConflict, gin.H{"error": te.Error()})
			case errors.Is(err, order.ErrStatusConflict):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			case errors.Is(err, order.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "update status failed"})
			}
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

func listCustomersHandler(repo customer.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pageParams(c)
		customers, err := repo.List(c.Request.Context(), limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "list customers failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": customers})
	}
}

func deleteCustomerHandler(repo customer.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := repo.Delete(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "delete customer failed"})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func deleteReviewHandler(repo review.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := repo.Delete(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "delete review failed"})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}
