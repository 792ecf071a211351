package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jess-collection/shop-api/internal/cart"
	"github.com/jess-collection/shop-api/internal/httpx"
	"github.com/jess-collection/shop-api/internal/order"
	"github.com/jess-collection/shop-api/internal/payment"
	"github.com/jess-collection/shop-api/internal/product"
	"github.com/jess-collection/shop-api/internal/review"
)

func pageParams(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}

// listProductsHandler godoc
// @Summary List catalog products
// @Param q query string false "search text"
// @Param category query string false "category filter"
// @Success 200 {object} product.ListResponse
// @Router /products [get]
func listProductsHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pageParams(c)
		q := product.Query{
			Q:        c.Query("q"),
			Category: product.Category(c.Query("category")),
			Limit:    limit,
			Offset:   offset,
		}
		if q.Category != "" && !product.ValidCategory(q.Category) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category"})
			return
		}
		items, err := repo.List(c.Request.Context(), q)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "list products failed"})
			return
		}
		c.JSON(http.StatusOK, product.ListResponse{
			Q: q.Q, Category: string(q.Category), Limit: limit, Offset: offset, Items: items,
		})
	}
}

func getProductHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// createOrderHandler godoc
// @Summary Place an order from a finalized cart
// @Accept json
// @Param order body order.CreateOrderRequest true "checkout payload"
// @Success 201 {object} order.CreateOrderResponse
// @Failure 400 {object} product.HTTPError
// @Failure 409 {object} product.HTTPError
// @Router /orders [post]
func createOrderHandler(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req order.CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		o, err := svc.Create(c.Request.Context(), order.CreateInput{
			UserID:          httpx.UserID(c),
			Lines:           req.Items,
			TotalAmount:     req.TotalAmount,
			ShippingAddress: req.ShippingAddress,
			PaymentMethod:   order.PaymentMethod(req.PaymentMethod),
			PaymentIntentID: req.PaymentIntentID,
		})
		if err != nil {
			status, msg := checkoutError(err)
			c.JSON(status, gin.H{"error": msg})
			return
		}
		c.JSON(http.StatusCreated, order.CreateOrderResponse{
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			Success:     true,
		})
	}
}

// checkoutError maps intake failures onto HTTP statuses. Validation problems
// keep their message; dependency failures stay generic for the caller, the
// detail is already in the server log.
func checkoutError(err error) (int, string) {
	switch {
	case errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrTotalMismatch),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrInvalidPrice),
		errors.Is(err, product.ErrNotFound):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, product.ErrInsufficientStock):
		return http.StatusConflict, err.Error()
	case errors.Is(err, payment.ErrDeclined):
		return http.StatusPaymentRequired, "payment was declined"
	case errors.Is(err, order.ErrNeedsReconciliation):
		return http.StatusInternalServerError, "checkout failed; your payment authorization is being reviewed"
	default:
		return http.StatusInternalServerError, "failed to create order, please try again"
	}
}

type paymentIntentRequest struct {
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	OrderID   string  `json:"orderId"`
	UserEmail string  `json:"userEmail"`
}

// createPaymentIntentHandler godoc
// @Summary Create a payment authorization intent
// @Accept json
// @Success 200 {object} map[string]string
// @Router /payment-intent [post]
func createPaymentIntentHandler(gw order.Gateway, defaultCurrency string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req paymentIntentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		if req.Amount <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount is required"})
			return
		}
		currency := req.Currency
		if currency == "" {
			currency = defaultCurrency
		}
		minor := decimal.NewFromFloat(req.Amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
		intent, err := gw.CreateIntent(c.Request.Context(), minor, currency,
			"Order "+req.OrderID+" from Jess Collection", map[string]string{
				"orderId":   req.OrderID,
				"userEmail": req.UserEmail,
			})
		if err != nil {
			if errors.Is(err, payment.ErrDeclined) {
				c.JSON(http.StatusPaymentRequired, gin.H{"error": "payment was declined"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create payment intent"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"clientSecret":    intent.ClientSecret,
			"paymentIntentId": intent.ID,
		})
	}
}

// getOrderHandler serves the tracking view: order, items and history.
// Owners see their own orders; admins see everything.
func getOrderHandler(svc *order.Service, adm httpx.AdminChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		detail, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		uid := httpx.UserID(c)
		if detail.Order.UserID != uid {
			ok, err := adm.IsAdmin(c.Request.Context(), uid)
			if err != nil || !ok {
				c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
				return
			}
		}
		c.JSON(http.StatusOK, detail)
	}
}

func listOrdersByUserHandler(repo order.Repository, adm httpx.AdminChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		target := c.Param("user_id")
		uid := httpx.UserID(c)
		if target != uid {
			ok, err := adm.IsAdmin(c.Request.Context(), uid)
			if err != nil || !ok {
				c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
				return
			}
		}
		limit, offset := pageParams(c)
		orders, err := repo.ListByUser(c.Request.Context(), target, limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "list orders failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": orders})
	}
}

func listReviewsHandler(reviews review.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pageParams(c)
		out, err := reviews.ListByProduct(c.Request.Context(), c.Param("id"), limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "list reviews failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": out})
	}
}

// createReviewHandler godoc
// @Summary Post a product review
// @Accept json
// @Param review body review.CreateReviewRequest true "review"
// @Success 201 {object} review.Review
// @Router /products/{id}/reviews [post]
func createReviewHandler(reviews review.Repository, orders order.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req review.CreateReviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		if req.Rating < 1 || req.Rating > 5 {
			c.JSON(http.StatusBadRequest, gin.H{"error": review.ErrInvalidRating.Error()})
			return
		}
		uid := httpx.UserID(c)
		productID := c.Param("id")
		verified, err := orders.HasPurchased(c.Request.Context(), uid, productID)
		if err != nil {
			verified = false
		}
		rv := &review.Review{
			ID:               uuid.NewString(),
			ProductID:        productID,
			UserID:           uid,
			Rating:           req.Rating,
			Body:             req.Body,
			VerifiedPurchase: verified,
		}
		if err := reviews.Create(c.Request.Context(), rv); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create review failed"})
			return
		}
		c.JSON(http.StatusCreated, rv)
	}
}
