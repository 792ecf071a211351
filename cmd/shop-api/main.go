package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/jess-collection/shop-api/docs"
	"github.com/jess-collection/shop-api/internal/config"
	"github.com/jess-collection/shop-api/internal/customer"
	"github.com/jess-collection/shop-api/internal/httpx"
	"github.com/jess-collection/shop-api/internal/order"
	"github.com/jess-collection/shop-api/internal/payment"
	"github.com/jess-collection/shop-api/internal/product"
	"github.com/jess-collection/shop-api/internal/review"
)

// @title Jess Collection Shop API
// @version 1.0
// @description Storefront and back-office API for the Jess Collection store.
// @BasePath /
func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	products := product.NewPGRepo(pool)
	orders := order.NewPGRepo(pool)
	reviews := review.NewPGRepo(pool)
	customers := customer.NewPGRepo(pool)
	gateway := payment.NewClient(cfg.GatewayBaseURL, cfg.GatewaySecret)
	intake := order.NewService(orders, products, gateway, logger, cfg.Currency)

	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestID(), httpx.Logger(logger))

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/products", listProductsHandler(products))
	r.GET("/products/:id", getProductHandler(products))
	r.GET("/products/:id/reviews", listReviewsHandler(reviews))

	auth := r.Group("/", httpx.Auth())
	{
		auth.POST("/orders", createOrderHandler(intake))
		auth.POST("/payment-intent", createPaymentIntentHandler(gateway, cfg.Currency))
		auth.GET("/orders/:id", getOrderHandler(intake, customers))
		auth.GET("/orders/user/:user_id", listOrdersByUserHandler(orders, customers))
		auth.POST("/products/:id/reviews", createReviewHandler(reviews, orders))
	}

	admin := r.Group("/admin", httpx.Auth(), httpx.RequireAdmin(customers))
	{
		admin.POST("/products", createProductHandler(products))
		admin.PUT("/products/:id", updateProductHandler(products))
		admin.DELETE("/products/:id", deleteProductHandler(products))
		admin.GET("/orders", listAllOrdersHandler(orders))
		admin.PUT("/orders/:id/status", updateOrderStatusHandler(intake))
		admin.GET("/customers", listCustomersHandler(customers))
		admin.DELETE("/customers/:id", deleteCustomerHandler(customers))
		admin.DELETE("/reviews/:id", deleteReviewHandler(reviews))
	}

	logger.Info("shop-api listening", zap.String("addr", cfg.ListenAddr))
	if err := r.Run(cfg.ListenAddr); err != nil {
		logger.Fatal("server", zap.Error(err))
	}
}
