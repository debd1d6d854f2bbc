package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/andesrent/rental-admin/internal/analytics"
	"github.com/andesrent/rental-admin/internal/auth"
	"github.com/andesrent/rental-admin/internal/config"
	"github.com/andesrent/rental-admin/internal/coupon"
	"github.com/andesrent/rental-admin/internal/es"
	"github.com/andesrent/rental-admin/internal/events"
	"github.com/andesrent/rental-admin/internal/handlers"
	"github.com/andesrent/rental-admin/internal/logging"
	httpserver "github.com/andesrent/rental-admin/internal/transport/http"
	loggingmw "github.com/andesrent/rental-admin/pkg/middleware/logging"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	prod := events.NewProducer([]string{configuration.KAFKA_ADDRESS})

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Fatal(err)
	}

	tokens := &auth.TokenService{
		DB:            db,
		JWTSecret:     []byte(configuration.JWT_SECRET),
		RefreshSecret: []byte(configuration.REFRESH_SECRET),
	}
	coupons := &coupon.Service{DB: db}

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger))

	deps := httpserver.Deps{
		AuthHandler:      &handlers.AuthHandler{DB: db, Tokens: tokens},
		CategoryHandler:  &handlers.CategoryHandler{DB: db},
		ProductHandler:   &handlers.ProductHandler{DB: db, ES: esClient, Index: "products"},
		CouponHandler:    &handlers.CouponHandler{DB: db, Coupons: coupons},
		ShippingHandler:  &handlers.ShippingHandler{DB: db},
		OrderHandler:     &handlers.OrderHandler{DB: db, Coupons: coupons, Producer: prod},
		AnalyticsHandler: &handlers.AnalyticsHandler{Analytics: &analytics.Service{DB: db}},
		Tokens:           tokens,
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         configuration.HTTP_ADDR,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
