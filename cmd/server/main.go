package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pricetracker/internal/database"
	"pricetracker/internal/products"
	"pricetracker/internal/scheduler"
	"pricetracker/internal/scraper"
	"pricetracker/internal/tracker"

	"github.com/gin-gonic/gin"
)

func main() {
	_ = godotenv.Load() // load .env if present; not fatal if missing

	// graceful shutdown coordination
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// connect to DB and ensure schema
	pool, err := database.Connect(ctx, database.NewConfigFromEnv())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatalf("database: %v", err)
	}

	repo := products.NewRepository(pool)
	scr := scraper.New(
		time.Duration(intEnv("SCRAPE_TIMEOUT_SECONDS", 15))*time.Second,
		intEnv("SCRAPE_RETRIES", 2),
	)
	svc := tracker.NewService(repo, scr)

	// start scheduler; it runs until ctx is cancelled
	wg := &sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Run(ctx, svc, scheduler.Config{
			Interval: time.Duration(intEnv("UPDATE_INTERVAL_MINUTES", 60)) * time.Minute,
		})
	}()

	// build router and handlers
	h := products.NewHandler(svc)

	if mode := os.Getenv("GIN_MODE"); mode != "" {
		gin.SetMode(mode)
	}
	r := gin.Default()

	api := r.Group("/api")
	{
		api.GET("/products", h.ListProducts)
		api.POST("/products", h.TrackProduct)
		api.GET("/products/:id", h.GetProduct)
		api.GET("/products/:id/history", h.GetPriceHistory)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	// start server
	go func() {
		log.Printf("Server started on :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server ListenAndServe: %v", err)
		}
	}()

	// wait for interrupt
	<-ctx.Done()
	log.Println("shutdown signal received")

	// stop accepting new requests, allow 15s to finish
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server Shutdown: %v", err)
	}

	// wait for the in-flight sweep to wind down (it reacts to ctx)
	wg.Wait()

	// close DB pool (blocks until connections returned)
	pool.Close()

	log.Println("graceful shutdown complete")
}

func intEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
