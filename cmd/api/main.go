// main.go - The entry point and server setup.

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bosocmputer/bill_extract_gemini/configs"
	"github.com/bosocmputer/bill_extract_gemini/internal/ai"
	"github.com/bosocmputer/bill_extract_gemini/internal/api"
	"github.com/bosocmputer/bill_extract_gemini/internal/document"
	"github.com/bosocmputer/bill_extract_gemini/internal/processor"
	"github.com/gin-gonic/gin"
)

func main() {
	// Step 0: Load configuration from environment variables
	configs.LoadConfig()

	// Step 0.5: Set production mode
	if ginMode := os.Getenv("GIN_MODE"); ginMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Step 1: Build the page extractor factory. The credential is resolved per request.
	extractorFactory, err := ai.NewExtractorFactory(configs.AI_PROVIDER, configs.MODEL_NAME, configs.MODEL_TIMEOUT)
	if err != nil {
		log.Fatalf("Failed to configure AI provider: %v", err)
	}

	// Step 2: Wire the pipeline and the router
	handler := &api.Handler{
		Fetcher: document.NewHTTPFetcher(configs.DOWNLOAD_TIMEOUT, configs.MAX_DOCUMENT_BYTES),
		Pipeline: &api.Pipeline{
			Rasterizer:        processor.NewFitzRasterizer(),
			NewExtractor:      extractorFactory,
			Preprocess:        configs.ENABLE_IMAGE_PREPROCESSING,
			MaxImageDimension: configs.MAX_IMAGE_DIMENSION,
		},
		APIKey:         configs.APIKey,
		MaxUploadBytes: configs.MAX_DOCUMENT_BYTES,
	}
	router := api.NewRouter(handler, configs.ALLOWED_ORIGINS)

	// Step 3: Setup HTTP server with timeouts
	srv := &http.Server{
		Addr:              ":" + configs.PORT,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,  // large uploads
		WriteTimeout:      10 * time.Minute, // one model call per page, sequentially
		MaxHeaderBytes:    1 << 20,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on :%s", configs.PORT)
		log.Println("API Endpoints:")
		log.Println("  POST /extract-bill-data")
		log.Println("  POST /api/v1/extract-bill-data")
		log.Println("  GET  /health")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
