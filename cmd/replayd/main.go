// Command replayd serves scripted agent execution event streams over SSE and
// WebSocket, for demos and integration testing of stream consumers.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/deepscout/runstream/config"
	"github.com/deepscout/runstream/server"
	"github.com/deepscout/runstream/transport"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting replayd...")
	log.Printf("Port: %d", cfg.ServerPort)
	log.Printf("Script: %d steps, %v delay", cfg.ScriptSteps, cfg.ScriptDelay)

	srv := server.New(func(task transport.Task) server.Script {
		return server.LoremScript(cfg.ScriptSteps, cfg.ScriptDelay)
	})

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	srv.RegisterRoutes(e)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.ServerPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Stream server started on port %d", cfg.ServerPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down replayd...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Replayd stopped")
}
