package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/pokerjest/animeFolderOrganizer/internal/api"
	"github.com/pokerjest/animeFolderOrganizer/internal/app"
	"github.com/pokerjest/animeFolderOrganizer/internal/config"
	"github.com/pokerjest/animeFolderOrganizer/internal/db"
	"github.com/pokerjest/animeFolderOrganizer/internal/event"
	"github.com/pokerjest/animeFolderOrganizer/internal/worker"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

func main() {
	// .env 可选，用于提供 API key
	if err := godotenv.Load(); err == nil {
		log.Info("Loaded .env")
	}

	// 1. Load Config
	if err := config.LoadConfig("."); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.AppConfig
	config.SetupLogger(cfg.Log.Level)

	// 2. Setup Gin Mode
	gin.SetMode(cfg.Server.Mode)

	absPath, _ := filepath.Abs(cfg.Database.Path)
	log.Infof("Initializing database at: %s", absPath)
	db.InitDB(cfg.Database.Path)
	defer func() {
		if err := db.CloseDB(); err != nil {
			log.Warnf("Close database: %v", err)
		}
	}()

	application, err := app.New(cfg, afero.NewOsFs(), db.DB, event.GlobalBus)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer application.Close()

	stopWorker := worker.StartCorpusWorker(application.Bus, application.Corpus)
	defer stopWorker()

	// Start Scheduler
	application.Scheduler.Start()

	r := gin.Default()
	api.InitRoutes(r, application.Handlers())

	srv := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler: r,
	}

	if cfg.Server.APIToken == "" && !isLoopback(cfg.Server.Host) {
		log.Warnf("Server listens on %s without server.api_token; anyone on the network can rename folders", srv.Addr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Infof("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("Server forced to shutdown: %v", err)
	}
	log.Info("Server exited")
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
