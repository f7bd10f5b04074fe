package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/afero"
	"gopkg.in/natefinch/lumberjack.v2"

	"cinelink/api"
	"cinelink/config"
	"cinelink/handlers"
	"cinelink/internal/database"
	"cinelink/internal/encryption"
	"cinelink/services/cache"
	"cinelink/services/library"
	"cinelink/services/linkcheck"
	"cinelink/services/resolver"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	fmt.Println("🚀 cinelink starting...")

	// Determine config path (env or default)
	configPath := os.Getenv("CINELINK_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("data", "settings.json")
	}

	// Init config manager and load settings (creates defaults if missing)
	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// Set up file logging with rotation
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			// Redirect standard log to both console and file
			multiWriter := io.MultiWriter(os.Stdout, fileWriter)
			log.SetOutput(multiWriter)
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("Logging to file: %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	// Database and repositories
	db, err := database.NewDB(database.Config{DatabasePath: settings.Database.Path})
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	movieRepo := database.NewMovieRepository(db.Connection())
	transcriptRepo := database.NewTranscriptRepository(db.Connection())
	performanceRepo := database.NewPerformanceRepository(db.Connection())

	// Result cache: redis when configured, in-process otherwise
	var store cache.Store
	if settings.Redis.Enabled {
		redisStore := cache.NewRedisStore(settings.Redis.Addr, settings.Redis.DB)
		defer redisStore.Close()
		store = redisStore
	} else {
		store = cache.NewMemoryStore()
		log.Printf("redis disabled, using in-process result cache")
	}

	// Resolution pipeline
	pages := resolver.NewPageResolver(&http.Client{Timeout: settings.Resolver.FetchTimeout()})
	resolverSvc := resolver.NewService(movieRepo, transcriptRepo, store, pages, settings.Resolver.CacheTTL())
	librarySvc := library.NewService(movieRepo, transcriptRepo)

	// Encryption keys (generated on first run)
	keyManager, err := encryption.NewKeyManager(afero.NewOsFs(), settings.Encryption.KeyFile)
	if err != nil {
		log.Fatalf("failed to initialize encryption keys: %v", err)
	}

	// Background link prober
	proberCtx, proberCancel := context.WithCancel(context.Background())
	defer proberCancel()
	if settings.LinkCheck.Enabled {
		prober := linkcheck.NewService(movieRepo, performanceRepo, settings.LinkCheck.Interval(), settings.LinkCheck.Concurrency)
		go prober.Start(proberCtx)
	}

	// HTTP surface
	r := mux.NewRouter()
	api.Register(
		r,
		handlers.NewHealthHandler(),
		handlers.NewMovieLinksHandler(resolverSvc),
		handlers.NewMoviesHandler(librarySvc),
		handlers.NewTranscriptsHandler(librarySvc),
		handlers.NewEncryptionHandler(keyManager, resolverSvc),
	)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	fmt.Printf("Server starting on %s\n", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Setup graceful shutdown
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("🛑 Shutdown signal received, cleaning up...")

	proberCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}
