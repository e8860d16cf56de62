package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"hls-packager/internal/hls"
	"hls-packager/internal/media"
	"hls-packager/internal/mux"
	"hls-packager/internal/platform/config"
	"hls-packager/internal/platform/logger"
	"hls-packager/internal/platform/metrics"
	"hls-packager/internal/playlist"
	"hls-packager/internal/server"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/afero"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	mediaRoot := config.GetEnv("MEDIA_ROOT", "./media")
	configFile := config.GetEnv("HLS_CONFIG_FILE", "")
	cacheBlocks := config.GetEnvInt("FRAME_CACHE_BLOCKS", media.DefaultCacheBlocks)

	log := logger.New(logLevel, logFormat)
	if file := config.GetEnv("LOG_FILE", ""); file != "" {
		log = logger.NewRotating(logLevel, logFormat, logger.Rotation{
			File:       file,
			MaxSizeMB:  config.GetEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: config.GetEnvInt("LOG_MAX_BACKUPS", 3),
			MaxAgeDays: config.GetEnvInt("LOG_MAX_AGE_DAYS", 28),
		})
	}

	var file config.File
	if configFile != "" {
		f, err := config.LoadFile(configFile)
		if err != nil {
			log.Error("config error", "error", err)
			os.Exit(1)
		}
		file = f
	}
	locations, err := file.Resolve(config.EnvOverrides())
	if err != nil {
		log.Error("config error", "error", err)
		os.Exit(1)
	}

	fsys := afero.NewOsFs()
	repo := media.NewDescriptorRepository(fsys, mediaRoot)
	frames, err := media.NewFrameCache(fsys, media.DefaultReadAheadSize, cacheBlocks)
	if err != nil {
		log.Error("frame cache error", "error", err)
		os.Exit(1)
	}
	met := metrics.New()

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() {
			met.SetCachedDescriptors(repo.CachedCount())
			met.SetCachedFrameBlocks(frames.Len())
		}).ServeHTTP(w, r)
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	names := make([]string, 0, len(locations))
	for name := range locations {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		loc := locations[name]
		cfg, err := server.PackagerConfig(loc)
		if err != nil {
			log.Error("config error", "location", name, "error", err)
			os.Exit(1)
		}
		locLog := log.With("location", name)
		pkg := hls.NewPackager(cfg, playlist.NewBuilder(), mux.New, locLog)
		svc := server.NewService(repo, pkg, server.ServiceOptions{
			SecretKey:       loc.SecretKey,
			HTTPSHeaderName: loc.HTTPSHeaderName,
			SegmentsBaseURL: loc.SegmentsBaseURL,
		})
		h := server.NewHandler(svc, frames, locLog, met)
		r.Route("/"+name, h.Routes)

		log.Info("location configured",
			"location", name,
			"encryption_method", cfg.Encryption.String(),
			"segment_duration", loc.SegmentDuration.String(),
			"interleave_frames", loc.InterleaveFrames,
		)
	}

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"media_root", mediaRoot,
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
