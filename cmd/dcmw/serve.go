package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/config"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/kafka"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/logger"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/middleware"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/models"
	"github.com/NKI-AI/dicom-warehouse/pkg/modality"
	"github.com/NKI-AI/dicom-warehouse/pkg/observability/metrics"
	"github.com/NKI-AI/dicom-warehouse/pkg/runs"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newServeCmd(cfg *config.Config, opts *globalOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the warehouse API and classify studies as units are imported",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cfg, opts.dbName)
			if err != nil {
				return err
			}
			defer a.Close()

			classifier := modality.NewClassifier(a.db, a.publisher)
			server := &http.Server{
				Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, port),
				Handler:      newRouter(cfg, a.db, a.runs, modality.NewHTTPHandler(a.repo, classifier)),
				ReadTimeout:  cfg.ReadTimeout,
				WriteTimeout: cfg.WriteTimeout,
				IdleTimeout:  120 * time.Second,
			}

			if cfg.EventSink == "kafka" {
				go consumeImports(ctx, cfg, classifier)
			}

			if cfg.RunRetention > 0 {
				go cleanupRuns(ctx, a.runs)
			}

			go func() {
				logger.Log.WithFields(logrus.Fields{
					"host":     cfg.ServerHost,
					"port":     port,
					"database": a.dbName,
				}).Info("Warehouse API started")

				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Log.WithError(err).Fatal("failed to start server")
				}
			}()

			<-ctx.Done()
			logger.Log.Info("Shutting down warehouse API...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Log.WithError(err).Error("server forced to shutdown")
			}
			logger.Log.Info("Warehouse API stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&port, "port", cfg.ServerPort, "Listen port")
	return cmd
}

func newRouter(cfg *config.Config, db *gorm.DB, ledger *runs.Service, modalities *modality.HTTPHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging,
		middleware.BodyLimit(cfg.MaxRequestBody),
		middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(r.Context())
		}
		if err != nil {
			http.Error(w, `{"status":"unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	runs.NewHTTPHandler(ledger).Register(api)
	modalities.Register(api)
	return router
}

// consumeImports classifies the studies of every imported unit. A consumer that gives up on an
// event is replaced after a pause; rejoining the group redelivers from the last committed offset.
func consumeImports(ctx context.Context, cfg *config.Config, classifier *modality.Classifier) {
	for {
		consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID)
		err := consumer.Consume(ctx, func(ctx context.Context, event models.Event) error {
			if event.Type != models.EventUnitImported {
				return nil
			}
			return classifier.ClassifyUIDs(ctx, event.StudyUIDs())
		})
		if err := consumer.Close(); err != nil {
			logger.Log.WithError(err).Warn("Failed to close event consumer")
		}
		if ctx.Err() != nil {
			return
		}
		logger.Log.WithError(err).Error("Event consumer stopped, rejoining group")

		select {
		case <-time.After(30 * time.Second):
		case <-ctx.Done():
			return
		}
	}
}

func cleanupRuns(ctx context.Context, ledger *runs.Service) {
	ticker := time.NewTicker(12 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := ledger.Cleanup(context.Background()); err != nil {
				logger.Log.WithError(err).Warn("run ledger cleanup failed")
			}
		case <-ctx.Done():
			return
		}
	}
}
