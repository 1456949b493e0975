package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mediloop/mediloop/internal/config"
	"github.com/mediloop/mediloop/internal/domain/caregap"
	"github.com/mediloop/mediloop/internal/domain/consultation"
	"github.com/mediloop/mediloop/internal/domain/followup"
	"github.com/mediloop/mediloop/internal/domain/identity"
	"github.com/mediloop/mediloop/internal/domain/intent"
	"github.com/mediloop/mediloop/internal/domain/pain"
	"github.com/mediloop/mediloop/internal/domain/risk"
	"github.com/mediloop/mediloop/internal/platform/db"
	"github.com/mediloop/mediloop/internal/platform/eventbus"
	"github.com/mediloop/mediloop/internal/platform/llm"
	"github.com/mediloop/mediloop/internal/platform/messaging"
	"github.com/mediloop/mediloop/internal/platform/middleware"
	"github.com/mediloop/mediloop/internal/platform/scheduler"
	"github.com/mediloop/mediloop/internal/platform/ws"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mediloop-server",
		Short: "Post-discharge follow-up and risk-escalation API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Risk model artifact missing or malformed is fatal at startup, never a
	// per-call failure.
	classifier, err := risk.Load(cfg.RiskModelPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load risk model")
	}
	logger.Info().Str("path", cfg.RiskModelPath).Msg("risk model loaded")

	bus, err := eventbus.NewRedisBus(cfg.RedisURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer bus.Close()

	runner := scheduler.NewRunner(scheduler.NewRedisJobStore(bus.Client()), logger)
	defer runner.Stop()

	var gen llm.TextGenerator = llm.NoopGenerator{}
	if cfg.GeminiAPIKey != "" {
		gen, err = llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel,
			time.Duration(cfg.LLMTimeoutSecs)*time.Second)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create text generation client")
		}
	} else {
		logger.Warn().Msg("GEMINI_API_KEY not set, text generation disabled (fallback replies only)")
	}

	var sender messaging.Sender = messaging.NewLogSender(logger)
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		sender = messaging.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom, logger)
	} else {
		logger.Warn().Msg("Twilio credentials not set, outbound messages will be logged only")
	}

	hub := ws.NewAlertHub(logger)

	// Repositories and services
	patientRepo := identity.NewRepo(pool)
	patientSvc := identity.NewService(patientRepo)

	consultRepo := consultation.NewRepo(pool)
	consultSvc := consultation.NewService(consultRepo, bus, logger)

	followupRepo := followup.NewRepo(pool)
	extractor := followup.NewExtractor(gen, logger)
	followupSvc := followup.NewService(
		followupRepo, patientSvc, consultSvc, extractor, classifier,
		gen, sender, bus, runner, hub, logger,
	)

	if n, err := followupSvc.RearmCheckins(ctx); err != nil {
		logger.Error().Err(err).Msg("re-arm persisted check-ins")
	} else if n > 0 {
		logger.Info().Int("count", n).Msg("re-armed check-ins from previous run")
	}

	painRepo := pain.NewRepo(pool)
	painSvc := pain.NewService(painRepo, bus, logger)

	gapScanner := caregap.NewScanner(patientSvc, consultSvc, followupRepo, gen, logger)

	intentRepo := intent.NewRepo(pool)
	intentEngine := intent.NewEngine(
		intentRepo, patientSvc, consultSvc, followupSvc,
		intent.NewClassifier(gen, logger),
		gen, sender, bus, gapScanner, cfg.PainScanLinkBase, logger,
	)

	// Event listeners
	if err := subscribeEvents(ctx, bus, logger, followupSvc, gapScanner, patientSvc, sender, hub, cfg.PainScanLinkBase); err != nil {
		logger.Fatal().Err(err).Msg("failed to subscribe to event channels")
	}

	// HTTP server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	apiV1 := e.Group("/api/v1")
	identity.NewHandler(patientSvc).RegisterRoutes(apiV1)
	consultation.NewHandler(consultSvc).RegisterRoutes(apiV1)
	followup.NewHandler(followupSvc).RegisterRoutes(apiV1)
	pain.NewHandler(painSvc).RegisterRoutes(apiV1)
	intent.NewHandler(intentEngine).RegisterRoutes(apiV1)

	wsGroup := e.Group("/ws")
	ws.NewHandler(hub).RegisterRoutes(wsGroup)

	// Graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown")
		}
	}()

	logger.Info().Str("port", cfg.Port).Msg("server starting")
	if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// subscribeEvents wires the cross-module event loops: discharge spawns a
// followup, module requests nudge patients over messaging, and scan requests
// run the care-gap rules.
func subscribeEvents(
	ctx context.Context,
	bus eventbus.Bus,
	logger zerolog.Logger,
	followupSvc *followup.Service,
	gapScanner *caregap.Scanner,
	patients *identity.Service,
	sender messaging.Sender,
	hub *ws.AlertHub,
	painScanLink string,
) error {
	err := bus.Subscribe(ctx, eventbus.ChannelPatientDischarged, func(ctx context.Context, payload []byte) {
		var ev eventbus.PatientDischarged
		if err := json.Unmarshal(payload, &ev); err != nil {
			logger.Error().Err(err).Msg("bad patient.discharged payload")
			return
		}
		patientID, err := uuid.Parse(ev.PatientID)
		if err != nil {
			logger.Error().Err(err).Str("patient_id", ev.PatientID).Msg("bad patient id in discharge event")
			return
		}
		consultationID, err := uuid.Parse(ev.ConsultationID)
		if err != nil {
			logger.Error().Err(err).Str("consultation_id", ev.ConsultationID).Msg("bad consultation id in discharge event")
			return
		}
		if _, err := followupSvc.Create(ctx, patientID, consultationID); err != nil {
			logger.Error().Err(err).Str("patient_id", ev.PatientID).Msg("create followup on discharge")
		}
	})
	if err != nil {
		return err
	}

	err = bus.Subscribe(ctx, eventbus.ChannelCareGapScanRequested, func(ctx context.Context, payload []byte) {
		var ev eventbus.ModuleRequest
		if err := json.Unmarshal(payload, &ev); err != nil {
			logger.Error().Err(err).Msg("bad caregap.scan_requested payload")
			return
		}
		patientID, err := uuid.Parse(ev.PatientID)
		if err != nil {
			return
		}
		if _, err := gapScanner.ScanPatient(ctx, patientID); err != nil {
			logger.Error().Err(err).Str("patient_id", ev.PatientID).Msg("care-gap scan")
		}
	})
	if err != nil {
		return err
	}

	err = bus.Subscribe(ctx, eventbus.ChannelRecoverBotRequested, func(ctx context.Context, payload []byte) {
		nudgePatient(ctx, logger, patients, sender, payload,
			"Thanks for reaching out! Reply here with how you are feeling and our recovery assistant will check your symptoms.")
	})
	if err != nil {
		return err
	}

	err = bus.Subscribe(ctx, eventbus.ChannelPainScanRequested, func(ctx context.Context, payload []byte) {
		var ev eventbus.ModuleRequest
		if err := json.Unmarshal(payload, &ev); err != nil {
			return
		}
		patientID, err := uuid.Parse(ev.PatientID)
		if err != nil {
			return
		}
		patient, err := patients.GetByID(ctx, patientID)
		if err != nil || !patient.HasPhone() {
			return
		}
		messaging.SendWithLink(ctx, sender, *patient.Phone,
			"Please complete a quick video-based pain assessment so our care team can review it.",
			painScanLink)
	})
	if err != nil {
		return err
	}

	return bus.Subscribe(ctx, eventbus.ChannelDoctorAlert, func(ctx context.Context, payload []byte) {
		var ev eventbus.DoctorAlert
		if err := json.Unmarshal(payload, &ev); err != nil {
			return
		}
		hub.Broadcast(ws.Alert{
			Type:      "doctor.alert",
			PatientID: ev.PatientID,
			Data:      payload,
		})
	})
}

func nudgePatient(
	ctx context.Context,
	logger zerolog.Logger,
	patients *identity.Service,
	sender messaging.Sender,
	payload []byte,
	message string,
) {
	var ev eventbus.ModuleRequest
	if err := json.Unmarshal(payload, &ev); err != nil {
		logger.Error().Err(err).Msg("bad module request payload")
		return
	}
	patientID, err := uuid.Parse(ev.PatientID)
	if err != nil {
		return
	}
	patient, err := patients.GetByID(ctx, patientID)
	if err != nil || !patient.HasPhone() {
		return
	}
	sender.Send(ctx, *patient.Phone, message)
}
