package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rdevine16/or-flow-app-sub009/internal/config"
	"github.com/rdevine16/or-flow-app-sub009/internal/domain/cases"
	"github.com/rdevine16/or-flow-app-sub009/internal/domain/dataquality"
	"github.com/rdevine16/or-flow-app-sub009/internal/domain/insights"
	"github.com/rdevine16/or-flow-app-sub009/internal/platform/analytics"
	"github.com/rdevine16/or-flow-app-sub009/internal/platform/db"
	"github.com/rdevine16/or-flow-app-sub009/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "orflow-server",
		Short: "OR Flow analytics API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(detectStaleCmd())
	rootCmd.AddCommand(issuesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the analytics API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// loadAndConnect is the shared CLI bootstrap: config plus a pgx pool the
// caller must Close.
func loadAndConnect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			to, _ := cmd.Flags().GetInt("to")

			ctx := context.Background()
			_, pool, err := loadAndConnect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).UpTo(ctx, to)
			if err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}

			fmt.Printf("Applied %d migration(s).\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	upCmd.Flags().Int("to", 0, "Stop after this version (0 applies everything)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			_, pool, err := loadAndConnect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("migration status: %w", err)
			}

			tw := tablewriter.NewWriter(os.Stdout)
			tw.SetHeader([]string{"VERSION", "NAME", "STATUS", "APPLIED AT"})
			tw.SetBorder(true)
			tw.SetRowLine(false)
			tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			tw.SetAlignment(tablewriter.ALIGN_LEFT)
			tw.SetAutoWrapText(false)

			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				tw.Append([]string{strconv.Itoa(s.Version), s.Name, status, appliedAt})
			}
			tw.Render()
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

// detectStaleCmd runs one detection sweep and prints the report. It exists so
// the nightly job can run from cron without keeping an HTTP server up.
func detectStaleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect-stale",
		Short: "Run the stale-case detection sweep once and report",
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

			ctx := context.Background()
			cfg, pool, err := loadAndConnect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := cfg.Validate(); err != nil {
				return err
			}

			detector := dataquality.NewDetector(
				dataquality.NewDetectionStorePG(pool),
				dataquality.NewIssueRepoPG(pool),
				dataquality.NewTypeRepoPG(pool),
				detectorConfig(cfg),
				logger,
			)

			report, err := detector.Run(ctx)
			if err != nil {
				return fmt.Errorf("detection failed: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			printDetectionReport(report)
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print the full report as JSON instead of a table")
	return cmd
}

func issuesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issues",
		Short: "Inspect detected metric issues",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List metric issues for a facility",
		RunE: func(cmd *cobra.Command, args []string) error {
			facility, _ := cmd.Flags().GetString("facility")
			unresolved, _ := cmd.Flags().GetBool("unresolved")
			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")
			csvPath, _ := cmd.Flags().GetString("csv")

			if facility == "" {
				return fmt.Errorf("--facility is required")
			}
			facilityID, err := uuid.Parse(facility)
			if err != nil {
				return fmt.Errorf("invalid facility id: %s", facility)
			}

			ctx := context.Background()
			_, pool, err := loadAndConnect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := dataquality.NewService(dataquality.NewIssueRepoPG(pool), dataquality.NewTypeRepoPG(pool))
			issues, total, err := svc.ListIssues(ctx, facilityID, unresolved, limit, offset)
			if err != nil {
				return fmt.Errorf("list issues: %w", err)
			}

			if csvPath != "" {
				if err := writeIssuesCSV(csvPath, issues); err != nil {
					return err
				}
				fmt.Printf("Wrote %d issue(s) to %s\n", len(issues), csvPath)
				return nil
			}

			printIssuesTable(issues)
			fmt.Printf("\n%d of %d issue(s)\n", len(issues), total)
			return nil
		},
	}
	listCmd.Flags().String("facility", "", "Facility ID (required)")
	listCmd.Flags().Bool("unresolved", false, "Only show unresolved issues")
	listCmd.Flags().Int("limit", 50, "Maximum issues to return")
	listCmd.Flags().Int("offset", 0, "Offset into the result set")
	listCmd.Flags().String("csv", "", "Write results to a CSV file instead of the terminal")
	cmd.AddCommand(listCmd)

	return cmd
}

func printDetectionReport(report *dataquality.DetectionReport) {
	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"FACILITY", "CHECKED", "FOUND", "EXPIRED", "STALE", "CREATED", "ERRORS"})
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)

	for _, r := range report.Results {
		tw.Append([]string{
			r.FacilityName,
			strconv.Itoa(r.CasesChecked),
			strconv.Itoa(r.IssuesFound),
			strconv.Itoa(r.IssuesExpired),
			strconv.Itoa(r.StaleCasesDetected),
			strconv.Itoa(r.StaleCasesCreated),
			strconv.Itoa(len(r.Errors)),
		})
	}
	tw.Render()

	s := report.Summary
	fmt.Printf("\n%d facilities, %d cases checked, %d issues found, %d expired, %d stale detected, %d created\n",
		s.FacilitiesProcessed, s.TotalCasesChecked, s.TotalIssuesFound,
		s.TotalIssuesExpired, s.TotalStaleCasesDetected, s.TotalStaleCasesCreated)

	for _, r := range report.Results {
		for _, e := range r.Errors {
			fmt.Fprintf(os.Stderr, "%s: %s\n", r.FacilityName, e)
		}
	}
}

func printIssuesTable(issues []*dataquality.MetricIssue) {
	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"ID", "TYPE", "CASE", "VALUE", "EXPECTED", "DETECTED", "STATUS"})
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)

	for _, issue := range issues {
		status := "open"
		if issue.Resolved() {
			status = "resolved"
		}
		tw.Append([]string{
			issue.ID.String(),
			issue.IssueType,
			issue.CaseID.String(),
			formatFloat(issue.DetectedValue),
			formatRange(issue.ExpectedMin, issue.ExpectedMax),
			issue.DetectedAt.Format("2006-01-02 15:04"),
			status,
		})
	}
	tw.Render()
}

func writeIssuesCSV(path string, issues []*dataquality.MetricIssue) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	header := []string{"id", "facility_id", "case_id", "issue_type", "detected_value",
		"expected_min", "expected_max", "detected_at", "expires_at", "resolved_at", "resolved_by"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("issues csv: write header: %w", err)
	}

	for _, issue := range issues {
		record := []string{
			issue.ID.String(),
			issue.FacilityID.String(),
			issue.CaseID.String(),
			issue.IssueType,
			formatFloat(issue.DetectedValue),
			formatFloat(issue.ExpectedMin),
			formatFloat(issue.ExpectedMax),
			issue.DetectedAt.Format(time.RFC3339),
			formatTime(issue.ExpiresAt),
			formatTime(issue.ResolvedAt),
			stringOrEmpty(issue.ResolvedBy),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("issues csv: write record: %w", err)
		}
	}
	return nil
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatRange(min, max *float64) string {
	if min == nil && max == nil {
		return ""
	}
	return formatFloat(min) + ".." + formatFloat(max)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func detectorConfig(cfg *config.Config) dataquality.DetectorConfig {
	return dataquality.DetectorConfig{
		StaleInProgressAfter: time.Duration(cfg.StaleInProgressHours) * time.Hour,
		AbandonedAfter:       time.Duration(cfg.AbandonedScheduledDays) * 24 * time.Hour,
		NoActivityAfter:      time.Duration(cfg.NoActivityHours) * time.Hour,
		IssueExpiry:          time.Duration(cfg.IssueExpiryDays) * 24 * time.Hour,
		Concurrency:          cfg.DetectConcurrency,
	}
}

func insightsConfig(cfg *config.Config) insights.Config {
	return insights.Config{
		ORHourlyRate:         cfg.ORHourlyRate,
		RevenuePerORMinute:   cfg.RevenuePerORMinute,
		RevenuePerCase:       cfg.RevenuePerCase,
		OperatingDaysPerYear: cfg.OperatingDaysPerYear,
		MaxInsights:          cfg.MaxInsights,
		MinSeverityToShow:    insights.Severity(cfg.MinSeverity),
	}
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load failed")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer pool.Close()
	logger.Info().Msg("database connected")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M", "10M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// API group
	apiV1 := e.Group("/api/v1")

	// Usage tracking first so rate-limited requests are counted too.
	tracker := analytics.NewTracker(0)
	apiV1.Use(analytics.Middleware(tracker))

	// Per-client rate limiting
	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RPS:   cfg.RateLimitRPS,
		Burst: cfg.RateLimitBurst,
	})
	go limiter.StartCleanup(ctx, 10*time.Minute, time.Hour)
	apiV1.Use(limiter.Middleware())
	apiV1.Use(middleware.RequestTimeout(30 * time.Second))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Domain routes

	// Insights domain
	insightsHandler := insights.NewHandler(insightsConfig(cfg))
	insightsHandler.RegisterRoutes(apiV1)

	// Cases domain
	facilityRepo := cases.NewFacilityRepoPG(pool)
	caseRepo := cases.NewCaseRepoPG(pool)
	statusRepo := cases.NewStatusRepoPG(pool)
	milestoneRepo := cases.NewMilestoneRepoPG(pool)
	casesSvc := cases.NewService(facilityRepo, caseRepo, statusRepo, milestoneRepo)
	casesHandler := cases.NewHandler(casesSvc)
	casesHandler.RegisterRoutes(apiV1)

	// Data quality domain
	issueRepo := dataquality.NewIssueRepoPG(pool)
	typeRepo := dataquality.NewTypeRepoPG(pool)
	detectionStore := dataquality.NewDetectionStorePG(pool)
	dqSvc := dataquality.NewService(issueRepo, typeRepo)
	detector := dataquality.NewDetector(detectionStore, issueRepo, typeRepo, detectorConfig(cfg), logger)
	dqHandler := dataquality.NewHandler(dqSvc, detector)
	dqHandler.RegisterRoutes(apiV1)

	// Usage endpoints
	analytics.NewHandler(tracker).RegisterRoutes(apiV1)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
