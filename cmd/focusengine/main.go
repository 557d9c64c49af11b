// Package main is the CLI entry point for focusengine.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/focus_engine/internal/domain"
	"github.com/eliteGoblin/focusd/focus_engine/internal/engine"
	"github.com/eliteGoblin/focusd/focus_engine/internal/infra"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "focusengine",
	Short: "Focus decision engine - alerts when attention leaves the whitelist",
	Long: `focusengine observes which application holds focus, compares it to a
user-defined whitelist, and drives a bounded, deduplicated alerting protocol.
A secondary rule engine evaluates custom triggers (switch frequency,
cumulative screen time, scheduled windows).

Window samples are pushed by an external OS bridge as JSON lines; alert and
enforcement requests are emitted as JSON lines for the display surface.`,
	Version: Version,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the engine in the foreground",
	Long: `Runs the decision engine until interrupted. Window samples are read as
JSON lines from stdin (or --feed), outbound events are written as JSON lines
to stdout.`,
	RunE: runEngine,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether an engine session is running",
	Long:  `Shows engine session liveness, last heartbeat and recent activity counters.`,
	RunE:  runStatus,
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show the current whitelist and rules",
	RunE:  runSettings,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run:   runVersion,
}

var (
	configPath string
	feedPath   string
	startOff   bool
	jsonOutput bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	runCmd.Flags().StringVar(&feedPath, "feed", "", "Read window samples from this file/FIFO instead of stdin")
	runCmd.Flags().BoolVar(&startOff, "disabled", false, "Start with focus monitoring disabled")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(versionCmd)
}

func runEngine(cmd *cobra.Command, args []string) error {
	config, err := infra.LoadAppConfig(configPath)
	if err != nil {
		return err
	}
	if err := config.EnsureDirs(); err != nil {
		return err
	}

	logger := createLogger(config.LogPath)
	defer func() { _ = logger.Sync() }()

	clock := infra.NewRealClock()
	settingsStore := infra.NewJSONSettingsStore(config.SettingsPath)
	registry := infra.NewFileRegistry(config.RegistryDir)

	// History persistence is best-effort: a broken database degrades the
	// engine, it never stops it.
	var history domain.HistoryStore
	if store, err := infra.NewGormHistoryStore(config.DatabasePath); err != nil {
		logger.Warn("history database unavailable, running without persistence", zap.Error(err))
	} else {
		history = store
		defer func() { _ = store.Close() }()
	}

	session := domain.Session{
		PID:       os.Getpid(),
		SessionID: uuid.NewString(),
		StartedAt: time.Now(),
	}

	eng := engine.New(engine.Config{
		RuleEvalInterval:       config.RuleEvalInterval,
		SettingsReloadInterval: config.SettingsReloadInterval,
		PersistInterval:        config.PersistInterval,
		HeartbeatInterval:      config.HeartbeatInterval,
	}, clock, settingsStore, history, registry, session, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	// Outbound events go to stdout as JSON lines for the display surface.
	subID, events := eng.Subscribe()
	defer eng.Unsubscribe(subID)
	go emitEvents(events)

	// Inbound samples come from stdin or a FIFO written by the OS bridge.
	feedReader := os.Stdin
	if feedPath != "" {
		f, err := os.Open(feedPath)
		if err != nil {
			return fmt.Errorf("failed to open sample feed: %w", err)
		}
		defer f.Close()
		feedReader = f
	}
	feed := infra.NewJSONLSampleFeed(feedReader, clock, logger)
	go func() {
		if err := feed.Run(ctx, eng.Samples()); err != nil && ctx.Err() == nil {
			logger.Warn("sample feed stopped", zap.Error(err))
		}
	}()

	if !startOff {
		eng.SetEnabled(true)
	}

	err = eng.Run(ctx)
	if clearErr := registry.Clear(); clearErr != nil {
		logger.Warn("failed to clear session registry", zap.Error(clearErr))
	}
	if err == context.Canceled {
		return nil
	}
	return err
}

// emitEvents encodes outbound events for the display surface / OS bridge.
func emitEvents(events <-chan domain.Event) {
	enc := json.NewEncoder(os.Stdout)
	for event := range events {
		line := map[string]interface{}{"type": string(event.Type)}
		switch event.Type {
		case domain.EventShowAlert:
			line["id"] = event.AlertID
			line["appName"] = event.AppName
			line["message"] = event.Message
			if event.MediaRef != "" {
				line["mediaRef"] = event.MediaRef
			}
			line["autoDismissMs"] = event.AutoDismiss.Milliseconds()
		case domain.EventClearAlert:
			line["id"] = event.AlertID
		case domain.EventApplyDimEffect:
			line["durationMs"] = event.DimDuration.Milliseconds()
		case domain.EventRequestBlockIndication:
			line["appName"] = event.AppName
		case domain.EventCounterUpdate:
			line["screenTimeMs"] = event.Snapshot.ScreenTimeMs
			line["currentApp"] = event.Snapshot.CurrentApp
			line["switches"] = event.Snapshot.SwitchCountWindow
		}
		_ = enc.Encode(line)
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	config, err := infra.LoadAppConfig(configPath)
	if err != nil {
		return err
	}

	pm := infra.NewProcessManager()
	registry := infra.NewFileRegistry(config.RegistryDir)

	fmt.Println("\n=== focusengine Status ===")

	entry, err := registry.Get()
	if err != nil || entry == nil {
		fmt.Println("Status: NOT RUNNING")
		fmt.Println("\nRun 'focusengine run' to start the engine.")
		return nil
	}

	if pm.IsRunning(entry.PID) {
		fmt.Println("Status: RUNNING")
	} else {
		fmt.Println("Status: NOT RUNNING (stale session)")
	}
	fmt.Printf("PID: %d\n", entry.PID)
	fmt.Printf("Session: %s\n", entry.SessionID)
	if entry.LastHeartbeat > 0 {
		lastBeat := time.Unix(entry.LastHeartbeat, 0)
		fmt.Printf("Last heartbeat: %s ago\n", time.Since(lastBeat).Round(time.Second))
	}

	if store, err := infra.NewGormHistoryStore(config.DatabasePath); err == nil {
		defer func() { _ = store.Close() }()

		if snap, err := store.LatestSnapshot(); err == nil && snap != nil {
			fmt.Printf("\nScreen time: %s\n", time.Duration(snap.ScreenTimeMs)*time.Millisecond)
			fmt.Printf("Current app (last persisted): %s\n", snap.CurrentApp)
		}
		if alerts, err := store.RecentAlerts(5); err == nil && len(alerts) > 0 {
			fmt.Println("\nRecent alerts:")
			for _, a := range alerts {
				state := "active"
				if a.Dismissed() {
					state = "dismissed"
				}
				fmt.Printf("  - [%s] %s (%s)\n", a.CreatedAt.Format("15:04:05"), a.AppName, state)
			}
		}
	}

	fmt.Println("==========================")
	return nil
}

func runSettings(cmd *cobra.Command, args []string) error {
	config, err := infra.LoadAppConfig(configPath)
	if err != nil {
		return err
	}

	store := infra.NewJSONSettingsStore(config.SettingsPath)
	settings, err := store.Load()
	if err != nil {
		fmt.Println("No settings found - engine runs in permissive mode.")
		return nil
	}

	fmt.Println("\n=== focusengine Settings ===")
	fmt.Println("Whitelist:")
	for _, entry := range settings.Whitelist {
		fmt.Printf("  - %s\n", entry)
	}
	if settings.DimInsteadOfBlock {
		fmt.Println("Enforcement: dim effect")
	} else {
		fmt.Println("Enforcement: block indication")
	}

	fmt.Printf("\nRules (%d):\n", len(settings.Rules))
	for _, rule := range settings.Rules {
		state := "disabled"
		if rule.Enabled {
			state = "enabled"
		}
		fmt.Printf("  [%s] %s (%s, threshold %d", state, rule.Name, rule.Trigger.Type, rule.Trigger.Threshold)
		if rule.Trigger.TimeframeMinutes > 0 {
			fmt.Printf(" in %dm", rule.Trigger.TimeframeMinutes)
		}
		fmt.Print(")")
		if rule.Schedule != nil {
			fmt.Printf(" %s-%s", rule.Schedule.StartTime, rule.Schedule.EndTime)
		}
		fmt.Println()
	}

	fmt.Println("============================")
	return nil
}

func createLogger(logPath string) *zap.Logger {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{logPath}
	config.ErrorOutputPaths = []string{logPath}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("focusengine %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
