package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"runtime"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/leighmacdonald/tf-world/internal/config"
	"github.com/leighmacdonald/tf-world/internal/geoip"
	"github.com/leighmacdonald/tf-world/internal/steamapi"
	"github.com/leighmacdonald/tf-world/internal/store"
	"github.com/leighmacdonald/tf-world/internal/tf/events"
	"github.com/leighmacdonald/tf-world/internal/world"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

var (
	BuildVersion   = "master"
	BuildCommit    = "00000000"
	BuildDate      = time.Now().Format("2006-01-02T15:04:05Z")
	BuildGoVersion = runtime.Version()
	cfgFile        string
	rootCmd        = &cobra.Command{
		Use:   "tf-world",
		Short: "TF2 world state tracker",
		Long:  `tf-world - Tracks the live game world of a Team Fortress 2 session from console output`,
		RunE:  run,
	}

	versionCmd = &cobra.Command{
		Use:               "version",
		Short:             "Print version information",
		Long:              "Print detailed version information about tf-world",
		Args:              cobra.NoArgs,
		ValidArgsFunction: cobra.NoFileCompletions,
		Run:               version,
	}
)

var errApp = errors.New("application error")

func main() {
	configPath := config.Path(config.DefaultConfigName)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", configPath,
		"Config file path")
	rootCmd.AddCommand(versionCmd)

	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		slog.Error("Exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func version(_ *cobra.Command, _ []string) {
	fmt.Printf("tf-world - TF2 world state tracker\n\n") //nolint:forbidigo
	fmt.Printf("  Version: %s\n", BuildVersion)          //nolint:forbidigo
	fmt.Printf("  Commit:  %s\n", BuildCommit)           //nolint:forbidigo
	fmt.Printf("  Built:   %s\n", BuildDate)             //nolint:forbidigo
	fmt.Printf("  Runtime: %s\n\n", BuildGoVersion)      //nolint:forbidigo
}

func run(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Local overrides, mostly the api key during development.
	_ = godotenv.Load()

	// If PROFILE is set, it will be used as the output file path for the profiler.
	if len(os.Getenv("PROFILE")) > 0 {
		profileFile, err := os.Create(os.Getenv("PROFILE"))
		if err != nil {
			return errors.Join(err, errApp)
		}

		if errStart := pprof.StartCPUProfile(profileFile); errStart != nil {
			return errors.Join(errStart, errApp)
		}
		defer pprof.StopCPUProfile()
	}

	// Make sure our config & data home exists.
	if err := os.MkdirAll(path.Join(xdg.ConfigHome, config.ConfigDirName), 0o750); err != nil {
		return errors.Join(err, errApp)
	}

	configUpdates := make(chan config.Config)

	loader := config.NewLoader(configUpdates)
	userConfig, errConfig := loader.Read()
	if errConfig != nil {
		return errors.Join(errConfig, errApp)
	}

	level := slog.LevelInfo
	if userConfig.Debug {
		level = slog.LevelDebug
	}

	logFile, errLogger := config.LoggerInit(config.DefaultLogName, level)
	if errLogger != nil {
		return errors.Join(errLogger, errApp)
	}

	defer func(closer io.Closer) {
		if err := closer.Close(); err != nil {
			slog.Error("Failed to close log file", slog.String("error", err.Error()))
		}
	}(logFile)

	slog.Info("Starting tf-world", slog.String("version", BuildVersion),
		slog.String("commit", BuildCommit), slog.String("date", BuildDate),
		slog.String("go", runtime.Version()))

	// Setup the sqlite database system.
	database, errDB := store.Open(ctx, userConfig.DBPath, true)
	if errDB != nil {
		return errors.Join(errDB, errApp)
	}

	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("Error closing database", slog.String("error", err.Error()))
		}
	}()

	tracked := world.New(userConfig.SteamID, events.NewParser(), newAPIClient(userConfig))

	blackBox := world.NewBlackBox(store.New(database))
	tracked.AddConsoleLineListener(blackBox)
	tracked.AddEventListener(blackBox)

	if userConfig.GeoIPPath != "" {
		geoDB, errGeo := geoip.Open(userConfig.GeoIPPath)
		if errGeo != nil {
			return errors.Join(errGeo, errApp)
		}

		defer geoDB.Close()

		tracked.AddEventListener(geoip.NewTagger(geoDB))
	}

	return NewApp(userConfig, tracked, configUpdates).Start(ctx)
}

// newAPIClient builds a steam api client when a key is configured, nil
// otherwise. The world runs fine without one, just without enrichment.
func newAPIClient(userConfig config.Config) *steamapi.Client {
	key := userConfig.SteamAPIKey
	if envKey := os.Getenv("STEAM_API_KEY"); envKey != "" {
		key = envKey
	}

	if key == "" {
		return nil
	}

	httpClient := &http.Client{Timeout: config.DefaultHTTPTimeout}

	return steamapi.New(httpClient, key, userConfig.APIBaseURL)
}
