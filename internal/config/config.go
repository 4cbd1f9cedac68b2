package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/user"
	"path"
	"runtime"
	"time"

	"github.com/adrg/xdg"
	"github.com/leighmacdonald/steamid/v4/steamid"
)

var (
	errConfigWrite = errors.New("failed to write config file")
	errConfigRead  = errors.New("failed to read config file")
	errLoggerInit  = errors.New("failed to initialize logger")
)

const (
	ConfigDirName      = "tf-world"
	DefaultConfigName  = "tf-world"
	DefaultDBName      = "tf-world.db"
	DefaultLogName     = "tf-world.log"
	EnvPrefix          = "tfworld"
	DefaultHTTPTimeout = 15 * time.Second
)

type Config struct {
	SteamID       steamid.SteamID `mapstructure:"-"`
	SteamIDString string          `mapstructure:"steam_id"`
	// SteamAPIKey enables profile enrichment when set.
	// https://steamcommunity.com/dev/apikey
	SteamAPIKey string `mapstructure:"steam_api_key"`
	APIBaseURL  string `mapstructure:"api_base_url,omitempty"`
	// Address and Password configure the rcon connection to the local game
	// client, used to poll status output when console.log alone is not
	// enough.
	Address        string `mapstructure:"address"`
	Password       string `mapstructure:"password"`
	ConsoleLogPath string `mapstructure:"console_log_path"`
	DBPath         string `mapstructure:"db_path"`
	// GeoIPPath points at a maxmind format country database. Empty disables
	// geo annotation.
	GeoIPPath    string `mapstructure:"geoip_path"`
	UpdateFreqMs int    `mapstructure:"update_freq_ms,omitempty"`
	Debug        bool   `mapstructure:"debug"`
}

// UpdateFreq is the interval between world update ticks and rcon polls.
func (c Config) UpdateFreq() time.Duration {
	if c.UpdateFreqMs <= 0 {
		return 2 * time.Second
	}

	return time.Duration(c.UpdateFreqMs) * time.Millisecond
}

// Path generates a path pointing to the filename under this apps defined $XDG_CONFIG_HOME.
func Path(name string) string {
	fullPath, errFullPath := xdg.ConfigFile(path.Join(ConfigDirName, name))
	if errFullPath != nil {
		panic(errFullPath)
	}

	return fullPath
}

func defaultConsoleLogPath() string {
	switch runtime.GOOS {
	case "darwin":
		usr, err := user.Current()
		if err != nil {
			panic(err)
		}

		return fmt.Sprintf("/Users/%s/Library/Application Support/Steam/steamapps/common/Team Fortress 2/tf/console.log", usr.Name)
	case "linux":
		homedir, err := os.UserHomeDir()
		if err != nil {
			homedir = "/"
		}

		return path.Join(homedir, ".steam/steam/steamapps/common/Team Fortress 2/tf/console.log")
	case "windows":
		return "C:\\Program Files (x86)\\Steam\\steamapps\\common\\Team Fortress 2\\tf\\console.log"
	default:
		return ""
	}
}

// LoggerInit sets up the slog global handler to write to a log file.
func LoggerInit(logPath string, level slog.Level) (io.Closer, error) {
	logFile, errLogFile := os.Create(Path(logPath))
	if errLogFile != nil {
		return nil, errors.Join(errLogFile, errLoggerInit)
	}

	logger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{
		AddSource: false,
		Level:     level,
	}))

	slog.SetDefault(logger)

	return logFile, nil
}
