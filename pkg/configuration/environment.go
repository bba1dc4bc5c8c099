package configuration

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/iota-uz/utils/fs"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/logging"
)

var defaultEnvFiles = []string{".env", ".env.local"}

var singleton = sync.OnceValue(func() *Configuration {
	c, err := New(defaultEnvFiles...)
	if err != nil {
		panic(err)
	}
	return c
})

// LoadEnv loads the env files that exist in the working directory. When none
// do, it retries relative to the nearest parent directory holding a go.mod.
func LoadEnv(envFiles []string) (int, error) {
	existing := existingFiles("", envFiles)
	if len(existing) == 0 {
		if root, ok := findModuleRoot(); ok {
			existing = existingFiles(root, envFiles)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

func existingFiles(dir string, envFiles []string) []string {
	out := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		path := file
		if dir != "" && !filepath.IsAbs(file) {
			path = filepath.Join(dir, file)
		}
		if fs.FileExists(path) {
			out = append(out, path)
		}
	}
	return out
}

func findModuleRoot() (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		if fs.FileExists(filepath.Join(dir, "go.mod")) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

type GraphOptions struct {
	BaseURL         string        `env:"GRAPH_BASE_URL" envDefault:"https://graph.microsoft.com"`
	RequestTimeout  time.Duration `env:"GRAPH_REQUEST_TIMEOUT" envDefault:"60s"`
	AppsPageSize    int           `env:"GRAPH_APPS_PAGE_SIZE" envDefault:"50"`
	AppsLimit       int           `env:"GRAPH_APPS_LIMIT" envDefault:"500"`
	RequestIDHeader string        `env:"REQUEST_ID_HEADER" envDefault:"client-request-id"`
}

func (g *GraphOptions) Validate() error {
	u, err := url.Parse(g.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid GRAPH_BASE_URL=%q", g.BaseURL)
	}
	if g.RequestTimeout < 0 {
		return fmt.Errorf("GRAPH_REQUEST_TIMEOUT must be non-negative, got %s", g.RequestTimeout)
	}
	if g.AppsPageSize <= 0 {
		return fmt.Errorf("GRAPH_APPS_PAGE_SIZE must be positive, got %d", g.AppsPageSize)
	}
	if g.AppsLimit < g.AppsPageSize {
		return fmt.Errorf("GRAPH_APPS_LIMIT (%d) must not be below GRAPH_APPS_PAGE_SIZE (%d)", g.AppsLimit, g.AppsPageSize)
	}
	return nil
}

type AuthOptions struct {
	AuthorityHost string   `env:"AUTH_AUTHORITY_HOST" envDefault:"https://login.microsoftonline.com"`
	ClientSecret  string   `env:"AUTH_CLIENT_SECRET"`
	Scopes        []string `env:"AUTH_SCOPES" envSeparator:"," envDefault:"https://graph.microsoft.com/User.Read,https://graph.microsoft.com/DeviceManagementApps.ReadWrite.All,https://graph.microsoft.com/DeviceManagementConfiguration.Read.All,https://graph.microsoft.com/Group.Read.All,offline_access"`
}

type OpenTelemetryOptions struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	ExporterURL string `env:"OTEL_EXPORTER_URL" envDefault:"localhost:4318"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"intune-bulk"`
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
}

type RateLimitOptions struct {
	Enabled   bool  `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	PerMinute int64 `env:"RATE_LIMIT_PER_MINUTE" envDefault:"120"`
}

type Configuration struct {
	Graph         GraphOptions
	Auth          AuthOptions
	OpenTelemetry OpenTelemetryOptions
	Prometheus    PrometheusOptions
	RateLimit     RateLimitOptions

	TenantsFile        string   `env:"TENANTS_FILE" envDefault:"tenants.yaml"`
	DefaultTenant      string   `env:"DEFAULT_TENANT"`
	ServerAddr         string   `env:"SERVER_ADDR" envDefault:"127.0.0.1:3200"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	LogLevel           string   `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat          string   `env:"LOG_FORMAT" envDefault:"text"`
	LogPath            string   `env:"LOG_PATH"`

	logFile *os.File
	logger  *logrus.Logger
}

// New builds an isolated configuration from the given env files and the process environment.
func New(envFiles ...string) (*Configuration, error) {
	c := &Configuration{}
	if err := c.load(envFiles); err != nil {
		c.Unload()
		return nil, err
	}
	return c, nil
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 && len(envFiles) > 0 {
		wd, _ := os.Getwd()
		log.Printf("no env files found in %s, using process environment", wd)
	}
	if err := env.Parse(c); err != nil {
		return err
	}
	if err := c.validate(); err != nil {
		return err
	}

	format := logging.Format(c.LogFormat)
	if c.LogPath == "" {
		c.logger = logging.ConsoleLogger(c.LogrusLogLevel(), format)
		return nil
	}
	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), format, c.LogPath)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger
	return nil
}

func (c *Configuration) validate() error {
	level := strings.ToLower(strings.TrimSpace(c.LogLevel))
	switch level {
	case "silent", "error", "warn", "info", "debug":
	default:
		return fmt.Errorf("invalid LOG_LEVEL=%q (expected silent|error|warn|info|debug)", c.LogLevel)
	}
	c.LogLevel = level

	switch logging.Format(c.LogFormat) {
	case logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("invalid LOG_FORMAT=%q (expected text|json)", c.LogFormat)
	}

	if err := c.Graph.Validate(); err != nil {
		return fmt.Errorf("graph configuration error: %w", err)
	}
	if c.RateLimit.Enabled && c.RateLimit.PerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", c.RateLimit.PerMinute)
	}
	if len(c.Auth.Scopes) == 0 {
		return fmt.Errorf("AUTH_SCOPES must not be empty")
	}
	return nil
}

// Unload closes the log file, if any.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
		c.logFile = nil
	}
}
