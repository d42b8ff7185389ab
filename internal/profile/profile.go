package profile

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo".
	Mode string
	// Addr is the binding address for the server.
	Addr string
	// Port is the binding port for the server.
	Port int
	// Data is the directory to store data (sqlite database file lives here).
	Data string
	// Driver is the storage driver: sqlite, postgres.
	Driver string
	// DSN points to the storage location.
	DSN string
	// Version is the current version of the server.
	Version string

	// DefaultModel is the model identifier used when a request carries none.
	DefaultModel string
	// APIKey is the provider credential. It can also be supplied per request;
	// this value is the fallback for requests without one.
	APIKey string
	// ContextWindow is the per-request context token budget. The dispatcher
	// forwards roughly the last ContextWindow/200 messages of a conversation.
	ContextWindow int
	// RequestTimeout is the outbound provider request timeout in seconds.
	RequestTimeout int
	// VerifyBackendURL is the security-verification backend base URL.
	// When empty, the backend collaborator is disabled and all requests go
	// straight to the model vendors.
	VerifyBackendURL string
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.DefaultModel = getEnvOrDefault("SVLLM_DEFAULT_MODEL", "gpt-4o-2024-11-20")
	p.APIKey = getEnvOrDefault("SVLLM_API_KEY", "")
	p.ContextWindow = getEnvOrDefaultInt("SVLLM_CONTEXT_WINDOW", 4096)
	p.RequestTimeout = getEnvOrDefaultInt("SVLLM_REQUEST_TIMEOUT_SECONDS", 60)
	p.VerifyBackendURL = getEnvOrDefault("SVLLM_VERIFY_BACKEND_URL", "")
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies.
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "svllm")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					return errors.Wrapf(err, "failed to create data directory %s", p.Data)
				}
			}
		} else {
			p.Data = "/var/opt/svllm"
		}
	}

	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported storage driver %q", p.Driver)
	}

	if p.Mode == "prod" || p.Driver == "sqlite" {
		if p.Data == "" {
			p.Data = "."
		}
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			return err
		}
		p.Data = dataDir
		if p.Driver == "sqlite" && p.DSN == "" {
			dbFile := "svllm_" + p.Mode + ".db"
			p.DSN = filepath.Join(dataDir, dbFile)
		}
	}

	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("dsn is required for postgres driver")
	}

	if p.ContextWindow <= 0 {
		p.ContextWindow = 4096
	}
	if p.RequestTimeout <= 0 {
		p.RequestTimeout = 60
	}

	return nil
}
