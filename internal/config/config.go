package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/pvnkmnk/rentFalcon/pkg/utils"
)

// AdapterConfig holds the per-source overrides for one adapter. Zero-valued
// fields fall back to the Scraper defaults.
type AdapterConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	Delay      time.Duration `yaml:"delay"`
	MaxRetries int           `yaml:"max_retries"`
	Debug      bool          `yaml:"debug"`
	UseBrowser bool          `yaml:"use_browser"`
}

// Config represents the application configuration
type Config struct {
	Server struct {
		Port         int           `yaml:"port" default:"8080"`
		Host         string        `yaml:"host" default:"0.0.0.0"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"90s"`
		IdleTimeout  time.Duration `yaml:"idle_timeout" default:"60s"`
		CORSOrigins  []string      `yaml:"cors_origins"`
	} `yaml:"server"`

	Search struct {
		EnabledSources      []string      `yaml:"enabled_sources"`
		MaxParallel         int           `yaml:"max_parallel" default:"3"`
		GlobalTimeout       time.Duration `yaml:"global_timeout" default:"60s"`
		DedupEnabled        bool          `yaml:"dedup_enabled" default:"true"`
		SimilarityThreshold float64       `yaml:"similarity_threshold" default:"0.85"`
	} `yaml:"search"`

	Scraper struct {
		UserAgent      string        `yaml:"user_agent"`
		RequestTimeout time.Duration `yaml:"request_timeout" default:"30s"`
		Delay          time.Duration `yaml:"delay" default:"2s"`
		MaxRetries     int           `yaml:"max_retries" default:"3"`
		Debug          bool          `yaml:"debug" default:"false"`
		DebugDir       string        `yaml:"debug_dir" default:"debug_output"`
		UseBrowser     bool          `yaml:"use_browser" default:"true"`
	} `yaml:"scraper"`

	// Adapters carries per-source overrides of the Scraper defaults, keyed
	// by adapter identifier.
	Adapters map[string]AdapterConfig `yaml:"adapters"`

	Cache struct {
		Enabled bool          `yaml:"enabled" default:"true"`
		TTL     time.Duration `yaml:"ttl" default:"5m"`
	} `yaml:"cache"`

	Redis struct {
		URL      string        `yaml:"url" default:"redis://localhost:6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db" default:"0"`
		Timeout  time.Duration `yaml:"timeout" default:"5s"`
	} `yaml:"redis"`

	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logging"`
}

// expandEnvVars expands environment variables in a string using ${VAR} or $VAR syntax
func expandEnvVars(s string) string {
	// Expand ${VAR} syntax
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	s = re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1] // Remove ${ and }
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if env var not found
	})

	// Expand $VAR syntax (but avoid replacing ${VAR} that was already processed)
	re2 := regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
	s = re2.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[1:] // Remove $
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if env var not found
	})

	return s
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	_ = godotenv.Load()

	config := &Config{}

	// Set defaults
	config.Server.Port = 8080
	config.Server.Host = "0.0.0.0"
	config.Server.ReadTimeout = 30 * time.Second
	config.Server.WriteTimeout = 90 * time.Second
	config.Server.IdleTimeout = 60 * time.Second
	config.Server.CORSOrigins = []string{"*"}

	config.Search.EnabledSources = []string{"kijiji", "rentals_ca", "realtor_ca"}
	config.Search.MaxParallel = 3
	config.Search.GlobalTimeout = 60 * time.Second
	config.Search.DedupEnabled = true
	config.Search.SimilarityThreshold = 0.85

	config.Scraper.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	config.Scraper.RequestTimeout = 30 * time.Second
	config.Scraper.Delay = 2 * time.Second
	config.Scraper.MaxRetries = 3
	config.Scraper.DebugDir = "debug_output"
	config.Scraper.UseBrowser = true

	config.Cache.Enabled = true
	config.Cache.TTL = 5 * time.Minute

	config.Redis.URL = "redis://localhost:6379"
	config.Redis.DB = 0
	config.Redis.Timeout = 5 * time.Second

	config.Logging.Level = "info"
	config.Logging.Format = "json"
	config.Logging.Output = "stdout"

	// Load from YAML file if it exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			// Expand environment variables in the YAML content
			yamlContent := expandEnvVars(string(data))

			if err := yaml.Unmarshal([]byte(yamlContent), config); err != nil {
				return nil, err
			}
		}
	}

	// Override with environment variables
	config.loadFromEnv()

	return config, nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if host := os.Getenv("HOST"); host != "" {
		c.Server.Host = host
	}

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		parts := strings.Split(origins, ",")
		allowed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				allowed = append(allowed, p)
			}
		}
		c.Server.CORSOrigins = allowed
	}

	if sources := os.Getenv("SEARCH_ENABLED_SOURCES"); sources != "" {
		parts := strings.Split(sources, ",")
		enabled := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				enabled = append(enabled, p)
			}
		}
		c.Search.EnabledSources = enabled
	}

	if maxParallel := os.Getenv("SEARCH_MAX_PARALLEL"); maxParallel != "" {
		if n, err := strconv.Atoi(maxParallel); err == nil {
			c.Search.MaxParallel = n
		}
	}

	if timeout := os.Getenv("SEARCH_GLOBAL_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			c.Search.GlobalTimeout = d
		}
	}

	if dedup := os.Getenv("SEARCH_DEDUP_ENABLED"); dedup != "" {
		c.Search.DedupEnabled = dedup == "true" || dedup == "1"
	}

	if threshold := os.Getenv("SEARCH_SIMILARITY_THRESHOLD"); threshold != "" {
		if f, err := strconv.ParseFloat(threshold, 64); err == nil {
			c.Search.SimilarityThreshold = f
		}
	}

	if userAgent := os.Getenv("SCRAPER_USER_AGENT"); userAgent != "" {
		c.Scraper.UserAgent = userAgent
	}

	if debug := os.Getenv("SCRAPER_DEBUG"); debug != "" {
		c.Scraper.Debug = debug == "true" || debug == "1"
	}

	if useBrowser := os.Getenv("SCRAPER_USE_BROWSER"); useBrowser != "" {
		c.Scraper.UseBrowser = useBrowser == "true" || useBrowser == "1"
	}

	if cacheEnabled := os.Getenv("CACHE_ENABLED"); cacheEnabled != "" {
		c.Cache.Enabled = cacheEnabled == "true" || cacheEnabled == "1"
	}

	if cacheTTL := os.Getenv("CACHE_TTL"); cacheTTL != "" {
		if d, err := time.ParseDuration(cacheTTL); err == nil {
			c.Cache.TTL = d
		}
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.URL = redisURL
	}

	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		c.Redis.Password = redisPassword
	}

	if redisDB := os.Getenv("REDIS_DB"); redisDB != "" {
		if db, err := strconv.Atoi(redisDB); err == nil {
			c.Redis.DB = db
		}
	}

	if redisTimeout := os.Getenv("REDIS_TIMEOUT"); redisTimeout != "" {
		if timeout, err := time.ParseDuration(redisTimeout); err == nil {
			c.Redis.Timeout = timeout
		}
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		c.Logging.Format = logFormat
	}
}

// Validate checks the search settings a coordinator cannot run without.
func (c *Config) Validate() error {
	if len(c.Search.EnabledSources) == 0 {
		return fmt.Errorf("search.enabled_sources must not be empty")
	}
	// The dispatcher keys its bookkeeping by source name; a repeated name
	// would leave one of the two tasks unobserved.
	for i, name := range c.Search.EnabledSources {
		if utils.Contains(c.Search.EnabledSources[:i], name) {
			return fmt.Errorf("search.enabled_sources lists %q more than once", name)
		}
	}
	if c.Search.MaxParallel < 1 {
		return fmt.Errorf("search.max_parallel must be at least 1, got %d", c.Search.MaxParallel)
	}
	if c.Search.GlobalTimeout <= 0 {
		return fmt.Errorf("search.global_timeout must be positive, got %s", c.Search.GlobalTimeout)
	}
	if c.Search.SimilarityThreshold < 0 || c.Search.SimilarityThreshold > 1 {
		return fmt.Errorf("search.similarity_threshold must be in [0,1], got %g", c.Search.SimilarityThreshold)
	}
	return nil
}

// AdapterFor returns the effective settings for one adapter: the Scraper
// defaults with any per-adapter overrides applied.
func (c *Config) AdapterFor(name string) AdapterConfig {
	effective := AdapterConfig{
		Timeout:    c.Scraper.RequestTimeout,
		Delay:      c.Scraper.Delay,
		MaxRetries: c.Scraper.MaxRetries,
		Debug:      c.Scraper.Debug,
		UseBrowser: c.Scraper.UseBrowser,
	}

	override, ok := c.Adapters[name]
	if !ok {
		return effective
	}
	if override.Timeout > 0 {
		effective.Timeout = override.Timeout
	}
	if override.Delay > 0 {
		effective.Delay = override.Delay
	}
	if override.MaxRetries > 0 {
		effective.MaxRetries = override.MaxRetries
	}
	if override.Debug {
		effective.Debug = true
	}
	if override.UseBrowser {
		effective.UseBrowser = true
	}
	return effective
}
