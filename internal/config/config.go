// Package config reads the service and harness settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/albepe01/NetworkSecurity-Project/internal/detector"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	WAF         WAFConfig
	ML          MLConfig
	Decision    DecisionConfig
	Audit       AuditConfig
	Auth        AuthConfig
	TLS         TLSConfig
	RateLimit   RateLimitConfig
	Evaluation  EvaluationConfig
	CatalogPath string
}

type ServerConfig struct {
	Port            string
	Environment     string
	DecideEndpoint  string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// DatabaseConfig is shared by the mongo audit sink and the mongo rule source.
type DatabaseConfig struct {
	MongoURI string
	MongoDB  string
}

// WAFConfig selects between a remote ModSecurity endpoint and the local rule engine.
type WAFConfig struct {
	URL              string
	ParanoiaLevel    int
	AnomalyThreshold int
	RulesSource      string
	RulesFile        string
}

type MLConfig struct {
	ModelServerURL    string
	FeatureURL        string
	FeatureDim        int
	ExtractorParanoia int
	WarmCache         bool
}

type DecisionConfig struct {
	Policy          detector.Policy
	DetectorTimeout time.Duration
}

type AuditConfig struct {
	FilePath     string
	FileFormat   string
	QueueSize    int
	WriteTimeout time.Duration
	Mongo        bool
	SQLDialect   string
	SQLDSN       string
	SQLTable     string
	KafkaBrokers string
	KafkaTopic   string
	Memory       bool
	MemoryLimit  int
}

type AuthConfig struct {
	// JWTSecret enables bearer authentication on the decision API when set.
	JWTSecret string
}

type TLSConfig struct {
	Hosts    []string
	CacheDir string
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

type EvaluationConfig struct {
	ResultsDir     string
	ServiceURL     string
	Workers        int
	PayloadTimeout time.Duration
	RatePerSecond  float64
	Seed           uint64
	Adversarial    bool
}

const (
	RulesBuiltin = "builtin"
	RulesFile    = "file"
	RulesMongo   = "mongo"
)

// Load reads the environment. Malformed numeric or duration values are
// reported rather than silently replaced by their defaults.
func Load() (*Config, error) {
	p := &parser{}
	appEnv := getEnv("APP_ENV", "development")

	origins := parseList(getEnv("FRONTEND_URL", "http://localhost:8080"))
	if appEnv == "development" {
		origins = append(origins, "http://localhost:3000")
	}

	policy, err := detector.ParsePolicy(getEnv("DECISION_POLICY", string(detector.PolicyAny)))
	if err != nil {
		p.errs = append(p.errs, err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Environment:     appEnv,
			DecideEndpoint:  getEnv("DECIDE_ENDPOINT", "/api/decide"),
			AllowedOrigins:  origins,
			ShutdownTimeout: p.getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			MongoURI: getEnv("MONGO_URI", ""),
			MongoDB:  getEnv("MONGO_DB", "waf"),
		},
		WAF: WAFConfig{
			URL:              getEnv("WAF_URL", ""),
			ParanoiaLevel:    p.getInt("WAF_PARANOIA_LEVEL", 1),
			AnomalyThreshold: p.getInt("WAF_ANOMALY_THRESHOLD", detector.DefaultAnomalyThreshold),
			RulesSource:      getEnv("WAF_RULES_SOURCE", RulesBuiltin),
			RulesFile:        getEnv("WAF_RULES_FILE", "configs/rules.yaml"),
		},
		ML: MLConfig{
			ModelServerURL:    getEnv("ML_URL", ""),
			FeatureURL:        getEnv("FEATURE_URL", ""),
			FeatureDim:        p.getInt("FEATURE_DIM", 0),
			ExtractorParanoia: p.getInt("EXTRACTOR_PARANOIA_LEVEL", 4),
			WarmCache:         p.getBool("ML_WARM_CACHE", false),
		},
		Decision: DecisionConfig{
			Policy:          policy,
			DetectorTimeout: p.getDuration("DETECTOR_TIMEOUT", 5*time.Second),
		},
		Audit: AuditConfig{
			FilePath:     getEnv("AUDIT_FILE", "audit_log.txt"),
			FileFormat:   getEnv("AUDIT_FORMAT", "text"),
			QueueSize:    p.getInt("AUDIT_QUEUE_SIZE", 1024),
			WriteTimeout: p.getDuration("AUDIT_WRITE_TIMEOUT", 5*time.Second),
			Mongo:        p.getBool("AUDIT_MONGO", true),
			SQLDialect:   getEnv("AUDIT_SQL_DIALECT", "mysql"),
			SQLDSN:       getEnv("AUDIT_SQL_DSN", ""),
			SQLTable:     getEnv("AUDIT_SQL_TABLE", "decisions"),
			KafkaBrokers: getEnv("AUDIT_KAFKA_BROKERS", ""),
			KafkaTopic:   getEnv("AUDIT_KAFKA_TOPIC", "waf-decisions"),
			Memory:       p.getBool("AUDIT_MEMORY", true),
			MemoryLimit:  p.getInt("AUDIT_MEMORY_LIMIT", 1000),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		TLS: TLSConfig{
			Hosts:    parseList(getEnv("TLS_HOSTS", "")),
			CacheDir: getEnv("TLS_CACHE_DIR", "certs"),
		},
		RateLimit: RateLimitConfig{
			Requests: p.getInt("RATE_LIMIT_REQUESTS", 600),
			Window:   p.getDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Evaluation: EvaluationConfig{
			ResultsDir:     getEnv("RESULTS_DIR", "results"),
			ServiceURL:     getEnv("DECISION_SERVICE_URL", ""),
			Workers:        p.getInt("EVAL_WORKERS", 4),
			PayloadTimeout: p.getDuration("EVAL_PAYLOAD_TIMEOUT", 10*time.Second),
			RatePerSecond:  p.getFloat("EVAL_RATE", 0),
			Seed:           uint64(p.getInt("EVAL_SEED", 42)),
			Adversarial:    p.getBool("EVAL_ADVERSARIAL", false),
		},
		CatalogPath: getEnv("CATALOG_PATH", "configs/catalog.yaml"),
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	if c.WAF.ParanoiaLevel < 1 || c.WAF.ParanoiaLevel > 4 {
		errs = append(errs, fmt.Errorf("WAF_PARANOIA_LEVEL must be 1-4, got %d", c.WAF.ParanoiaLevel))
	}
	if c.ML.ExtractorParanoia < 1 || c.ML.ExtractorParanoia > 4 {
		errs = append(errs, fmt.Errorf("EXTRACTOR_PARANOIA_LEVEL must be 1-4, got %d", c.ML.ExtractorParanoia))
	}
	if c.Decision.DetectorTimeout <= 0 {
		errs = append(errs, errors.New("DETECTOR_TIMEOUT must be positive"))
	}
	switch c.WAF.RulesSource {
	case RulesBuiltin, RulesFile:
	case RulesMongo:
		if c.Database.MongoURI == "" {
			errs = append(errs, errors.New("WAF_RULES_SOURCE=mongo requires MONGO_URI"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown WAF_RULES_SOURCE %q", c.WAF.RulesSource))
	}
	if c.ML.FeatureURL != "" && c.ML.FeatureDim <= 0 {
		errs = append(errs, errors.New("FEATURE_URL requires a positive FEATURE_DIM"))
	}
	if !strings.HasPrefix(c.Server.DecideEndpoint, "/") {
		errs = append(errs, fmt.Errorf("DECIDE_ENDPOINT must start with /, got %q", c.Server.DecideEndpoint))
	}
	if c.Audit.Memory && c.Audit.MemoryLimit < 1 {
		errs = append(errs, errors.New("AUDIT_MEMORY_LIMIT must be at least 1"))
	}
	if c.Evaluation.Workers < 1 {
		errs = append(errs, errors.New("EVAL_WORKERS must be at least 1"))
	}
	return errors.Join(errs...)
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

type parser struct {
	errs []error
}

func (p *parser) getInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func (p *parser) getFloat(key string, fallback float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return f
}

func (p *parser) getBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}

func (p *parser) getDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}

// parseList splits a comma-separated list, dropping blanks.
func parseList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
