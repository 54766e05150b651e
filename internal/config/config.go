package config

import (
	"fmt"
	"hos-dispatch-service/internal/domain"
	"hos-dispatch-service/internal/monitor"
	"hos-dispatch-service/internal/services"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Get returns the environment value for key, or fallback when unset or empty.
func Get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func GetInt(key string, fallback int) (int, error) {
	v := Get(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func GetFloat(key string, fallback float64) (float64, error) {
	v := Get(key, "")
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return f, nil
}

func GetDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := Get(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func GetBool(key string, fallback bool) (bool, error) {
	v := Get(key, "")
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

// GetList splits a comma-separated value, dropping empty entries.
func GetList(key string) []string {
	var out []string
	for _, p := range strings.Split(Get(key, ""), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Config is the process configuration. Empty connection strings select the
// in-memory adapter for that concern.
type Config struct {
	Port        string
	DatabaseURL string
	RedisAddr   string

	KafkaBrokers []string
	KafkaTopic   string

	ORSAPIKey string

	TelemetryURL        string
	TelemetryRPS        float64
	TelemetryStaleAfter time.Duration

	Loop           monitor.LoopConfig
	MonitorEnabled bool
	PolicyPath     string
	LogLevel       string

	Policy Policy
}

// Load reads the environment and, when POLICY_PATH is set, the dispatcher policy file.
func Load() (Config, error) {
	cfg := Config{
		Port:         Get("PORT", "8080"),
		DatabaseURL:  Get("DATABASE_URL", ""),
		RedisAddr:    Get("REDIS_ADDR", ""),
		KafkaBrokers: GetList("KAFKA_BROKERS"),
		KafkaTopic:   Get("KAFKA_TOPIC", "hos.trigger-events"),
		ORSAPIKey:    Get("ORS_API_KEY", ""),
		TelemetryURL: Get("TELEMETRY_URL", ""),
		PolicyPath:   Get("POLICY_PATH", ""),
		LogLevel:     Get("LOG_LEVEL", "info"),
		Loop:         monitor.DefaultLoopConfig(),
	}

	var err error
	if cfg.Loop.Period, err = GetDuration("MONITOR_PERIOD", cfg.Loop.Period); err != nil {
		return Config{}, err
	}
	if cfg.Loop.FeedTimeout, err = GetDuration("FEED_TIMEOUT", cfg.Loop.FeedTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Loop.Workers, err = GetInt("MONITOR_WORKERS", cfg.Loop.Workers); err != nil {
		return Config{}, err
	}
	if cfg.MonitorEnabled, err = GetBool("MONITOR_ENABLED", true); err != nil {
		return Config{}, err
	}
	if cfg.TelemetryRPS, err = GetFloat("TELEMETRY_RPS", 20); err != nil {
		return Config{}, err
	}
	if cfg.TelemetryStaleAfter, err = GetDuration("TELEMETRY_STALE_AFTER", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.Loop.Period <= 0 || cfg.Loop.FeedTimeout <= 0 || cfg.Loop.Workers <= 0 {
		return Config{}, fmt.Errorf("config: MONITOR_PERIOD, FEED_TIMEOUT and MONITOR_WORKERS must be positive")
	}

	cfg.Policy = DefaultPolicy()
	if cfg.PolicyPath != "" {
		if cfg.Policy, err = LoadPolicy(cfg.PolicyPath); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// SplitRestSettings parameterises services.SplitRestPolicy.
type SplitRestSettings struct {
	LongHours     float64 `yaml:"long_hours"`
	ShortHours    float64 `yaml:"short_hours"`
	CombinedHours float64 `yaml:"combined_hours"`
}

// Policy is the dispatcher policy file. Fields left out keep their defaults.
type Policy struct {
	Planner    services.PlannerConfig  `yaml:"planner"`
	SplitRest  SplitRestSettings       `yaml:"split_rest"`
	RestPolicy domain.RestPolicy       `yaml:"rest_policy"`
	Triggers   monitor.TriggerSettings `yaml:"triggers"`
}

func DefaultPolicy() Policy {
	return Policy{
		Planner:    services.DefaultPlannerConfig(),
		SplitRest:  SplitRestSettings{LongHours: 7, ShortHours: 2, CombinedHours: 10},
		RestPolicy: domain.RestPolicy{AllowDockRest: true},
		Triggers:   monitor.DefaultTriggerSettings(),
	}
}

func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("load policy: read %q: %w", path, err)
	}
	p, err := ParsePolicy(data)
	if err != nil {
		return Policy{}, fmt.Errorf("load policy %q: %w", path, err)
	}
	return p, nil
}

// ParsePolicy decodes YAML over DefaultPolicy and validates the result.
func ParsePolicy(data []byte) (Policy, error) {
	p := DefaultPolicy()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy: %w", err)
	}
	p.Planner.Rules.SplitRest = services.SplitRestPolicy(p.SplitRest.LongHours, p.SplitRest.ShortHours, p.SplitRest.CombinedHours)
	if err := p.Planner.Validate(); err != nil {
		return Policy{}, fmt.Errorf("parse policy: %w", err)
	}
	if p.SplitRest.CombinedHours < p.Planner.Rules.FullRestHours {
		return Policy{}, fmt.Errorf("parse policy: split_rest.combined_hours %.1f is below full_rest_hours %.1f",
			p.SplitRest.CombinedHours, p.Planner.Rules.FullRestHours)
	}
	if p.Triggers.Cooldown < 0 {
		return Policy{}, fmt.Errorf("parse policy: triggers.cooldown must not be negative")
	}
	return p, nil
}

// Thresholds returns the compliance limits the policy configures.
func (p Policy) Thresholds() services.Thresholds { return p.Planner.Thresholds }
