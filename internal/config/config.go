package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the process-level settings read from the environment.
// The monitored files, patterns and channels live in the JSON config
// file (see file.go) and can change at runtime; these cannot.
type Config struct {
	ConfigFile       string
	StateFile        string
	PollInterval     time.Duration
	DispatchTimeout  time.Duration
	HTTPAddr         string
	EnableAPI        bool
	EnableHistory    bool
	HistoryDB        string
	HistoryRetention time.Duration
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	EnableMetrics    bool
	GeoIPCityMMDB    string
	GeoIPASNMMDB     string
}

func FromEnv() (Config, error) {
	cfg := Config{
		ConfigFile:      getenvDefault("LOGEX_CONFIG", "monitor_config.json"),
		StateFile:       getenvDefault("LOGEX_STATE", "monitor_state.json"),
		HistoryDB:       getenvDefault("LOGEX_HISTORY_DB", "logex_history.db"),
		HTTPAddr:        getenvDefault("LOGEX_HTTP_ADDR", ":8688"),
		RedisAddr:       strings.TrimSpace(os.Getenv("LOGEX_REDIS_ADDR")),
		RedisPassword:   os.Getenv("LOGEX_REDIS_PASSWORD"),
		RedisDB:         parseIntDefault(getenvDefault("LOGEX_REDIS_DB", "0"), 0),
		GeoIPCityMMDB:   strings.TrimSpace(os.Getenv("LOGEX_GEOIP_CITY_MMDB")),
		GeoIPASNMMDB:    strings.TrimSpace(os.Getenv("LOGEX_GEOIP_ASN_MMDB")),
		PollInterval:    parseDurationDefault(getenvDefault("LOGEX_POLL_INTERVAL", "1s"), time.Second),
		DispatchTimeout: parseDurationDefault(getenvDefault("LOGEX_DISPATCH_TIMEOUT", "5s"), 5*time.Second),
	}
	retentionDays := parseIntDefault(getenvDefault("LOGEX_HISTORY_RETENTION_DAYS", "90"), 90)
	if retentionDays > 0 {
		cfg.HistoryRetention = time.Duration(retentionDays) * 24 * time.Hour
	}
	cfg.EnableAPI = parseBoolDefault(getenvDefault("LOGEX_ENABLE_API", "true"), true)
	cfg.EnableHistory = parseBoolDefault(getenvDefault("LOGEX_ENABLE_HISTORY", "true"), true)
	cfg.EnableMetrics = parseBoolDefault(getenvDefault("LOGEX_ENABLE_METRICS", "true"), true) && cfg.RedisAddr != ""

	if strings.TrimSpace(cfg.ConfigFile) == "" {
		return Config{}, fmt.Errorf("LOGEX_CONFIG is required")
	}
	if strings.TrimSpace(cfg.StateFile) == "" {
		return Config{}, fmt.Errorf("LOGEX_STATE is required")
	}
	if cfg.EnableHistory && strings.TrimSpace(cfg.HistoryDB) == "" {
		return Config{}, fmt.Errorf("LOGEX_HISTORY_DB is required when LOGEX_ENABLE_HISTORY=true")
	}
	return cfg, nil
}

func getenvDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseBoolDefault(value string, defaultValue bool) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseIntDefault(value string, defaultValue int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationDefault(value string, defaultValue time.Duration) time.Duration {
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return defaultValue
	}
	return parsed
}

func (c Config) String() string {
	return fmt.Sprintf(
		"config=%s state=%s poll=%s api=%v(%s) history=%s metrics=%v redis=%s geoip=%v",
		c.ConfigFile,
		c.StateFile,
		c.PollInterval,
		c.EnableAPI,
		c.HTTPAddr,
		describeHistory(c.HistoryDB, c.EnableHistory),
		c.EnableMetrics,
		redactRedis(c.RedisAddr),
		c.GeoIPCityMMDB != "" || c.GeoIPASNMMDB != "",
	)
}

func describeHistory(path string, enabled bool) string {
	if !enabled {
		return "<off>"
	}
	return path
}

func redactRedis(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "<none>"
	}
	return addr
}
