package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/sst-heatwave-service/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// DefaultOpenMeteoURL is the Open-Meteo marine forecast endpoint.
const DefaultOpenMeteoURL = "https://marine-api.open-meteo.com/v1/marine"

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	BaselinePath   string
	ArchiveDBPath  string
	ArchiveSeedCSV string
	Sites          []domain.Location

	FetchEnabled  bool
	FetchInterval time.Duration

	// Open-Meteo marine API configuration.
	OpenMeteoBaseURL      string
	OpenMeteoTimeout      time.Duration
	OpenMeteoTimezone     string
	OpenMeteoPastDays     int
	OpenMeteoForecastDays int

	DetectionWindowDays int

	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaEventsTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
// Variables from a .env file in the working directory are applied first without
// overriding the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchInterval, err := parseDuration("FETCH_INTERVAL", "6h")
	if err != nil {
		return nil, err
	}
	openMeteoTimeout, err := parseDuration("OPENMETEO_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	pastDays, err := parseInt("OPENMETEO_PAST_DAYS", 5, 0, 92)
	if err != nil {
		return nil, err
	}
	forecastDays, err := parseInt("OPENMETEO_FORECAST_DAYS", 7, 0, 16)
	if err != nil {
		return nil, err
	}
	windowDays, err := parseInt("DETECTION_WINDOW_DAYS", 365, domain.MinEventDuration, 50*365)
	if err != nil {
		return nil, err
	}

	fetchEnabled, err := parseBool("FETCH_ENABLED", true)
	if err != nil {
		return nil, err
	}
	kafkaEnabled, err := parseBool("KAFKA_ENABLED", false)
	if err != nil {
		return nil, err
	}

	sites := domain.DefaultLocations
	if raw := sharedcfg.EnvOrDefault("SITES", ""); raw != "" {
		sites, err = ParseSites(raw)
		if err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		BaselinePath:   sharedcfg.EnvOrDefault("BASELINE_PATH", "baseline.csv"),
		ArchiveDBPath:  sharedcfg.EnvOrDefault("ARCHIVE_DB_PATH", "data/sst-archive.db"),
		ArchiveSeedCSV: sharedcfg.EnvOrDefault("ARCHIVE_SEED_CSV", ""),
		Sites:          sites,

		FetchEnabled:  fetchEnabled,
		FetchInterval: fetchInterval,

		OpenMeteoBaseURL:      sharedcfg.EnvOrDefault("OPENMETEO_BASE_URL", DefaultOpenMeteoURL),
		OpenMeteoTimeout:      openMeteoTimeout,
		OpenMeteoTimezone:     sharedcfg.EnvOrDefault("OPENMETEO_TIMEZONE", "Asia/Singapore"),
		OpenMeteoPastDays:     pastDays,
		OpenMeteoForecastDays: forecastDays,

		DetectionWindowDays: windowDays,

		KafkaEnabled:     kafkaEnabled,
		KafkaBrokers:     sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaEventsTopic: sharedcfg.EnvOrDefault("KAFKA_EVENTS_TOPIC", "marine-heatwave-events"),
	}

	if cfg.BaselinePath == "" {
		return nil, errors.New("BASELINE_PATH is required")
	}
	if cfg.ArchiveDBPath == "" {
		return nil, errors.New("ARCHIVE_DB_PATH is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if cfg.KafkaEnabled && cfg.KafkaEventsTopic == "" {
		return nil, errors.New("KAFKA_EVENTS_TOPIC is required when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

// ParseSites reads a site list of the form "key|Name|lat|lon;key|Name|lat|lon".
func ParseSites(raw string) ([]domain.Location, error) {
	var sites []domain.Location
	seen := make(map[string]struct{})

	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, "|")
		if len(fields) != 4 {
			return nil, fmt.Errorf("invalid SITES entry %q: want key|Name|lat|lon", part)
		}

		key := strings.ToLower(strings.TrimSpace(fields[0]))
		if key == "" {
			return nil, fmt.Errorf("invalid SITES entry %q: empty key", part)
		}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("invalid SITES entry %q: duplicate key", part)
		}
		seen[key] = struct{}{}

		lat, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		if err != nil || lat < -90 || lat > 90 {
			return nil, fmt.Errorf("invalid SITES entry %q: bad latitude", part)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(fields[3]), 64)
		if err != nil || lon < -180 || lon > 180 {
			return nil, fmt.Errorf("invalid SITES entry %q: bad longitude", part)
		}

		name := strings.TrimSpace(fields[1])
		if name == "" {
			name = key
		}
		sites = append(sites, domain.Location{Key: key, Name: name, Lat: lat, Lon: lon})
	}

	if len(sites) == 0 {
		return nil, errors.New("SITES is set but lists no sites")
	}
	return sites, nil
}

func parseDuration(name, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(name, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return d, nil
}

func parseInt(name string, def, lo, hi int) (int, error) {
	raw := sharedcfg.EnvOrDefault(name, "")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be between %d and %d", name, lo, hi)
	}
	return n, nil
}

func parseBool(name string, def bool) (bool, error) {
	raw := sharedcfg.EnvOrDefault(name, "")
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s", name)
	}
	return b, nil
}
