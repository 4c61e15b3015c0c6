package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig captures all tunable parameters for the rendezvous engine.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without excessive setup.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN string

	RouteAPIEndpoint string
	RouteAPIKey      string

	// Route cache floors: a cached route is reused only while elapsed
	// time stays under the TTL and origin drift stays under the floor.
	RouteCacheTTL        time.Duration
	RouteDriftFloor      float64 // meters
	RouteEndpointEpsilon float64 // meters, cache-key equality tolerance

	MinSampleDistance float64 // meters between stored trip points
	MeetupDistance    float64 // meters before the primary leg is suppressed
	GeofenceRadiusKm  float64

	DriverRefresh time.Duration
	PilotRefresh  time.Duration

	LogLevel      string
	RunMigrations bool
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:             ":8080",
		ReadTimeout:          5 * time.Second,
		WriteTimeout:         10 * time.Second,
		IdleTimeout:          120 * time.Second,
		ShutdownTimeout:      15 * time.Second,
		RedisGeoKey:          "rendezvous_geo",
		KafkaTopic:           "position-updates",
		RouteCacheTTL:        10 * time.Second,
		RouteDriftFloor:      100,
		RouteEndpointEpsilon: 2,
		MinSampleDistance:    3,
		MeetupDistance:       30,
		GeofenceRadiusKm:     0.1,
		DriverRefresh:        1500 * time.Millisecond,
		PilotRefresh:         5 * time.Second,
		LogLevel:             "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")

	setStringFromEnv(&cfg.RouteAPIEndpoint, "ROUTE_API_ENDPOINT")
	cfg.RouteAPIKey = os.Getenv("ROUTE_API_KEY")

	setDurationFromEnv(&cfg.RouteCacheTTL, "ROUTE_CACHE_TTL", &errs)
	setFloatFromEnv(&cfg.RouteDriftFloor, "ROUTE_DRIFT_FLOOR_M", &errs)
	setFloatFromEnv(&cfg.RouteEndpointEpsilon, "ROUTE_ENDPOINT_EPSILON_M", &errs)
	setFloatFromEnv(&cfg.MinSampleDistance, "TRIP_MIN_SAMPLE_DISTANCE_M", &errs)
	setFloatFromEnv(&cfg.MeetupDistance, "MEETUP_DISTANCE_M", &errs)
	setFloatFromEnv(&cfg.GeofenceRadiusKm, "GEOFENCE_RADIUS_KM", &errs)
	setDurationFromEnv(&cfg.DriverRefresh, "DRIVER_REFRESH_INTERVAL", &errs)
	setDurationFromEnv(&cfg.PilotRefresh, "PILOT_REFRESH_INTERVAL", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.MinSampleDistance <= 0 {
		errs = append(errs, fmt.Errorf("TRIP_MIN_SAMPLE_DISTANCE_M must be > 0"))
	}
	if cfg.RouteDriftFloor <= 0 {
		errs = append(errs, fmt.Errorf("ROUTE_DRIFT_FLOOR_M must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
