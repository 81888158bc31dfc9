package config

import (
	"os"
	"strconv"
	"time"

	"github.com/eytandecker/flightcam/internal/flight"
	"github.com/eytandecker/flightcam/pkg/types"
)

// Config holds all application configuration.
type Config struct {
	Surface SurfaceConfig
	Flight  FlightConfig
	Geocode GeocodeConfig
	Server  ServerConfig
	Log     LogConfig
}

// SurfaceConfig holds rendering surface TCP connection settings.
type SurfaceConfig struct {
	Host         string
	Port         int
	Timeout      time.Duration
	WriteTimeout time.Duration // per frame; zero means one frame interval
	AppName      string
	PollInterval time.Duration // tilt refresh
}

// FlightConfig holds the loop schedule, flight-model tuning and start position.
type FlightConfig struct {
	FrameRate      int
	PublishEvery   int
	StaleThreshold time.Duration

	Acceleration     float64
	Friction         float64
	MaxVelocity      float64
	RotationSpeed    float64
	BrakeFactor      float64
	AltitudeStepFeet float64
	MotionEpsilon    float64
	MaxAltitudeFeet  float64
	MinAltitudeFeet  float64
	DefaultTilt      float64
	DefaultHeading   float64
	ZoomAt1000Feet   float64
	FollowHeading    bool

	HomeLat           float64
	HomeLng           float64
	StartAltitudeFeet float64
}

// GeocodeConfig holds address lookup settings.
type GeocodeConfig struct {
	URL       string
	UserAgent string
	Timeout   time.Duration
	CacheSize int
	CacheTTL  time.Duration
}

// ServerConfig holds the HTTP observer settings. An empty Addr disables it.
type ServerConfig struct {
	Addr string
}

// LogConfig holds logging settings. An empty File logs to stderr.
type LogConfig struct {
	Level string
	File  string
}

// Load reads configuration from environment variables, falling back to defaults.
func Load() Config {
	return Config{
		Surface: SurfaceConfig{
			Host:         getEnvString("SURFACE_HOST", "127.0.0.1"),
			Port:         getEnvInt("SURFACE_PORT", 4600),
			Timeout:      getEnvDuration("SURFACE_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvDuration("SURFACE_WRITE_TIMEOUT", 0),
			AppName:      getEnvString("SURFACE_APP_NAME", "flightcam"),
			PollInterval: getEnvDuration("SURFACE_POLL_INTERVAL", 250*time.Millisecond),
		},
		Flight: FlightConfig{
			FrameRate:      getEnvInt("FRAME_RATE", 60),
			PublishEvery:   getEnvInt("PUBLISH_EVERY", 3),
			StaleThreshold: getEnvDuration("STALE_THRESHOLD", 5*time.Second),

			Acceleration:     getEnvFloat("ACCELERATION", 0.0000005),
			Friction:         getEnvFloat("FRICTION", 0.98),
			MaxVelocity:      getEnvFloat("MAX_VELOCITY", 0.0001),
			RotationSpeed:    getEnvFloat("ROTATION_SPEED", 2.0),
			BrakeFactor:      getEnvFloat("BRAKE_FACTOR", 0.95),
			AltitudeStepFeet: getEnvFloat("ALTITUDE_STEP_FEET", 15),
			MotionEpsilon:    getEnvFloat("MOTION_EPSILON", 0.0000001),
			MaxAltitudeFeet:  getEnvFloat("MAX_ALTITUDE_FEET", 2500),
			MinAltitudeFeet:  getEnvFloat("MIN_ALTITUDE_FEET", 100),
			DefaultTilt:      getEnvFloat("DEFAULT_TILT", 45),
			DefaultHeading:   getEnvFloat("DEFAULT_HEADING", 0),
			ZoomAt1000Feet:   getEnvFloat("ZOOM_AT_1000_FEET", 17),
			FollowHeading:    getEnvBool("FOLLOW_HEADING", false),

			HomeLat:           getEnvFloat("HOME_LAT", 34.82902777777778),
			HomeLng:           getEnvFloat("HOME_LNG", -85.38988888888889),
			StartAltitudeFeet: getEnvFloat("START_ALTITUDE_FEET", 700),
		},
		Geocode: GeocodeConfig{
			URL:       getEnvString("GEOCODE_URL", "https://nominatim.openstreetmap.org"),
			UserAgent: getEnvString("GEOCODE_USER_AGENT", "flightcam/1.0 (+https://github.com/eytandecker/flightcam)"),
			Timeout:   getEnvDuration("GEOCODE_TIMEOUT", 5*time.Second),
			CacheSize: getEnvInt("GEOCODE_CACHE_SIZE", 128),
			CacheTTL:  getEnvDuration("GEOCODE_CACHE_TTL", time.Hour),
		},
		Server: ServerConfig{
			Addr: lookupEnvString("HTTP_ADDR", "127.0.0.1:8089"),
		},
		Log: LogConfig{
			Level: getEnvString("LOG_LEVEL", "info"),
			File:  getEnvString("LOG_FILE", ""),
		},
	}
}

// SurfaceWriteTimeout is the deadline for a single frame written to the
// surface, one frame interval unless SURFACE_WRITE_TIMEOUT is set.
func (c Config) SurfaceWriteTimeout() time.Duration {
	if c.Surface.WriteTimeout > 0 {
		return c.Surface.WriteTimeout
	}
	return c.Flight.FrameInterval()
}

// Params derives the flight-model constants. The result still needs
// flight.Params.Validate.
func (f FlightConfig) Params() flight.Params {
	return flight.Params{
		Acceleration:     f.Acceleration,
		Friction:         f.Friction,
		MaxVelocity:      f.MaxVelocity,
		RotationSpeed:    f.RotationSpeed,
		BrakeFactor:      f.BrakeFactor,
		MotionEpsilon:    f.MotionEpsilon,
		AltitudeStepFeet: f.AltitudeStepFeet,
		MinAltitudeFeet:  f.MinAltitudeFeet,
		MaxAltitudeFeet:  f.MaxAltitudeFeet,
		DefaultTilt:      f.DefaultTilt,
		DefaultHeading:   f.DefaultHeading,
		ZoomAt1000Feet:   f.ZoomAt1000Feet,
		FollowHeading:    f.FollowHeading,
	}
}

// Home is the start and reset-home coordinate.
func (f FlightConfig) Home() types.Coordinate {
	return types.Coordinate{Lat: f.HomeLat, Lng: f.HomeLng}
}

// FrameInterval is the tick period; a non-positive FrameRate means 60 fps.
func (f FlightConfig) FrameInterval() time.Duration {
	if f.FrameRate <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(f.FrameRate)
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// lookupEnvString honours an explicitly empty value.
func lookupEnvString(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
