package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config carries every tunable the service recognizes. Values come from
// configs/config.yml with environment variables taking precedence.
type Config struct {
	Port     string
	DBPath   string
	LogLevel string

	// Device request authentication.
	HMACRequired   bool
	DriftTolerance time.Duration
	ProtocolMin    int
	ProtocolMax    int

	// Motor safety thresholds.
	AutoStartLevel float64 // top tank %, start below this
	AutoStopLevel  float64 // top tank %, stop above this
	SumpLowLevel   float64 // sump %, hard safety floor
	MaxRuntime     time.Duration
	MinOffTime     time.Duration

	// Command queue.
	CommandTTL    time.Duration
	SweepInterval time.Duration

	// Ingestion alert thresholds.
	AlertLowLevel  float64
	AlertHighLevel float64

	// Operator auth.
	JWTSigningKey string
}

const (
	defaultPort           = "8080"
	defaultDBPath         = "tankguard.db"
	defaultDriftSeconds   = 300
	defaultProtocolMin    = 1
	defaultProtocolMax    = 1
	defaultStartLevel     = 20.0
	defaultStopLevel      = 80.0
	defaultSumpLowLevel   = 25.0
	defaultMaxRuntimeMin  = 60
	defaultMinOffTimeMin  = 15
	defaultCommandTTLSec  = 3600
	defaultSweepSeconds   = 60
	defaultAlertLowLevel  = 10.0
	defaultAlertHighLevel = 95.0
)

// envBindings maps viper keys to the externally documented option names.
var envBindings = map[string]string{
	"port":                       "PORT",
	"db.path":                    "DB_PATH",
	"log.level":                  "LOG_LEVEL",
	"hmac.required":              "HMAC_REQUIRED",
	"hmac.drift_seconds":         "HMAC_TIME_DRIFT_SECONDS",
	"protocol.min_version":       "PROTOCOL_MIN_VERSION",
	"protocol.max_version":       "PROTOCOL_MAX_VERSION",
	"motor.auto_start_level":     "AUTO_START_LEVEL",
	"motor.auto_stop_level":      "AUTO_STOP_LEVEL",
	"motor.sump_low_level":       "SUMP_LOW_LEVEL",
	"motor.max_runtime_minutes":  "MAX_RUNTIME_MINUTES",
	"motor.min_off_time_minutes": "MIN_OFF_TIME_MINUTES",
	"commands.ttl_seconds":       "COMMAND_TTL_SECONDS",
	"commands.sweep_seconds":     "COMMAND_SWEEP_SECONDS",
	"alerts.low_level":           "ALERT_LOW_LEVEL",
	"alerts.high_level":          "ALERT_HIGH_LEVEL",
	"auth.signing_key":           "JWT_SIGNING_KEY",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", defaultPort)
	v.SetDefault("db.path", defaultDBPath)
	v.SetDefault("log.level", "info")
	v.SetDefault("hmac.required", true)
	v.SetDefault("hmac.drift_seconds", defaultDriftSeconds)
	v.SetDefault("protocol.min_version", defaultProtocolMin)
	v.SetDefault("protocol.max_version", defaultProtocolMax)
	v.SetDefault("motor.auto_start_level", defaultStartLevel)
	v.SetDefault("motor.auto_stop_level", defaultStopLevel)
	v.SetDefault("motor.sump_low_level", defaultSumpLowLevel)
	v.SetDefault("motor.max_runtime_minutes", defaultMaxRuntimeMin)
	v.SetDefault("motor.min_off_time_minutes", defaultMinOffTimeMin)
	v.SetDefault("commands.ttl_seconds", defaultCommandTTLSec)
	v.SetDefault("commands.sweep_seconds", defaultSweepSeconds)
	v.SetDefault("alerts.low_level", defaultAlertLowLevel)
	v.SetDefault("alerts.high_level", defaultAlertHighLevel)
	v.SetDefault("auth.signing_key", "")
}

// Load reads configs/config.yml (optional) and environment overrides.
func Load() (*Config, error) {
	v := viper.New()
	v.AddConfigPath("configs")
	v.SetConfigName("config")

	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; env + defaults cover everything.
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Port:           v.GetString("port"),
		DBPath:         v.GetString("db.path"),
		LogLevel:       v.GetString("log.level"),
		HMACRequired:   v.GetBool("hmac.required"),
		DriftTolerance: time.Duration(v.GetInt("hmac.drift_seconds")) * time.Second,
		ProtocolMin:    v.GetInt("protocol.min_version"),
		ProtocolMax:    v.GetInt("protocol.max_version"),
		AutoStartLevel: v.GetFloat64("motor.auto_start_level"),
		AutoStopLevel:  v.GetFloat64("motor.auto_stop_level"),
		SumpLowLevel:   v.GetFloat64("motor.sump_low_level"),
		MaxRuntime:     time.Duration(v.GetInt("motor.max_runtime_minutes")) * time.Minute,
		MinOffTime:     time.Duration(v.GetInt("motor.min_off_time_minutes")) * time.Minute,
		CommandTTL:     time.Duration(v.GetInt("commands.ttl_seconds")) * time.Second,
		SweepInterval:  time.Duration(v.GetInt("commands.sweep_seconds")) * time.Second,
		AlertLowLevel:  v.GetFloat64("alerts.low_level"),
		AlertHighLevel: v.GetFloat64("alerts.high_level"),
		JWTSigningKey:  v.GetString("auth.signing_key"),
	}
}
