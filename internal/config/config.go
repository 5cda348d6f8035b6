// Package config loads daemon settings from flags, environment and an optional
// config file using viper.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/sweeney/button-sensor/internal/gpio"
	"github.com/sweeney/button-sensor/internal/logic"
	"github.com/sweeney/button-sensor/internal/mqtt"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// EnvPrefix is prepended to environment variable names (BUTTON_SENSOR_DEBOUNCE, ...).
const EnvPrefix = "BUTTON_SENSOR"

// Config keys. Flags use the same names with dashes.
const (
	KeyName        = "name"
	KeyPin         = "pin"
	KeyChip        = "chip"
	KeyActiveLow   = "active_low"
	KeyBackend     = "backend"
	KeyPoll        = "poll"
	KeyDebounce    = "debounce"
	KeyClick       = "click"
	KeyLongPress   = "long_press"
	KeyEvents      = "events"
	KeyBroker      = "broker"
	KeyClientID    = "client_id"
	KeyTopicPrefix = "topic_prefix"
	KeyBuffer      = "buffer"
	KeyHeartbeat   = "heartbeat"
	KeyHTTP        = "http"
	KeyLogLevel    = "log_level"
	KeyLogFormat   = "log_format"
)

// Config is the validated daemon configuration.
type Config struct {
	Name        string
	Pin         int
	Chip        string
	ActiveLow   bool
	Backend     gpio.Backend
	Poll        time.Duration
	Debounce    time.Duration
	Click       time.Duration
	LongPress   time.Duration
	Events      []logic.Kind
	Broker      string
	ClientID    string
	TopicPrefix string
	Buffer      int
	Heartbeat   time.Duration
	HTTPAddr    string
	LogLevel    string
	LogFormat   string
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyName, "button")
	v.SetDefault(KeyPin, gpio.DefaultPin)
	v.SetDefault(KeyChip, gpio.DefaultChip)
	v.SetDefault(KeyActiveLow, true)
	v.SetDefault(KeyBackend, string(gpio.BackendCdev))
	v.SetDefault(KeyPoll, 10*time.Millisecond)
	v.SetDefault(KeyDebounce, logic.DefaultDebounceMs*time.Millisecond)
	v.SetDefault(KeyClick, logic.DefaultClickWindowMs*time.Millisecond)
	v.SetDefault(KeyLongPress, logic.DefaultLongPressMs*time.Millisecond)
	v.SetDefault(KeyEvents, []string{string(logic.KindClick), string(logic.KindDoubleClick), string(logic.KindLongPress)})
	v.SetDefault(KeyBroker, "tcp://localhost:1883")
	v.SetDefault(KeyClientID, "")
	v.SetDefault(KeyTopicPrefix, mqtt.DefaultTopicPrefix)
	v.SetDefault(KeyBuffer, mqtt.DefaultBufferSize)
	v.SetDefault(KeyHeartbeat, 15*time.Minute)
	v.SetDefault(KeyHTTP, ":8080")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
}

// ReadFile loads path into v. With an empty path, button-sensor.{yaml,toml,json}
// is searched in the working directory and /etc/button-sensor; a missing file
// is not an error.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName("button-sensor")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/button-sensor")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load builds and validates a Config from v.
func Load(v *viper.Viper) (Config, error) {
	events, err := parseEvents(v.GetStringSlice(KeyEvents))
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	c := Config{
		Name:        v.GetString(KeyName),
		Pin:         v.GetInt(KeyPin),
		Chip:        v.GetString(KeyChip),
		ActiveLow:   v.GetBool(KeyActiveLow),
		Backend:     gpio.Backend(v.GetString(KeyBackend)),
		Poll:        v.GetDuration(KeyPoll),
		Debounce:    v.GetDuration(KeyDebounce),
		Click:       v.GetDuration(KeyClick),
		LongPress:   v.GetDuration(KeyLongPress),
		Events:      events,
		Broker:      v.GetString(KeyBroker),
		ClientID:    v.GetString(KeyClientID),
		TopicPrefix: v.GetString(KeyTopicPrefix),
		Buffer:      v.GetInt(KeyBuffer),
		Heartbeat:   v.GetDuration(KeyHeartbeat),
		HTTPAddr:    v.GetString(KeyHTTP),
		LogLevel:    v.GetString(KeyLogLevel),
		LogFormat:   v.GetString(KeyLogFormat),
	}
	if c.ClientID == "" {
		c.ClientID = "button-sensor-" + c.Name
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// parseEvents accepts list entries and comma separated strings alike, so
// "click,long_press" from an environment variable works too.
func parseEvents(raw []string) ([]logic.Kind, error) {
	var kinds []logic.Kind
	seen := make(map[logic.Kind]bool)
	for _, item := range raw {
		for _, s := range strings.Split(item, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			k, err := logic.ParseKind(s)
			if err != nil {
				return nil, err
			}
			if !seen[k] {
				seen[k] = true
				kinds = append(kinds, k)
			}
		}
	}
	return kinds, nil
}

// Validate checks value ranges and cross-field constraints.
func (c Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if c.Name == "" || strings.ContainsAny(c.Name, "/+#") {
		return invalid("name %q must be non-empty and free of MQTT topic characters", c.Name)
	}
	if c.Pin < 0 {
		return invalid("pin %d must not be negative", c.Pin)
	}
	if c.Backend != gpio.BackendCdev && c.Backend != gpio.BackendRPIO {
		return invalid("unknown backend %q", c.Backend)
	}
	if c.Poll <= 0 {
		return invalid("poll must be positive")
	}
	for _, d := range []struct {
		key string
		val time.Duration
	}{
		{KeyDebounce, c.Debounce},
		{KeyClick, c.Click},
		{KeyLongPress, c.LongPress},
	} {
		// Timing() truncates to whole milliseconds; 0 would disable the threshold
		if d.val < time.Millisecond {
			return invalid("%s %v must be at least 1ms", d.key, d.val)
		}
		if d.val.Milliseconds() > math.MaxUint32 {
			return invalid("%s %v is too long", d.key, d.val)
		}
	}
	if c.Debounce >= c.Click {
		return invalid("debounce %v must be shorter than the click window %v", c.Debounce, c.Click)
	}
	if c.Debounce >= c.LongPress {
		return invalid("debounce %v must be shorter than the long press threshold %v", c.Debounce, c.LongPress)
	}
	if c.Heartbeat < 0 {
		return invalid("heartbeat must not be negative")
	}
	if c.Buffer <= 0 {
		return invalid("buffer must be positive")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return invalid("%v", err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return invalid("log format %q must be text or json", c.LogFormat)
	}
	return nil
}

// Timing converts the configured durations into button thresholds.
func (c Config) Timing() logic.Timing {
	return logic.Timing{
		Debounce:    uint32(c.Debounce.Milliseconds()),
		ClickWindow: uint32(c.Click.Milliseconds()),
		LongPress:   uint32(c.LongPress.Milliseconds()),
	}
}

// Polarity returns the button wiring.
func (c Config) Polarity() logic.Polarity {
	if c.ActiveLow {
		return logic.ActiveLow
	}
	return logic.ActiveHigh
}

// EventNames returns the enabled event kinds as strings.
func (c Config) EventNames() []string {
	names := make([]string, len(c.Events))
	for i, k := range c.Events {
		names[i] = string(k)
	}
	return names
}

// NewLogger builds the logger described by the log level and format.
func (c Config) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}
