package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/afroash/weatherstation/internal/calibration"
)

// Config holds all configuration for the weather station
type Config struct {
	Station     StationConfig     `yaml:"station"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Hardware    HardwareConfig    `yaml:"hardware"`
	Storage     StorageConfig     `yaml:"storage"`
	Upload      UploadConfig      `yaml:"upload"`
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// StationConfig contains station identity and derived-metric settings
type StationConfig struct {
	ID                        string        `yaml:"id"`
	Nickname                  string        `yaml:"nickname"`
	Timezone                  string        `yaml:"timezone"`
	WindDirectionOffset       float64       `yaml:"wind_direction_offset"`
	SeaLevelPressure          bool          `yaml:"sea_level_pressure"`
	HeightAboveSeaLevel       float64       `yaml:"height_above_sea_level"`
	USBPowerTemperatureOffset *float64      `yaml:"usb_power_temperature_offset"`
	ReadingInterval           time.Duration `yaml:"reading_interval"`
	WindSampleWindow          time.Duration `yaml:"wind_sample_window"`
}

// CalibrationConfig contains the rain gauge and anemometer constants
type CalibrationConfig struct {
	RainMMPerTick      float64 `yaml:"rain_mm_per_tick"`
	AnemometerRadiusCM float64 `yaml:"anemometer_radius_cm"`
	AnemometerFactor   float64 `yaml:"anemometer_factor"`
}

// HardwareConfig describes how the sensors are wired. Line and channel
// numbers of -1 mark hardware that is not fitted.
type HardwareConfig struct {
	ClimateSensor   string  `yaml:"climate_sensor"`
	I2CBus          string  `yaml:"i2c_bus"`
	BME280Address   uint16  `yaml:"bme280_address"`
	DHTPin          int     `yaml:"dht_pin"`
	GPIOChip        string  `yaml:"gpio_chip"`
	WindSpeedLine   *int    `yaml:"wind_speed_line"`
	RainLine        *int    `yaml:"rain_line"`
	USBPowerLine    *int    `yaml:"usb_power_line"`
	ADCAddress      uint16  `yaml:"adc_address"`
	ADCMaxVolts     float64 `yaml:"adc_max_volts"`
	WindVaneChannel *int    `yaml:"wind_vane_channel"`
	LightChannel    *int    `yaml:"light_channel"`
	LightLuxPerVolt float64 `yaml:"light_lux_per_volt"`
}

// StorageConfig selects where the daily record and upload queue live
type StorageConfig struct {
	Backend         string        `yaml:"backend"`
	Path            string        `yaml:"path"`
	UploadCachePath string        `yaml:"upload_cache_path"`
	CacheMaxAge     time.Duration `yaml:"cache_max_age"`
}

// UploadConfig contains settings for publishing snapshots
type UploadConfig struct {
	Destination     string        `yaml:"destination"`
	URL             string        `yaml:"url"`
	AuthToken       string        `yaml:"auth_token"`
	MQTTBroker      string        `yaml:"mqtt_broker"`
	MQTTUsername    string        `yaml:"mqtt_username"`
	MQTTPassword    string        `yaml:"mqtt_password"`
	MQTTTopicPrefix string        `yaml:"mqtt_topic_prefix"`
	UploadFrequency int           `yaml:"upload_frequency"`
	QueueSize       int           `yaml:"queue_size"`
	Timeout         time.Duration `yaml:"timeout"`
}

// ServerConfig contains the local status server settings
type ServerConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	AuthToken      string        `yaml:"auth_token"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	HistorySize    int           `yaml:"history_size"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Enumerations accepted by Validate.
const (
	ClimateBME280 = "bme280"
	ClimateDHT11  = "dht11"

	BackendFile   = "file"
	BackendSQLite = "sqlite"

	DestinationNone      = "none"
	DestinationWebSocket = "websocket"
	DestinationMQTT      = "mqtt"
)

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	yamlData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(yamlData, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyDefaults()
	config.OverrideFromEnv()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

func intPtr(v int) *int { return &v }

// ApplyDefaults sets default values for any unset fields
func (c *Config) ApplyDefaults() {
	if c.Station.Timezone == "" {
		c.Station.Timezone = "UTC"
	}
	if c.Station.USBPowerTemperatureOffset == nil {
		trim := 4.5
		c.Station.USBPowerTemperatureOffset = &trim
	}
	if c.Station.ReadingInterval == 0 {
		c.Station.ReadingInterval = 15 * time.Minute
	}
	if c.Station.WindSampleWindow == 0 {
		c.Station.WindSampleWindow = time.Second
	}

	def := calibration.Default()
	if c.Calibration.RainMMPerTick == 0 {
		c.Calibration.RainMMPerTick = def.RainMMPerTick
	}
	if c.Calibration.AnemometerRadiusCM == 0 {
		c.Calibration.AnemometerRadiusCM = def.AnemometerRadiusCM
	}
	if c.Calibration.AnemometerFactor == 0 {
		c.Calibration.AnemometerFactor = def.AnemometerFactor
	}

	if c.Hardware.ClimateSensor == "" {
		c.Hardware.ClimateSensor = ClimateBME280
	}
	if c.Hardware.I2CBus == "" {
		c.Hardware.I2CBus = "1"
	}
	if c.Hardware.BME280Address == 0 {
		c.Hardware.BME280Address = 0x76
	}
	if c.Hardware.GPIOChip == "" {
		c.Hardware.GPIOChip = "gpiochip0"
	}
	// Pin numbers from the stock Pimoroni wiring
	if c.Hardware.WindSpeedLine == nil {
		c.Hardware.WindSpeedLine = intPtr(9)
	}
	if c.Hardware.RainLine == nil {
		c.Hardware.RainLine = intPtr(10)
	}
	if c.Hardware.USBPowerLine == nil {
		c.Hardware.USBPowerLine = intPtr(-1)
	}
	if c.Hardware.ADCAddress == 0 {
		c.Hardware.ADCAddress = 0x48
	}
	if c.Hardware.ADCMaxVolts == 0 {
		c.Hardware.ADCMaxVolts = 3.3
	}
	if c.Hardware.WindVaneChannel == nil {
		c.Hardware.WindVaneChannel = intPtr(0)
	}
	if c.Hardware.LightChannel == nil {
		c.Hardware.LightChannel = intPtr(-1)
	}
	if c.Hardware.LightLuxPerVolt == 0 {
		c.Hardware.LightLuxPerVolt = 1000
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendFile
	}
	if c.Storage.Path == "" {
		if c.Storage.Backend == BackendSQLite {
			c.Storage.Path = "./data/weatherstation.db"
		} else {
			c.Storage.Path = "./data/daily_stats.json"
		}
	}
	if c.Storage.CacheMaxAge == 0 {
		c.Storage.CacheMaxAge = 7 * 24 * time.Hour
	}

	if c.Upload.Destination == "" {
		c.Upload.Destination = DestinationNone
	}
	if c.Upload.MQTTTopicPrefix == "" {
		c.Upload.MQTTTopicPrefix = "enviro"
	}
	if c.Upload.UploadFrequency == 0 {
		c.Upload.UploadFrequency = 5
	}
	if c.Upload.QueueSize == 0 {
		c.Upload.QueueSize = 500
	}
	if c.Upload.Timeout == 0 {
		c.Upload.Timeout = 10 * time.Second
	}

	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8081
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 60 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.HistorySize == 0 {
		c.Server.HistorySize = 100
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// OverrideFromEnv overrides config values from environment variables
func (c *Config) OverrideFromEnv() {
	// Only override if environment variable is set (non-empty)
	if v := os.Getenv("STATION_ID"); v != "" {
		c.Station.ID = v
	}
	if v := os.Getenv("STATION_TIMEZONE"); v != "" {
		c.Station.Timezone = v
	}
	if v := os.Getenv("UPLOAD_URL"); v != "" {
		c.Upload.URL = v
	}
	if v := os.Getenv("UPLOAD_AUTH_TOKEN"); v != "" {
		c.Upload.AuthToken = v
	}
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		c.Upload.MQTTBroker = v
	}
	if v := os.Getenv("MQTT_PASSWORD"); v != "" {
		c.Upload.MQTTPassword = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Station.ID == "" {
		return fmt.Errorf("station ID is required")
	}
	if _, err := time.LoadLocation(c.Station.Timezone); err != nil {
		return fmt.Errorf("unknown timezone %q: %w", c.Station.Timezone, err)
	}
	if c.Station.WindDirectionOffset <= -360 || c.Station.WindDirectionOffset >= 360 {
		return fmt.Errorf("wind direction offset must be between -360 and 360 degrees")
	}
	if c.Station.HeightAboveSeaLevel < -500 {
		return fmt.Errorf("height above sea level must be at least -500m")
	}
	if c.Station.ReadingInterval < time.Second {
		return fmt.Errorf("reading interval must be at least 1 second")
	}
	if c.Station.WindSampleWindow < 100*time.Millisecond || c.Station.WindSampleWindow > time.Minute {
		return fmt.Errorf("wind sample window must be between 100ms and 1m")
	}

	if c.Calibration.RainMMPerTick <= 0 || c.Calibration.AnemometerRadiusCM <= 0 || c.Calibration.AnemometerFactor <= 0 {
		return fmt.Errorf("calibration constants must be positive")
	}

	switch c.Hardware.ClimateSensor {
	case ClimateBME280:
	case ClimateDHT11:
		if c.Hardware.DHTPin <= 0 {
			return fmt.Errorf("DHT pin must be greater than 0")
		}
	default:
		return fmt.Errorf("climate sensor must be %q or %q", ClimateBME280, ClimateDHT11)
	}
	if c.Hardware.WindVaneChannel != nil && *c.Hardware.WindVaneChannel > 3 {
		return fmt.Errorf("wind vane channel must be between 0 and 3, or -1")
	}
	if c.Hardware.LightChannel != nil && *c.Hardware.LightChannel > 3 {
		return fmt.Errorf("light channel must be between 0 and 3, or -1")
	}
	if c.Hardware.ADCMaxVolts <= 0 {
		return fmt.Errorf("ADC max volts must be positive")
	}

	switch c.Storage.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("storage backend must be %q or %q", BackendFile, BackendSQLite)
	}

	switch c.Upload.Destination {
	case DestinationNone:
	case DestinationWebSocket:
		if !strings.HasPrefix(c.Upload.URL, "ws://") && !strings.HasPrefix(c.Upload.URL, "wss://") {
			return fmt.Errorf("websocket upload URL must start with ws:// or wss://")
		}
		if c.Upload.AuthToken == "" {
			return fmt.Errorf("websocket upload auth token is required")
		}
	case DestinationMQTT:
		if c.Upload.MQTTBroker == "" {
			return fmt.Errorf("MQTT broker is required")
		}
	default:
		return fmt.Errorf("upload destination must be %q, %q or %q",
			DestinationNone, DestinationWebSocket, DestinationMQTT)
	}
	if c.Upload.UploadFrequency < 1 {
		return fmt.Errorf("upload frequency must be at least 1")
	}
	if c.Upload.QueueSize < 10 || c.Upload.QueueSize > 100000 {
		return fmt.Errorf("queue size must be between 10 and 100000")
	}

	if c.Server.Enabled && (c.Server.Port < 1 || c.Server.Port > 65535) {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.Server.HistorySize < 1 {
		return fmt.Errorf("history size must be at least 1")
	}
	return nil
}

// Constants returns the calibration section as hardware constants
func (c *Config) Constants() calibration.Constants {
	return calibration.Constants{
		RainMMPerTick:      c.Calibration.RainMMPerTick,
		AnemometerRadiusCM: c.Calibration.AnemometerRadiusCM,
		AnemometerFactor:   c.Calibration.AnemometerFactor,
	}
}

// Location returns the station timezone, falling back to UTC
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Station.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// USBTemperatureTrim returns the temperature offset applied on USB power
func (c *Config) USBTemperatureTrim() float64 {
	if c.Station.USBPowerTemperatureOffset == nil {
		return 0
	}
	return *c.Station.USBPowerTemperatureOffset
}

// Line returns a configured line or channel number and whether it is fitted
func Line(v *int) (int, bool) {
	if v == nil || *v < 0 {
		return 0, false
	}
	return *v, true
}

// String returns a safe string representation (hides secrets)
func (c *Config) String() string {
	return fmt.Sprintf("Config{Station: %+v, Calibration: %+v, Hardware: [climate=%s, bus=%s, chip=%s], Storage: %+v, Upload: [dest=%s, URL=%s, Token=%s, Broker=%s, Password=%s, Frequency=%d], Server: [enabled=%t, %s:%d], Logging: %+v}",
		c.Station,
		c.Calibration,
		c.Hardware.ClimateSensor,
		c.Hardware.I2CBus,
		c.Hardware.GPIOChip,
		c.Storage,
		c.Upload.Destination,
		c.Upload.URL,
		maskToken(c.Upload.AuthToken),
		c.Upload.MQTTBroker,
		maskToken(c.Upload.MQTTPassword),
		c.Upload.UploadFrequency,
		c.Server.Enabled,
		c.Server.Host,
		c.Server.Port,
		c.Logging,
	)
}

// maskToken masks all but first 4 characters of a token
func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 4 {
		return "****"
	}
	return token[:4] + "****"
}
