package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ScanConfig describes the grid and how it is traversed.
type ScanConfig struct {
	Rows              int   `yaml:"rows"`               // TOTAL_ROWS
	Columns           int   `yaml:"columns"`            // TOTAL_COLUMNS
	ResolutionPercent int   `yaml:"resolution_percent"` // 1-100, scales columns and step time
	SamplesPerCell    int   `yaml:"samples_per_cell"`   // conversions per grid cell (default 9)
	ResetColumns      *bool `yaml:"reset_columns"`      // restart column counter every row (default true)
	DwellAfterStep    *bool `yaml:"dwell_after_step"`   // motor off for one tick after each pulse (default true)
}

// TimingConfig holds the step timer and the bounded-wait limits.
type TimingConfig struct {
	StepMs           int `yaml:"step_ms"`            // target step duration at 100% resolution
	ClockHz          int `yaml:"clock_hz"`           // timer input clock
	Prescaler        int `yaml:"prescaler"`          // timer prescaler
	AcquireTimeoutMs int `yaml:"acquire_timeout_ms"` // max wait for one conversion
	StepTimeoutMs    int `yaml:"step_timeout_ms"`    // max wait for one tick
	MenuPollMs       int `yaml:"menu_poll_ms"`       // pause between two menu iterations
}

// AxisConfig holds the two H-bridge inputs (BCM) of one motor.
type AxisConfig struct {
	In1Pin int `yaml:"in1_pin"`
	In2Pin int `yaml:"in2_pin"`
}

// MotorsConfig holds both axes.
type MotorsConfig struct {
	Axis1 AxisConfig `yaml:"axis1"` // columns while scanning, rows while homing
	Axis2 AxisConfig `yaml:"axis2"` // rows while scanning, columns while homing
}

// InputsConfig describes the run/stop button.
type InputsConfig struct {
	RunPin     int `yaml:"run_pin"`     // BCM pin, rising edge toggles the run flag
	DebounceMs int `yaml:"debounce_ms"` // 0 = no filtering
	PollMs     int `yaml:"poll_ms"`     // edge register poll interval
}

// ADCConfig selects the converter behind the sensor and menu inputs.
type ADCConfig struct {
	Type                 string `yaml:"type"` // "mcp3008" or "simulated"
	SPIChipSelect        uint8  `yaml:"spi_chip_select"`
	SPISpeedHz           int    `yaml:"spi_speed_hz"`
	SensorChannel        int    `yaml:"sensor_channel"`
	MenuChannel          int    `yaml:"menu_channel"`
	SimulatedMenuReading int    `yaml:"simulated_menu_reading"` // knob position in simulated mode
}

// DisplayConfig selects the menu display.
type DisplayConfig struct {
	Type         string `yaml:"type"`    // "ssd1306", "log" or "none"
	I2CBus       string `yaml:"i2c_bus"` // periph bus name, "" = first bus
	LineHeightPx int    `yaml:"line_height_px"`
}

// OutputConfig selects where scan tokens go.
type OutputConfig struct {
	Type      string `yaml:"type"`   // "stdout" or "serial"
	Device    string `yaml:"device"` // e.g. /dev/ttyUSB0
	BaudRate  int    `yaml:"baud_rate"`
	PadWidth  int    `yaml:"pad_width"`
	Separator string `yaml:"separator"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool `yaml:"mock_gpio"`   // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Scan     ScanConfig     `yaml:"scan"`
	Timing   TimingConfig   `yaml:"timing"`
	Motors   MotorsConfig   `yaml:"motors"`
	Inputs   InputsConfig   `yaml:"inputs"`
	ADC      ADCConfig      `yaml:"adc"`
	Display  DisplayConfig  `yaml:"display"`
	Output   OutputConfig   `yaml:"output"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// ValidateConfigPath accepts only .yaml files directly inside a configs/
// directory, without any ".." component.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("config path %q must not contain '..'", path)
		}
	}
	if filepath.Ext(path) != ".yaml" {
		return fmt.Errorf("config path %q must have a .yaml extension", path)
	}
	if filepath.Base(filepath.Dir(filepath.Clean(path))) != "configs" {
		return fmt.Errorf("config path %q must be inside a configs/ directory", path)
	}
	return nil
}

// MaxConfigFileBytes bounds the size of a config file.
const MaxConfigFileBytes = 64 << 10

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file %s is %d bytes, limit is %d", path, info.Size(), MaxConfigFileBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, fills defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Scan.Rows == 0 {
		c.Scan.Rows = 1
	}
	if c.Scan.Columns == 0 {
		c.Scan.Columns = 2
	}
	if c.Scan.ResolutionPercent == 0 {
		c.Scan.ResolutionPercent = 99
	}
	if c.Scan.SamplesPerCell == 0 {
		c.Scan.SamplesPerCell = 9
	}

	if c.Timing.StepMs == 0 {
		c.Timing.StepMs = 160 // 10000 counts at 16 MHz / 256
	}
	if c.Timing.ClockHz == 0 {
		c.Timing.ClockHz = 16_000_000
	}
	if c.Timing.Prescaler == 0 {
		c.Timing.Prescaler = 256
	}
	if c.Timing.AcquireTimeoutMs == 0 {
		c.Timing.AcquireTimeoutMs = 100
	}
	if c.Timing.StepTimeoutMs == 0 {
		c.Timing.StepTimeoutMs = 5000
	}
	if c.Timing.MenuPollMs == 0 {
		c.Timing.MenuPollMs = 20
	}

	if c.Inputs.PollMs == 0 {
		c.Inputs.PollMs = 5
	}

	if c.ADC.Type == "" {
		if c.Defaults.MockGPIO {
			c.ADC.Type = "simulated"
		} else {
			c.ADC.Type = "mcp3008"
		}
	}
	if c.ADC.SPISpeedHz == 0 {
		c.ADC.SPISpeedHz = 1_000_000
	}
	if c.ADC.SensorChannel == 0 && c.ADC.MenuChannel == 0 {
		c.ADC.MenuChannel = 1
	}

	if c.Display.Type == "" {
		c.Display.Type = "log"
	}
	if c.Display.LineHeightPx == 0 {
		c.Display.LineHeightPx = 10
	}

	if c.Output.Type == "" {
		c.Output.Type = "stdout"
	}
	if c.Output.BaudRate == 0 {
		c.Output.BaudRate = 9600
	}
	if c.Output.Separator == "" {
		c.Output.Separator = "\n"
	}
}

// Validate checks ranges and cross-field constraints.
func (c *Config) Validate() error {
	if c.Scan.Rows < 1 {
		return fmt.Errorf("scan.rows must be >= 1, got %d", c.Scan.Rows)
	}
	if c.Scan.Columns < 1 {
		return fmt.Errorf("scan.columns must be >= 1, got %d", c.Scan.Columns)
	}
	if c.Scan.ResolutionPercent < 1 || c.Scan.ResolutionPercent > 100 {
		return fmt.Errorf("scan.resolution_percent must be between 1 and 100, got %d", c.Scan.ResolutionPercent)
	}
	if c.Scan.SamplesPerCell < 1 {
		return fmt.Errorf("scan.samples_per_cell must be >= 1, got %d", c.Scan.SamplesPerCell)
	}

	if c.Timing.StepMs < 1 {
		return fmt.Errorf("timing.step_ms must be >= 1, got %d", c.Timing.StepMs)
	}
	if c.Timing.ClockHz < 1 || c.Timing.Prescaler < 1 {
		return fmt.Errorf("timing.clock_hz and timing.prescaler must be >= 1")
	}
	if c.Timing.AcquireTimeoutMs < 0 || c.Timing.StepTimeoutMs < 0 {
		return fmt.Errorf("timing timeouts must not be negative")
	}
	if c.Timing.MenuPollMs < 0 {
		return fmt.Errorf("timing.menu_poll_ms must not be negative, got %d", c.Timing.MenuPollMs)
	}

	if err := c.validatePins(); err != nil {
		return err
	}
	if c.Inputs.DebounceMs < 0 {
		return fmt.Errorf("inputs.debounce_ms must not be negative, got %d", c.Inputs.DebounceMs)
	}

	switch c.ADC.Type {
	case "mcp3008":
		if c.Defaults.MockGPIO {
			return fmt.Errorf("adc.type mcp3008 needs real GPIO (defaults.mock_gpio is true)")
		}
	case "simulated":
	default:
		return fmt.Errorf("unsupported adc.type: %s", c.ADC.Type)
	}
	if c.ADC.SensorChannel < 0 || c.ADC.SensorChannel > 7 || c.ADC.MenuChannel < 0 || c.ADC.MenuChannel > 7 {
		return fmt.Errorf("adc channels must be between 0 and 7")
	}
	if c.ADC.SensorChannel == c.ADC.MenuChannel {
		return fmt.Errorf("adc.sensor_channel and adc.menu_channel must differ, both are %d", c.ADC.SensorChannel)
	}
	if c.ADC.SimulatedMenuReading < 0 || c.ADC.SimulatedMenuReading > 1023 {
		return fmt.Errorf("adc.simulated_menu_reading must be between 0 and 1023, got %d", c.ADC.SimulatedMenuReading)
	}

	switch c.Display.Type {
	case "ssd1306", "log", "none":
	default:
		return fmt.Errorf("unsupported display.type: %s", c.Display.Type)
	}
	if c.Display.LineHeightPx < 6 || c.Display.LineHeightPx > 64 {
		return fmt.Errorf("display.line_height_px must be between 6 and 64, got %d", c.Display.LineHeightPx)
	}

	switch c.Output.Type {
	case "stdout":
	case "serial":
		if c.Output.Device == "" {
			return fmt.Errorf("output.device is required for serial output")
		}
	default:
		return fmt.Errorf("unsupported output.type: %s", c.Output.Type)
	}
	if c.Output.PadWidth < 0 || c.Output.PadWidth > 10 {
		return fmt.Errorf("output.pad_width must be between 0 and 10, got %d", c.Output.PadWidth)
	}

	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	return nil
}

// validatePins rejects any GPIO line claimed twice by the motor inputs and
// the run button.
func (c *Config) validatePins() error {
	pins := []struct {
		name string
		pin  int
	}{
		{"motors.axis1.in1_pin", c.Motors.Axis1.In1Pin},
		{"motors.axis1.in2_pin", c.Motors.Axis1.In2Pin},
		{"motors.axis2.in1_pin", c.Motors.Axis2.In1Pin},
		{"motors.axis2.in2_pin", c.Motors.Axis2.In2Pin},
		{"inputs.run_pin", c.Inputs.RunPin},
	}
	owner := make(map[int]string, len(pins))
	for _, p := range pins {
		if prev, ok := owner[p.pin]; ok {
			return fmt.Errorf("%s and %s both use pin %d", prev, p.name, p.pin)
		}
		owner[p.pin] = p.name
	}
	return nil
}

// ResetColumns reports whether the column counter restarts every row.
func (c *Config) ResetColumns() bool {
	return c.Scan.ResetColumns == nil || *c.Scan.ResetColumns
}

// DwellAfterStep reports whether each pulse is followed by one stopped tick.
func (c *Config) DwellAfterStep() bool {
	return c.Scan.DwellAfterStep == nil || *c.Scan.DwellAfterStep
}

// StepDuration returns the target step duration at 100% resolution.
func (c *Config) StepDuration() time.Duration {
	return time.Duration(c.Timing.StepMs) * time.Millisecond
}

// AcquireTimeout returns the bound on one conversion.
func (c *Config) AcquireTimeout() time.Duration {
	return time.Duration(c.Timing.AcquireTimeoutMs) * time.Millisecond
}

// StepTimeout returns the bound on one tick.
func (c *Config) StepTimeout() time.Duration {
	return time.Duration(c.Timing.StepTimeoutMs) * time.Millisecond
}

// MenuPoll returns the pause between two menu iterations.
func (c *Config) MenuPoll() time.Duration {
	return time.Duration(c.Timing.MenuPollMs) * time.Millisecond
}

// Debounce returns the run button debounce window.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Inputs.DebounceMs) * time.Millisecond
}

// InputPoll returns the edge register poll interval.
func (c *Config) InputPoll() time.Duration {
	return time.Duration(c.Inputs.PollMs) * time.Millisecond
}
