package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// ---------- ValidateConfigPath ----------

func TestValidateConfigPath_Valid(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "default.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ValidateConfigPath(path); err != nil {
		t.Errorf("expected valid path, got error: %v", err)
	}
}

func TestValidateConfigPath_PathTraversal(t *testing.T) {
	cases := []string{
		"../../etc/passwd",
		"configs/../../../etc/shadow",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for traversal path %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_WrongExtension(t *testing.T) {
	cases := []string{
		"configs/default.json",
		"configs/default.yml",
		"configs/default.txt",
		"configs/default",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for extension in %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_NotInConfigsDir(t *testing.T) {
	cases := []string{
		"other/default.yaml",
		"default.yaml",
		"/tmp/default.yaml",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for path outside configs/ %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_EmptyPath(t *testing.T) {
	if err := ValidateConfigPath(""); err == nil {
		t.Error("expected error for empty path, got nil")
	}
}

func TestValidateConfigPath_VeryLongPath(t *testing.T) {
	long := "configs/" + strings.Repeat("a", 1000) + ".yaml"
	// Should not panic; error or success is OS-dependent, but must not crash.
	_ = ValidateConfigPath(long)
}

func TestValidateConfigPath_SpecialChars(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name    string
		wantErr bool
	}{
		{"con fig.yaml", false},
		{"café.yaml", false},
	}
	for _, tc := range cases {
		path := filepath.Join(cfgDir, tc.name)
		err := ValidateConfigPath(path)
		if tc.wantErr && err == nil {
			t.Errorf("expected error for %q, got nil", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("unexpected error for %q: %v", tc.name, err)
		}
	}
}

func TestValidateConfigPath_DoubleTraversal(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	// filepath.Join cleans the ".." away; the parent is still configs/.
	path := filepath.Join(cfgDir, "../../configs/ok.yaml")
	if err := ValidateConfigPath(path); err != nil {
		t.Errorf("cleaned path %q rejected: %v", path, err)
	}
	if err := ValidateConfigPath("configs/../configs/ok.yaml"); err == nil {
		t.Error("raw '..' component should be rejected")
	}
}

// ---------- Load ----------

// writeConfig creates a temporary configs/ dir with the given YAML content and returns the path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "test.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validYAML = `
scan:
  rows: 4
  columns: 20
  resolution_percent: 50
  samples_per_cell: 5
  reset_columns: false
timing:
  step_ms: 100
  acquire_timeout_ms: 50
motors:
  axis1:
    in1_pin: 17
    in2_pin: 27
  axis2:
    in1_pin: 22
    in2_pin: 23
inputs:
  run_pin: 24
  debounce_ms: 30
adc:
  type: "simulated"
  sensor_channel: 0
  menu_channel: 1
  simulated_menu_reading: 400
display:
  type: "none"
output:
  type: "serial"
  device: "/dev/ttyUSB0"
  baud_rate: 115200
  pad_width: 4
defaults:
  debug_level: 2
  mock_gpio: true
`

const minimalYAML = `
motors:
  axis1:
    in1_pin: 17
    in2_pin: 27
  axis2:
    in1_pin: 22
    in2_pin: 23
defaults:
  mock_gpio: true
`

func TestLoad_ValidFullConfig(t *testing.T) {
	path := writeConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Scan.Rows != 4 || cfg.Scan.Columns != 20 {
		t.Errorf("grid = %dx%d, want 4x20", cfg.Scan.Rows, cfg.Scan.Columns)
	}
	if cfg.Scan.ResolutionPercent != 50 {
		t.Errorf("resolution_percent = %d, want 50", cfg.Scan.ResolutionPercent)
	}
	if cfg.Scan.SamplesPerCell != 5 {
		t.Errorf("samples_per_cell = %d, want 5", cfg.Scan.SamplesPerCell)
	}
	if cfg.ResetColumns() {
		t.Error("reset_columns should be false")
	}
	if !cfg.DwellAfterStep() {
		t.Error("dwell_after_step should default to true")
	}
	if cfg.Motors.Axis2.In2Pin != 23 {
		t.Errorf("motors.axis2.in2_pin = %d, want 23", cfg.Motors.Axis2.In2Pin)
	}
	if cfg.Inputs.RunPin != 24 {
		t.Errorf("inputs.run_pin = %d, want 24", cfg.Inputs.RunPin)
	}
	if cfg.Output.Type != "serial" || cfg.Output.BaudRate != 115200 {
		t.Errorf("output = %s@%d, want serial@115200", cfg.Output.Type, cfg.Output.BaudRate)
	}
	if cfg.ADC.SimulatedMenuReading != 400 {
		t.Errorf("adc.simulated_menu_reading = %d, want 400", cfg.ADC.SimulatedMenuReading)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	path := writeConfig(t, minimalYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Scan.Rows != 1 || cfg.Scan.Columns != 2 {
		t.Errorf("grid default = %dx%d, want 1x2", cfg.Scan.Rows, cfg.Scan.Columns)
	}
	if cfg.Scan.ResolutionPercent != 99 {
		t.Errorf("resolution_percent default = %d, want 99", cfg.Scan.ResolutionPercent)
	}
	if cfg.Scan.SamplesPerCell != 9 {
		t.Errorf("samples_per_cell default = %d, want 9", cfg.Scan.SamplesPerCell)
	}
	if !cfg.ResetColumns() || !cfg.DwellAfterStep() {
		t.Error("reset_columns and dwell_after_step should default to true")
	}
	if cfg.Timing.StepMs != 160 || cfg.Timing.ClockHz != 16_000_000 || cfg.Timing.Prescaler != 256 {
		t.Errorf("timing defaults = %+v", cfg.Timing)
	}
	if cfg.ADC.Type != "simulated" {
		t.Errorf("adc.type default with mock GPIO = %q, want simulated", cfg.ADC.Type)
	}
	if cfg.ADC.SensorChannel != 0 || cfg.ADC.MenuChannel != 1 {
		t.Errorf("adc channels = %d/%d, want 0/1", cfg.ADC.SensorChannel, cfg.ADC.MenuChannel)
	}
	if cfg.Display.Type != "log" {
		t.Errorf("display.type default = %q, want log", cfg.Display.Type)
	}
	if cfg.Output.Type != "stdout" || cfg.Output.Separator != "\n" {
		t.Errorf("output defaults = %+v", cfg.Output)
	}
}

func TestLoad_RealGPIODefaultsToMCP3008(t *testing.T) {
	path := writeConfig(t, strings.Replace(minimalYAML, "mock_gpio: true", "mock_gpio: false", 1))
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ADC.Type != "mcp3008" {
		t.Errorf("adc.type = %q, want mcp3008", cfg.ADC.Type)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := []struct {
		name  string
		extra string
	}{
		{"negative_rows", "scan:\n  rows: -1\n"},
		{"negative_columns", "scan:\n  columns: -3\n"},
		{"resolution_over_100", "scan:\n  resolution_percent: 101\n"},
		{"resolution_negative", "scan:\n  resolution_percent: -5\n"},
		{"negative_samples", "scan:\n  samples_per_cell: -1\n"},
		{"negative_debounce", "inputs:\n  debounce_ms: -1\n"},
		{"bad_adc_type", "adc:\n  type: ads1115\n"},
		{"mcp3008_with_mock", "adc:\n  type: mcp3008\n"},
		{"same_channels", "adc:\n  sensor_channel: 2\n  menu_channel: 2\n"},
		{"channel_out_of_range", "adc:\n  sensor_channel: 8\n"},
		{"menu_reading_out_of_range", "adc:\n  simulated_menu_reading: 1024\n"},
		{"bad_display", "display:\n  type: lcd\n"},
		{"line_height_too_small", "display:\n  line_height_px: 4\n"},
		{"bad_output", "output:\n  type: udp\n"},
		{"serial_without_device", "output:\n  type: serial\n"},
		{"pad_width_too_large", "output:\n  pad_width: 11\n"},
		{"negative_timeout", "timing:\n  step_timeout_ms: -1\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, minimalYAML+tc.extra)
			if _, err := Load(path); err == nil {
				t.Errorf("expected error for %s, got nil", tc.name)
			}
		})
	}
}

func TestLoad_DebugLevelOutOfRange(t *testing.T) {
	yaml := strings.Replace(minimalYAML, "defaults:\n", "defaults:\n  debug_level: 5\n", 1)
	path := writeConfig(t, yaml)
	if _, err := Load(path); err == nil {
		t.Error("expected error for debug_level 5, got nil")
	}
}

func TestLoad_SameMotorPins(t *testing.T) {
	yaml := strings.Replace(minimalYAML, "in2_pin: 23", "in2_pin: 22", 1)
	path := writeConfig(t, yaml)
	if _, err := Load(path); err == nil {
		t.Error("expected error for in1_pin == in2_pin, got nil")
	}
}

func TestLoad_PinCollisions(t *testing.T) {
	cases := []struct {
		name     string
		old, new string
	}{
		{"across_axes", "in1_pin: 22", "in1_pin: 17"},
		{"crossed_inputs", "in2_pin: 23", "in2_pin: 27"},
		{"run_pin_on_motor", "defaults:", "inputs:\n  run_pin: 23\ndefaults:"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			yaml := strings.Replace(minimalYAML, tc.old, tc.new, 1)
			path := writeConfig(t, yaml)
			if _, err := Load(path); err == nil {
				t.Error("expected error for a pin used twice, got nil")
			}
		})
	}
}

func TestLoad_DistinctPinsAccepted(t *testing.T) {
	yaml := strings.Replace(minimalYAML, "defaults:", "inputs:\n  run_pin: 24\ndefaults:", 1)
	path := writeConfig(t, yaml)
	if _, err := Load(path); err != nil {
		t.Errorf("distinct pins should load, got: %v", err)
	}
}

func TestLoad_FileTooLarge(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "big.yaml")
	data := make([]byte, MaxConfigFileBytes+1)
	for i := range data {
		data[i] = '#'
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for oversized config file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "{{{{invalid yaml!!!!")
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid YAML, got nil")
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeConfig(t, "")
	if _, err := Load(path); err == nil {
		t.Error("expected error for empty config (motor pins missing), got nil")
	}
}

func TestLoad_UnknownFields(t *testing.T) {
	path := writeConfig(t, minimalYAML+"unknown_section:\n  foo: bar\n")
	if _, err := Load(path); err != nil {
		t.Errorf("unknown fields should be ignored, got error: %v", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "configs", "nonexistent.yaml")
	if _, err := Load(path); err == nil {
		t.Error("expected error for nonexistent file, got nil")
	}
}

// ---------- Helper methods ----------

func TestConfig_Durations(t *testing.T) {
	cfg := &Config{
		Timing: TimingConfig{StepMs: 160, AcquireTimeoutMs: 100, StepTimeoutMs: 5000, MenuPollMs: 20},
		Inputs: InputsConfig{DebounceMs: 30, PollMs: 5},
	}
	cases := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"StepDuration", cfg.StepDuration(), 160 * time.Millisecond},
		{"AcquireTimeout", cfg.AcquireTimeout(), 100 * time.Millisecond},
		{"StepTimeout", cfg.StepTimeout(), 5 * time.Second},
		{"MenuPoll", cfg.MenuPoll(), 20 * time.Millisecond},
		{"Debounce", cfg.Debounce(), 30 * time.Millisecond},
		{"InputPoll", cfg.InputPoll(), 5 * time.Millisecond},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("%s() = %v, want %v", tc.name, tc.got, tc.want)
		}
	}
}

func TestConfig_BoolDefaults(t *testing.T) {
	off := false
	cfg := &Config{}
	if !cfg.ResetColumns() || !cfg.DwellAfterStep() {
		t.Error("nil flags should read as true")
	}
	cfg.Scan.ResetColumns = &off
	cfg.Scan.DwellAfterStep = &off
	if cfg.ResetColumns() || cfg.DwellAfterStep() {
		t.Error("explicit false should be honoured")
	}
}
