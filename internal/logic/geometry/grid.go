package geometry

import (
	"time"

	"github.com/cjeanneret/RasterGo/internal/config"
	"github.com/cjeanneret/RasterGo/internal/hw/tick"
)

// EffectiveColumns is the number of columns visited per row at the given
// resolution (integer percentage of columns, truncated).
func EffectiveColumns(columns, resolutionPercent int) int {
	if columns <= 0 || resolutionPercent <= 0 {
		return 0
	}
	return columns * resolutionPercent / 100
}

// GridPlan describes the raster scan that a configuration produces.
type GridPlan struct {
	Rows             int `json:"rows"`              // rows to scan
	Columns          int `json:"columns"`           // nominal columns per row
	EffectiveColumns int `json:"effective_columns"` // columns actually visited per row
	Resolution       int `json:"resolution_percent"`
	Cells            int `json:"cells"`   // sampled cells over the whole scan
	Samples          int `json:"samples"` // conversions over the whole scan

	StepPeriod   time.Duration `json:"step_period_ns"` // duration of one motor pulse
	CompareValue int           `json:"compare_value"`  // timer compare value producing StepPeriod

	// Motor pulses for one scan started from home: one axis 1 pulse per
	// cell and one axis 2 pulse per row.
	StepsPerScan int `json:"steps_per_scan"`
	// EstimatedDuration counts pulses and dwells, not conversion time.
	EstimatedDuration time.Duration `json:"estimated_duration_ns"`
}

// CalculateGridPlan computes the plan for cfg at the given resolution.
// When ResetColumns is off only the first row contains cells.
func CalculateGridPlan(cfg *config.Config, resolutionPercent int) *GridPlan {
	effCols := EffectiveColumns(cfg.Scan.Columns, resolutionPercent)

	cells := cfg.Scan.Rows * effCols
	if !cfg.ResetColumns() && cfg.Scan.Rows > 0 {
		cells = effCols
	}

	period, compare := tick.PeriodFor(cfg.StepDuration(), cfg.Timing.ClockHz, cfg.Timing.Prescaler, resolutionPercent)

	steps := cells + cfg.Scan.Rows
	ticksPerStep := 1
	if cfg.DwellAfterStep() {
		ticksPerStep = 2
	}

	return &GridPlan{
		Rows:              cfg.Scan.Rows,
		Columns:           cfg.Scan.Columns,
		EffectiveColumns:  effCols,
		Resolution:        resolutionPercent,
		Cells:             cells,
		Samples:           cells * cfg.Scan.SamplesPerCell,
		StepPeriod:        period,
		CompareValue:      compare,
		StepsPerScan:      steps,
		EstimatedDuration: time.Duration(steps*ticksPerStep) * period,
	}
}
