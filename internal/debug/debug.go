package debug

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Debug levels
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Important info (configuration, scan start/end, faults)
	LevelLive    = 2 // Live info (state transitions, motor steps, cells)
	LevelVerbose = 3 // Verbose (timing details, menu selection)
	LevelTrace   = 4 // Trace (GPIO, ADC, very low level)
)

var (
	level  int
	logger *log.Logger
	output io.Writer = os.Stderr // stdout carries the scan tokens
)

// Init initializes the debug system with a level (0-4).
// 0 = no output
// 1 = important info (configuration, scan summary, faults)
// 2 = live info (state transitions, steps, cells)
// 3 = verbose (timing, menu selection)
// 4 = trace (GPIO, ADC, very low level)
func Init(debugLevel int) {
	level = debugLevel
	if level > LevelOff {
		logger = log.New(output, "[RasterGo] ", log.LstdFlags|log.Lmicroseconds)
	}
}

// SetOutput redirects debug output (e.g. to stderr and the web status stream).
func SetOutput(w io.Writer) {
	output = w
	if logger != nil {
		logger.SetOutput(w)
	}
}

// Level returns the current debug level.
func Level() int {
	return level
}

// IsEnabled returns true if debug level is >= the requested level.
func IsEnabled(minLevel int) bool {
	return level >= minLevel
}

// --- Level 1 functions (Info): important info ---

// Info prints a level 1 message (important info).
func Info(format string, args ...interface{}) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[INFO] "+format, args...)
	}
}

// Summary prints an important summary (level 1).
func Summary(title string) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("═══════════════════════════════════════")
		logger.Printf("  %s", title)
		logger.Printf("═══════════════════════════════════════")
	}
}

// Grid prints the scan grid (level 1).
func Grid(rows, columns, effectiveColumns, resolution int) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[INFO] Grid: %d rows x %d columns (%d effective at %d%%)", rows, columns, effectiveColumns, resolution)
	}
}

// Fault prints a fault raised by the scanner (level 1).
func Fault(err error) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[FAULT] %v", err)
	}
}

// --- Level 2 functions (Live): real-time info ---

// Live prints a level 2 message (live info).
func Live(format string, args ...interface{}) {
	if level >= LevelLive && logger != nil {
		logger.Printf("[LIVE] "+format, args...)
	}
}

// Transition prints a state machine transition (level 2).
func Transition(from, to fmt.Stringer) {
	if level >= LevelLive && logger != nil {
		logger.Printf("[LIVE] State %s -> %s", from, to)
	}
}

// Move prints a single motor step (level 2).
func Move(axis int, direction string) {
	if level >= LevelLive && logger != nil {
		logger.Printf("[LIVE] Axis %d: 1 step (%s)", axis, direction)
	}
}

// Cell prints a sampled grid cell (level 2).
func Cell(row, column int) {
	if level >= LevelLive && logger != nil {
		logger.Printf("[LIVE] Sampled cell (row=%d, column=%d)", row, column)
	}
}

// --- Level 3 functions (Verbose): everything ---

// Verbose prints a level 3 message (verbose).
func Verbose(format string, args ...interface{}) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("[VERBOSE] "+format, args...)
	}
}

// PrintStruct prints a struct in formatted form (level 3).
func PrintStruct(name string, v interface{}) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("[VERBOSE] %s: %+v", name, v)
	}
}

// Section prints a section separator (level 3).
func Section(name string) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		logger.Printf("  %s", name)
		logger.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	}
}

// Step prints a numbered step (level 3).
func Step(num int, description string) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("[VERBOSE] Step %d: %s", num, description)
	}
}

// Value prints a named value in formatted form (level 1).
func Value(name string, value interface{}) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[INFO]   %s = %v", name, value)
	}
}

// --- Level 4 functions (Trace): very low level ---

// Trace prints a level 4 message (trace).
func Trace(format string, args ...interface{}) {
	if level >= LevelTrace && logger != nil {
		logger.Printf("[TRACE] "+format, args...)
	}
}

// GPIO prints a GPIO operation (level 4).
func GPIO(operation string, pin int, value interface{}) {
	if level >= LevelTrace && logger != nil {
		logger.Printf("[GPIO] %s pin=%d value=%v", operation, pin, value)
	}
}

// ADC prints a completed conversion (level 4).
func ADC(channel int, value uint16) {
	if level >= LevelTrace && logger != nil {
		logger.Printf("[ADC] channel=%d value=%d", channel, value)
	}
}

// --- General functions ---

// Error prints a debug error (level 1+).
func Error(err error) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[ERROR] %v", err)
	}
}
