package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/cjeanneret/RasterGo/internal/config"
	"github.com/cjeanneret/RasterGo/internal/debug"
	"github.com/cjeanneret/RasterGo/internal/hw/adc"
	"github.com/cjeanneret/RasterGo/internal/hw/display"
	"github.com/cjeanneret/RasterGo/internal/hw/gpio"
	"github.com/cjeanneret/RasterGo/internal/hw/hbridge"
	"github.com/cjeanneret/RasterGo/internal/hw/runlatch"
	"github.com/cjeanneret/RasterGo/internal/hw/tick"
	"github.com/cjeanneret/RasterGo/internal/logic/console"
	"github.com/cjeanneret/RasterGo/internal/logic/geometry"
	"github.com/cjeanneret/RasterGo/internal/logic/motion"
	"github.com/cjeanneret/RasterGo/internal/logic/scan"
	"github.com/cjeanneret/RasterGo/internal/transport"
	"github.com/cjeanneret/RasterGo/internal/web"
)

// overrides holds CLI values replacing config defaults; zero means "keep".
type overrides struct {
	Rows       int
	Columns    int
	Resolution int
}

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web panel on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	rows := flag.Int("rows", 0, "override scan.rows")
	columns := flag.Int("columns", 0, "override scan.columns")
	resolution := flag.Int("resolution", 0, "override scan.resolution_percent (1-100)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	ov := overrides{Rows: *rows, Columns: *columns, Resolution: *resolution}
	if err := validateCLIOverrides(ov); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, ov)

	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	if err := run(ctx, cfg, webPort.port()); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("rastergo: %v", err)
	}
	debug.Info("Shut down")
}

// run wires the rig and blocks until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, webPort int) error {
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		return fmt.Errorf("init GPIO: %w", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()

	debug.Step(2, "Initializing H-bridges")
	axis1, err := hbridge.NewBridge(gpioDriver, hbridge.Config{In1Pin: cfg.Motors.Axis1.In1Pin, In2Pin: cfg.Motors.Axis1.In2Pin})
	if err != nil {
		return fmt.Errorf("axis 1: %w", err)
	}
	debug.PrintStruct("Axis 1", cfg.Motors.Axis1)
	axis2, err := hbridge.NewBridge(gpioDriver, hbridge.Config{In1Pin: cfg.Motors.Axis2.In1Pin, In2Pin: cfg.Motors.Axis2.In2Pin})
	if err != nil {
		return fmt.Errorf("axis 2: %w", err)
	}
	debug.PrintStruct("Axis 2", cfg.Motors.Axis2)

	debug.Step(3, "Starting step timer")
	period, compare := tick.PeriodFor(cfg.StepDuration(), cfg.Timing.ClockHz, cfg.Timing.Prescaler, cfg.Scan.ResolutionPercent)
	ticks := tick.New(period)
	debug.Value("Step period", period)
	debug.Value("Compare value", compare)
	go ticks.Run(ctx)
	mover := motion.NewController(axis1, axis2, ticks, cfg.StepTimeout())
	// Motors off whatever happens below.
	defer func() {
		if err := mover.StopAll(); err != nil {
			log.Printf("stopping motors failed: %v", err)
		}
	}()

	debug.Step(4, "Initializing analog inputs")
	sensorConv, menuConv, closeADC, err := newConverters(cfg)
	if err != nil {
		return err
	}
	defer closeADC()
	sensor := adc.NewAcquirer(sensorConv, cfg.ADC.SensorChannel)
	knob := adc.NewAcquirer(menuConv, cfg.ADC.MenuChannel)
	sensor.Disable() // the console enables it for scans and sleep
	go sensor.Run(ctx)
	go knob.Run(ctx)

	debug.Step(5, "Watching run button")
	latch := runlatch.New(cfg.Debounce())
	watchErr := make(chan error, 1)
	go func() { watchErr <- latch.Watch(ctx, gpioDriver, cfg.Inputs.RunPin, cfg.InputPoll()) }()
	if mock, ok := gpioDriver.(*gpio.MockDriver); ok {
		go pressOnSignal(ctx, mock, cfg.Inputs.RunPin)
	}

	debug.Step(6, "Initializing display and output")
	screen, err := newDisplay(cfg)
	if err != nil {
		return err
	}
	defer screen.Close()

	var broadcaster *web.StatusBroadcaster
	if webPort > 0 {
		broadcaster = web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stderr, web.BroadcastWriter(broadcaster)))
	}
	out, closeOut, err := newOutput(cfg, broadcaster)
	if err != nil {
		return err
	}
	defer closeOut()
	emitter := transport.NewEmitter(out, transport.Options{
		Separator: cfg.Output.Separator,
		PadWidth:  cfg.Output.PadWidth,
	})
	emitter.Banner("RasterGo online")

	debug.Step(7, "Creating scan orchestrator")
	orch := scan.New(scan.Settings{
		Rows:              cfg.Scan.Rows,
		Columns:           cfg.Scan.Columns,
		ResolutionPercent: cfg.Scan.ResolutionPercent,
		SamplesPerCell:    cfg.Scan.SamplesPerCell,
		ResetColumns:      cfg.ResetColumns(),
		DwellAfterStep:    cfg.DwellAfterStep(),
		AcquireTimeout:    cfg.AcquireTimeout(),
	}, mover, sensor, latch, emitter)
	orch.OnLatch(func(s scan.Settings) {
		plan := geometry.CalculateGridPlan(cfg, s.ResolutionPercent)
		ticks.SetPeriod(plan.StepPeriod)
		debug.Value("Step period", plan.StepPeriod)
		debug.Value("Estimated duration", plan.EstimatedDuration.Round(time.Second))
	})
	logPlan(geometry.CalculateGridPlan(cfg, cfg.Scan.ResolutionPercent))

	if broadcaster != nil {
		srv, err := web.NewServer(fmt.Sprintf(":%d", webPort), broadcaster, &panel{latch: latch, orch: orch, cfg: cfg})
		if err != nil {
			return err
		}
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Printf("web server: %v", err)
			}
		}()
	}

	debug.Section("Main loop")
	loop := console.New(screen, knob, sensor, orch, latch, cfg.MenuPoll())
	loopErr := make(chan error, 1)
	go func() { loopErr <- loop.Run(ctx) }()

	select {
	case err := <-watchErr:
		if err != nil {
			return err
		}
		return <-loopErr
	case err := <-loopErr:
		return err
	}
}

func logPlan(plan *geometry.GridPlan) {
	debug.Summary("Grid Plan Summary")
	debug.Grid(plan.Rows, plan.Columns, plan.EffectiveColumns, plan.Resolution)
	debug.Section("Grid Plan Details")
	debug.Value("Cells", plan.Cells)
	debug.Value("Samples", plan.Samples)
	debug.Value("Steps per scan", plan.StepsPerScan)
	debug.Value("Estimated duration", plan.EstimatedDuration.Round(time.Second))
}

// newConverters selects the sensor and menu converters and returns a
// function releasing the bus.
func newConverters(cfg *config.Config) (sensor, menu adc.Converter, closeFn func(), err error) {
	switch cfg.ADC.Type {
	case "mcp3008":
		bus, err := adc.OpenRPiSPI(cfg.ADC.SPIChipSelect, cfg.ADC.SPISpeedHz)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("init SPI: %w", err)
		}
		closeBus := func() {
			if err := bus.Close(); err != nil {
				log.Printf("closing SPI failed: %v", err)
			}
		}
		s, err := adc.NewMCP3008(bus, cfg.ADC.SensorChannel)
		if err != nil {
			closeBus()
			return nil, nil, nil, err
		}
		m, err := adc.NewMCP3008(bus, cfg.ADC.MenuChannel)
		if err != nil {
			closeBus()
			return nil, nil, nil, err
		}
		debug.Value("ADC", "MCP3008")
		return s, m, closeBus, nil
	case "simulated":
		debug.Value("ADC", "simulated")
		return adc.NewSimulated(adc.Triangle(37), 100*time.Microsecond),
			adc.NewSimulated(adc.Constant(uint16(cfg.ADC.SimulatedMenuReading)), 0),
			func() {}, nil
	default:
		return nil, nil, nil, fmt.Errorf("unsupported adc type: %s", cfg.ADC.Type)
	}
}

// newDisplay selects the menu display.
func newDisplay(cfg *config.Config) (display.Display, error) {
	switch cfg.Display.Type {
	case "ssd1306":
		d, err := display.OpenSSD1306(cfg.Display.I2CBus, cfg.Display.LineHeightPx)
		if err != nil {
			return nil, fmt.Errorf("init display: %w", err)
		}
		return d, nil
	case "log":
		return display.NewTextDisplay(16, 8), nil
	case "none":
		return display.Nop{}, nil
	default:
		return nil, fmt.Errorf("unsupported display type: %s", cfg.Display.Type)
	}
}

// newOutput selects the token sink, tee'd to the web panel when enabled.
func newOutput(cfg *config.Config, broadcaster *web.StatusBroadcaster) (io.Writer, func(), error) {
	var w io.Writer = os.Stdout
	closeFn := func() {}
	if cfg.Output.Type == "serial" {
		port, err := transport.OpenSerial(cfg.Output.Device, cfg.Output.BaudRate)
		if err != nil {
			return nil, nil, err
		}
		w = port
		closeFn = func() {
			if err := port.Close(); err != nil {
				log.Printf("closing serial port failed: %v", err)
			}
		}
	}
	if broadcaster != nil {
		w = io.MultiWriter(w, web.TokenWriter(broadcaster))
	}
	return w, closeFn, nil
}

// pressOnSignal turns SIGUSR1 into a run button edge on the mock driver.
func pressOnSignal(ctx context.Context, mock *gpio.MockDriver, pin int) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGUSR1)
	defer signal.Stop(sig)
	debug.Info("Mock GPIO: send SIGUSR1 (kill -USR1 %d) to press the run button", os.Getpid())
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			mock.TriggerEdge(pin)
		}
	}
}

// panel exposes the rig to the web handlers.
type panel struct {
	latch *runlatch.Latch
	orch  *scan.Orchestrator
	cfg   *config.Config
}

func (p *panel) Press()                          { p.latch.Edge() }
func (p *panel) Running() bool                   { return p.latch.Running() }
func (p *panel) Snapshot() scan.Snapshot         { return p.orch.Snapshot() }
func (p *panel) Resolution() int                 { return p.orch.Resolution() }
func (p *panel) SetResolution(percent int) error { return p.orch.SetResolution(percent) }

func (p *panel) Plan(percent int) *geometry.GridPlan {
	return geometry.CalculateGridPlan(p.cfg, percent)
}

// validateCLIOverrides checks that non-zero CLI overrides are within valid ranges.
// Zero values are ignored (they mean "use config default").
func validateCLIOverrides(ov overrides) error {
	if ov.Rows < 0 {
		return fmt.Errorf("rows must be positive, got %d", ov.Rows)
	}
	if ov.Columns < 0 {
		return fmt.Errorf("columns must be positive, got %d", ov.Columns)
	}
	if ov.Resolution < 0 || ov.Resolution > 100 {
		return fmt.Errorf("resolution must be between 1 and 100, got %d", ov.Resolution)
	}
	return nil
}

// applyOverrides mutates cfg with overrides. Only non-zero override values are applied.
func applyOverrides(cfg *config.Config, ov overrides) {
	if ov.Rows > 0 {
		cfg.Scan.Rows = ov.Rows
	}
	if ov.Columns > 0 {
		cfg.Scan.Columns = ov.Columns
	}
	if ov.Resolution > 0 {
		cfg.Scan.ResolutionPercent = ov.Resolution
	}
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
