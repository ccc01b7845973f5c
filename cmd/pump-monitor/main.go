// Command pump-monitor drives a pump rig through repeated duty cycles,
// measures each channel's flow over a fixed window, and records the results.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sweeney/pump-monitor/internal/config"
	"github.com/sweeney/pump-monitor/internal/cycle"
	"github.com/sweeney/pump-monitor/internal/flow"
	"github.com/sweeney/pump-monitor/internal/gpio"
	"github.com/sweeney/pump-monitor/internal/metrics"
	"github.com/sweeney/pump-monitor/internal/mqtt"
	"github.com/sweeney/pump-monitor/internal/sink"
	"github.com/sweeney/pump-monitor/internal/status"
	"github.com/sweeney/pump-monitor/internal/web"
)

// Relay check timing.
const (
	checkOn     = 2 * time.Second
	checkOff    = 1 * time.Second
	checkRounds = 2
)

func main() {
	configPath := flag.String("config", "", "YAML config file (empty for the stock rig)")
	envFile := flag.String("env", ".env", "Environment file (ignored if missing)")
	checkRelays := flag.Bool("check-relays", false, "Toggle each relay in turn and exit")
	exportDate := flag.String("export-json", "", "Export the CSV store for DATE (YYYY-MM-DD) to JSON and exit")

	flag.Parse()

	if err := config.LoadEnv(*envFile); err != nil {
		log.Printf("warning: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: config: %v", err)
	}

	if *exportDate != "" {
		if err := exportJSON(cfg, *exportDate); err != nil {
			log.Fatalf("fatal: %v", err)
		}
		return
	}

	if err := run(cfg, *checkRelays); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg *config.Config, checkRelays bool) error {
	board, err := gpio.NewRealBoard(cfg.Chip)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer board.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if checkRelays {
		return runCheck(board, cfg, flow.Sleep, sigCh)
	}

	var publisher *mqtt.RealPublisher
	if cfg.MQTT.Broker != "" {
		publisher = mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Topic)
		defer publisher.Close()
	}

	var extra []sink.Sink
	if cfg.DB.ConnString != "" {
		pg, err := sink.OpenPostgres(cfg.DB.ConnString, cfg.DB.Table)
		if err != nil {
			return err
		}
		defer pg.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = pg.EnsureSchema(ctx)
		cancel()
		if err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
		extra = append(extra, pg)
	}

	d := daemon{
		cfg:   cfg,
		board: board,
		sinks: extra,
		now:   time.Now,
		wait:  flow.Sleep,
	}
	// A nil *RealPublisher must not become a non-nil interface.
	if publisher != nil {
		d.publisher = publisher
		d.mqttStatus = publisher
	}
	return d.serve(sigCh)
}

// daemon holds the collaborators of a monitoring run. Tests substitute the
// board, publisher, clock and wait.
type daemon struct {
	cfg        *config.Config
	board      gpio.Board
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	sinks      []sink.Sink
	now        func() time.Time
	wait       flow.WaitFunc

	// windowWait overrides wait for sampling windows only.
	windowWait flow.WaitFunc
}

func (d *daemon) serve(sig <-chan os.Signal) error {
	windowWait := d.windowWait
	if windowWait == nil {
		windowWait = d.wait
	}
	samplers, actuators, err := buildRig(d.board, d.cfg, flow.WithClock(d.now), flow.WithWait(windowWait))
	if err != nil {
		return err
	}

	// The day's store must be writable before the first cycle.
	csvStore := sink.NewCSVStore(d.cfg.Sink.DataDir, d.now)
	path, err := csvStore.EnsureDay(d.now())
	if err != nil {
		return fmt.Errorf("data store: %w", err)
	}
	log.Printf("recording to %s", path)

	sinks := sink.Multi{csvStore}
	sinks = append(sinks, d.sinks...)
	if s, ok := d.publisher.(sink.Sink); ok {
		sinks = append(sinks, s)
	}

	names := make([]string, len(samplers))
	for i, s := range samplers {
		names[i] = s.Channel().Name
	}

	tracker := status.NewTracker(d.now(), status.Config{
		WindowMs:   d.cfg.Window.Milliseconds(),
		CooldownMs: d.cfg.CooldownDuration().Milliseconds(),
		Relays:     actuators.Names(),
		Broker:     d.cfg.MQTT.Broker,
		HTTPAddr:   d.cfg.HTTP.ListenAddr(),
		DataDir:    d.cfg.Sink.DataDir,
	}, names)
	if d.mqttStatus != nil {
		tracker.SetMQTTStatus(d.mqttStatus.IsConnected)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.New(reg)

	if addr := d.cfg.HTTP.ListenAddr(); addr != "" {
		srv := web.New(addr, tracker, reg)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", addr)
	}

	if d.publisher != nil {
		event := mqtt.SystemEvent{
			Timestamp: d.now(),
			Event:     "STARTUP",
			Channels:  names,
			Retained:  true,
		}
		if err := d.publisher.PublishSystem(event); err != nil {
			log.Printf("failed to publish startup event: %v", err)
		} else {
			log.Printf("published startup event")
		}
	}

	orch := cycle.New(cycle.Config{
		Window:    d.cfg.Window,
		Cooldown:  d.cfg.CooldownDuration(),
		Samplers:  samplers,
		Actuators: actuators,
		Sink:      sinks,
		Observers: []cycle.Observer{tracker, collector},
		Now:       d.now,
		Wait:      d.wait,
	})

	log.Printf("started: window=%v cooldown=%v channels=%v relays=%v",
		d.cfg.Window, d.cfg.CooldownDuration(), names, actuators.Names())

	return runLoop(orch, d.publisher, d.now, sig)
}

// buildRig claims the flow inputs and relay outputs named by cfg. Each
// channel's pulses feed its sampler's counter.
func buildRig(board gpio.Board, cfg *config.Config, opts ...flow.Option) ([]*flow.Sampler, cycle.ActuatorSet, error) {
	var samplers []*flow.Sampler
	for i, ch := range cfg.FlowChannels() {
		s := flow.NewSampler(ch, opts...)
		if err := board.WatchPulses(ch.Pin, cfg.Channels[i].Debounce, s.Counter().RegisterPulse); err != nil {
			return nil, nil, fmt.Errorf("channel %s: %w", ch.Name, err)
		}
		samplers = append(samplers, s)
	}

	actuators, err := buildRelays(board, cfg)
	if err != nil {
		return nil, nil, err
	}
	return samplers, actuators, nil
}

func buildRelays(board gpio.Board, cfg *config.Config) (cycle.ActuatorSet, error) {
	var actuators cycle.ActuatorSet
	for _, r := range cfg.Relays {
		sw, err := board.Relay(r.Name, r.Pin, r.IsActiveLow())
		if err != nil {
			return nil, fmt.Errorf("relay %s: %w", r.Name, err)
		}
		actuators = append(actuators, sw)
	}
	return actuators, nil
}

// runLoop runs the orchestrator until a signal arrives or it fails, then
// publishes a SHUTDOWN event.
func runLoop(orch *cycle.Orchestrator, publisher mqtt.Publisher, now func() time.Time, sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- orch.Run(ctx)
	}()

	var reason string
	var runErr error
	select {
	case s := <-sig:
		log.Printf("received %v, shutting down", s)
		reason = signalName(s)
		cancel()
		runErr = <-done
	case runErr = <-done:
		reason = "ERROR"
	}

	if publisher != nil {
		event := mqtt.SystemEvent{
			Timestamp: now(),
			Event:     "SHUTDOWN",
			Reason:    reason,
			Cycles:    orch.Cycles(),
			Retained:  true,
		}
		if err := publisher.PublishSystem(event); err != nil {
			log.Printf("failed to publish shutdown event: %v", err)
		} else {
			log.Printf("published shutdown event")
		}
	}
	log.Printf("stopped after %d cycles", orch.Cycles())
	return runErr
}

// runCheck toggles every relay in order. An interrupt leaves all relays off.
func runCheck(board gpio.Board, cfg *config.Config, wait flow.WaitFunc, sig <-chan os.Signal) error {
	actuators, err := buildRelays(board, cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case s := <-sig:
			log.Printf("received %v, aborting relay check", s)
			cancel()
		case <-ctx.Done():
		}
	}()

	log.Printf("check: %d relays, on=%v off=%v rounds=%d", len(actuators), checkOn, checkOff, checkRounds)
	if err := cycle.CheckActuators(ctx, actuators, checkOn, checkOff, checkRounds, wait); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	log.Printf("check: complete")
	return nil
}

// exportJSON converts the CSV store for date into the configured JSON file.
func exportJSON(cfg *config.Config, date string) error {
	day, err := time.ParseInLocation(time.DateOnly, date, time.Local)
	if err != nil {
		return fmt.Errorf("export: bad date %q: %w", date, err)
	}
	store := sink.NewCSVStore(cfg.Sink.DataDir, nil)
	out := filepath.Join(cfg.Sink.DataDir, cfg.Sink.JSONFile)
	n, err := sink.ExportJSON(store.Path(day), out)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	log.Printf("exported %d records to %s", n, out)
	return nil
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
