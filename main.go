package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"melodeus/audio"
	"melodeus/doctor"
	"melodeus/encoder"
	"melodeus/engine"
	"melodeus/hotkey"
	"melodeus/log"
	"melodeus/monitor"
	"melodeus/permission"
	"melodeus/shutdown"
)

var version = "dev"

var guiMode bool

var (
	recorderMu     sync.Mutex
	activeRecorder *encoder.Recorder
)

var shutdownOnce sync.Once

func gracefulShutdown() {
	shutdownOnce.Do(func() {
		saveRecording()
		log.Close()
		if tuiProgram != nil {
			tuiProgram.Quit()
		}
		os.Exit(0)
	})
}

// initCrashLog routes runtime panics to a file, before any CGO code runs.
func initCrashLog() {
	dir, err := log.ResolveDir("")
	if err != nil {
		return
	}
	if os.MkdirAll(dir, 0755) != nil {
		return
	}
	crashPath := filepath.Join(dir, "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

func deviceLineText(name string) string {
	if name == "" {
		return "mic: system default (d)"
	}
	suffix := ""
	if audio.IsBluetooth(name) {
		suffix = " (BT!)"
	}
	return "mic: " + name + suffix + " (d)"
}

func saveRecording() {
	recorderMu.Lock()
	rec := activeRecorder
	activeRecorder = nil
	recorderMu.Unlock()
	if rec == nil {
		return
	}
	duration := rec.Duration()
	if err := rec.Save(); err != nil {
		log.Errorf("saving recording: %v", err)
		return
	}
	log.Info(fmt.Sprintf("recording_saved: %s (%s, %s)",
		rec.Path(), rec.Format(), duration.Round(time.Millisecond)))
}

func run() {
	deviceFlag := flag.String("device", "", "Use named input device (otherwise system default)")
	outputFlag := flag.String("output", "", "Use named output device for the tone and echo reference")
	setupFlag := flag.Bool("setup", false, "Select input device interactively")
	aecFlag := flag.Bool("aec", false, "Monitor through the echo-cancelling engine")
	toneFlag := flag.Bool("tone", false, "Start the test tone immediately")
	recordFlag := flag.String("record", "", "Record monitored audio to a file (.flac, or .wav by extension)")
	rateFlag := flag.Uint("rate", monitor.DefaultSampleRate, "Capture sample rate in Hz")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven)")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	// Consumed in main() before flag parsing; declared so Parse accepts it
	flag.Bool("gui", false, "Run with graphical UI")
	flag.Parse()

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)

	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	if *versionFlag {
		fmt.Printf("melodeus %s\n", version)
		os.Exit(0)
	}

	if *doctorFlag {
		os.Exit(doctor.Run(*deviceFlag))
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	if *testFlag {
		runTestMode()
		return
	}

	ctx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Printf("Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer ctx.Close()

	// Resolve -setup into -device before the TUI takes the terminal
	if *setupFlag && *deviceFlag == "" {
		if dev, err := audio.SelectDevice(ctx, audio.Input); err != nil {
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
		} else if dev != nil {
			*deviceFlag = dev.Name
		}
	}

	gate := permission.NewGate(permission.NewPlatformProber(ctx))
	defer gate.Close()
	gate.OnChange(func(s permission.State) {
		log.PermissionState(s.String())
		sink.PermissionLine(s.String())
	})

	if *recordFlag != "" {
		rec, err := encoder.NewRecorder(*recordFlag, int(*rateFlag))
		if err != nil {
			fmt.Printf("Error initializing recorder: %v\n", err)
			os.Exit(1)
		}
		recorderMu.Lock()
		activeRecorder = rec
		recorderMu.Unlock()
	}

	mon := monitor.New(monitor.Config{
		Audio:     ctx,
		Gate:      gate,
		Scheduler: monitor.NewFrameScheduler(monitor.DefaultFrameInterval),
		Painter:   paintSink{},
		Status: func(s string) {
			log.Warn(s)
			sink.StatusLine(s)
		},
		Tap: func(data []byte, channels int) {
			recorderMu.Lock()
			rec := activeRecorder
			recorderMu.Unlock()
			if rec != nil {
				rec.Write(data, channels)
			}
		},
		SampleRate: uint32(*rateFlag),
	})
	mon.Selection().SetInput(*deviceFlag)
	mon.SelectOutput(*outputFlag)

	// Start TUI
	if !*tuiFlag || guiMode {
		tuiReadyOnce.Do(func() { close(tuiReady) })
	} else {
		tuiMu.Lock()
		tuiProgram = NewTUIProgram()
		tuiMu.Unlock()
		sink = tuiSink{}

		go func() {
			if _, err := tuiProgram.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
				os.Exit(1)
			}
			gracefulShutdown()
		}()

		<-tuiReady
	}

	sink.DeviceLine(deviceLineText(mon.Selection().Input()))
	sink.PermissionLine(gate.State().String())

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		gracefulShutdown()
	}()

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		log.Warnf("hotkey register error: %v", err)
		sink.StatusLine(fmt.Sprintf("hotkey unavailable: %v", err))
	} else {
		defer hk.Unregister()
	}

	if *toneFlag {
		select {
		case toneToggleChan <- struct{}{}:
		default:
		}
	}

	eng := engine.NewNative(ctx, nil)
	eventLoop(mon, eng, gate, ctx, *aecFlag, int(*rateFlag), hk)
}

// paintSink feeds rendered traces to whichever display is active.
type paintSink struct{}

var paintCount atomic.Int64

// renderStats tracks paint cadence for the session summary.
var renderStats struct {
	mu        sync.Mutex
	start     time.Time
	lastPaint time.Time
	peak      time.Duration
}

func resetRenderStats() {
	renderStats.mu.Lock()
	renderStats.start = time.Now()
	renderStats.lastPaint = time.Time{}
	renderStats.peak = 0
	renderStats.mu.Unlock()
}

func sessionRenderMetrics() log.RenderMetricsData {
	ticks := int(paintCount.Load())
	renderStats.mu.Lock()
	elapsed := time.Since(renderStats.start)
	peak := renderStats.peak
	renderStats.mu.Unlock()

	m := log.RenderMetricsData{
		Ticks:      ticks,
		PeakTickMs: float64(peak) / float64(time.Millisecond),
	}
	if ticks > 0 {
		m.AvgTickMs = float64(elapsed) / float64(time.Millisecond) / float64(ticks)
	}
	if expected := elapsed.Seconds() * float64(time.Second/monitor.DefaultFrameInterval); float64(ticks) < expected {
		m.DroppedS = (expected - float64(ticks)) * float64(monitor.DefaultFrameInterval) / float64(time.Second)
	}
	return m
}

func (paintSink) Paint(traces []monitor.DeviceTrace) {
	paintCount.Add(1)
	now := time.Now()
	renderStats.mu.Lock()
	if !renderStats.lastPaint.IsZero() {
		if gap := now.Sub(renderStats.lastPaint); gap > renderStats.peak {
			renderStats.peak = gap
		}
	}
	renderStats.lastPaint = now
	renderStats.mu.Unlock()
	sink.Traces(traces)
}

func eventLoop(mon *monitor.Monitor, eng engine.Engine, gate *permission.Gate, ctx audio.Context, aec bool, rate int, hk hotkey.Hotkey) {
	var tonePlayer engine.ToneHandle

	toggleMonitor := func() {
		if mon.Active() {
			log.SessionEnd(mon.Selection().Input(), int(paintCount.Load()))
			log.RenderMetrics(sessionRenderMetrics())
			mon.Stop()
			sink.MonitorStop()
			return
		}
		var err error
		if aec {
			err = startAEC(mon, eng, gate)
		} else {
			err = mon.Start(context.Background())
		}
		if err != nil {
			log.Errorf("monitor start: %v", err)
			return
		}
		paintCount.Store(0)
		resetRenderStats()
		log.SessionStart(mon.Selection().Input(), rate)
		sink.MonitorStart()
	}

	toggleTone := func() {
		if tonePlayer != nil {
			tonePlayer.Stop()
			tonePlayer = nil
			sink.ToneState(false)
			log.Info("tone_stop")
			return
		}
		p, err := eng.StartTone(mon.Selection().Output())
		if err != nil {
			log.Errorf("tone start: %v", err)
			sink.StatusLine(fmt.Sprintf("tone failed: %v", err))
			return
		}
		tonePlayer = p
		sink.ToneState(true)
		log.Info("tone_start")
	}

	switchDevice := func() {
		if tuiProgram != nil {
			tuiProgram.ReleaseTerminal()
		}
		dev, err := audio.SelectDevice(ctx, audio.Input)
		if tuiProgram != nil {
			tuiProgram.RestoreTerminal()
		}
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			return
		}
		name := ""
		if dev != nil {
			name = dev.Name
		}
		log.Info("device_switch: " + deviceLineText(name))
		if err := mon.SelectInput(context.Background(), name); err != nil {
			log.Errorf("device switch: %v", err)
		}
		sink.DeviceLine(deviceLineText(name))
	}

	// Poll for device changes (hotplug)
	go func() {
		var last []string
		ticker := time.NewTicker(3 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			names, err := mon.InputNames()
			if err != nil {
				continue
			}
			if slices.Equal(last, names) {
				continue
			}
			last = names
			sel := mon.Selection().Input()
			if sel != "" && mon.Active() && !slices.Contains(names, sel) {
				log.Info("device_disconnected: " + sel)
				sink.StatusLine("input " + sel + " disconnected")
			}
		}
	}()

	keydown := hk.Keydown()
	keyup := hk.Keyup()
	for {
		select {
		case <-keydown:
			toggleMonitor()
			// Drain the release so a held chord does not re-toggle
			select {
			case <-keyup:
			case <-time.After(2 * time.Second):
			}
		case <-monitorToggleChan:
			toggleMonitor()
		case <-toneToggleChan:
			toggleTone()
		case <-deviceSelectChan:
			switchDevice()
		}
	}
}

// aecSource renders engine frames as per-device traces: each input device,
// each output device, and the cancellation residual.
type aecSource struct {
	handle engine.AECHandle
}

func (a *aecSource) Frame(ctx context.Context) ([]monitor.DeviceTrace, error) {
	frame, err := a.handle.Update(ctx)
	if err != nil {
		return nil, err
	}

	inputs := make([]monitor.DeviceChannels, len(frame.InputDevices))
	for i, d := range frame.InputDevices {
		inputs[i] = monitor.DeviceChannels{Name: d.Name, Channels: d.Channels}
	}
	outputs := make([]monitor.DeviceChannels, len(frame.OutputDevices))
	for i, d := range frame.OutputDevices {
		outputs[i] = monitor.DeviceChannels{Name: "out: " + d.Name, Channels: d.Channels}
	}

	traces := monitor.Split(frame.Inputs, frame.InputChannels, inputs)
	traces = append(traces, monitor.Split(frame.Outputs, frame.OutputChannels, outputs)...)
	traces = append(traces, monitor.DeviceTrace{Name: "aec", Samples: frame.AEC})
	return traces, nil
}

func startAEC(mon *monitor.Monitor, eng engine.Engine, gate *permission.Gate) error {
	if !gate.Granted() {
		granted, err := gate.Request(context.Background())
		if err != nil {
			return err
		}
		if !granted {
			return monitor.ErrPermissionDenied
		}
	}
	h, err := eng.EnableAEC(context.Background(), mon.Selection().Input(), mon.Selection().Output())
	if err != nil {
		return err
	}
	mon.StartExternal(context.Background(), &aecSource{handle: h}, h.Close)
	return nil
}
