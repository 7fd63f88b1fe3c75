package doctor

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"

	"melodeus/audio"
	"melodeus/hotkey"
	"melodeus/permission"
	"melodeus/tone"
)

// Run executes interactive diagnostic checks and returns an exit code
// (0=all pass, 1=any fail).
func Run(deviceName string) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("melodeus doctor - interactive system diagnostics")
	fmt.Println("================================================")

	var report []string
	note := func(format string, args ...any) {
		report = append(report, fmt.Sprintf(format, args...))
	}

	allPass := true

	ctx, ok := checkAudio(note)
	if !ok {
		allPass = false
	} else {
		defer ctx.Close()
		if !checkPermission(ctx, note) {
			allPass = false
		}
		if allPass && !checkCapture(ctx, deviceName, note) {
			allPass = false
		}
		if allPass && !checkTone(note) {
			allPass = false
		}
	}
	if allPass && !checkHotkey(note) {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
	} else {
		fmt.Println("Some checks failed. See details above.")
	}

	offerReportCopy(report)

	if allPass {
		return 0
	}
	return 1
}

func checkAudio(note func(string, ...any)) (audio.Context, bool) {
	fmt.Println()
	fmt.Println("[1/5] Audio backend")

	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		note("audio backend: FAIL (%v)", err)
		return nil, false
	}

	inputs, err := ctx.Devices(audio.Input)
	if err != nil {
		fmt.Printf("  FAIL: cannot list input devices: %v\n", err)
		note("input enumeration: FAIL (%v)", err)
		ctx.Close()
		return nil, false
	}
	outputs, _ := ctx.Devices(audio.Output)

	fmt.Printf("  PASS: %d input(s), %d output(s)\n", len(inputs), len(outputs))
	for _, d := range inputs {
		fmt.Printf("    in:  %s (%dch)\n", d.Name, d.Channels)
		note("input: %s (%dch)", d.Name, d.Channels)
	}
	for _, d := range outputs {
		fmt.Printf("    out: %s (%dch)\n", d.Name, d.Channels)
		note("output: %s (%dch)", d.Name, d.Channels)
	}
	if len(inputs) == 0 {
		fmt.Println("  FAIL: no capture devices found")
		note("capture devices: none")
		ctx.Close()
		return nil, false
	}
	return ctx, true
}

func checkPermission(ctx audio.Context, note func(string, ...any)) bool {
	fmt.Println()
	fmt.Println("[2/5] Capture permission")

	gate := permission.NewGate(permission.NewPlatformProber(ctx))
	defer gate.Close()

	granted, err := gate.Request(context.Background())
	if err != nil {
		fmt.Printf("  FAIL: permission request: %v\n", err)
		note("permission: FAIL (%v)", err)
		return false
	}
	if !granted {
		fmt.Println("  FAIL: capture permission denied")
		note("permission: denied")
		return false
	}
	fmt.Println("  PASS: capture permission granted")
	note("permission: granted")
	return true
}

func checkCapture(ctx audio.Context, deviceName string, note func(string, ...any)) bool {
	fmt.Println()
	fmt.Println("[3/5] Microphone level")

	devices, err := ctx.Devices(audio.Input)
	if err != nil || len(devices) == 0 {
		fmt.Println("  FAIL: no capture devices")
		return false
	}

	var device *audio.DeviceInfo
	if deviceName != "" {
		for i := range devices {
			if devices[i].Name == deviceName {
				device = &devices[i]
				break
			}
		}
		if device == nil {
			fmt.Printf("  WARN: device %q not found, using default\n", deviceName)
		}
	}
	if device != nil {
		fmt.Printf("  Using device: %s\n", device.Name)
	} else {
		fmt.Println("  Using system default device")
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("  Press Enter and speak for 3 seconds...")
	reader.ReadString('\n')

	peak, err := measurePeak(ctx, device, 3*time.Second)
	if err != nil {
		fmt.Printf("  FAIL: recording error: %v\n", err)
		note("microphone: FAIL (%v)", err)
		return false
	}

	fmt.Printf("  Peak level: %.3f\n", peak)
	note("microphone peak: %.3f", peak)
	if peak < 0.01 {
		fmt.Println("  FAIL: captured only silence (muted mic?)")
		return false
	}
	fmt.Println("  PASS: signal captured")
	return true
}

// measurePeak records for d and returns the largest absolute sample,
// normalized to [0, 1].
func measurePeak(ctx audio.Context, device *audio.DeviceInfo, d time.Duration) (float64, error) {
	capture, err := ctx.NewCapture(device, audio.CaptureConfig{SampleRate: 16000, Channels: 1})
	if err != nil {
		return 0, err
	}
	defer capture.Close()

	var mu sync.Mutex
	var peak float64

	capture.SetCallback(func(data []byte, _ uint32) {
		mu.Lock()
		defer mu.Unlock()
		for i := 0; i+1 < len(data); i += 2 {
			v := float64(int16(binary.LittleEndian.Uint16(data[i:]))) / 32767.0
			if v < 0 {
				v = -v
			}
			if v > peak {
				peak = v
			}
		}
	})

	if err := capture.Start(); err != nil {
		return 0, err
	}

	fmt.Print("  Recording")
	deadline := time.After(d)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-deadline:
			break loop
		case <-ticker.C:
			fmt.Print(".")
		}
	}
	fmt.Println(" done")

	capture.ClearCallback()
	capture.Stop()

	mu.Lock()
	defer mu.Unlock()
	return peak, nil
}

func checkTone(note func(string, ...any)) bool {
	fmt.Println()
	fmt.Println("[4/5] Tone playback")

	player, err := tone.Start(tone.DefaultFreq)
	if err != nil {
		fmt.Printf("  FAIL: cannot start tone: %v\n", err)
		note("tone: FAIL (%v)", err)
		return false
	}

	fmt.Println("  Playing a 440 Hz tone for 2 seconds...")
	time.Sleep(2 * time.Second)
	player.Stop()

	confirmReader := bufio.NewReader(os.Stdin)
	fmt.Print("  Did you hear the tone? [y/n]: ")
	confirm, _ := confirmReader.ReadString('\n')
	confirm = strings.TrimSpace(strings.ToLower(confirm))
	if confirm != "y" && confirm != "yes" {
		fmt.Println("  FAIL: tone not confirmed")
		note("tone: not heard")
		return false
	}
	fmt.Println("  PASS: tone verified by user")
	note("tone: heard")
	return true
}

func checkHotkey(note func(string, ...any)) bool {
	fmt.Println()
	fmt.Println("[5/5] Hotkey detection")

	info, err := hotkey.Diagnose()
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		note("hotkey: FAIL (%v)", err)
		return false
	}
	fmt.Println("  " + info)
	note("hotkey: %s", info)

	fmt.Println("Press Ctrl+Shift+Space...")

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		fmt.Printf("  FAIL: could not register hotkey: %v\n", err)
		note("hotkey: FAIL (%v)", err)
		return false
	}
	defer hk.Unregister()

	select {
	case <-hk.Keydown():
		fmt.Println("  PASS: hotkey detected")
		note("hotkey: detected")
		// Wait for keyup so the release does not leak into the next prompt
		select {
		case <-hk.Keyup():
		case <-time.After(5 * time.Second):
		}
		resetTerminal()
		return true
	case <-time.After(10 * time.Second):
		fmt.Println("  FAIL: timeout waiting for hotkey")
		note("hotkey: timeout")
		return false
	}
}

func offerReportCopy(report []string) {
	if len(report) == 0 {
		return
	}
	resetTerminal()
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Copy diagnostic report to clipboard? [y/n]: ")
	confirm, _ := reader.ReadString('\n')
	confirm = strings.TrimSpace(strings.ToLower(confirm))
	if confirm != "y" && confirm != "yes" {
		return
	}
	if err := clipboard.WriteAll(strings.Join(report, "\n")); err != nil {
		fmt.Printf("  clipboard copy failed: %v\n", err)
		return
	}
	fmt.Println("  Report copied.")
}
