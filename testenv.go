package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"melodeus/audio"
	"melodeus/log"
	"melodeus/monitor"
	"melodeus/permission"
	"melodeus/tone"
)

type countPainter struct {
	paints *atomic.Int64
}

func (p countPainter) Paint([]monitor.DeviceTrace) {
	p.paints.Add(1)
}

// runTestMode drives the monitor from stdin commands against the fake audio
// backend, so integration scripts can exercise the full pipeline headless.
func runTestMode() {
	tone.Disable()
	defer log.Close()

	ctx := audio.NewFakeContext(
		[]audio.DeviceInfo{
			{ID: "mic-a", Name: "Mic A", Channels: 1},
			{ID: "mic-b", Name: "Mic B", Channels: 2},
		},
		[]audio.DeviceInfo{
			{ID: "spk", Name: "Speakers", Channels: 2},
		},
	)
	gate := permission.NewGate(permission.NewCaptureProber(ctx))
	defer gate.Close()

	var paints atomic.Int64
	mon := monitor.New(monitor.Config{
		Audio:     ctx,
		Gate:      gate,
		Scheduler: monitor.NewFrameScheduler(monitor.DefaultFrameInterval),
		Painter:   countPainter{paints: &paints},
		Status:    func(s string) { fmt.Println("STATUS " + s) },
	})

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		switch {
		case cmd == "START":
			if err := mon.Start(context.Background()); err != nil {
				fmt.Println("ERR " + err.Error())
			} else {
				fmt.Println("OK")
			}
		case cmd == "STOP":
			mon.Stop()
			fmt.Println("OK")
		case cmd == "ACTIVE":
			fmt.Println("ACTIVE", mon.Active())
		case cmd == "DEVICES":
			names, err := mon.InputNames()
			if err != nil {
				fmt.Println("ERR " + err.Error())
				break
			}
			fmt.Println("DEVICES " + strings.Join(names, ","))
		case cmd == "PAINTS":
			fmt.Println("PAINTS", paints.Load())
		case cmd == "STATE":
			fmt.Println("STATE " + gate.State().String())
		case cmd == "QUIT":
			mon.Stop()
			return
		case strings.HasPrefix(cmd, "SELECT "):
			if err := mon.SelectInput(context.Background(), cmd[7:]); err != nil {
				fmt.Println("ERR " + err.Error())
			} else {
				fmt.Println("OK")
			}
		case strings.HasPrefix(cmd, "FEED "):
			frames, err := strconv.Atoi(cmd[5:])
			if err != nil || frames < 1 {
				fmt.Println("ERR bad frame count")
				break
			}
			captures := ctx.Captures()
			if len(captures) == 0 {
				fmt.Println("ERR no capture open")
				break
			}
			last := captures[len(captures)-1]
			channels := int(last.Config().Channels)
			data := make([]byte, frames*channels*2)
			for i := range data {
				data[i] = byte(i)
			}
			last.Feed(data, uint32(frames))
			fmt.Println("OK")
		case strings.HasPrefix(cmd, "SLEEP "):
			if ms, err := strconv.Atoi(cmd[6:]); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		}
	}
}
