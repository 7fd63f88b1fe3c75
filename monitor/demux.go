package monitor

// Split de-interleaves a multi-device sample buffer into one mono trace per
// device. The buffer is organized as frames of totalChannels samples, with
// each device owning a consecutive channel group in declaration order. Each
// device's channels are averaged into a single mono sample per frame.
//
// Split is pure: no state, same inputs always give the same outputs. A
// non-positive totalChannels or empty device list yields nil; samples past
// the end of the buffer read as zero.
func Split(buf []float32, totalChannels int, devices []DeviceChannels) []DeviceTrace {
	if totalChannels <= 0 || len(devices) == 0 {
		return nil
	}

	frames := len(buf) / totalChannels
	out := make([]DeviceTrace, 0, len(devices))
	offset := 0
	for _, d := range devices {
		samples := make([]float32, frames)
		if d.Channels > 0 {
			for f := 0; f < frames; f++ {
				base := f*totalChannels + offset
				var sum float32
				for c := 0; c < d.Channels; c++ {
					if i := base + c; i < len(buf) {
						sum += buf[i]
					}
				}
				samples[f] = sum / float32(d.Channels)
			}
		}
		out = append(out, DeviceTrace{Name: d.Name, Samples: samples})
		offset += d.Channels
	}
	return out
}
