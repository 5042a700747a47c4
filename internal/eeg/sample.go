package eeg

import "log"

// Band power fields carry 24-bit values from the headset DSP.
const MaxBandPower = 1<<24 - 1

// Sample represents one decoded EEG telemetry frame.
type Sample struct {
	Attention  int `json:"attention"`  // 0-100
	Meditation int `json:"meditation"` // 0-100
	Signal     int `json:"signal"`     // 0-200, 0 = best contact
	Delta      int `json:"delta"`
	Theta      int `json:"theta"`
	LowAlpha   int `json:"low_alpha"`
	HighAlpha  int `json:"high_alpha"`
	LowBeta    int `json:"low_beta"`
	HighBeta   int `json:"high_beta"`
	LowGamma   int `json:"low_gamma"`
	HighGamma  int `json:"high_gamma"`
}

// Gyro represents one orientation delta sample. The device reports
// signed 16-bit values per axis.
type Gyro struct {
	X int16 `json:"x"`
	Y int16 `json:"y"`
	Z int16 `json:"z"`
}

// Extend carries the extended device telemetry that arrives on its own
// frame type: access-point signal, battery level, temperature and
// heart rate.
type Extend struct {
	AP       int `json:"ap"`
	Electric int `json:"electric"`
	Temp     int `json:"temp"`
	Heart    int `json:"heart"`
}

// Clamp forces all fields into their documented ranges. Out-of-range
// values are logged and clamped, never rejected: a single bad sample
// must not halt the pipeline.
func (s Sample) Clamp() Sample {
	s.Attention = clamp("attention", s.Attention, 0, 100)
	s.Meditation = clamp("meditation", s.Meditation, 0, 100)
	s.Signal = clamp("signal", s.Signal, 0, 200)
	s.Delta = clamp("delta", s.Delta, 0, MaxBandPower)
	s.Theta = clamp("theta", s.Theta, 0, MaxBandPower)
	s.LowAlpha = clamp("low_alpha", s.LowAlpha, 0, MaxBandPower)
	s.HighAlpha = clamp("high_alpha", s.HighAlpha, 0, MaxBandPower)
	s.LowBeta = clamp("low_beta", s.LowBeta, 0, MaxBandPower)
	s.HighBeta = clamp("high_beta", s.HighBeta, 0, MaxBandPower)
	s.LowGamma = clamp("low_gamma", s.LowGamma, 0, MaxBandPower)
	s.HighGamma = clamp("high_gamma", s.HighGamma, 0, MaxBandPower)
	return s
}

func clamp(name string, v, lo, hi int) int {
	if v < lo {
		log.Printf("eeg: %s=%d below range, clamped to %d", name, v, lo)
		return lo
	}
	if v > hi {
		log.Printf("eeg: %s=%d above range, clamped to %d", name, v, hi)
		return hi
	}
	return v
}
