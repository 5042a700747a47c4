package device

import (
	"io"
	"math"
	"math/rand"
	"time"

	"github.com/neurodeck/mindlink/internal/eeg"
	"github.com/neurodeck/mindlink/internal/protocol"
)

// Simulator generates protocol-correct EEG and gyro frames with smooth
// sine-varied values at the device's ~10 Hz rate, plus a few noise
// bytes between frames so the parser's resynchronization path gets
// exercised even without hardware.
type Simulator struct {
	start    time.Time
	interval time.Duration
	rng      *rand.Rand

	pending []byte
	closed  chan struct{}
}

// NewSimulator returns a source ticking every interval; pass 0 for the
// device-realistic 100ms.
func NewSimulator(interval time.Duration) *Simulator {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Simulator{
		start:    time.Now(),
		interval: interval,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		closed:   make(chan struct{}),
	}
}

// Read blocks until the next tick, then returns the next chunk of
// frame bytes. Returns io.EOF after Close.
func (sim *Simulator) Read(p []byte) (int, error) {
	if len(sim.pending) == 0 {
		select {
		case <-sim.closed:
			return 0, io.EOF
		case <-time.After(sim.interval):
		}
		sim.pending = sim.nextChunk()
	}

	n := copy(p, sim.pending)
	sim.pending = sim.pending[n:]
	return n, nil
}

// Close stops the simulator; pending Reads return io.EOF.
func (sim *Simulator) Close() error {
	select {
	case <-sim.closed:
	default:
		close(sim.closed)
	}
	return nil
}

func (sim *Simulator) nextChunk() []byte {
	elapsed := time.Since(sim.start).Seconds()

	sample := eeg.Sample{
		Attention:  wave(60, 25, elapsed, 0.30),
		Meditation: wave(50, 20, elapsed, 0.20),
		Delta:      wave(120000, 60000, elapsed, 0.11),
		Theta:      wave(80000, 40000, elapsed, 0.17),
		LowAlpha:   wave(50000, 25000, elapsed, 0.23),
		HighAlpha:  wave(30000, 15000, elapsed, 0.29),
		LowBeta:    wave(20000, 10000, elapsed, 0.31),
		HighBeta:   wave(15000, 7000, elapsed, 0.37),
		LowGamma:   wave(10000, 5000, elapsed, 0.41),
		HighGamma:  wave(8000, 4000, elapsed, 0.43),
	}.Clamp()

	gyro := eeg.Gyro{
		X: int16(40 * math.Sin(elapsed)),
		Y: int16(30 * math.Cos(elapsed*0.7)),
		Z: int16(20 * math.Sin(elapsed*1.3)),
	}

	chunk := sim.noise(3)
	chunk = append(chunk, protocol.EncodeEEGFrame(sample)...)
	chunk = append(chunk, sim.noise(2)...)
	chunk = append(chunk, protocol.EncodeGyroFrame(gyro)...)
	return chunk
}

// noise returns n bytes that can never start a frame header.
func (sim *Simulator) noise(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(sim.rng.Intn(0xAA))
	}
	return out
}

func wave(base, amplitude int, elapsed, freq float64) int {
	return base + int(float64(amplitude)*math.Sin(elapsed*freq*2*math.Pi))
}
