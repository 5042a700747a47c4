package protocol

import (
	"math/rand"
	"testing"

	"github.com/neurodeck/mindlink/internal/eeg"
)

func sampleFixture() eeg.Sample {
	return eeg.Sample{
		Attention:  78,
		Meditation: 41,
		Delta:      123456,
		Theta:      98765,
		LowAlpha:   45678,
		HighAlpha:  34567,
		LowBeta:    23456,
		HighBeta:   12345,
		LowGamma:   6789,
		HighGamma:  4321,
	}
}

func TestFeed_DecodesEEGFrame(t *testing.T) {
	want := sampleFixture()
	p := NewParser()

	got, gyro := p.Feed(EncodeEEGFrame(want))
	if got == nil {
		t.Fatal("expected a sample, got nil")
	}
	if gyro != nil {
		t.Fatalf("unexpected gyro: %+v", gyro)
	}
	if *got != want {
		t.Fatalf("decoded sample mismatch:\n got %+v\nwant %+v", *got, want)
	}
}

func TestFeed_DecodesGyroFrame(t *testing.T) {
	want := eeg.Gyro{X: -120, Y: 45, Z: -32768}
	p := NewParser()

	sample, got := p.Feed(EncodeGyroFrame(want))
	if sample != nil {
		t.Fatalf("unexpected sample: %+v", sample)
	}
	if got == nil {
		t.Fatal("expected a gyro, got nil")
	}
	if *got != want {
		t.Fatalf("decoded gyro mismatch: got %+v want %+v", *got, want)
	}
}

func TestFeed_ByteAtATime(t *testing.T) {
	want := sampleFixture()
	frame := EncodeEEGFrame(want)
	p := NewParser()

	var got *eeg.Sample
	for _, b := range frame {
		s, _ := p.Feed([]byte{b})
		if s != nil {
			got = s
		}
	}
	if got == nil {
		t.Fatal("frame fed byte by byte never decoded")
	}
	if *got != want {
		t.Fatalf("decoded sample mismatch: got %+v want %+v", *got, want)
	}
}

func TestFeed_SkipsLeadingNoise(t *testing.T) {
	want := sampleFixture()
	chunk := append([]byte{0x13, 0xAA, 0x20, 0x01, 0x99}, EncodeEEGFrame(want)...)
	p := NewParser()

	got, _ := p.Feed(chunk)
	if got == nil {
		t.Fatal("expected a sample after noise, got nil")
	}
	if *got != want {
		t.Fatalf("decoded sample mismatch: got %+v want %+v", *got, want)
	}
}

func TestFeed_LatestFrameWins(t *testing.T) {
	old := sampleFixture()
	newer := sampleFixture()
	newer.Attention = 12
	newer.Delta = 777

	chunk := append(EncodeEEGFrame(old), EncodeEEGFrame(newer)...)
	p := NewParser()

	got, _ := p.Feed(chunk)
	if got == nil {
		t.Fatal("expected a sample, got nil")
	}
	if *got != newer {
		t.Fatalf("expected the later frame, got %+v", *got)
	}
}

func TestFeed_FrameNotReportedTwice(t *testing.T) {
	p := NewParser()
	if s, _ := p.Feed(EncodeEEGFrame(sampleFixture())); s == nil {
		t.Fatal("expected a sample on first feed")
	}
	if s, g := p.Feed([]byte{0x01, 0x02, 0x03}); s != nil || g != nil {
		t.Fatalf("stale frame reported again: sample=%+v gyro=%+v", s, g)
	}
}

func TestFeed_TruncatedFrameCompletesLater(t *testing.T) {
	want := sampleFixture()
	frame := EncodeEEGFrame(want)
	p := NewParser()

	if s, _ := p.Feed(frame[:20]); s != nil {
		t.Fatalf("truncated frame decoded early: %+v", s)
	}
	got, _ := p.Feed(frame[20:])
	if got == nil {
		t.Fatal("completed frame never decoded")
	}
	if *got != want {
		t.Fatalf("decoded sample mismatch: got %+v want %+v", *got, want)
	}
}

func TestFeed_RandomNoiseDecodesNothing(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	p := NewParser()

	for i := 0; i < 100; i++ {
		chunk := make([]byte, 64)
		for j := range chunk {
			// Anything below the header byte can never start a frame.
			chunk[j] = byte(rng.Intn(0xAA))
		}
		if s, g := p.Feed(chunk); s != nil || g != nil {
			t.Fatalf("noise decoded on iteration %d: sample=%+v gyro=%+v", i, s, g)
		}
	}
}

func TestFeed_BufferStaysBounded(t *testing.T) {
	p := NewParser()

	// Filler that never matches a header, so nothing is consumed. The
	// retention cap must keep the buffer from growing without bound.
	filler := make([]byte, 1024)
	for i := range filler {
		filler[i] = 0x55
	}
	for i := 0; i < 100; i++ {
		p.Feed(filler)
	}
	if len(p.buf) > maxBuffer {
		t.Fatalf("buffer grew to %d, cap is %d", len(p.buf), maxBuffer)
	}
}

func TestFeed_InterleavedFrames(t *testing.T) {
	wantSample := sampleFixture()
	wantGyro := eeg.Gyro{X: 5, Y: -6, Z: 7}

	chunk := append(EncodeGyroFrame(wantGyro), 0x01, 0x02)
	chunk = append(chunk, EncodeEEGFrame(wantSample)...)

	p := NewParser()
	sample, gyro := p.Feed(chunk)
	if sample == nil || gyro == nil {
		t.Fatalf("expected both kinds, got sample=%v gyro=%v", sample, gyro)
	}
	if *sample != wantSample {
		t.Fatalf("sample mismatch: got %+v", *sample)
	}
	if *gyro != wantGyro {
		t.Fatalf("gyro mismatch: got %+v", *gyro)
	}
}
