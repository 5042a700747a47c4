package shm

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/neurodeck/mindlink/internal/eeg"
)

func requireShm(t *testing.T) {
	t.Helper()
	if _, err := os.Stat(shmDir); err != nil {
		t.Skipf("shared memory dir unavailable: %v", err)
	}
}

// startTestChannel starts a channel on a unique segment name and wires
// cleanup so a failing test never leaks a segment.
func startTestChannel(t *testing.T) *Channel {
	t.Helper()
	requireShm(t)

	name := fmt.Sprintf("mindlink_test_%d_%d", os.Getpid(), time.Now().UnixNano())
	c := NewChannel(name)
	if err := c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { c.Stop() })
	return c
}

func TestChannel_StartCreatesAndStopRemoves(t *testing.T) {
	c := startTestChannel(t)

	if got := c.Ownership(); got != Owner {
		t.Fatalf("ownership=%s, want owner", got)
	}

	st, err := os.Stat(shmDir + c.Name())
	if err != nil {
		t.Fatalf("segment file missing: %v", err)
	}
	if st.Size() != TotalSize {
		t.Fatalf("segment size=%d, want %d", st.Size(), TotalSize)
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, err := os.Stat(shmDir + c.Name()); !os.IsNotExist(err) {
		t.Fatalf("owner stop must unlink the segment, stat err=%v", err)
	}
}

func TestChannel_StartTwiceIsNoOp(t *testing.T) {
	c := startTestChannel(t)
	if err := c.Start(); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if got := c.Ownership(); got != Owner {
		t.Fatalf("ownership changed on second start: %s", got)
	}
}

func TestChannel_TelemetryVisibleToClient(t *testing.T) {
	c := startTestChannel(t)

	sample := eeg.Sample{
		Attention: 61, Meditation: 48, Signal: 26,
		Delta: 123456, Theta: 7890, LowAlpha: 11, HighAlpha: 22,
		LowBeta: 33, HighBeta: 44, LowGamma: 55, HighGamma: 66,
	}
	ml := &MLReport{
		Confidence: 0.87,
		Probabilities: map[eeg.Event]float64{
			eeg.EventMoveLeft:  0.87,
			eeg.EventMoveRight: 0.05,
			eeg.EventStop:      0.08,
		},
	}
	c.WriteTelemetry(sample, eeg.EventMoveLeft, ml)
	c.WriteGyro(eeg.Gyro{X: -12, Y: 34, Z: -56})
	c.WriteExtend(eeg.Extend{AP: 1, Electric: 88, Temp: 36, Heart: 72})

	client, err := OpenClient(c.Name())
	if err != nil {
		t.Fatalf("open client: %v", err)
	}
	defer client.Close()

	snap := client.Read()
	if snap.Version != 1 {
		t.Fatalf("version=%d, want 1", snap.Version)
	}
	if snap.Sample != sample {
		t.Fatalf("sample mismatch:\n got %+v\nwant %+v", snap.Sample, sample)
	}
	if snap.Event != eeg.EventMoveLeft {
		t.Fatalf("event=%q, want ml", string(snap.Event))
	}
	if (snap.Gyro != eeg.Gyro{X: -12, Y: 34, Z: -56}) {
		t.Fatalf("gyro mismatch: %+v", snap.Gyro)
	}
	if (snap.Extend != eeg.Extend{AP: 1, Electric: 88, Temp: 36, Heart: 72}) {
		t.Fatalf("extend mismatch: %+v", snap.Extend)
	}
	if snap.MLConfidence != 870 {
		t.Fatalf("ml confidence=%d, want 870", snap.MLConfidence)
	}
	if snap.MLProbabilities[eeg.EventMoveRight] != 50 {
		t.Fatalf("mr probability=%d, want 50", snap.MLProbabilities[eeg.EventMoveRight])
	}
	if snap.MLProbabilities[eeg.EventMoveUp] != 0 {
		t.Fatalf("unset probability=%d, want 0", snap.MLProbabilities[eeg.EventMoveUp])
	}
}

func TestChannel_NilMLReportZeroesWords(t *testing.T) {
	c := startTestChannel(t)

	ml := &MLReport{Confidence: 1, Probabilities: map[eeg.Event]float64{eeg.EventStop: 1}}
	c.WriteTelemetry(eeg.Sample{}, eeg.EventStop, ml)
	c.WriteTelemetry(eeg.Sample{}, eeg.EventNone, nil)

	client, err := OpenClient(c.Name())
	if err != nil {
		t.Fatalf("open client: %v", err)
	}
	defer client.Close()

	snap := client.Read()
	if snap.Event != eeg.EventNone {
		t.Fatalf("event=%q, want none", string(snap.Event))
	}
	if snap.MLConfidence != 0 || snap.MLProbabilities[eeg.EventStop] != 0 {
		t.Fatalf("ml words not cleared: conf=%d stop=%d", snap.MLConfidence, snap.MLProbabilities[eeg.EventStop])
	}
}

func TestChannel_CommandRoundTrip(t *testing.T) {
	c := startTestChannel(t)

	client, err := OpenClient(c.Name())
	if err != nil {
		t.Fatalf("open client: %v", err)
	}
	defer client.Close()

	if cmd := c.ReadCommand(); cmd != nil {
		t.Fatalf("unexpected command before send: %+v", cmd)
	}

	if err := client.SendCommand(CommandSaveTraining, eeg.EventStop, 12345); err != nil {
		t.Fatalf("send command: %v", err)
	}
	if !client.CommandPending() {
		t.Fatal("command must be pending after send")
	}

	cmd := c.ReadCommand()
	if cmd == nil {
		t.Fatal("producer saw no command")
	}
	if cmd.Type != CommandSaveTraining || cmd.Event != eeg.EventStop || cmd.Timestamp != 12345 {
		t.Fatalf("command fields wrong: %+v", cmd)
	}

	// Acknowledged: the flag is down and nothing is re-delivered.
	if client.CommandPending() {
		t.Fatal("pending flag not cleared after read")
	}
	if cmd := c.ReadCommand(); cmd != nil {
		t.Fatalf("command delivered twice: %+v", cmd)
	}

	// A second command after the first was cleared must come through
	// intact, not as a stale re-read of the first.
	if err := client.SendCommand(CommandSaveHistory, eeg.EventMoveUp, 777); err != nil {
		t.Fatalf("send second command: %v", err)
	}
	cmd = c.ReadCommand()
	if cmd == nil {
		t.Fatal("second command never arrived")
	}
	if cmd.Type != CommandSaveHistory || cmd.Event != eeg.EventMoveUp || cmd.Timestamp != 777 {
		t.Fatalf("second command fields wrong: %+v", cmd)
	}
}

func TestChannel_EventChangeLeavesOtherWordsAlone(t *testing.T) {
	c := startTestChannel(t)

	sample := eeg.Sample{Attention: 42, Meditation: 37, Delta: 999}
	c.WriteTelemetry(sample, eeg.EventMoveLeft, nil)

	before := make([]byte, len(c.buf))
	copy(before, c.buf)

	c.WriteTelemetry(sample, eeg.EventStop, nil)

	for w := 0; w < TotalWords; w++ {
		// The timestamp advances on every write; everything else
		// besides the event code must be byte-identical.
		if w == WordTimestamp || w == WordEventCode {
			continue
		}
		off := w * 4
		for i := off; i < off+4; i++ {
			if c.buf[i] != before[i] {
				t.Fatalf("word %d changed: byte %d went %#x -> %#x", w, i, before[i], c.buf[i])
			}
		}
	}
	if got := c.readWord(WordEventCode); got != eeg.EventStop.Code() {
		t.Fatalf("event code=%d, want %d", got, eeg.EventStop.Code())
	}
}

func TestChannel_AttachedStopLeavesSegment(t *testing.T) {
	c := startTestChannel(t)

	// Force the attached role: an instance that merely attached must
	// never unlink the creator's segment on Stop.
	c.mu.Lock()
	c.ownership = Attached
	c.mu.Unlock()

	if err := c.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	path := shmDir + c.Name()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("attached stop removed the segment: %v", err)
	}
	os.Remove(path)
}

func TestChannel_MalformedCommandAcknowledgedAndDropped(t *testing.T) {
	c := startTestChannel(t)

	client, err := OpenClient(c.Name())
	if err != nil {
		t.Fatalf("open client: %v", err)
	}
	defer client.Close()

	// Unknown type, written word by word like a buggy consumer would.
	client.put(WordCommandType, 99)
	client.put(WordCommandEventCode, eeg.EventStop.Code())
	client.put(WordCommandPending, 1)

	if cmd := c.ReadCommand(); cmd != nil {
		t.Fatalf("malformed command delivered: %+v", cmd)
	}
	if client.CommandPending() {
		t.Fatal("malformed command must still be acknowledged")
	}

	// Valid type but an event code outside the label set.
	client.put(WordCommandType, int32(CommandSaveHistory))
	client.put(WordCommandEventCode, 42)
	client.put(WordCommandPending, 1)

	if cmd := c.ReadCommand(); cmd != nil {
		t.Fatalf("command with bad event delivered: %+v", cmd)
	}
	if client.CommandPending() {
		t.Fatal("bad-event command must still be acknowledged")
	}
}

func TestChannel_SendCommandRejectsInvalidEvent(t *testing.T) {
	c := startTestChannel(t)

	client, err := OpenClient(c.Name())
	if err != nil {
		t.Fatalf("open client: %v", err)
	}
	defer client.Close()

	if err := client.SendCommand(CommandSaveHistory, eeg.EventNone, 0); err == nil {
		t.Fatal("expected an error for an unlabeled event")
	}
	if err := client.SendCommand(CommandSaveHistory, eeg.Event("jump"), 0); err == nil {
		t.Fatal("expected an error for an unknown event")
	}
}

func TestChannel_WritesBeforeStartAreNoOps(t *testing.T) {
	c := NewChannel("mindlink_never_started")

	c.WriteTelemetry(eeg.Sample{Attention: 50}, eeg.EventMoveLeft, nil)
	c.WriteGyro(eeg.Gyro{X: 1})
	c.WriteExtend(eeg.Extend{Heart: 60})

	if cmd := c.ReadCommand(); cmd != nil {
		t.Fatalf("stopped channel returned a command: %+v", cmd)
	}
	updates, commands := c.Stats()
	if updates != 0 || commands != 0 {
		t.Fatalf("stats moved on a stopped channel: %d/%d", updates, commands)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("stop on stopped channel: %v", err)
	}
}

func TestOpenClient_LegacySegmentHasNoMLWords(t *testing.T) {
	requireShm(t)

	name := fmt.Sprintf("mindlink_legacy_%d_%d", os.Getpid(), time.Now().UnixNano())
	path := shmDir + name
	if err := os.WriteFile(path, make([]byte, LegacySize), 0o666); err != nil {
		t.Fatalf("create legacy segment: %v", err)
	}
	t.Cleanup(func() { os.Remove(path) })

	client, err := OpenClient(name)
	if err != nil {
		t.Fatalf("open client: %v", err)
	}
	defer client.Close()

	snap := client.Read()
	if snap.MLProbabilities != nil {
		t.Fatalf("legacy segment reported ML words: %+v", snap.MLProbabilities)
	}
}

func TestOpenClient_MissingSegment(t *testing.T) {
	requireShm(t)
	if _, err := OpenClient("mindlink_no_such_segment"); err == nil {
		t.Fatal("expected an error for a missing segment")
	}
}

func TestScaleProb(t *testing.T) {
	cases := []struct {
		in   float64
		want int32
	}{
		{0, 0},
		{0.5, 500},
		{1, 1000},
		{1.7, 1000},
		{-0.2, 0},
		{0.8765, 877},
	}
	for _, c := range cases {
		if got := scaleProb(c.in); got != c.want {
			t.Fatalf("scaleProb(%g)=%d, want %d", c.in, got, c.want)
		}
	}
}
