package shm

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/neurodeck/mindlink/internal/eeg"
)

// shmDir is where POSIX shared memory objects appear on Linux.
const shmDir = "/dev/shm/"

// Ownership records whether this instance created the segment or
// attached to one that already existed. Only the creating instance may
// unlink the segment on Stop.
type Ownership int

const (
	// OwnershipNone means the channel holds no segment.
	OwnershipNone Ownership = iota
	// Owner created the segment and unlinks it on Stop.
	Owner
	// Attached joined an existing segment and must never unlink it.
	Attached
)

func (o Ownership) String() string {
	switch o {
	case Owner:
		return "owner"
	case Attached:
		return "attached"
	default:
		return "none"
	}
}

type channelState int

const (
	stateStopped channelState = iota
	stateStarting
	stateRunning
	stateStopping
)

// CommandType identifies what a consumer asks the producer to do with
// the current sample.
type CommandType int32

const (
	// CommandSaveHistory appends the latest sample to the pattern
	// history under the command's event label.
	CommandSaveHistory CommandType = 1
	// CommandSaveTraining appends the latest sample to the classifier
	// training set under the command's event label.
	CommandSaveTraining CommandType = 2
)

// Command is one decoded consumer request.
type Command struct {
	Type      CommandType
	Event     eeg.Event
	EventCode int32
	Timestamp int32
}

// MLReport carries classifier output for the extended layout words.
type MLReport struct {
	Confidence    float64
	Probabilities map[eeg.Event]float64
}

// Channel owns one mapped shared memory segment. All segment access is
// serialized by a process-local mutex; cross-process consistency rests
// on every field being an aligned int32 word, so readers may see a
// stale snapshot but never a torn field.
type Channel struct {
	name string

	mu        sync.Mutex
	buf       []byte
	ownership Ownership
	state     channelState
	startedAt time.Time

	updatesSent      uint64
	commandsReceived uint64
}

// NewChannel returns a stopped channel for the named segment. Pass
// DefaultSegmentName unless interoperating with a test segment.
func NewChannel(name string) *Channel {
	return &Channel{name: name}
}

// Name returns the segment name.
func (c *Channel) Name() string { return c.name }

// Ownership reports whether this instance created the mapped segment.
func (c *Channel) Ownership() Ownership {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ownership
}

// Start creates the segment, or attaches to an existing one when it
// cannot be recreated (e.g. a game still maps a segment left over from
// a prior run). On creation all fields are zeroed and the version word
// is set to 1. Only a hard OS-level failure to open any segment at all
// is returned as an error.
func (c *Channel) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateStopped {
		log.Println("shm: channel already running")
		return nil
	}
	c.state = stateStarting

	path := shmDir + c.name

	fd, ownership, err := openSegment(path)
	if err != nil {
		c.state = stateStopped
		return fmt.Errorf("shm: open segment %q: %w", c.name, err)
	}

	if ownership == Owner {
		if err := unix.Ftruncate(fd, TotalSize); err != nil {
			unix.Close(fd)
			unix.Unlink(path)
			c.state = stateStopped
			return fmt.Errorf("shm: size segment %q: %w", c.name, err)
		}
	}

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		unix.Close(fd)
		c.state = stateStopped
		return fmt.Errorf("shm: stat segment %q: %w", c.name, err)
	}
	size := int(st.Size)
	if size < LegacySize {
		unix.Close(fd)
		c.state = stateStopped
		return fmt.Errorf("shm: segment %q is %d bytes, below minimum %d", c.name, size, LegacySize)
	}
	if size > TotalSize {
		size = TotalSize
	}

	buf, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	unix.Close(fd)
	if err != nil {
		c.state = stateStopped
		return fmt.Errorf("shm: mmap segment %q: %w", c.name, err)
	}

	c.buf = buf
	c.ownership = ownership
	c.startedAt = time.Now()

	if ownership == Owner {
		for i := range c.buf {
			c.buf[i] = 0
		}
		c.putWord(WordVersion, 1)
	}

	c.state = stateRunning
	log.Printf("shm: channel started: name=%s size=%d ownership=%s", c.name, len(c.buf), ownership)
	return nil
}

// openSegment tries create-exclusive first, then best-effort
// unlink-and-recreate, and finally attaches to whatever is there.
func openSegment(path string) (int, Ownership, error) {
	fd, err := unix.Open(path, unix.O_CREAT|unix.O_EXCL|unix.O_RDWR, 0o666)
	if err == nil {
		return fd, Owner, nil
	}
	if err != unix.EEXIST {
		return -1, OwnershipNone, err
	}

	// Leftover from a prior crash, or an active producer. Try to
	// reclaim it; fall back to attaching without ownership.
	if uerr := unix.Unlink(path); uerr == nil {
		fd, err = unix.Open(path, unix.O_CREAT|unix.O_EXCL|unix.O_RDWR, 0o666)
		if err == nil {
			log.Printf("shm: reclaimed stale segment %s", path)
			return fd, Owner, nil
		}
	}

	fd, err = unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return -1, OwnershipNone, err
	}
	log.Printf("shm: attached to existing segment %s (not owner)", path)
	return fd, Attached, nil
}

// Stop unmaps the segment and, when this instance created it, unlinks
// it. An attached instance leaves the segment for its creator.
func (c *Channel) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateRunning {
		log.Println("shm: channel not running")
		return nil
	}
	c.state = stateStopping

	var firstErr error
	if c.buf != nil {
		if err := unix.Munmap(c.buf); err != nil {
			firstErr = fmt.Errorf("shm: munmap %q: %w", c.name, err)
		}
		c.buf = nil
	}
	if c.ownership == Owner {
		if err := unix.Unlink(shmDir + c.name); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("shm: unlink %q: %w", c.name, err)
		}
	}

	c.ownership = OwnershipNone
	c.state = stateStopped
	log.Printf("shm: channel stopped: name=%s", c.name)
	return firstErr
}

// WriteTelemetry publishes one classified sample. The event code word
// is rewritten on every call even when unchanged. ML words are written
// only when the mapped segment includes the extended layout; ml may be
// nil when no classifier output exists for this sample.
func (c *Channel) WriteTelemetry(s eeg.Sample, event eeg.Event, ml *MLReport) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateRunning {
		return
	}

	c.putWord(WordTimestamp, int32(time.Since(c.startedAt).Milliseconds()))

	c.putWord(WordAttention, int32(s.Attention))
	c.putWord(WordMeditation, int32(s.Meditation))
	c.putWord(WordSignal, int32(s.Signal))

	c.putWord(WordDelta, int32(s.Delta))
	c.putWord(WordTheta, int32(s.Theta))
	c.putWord(WordLowAlpha, int32(s.LowAlpha))
	c.putWord(WordHighAlpha, int32(s.HighAlpha))
	c.putWord(WordLowBeta, int32(s.LowBeta))
	c.putWord(WordHighBeta, int32(s.HighBeta))
	c.putWord(WordLowGamma, int32(s.LowGamma))
	c.putWord(WordHighGamma, int32(s.HighGamma))

	c.putWord(WordEventCode, event.Code())

	if len(c.buf) >= TotalSize {
		if ml != nil {
			c.putWord(WordMLConfidence, scaleProb(ml.Confidence))
			c.putWord(WordMLProbMoveLeft, scaleProb(ml.Probabilities[eeg.EventMoveLeft]))
			c.putWord(WordMLProbMoveRight, scaleProb(ml.Probabilities[eeg.EventMoveRight]))
			c.putWord(WordMLProbMoveUp, scaleProb(ml.Probabilities[eeg.EventMoveUp]))
			c.putWord(WordMLProbMoveDown, scaleProb(ml.Probabilities[eeg.EventMoveDown]))
			c.putWord(WordMLProbStop, scaleProb(ml.Probabilities[eeg.EventStop]))
		} else {
			c.putWord(WordMLConfidence, 0)
			c.putWord(WordMLProbMoveLeft, 0)
			c.putWord(WordMLProbMoveRight, 0)
			c.putWord(WordMLProbMoveUp, 0)
			c.putWord(WordMLProbMoveDown, 0)
			c.putWord(WordMLProbStop, 0)
		}
	}

	c.updatesSent++
}

// WriteGyro publishes the latest gyro axes.
func (c *Channel) WriteGyro(g eeg.Gyro) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateRunning {
		return
	}
	c.putWord(WordGyroX, int32(g.X))
	c.putWord(WordGyroY, int32(g.Y))
	c.putWord(WordGyroZ, int32(g.Z))
}

// WriteExtend publishes the extended device fields.
func (c *Channel) WriteExtend(e eeg.Extend) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateRunning {
		return
	}
	c.putWord(WordAP, int32(e.AP))
	c.putWord(WordElectric, int32(e.Electric))
	c.putWord(WordTemp, int32(e.Temp))
	c.putWord(WordHeart, int32(e.Heart))
}

// WriteExtendMap publishes extended fields from a loosely typed
// payload, as delivered by the SDK bridge over JSON. Unknown keys are
// ignored; unusable values degrade to 0.
func (c *Channel) WriteExtendMap(values map[string]any) {
	c.WriteExtend(eeg.Extend{
		AP:       int(CoerceInt32(values["ap"], "ap")),
		Electric: int(CoerceInt32(values["electric"], "electric")),
		Temp:     int(CoerceInt32(values["temp"], "temp")),
		Heart:    int(CoerceInt32(values["heart"], "heart")),
	})
}

// ReadCommand polls the inbound command words. It returns nil when no
// command is pending or the pending command is malformed; in every
// pending case the flag is cleared so the channel cannot stall.
func (c *Channel) ReadCommand() *Command {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateRunning {
		return nil
	}
	if c.readWord(WordCommandPending) != 1 {
		return nil
	}

	cmd := Command{
		Type:      CommandType(c.readWord(WordCommandType)),
		EventCode: c.readWord(WordCommandEventCode),
		Timestamp: c.readWord(WordCommandTimestamp),
	}
	cmd.Event = eeg.EventFromCode(cmd.EventCode)

	// Acknowledge regardless of validity.
	c.putWord(WordCommandPending, 0)

	if cmd.Type != CommandSaveHistory && cmd.Type != CommandSaveTraining {
		log.Printf("shm: ignoring command with unknown type %d", cmd.Type)
		return nil
	}
	if cmd.Event == eeg.EventNone {
		log.Printf("shm: ignoring command with empty event (code %d)", cmd.EventCode)
		return nil
	}

	c.commandsReceived++
	return &cmd
}

// RunCommandPoller polls for consumer commands at the given interval
// until ctx is cancelled, invoking handler for each decoded command.
func (c *Channel) RunCommandPoller(ctx context.Context, interval time.Duration, handler func(Command)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if cmd := c.ReadCommand(); cmd != nil {
				handler(*cmd)
			}
		}
	}
}

// Stats returns update/command counters for the monitor surfaces.
func (c *Channel) Stats() (updatesSent, commandsReceived uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updatesSent, c.commandsReceived
}

// putWord writes one aligned int32 word. Must hold c.mu.
func (c *Channel) putWord(word int, v int32) {
	off := word * 4
	if c.buf == nil || off+4 > len(c.buf) {
		return
	}
	binary.LittleEndian.PutUint32(c.buf[off:off+4], uint32(v))
}

// readWord reads one aligned int32 word. Must hold c.mu.
func (c *Channel) readWord(word int) int32 {
	off := word * 4
	if c.buf == nil || off+4 > len(c.buf) {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(c.buf[off : off+4]))
}

// scaleProb converts a [0,1] probability to the ×1000 wire encoding.
func scaleProb(v float64) int32 {
	scaled := int32(math.Round(v * 1000))
	if scaled < 0 {
		return 0
	}
	if scaled > 1000 {
		return 1000
	}
	return scaled
}
