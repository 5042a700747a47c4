package shm

import (
	"encoding/binary"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/neurodeck/mindlink/internal/eeg"
)

// Client is the consumer side of the channel: it attaches to a segment
// some producer created, reads telemetry snapshots, and writes save
// commands back. A client never owns the segment and never unlinks it.
type Client struct {
	name string

	mu  sync.Mutex
	buf []byte
}

// Snapshot is one self-consistent-per-field read of the segment.
// Fields written in the same producer update may still be observed
// across two different updates; individual fields are never torn.
type Snapshot struct {
	Version   int32
	Timestamp int32
	Sample    eeg.Sample
	Event     eeg.Event
	Gyro      eeg.Gyro
	Extend    eeg.Extend

	// Extended layout only; zero on legacy segments.
	MLConfidence    int32
	MLProbabilities map[eeg.Event]int32
}

// OpenClient attaches to an existing named segment. It fails when no
// producer has created one.
func OpenClient(name string) (*Client, error) {
	path := shmDir + name
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("shm: open segment %q: %w", name, err)
	}

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("shm: stat segment %q: %w", name, err)
	}
	size := int(st.Size)
	if size < LegacySize {
		unix.Close(fd)
		return nil, fmt.Errorf("shm: segment %q is %d bytes, below minimum %d", name, size, LegacySize)
	}
	if size > TotalSize {
		size = TotalSize
	}

	buf, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	unix.Close(fd)
	if err != nil {
		return nil, fmt.Errorf("shm: mmap segment %q: %w", name, err)
	}

	return &Client{name: name, buf: buf}, nil
}

// Close unmaps the segment. The segment itself stays for its creator.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buf == nil {
		return nil
	}
	err := unix.Munmap(c.buf)
	c.buf = nil
	return err
}

// Read returns the current telemetry snapshot.
func (c *Client) Read() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Version:   c.word(WordVersion),
		Timestamp: c.word(WordTimestamp),
		Sample: eeg.Sample{
			Attention:  int(c.word(WordAttention)),
			Meditation: int(c.word(WordMeditation)),
			Signal:     int(c.word(WordSignal)),
			Delta:      int(c.word(WordDelta)),
			Theta:      int(c.word(WordTheta)),
			LowAlpha:   int(c.word(WordLowAlpha)),
			HighAlpha:  int(c.word(WordHighAlpha)),
			LowBeta:    int(c.word(WordLowBeta)),
			HighBeta:   int(c.word(WordHighBeta)),
			LowGamma:   int(c.word(WordLowGamma)),
			HighGamma:  int(c.word(WordHighGamma)),
		},
		Event: eeg.EventFromCode(c.word(WordEventCode)),
		Gyro: eeg.Gyro{
			X: int16(c.word(WordGyroX)),
			Y: int16(c.word(WordGyroY)),
			Z: int16(c.word(WordGyroZ)),
		},
		Extend: eeg.Extend{
			AP:       int(c.word(WordAP)),
			Electric: int(c.word(WordElectric)),
			Temp:     int(c.word(WordTemp)),
			Heart:    int(c.word(WordHeart)),
		},
	}

	if len(c.buf) >= TotalSize {
		snap.MLConfidence = c.word(WordMLConfidence)
		snap.MLProbabilities = map[eeg.Event]int32{
			eeg.EventMoveLeft:  c.word(WordMLProbMoveLeft),
			eeg.EventMoveRight: c.word(WordMLProbMoveRight),
			eeg.EventMoveUp:    c.word(WordMLProbMoveUp),
			eeg.EventMoveDown:  c.word(WordMLProbMoveDown),
			eeg.EventStop:      c.word(WordMLProbStop),
		}
	}
	return snap
}

// SendCommand writes a command and raises the pending flag. Callers
// must wait for CommandPending to read 0 before sending another; a
// command written over an unacknowledged one is silently lost.
func (c *Client) SendCommand(cmdType CommandType, event eeg.Event, timestamp int32) error {
	if !event.Valid() {
		return fmt.Errorf("shm: cannot send command with event %q", string(event))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.put(WordCommandType, int32(cmdType))
	c.put(WordCommandEventCode, event.Code())
	c.put(WordCommandTimestamp, timestamp)
	// Flag last, so the producer never reads a half-written command.
	c.put(WordCommandPending, 1)
	return nil
}

// CommandPending reports whether the producer has yet to acknowledge
// the last command.
func (c *Client) CommandPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.word(WordCommandPending) == 1
}

func (c *Client) word(word int) int32 {
	off := word * 4
	if c.buf == nil || off+4 > len(c.buf) {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(c.buf[off : off+4]))
}

func (c *Client) put(word int, v int32) {
	off := word * 4
	if c.buf == nil || off+4 > len(c.buf) {
		return
	}
	binary.LittleEndian.PutUint32(c.buf[off:off+4], uint32(v))
}
