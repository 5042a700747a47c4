// Package protocol decodes the headset's binary Bluetooth-serial
// framing into EEG and gyro samples.
//
// Frames start with the two-byte header AA AA followed by a type code:
// 20 02 for the long EEG frame, 07 03 for the gyro frame. The transport
// delivers bytes in arbitrary chunks with continuous noise between
// frames, so the parser scans byte by byte and silently skips anything
// it cannot decode.
package protocol

import "github.com/neurodeck/mindlink/internal/eeg"

const (
	headerByte = 0xAA

	typeEEGHigh = 0x20
	typeEEGLow  = 0x02

	typeGyroHigh = 0x07
	typeGyroLow  = 0x03

	// eegPayloadLen is the fixed number of bytes sliced after the
	// EEG type code. Only offsets up to 30 carry decoded fields; the
	// tail is checksum/reserved space we do not interpret.
	eegPayloadLen = 50

	// gyroPayloadLen covers the three signed big-endian 16-bit axes.
	gyroPayloadLen = 6

	// maxBuffer bounds the resynchronization buffer. At the device's
	// ~1KB/s rate this keeps roughly the last two seconds; frames
	// split across an older boundary are lost, which is acceptable
	// under continuous streaming.
	maxBuffer = 2000
)

// Parser is a stateful decoder over an append-only byte stream. It is
// not safe for concurrent use; feed it from a single goroutine.
type Parser struct {
	buf []byte
}

// NewParser returns an empty parser.
func NewParser() *Parser {
	return &Parser{}
}

// Feed appends p to the internal buffer and scans for frames. It
// returns at most one sample of each kind: the most recently
// fully-matched one if several are present. Malformed or truncated
// candidates are skipped without error; a truncated frame decodes once
// its remaining bytes arrive on a later Feed.
func (pr *Parser) Feed(p []byte) (*eeg.Sample, *eeg.Gyro) {
	pr.buf = append(pr.buf, p...)

	sample, eegEnd := pr.scanEEG()
	gyro, gyroEnd := pr.scanGyro()

	// Drop everything through the last decoded frame so it is not
	// reported again on the next Feed. Bytes after that point may hold
	// a truncated frame and are kept.
	consumed := eegEnd
	if gyroEnd > consumed {
		consumed = gyroEnd
	}
	pr.buf = pr.buf[consumed:]

	if len(pr.buf) > maxBuffer {
		pr.buf = pr.buf[len(pr.buf)-maxBuffer:]
	}

	return sample, gyro
}

func (pr *Parser) scanEEG() (*eeg.Sample, int) {
	var last *eeg.Sample
	var end int

	for idx := 0; idx+4 <= len(pr.buf); idx++ {
		if pr.buf[idx] != headerByte || pr.buf[idx+1] != headerByte ||
			pr.buf[idx+2] != typeEEGHigh || pr.buf[idx+3] != typeEEGLow {
			continue
		}

		start := idx + 4
		if start+eegPayloadLen > len(pr.buf) {
			// Not enough trailing bytes yet; skip this candidate.
			continue
		}
		data := pr.buf[start : start+eegPayloadLen]

		s := eeg.Sample{
			Attention:  int(data[2]),
			Meditation: int(data[4]),
			Delta:      int(be24(data[6:9])),
			Theta:      int(be24(data[9:12])),
			LowAlpha:   int(be24(data[12:15])),
			HighAlpha:  int(be24(data[15:18])),
			LowBeta:    int(be24(data[18:21])),
			HighBeta:   int(be24(data[21:24])),
			LowGamma:   int(be24(data[24:27])),
			HighGamma:  int(be24(data[27:30])),
		}
		s = s.Clamp()
		last = &s
		end = start + eegPayloadLen
	}

	return last, end
}

func (pr *Parser) scanGyro() (*eeg.Gyro, int) {
	var last *eeg.Gyro
	var end int

	for idx := 0; idx+4 <= len(pr.buf); idx++ {
		if pr.buf[idx] != headerByte || pr.buf[idx+1] != headerByte ||
			pr.buf[idx+2] != typeGyroHigh || pr.buf[idx+3] != typeGyroLow {
			continue
		}

		start := idx + 4
		if start+gyroPayloadLen > len(pr.buf) {
			continue
		}
		data := pr.buf[start : start+gyroPayloadLen]

		g := eeg.Gyro{
			X: be16(data[0:2]),
			Y: be16(data[2:4]),
			Z: be16(data[4:6]),
		}
		last = &g
		end = start + gyroPayloadLen
	}

	return last, end
}

// be24 decodes a 3-byte big-endian unsigned value.
func be24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

// be16 decodes a 2-byte big-endian signed value.
func be16(b []byte) int16 {
	return int16(uint16(b[0])<<8 | uint16(b[1]))
}
