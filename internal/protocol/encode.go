package protocol

import "github.com/neurodeck/mindlink/internal/eeg"

// Frame encoders, used by the device simulator and by tests. The
// encoded layout mirrors exactly what the parser expects.

// EncodeEEGFrame builds a complete EEG frame for the given sample.
// Attention and meditation occupy single bytes, the eight band powers
// are 3-byte big-endian fields at fixed offsets. Signal quality is not
// carried on this frame type.
func EncodeEEGFrame(s eeg.Sample) []byte {
	frame := make([]byte, 4+eegPayloadLen)
	frame[0] = headerByte
	frame[1] = headerByte
	frame[2] = typeEEGHigh
	frame[3] = typeEEGLow

	payload := frame[4:]
	payload[0] = 0x00
	payload[1] = 0x83
	payload[2] = byte(s.Attention)
	payload[4] = byte(s.Meditation)

	bands := [8]int{
		s.Delta, s.Theta,
		s.LowAlpha, s.HighAlpha,
		s.LowBeta, s.HighBeta,
		s.LowGamma, s.HighGamma,
	}
	for i, v := range bands {
		putBE24(payload[6+3*i:], uint32(v))
	}
	return frame
}

// EncodeGyroFrame builds a complete gyro frame for the given axes.
func EncodeGyroFrame(g eeg.Gyro) []byte {
	frame := make([]byte, 4+gyroPayloadLen)
	frame[0] = headerByte
	frame[1] = headerByte
	frame[2] = typeGyroHigh
	frame[3] = typeGyroLow
	putBE16(frame[4:], g.X)
	putBE16(frame[6:], g.Y)
	putBE16(frame[8:], g.Z)
	return frame
}

func putBE24(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

func putBE16(b []byte, v int16) {
	b[0] = byte(uint16(v) >> 8)
	b[1] = byte(uint16(v))
}
