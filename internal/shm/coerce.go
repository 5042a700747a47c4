package shm

import (
	"log"
	"strconv"
)

// CoerceInt32 converts a loosely typed value (JSON numbers decode as
// float64, bridge payloads may carry numeric strings) into an int32
// field value. Unconvertible values degrade to 0 with a logged
// warning; the channel never rejects a telemetry update over a single
// malformed field.
func CoerceInt32(v any, field string) int32 {
	switch n := v.(type) {
	case int32:
		return n
	case int:
		return int32(n)
	case int64:
		return int32(n)
	case uint:
		return int32(n)
	case uint32:
		return int32(n)
	case uint64:
		return int32(n)
	case float64:
		return int32(n)
	case float32:
		return int32(n)
	case bool:
		if n {
			return 1
		}
		return 0
	case string:
		if parsed, err := strconv.ParseFloat(n, 64); err == nil {
			return int32(parsed)
		}
	case nil:
		return 0
	}
	log.Printf("shm: unusable value %v for field %q, writing 0", v, field)
	return 0
}
