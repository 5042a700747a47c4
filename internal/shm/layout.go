// Package shm publishes live telemetry to external consumer processes
// through a fixed-layout shared memory segment and accepts a small
// command protocol back from them.
package shm

// Shared telemetry record layout. Word indices into the segment; byte
// offset is the index times four. All fields are 4-byte aligned int32
// words so a cross-process reader never observes a torn field. These
// values define the wire contract with every consumer process and
// MUST NOT be configurable.

// ---- HEADER ----

// WordVersion holds the protocol version, constant 1.
const WordVersion = 0

// WordTimestamp holds milliseconds since channel start.
const WordTimestamp = 1

// ---- EEG BASIC ----

const WordAttention = 2
const WordMeditation = 3
const WordSignal = 4

// ---- EEG BAND POWERS ----

const WordDelta = 5
const WordTheta = 6
const WordLowAlpha = 7
const WordHighAlpha = 8
const WordLowBeta = 9
const WordHighBeta = 10
const WordLowGamma = 11
const WordHighGamma = 12

// ---- EVENT ----

// WordEventCode holds the current intent: 0=none, 1=ml, 2=mr, 3=mu,
// 4=md, 5=stop. Rewritten on every telemetry update so slow-polling
// consumers never miss a sustained event.
const WordEventCode = 13

// ---- GYRO ----

const WordGyroX = 14
const WordGyroY = 15
const WordGyroZ = 16

// ---- EXTENDED DEVICE DATA ----

const WordAP = 17
const WordElectric = 18
const WordTemp = 19
const WordHeart = 20

// ---- CONSUMER -> PRODUCER COMMANDS ----

// WordCommandPending is 1 while a consumer-written command awaits
// pickup; this process clears it to acknowledge. At most one command
// is in flight: a consumer must wait for 0 before writing another.
const WordCommandPending = 21

// WordCommandType holds the command kind: 1=save-to-history,
// 2=save-for-training.
const WordCommandType = 22

// WordCommandEventCode uses the WordEventCode encoding.
const WordCommandEventCode = 23

// WordCommandTimestamp is consumer-supplied.
const WordCommandTimestamp = 24

// ---- ML CONFIDENCE (extended layout) ----

// Confidence and per-label probabilities, scaled by 1000 and clamped
// to [0, 1000]. Only present when the segment carries the extended
// layout; legacy consumers may still hold 25-word segments.
const WordMLConfidence = 25
const WordMLProbMoveLeft = 26
const WordMLProbMoveRight = 27
const WordMLProbMoveUp = 28
const WordMLProbMoveDown = 29
const WordMLProbStop = 30

// ---- GEOMETRY ----

// TotalWords is the full extended record length.
const TotalWords = 31

// TotalSize is the segment size in bytes created by this process.
const TotalSize = TotalWords * 4

// LegacyWords is the pre-ML record length still found in segments
// created by older producers.
const LegacyWords = 25

// LegacySize is the smallest segment this process will attach to.
const LegacySize = LegacyWords * 4

// DefaultSegmentName is the well-known segment name shared with every
// consumer process. It predates the module rename and must stay fixed.
const DefaultSegmentName = "brainlink_data"
