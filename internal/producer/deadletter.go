package producer

import (
	"encoding/base64"
	"fmt"
	"math"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// DeadLetterLog is an append-only, newline-delimited base64 log of payloads
// that could not be produced. Appends are serialised by an exclusive lock;
// nothing else touches the underlying file.
type DeadLetterLog struct {
	mu     sync.Mutex
	writer *lumberjack.Logger
}

// OpenDeadLetterLog opens (creating if necessary) the dead-letter log at
// path. Rotation is effectively disabled since the contract is a literal
// append-only log, not a rotating one: lumberjack treats a zero MaxSize as
// its 100 MB default, so MaxSize is set far beyond any realistic file size.
func OpenDeadLetterLog(path string) *DeadLetterLog {
	return &DeadLetterLog{
		writer: &lumberjack.Logger{
			Filename: path,
			MaxSize:  math.MaxInt32,
		},
	}
}

// Append writes base64(payload) followed by a newline, under the log's
// exclusive lock.
func (d *DeadLetterLog) Append(payload []byte) error {
	line := base64.StdEncoding.EncodeToString(payload) + "\n"

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.writer.Write([]byte(line)); err != nil {
		return fmt.Errorf("dead letter log: write: %w", err)
	}
	return nil
}

// Close releases the underlying file handle.
func (d *DeadLetterLog) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writer.Close()
}
