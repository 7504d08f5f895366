package observ

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"ember/internal/asyncrt"
)

// RecordSchema is bumped whenever RunReport changes shape.
const RecordSchema uint16 = 1

// ErrSchemaMismatch is returned when a record was written by another version.
var ErrSchemaMismatch = errors.New("run record schema mismatch")

// Counters mirrors asyncrt.Stats with serialization tags.
type Counters struct {
	Spawns      uint64 `msgpack:"spawns"`
	Polls       uint64 `msgpack:"polls"`
	Claims      uint64 `msgpack:"claims"`
	Parks       uint64 `msgpack:"parks"`
	Wakes       uint64 `msgpack:"wakes"`
	Requeues    uint64 `msgpack:"requeues"`
	Completions uint64 `msgpack:"completions"`
	TimerFires  uint64 `msgpack:"timer_fires"`
	MaxBatch    uint64 `msgpack:"max_batch"`
	Live        int64  `msgpack:"live"`
}

// CountersFrom copies executor stats.
func CountersFrom(s asyncrt.Stats) Counters {
	return Counters{
		Spawns:      s.Spawns,
		Polls:       s.Polls,
		Claims:      s.Claims,
		Parks:       s.Parks,
		Wakes:       s.Wakes,
		Requeues:    s.Requeues,
		Completions: s.Completions,
		TimerFires:  s.TimerFires,
		MaxBatch:    s.MaxBatch,
		Live:        s.Live,
	}
}

// RunReport summarises one executor run.
type RunReport struct {
	Schema    uint16            `msgpack:"schema"`
	Scenario  string            `msgpack:"scenario"`
	Executor  string            `msgpack:"executor"`
	Parker    string            `msgpack:"parker"`
	Clock     string            `msgpack:"clock"`
	Fuzz      bool              `msgpack:"fuzz"`
	Seed      uint64            `msgpack:"seed"`
	Started   time.Time         `msgpack:"started"`
	Wall      time.Duration     `msgpack:"wall"`
	VirtualMs uint64            `msgpack:"virtual_ms"`
	Counters  Counters          `msgpack:"counters"`
	Metrics   map[string]uint64 `msgpack:"metrics,omitempty"`
	Phases    Report            `msgpack:"phases"`
	Err       string            `msgpack:"err,omitempty"`
}

// PollsPerClaim is the mean batch size.
func (r *RunReport) PollsPerClaim() float64 {
	if r.Counters.Claims == 0 {
		return 0
	}
	return float64(r.Counters.Polls) / float64(r.Counters.Claims)
}

// PollsPerSecond is the wall-clock poll rate.
func (r *RunReport) PollsPerSecond() float64 {
	if r.Wall <= 0 {
		return 0
	}
	return float64(r.Counters.Polls) / r.Wall.Seconds()
}

// WriteRecord encodes r into path atomically: a temp file in the same
// directory is renamed over the target.
func WriteRecord(path string, r *RunReport) (err error) {
	if r.Schema == 0 {
		r.Schema = RecordSchema
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".ember-record-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	if err = msgpack.NewEncoder(f).Encode(r); err != nil {
		return fmt.Errorf("encode run record: %w", err)
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// ReadRecord decodes a record written by WriteRecord.
func ReadRecord(path string) (*RunReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r RunReport
	if err := msgpack.NewDecoder(f).Decode(&r); err != nil {
		return nil, fmt.Errorf("%s: decode run record: %w", path, err)
	}
	if r.Schema != RecordSchema {
		return nil, fmt.Errorf("%s: %w (got %d, want %d)", path, ErrSchemaMismatch, r.Schema, RecordSchema)
	}
	return &r, nil
}
