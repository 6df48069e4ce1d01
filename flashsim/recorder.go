package flashsim

import (
	"fmt"
	"hash/crc32"

	"github.com/kved-go/kved/flash"
)

// writeKind distinguishes the two medium-level operations a Recorder can
// observe, so a replay can reproduce erases as well as word writes.
type writeKind int

const (
	writeKindErase writeKind = iota
	writeKindWord
)

// record is one entry in a Recorder's write log.
type record struct {
	kind      writeKind
	sector    flash.Sector
	wordIndex int
	word      []byte
	crc       uint32
}

func (r record) checksum() uint32 {
	c := crc32.NewIEEE()
	fmt.Fprintf(c, "%d:%d:%d:%x", r.kind, r.sector, r.wordIndex, r.word)
	return c.Sum32()
}

// Recorder wraps a Sim and logs every successful Erase/Write against it,
// in order, so a test can later replay an arbitrary prefix of the stream
// to simulate a power loss mid-operation.
type Recorder struct {
	sim *Sim
	log []record
}

// NewRecorder wraps sim for recording. sim should be freshly created and
// not yet mutated.
func NewRecorder(sim *Sim) *Recorder {
	return &Recorder{sim: sim}
}

// Init delegates to the wrapped Sim's Init, which is itself a no-op:
// see Sim.Init. A test wanting the initial erasure recorded as part of
// the replayable write log should call Erase explicitly — that is a
// deliberate medium mutation, unlike Init.
func (r *Recorder) Init() error { return r.sim.Init() }

func (r *Recorder) SectorSize() int { return r.sim.SectorSize() }
func (r *Recorder) WordSize() int   { return r.sim.WordSize() }
func (r *Recorder) Read(sec flash.Sector, wordIndex int) ([]byte, error) {
	return r.sim.Read(sec, wordIndex)
}

func (r *Recorder) Erase(sec flash.Sector) error {
	if err := r.sim.Erase(sec); err != nil {
		return err
	}
	rec := record{kind: writeKindErase, sector: sec}
	rec.crc = rec.checksum()
	r.log = append(r.log, rec)
	return nil
}

func (r *Recorder) Write(sec flash.Sector, wordIndex int, word []byte) error {
	if err := r.sim.Write(sec, wordIndex, word); err != nil {
		return err
	}
	cp := make([]byte, len(word))
	copy(cp, word)
	rec := record{kind: writeKindWord, sector: sec, wordIndex: wordIndex, word: cp}
	rec.crc = rec.checksum()
	r.log = append(r.log, rec)
	return nil
}

// Len returns the number of recorded writes so far.
func (r *Recorder) Len() int { return len(r.log) }

// Replay rebuilds a fresh Sim with the same word/sector size as the
// recorder's underlying Sim, applying only the first n recorded writes.
// n may range from 0 (nothing applied — an all-erased medium is NOT
// implied, the replayed Sim starts zero-valued like a real Sim does
// before Init) to Len() (fully replays the recorded stream). Passing n
// < Len() simulates power loss partway through the flash-write stream.
func (r *Recorder) Replay(n int) (*Sim, error) {
	if n < 0 || n > len(r.log) {
		return nil, fmt.Errorf("flashsim: replay count %d out of range [0,%d]", n, len(r.log))
	}

	out, err := New(r.sim.WordSize(), r.sim.SectorSize())
	if err != nil {
		return nil, err
	}

	for i := 0; i < n; i++ {
		rec := r.log[i]
		if rec.crc != rec.checksum() {
			return nil, fmt.Errorf("flashsim: corrupt write log entry %d", i)
		}
		switch rec.kind {
		case writeKindErase:
			if err := out.Erase(rec.sector); err != nil {
				return nil, err
			}
		case writeKindWord:
			if err := out.Write(rec.sector, rec.wordIndex, rec.word); err != nil {
				return nil, err
			}
		}
	}

	return out, nil
}

var _ flash.Driver = (*Recorder)(nil)
