// Package kved implements a log-structured key/value persistence
// engine for microcontrollers that keep their state in on-chip NOR
// flash. It owns two fixed-size sectors, writes append-only within
// whichever is active, and compacts into the partner sector whenever
// the active one fills up. See package codec for the on-flash layout,
// package scanner for the sector-walking primitives, and package
// recovery for the boot-time consistency pass that makes the engine
// survive arbitrary power loss.
package kved

import (
	"errors"
	"fmt"

	"github.com/kved-go/kved/codec"
	"github.com/kved-go/kved/flash"
	"github.com/kved-go/kved/recovery"
	"github.com/kved-go/kved/scanner"
)

// Engine owns a flash.Driver and a flash.CriticalSection and drives the
// write/compact/recover algorithm over them. It holds no package-level
// state: every method is on *Engine, so a process can host more than
// one (over distinct flash regions) without interference. See
// DefaultEngine/SetDefault for the package-level convenience wrapper.
type Engine struct {
	driver flash.Driver
	cs     flash.CriticalSection

	wordSize int
	sector   flash.Sector
	counter  uint64
	cache    *scanner.Cache
	started  bool
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithCriticalSection overrides the default no-op critical section. Use
// flash.MutexCriticalSection for a hosted build driven from more than
// one goroutine.
func WithCriticalSection(cs flash.CriticalSection) Option {
	return func(e *Engine) { e.cs = cs }
}

// New constructs an Engine over driver. The engine is not usable until
// Init or Format succeeds. By default the critical section is a no-op
// (flash.NopCriticalSection), appropriate for a single-goroutine host
// or bare metal with interrupts already disabled by the caller.
func New(driver flash.Driver, opts ...Option) *Engine {
	e := &Engine{
		driver: driver,
		cs:     flash.NopCriticalSection{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) lastIndex() int {
	return e.driver.SectorSize()/e.wordSize - codec.HeaderSizeWords
}

// Init prepares the driver and runs the two-pass recovery sequence
// (package recovery): Pass A selects the active sector by generation
// counter, Pass B scrubs it for torn writes and duplicate keys left by
// a crash. If neither sector carries a valid header — the medium has
// never been formatted — Init formats it instead, matching the "always
// succeeds" contract Format has in spec.md §4.6.
func (e *Engine) Init() error {
	e.cs.Enter()
	defer e.cs.Leave()

	if err := e.driver.Init(); err != nil {
		return flashFault(err)
	}
	e.wordSize = e.driver.WordSize()

	sector, counter, err := recovery.SelectSector(e.driver)
	if errors.Is(err, recovery.ErrNotFormatted) {
		return e.format()
	}
	if err != nil {
		return flashFault(err)
	}

	if err := recovery.Scrub(e.driver, sector, codec.HeaderSizeWords, e.lastIndex()); err != nil {
		return flashFault(err)
	}

	cache, err := scanner.Scan(e.driver, sector)
	if err != nil {
		return flashFault(err)
	}

	e.sector = sector
	e.counter = counter
	e.cache = cache
	e.started = true
	return nil
}

// Format erases both sectors, writes a fresh header (counter 0,
// signature) to sector A, and rebuilds the control state. It always
// succeeds barring a flash fault.
func (e *Engine) Format() error {
	e.cs.Enter()
	defer e.cs.Leave()
	return e.format()
}

// format is Format's body, callable without re-entering the critical
// section (Init already holds it when the medium needs formatting).
func (e *Engine) format() error {
	e.wordSize = e.driver.WordSize()

	for _, sec := range [...]flash.Sector{flash.SectorA, flash.SectorB} {
		if err := e.driver.Erase(sec); err != nil {
			return flashFault(err)
		}
	}

	if err := e.driver.Write(flash.SectorA, 1, codec.CounterWord(e.wordSize, 0)); err != nil {
		return flashFault(err)
	}
	if err := e.driver.Write(flash.SectorA, 0, codec.SignatureWord(e.wordSize)); err != nil {
		return flashFault(err)
	}

	cache, err := scanner.Scan(e.driver, flash.SectorA)
	if err != nil {
		return flashFault(err)
	}

	e.sector = flash.SectorA
	e.counter = 0
	e.cache = cache
	e.started = true
	return nil
}

// Write stores value under key, creating the entry if it doesn't exist
// or updating it otherwise. Writing the same (key, type, value) twice
// is a no-op the second time: statistics and sector identity are left
// untouched (spec.md §8's idempotent-write law).
func (e *Engine) Write(key string, value codec.Value) error {
	e.cs.Enter()
	defer e.cs.Leave()

	if !e.started {
		return ErrNotStarted
	}

	rec := codec.Record{Key: key, Value: value}
	keyWord, err := codec.EncodeKey(e.wordSize, rec)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if !codec.IsValidKey(e.wordSize, keyWord) {
		return ErrInvalidArgument
	}
	valWord, err := codec.EncodeValue(e.wordSize, rec)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	staleIndex, err := scanner.Find(e.driver, e.sector, e.cache, keyWord)
	if err != nil {
		return flashFault(err)
	}

	if staleIndex != codec.NotFound {
		existing, err := e.driver.Read(e.sector, staleIndex+1)
		if err != nil {
			return flashFault(err)
		}
		if codec.WordsEqual(existing, valWord) {
			return nil
		}
	}

	if e.cache.Stats.Used == e.cache.Stats.Total {
		return ErrOutOfSpace
	}

	if e.cache.Stats.Free == 0 {
		return e.switchSector(keyWord, valWord)
	}

	return e.appendEntry(keyWord, valWord, staleIndex)
}

// appendEntry places (keyWord, valWord) at the active sector's first
// free slot, value before key (spec.md §4.4's ordering rationale: a
// crash between the two writes leaves a lone value behind a FREE key
// word, which Pass B tombstones rather than resurrecting as a record
// with uninitialized contents). If staleIndex is not codec.NotFound, it
// names a now-superseded slot for the same key, tombstoned after the
// new slot is durably in place (append before tombstone).
func (e *Engine) appendEntry(keyWord, valWord []byte, staleIndex int) error {
	index := e.cache.FirstFreeIndex

	if err := e.driver.Write(e.sector, index+1, valWord); err != nil {
		return flashFault(err)
	}
	if err := e.driver.Write(e.sector, index, keyWord); err != nil {
		return flashFault(err)
	}
	e.cache.MarkUsed(index, codec.MaskHeader(keyWord))
	e.cache.Stats.Used++
	e.cache.Stats.Free--
	e.advanceFirstFreeIndex(index)

	if staleIndex != codec.NotFound {
		if err := e.driver.Write(e.sector, staleIndex, codec.DeletedWord(e.wordSize)); err != nil {
			return flashFault(err)
		}
		e.cache.MarkDeleted(staleIndex)
		e.cache.Stats.Used--
		e.cache.Stats.Deleted++
	}

	return nil
}

// advanceFirstFreeIndex updates the cached first-free pointer after
// used is consumed. FREE slots form a contiguous suffix of the entry
// region (invariant 4), so the next free slot — if any remain — is
// always the next entry position after used.
func (e *Engine) advanceFirstFreeIndex(used int) {
	next := used + codec.EntrySizeWords
	if next > e.cache.LastIndex {
		e.cache.FirstFreeIndex = codec.NotFound
		return
	}
	e.cache.FirstFreeIndex = next
}

// Read returns the value stored under key.
func (e *Engine) Read(key string) (codec.Value, error) {
	e.cs.Enter()
	defer e.cs.Leave()

	if !e.started {
		return codec.Value{}, ErrNotStarted
	}

	probe, err := codec.EncodeKeyLookup(e.wordSize, key)
	if err != nil {
		return codec.Value{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	index, err := scanner.Find(e.driver, e.sector, e.cache, probe)
	if err != nil {
		return codec.Value{}, flashFault(err)
	}
	if index == codec.NotFound {
		return codec.Value{}, ErrNotFound
	}

	rec, err := e.readEntryAt(index)
	if err != nil {
		return codec.Value{}, err
	}
	return rec.Value, nil
}

// Delete tombstones the entry stored under key. Deleting an already-
// absent key returns ErrNotFound and leaves state untouched (spec.md
// §8's delete-idempotence law — the second of two successive deletes
// fails rather than silently succeeding).
func (e *Engine) Delete(key string) error {
	e.cs.Enter()
	defer e.cs.Leave()

	if !e.started {
		return ErrNotStarted
	}

	probe, err := codec.EncodeKeyLookup(e.wordSize, key)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	index, err := scanner.Find(e.driver, e.sector, e.cache, probe)
	if err != nil {
		return flashFault(err)
	}
	if index == codec.NotFound {
		return ErrNotFound
	}

	if err := e.driver.Write(e.sector, index, codec.DeletedWord(e.wordSize)); err != nil {
		return flashFault(err)
	}
	e.cache.MarkDeleted(index)
	e.cache.Stats.Used--
	e.cache.Stats.Deleted++
	return nil
}

// ReadByIndex decodes the record at the given word index, which must
// be a USED slot within the active sector's entry region.
func (e *Engine) ReadByIndex(index int) (codec.Record, error) {
	e.cs.Enter()
	defer e.cs.Leave()

	if !e.started {
		return codec.Record{}, ErrNotStarted
	}
	if index < e.cache.FirstIndex || index > e.cache.LastIndex {
		return codec.Record{}, ErrInvalidArgument
	}
	if !e.cache.IsUsed(index) {
		return codec.Record{}, ErrNotFound
	}
	return e.readEntryAt(index)
}

// readEntryAt decodes the record at index without any validation,
// assuming the caller already confirmed the slot is USED and the
// critical section is held.
func (e *Engine) readEntryAt(index int) (codec.Record, error) {
	keyWord, err := e.driver.Read(e.sector, index)
	if err != nil {
		return codec.Record{}, flashFault(err)
	}
	valWord, err := e.driver.Read(e.sector, index+1)
	if err != nil {
		return codec.Record{}, flashFault(err)
	}

	t, key := codec.DecodeKey(keyWord)
	return codec.Record{Key: key, Value: codec.DecodeValue(t, valWord)}, nil
}

// FirstUsedIndex returns the word index of the first USED slot in the
// active sector, or codec.NotFound if none.
func (e *Engine) FirstUsedIndex() int {
	e.cs.Enter()
	defer e.cs.Leave()
	if !e.started {
		return codec.NotFound
	}
	return e.nextUsedFrom(e.cache.FirstIndex)
}

// NextUsedIndex returns the word index of the next USED slot after
// prev, or codec.NotFound past the end. Iteration order is not stable
// across Write/Delete/sector-switch calls.
func (e *Engine) NextUsedIndex(prev int) int {
	e.cs.Enter()
	defer e.cs.Leave()
	if !e.started {
		return codec.NotFound
	}
	return e.nextUsedFrom(prev + codec.EntrySizeWords)
}

func (e *Engine) nextUsedFrom(start int) int {
	for index := start; index <= e.cache.LastIndex; index += codec.EntrySizeWords {
		if e.cache.IsUsed(index) {
			return index
		}
	}
	return codec.NotFound
}

// UsedEntries, FreeEntries, DeletedEntries, and TotalEntries report the
// active sector's slot counts. Each returns 0 before a successful Init
// or Format.
func (e *Engine) UsedEntries() uint16 {
	e.cs.Enter()
	defer e.cs.Leave()
	if !e.started {
		return 0
	}
	return e.cache.Stats.Used
}

func (e *Engine) FreeEntries() uint16 {
	e.cs.Enter()
	defer e.cs.Leave()
	if !e.started {
		return 0
	}
	return e.cache.Stats.Free
}

func (e *Engine) DeletedEntries() uint16 {
	e.cs.Enter()
	defer e.cs.Leave()
	if !e.started {
		return 0
	}
	return e.cache.Stats.Deleted
}

func (e *Engine) TotalEntries() uint16 {
	e.cs.Enter()
	defer e.cs.Leave()
	if !e.started {
		return 0
	}
	return e.cache.Stats.Total
}
