package scanner_test

import (
	"testing"

	"github.com/kved-go/kved/codec"
	"github.com/kved-go/kved/flash"
	"github.com/kved-go/kved/flashsim"
	"github.com/kved-go/kved/scanner"
)

func newSim(t *testing.T) *flashsim.Sim {
	t.Helper()
	sim, err := flashsim.New(4, 64)
	if err != nil {
		t.Fatalf("flashsim.New: %v", err)
	}
	for sec := flash.Sector(0); sec < flash.NumSectors; sec++ {
		if err := sim.Erase(sec); err != nil {
			t.Fatalf("Erase: %v", err)
		}
	}
	return sim
}

func writeEntry(t *testing.T, sim *flashsim.Sim, sector flash.Sector, index int, rec codec.Record) {
	t.Helper()
	keyWord, err := codec.EncodeKey(sim.WordSize(), rec)
	if err != nil {
		t.Fatalf("EncodeKey: %v", err)
	}
	valWord, err := codec.EncodeValue(sim.WordSize(), rec)
	if err != nil {
		t.Fatalf("EncodeValue: %v", err)
	}
	if err := sim.Write(sector, index+1, valWord); err != nil {
		t.Fatalf("write value: %v", err)
	}
	if err := sim.Write(sector, index, keyWord); err != nil {
		t.Fatalf("write key: %v", err)
	}
}

func TestScanClassifiesSlots(t *testing.T) {
	sim := newSim(t)

	writeEntry(t, sim, flash.SectorA, 2, codec.Record{Key: "a", Value: codec.ValueU32(1)})
	writeEntry(t, sim, flash.SectorA, 4, codec.Record{Key: "b", Value: codec.ValueU32(2)})

	// Tombstone the slot at index 6.
	if err := sim.Write(flash.SectorA, 6, codec.DeletedWord(sim.WordSize())); err != nil {
		t.Fatalf("tombstone: %v", err)
	}

	c, err := scanner.Scan(sim, flash.SectorA)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if c.Stats.Used != 2 {
		t.Fatalf("Used = %d, want 2", c.Stats.Used)
	}
	if c.Stats.Deleted != 1 {
		t.Fatalf("Deleted = %d, want 1", c.Stats.Deleted)
	}
	if c.Stats.Free != c.Stats.Total-3 {
		t.Fatalf("Free = %d, want %d", c.Stats.Free, c.Stats.Total-3)
	}
	if c.FirstFreeIndex != 8 {
		t.Fatalf("FirstFreeIndex = %d, want 8", c.FirstFreeIndex)
	}
	if !c.IsUsed(2) || !c.IsUsed(4) {
		t.Fatal("expected indices 2 and 4 to be USED")
	}
	if c.IsUsed(6) {
		t.Fatal("expected index 6 (tombstoned) to not be USED")
	}
}

func TestFindLocatesUsedKey(t *testing.T) {
	sim := newSim(t)

	writeEntry(t, sim, flash.SectorA, 2, codec.Record{Key: "a", Value: codec.ValueU32(1)})
	writeEntry(t, sim, flash.SectorA, 4, codec.Record{Key: "b", Value: codec.ValueU32(2)})

	c, err := scanner.Scan(sim, flash.SectorA)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	bKey, err := codec.EncodeKey(sim.WordSize(), codec.Record{Key: "b", Value: codec.ValueU32(0)})
	if err != nil {
		t.Fatalf("EncodeKey: %v", err)
	}

	index, err := scanner.Find(sim, flash.SectorA, c, bKey)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if index != 4 {
		t.Fatalf("Find(b) = %d, want 4", index)
	}

	missingKey, err := codec.EncodeKey(sim.WordSize(), codec.Record{Key: "z", Value: codec.ValueU32(0)})
	if err != nil {
		t.Fatalf("EncodeKey: %v", err)
	}
	index, err = scanner.Find(sim, flash.SectorA, c, missingKey)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if index != codec.NotFound {
		t.Fatalf("Find(missing) = %d, want NotFound", index)
	}
}

func TestMarkUsedAndMarkDeletedUpdateCache(t *testing.T) {
	sim := newSim(t)
	c, err := scanner.Scan(sim, flash.SectorA)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	writeEntry(t, sim, flash.SectorA, 2, codec.Record{Key: "a", Value: codec.ValueU32(1)})
	aKey, err := codec.EncodeKey(sim.WordSize(), codec.Record{Key: "a", Value: codec.ValueU32(0)})
	if err != nil {
		t.Fatalf("EncodeKey: %v", err)
	}
	c.MarkUsed(2, codec.MaskHeader(aKey))

	if !c.IsUsed(2) {
		t.Fatal("expected index 2 to be USED after MarkUsed")
	}

	c.MarkDeleted(2)
	if c.IsUsed(2) {
		t.Fatal("expected index 2 to not be USED after MarkDeleted")
	}
}
