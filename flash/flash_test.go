package flash_test

import (
	"testing"

	"github.com/kved-go/kved/flash"
)

func TestSectorOther(t *testing.T) {
	if flash.SectorA.Other() != flash.SectorB {
		t.Fatalf("SectorA.Other() = %v, want SectorB", flash.SectorA.Other())
	}
	if flash.SectorB.Other() != flash.SectorA {
		t.Fatalf("SectorB.Other() = %v, want SectorA", flash.SectorB.Other())
	}
}

func TestSectorString(t *testing.T) {
	if flash.SectorA.String() != "A" {
		t.Fatalf("SectorA.String() = %q, want %q", flash.SectorA.String(), "A")
	}
	if flash.SectorB.String() != "B" {
		t.Fatalf("SectorB.String() = %q, want %q", flash.SectorB.String(), "B")
	}
}

func TestMutexCriticalSectionSerializesSequentialUse(t *testing.T) {
	var cs flash.MutexCriticalSection
	cs.Enter()
	cs.Leave()
	cs.Enter()
	cs.Leave()
}

func TestNopCriticalSectionIsHarmless(t *testing.T) {
	var cs flash.NopCriticalSection
	cs.Enter()
	cs.Enter()
	cs.Leave()
	cs.Leave()
}
