package descriptor

import "testing"

func TestAllocateSequential(t *testing.T) {
	tbl := NewTable()
	first := tbl.Allocate()
	second := tbl.Allocate()

	if first.Index() == second.Index() {
		t.Fatalf("Allocate() returned duplicate index %d", first.Index())
	}
	if second.Index() != first.Index()+1 {
		t.Fatalf("Allocate() index = %d, want %d", second.Index(), first.Index()+1)
	}
}

func TestEntryRoundTrip(t *testing.T) {
	tbl := NewTable()
	sel := tbl.Allocate()

	e := tbl.Entry(sel)
	e.SetBase(0xDEADBE00)
	e.SetLimit(0xFFFF)

	got := tbl.Entry(sel)
	if got.base() != 0xDEADBE00 {
		t.Fatalf("base() = %#x, want %#x", got.base(), 0xDEADBE00)
	}
	if got.limit() != 0xFFFF {
		t.Fatalf("limit() = %#x, want %#x", got.limit(), 0xFFFF)
	}
}

func TestWriteTSSDescriptorBusyVsAvailable(t *testing.T) {
	tbl := NewTable()
	sel := tbl.Allocate()

	tbl.WriteTSSDescriptor(sel, 0x1000, false)
	if got := tbl.Entry(sel).Type; got != TypeTSSAvail {
		t.Fatalf("Type = %d, want TypeTSSAvail", got)
	}

	tbl.WriteTSSDescriptor(sel, 0x1000, true)
	if got := tbl.Entry(sel).Type; got != TypeTSSBusy {
		t.Fatalf("Type = %d, want TypeTSSBusy", got)
	}
}

func TestWriteLDTDescriptor(t *testing.T) {
	tbl := NewTable()
	sel := tbl.Allocate()

	tbl.WriteLDTDescriptor(sel, 0x2000, 4)
	e := tbl.Entry(sel)
	if e.Type != TypeLDT {
		t.Fatalf("Type = %d, want TypeLDT", e.Type)
	}
	if e.limit() != 4*8-1 {
		t.Fatalf("limit() = %d, want %d", e.limit(), 4*8-1)
	}
}

func TestFlushCountsCalls(t *testing.T) {
	tbl := NewTable()
	if tbl.Flushes() != 0 {
		t.Fatalf("Flushes() = %d, want 0", tbl.Flushes())
	}
	tbl.Flush()
	tbl.Flush()
	if tbl.Flushes() != 2 {
		t.Fatalf("Flushes() = %d, want 2", tbl.Flushes())
	}
}

func TestEntryOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("Entry() on out-of-range selector did not panic")
		}
	}()
	tbl := NewTable()
	tbl.Entry(NewSelector(999, 0))
}

func TestBytesPacksAccessByte(t *testing.T) {
	var e Entry
	e.Type = TypeTSSBusy
	e.DPL = 0
	e.Present = true
	e.Granularity = true
	e.OperationSize = true
	e.SetLimit(0xFFFF)

	b := e.Bytes()
	access := b[5]
	if access&0xF != TypeTSSBusy {
		t.Fatalf("access type nibble = %d, want %d", access&0xF, TypeTSSBusy)
	}
	if access&0x80 == 0 {
		t.Fatalf("present bit not set in access byte %#x", access)
	}

	flags := b[6]
	if flags&0x80 == 0 {
		t.Fatalf("granularity bit not set in flags byte %#x", flags)
	}
}
