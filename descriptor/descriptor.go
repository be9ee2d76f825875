// Package descriptor implements the GDT/LDT descriptor table service: slot
// allocation, TSS/LDT descriptor writes, and the flush that makes them live.
//
// The wire layout of Entry matches the real x86 8-byte segment descriptor
// bit-for-bit. Nothing in this package touches actual hardware — Table is a
// plain slice guarded by a mutex — but the layout is kept faithful so a
// target port only needs to swap Flush for the real lgdt instruction.
package descriptor

import (
	"fmt"
	"sync"
)

// Selector is a 16-bit GDT/LDT index plus requested privilege level, as
// loaded into a segment register or stored in a TSS's ldt field.
type Selector uint16

// NewSelector builds a selector from a table index and an RPL (0-3).
func NewSelector(index uint16, rpl uint8) Selector {
	return Selector(index<<3) | Selector(rpl&0x3)
}

// Index returns the table index this selector points at.
func (s Selector) Index() uint16 { return uint16(s) >> 3 }

// RPL returns the requested privilege level encoded in the low two bits.
func (s Selector) RPL() uint8 { return uint8(s) & 0x3 }

// Descriptor types relevant to this kernel (x86 system-segment types).
const (
	TypeLDT      = 2
	TypeTSSAvail = 9  // "available" TSS, not currently in use
	TypeTSSBusy  = 11 // "busy" TSS, the CPU is (or was) running it
)

// Entry holds the fields of one 8-byte GDT/LDT descriptor as separate Go
// values; Bytes() packs them into the real x86 wire layout.
type Entry struct {
	LimitLow   uint16
	BaseLow    uint16
	BaseMid    uint8
	DPL        uint8 // 0-3
	Present    bool
	Type       uint8 // TypeLDT, TypeTSSAvail, TypeTSSBusy
	Granularity bool // true = limit counted in 4KiB pages
	OperationSize bool // true = 32-bit
	LimitHigh  uint8 // bits 16:19 of the limit
	BaseHigh   uint8
}

func (e Entry) String() string {
	return fmt.Sprintf("base=%#x limit=%#x type=%d dpl=%d present=%v",
		e.base(), e.limit(), e.Type, e.DPL, e.Present)
}

func (e Entry) base() uint32 {
	return uint32(e.BaseLow) | uint32(e.BaseMid)<<16 | uint32(e.BaseHigh)<<24
}

func (e Entry) limit() uint32 {
	return uint32(e.LimitLow) | uint32(e.LimitHigh&0xF)<<16
}

// SetBase splits a 32-bit linear base address across the three descriptor
// fields that carry it.
func (e *Entry) SetBase(base uint32) {
	e.BaseLow = uint16(base & 0xFFFF)
	e.BaseMid = uint8((base >> 16) & 0xFF)
	e.BaseHigh = uint8((base >> 24) & 0xFF)
}

// SetLimit splits a 20-bit segment limit across the two descriptor fields
// that carry it.
func (e *Entry) SetLimit(limit uint32) {
	e.LimitLow = uint16(limit & 0xFFFF)
	e.LimitHigh = uint8((limit >> 16) & 0xF)
}

// Bytes packs the entry into the 8-byte form the CPU reads from the GDT.
func (e Entry) Bytes() [8]byte {
	access := e.Type & 0xF
	access |= (e.DPL & 0x3) << 5
	if e.Present {
		access |= 1 << 7
	}

	var flags uint8
	flags = e.LimitHigh & 0xF
	if e.OperationSize {
		flags |= 1 << 6
	}
	if e.Granularity {
		flags |= 1 << 7
	}

	var b [8]byte
	b[0] = byte(e.LimitLow)
	b[1] = byte(e.LimitLow >> 8)
	b[2] = byte(e.BaseLow)
	b[3] = byte(e.BaseLow >> 8)
	b[4] = e.BaseMid
	b[5] = access
	b[6] = flags
	b[7] = e.BaseHigh
	return b
}

// Table is the GDT: a slice of descriptor entries plus the bookkeeping to
// hand out fresh selectors. Real hardware has a fixed-size GDT (a few dozen
// entries carved out at boot, followed by one slot per task); this models
// that with a growable slice since the MVP never frees slots (§4.1).
type Table struct {
	mu      sync.Mutex
	entries []Entry
	flushes int
}

// NewTable returns a GDT with indices 0-4 reserved for the slots a real boot
// GDT holds there (null, kernel code, kernel data, user code, user data), so
// that selectors allocated afterward for tasks start at index 5, clear of the
// fixed 0x08/0x10/0x1B/0x23 selectors the task constructor hard-codes. The
// reserved entries are left zero-valued; no code or data descriptor is
// written into them.
func NewTable() *Table {
	t := &Table{entries: make([]Entry, 5)}
	return t
}

// Allocate reserves a fresh GDT slot and returns its selector (RPL 0; callers
// needing a different RPL mask it in themselves when loading the selector
// into a register).
func (t *Table) Allocate() Selector {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := len(t.entries)
	t.entries = append(t.entries, Entry{})
	return NewSelector(uint16(idx), 0)
}

// Entry returns a pointer to the descriptor at sel so callers can populate
// its fields before Flush.
func (t *Table) Entry(sel Selector) *Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := int(sel.Index())
	if idx >= len(t.entries) {
		panic(fmt.Sprintf("descriptor: selector %#x out of range (table has %d entries)", sel, len(t.entries)))
	}
	return &t.entries[idx]
}

// Flush marks the point at which switch code has finished its descriptor
// writes. On real hardware this is lgdt; here entries are visible as soon as
// they are written, and Flush only counts the call.
func (t *Table) Flush() {
	t.mu.Lock()
	t.flushes++
	t.mu.Unlock()
}

// Flushes reports how many times Flush has been called, useful for tests
// asserting the switch path flushed before jumping.
func (t *Table) Flushes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flushes
}

// WriteTSSDescriptor populates the descriptor at sel with the standard shape
// for a task's TSS: base/limit pointing at the TSS image, DPL 0, present,
// 4KiB granularity, and the given busy/available type. This is the same
// shape redoKernelTaskTSS and contextSwitch write in the original kernel.
func (t *Table) WriteTSSDescriptor(sel Selector, tssBase uint32, busy bool) {
	e := t.Entry(sel)
	e.SetBase(tssBase)
	e.SetLimit(0xFFFF)
	e.DPL = 0
	e.Present = true
	e.Granularity = true
	e.OperationSize = true
	if busy {
		e.Type = TypeTSSBusy
	} else {
		e.Type = TypeTSSAvail
	}
}

// WriteLDTDescriptor populates the descriptor at sel for an LDT whose
// backing array starts at base and holds n entries.
func (t *Table) WriteLDTDescriptor(sel Selector, base uint32, n int) {
	e := t.Entry(sel)
	e.SetBase(base)
	e.SetLimit(uint32(n*8 - 1))
	e.DPL = 0
	e.Present = true
	e.Granularity = false
	e.OperationSize = true
	e.Type = TypeLDT
}
