package task

import (
	"testing"

	"github.com/MSylvia/serenity/descriptor"
	"github.com/MSylvia/serenity/memzone"
)

func newTestTask(t *testing.T, ring Ring, entry EntryPoint) (*Task, memzone.Manager, *descriptor.Table) {
	t.Helper()
	mgr := memzone.NewHostManager(0x00100000)
	gdt := descriptor.NewTable()
	tsk, err := New(mgr, gdt, 1, "test", Handle(1), ring, entry)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return tsk, mgr, gdt
}

func TestNewRing0Task(t *testing.T) {
	tsk, _, _ := newTestTask(t, Ring0, EntryPoint{Kernel: func() {}})

	if tsk.TSS.Cs != KernelCS || tsk.TSS.Ss != KernelSS {
		t.Fatalf("cs/ss = %#x/%#x, want %#x/%#x", tsk.TSS.Cs, tsk.TSS.Ss, KernelCS, KernelSS)
	}
	if tsk.TSS.Eflags != defaultEflags {
		t.Fatalf("Eflags = %#x, want %#x", tsk.TSS.Eflags, defaultEflags)
	}
	if tsk.TSS.Esp == 0 {
		t.Fatalf("Esp = 0, want nonzero stack top")
	}
	if tsk.TSS.Esp&7 != 0 {
		t.Fatalf("Esp = %#x, not 8-byte aligned", tsk.TSS.Esp)
	}
	if len(tsk.OwnedRegions()) != 0 {
		t.Fatalf("ring-0 task has %d regions, want 0", len(tsk.OwnedRegions()))
	}
}

func TestNewRing3TaskAllocatesRegionsAndLDT(t *testing.T) {
	code := []byte{0x90, 0x90, 0xF4} // nop, nop, hlt
	tsk, _, gdt := newTestTask(t, Ring3, EntryPoint{Code: code})

	if tsk.TSS.Cs != UserCS || tsk.TSS.Ss != UserSS {
		t.Fatalf("cs/ss = %#x/%#x, want %#x/%#x", tsk.TSS.Cs, tsk.TSS.Ss, UserCS, UserSS)
	}
	if (tsk.TSS.Cs & 3) != (tsk.TSS.Ss & 3) {
		t.Fatalf("cs RPL %d != ss RPL %d", tsk.TSS.Cs&3, tsk.TSS.Ss&3)
	}
	regions := tsk.OwnedRegions()
	if len(regions) != 2 {
		t.Fatalf("len(regions) = %d, want 2 (code, stack)", len(regions))
	}
	if regions[0].Name != "code" || regions[1].Name != "stack" {
		t.Fatalf("region names = %q, %q, want code, stack", regions[0].Name, regions[1].Name)
	}
	if uint32(regions[0].Base) != uint32(tsk.TSS.Eip) {
		t.Fatalf("Eip = %#x, want code region base %#x", tsk.TSS.Eip, regions[0].Base)
	}
	if tsk.TSS.Esp0 == 0 || tsk.TSS.Ss0 != KernelDS {
		t.Fatalf("ring0 reentry stack not set up: ss0=%#x esp0=%#x", tsk.TSS.Ss0, tsk.TSS.Esp0)
	}
	if tsk.LDTSelector() == 0 {
		t.Fatalf("LDTSelector() = 0, want a non-zero GDT slot")
	}
	if tsk.TSS.LDT != tsk.LDTSelector() {
		t.Fatalf("TSS.LDT = %#x, want %#x", tsk.TSS.LDT, tsk.LDTSelector())
	}
	if gdt.Flushes() == 0 {
		t.Fatalf("Flushes() = 0, want LDT install to have flushed the GDT")
	}
}

func TestRegionsDoNotOverlapAcrossAllocations(t *testing.T) {
	tsk, _, _ := newTestTask(t, Ring3, EntryPoint{Code: []byte{0xF4}})
	regions := tsk.OwnedRegions()
	if regions[0].Overlaps(regions[1]) {
		t.Fatalf("code and stack regions overlap: %s vs %s", regions[0], regions[1])
	}
}

func TestBlockRequiresRunning(t *testing.T) {
	tsk, _, _ := newTestTask(t, Ring0, EntryPoint{Kernel: func() {}})
	tsk.State = Runnable
	if err := tsk.Block(BlockedSleep); err == nil {
		t.Fatalf("Block() error = nil, want error when not Running")
	}
}

func TestBlockUnblockRoundTrip(t *testing.T) {
	tsk, _, _ := newTestTask(t, Ring0, EntryPoint{Kernel: func() {}})
	tsk.State = Running
	if err := tsk.Block(BlockedSleep); err != nil {
		t.Fatalf("Block() error = %v", err)
	}
	if tsk.State != BlockedSleep {
		t.Fatalf("State = %s, want blocked-sleep", tsk.State)
	}
	if err := tsk.Unblock(); err != nil {
		t.Fatalf("Unblock() error = %v", err)
	}
	if tsk.State != Runnable {
		t.Fatalf("State = %s, want runnable", tsk.State)
	}
}

func TestUnblockRequiresBlocked(t *testing.T) {
	tsk, _, _ := newTestTask(t, Ring0, EntryPoint{Kernel: func() {}})
	tsk.State = Running
	if err := tsk.Unblock(); err == nil {
		t.Fatalf("Unblock() error = nil, want error when not blocked")
	}
}

func TestOpenFileReturnsAppendIndex(t *testing.T) {
	tsk, _, _ := newTestTask(t, Ring0, EntryPoint{Kernel: func() {}})
	fd0 := tsk.OpenFile(nil)
	fd1 := tsk.OpenFile(nil)
	if fd0 != 0 || fd1 != 1 {
		t.Fatalf("fds = %d, %d, want 0, 1", fd0, fd1)
	}
}

func TestDestroyReleasesZones(t *testing.T) {
	tsk, _, _ := newTestTask(t, Ring3, EntryPoint{Code: []byte{0xF4}})
	if err := tsk.Destroy(); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	if len(tsk.OwnedRegions()) != 0 {
		t.Fatalf("OwnedRegions() after Destroy = %d, want 0", len(tsk.OwnedRegions()))
	}
}

func TestMailboxAcceptsFrom(t *testing.T) {
	var mb Mailbox
	mb.SrcFilter = AnyHandle
	if !mb.AcceptsFrom(Handle(5)) {
		t.Fatalf("AcceptsFrom() = false for Any filter, want true")
	}

	mb.SrcFilter = Handle(5)
	if mb.AcceptsFrom(Handle(6)) {
		t.Fatalf("AcceptsFrom() = true for mismatched handle, want false")
	}
	if !mb.AcceptsFrom(Handle(5)) {
		t.Fatalf("AcceptsFrom() = false for matching handle, want true")
	}

	mb.Msg.Valid = true
	if mb.AcceptsFrom(Handle(5)) {
		t.Fatalf("AcceptsFrom() = true with a message already pending, want false")
	}
}
