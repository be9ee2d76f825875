package task

import (
	"fmt"
	"sync"

	"github.com/MSylvia/serenity/descriptor"
	"github.com/MSylvia/serenity/memzone"
)

const (
	// DefaultStackSize is the 16KiB every task gets for its primary stack
	// (kernel stack for ring-0 tasks, user stack region for ring-3 tasks).
	DefaultStackSize = 16 * 1024
	// CodeRegionSize is the single page a ring-3 task's entry bytes are
	// seeded into; entries straddling a page boundary are not handled
	// (documented gap, carried forward unchanged).
	CodeRegionSize = memzone.PageSize
	// nextRegionBase is where the first auto-placed region of a task is put;
	// left unverified for all intended ring-3 images, as in the original.
	nextRegionBase = memzone.LinearAddress(0x600000)
	// numLDTEntries is the fixed LDT size every ring-3 task is allocated,
	// though the entries are never populated (Open Questions).
	numLDTEntries = 4
)

var (
	kernelHeapMu     sync.Mutex
	kernelHeapCursor uint32 = 0xC0000000 // arbitrary kernel-heap base
)

// allocateKernelStack models kmalloc for a task's leaked ring-0 stack: an
// out-of-scope collaborator (§1) we stand in for with a monotonic cursor
// rather than real backing memory, since ring-0 stacks are never paged.
func allocateKernelStack(size uint32) (top uint32) {
	kernelHeapMu.Lock()
	defer kernelHeapMu.Unlock()
	base := kernelHeapCursor
	kernelHeapCursor += size + memzone.GuardBytes
	return (base + size) &^ 7 // 8-byte aligned top
}

// EntryPoint is what a task is constructed to run: exactly one of Kernel (a
// ring-0 function value) or Code (ring-3 bytes already resident, which this
// constructor seeds into a fresh zone) must be set.
type EntryPoint struct {
	Kernel func()
	Code   []byte
}

// Task is the unit of scheduling (§3).
type Task struct {
	Pid    int
	Name   string
	Handle Handle
	UID    uint32
	Ring   Ring

	TSS      TSS
	Selector descriptor.Selector
	// tssAddr is a synthetic "physical address" of this task's TSS image,
	// standing in for &t.tss on real hardware (where the descriptor's base
	// field really does point at the TSS struct). A host build has no
	// meaningful 32-bit address for a Go struct, so this is handed out from
	// the same kernel-heap cursor used for stacks.
	tssAddr uint32

	ldtSelector descriptor.Selector
	ldtEntries  [numLDTEntries]descriptor.Entry

	regions    []*memzone.Region
	nextRegion memzone.LinearAddress

	kernelStackTop uint32 // ring-3 only: top of the separate ring-0 re-entry stack

	State      State
	TicksLeft  int
	WakeupTime uint64

	Mailbox Mailbox

	files []FileHandle

	entry EntryPoint
}

// New constructs a task per §4.3. pid 0 is reserved for the kernel idle task
// and the caller must not insert it into a runqueue.
func New(mgr memzone.Manager, gdt *descriptor.Table, pid int, name string, handle Handle, ring Ring, entry EntryPoint) (*Task, error) {
	t := &Task{
		Pid:        pid,
		Name:       name,
		Handle:     handle,
		Ring:       ring,
		State:      Runnable,
		nextRegion: nextRegionBase,
		entry:      entry,
	}

	t.TSS.Eflags = defaultEflags
	t.TSS.Cr3 = mgr.PageDirectoryBase()

	if ring == Ring3 {
		if err := t.allocateLDT(gdt); err != nil {
			return nil, err
		}
	}

	var ds, ss, cs uint32
	if ring == Ring0 {
		cs, ds, ss = KernelCS, KernelDS, KernelSS
	} else {
		cs, ds, ss = UserCS, UserDS, UserSS
	}
	t.TSS.Cs, t.TSS.Ds, t.TSS.Es, t.TSS.Fs, t.TSS.Gs, t.TSS.Ss = cs, ds, ds, ds, ds, ss
	if (cs & 3) != (ss & 3) {
		return nil, fmt.Errorf("task: cs RPL %d != ss RPL %d", cs&3, ss&3)
	}

	if ring == Ring0 {
		if entry.Kernel == nil {
			return nil, fmt.Errorf("task: ring-0 task %q has no entry function", name)
		}
		// A ring-0 entry is a Go function value, not a linear address; there
		// is no meaningful uint32 to store here on a host build. Eip stays
		// zero; the function is kept and is returned by EntryFunc.
		top := allocateKernelStack(DefaultStackSize)
		t.TSS.Esp = top
	} else {
		codeRegion, err := t.allocateRegion(mgr, CodeRegionSize, "code")
		if err != nil {
			return nil, err
		}
		code := entry.Code
		if len(code) > CodeRegionSize {
			code = code[:CodeRegionSize]
		}
		if err := mgr.Seed(codeRegion.Zone, code); err != nil {
			return nil, fmt.Errorf("task: seed code region: %w", err)
		}
		t.TSS.Eip = uint32(codeRegion.Base)

		stackRegion, err := t.allocateRegion(mgr, DefaultStackSize, "stack")
		if err != nil {
			return nil, err
		}
		t.TSS.Esp = uint32(stackRegion.End()) &^ 7

		t.kernelStackTop = allocateKernelStack(DefaultStackSize)
		t.TSS.Ss0 = KernelDS
		t.TSS.Esp0 = t.kernelStackTop
	}

	t.TSS.Ss2 = uint32(pid) // preserved ring-2 SS pid hack, see tss.go
	t.tssAddr = allocateKernelStack(0) // hand out a unique synthetic address; no stack actually reserved

	return t, nil
}

// TSSAddress returns the synthetic base address the descriptor table writes
// into this task's TSS descriptor.
func (t *Task) TSSAddress() uint32 { return t.tssAddr }

func (t *Task) allocateLDT(gdt *descriptor.Table) error {
	t.ldtSelector = gdt.Allocate()
	gdt.WriteLDTDescriptor(t.ldtSelector, 0, numLDTEntries)
	gdt.Flush()
	t.TSS.LDT = t.ldtSelector
	return nil
}

func (t *Task) allocateRegion(mgr memzone.Manager, size uint32, name string) (*memzone.Region, error) {
	zone, err := mgr.CreateZone(size)
	if err != nil {
		return nil, fmt.Errorf("task: allocate region %q: %w", name, err)
	}
	zone.AddHolder()
	r := &memzone.Region{Base: t.nextRegion, Size: size, Zone: zone, Name: name}
	t.regions = append(t.regions, r)
	t.nextRegion = t.nextRegion.Offset(size).Offset(memzone.GuardBytes)
	return r, nil
}

// OwnedRegions implements memzone.RegionOwner.
func (t *Task) OwnedRegions() []*memzone.Region { return t.regions }

// EntryFunc returns the ring-0 entry point, or nil for ring-3 tasks.
func (t *Task) EntryFunc() func() { return t.entry.Kernel }

// LDTSelector returns the selector of this task's LDT (zero value if ring-0).
func (t *Task) LDTSelector() descriptor.Selector { return t.ldtSelector }

// Destroy drops the task's references to its zones, releasing any whose
// last holder this was (§4.7 teardown, §9 "no cycles" note).
func (t *Task) Destroy() error {
	var firstErr error
	for _, r := range t.regions {
		if r.Zone == nil {
			continue
		}
		if err := r.Zone.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	t.regions = nil
	return firstErr
}

// OpenFile appends a file handle and returns its index, the fd returned to
// userspace by sys$open (§3: "the index returned on open is the next append
// position").
func (t *Task) OpenFile(fh FileHandle) int {
	t.files = append(t.files, fh)
	return len(t.files) - 1
}

// File returns the file handle at fd, or nil if fd is out of range.
func (t *Task) File(fd int) FileHandle {
	if fd < 0 || fd >= len(t.files) {
		return nil
	}
	return t.files[fd]
}

// Block transitions a Running task into one of the blocked states (§4.6).
// The caller (scheduler) is responsible for the accompanying blocked-count
// bookkeeping and for yielding afterward.
func (t *Task) Block(state State) error {
	if t.State != Running {
		return fmt.Errorf("task: Block called on %s task %q, want running", t.State, t.Name)
	}
	t.State = state
	return nil
}

// Unblock transitions a blocked task back to Runnable (§4.4 wake pass).
func (t *Task) Unblock() error {
	if !t.State.Blocked() {
		return fmt.Errorf("task: Unblock called on %s task %q, want a blocked state", t.State, t.Name)
	}
	t.State = Runnable
	return nil
}

func (t *Task) String() string {
	return fmt.Sprintf("#%d %q ring%d %s", t.Pid, t.Name, t.Ring, t.State)
}
