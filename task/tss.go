package task

import "github.com/MSylvia/serenity/descriptor"

// Ring is the x86 privilege level a task executes at.
type Ring uint8

const (
	Ring0 Ring = 0
	Ring3 Ring = 3
)

// Fixed segment selectors the task constructor hard-codes per ring (§4.3
// step 3). Real hardware would have these baked into the boot GDT at a known
// layout; descriptor.NewTable reserves exactly the five low slots these
// values index into.
const (
	KernelCS = 0x08
	KernelDS = 0x10
	KernelSS = 0x10
	UserCS   = 0x1B // RPL 3
	UserDS   = 0x23 // RPL 3
	UserSS   = 0x23 // RPL 3
)

// defaultEflags is the flags image every task boots with: IF set, and the
// reserved bit 1 set (§4.3 step 2).
const defaultEflags = 0x0202

// TSS is the Task State Segment image: the CPU register set saved and
// restored by the hardware task switch. Only the fields this kernel sets or
// reads are modeled; the ring-1 stack, ESP2, back link and I/O map base are
// not.
type TSS struct {
	Eax, Ebx, Ecx, Edx uint32
	Esi, Edi, Ebp      uint32
	Eip                uint32
	Eflags             uint32
	Esp                uint32
	Cs, Ds, Es, Fs, Gs, Ss uint32
	Cr3                uint32
	Ss0, Esp0          uint32 // ring-0 re-entry stack (ring-3 tasks only)
	LDT                descriptor.Selector
	// Ss2 mirrors the original kernel's HACK of stashing the pid in the
	// otherwise-unused ring-2 stack segment field, preserved verbatim.
	Ss2 uint32
}
