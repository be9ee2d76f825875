package memzone

import "fmt"

// LinearAddress is a 32-bit linear (post-segmentation, pre-paging) address.
type LinearAddress uint32

// Offset returns the address advanced by n bytes.
func (a LinearAddress) Offset(n uint32) LinearAddress { return a + LinearAddress(n) }

// AlignDown rounds the address down to the given power-of-two alignment.
func (a LinearAddress) AlignDown(align uint32) LinearAddress {
	return LinearAddress(uint32(a) &^ (align - 1))
}

// Region is a per-task linear-address range bound to a physical Zone.
// Invariants (§3): Base is page-aligned, Size > 0, and a task's regions never
// overlap (the overlap check itself is a documented gap — see Open
// Questions in SPEC_FULL.md).
type Region struct {
	Base LinearAddress
	Size uint32
	Zone *Zone
	Name string
}

// End returns the address one past the region's last byte.
func (r *Region) End() LinearAddress { return r.Base.Offset(r.Size) }

// Overlaps reports whether r and other share any linear address.
func (r *Region) Overlaps(other *Region) bool {
	return r.Base < other.End() && other.Base < r.End()
}

func (r *Region) String() string {
	return fmt.Sprintf("%#x-%#x %q", uint32(r.Base), uint32(r.End()), r.Name)
}
