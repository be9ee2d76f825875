// Package memzone implements the region/zone binding: per-task linear-address
// regions backed by physical zones, and the memory-manager contract the
// scheduler drives on every context switch.
//
// A Zone is the MVP's stand-in for a physical frame allocation. Rather than
// faking byte storage, the host Manager backs each zone with a real
// anonymous mmap (golang.org/x/sys/unix), so region contents are genuine
// page-aligned memory and "unmapping" a region really does revoke access to
// it (via mprotect) the way retiring a page-directory entry would.
package memzone

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// PageSize is the hardware page size this kernel assumes (identity with the
// x86 4KiB page).
const PageSize = 4096

// GuardBytes is the gap left between auto-placed regions (§3, next_region
// cursor advance).
const GuardBytes = 16 * 1024

// Zone is a physical backing allocation shared by every Region that points
// at it. Its lifetime is the longest-lived holder among those regions.
type Zone struct {
	mu      sync.Mutex
	mem     []byte // mmap'd, page-aligned
	mapped  bool
	holders int
}

// Size returns the zone's byte size.
func (z *Zone) Size() int {
	z.mu.Lock()
	defer z.mu.Unlock()
	return len(z.mem)
}

// AddHolder / Release implement the "longest holder" lifetime rule: the
// backing mmap is only torn down once the last owning Region is destroyed.
func (z *Zone) AddHolder() {
	z.mu.Lock()
	z.holders++
	z.mu.Unlock()
}

// Release drops one holder's reference, tearing down the backing mmap once
// the last holder has gone. Called by a task's Destroy on each of its
// regions' zones.
func (z *Zone) Release() error {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.holders--
	if z.holders > 0 {
		return nil
	}
	if z.mem == nil {
		return nil
	}
	err := unix.Munmap(z.mem)
	z.mem = nil
	return err
}

// setProtection toggles whether the zone's pages are accessible. MapRegionsFor
// calls this with true, UnmapRegionsFor with false: the zone's physical
// storage persists either way, only the protection (standing in for the page
// directory entry) changes.
func (z *Zone) setProtection(accessible bool) error {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.mem == nil {
		return fmt.Errorf("memzone: zone already released")
	}
	prot := unix.PROT_NONE
	if accessible {
		prot = unix.PROT_READ | unix.PROT_WRITE
	}
	z.mapped = accessible
	return unix.Mprotect(z.mem, prot)
}

// write copies data into the zone's backing storage. Used to seed a ring-3
// task's code region before it first runs.
func (z *Zone) write(data []byte) error {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.mem == nil {
		return fmt.Errorf("memzone: zone already released")
	}
	wasMapped := z.mapped
	if !wasMapped {
		if err := unix.Mprotect(z.mem, unix.PROT_READ|unix.PROT_WRITE); err != nil {
			return err
		}
	}
	n := copy(z.mem, data)
	if n < len(data) {
		return fmt.Errorf("memzone: zone too small to hold %d bytes (have %d)", len(data), len(z.mem))
	}
	if !wasMapped {
		return unix.Mprotect(z.mem, unix.PROT_NONE)
	}
	return nil
}
