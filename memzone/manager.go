package memzone

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// RegionOwner is anything with a list of owned Regions — satisfied by
// *task.Task without memzone importing the task package back.
type RegionOwner interface {
	OwnedRegions() []*Region
}

// Manager is the memory-manager contract the scheduler drives on every
// context switch (§6). Map/Unmap are must-succeed from the scheduler's point
// of view: a returned error is treated as fatal by the caller.
type Manager interface {
	// CreateZone allocates a new physical zone of at least size bytes,
	// rounded up to a whole number of pages.
	CreateZone(size uint32) (*Zone, error)
	// Seed copies code into a zone before its owning task first runs.
	Seed(zone *Zone, code []byte) error
	// MapRegionsFor installs every region owned by owner into the active
	// address space.
	MapRegionsFor(owner RegionOwner) error
	// UnmapRegionsFor removes every region owned by owner from the active
	// address space.
	UnmapRegionsFor(owner RegionOwner) error
	// PageDirectoryBase returns the physical address installed into CR3 for
	// newly constructed tasks.
	PageDirectoryBase() uint32
}

// HostManager is a Manager backed by real anonymous mmap allocations. It
// plays the role the target's page-directory manipulator plays on real
// hardware: CreateZone stands in for allocating physical frames, and
// Map/UnmapRegionsFor stand in for installing/clearing page-directory
// entries by toggling the mapping's protection.
type HostManager struct {
	pageDirectoryBase uint32
}

// NewHostManager returns a Manager for use on a development host. pdBase is
// an arbitrary value reported as the page directory's physical base; real
// hardware would hand back whatever physical frame holds the top-level page
// table.
func NewHostManager(pdBase uint32) *HostManager {
	return &HostManager{pageDirectoryBase: pdBase}
}

// CreateZone implements Manager.
func (m *HostManager) CreateZone(size uint32) (*Zone, error) {
	if size == 0 {
		return nil, fmt.Errorf("memzone: zone size must be > 0")
	}
	pages := (int(size) + PageSize - 1) / PageSize
	mem, err := unix.Mmap(-1, 0, pages*PageSize, unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("memzone: mmap %d bytes: %w", pages*PageSize, err)
	}
	return &Zone{mem: mem}, nil
}

// Seed implements Manager.
func (m *HostManager) Seed(zone *Zone, code []byte) error {
	return zone.write(code)
}

// MapRegionsFor implements Manager.
func (m *HostManager) MapRegionsFor(owner RegionOwner) error {
	for _, r := range owner.OwnedRegions() {
		if r.Zone == nil {
			return fmt.Errorf("memzone: region %s has no zone", r)
		}
		if err := r.Zone.setProtection(true); err != nil {
			return fmt.Errorf("memzone: map region %s: %w", r, err)
		}
	}
	return nil
}

// UnmapRegionsFor implements Manager.
func (m *HostManager) UnmapRegionsFor(owner RegionOwner) error {
	for _, r := range owner.OwnedRegions() {
		if r.Zone == nil {
			continue
		}
		if err := r.Zone.setProtection(false); err != nil {
			return fmt.Errorf("memzone: unmap region %s: %w", r, err)
		}
	}
	return nil
}

// PageDirectoryBase implements Manager.
func (m *HostManager) PageDirectoryBase() uint32 {
	return m.pageDirectoryBase
}
