// Package syscall is the userspace-facing adapter layer (§4.8). It is named
// after the service it provides, not after the standard library package of
// the same name; nothing here imports or shadows the stdlib syscall package,
// so the collision is in name only (see DESIGN.md).
//
// Every function here takes the calling task explicitly rather than reading
// a current-task global, since the scheduler package is the only thing that
// tracks "current" and callers (the shell, tests) already have the task in
// hand.
package syscall

import (
	"fmt"

	"github.com/MSylvia/serenity/scheduler"
	"github.com/MSylvia/serenity/task"
	"github.com/MSylvia/serenity/vfs"
)

// Adapters binds the syscall surface to a live scheduler context and
// filesystem. It has no state of its own.
type Adapters struct {
	Sched *scheduler.Context
	FS    *vfs.FS
}

// New returns an Adapters bound to sched and fs.
func New(sched *scheduler.Context, fs *vfs.FS) *Adapters {
	return &Adapters{Sched: sched, FS: fs}
}

// Exit implements sys$exit: tears the task down via the scheduler (§4.7).
func (a *Adapters) Exit(t *task.Task, status int) error {
	return a.Sched.Exit(t, status)
}

// Sleep implements sys$sleep: blocks t for ticks timer ticks (§4.6).
func (a *Adapters) Sleep(t *task.Task, ticks uint64) error {
	return a.Sched.Sleep(t, ticks)
}

// Open implements sys$open: resolves path through the filesystem and appends
// a file handle to t's descriptor table. Returns -1 on failure, matching the
// original's fd-or-negative convention.
func (a *Adapters) Open(t *task.Task, path string) int {
	h, err := a.FS.Open(path)
	if err != nil {
		return -1
	}
	return t.OpenFile(h)
}

// Read implements sys$read: reads into buf through fd. Returns -1 for an
// unknown fd or a read error, otherwise the byte count (possibly 0 at EOF).
func (a *Adapters) Read(t *task.Task, fd int, buf []byte) int {
	fh := t.File(fd)
	if fh == nil {
		return -1
	}
	n, err := fh.Read(buf)
	if err != nil {
		return -1
	}
	return n
}

// Close implements sys$close: returns 0 on success, -1 for an unknown fd or
// a close error.
func (a *Adapters) Close(t *task.Task, fd int) int {
	fh := t.File(fd)
	if fh == nil {
		return -1
	}
	if err := fh.Close(); err != nil {
		return -1
	}
	return 0
}

// Seek implements sys$seek: whence is implicitly SET, per §6. Returns the
// new offset, or -1 for an unknown fd or a negative offset.
func (a *Adapters) Seek(t *task.Task, fd int, offset int) int {
	fh := t.File(fd)
	if fh == nil {
		return -1
	}
	n, err := fh.Seek(offset)
	if err != nil {
		return -1
	}
	return n
}

// Kill implements sys$kill. In the original kernel this path asserts and
// never returns to the caller; it has no live implementation behind it
// today (no cross-task signal delivery exists), so it is preserved here as
// a stub that always fails rather than silently doing something the
// original never did (§9 design notes, documented dead code).
func (a *Adapters) Kill(pid int, sig int) error {
	return fmt.Errorf("syscall: kill(%d, %d): not implemented", pid, sig)
}

// Getuid implements sys$getuid.
func (a *Adapters) Getuid(t *task.Task) uint32 {
	return t.UID
}
