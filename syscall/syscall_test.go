package syscall

import (
	"testing"

	"github.com/MSylvia/serenity/descriptor"
	"github.com/MSylvia/serenity/memzone"
	"github.com/MSylvia/serenity/scheduler"
	"github.com/MSylvia/serenity/task"
	"github.com/MSylvia/serenity/vfs"
)

func newFixture(t *testing.T) (*Adapters, *scheduler.Context, *task.Task) {
	t.Helper()
	gdt := descriptor.NewTable()
	mem := memzone.NewHostManager(0x100000)
	sched, err := scheduler.NewContext(gdt, mem, &scheduler.RecordingSwitcher{})
	if err != nil {
		t.Fatalf("NewContext() error = %v", err)
	}
	sched.Tick() // advances uptime only: with no current task there is nothing to preempt

	fs := vfs.New()
	fs.Put("/greeting", []byte("hello"))

	tsk, err := sched.Spawn("T1", task.Handle(1), task.Ring3, task.EntryPoint{Code: []byte{0xF4}})
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}
	sched.Yield() // first schedule always lands on idle
	sched.Yield() // second one selects T1, making it current

	return New(sched, fs), sched, tsk
}

func TestOpenReadCloseRoundTrip(t *testing.T) {
	a, _, tsk := newFixture(t)

	fd := a.Open(tsk, "/greeting")
	if fd < 0 {
		t.Fatalf("Open() = %d, want a valid fd", fd)
	}

	buf := make([]byte, 5)
	n := a.Read(tsk, fd, buf)
	if n != 5 || string(buf) != "hello" {
		t.Fatalf("Read() = %d, %q, want 5, \"hello\"", n, buf)
	}

	if rc := a.Close(tsk, fd); rc != 0 {
		t.Fatalf("Close() = %d, want 0", rc)
	}
	if n := a.Read(tsk, fd, buf); n != -1 {
		t.Fatalf("Read() after close = %d, want -1", n)
	}
}

func TestOpenMissingFileFails(t *testing.T) {
	a, _, tsk := newFixture(t)
	if fd := a.Open(tsk, "/nope"); fd != -1 {
		t.Fatalf("Open(missing) = %d, want -1", fd)
	}
}

func TestReadUnknownFdFails(t *testing.T) {
	a, _, tsk := newFixture(t)
	if n := a.Read(tsk, 99, make([]byte, 1)); n != -1 {
		t.Fatalf("Read(unknown fd) = %d, want -1", n)
	}
}

func TestSeekMovesOffset(t *testing.T) {
	a, _, tsk := newFixture(t)
	fd := a.Open(tsk, "/greeting")

	if off := a.Seek(tsk, fd, 3); off != 3 {
		t.Fatalf("Seek() = %d, want 3", off)
	}
	buf := make([]byte, 2)
	if n := a.Read(tsk, fd, buf); n != 2 || string(buf) != "lo" {
		t.Fatalf("Read() after seek = %d, %q, want 2, \"lo\"", n, buf)
	}

	if off := a.Seek(tsk, fd, -1); off != -1 {
		t.Fatalf("Seek(negative) = %d, want -1", off)
	}
}

func TestExitTearsDownTask(t *testing.T) {
	a, sched, tsk := newFixture(t)
	liveBefore := sched.LiveTasks()

	if err := a.Exit(tsk, 0); err != nil {
		t.Fatalf("Exit() error = %v", err)
	}
	if sched.LiveTasks() != liveBefore-1 {
		t.Fatalf("LiveTasks() = %d, want %d", sched.LiveTasks(), liveBefore-1)
	}
}

func TestSleepBlocksTask(t *testing.T) {
	a, sched, tsk := newFixture(t)
	if err := a.Sleep(tsk, 5); err != nil {
		t.Fatalf("Sleep() error = %v", err)
	}
	if tsk.State != task.BlockedSleep {
		t.Fatalf("task state = %s, want blocked-sleep", tsk.State)
	}
	if sched.Current() == tsk {
		t.Fatalf("sleeping task still current")
	}
}

func TestKillAlwaysFails(t *testing.T) {
	a, _, _ := newFixture(t)
	if err := a.Kill(1, 9); err == nil {
		t.Fatalf("Kill() error = nil, want the documented stub failure")
	}
}

func TestGetuidReturnsTaskUID(t *testing.T) {
	a, _, tsk := newFixture(t)
	tsk.UID = 42
	if got := a.Getuid(tsk); got != 42 {
		t.Fatalf("Getuid() = %d, want 42", got)
	}
}
