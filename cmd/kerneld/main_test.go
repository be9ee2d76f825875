package main

import (
	"bufio"
	"strings"
	"testing"
)

func TestBootWiresSchedulerAndShell(t *testing.T) {
	k, err := boot()
	if err != nil {
		t.Fatalf("boot() error = %v", err)
	}
	if k.sched == nil || k.console == nil || k.shell == nil {
		t.Fatalf("boot() left a nil component: sched=%v console=%v shell=%v", k.sched, k.console, k.shell)
	}
	if k.sched.Idle() == nil {
		t.Fatalf("scheduler has no idle task after boot")
	}
}

func TestRunShellLineDispatches(t *testing.T) {
	k, err := boot()
	if err != nil {
		t.Fatalf("boot() error = %v", err)
	}
	r := bufio.NewReader(strings.NewReader("uptime\n"))
	if err := runShellLine(k.shell, r); err != nil {
		t.Fatalf("runShellLine() error = %v", err)
	}
}

func TestStepAdvancesUptime(t *testing.T) {
	k, err := boot()
	if err != nil {
		t.Fatalf("boot() error = %v", err)
	}
	before := k.sched.Uptime()
	k.step()
	if k.sched.Uptime() != before+1 {
		t.Fatalf("Uptime() after step = %d, want %d", k.sched.Uptime(), before+1)
	}
}
