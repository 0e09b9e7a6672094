// Package pane holds the watchdog's view of one tmux pane and its monitor.
package pane

import (
	"fmt"
	"sort"
	"time"
)

type Status int

const (
	Unknown    Status = iota // identity unreadable or liveness check failed
	Unassigned               // no identity file or no agent name
	Alive                    // monitor process found
	Dead                     // agent assigned but no monitor process
	Throttled                // dead, but restarts suspended by the crash-loop guard
)

func (s Status) String() string {
	switch s {
	case Unassigned:
		return "unassigned"
	case Alive:
		return "alive"
	case Dead:
		return "dead"
	case Throttled:
		return "throttled"
	default:
		return "unknown"
	}
}

type Pane struct {
	Target      string // session:window.pane
	Safe        string // Target with separators replaced, used for identity file names
	Agent       string // agent_mail_name from the identity file
	Host        string // empty for local, nickname for remote
	Status      Status
	Detail      string // error text for Unknown panes
	LastRestart time.Time
}

// HasAgent reports whether the pane is mapped to an agent.
func (p Pane) HasAgent() bool {
	return p.Agent != ""
}

// statusPriority returns sort priority (lower = more important, shown first).
func statusPriority(s Status) int {
	switch s {
	case Dead, Throttled:
		return 0
	case Unknown:
		return 1
	case Alive:
		return 2
	default:
		return 3
	}
}

// Sort orders panes by: local first, then status priority, then target.
func Sort(panes []Pane) {
	sort.SliceStable(panes, func(i, j int) bool {
		iLocal := panes[i].Host == ""
		jLocal := panes[j].Host == ""
		if iLocal != jLocal {
			return iLocal
		}
		pi, pj := statusPriority(panes[i].Status), statusPriority(panes[j].Status)
		if pi != pj {
			return pi < pj
		}
		return panes[i].Target < panes[j].Target
	})
}

// Count returns how many panes have the given status.
func Count(panes []Pane, s Status) int {
	n := 0
	for _, p := range panes {
		if p.Status == s {
			n++
		}
	}
	return n
}

// Short renders d in its largest whole unit: 45s, 12m, 3h, 2d.
func Short(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int64(d/time.Second))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int64(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int64(d/time.Hour))
	}
	return fmt.Sprintf("%dd", int64(d/(24*time.Hour)))
}

// Ago renders the time since t, or "never" for the zero time.
func Ago(t time.Time, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return Short(now.Sub(t)) + " ago"
}
