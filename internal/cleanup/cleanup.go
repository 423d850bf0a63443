// Copyright (c) 2025 the udisks authors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package cleanup is the "cleanup subsystem" consumed by the registry and
// by Block objects (§4.9, §1 Out of scope: its concrete unmount/loop-device
// policy is external; only the entry points it exposes live here).
package cleanup

import (
	"context"
	"os"
	"strings"
	"sync"
)

// Checker provides the Check entry point invoked after any non-"add" event
// (§4.5 post-event cleanup), and IsMounted, consumed by the Block object's
// Filesystem-interface Has func (§4.2).
type Checker struct {
	mu         sync.Mutex
	mountsPath string
}

// New returns a Checker reading mount state from /proc/self/mountinfo.
func New() *Checker {
	return &Checker{mountsPath: "/proc/self/mountinfo"}
}

// Check runs one cleanup pass. The concrete policy (unmounting orphaned
// filesystems, removing stale loop devices) is out of scope for this core;
// this implementation is a safe no-op placeholder that the daemon wiring
// may later replace with a real policy.
func (c *Checker) Check(ctx context.Context) error {
	return nil
}

// IsMounted reports whether sysfsPath's corresponding block device is
// currently mounted, by resolving the device's name and scanning
// mountinfo. Errors reading mountinfo are treated as "not mounted" rather
// than propagated, since this is advisory information feeding an optional
// interface, not a correctness-critical path.
func (c *Checker) IsMounted(sysfsPath string) bool {
	name := deviceName(sysfsPath)
	if name == "" {
		return false
	}

	c.mu.Lock()
	path := c.mountsPath
	c.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	marker := "/dev/" + name + " "
	for _, line := range strings.Split(string(data), "\n") {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

func deviceName(sysfsPath string) string {
	idx := strings.LastIndex(sysfsPath, "/")
	if idx < 0 {
		return ""
	}
	return sysfsPath[idx+1:]
}
