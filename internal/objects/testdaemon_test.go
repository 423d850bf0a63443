// Copyright (c) 2025 the udisks authors
//
// SPDX-License-Identifier: Apache-2.0
//

package objects

import (
	"github.com/woodrow-shen/udisks/internal/busexport"
	"github.com/woodrow-shen/udisks/internal/busexport/busexporttest"
)

// fakeDaemon is a minimal Daemon for object-lifecycle tests: an in-memory
// exporter plus a settable mount-state map, with no live D-Bus connection.
type fakeDaemon struct {
	exporter *busexporttest.Fake
	mounted  map[string]bool
}

func newFakeDaemon() *fakeDaemon {
	return &fakeDaemon{exporter: busexporttest.NewFake(), mounted: map[string]bool{}}
}

func (f *fakeDaemon) Server() busexport.Exporter { return f.exporter }

func (f *fakeDaemon) IsMounted(sysfsPath string) bool { return f.mounted[sysfsPath] }
