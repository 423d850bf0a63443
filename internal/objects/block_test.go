// Copyright (c) 2025 the udisks authors
//
// SPDX-License-Identifier: Apache-2.0
//

package objects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woodrow-shen/udisks/internal/device"
)

func TestNewBlockPublishesBlockInterface(t *testing.T) {
	daemon := newFakeDaemon()
	dev := device.Snapshot{SysfsPath: "/sys/block/sda", Subsystem: "block"}

	b, err := NewBlock(daemon, dev)
	require.NoError(t, err)

	assert.True(t, daemon.exporter.Published(b.ObjectPath(), "org.freedesktop.UDisks2.Block"))
	assert.False(t, daemon.exporter.Published(b.ObjectPath(), "org.freedesktop.UDisks2.Block.Filesystem"))
}

func TestBlockFilesystemInterfaceTracksMountState(t *testing.T) {
	daemon := newFakeDaemon()
	dev := device.Snapshot{SysfsPath: "/sys/block/sda", Subsystem: "block"}
	b, err := NewBlock(daemon, dev)
	require.NoError(t, err)

	daemon.mounted[dev.SysfsPath] = true
	b.Uevent("change", nil)
	assert.True(t, daemon.exporter.Published(b.ObjectPath(), "org.freedesktop.UDisks2.Block.Filesystem"))

	daemon.mounted[dev.SysfsPath] = false
	b.Uevent("change", nil)
	assert.False(t, daemon.exporter.Published(b.ObjectPath(), "org.freedesktop.UDisks2.Block.Filesystem"))
}

func TestBlockChangeWithNilDeviceKeepsCachedSnapshot(t *testing.T) {
	daemon := newFakeDaemon()
	dev := device.Snapshot{SysfsPath: "/sys/block/sda", Subsystem: "block", Properties: map[string]string{"ID_SERIAL_SHORT": "S1"}}
	b, err := NewBlock(daemon, dev)
	require.NoError(t, err)

	b.Uevent("change", nil)
	assert.Equal(t, "S1", b.Snapshot().Identity().Serial)
}

func TestBlockUnpublishRemovesInterfaces(t *testing.T) {
	daemon := newFakeDaemon()
	dev := device.Snapshot{SysfsPath: "/sys/block/sda", Subsystem: "block"}
	b, err := NewBlock(daemon, dev)
	require.NoError(t, err)

	b.Unpublish()
	assert.False(t, daemon.exporter.Published(b.ObjectPath(), "org.freedesktop.UDisks2.Block"))
}
