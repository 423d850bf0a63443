// Copyright (c) 2025 the udisks authors
//
// SPDX-License-Identifier: Apache-2.0
//

package objects

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/woodrow-shen/udisks/internal/device"
)

func mdDev(path, uuid string) device.Snapshot {
	return device.Snapshot{
		SysfsPath:  path,
		Subsystem:  "block",
		Properties: map[string]string{"MD_UUID": uuid},
	}
}

func TestMDRaidObjectPathSanitization(t *testing.T) {
	// Scenario 4 of the spec's Concrete scenarios.
	path := ObjectPathForMDRaidUUID(" 12:34-ab cd ")
	assert.Equal(t, "/org/freedesktop/UDisks2/mdraid/12_34_ab_cd", string(path))
}

func TestNewMDRaidPerformsInitialColdplugUevent(t *testing.T) {
	daemon := newFakeDaemon()
	m := NewMDRaid(daemon, "uuid-1", mdDev("/sys/block/md0", "uuid-1"))
	assert.Len(t, m.Devices(), 1)
	assert.True(t, daemon.exporter.Published(m.ObjectPath(), "org.freedesktop.UDisks2.MDRaid"))
}

func TestMDRaidMembershipMirrorsDriveSemantics(t *testing.T) {
	daemon := newFakeDaemon()
	m := NewMDRaid(daemon, "uuid-1", mdDev("/sys/block/md0p1", "uuid-1"))
	m.Uevent("add", mdDev("/sys/block/md0p2", "uuid-1"))
	assert.Len(t, m.Devices(), 2)
	assert.True(t, m.HasMember("/sys/block/md0p1"))

	m.Uevent("remove", mdDev("/sys/block/md0p1", "uuid-1"))
	assert.False(t, m.HasMember("/sys/block/md0p1"))
	assert.False(t, m.Empty())

	m.Uevent("remove", mdDev("/sys/block/md0p2", "uuid-1"))
	assert.True(t, m.Empty())
}
