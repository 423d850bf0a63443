// Copyright (c) 2025 the udisks authors
//
// SPDX-License-Identifier: Apache-2.0
//

package device_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/woodrow-shen/udisks/internal/device"
)

func TestIdentityVPDAndEmpty(t *testing.T) {
	id := device.Identity{Serial: "S1", WWN: "W1"}
	assert.False(t, id.Empty())
	assert.Equal(t, "S1\x00W1", id.VPD())

	assert.True(t, device.Identity{}.Empty())
}

func TestSnapshotIdentityFallsBackToAlternateProperties(t *testing.T) {
	s := device.Snapshot{
		Properties: map[string]string{
			"ID_SCSI_SERIAL": "SCSI1",
			"ID_WWN":         "WWN1",
		},
	}
	id := s.Identity()
	assert.Equal(t, "SCSI1", id.Serial)
	assert.Equal(t, "WWN1", id.WWN)
}

func TestSnapshotIdentityPrefersPrimaryProperties(t *testing.T) {
	s := device.Snapshot{
		Properties: map[string]string{
			"ID_SERIAL_SHORT":        "S1",
			"ID_SCSI_SERIAL":         "SCSI1",
			"ID_WWN_WITH_EXTENSION":  "W1x",
			"ID_WWN":                 "W1",
		},
	}
	id := s.Identity()
	assert.Equal(t, "S1", id.Serial)
	assert.Equal(t, "W1x", id.WWN)
}

func TestSanitizeMDUUID(t *testing.T) {
	// Scenario 4 of the spec's Concrete scenarios.
	got := device.SanitizeMDUUID(" 12:34-ab cd ")
	assert.Equal(t, "12_34_ab_cd", got)
}

func TestMDUUIDProperty(t *testing.T) {
	s := device.Snapshot{Properties: map[string]string{"MD_UUID": "abc-123"}}
	assert.Equal(t, "abc-123", s.MDUUID())
	assert.Equal(t, "", device.Snapshot{}.MDUUID())
}
