// Copyright (c) 2025 the udisks authors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package device holds a read-only view of one kernel device as surfaced
// by a uevent or by coldplug enumeration.
package device

import "strings"

// Identity is a device's stable vendor/product descriptor pair. Either
// field may be empty; Empty reports whether both are, in which case the
// device cannot be correlated to a Drive object.
type Identity struct {
	Serial string
	WWN    string
}

// Empty reports whether neither a serial nor a WWN was found.
func (id Identity) Empty() bool {
	return id.Serial == "" && id.WWN == ""
}

// VPD renders the identity as the "vital product data" string used as the
// primary key of the drive index. The two descriptors are concatenated with
// a separator that cannot appear in either (serial numbers and WWNs are
// restricted to a safe character set by the kernel and by libudev).
func (id Identity) VPD() string {
	return id.Serial + "\x00" + id.WWN
}

// Snapshot is an immutable-for-its-lifetime read of one kernel device.
// Two snapshots with the same SysfsPath refer to the same device; a later
// snapshot supersedes an earlier one with the same path.
type Snapshot struct {
	Subsystem  string
	SysfsPath  string
	Properties map[string]string
}

// Property looks up a udev property, returning "" if absent.
func (s Snapshot) Property(key string) string {
	if s.Properties == nil {
		return ""
	}
	return s.Properties[key]
}

// Identity derives the stable (serial, wwn) pair from udev properties the
// same way the original provider does: ID_SERIAL_SHORT (falling back to
// ID_SCSI_SERIAL) for the serial, ID_WWN_WITH_EXTENSION (falling back to
// ID_WWN) for the WWN.
func (s Snapshot) Identity() Identity {
	serial := s.Property("ID_SERIAL_SHORT")
	if serial == "" {
		serial = s.Property("ID_SCSI_SERIAL")
	}
	wwn := s.Property("ID_WWN_WITH_EXTENSION")
	if wwn == "" {
		wwn = s.Property("ID_WWN")
	}
	return Identity{Serial: serial, WWN: wwn}
}

// MDUUID returns the MD_UUID udev property, or "" if the device is not an
// MD-RAID member/array.
func (s Snapshot) MDUUID() string {
	return s.Property("MD_UUID")
}

// SanitizeMDUUID implements the object-path sanitization rule: trim
// surrounding whitespace, then replace every space, hyphen, and colon with
// an underscore.
func SanitizeMDUUID(uuid string) string {
	trimmed := strings.TrimSpace(uuid)
	replacer := strings.NewReplacer(" ", "_", "-", "_", ":", "_")
	return replacer.Replace(trimmed)
}
