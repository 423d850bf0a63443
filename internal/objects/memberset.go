// Copyright (c) 2025 the udisks authors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package objects implements the Block, Drive, and MD-RAID published
// objects (§4.2-§4.4).
package objects

import "github.com/woodrow-shen/udisks/internal/device"

// MemberSet is the ordered member-device list shared by Drive and MD-RAID
// objects. Both specify the same three-branch uevent semantics (§4.3,
// §4.4: "member-list maintenance mirrors Drive Object semantics"), so it is
// factored out once rather than duplicated (see SPEC_FULL.md §9).
type MemberSet struct {
	members []device.Snapshot
}

// Apply folds one uevent into the member set:
//   - remove + existing member at SysfsPath: drop it, report true (found).
//   - existing member at SysfsPath: replace its snapshot.
//   - otherwise: append dev, if the action is not itself a remove.
//
// It returns whether a member with the given SysfsPath existed prior to
// this call.
func (m *MemberSet) Apply(action string, dev device.Snapshot) (hadMember bool) {
	idx := m.indexOf(dev.SysfsPath)
	hadMember = idx >= 0

	switch {
	case action == "remove" && hadMember:
		m.members = append(m.members[:idx], m.members[idx+1:]...)
	case hadMember:
		m.members[idx] = dev
	case action != "remove":
		m.members = append(m.members, dev)
	}
	return hadMember
}

func (m *MemberSet) indexOf(sysfsPath string) int {
	for i, s := range m.members {
		if s.SysfsPath == sysfsPath {
			return i
		}
	}
	return -1
}

// Devices returns a copy of the current member list.
func (m *MemberSet) Devices() []device.Snapshot {
	out := make([]device.Snapshot, len(m.members))
	copy(out, m.members)
	return out
}

// Empty reports whether the member set has no devices (I1/G2, G5: an
// object with an empty member set must not exist in the registry).
func (m *MemberSet) Empty() bool {
	return len(m.members) == 0
}

// Len returns the number of distinct members (P3: no duplicate sysfs
// paths, guaranteed by construction since Apply replaces rather than
// appends when a path is already present).
func (m *MemberSet) Len() int {
	return len(m.members)
}
