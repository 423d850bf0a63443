// Copyright (c) 2025 the udisks authors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package uevent reads kernel device-change notifications from the
// NETLINK_KOBJECT_UEVENT socket and renders them as (action, device) pairs
// for the registry to consume. It also provides coldplug enumeration of a
// subsystem via sysfs.
package uevent

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/woodrow-shen/udisks/internal/device"
)

// Event is one (action, device) notification.
type Event struct {
	Action string
	Device device.Snapshot
}

// Source reads uevents from the kernel netlink socket.
type Source struct {
	fd int
}

// Open creates a netlink socket bound to the kobject-uevent multicast
// group. Callers must call Close when done.
func Open() (*Source, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, fmt.Errorf("open uevent socket: %w", err)
	}
	addr := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: 1}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind uevent socket: %w", err)
	}
	return &Source{fd: fd}, nil
}

// Close releases the underlying socket.
func (s *Source) Close() error {
	return unix.Close(s.fd)
}

// Run reads uevents until ctx is done or the socket errors, delivering each
// parsed event on out. The caller owns out and should size it to avoid the
// event context ever blocking on a slow consumer.
func (s *Source) Run(ctx context.Context, out chan<- Event) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			unix.Close(s.fd)
		case <-done:
		}
	}()

	buf := make([]byte, 64*1024)
	for {
		n, _, err := unix.Recvfrom(s.fd, buf, 0)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read uevent: %w", err)
		}
		ev, ok := parse(buf[:n])
		if !ok {
			continue
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// parse decodes one raw kernel uevent datagram. The kernel's "libudev"
// framing prefixes the action@devpath line, then emits NUL-separated
// KEY=VALUE property lines. We accept both that framing and the plain
// KEY=VALUE-only framing used by mdadm's monitor socket for symmetry.
func parse(raw []byte) (Event, bool) {
	parts := bytes.Split(raw, []byte{0})
	props := make(map[string]string)
	var action, devpath, subsystem string
	for i, p := range parts {
		line := string(p)
		if i == 0 && strings.Contains(line, "@") && !strings.Contains(line, "=") {
			// "add@/devices/..." framing line; ignore, ACTION/DEVPATH follow.
			continue
		}
		kv := strings.SplitN(line, "=", 2)
		if len(kv) != 2 {
			continue
		}
		props[kv[0]] = kv[1]
		switch kv[0] {
		case "ACTION":
			action = kv[1]
		case "DEVPATH":
			devpath = kv[1]
		case "SUBSYSTEM":
			subsystem = kv[1]
		}
	}
	if action == "" || devpath == "" {
		return Event{}, false
	}
	return Event{
		Action: action,
		Device: device.Snapshot{
			Subsystem:  subsystem,
			SysfsPath:  filepath.Join("/sys", devpath),
			Properties: props,
		},
	}, true
}

// EnumerateSubsystem walks /sys/class/<subsystem> and returns a Snapshot
// for every device found there, reading its uevent file for properties.
// Used for coldplug.
func EnumerateSubsystem(subsystem string) ([]device.Snapshot, error) {
	class := filepath.Join("/sys", "class", subsystem)
	entries, err := os.ReadDir(class)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("enumerate %s: %w", subsystem, err)
	}
	snaps := make([]device.Snapshot, 0, len(entries))
	for _, e := range entries {
		sysfsPath, err := filepath.EvalSymlinks(filepath.Join(class, e.Name()))
		if err != nil {
			continue
		}
		props, _ := readUeventFile(filepath.Join(sysfsPath, "uevent"))
		props["SUBSYSTEM"] = subsystem
		snaps = append(snaps, device.Snapshot{
			Subsystem:  subsystem,
			SysfsPath:  sysfsPath,
			Properties: props,
		})
	}
	return snaps, nil
}

func readUeventFile(path string) (map[string]string, error) {
	props := make(map[string]string)
	data, err := os.ReadFile(path)
	if err != nil {
		return props, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		kv := strings.SplitN(line, "=", 2)
		if len(kv) != 2 {
			continue
		}
		props[kv[0]] = kv[1]
	}
	return props, nil
}
