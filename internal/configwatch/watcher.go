// Copyright (c) 2025 the udisks authors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package configwatch watches /etc/fstab and /etc/crypttab for changes and
// reports them through a single OnChange callback, which stands in for the
// entry-added/entry-removed notifications (§4.8, §6 "fstab/crypttab
// monitors"). The registry reacts identically to all four
// signals by fanning out a synthetic change to every block object
// (§4.5 step 7), so this package only needs to report "something changed",
// not parse entries.
package configwatch

import (
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher debounces fsnotify events on /etc/fstab and /etc/crypttab and
// calls OnChange once per burst. Editors commonly write a temp file and
// rename it over the target, which fsnotify reports as multiple raw
// events for a single logical edit; debouncing collapses those the same
// way the teacher's file-watch code debounces write bursts.
type Watcher struct {
	OnChange func()

	fsw      *fsnotify.Watcher
	debounce time.Duration
	log      *logrus.Entry
}

// New creates a Watcher. Call Start to begin watching.
func New(debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsw:      fsw,
		debounce: debounce,
		log:      logrus.WithField("component", "configwatch"),
	}, nil
}

// Paths is the default set of files watched.
var Paths = []string{"/etc/fstab", "/etc/crypttab"}

// Start adds the watched paths and begins the debounce loop. It returns
// immediately; the loop runs until Close is called.
func (w *Watcher) Start() error {
	for _, p := range Paths {
		if err := w.fsw.Add(p); err != nil {
			w.log.WithField("path", p).WithError(err).Warn("cannot watch config file")
		}
	}
	go w.loop()
	return nil
}

// Close stops watching and releases the underlying inotify descriptor.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) loop() {
	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		case <-fire:
			if w.OnChange != nil {
				w.OnChange()
			}
		}
	}
}
