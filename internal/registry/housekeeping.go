// Copyright (c) 2025 the udisks authors
//
// SPDX-License-Identifier: Apache-2.0
//

package registry

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/woodrow-shen/udisks/internal/objects"
)

// HousekeepingInterval is the periodic tick period (§4.6).
const HousekeepingInterval = 600 * time.Second

// startHousekeepingScheduler starts the 600-second periodic tick (§4.6)
// and fires one initial tick synchronously, per §4.5 Start step 5.
func (r *Registry) startHousekeepingScheduler(ctx context.Context) {
	r.housekeepingTicker = time.NewTicker(HousekeepingInterval)

	r.tick() // initial tick, enqueues at most one job

	go func() {
		for {
			select {
			case <-ctx.Done():
				r.housekeepingTicker.Stop()
				return
			case <-r.housekeepingTicker.C:
				r.tick()
			}
		}
	}()
}

// tick is the single-flight gate (§4.6): a tick that finds running=true
// returns immediately without enqueuing anything (P8).
func (r *Registry) tick() {
	r.mu.Lock()
	if r.housekeepingRunning {
		r.mu.Unlock()
		return
	}
	r.housekeepingRunning = true
	drives := make([]*objects.Drive, 0, len(r.vpdToDrive))
	for _, d := range r.vpdToDrive {
		drives = append(drives, d)
	}
	r.mu.Unlock()

	go r.runHousekeepingPass(drives)
}

// runHousekeepingPass is the background job enqueued by tick: it computes
// secsSinceLast, fans out Housekeeping calls across the drive snapshot
// (SPEC_FULL.md §5: via a sync.WaitGroup inside this one job, preserving
// single-flight), and clears the running flag when done.
func (r *Registry) runHousekeepingPass(drives []*objects.Drive) {
	start := time.Now()

	r.mu.Lock()
	secsSinceLast := int64(0)
	if !r.housekeepingLastRun.IsZero() {
		secsSinceLast = int64(start.Sub(r.housekeepingLastRun).Seconds())
	}
	r.housekeepingLastRun = start
	r.mu.Unlock()

	var (
		wg    sync.WaitGroup
		errMu sync.Mutex
		errs  *multierror.Error
	)
	for _, d := range drives {
		wg.Add(1)
		go func(d *objects.Drive) {
			defer wg.Done()
			if err := d.Housekeeping(context.Background(), secsSinceLast); err != nil {
				errMu.Lock()
				errs = multierror.Append(errs, wrapErr(KindTransient, "housekeeping "+string(d.ObjectPath()), err))
				errMu.Unlock()
				if r.metrics != nil {
					r.metrics.HousekeepingErrors.Inc()
				}
			}
		}(d)
	}
	wg.Wait()

	if errs != nil {
		r.log.WithError(errs.ErrorOrNil()).Warn("housekeeping pass completed with errors")
	}
	if r.metrics != nil {
		r.metrics.HousekeepingSeconds.Observe(time.Since(start).Seconds())
	}

	r.mu.Lock()
	r.housekeepingRunning = false
	r.mu.Unlock()
}
