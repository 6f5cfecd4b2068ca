// Package housekeeping schedules the background jobs the spec leaves
// as an open question for an implementation to resolve (§4.5, §9
// "Reassembly table memory"): periodic fragment-reassembly-table TTL
// eviction and checkpoint rotation. Grounded on the teacher's
// internal/taskManager/taskManager.go — a package-level gocron
// scheduler started once and fed jobs via small Register* functions.
package housekeeping

import (
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/madara-go/karl/internal/krlog"
	"github.com/madara-go/karl/pkg/kfrag"
	"github.com/madara-go/karl/pkg/kstore"
)

var scheduler gocron.Scheduler

// Start creates the package-level scheduler and begins running it.
// Call RegisterReassemblySweep/RegisterCheckpointRotation after Start,
// since they add jobs to the scheduler Start creates.
func Start() error {
	var err error
	scheduler, err = gocron.NewScheduler()
	if err != nil {
		return err
	}
	scheduler.Start()
	return nil
}

// Stop shuts the scheduler down, joining its worker goroutines.
func Stop() error {
	if scheduler == nil {
		return nil
	}
	return scheduler.Shutdown()
}

// RegisterReassemblySweep schedules reasm.Sweep to run every interval
// (default 10s), evicting fragment trains that have outlived their
// TTL (kfrag.DefaultTTL) so a never-completing fragmented send cannot
// hold memory forever.
func RegisterReassemblySweep(reasm *kfrag.Reassembler, interval time.Duration) error {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	_, err := scheduler.NewJob(gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if n := reasm.Sweep(time.Now()); n > 0 {
				krlog.Debugf("housekeeping: swept %d expired fragment reassemblies", n)
			}
		}))
	return err
}

// RegisterCheckpointRotation schedules a binary checkpoint of store to
// path every interval, overwriting the previous snapshot — a rolling
// backstop against process restarts, not a WAL (the spec's Non-goals
// explicitly exclude durable write-ahead logging).
func RegisterCheckpointRotation(store *kstore.Store, originator, path string, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	_, err := scheduler.NewJob(gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if err := store.SaveContext(path, originator); err != nil {
				krlog.Warnf("housekeeping: checkpoint rotation failed: %v", err)
			}
		}))
	return err
}
