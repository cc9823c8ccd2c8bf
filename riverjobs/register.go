package riverjobs

import (
	"fmt"

	"github.com/riverqueue/river"
	"github.com/robfig/cron/v3"
)

// RegisterPurgeHandshakesWorker registers the purge worker into a River workers registry.
func RegisterPurgeHandshakesWorker(ws *river.Workers, store HandshakePurger) {
	river.AddWorker(ws, NewPurgeHandshakesWorker(store))
}

// AddPurgeHandshakesPeriodicJob adds a periodic job that enqueues the purge job on a cron schedule.
//
// Example cron: "*/30 * * * *" (every thirty minutes).
func AddPurgeHandshakesPeriodicJob[T any](client *river.Client[T], cronSpec string, runOnStart bool) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(cronSpec)
	if err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", cronSpec, err)
	}
	args := PurgeHandshakesArgs{}
	opts := args.InsertOpts()
	_ = client.PeriodicJobs().Add(
		river.NewPeriodicJob(
			schedule,
			func() (river.JobArgs, *river.InsertOpts) { return args, &opts },
			&river.PeriodicJobOpts{RunOnStart: runOnStart},
		),
	)
	return nil
}
