package riverjobs

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/riverqueue/river"
)

// HandshakePurger reaps expired handshake rows; the Postgres-backed session
// store implements it.
type HandshakePurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type PurgeHandshakesArgs struct{}

func (PurgeHandshakesArgs) Kind() string { return "hasura_auth_purge_handshakes" }

func (args PurgeHandshakesArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue: river.QueueDefault,
		UniqueOpts: river.UniqueOpts{
			ByArgs:   true,
			ByPeriod: time.Hour,
			ByQueue:  true,
		},
	}
}

// PurgeHandshakesWorker deletes handshake sessions whose TTL has passed.
// Abandoned handshakes (the user never came back from the provider) are the
// normal case here; the callback destroys completed ones itself.
type PurgeHandshakesWorker struct {
	river.WorkerDefaults[PurgeHandshakesArgs]
	store HandshakePurger
}

func NewPurgeHandshakesWorker(store HandshakePurger) *PurgeHandshakesWorker {
	return &PurgeHandshakesWorker{store: store}
}

func (w *PurgeHandshakesWorker) Timeout(*river.Job[PurgeHandshakesArgs]) time.Duration {
	return time.Minute
}

func (w *PurgeHandshakesWorker) Work(ctx context.Context, _ *river.Job[PurgeHandshakesArgs]) error {
	if w == nil || w.store == nil {
		return errors.New("hasura-auth purge: store not configured")
	}
	n, err := w.store.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("[hasura-auth/purge] reaped %d expired handshake sessions", n)
	}
	return nil
}
