package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pvnkmnk/rentFalcon/internal/sources"
	"github.com/pvnkmnk/rentFalcon/pkg/models"
)

// outcome is the recorded result of one adapter task: listings on success,
// a typed error otherwise. Exactly one is recorded per enabled source.
type outcome struct {
	listings []models.Listing
	err      *sources.Error
}

// dispatch runs every enabled adapter under the concurrency bound and the
// global deadline. Adapters still pending when the deadline expires are
// abandoned: their goroutine keeps running until its own exit path releases
// whatever it holds, but its late result lands in a buffered channel nobody
// reads and the source is recorded as a coordinator timeout.
func (c *Coordinator) dispatch(parent context.Context, req models.SearchRequest) (map[string]outcome, time.Time) {
	started := time.Now()

	ctx, cancel := context.WithTimeout(parent, c.cfg.Search.GlobalTimeout)
	defer cancel()

	sem := make(chan struct{}, c.cfg.Search.MaxParallel)
	channels := make(map[string]chan outcome, len(c.enabled))

	for _, name := range c.enabled {
		adapter, _ := c.registry.Get(name)

		// Capacity 1 lets an abandoned adapter complete its send and exit
		// instead of leaking on a blocked channel.
		ch := make(chan outcome, 1)
		channels[name] = ch

		go c.runAdapter(ctx, sem, ch, name, adapter, req)
	}

	// Join barrier: one recorded outcome per source, in configured order.
	outcomes := make(map[string]outcome, len(c.enabled))
	for _, name := range c.enabled {
		ch := channels[name]
		select {
		case o := <-ch:
			outcomes[name] = o
		case <-ctx.Done():
			// The adapter may have finished right at the deadline; prefer
			// its real outcome if the send already happened.
			select {
			case o := <-ch:
				outcomes[name] = o
			default:
				c.logger.WithField("source", name).Warn("Source abandoned at global deadline")
				outcomes[name] = outcome{err: sources.NewCoordinatorTimeoutError(name)}
			}
		}
	}

	return outcomes, started
}

// runAdapter executes one adapter task: acquire a worker slot, search, send
// exactly one outcome. A panicking adapter is recorded as an unknown error
// rather than taking the run down.
func (c *Coordinator) runAdapter(ctx context.Context, sem chan struct{}, ch chan<- outcome,
	name string, adapter sources.Adapter, req models.SearchRequest) {

	defer func() {
		if r := recover(); r != nil {
			c.logger.WithFields(logrus.Fields{
				"source": name,
				"panic":  r,
			}).Error("Adapter panicked")
			ch <- outcome{err: sources.NewUnknownError(name, fmt.Errorf("panic: %v", r))}
		}
	}()

	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		// Never got a worker slot before the deadline; the collector
		// records the coordinator timeout.
		return
	}
	defer func() { <-sem }()

	taskStart := time.Now()
	listings, err := adapter.Search(ctx, req)
	elapsed := time.Since(taskStart)

	if err != nil {
		typed := sources.Classify(name, err)
		c.logger.WithFields(logrus.Fields{
			"source": name,
			"kind":   typed.Kind,
			"took":   elapsed,
		}).Warn("Source failed")
		ch <- outcome{err: typed}
		return
	}

	c.logger.WithFields(logrus.Fields{
		"source": name,
		"count":  len(listings),
		"took":   elapsed,
	}).Debug("Source succeeded")
	ch <- outcome{listings: listings}
}
