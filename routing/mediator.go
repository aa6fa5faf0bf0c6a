package routing

import (
	"context"
	"sync"

	"github.com/tesseradb/tessera/cluster"
	"github.com/tesseradb/tessera/telemetry/logging"
)

// Mediator adapts coordinator change callbacks onto the manager's coalesced
// handlers. Callbacks only pulse a capacity-one channel and return; one
// worker goroutine per notification type runs the actual processing, so a
// burst of notifications collapses into at most one pending run — each run
// walks all known state and re-checks versions, so nothing is lost.
type Mediator struct {
	manager *Manager
	log     logging.Logger

	evSignal chan struct{}
	icSignal chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

var _ cluster.Watcher = (*Mediator)(nil)

// NewMediator starts the dispatch workers for manager.
func NewMediator(manager *Manager, log logging.Logger) *Mediator {
	if log == nil {
		log = logging.New(nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Mediator{
		manager:  manager,
		log:      log,
		evSignal: make(chan struct{}, 1),
		icSignal: make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
	}
	d.wg.Add(2)
	go d.run("external view", d.evSignal, manager.ProcessExternalViewChange)
	go d.run("instance config", d.icSignal, manager.ProcessInstanceConfigChange)
	return d
}

// OnExternalViewChange implements cluster.Watcher.
func (d *Mediator) OnExternalViewChange() { pulse(d.evSignal) }

// OnInstanceConfigChange implements cluster.Watcher.
func (d *Mediator) OnInstanceConfigChange() { pulse(d.icSignal) }

// OnLiveInstanceChange implements cluster.Watcher. Known limitation: this is
// deliberately a no-op — live-instance transitions reach the broker through
// the external views they modify.
func (d *Mediator) OnLiveInstanceChange() {
	d.log.DebugCtx(d.ctx, "live instance change notification ignored")
}

// Close stops the workers. Pending notifications are dropped.
func (d *Mediator) Close() {
	d.once.Do(func() {
		d.cancel()
		d.wg.Wait()
	})
}

func (d *Mediator) run(kind string, signal <-chan struct{}, process func(context.Context) error) {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case <-signal:
			if err := process(d.ctx); err != nil {
				d.log.ErrorCtx(d.ctx, "change processing failed", "kind", kind, "error", err)
			}
		}
	}
}

func pulse(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
