package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Tyrowin/gochat-ircd/internal/directory"
	"github.com/Tyrowin/gochat-ircd/internal/dispatch"
	"github.com/Tyrowin/gochat-ircd/internal/meter"
)

// workerPool runs the dispatch stage. Readers offer connections that have
// pending input; a connection is claimed by at most one worker at a time, so
// its lines are dispatched in arrival order while different connections are
// served in parallel.
type workerPool struct {
	ready      chan *directory.Connection
	dispatcher *dispatch.Dispatcher
	meters     []*meter.AverageMeter
	logger     *slog.Logger
	wg         sync.WaitGroup
	stopOnce   sync.Once
}

func newWorkerPool(d *dispatch.Dispatcher, meters []*meter.AverageMeter, logger *slog.Logger) *workerPool {
	return &workerPool{
		ready:      make(chan *directory.Connection, len(meters)),
		dispatcher: d,
		meters:     meters,
		logger:     logger,
	}
}

func (p *workerPool) start() {
	for i, m := range p.meters {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.work(i, m)
		}()
	}
}

// schedule hands c to a worker unless one already owns it. Only readers
// call schedule, and never after stop.
func (p *workerPool) schedule(c *directory.Connection) {
	if c.TrySchedule() {
		p.ready <- c
	}
}

// stop lets the workers finish every offered connection and waits for them.
func (p *workerPool) stop() {
	p.stopOnce.Do(func() { close(p.ready) })
	p.wg.Wait()
}

func (p *workerPool) work(id int, m *meter.AverageMeter) {
	for c := range p.ready {
		for {
			p.drain(c, m)
			c.Unschedule()
			// A reader may have pushed after the last Poll while the claim
			// was still held; take the connection back if so.
			if c.Input().Len() == 0 || !c.TrySchedule() {
				break
			}
		}
	}
	p.logger.Debug("Dispatch worker stopped", "worker", id)
}

func (p *workerPool) drain(c *directory.Connection, m *meter.AverageMeter) {
	for {
		line, ok := c.Input().Poll()
		if !ok {
			return
		}
		p.dispatch(c, line, m)
	}
}

func (p *workerPool) dispatch(c *directory.Connection, line string, m *meter.AverageMeter) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Recovered from panic in dispatch", "connection", c.ID(), "panic", r)
			_ = c.Close()
		}
	}()

	m.IntervalStart(time.Now().UnixNano())
	p.dispatcher.Dispatch(c.Talker(), line)
	m.IntervalEnd(time.Now().UnixNano())
}

// meanLatency averages the per-worker dispatch means. Workers that have not
// dispatched anything yet are left out.
func meanLatency(meters []*meter.AverageMeter) time.Duration {
	var sum int64
	var n int64
	for _, m := range meters {
		if avg, ok := m.AvgValue(); ok {
			sum += avg
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return time.Duration(sum / n)
}
