package scribe

import (
	"context"
	"sync"
	"time"
)

// Run drives the idle evaluator and, while armed, the sampling tick until
// ctx is cancelled. Frames arrive separately through HandleFrame.
//
// The sampling ticker only exists while the pipeline is armed, so a
// disarm cancels future ticks outright. Dispatches run in their own
// goroutines; Run waits for them before returning.
func (p *Pipeline) Run(ctx context.Context) error {
	idle := time.NewTicker(p.cfg.IdleInterval)
	defer idle.Stop()

	var (
		sample  *time.Ticker
		sampleC <-chan time.Time
		wg      sync.WaitGroup
	)
	defer wg.Wait()

	setSampling := func(on bool) {
		switch {
		case on && sample == nil:
			sample = time.NewTicker(p.cfg.SampleInterval)
			sampleC = sample.C
		case !on && sample != nil:
			sample.Stop()
			sample, sampleC = nil, nil
		}
	}
	defer setSampling(false)
	setSampling(p.Armed())

	p.log.Info("pipeline running",
		"sample_interval", p.cfg.SampleInterval,
		"idle_interval", p.cfg.IdleInterval,
		"idle_threshold", p.cfg.IdleThreshold)

	for {
		select {
		case <-ctx.Done():
			p.log.Info("pipeline stopped")
			return nil
		case <-idle.C:
			p.EvaluateIdle()
		case <-p.armCh:
			setSampling(p.Armed())
		case <-sampleC:
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.Sample(ctx)
			}()
		}
	}
}
