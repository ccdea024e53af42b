/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package offline

import (
	"context"
	"sync"
	"time"

	"github.com/jerry-enebeli/offline/model"
	"github.com/sirupsen/logrus"
)

// Processor is the part of QueueManager a SyncProcessor drives.
type Processor interface {
	ProcessQueue(ctx context.Context) []model.SyncResult
	HasPending() bool
}

// SyncProcessor drains a queue on a fixed interval and on demand.
type SyncProcessor struct {
	queue        Processor
	pollInterval time.Duration
	triggerCh    chan struct{}
	stopCh       chan struct{}
	wg           sync.WaitGroup
	running      bool
	mu           sync.Mutex
}

func NewSyncProcessor(queue Processor, pollInterval time.Duration) *SyncProcessor {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	return &SyncProcessor{
		queue:        queue,
		pollInterval: pollInterval,
		triggerCh:    make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
	}
}

func (p *SyncProcessor) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx)
	}()

	logrus.WithField("poll_interval", p.pollInterval).Info("Sync processor started")
}

func (p *SyncProcessor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()
	logrus.Info("Sync processor stopped")
}

func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// TriggerNow asks for a run without waiting for the next tick, e.g. when connectivity
// comes back. Triggers made while one is already waiting are merged.
func (p *SyncProcessor) TriggerNow() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

func (p *SyncProcessor) run(ctx context.Context) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Sync processor context cancelled")
			p.mu.Lock()
			p.running = false
			p.mu.Unlock()
			return
		case <-p.stopCh:
			logrus.Info("Sync processor stop signal received")
			return
		case <-ticker.C:
			p.drain(ctx)
		case <-p.triggerCh:
			p.drain(ctx)
		}
	}
}

func (p *SyncProcessor) drain(ctx context.Context) {
	if !p.queue.HasPending() {
		return
	}
	results := p.queue.ProcessQueue(ctx)

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	if len(results) > 0 {
		logrus.WithFields(logrus.Fields{
			"processed": len(results),
			"failed":    failed,
		}).Info("Sync run completed")
	}
}
