// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package cmmn

import (
	"context"
	"sync"
)

type runningInstance struct {
	lock    chan struct{}
	holders int
}

// RunningInstancesCache serializes commands per case instance.
// An entry lives as long as some goroutine holds or waits for its lock.
type RunningInstancesCache struct {
	caseInstances map[string]*runningInstance
	mu            sync.Mutex
}

func NewRunningInstancesCache() *RunningInstancesCache {
	return &RunningInstancesCache{
		caseInstances: map[string]*runningInstance{},
	}
}

func (c *RunningInstancesCache) lockInstance(ctx context.Context, caseInstanceId string) error {
	c.mu.Lock()
	ins, ok := c.caseInstances[caseInstanceId]
	if !ok {
		ins = &runningInstance{lock: make(chan struct{}, 1)}
		c.caseInstances[caseInstanceId] = ins
	}
	ins.holders++
	c.mu.Unlock()

	select {
	case ins.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		c.release(caseInstanceId, ins)
		return ctx.Err()
	}
}

func (c *RunningInstancesCache) unlockInstance(caseInstanceId string) {
	c.mu.Lock()
	ins, ok := c.caseInstances[caseInstanceId]
	c.mu.Unlock()
	if !ok {
		return
	}
	<-ins.lock
	c.release(caseInstanceId, ins)
}

func (c *RunningInstancesCache) release(caseInstanceId string, ins *runningInstance) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ins.holders--
	if ins.holders == 0 {
		delete(c.caseInstances, caseInstanceId)
	}
}

func (c *RunningInstancesCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.caseInstances)
}
