package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Executor runs one acquisition job to completion.
type Executor func(ctx context.Context, job *SyncJob) error

// Coordinator guarantees at most one active job per cache key and runs jobs
// on a fixed-size worker pool, so a burst of cache misses never fans out
// into unbounded goroutines. Duplicate enqueue requests for a key that is
// still pending or running coalesce at the enqueue boundary.
type Coordinator struct {
	workerCount int
	maxJobs     int

	mu         sync.RWMutex
	jobs       map[string]*SyncJob
	active     map[string]string // cache key -> job ID, pending/running only
	started    bool
	pendingIDs chan string
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

func NewCoordinator(workerCount int) *Coordinator {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Coordinator{
		workerCount: workerCount,
		maxJobs:     1000,
		jobs:        make(map[string]*SyncJob),
		active:      make(map[string]string),
		pendingIDs:  make(chan string, 1024),
		stopCh:      make(chan struct{}),
	}
}

// EnsureRunning enqueues a job for the cache key unless one is already
// pending or running. The check and the claim happen under one lock, so two
// concurrent calls for the same key yield exactly one worker invocation.
// Returns the job tracking the key and whether this call created it.
func (c *Coordinator) EnsureRunning(req EnqueueRequest) (*SyncJob, bool) {
	now := time.Now()

	c.mu.Lock()
	if id, ok := c.active[req.CacheKey]; ok {
		if existing, exists := c.jobs[id]; exists {
			snapshot := cloneJob(existing)
			c.mu.Unlock()
			return snapshot, false
		}
		delete(c.active, req.CacheKey)
	}

	job := &SyncJob{
		ID:        uuid.NewString(),
		Source:    req.Source,
		CacheKey:  req.CacheKey,
		Payload:   req.Payload,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	c.jobs[job.ID] = job
	c.active[req.CacheKey] = job.ID
	started := c.started
	snapshot := cloneJob(job)
	c.mu.Unlock()

	if started {
		c.enqueuePendingID(job.ID)
	}
	return snapshot, true
}

func (c *Coordinator) Get(id string) (*SyncJob, bool) {
	c.mu.RLock()
	job, ok := c.jobs[id]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return cloneJob(job), true
}

// GetByKey returns the job currently claiming the cache key, if any.
func (c *Coordinator) GetByKey(cacheKey string) (*SyncJob, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.active[cacheKey]
	if !ok {
		return nil, false
	}
	job, ok := c.jobs[id]
	if !ok {
		return nil, false
	}
	return cloneJob(job), true
}

func (c *Coordinator) List() []*SyncJob {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ret := make([]*SyncJob, 0, len(c.jobs))
	for _, job := range c.jobs {
		ret = append(ret, cloneJob(job))
	}
	return ret
}

// Start launches the worker pool. Jobs enqueued before Start are picked up.
func (c *Coordinator) Start(exec Executor) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true

	pending := make([]string, 0)
	for id, job := range c.jobs {
		if job.Status == StatusPending {
			pending = append(pending, id)
		}
	}
	c.mu.Unlock()

	for _, id := range pending {
		c.enqueuePendingID(id)
	}

	for i := 0; i < c.workerCount; i++ {
		c.wg.Add(1)
		go c.worker(exec)
	}
}

func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		c.wg.Wait()
	})
}

func (c *Coordinator) worker(exec Executor) {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopCh:
			return
		case id := <-c.pendingIDs:
			job, ok := c.markRunning(id)
			if !ok {
				continue
			}

			err := runExecutor(exec, job)
			if err != nil {
				c.markFailed(id, err)
				continue
			}
			c.markDone(id)
		}
	}
}

// runExecutor shields the pool from a panicking job: the job fails, the
// worker goroutine survives, other keys keep flowing.
func runExecutor(exec Executor, job *SyncJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return exec(context.Background(), job)
}

func (c *Coordinator) enqueuePendingID(id string) {
	select {
	case c.pendingIDs <- id:
	default:
		go func() { c.pendingIDs <- id }()
	}
}

func (c *Coordinator) markRunning(id string) (*SyncJob, bool) {
	c.mu.Lock()
	job, ok := c.jobs[id]
	if !ok || job.Status != StatusPending {
		c.mu.Unlock()
		return nil, false
	}
	job.Status = StatusRunning
	job.UpdatedAt = time.Now()
	snapshot := cloneJob(job)
	c.mu.Unlock()
	return snapshot, true
}

func (c *Coordinator) markDone(id string) {
	c.finishJob(id, StatusDone, nil)
}

func (c *Coordinator) markFailed(id string, err error) {
	c.finishJob(id, StatusFailed, err)
}

func (c *Coordinator) finishJob(id string, status Status, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	job, ok := c.jobs[id]
	if !ok {
		return
	}
	job.Status = status
	job.Error = ""
	if err != nil {
		job.Error = err.Error()
	}
	job.UpdatedAt = time.Now()
	c.releaseKeyLocked(job)
	c.pruneTerminalJobsLocked()
}

// releaseKeyLocked frees the cache key so a later lookup may enqueue a
// fresh job when the artifact is still absent. Done/Failed jobs are never
// resurrected.
func (c *Coordinator) releaseKeyLocked(job *SyncJob) {
	if job == nil || job.CacheKey == "" {
		return
	}
	if id, ok := c.active[job.CacheKey]; ok && id == job.ID {
		delete(c.active, job.CacheKey)
	}
}

func (c *Coordinator) pruneTerminalJobsLocked() {
	if c.maxJobs <= 0 || len(c.jobs) <= c.maxJobs {
		return
	}

	type candidate struct {
		id        string
		updatedAt time.Time
	}
	terminal := make([]candidate, 0, len(c.jobs))
	for id, job := range c.jobs {
		if job == nil {
			continue
		}
		if job.Status == StatusPending || job.Status == StatusRunning {
			continue
		}
		terminal = append(terminal, candidate{id: id, updatedAt: job.UpdatedAt})
	}
	if len(terminal) == 0 {
		return
	}

	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].updatedAt.Before(terminal[j].updatedAt)
	})

	toRemove := len(c.jobs) - c.maxJobs
	if toRemove > len(terminal) {
		toRemove = len(terminal)
	}
	for i := 0; i < toRemove; i++ {
		delete(c.jobs, terminal[i].id)
	}
}

func cloneJob(job *SyncJob) *SyncJob {
	if job == nil {
		return nil
	}
	tmp := *job
	return &tmp
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("job panicked: %v", e.value)
}
