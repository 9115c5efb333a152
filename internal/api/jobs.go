package api

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"ticker-strategy-lab/internal/simulation"
)

// JobStatus is the lifecycle state of a sweep job.
type JobStatus string

// Job states
const (
	JobRunning JobStatus = "RUNNING"
	JobDone    JobStatus = "DONE"
	JobFailed  JobStatus = "FAILED"
)

// Event types sent on the progress stream.
const (
	EventProgress = "progress"
	EventDone     = "done"
	EventFailed   = "failed"
)

// Event is one message of a job's progress stream.
type Event struct {
	Type     string               `json:"type"`
	JobID    string               `json:"job_id"`
	Progress *simulation.Progress `json:"progress,omitempty"`
	Outcome  *outcomeResponse     `json:"outcome,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// subscriberBuffer bounds queued events per stream; progress events beyond it are dropped.
const subscriberBuffer = 64

// Finished jobs are kept for DefaultJobTTL, at most DefaultMaxJobs of them.
const (
	DefaultJobTTL  = time.Hour
	DefaultMaxJobs = 100
)

type job struct {
	ID        string
	RunID     string
	Status    JobStatus
	CreatedAt time.Time
	Finished  time.Time
	Progress  simulation.Progress
	Result    *simulation.Result
	Err       error

	subscribers map[chan Event]struct{}
}

// jobRegistry tracks in-flight and finished sweep jobs of this process.
// Finished jobs expire after ttl; beyond maxJobs the oldest finished job is
// evicted. Running jobs are never evicted.
type jobRegistry struct {
	mu       sync.Mutex
	jobs     map[string]*job
	finished []string // finished job IDs, oldest first
	ttl      time.Duration
	maxJobs  int
	now      func() time.Time
}

func newJobRegistry(ttl time.Duration, maxJobs int, now func() time.Time) *jobRegistry {
	if ttl <= 0 {
		ttl = DefaultJobTTL
	}
	if maxJobs <= 0 {
		maxJobs = DefaultMaxJobs
	}
	return &jobRegistry{
		jobs:    make(map[string]*job),
		ttl:     ttl,
		maxJobs: maxJobs,
		now:     now,
	}
}

// create registers a running job with a fresh ID.
func (r *jobRegistry) create(runID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked()
	j := &job{
		ID:          uuid.New().String(),
		RunID:       runID,
		Status:      JobRunning,
		CreatedAt:   r.now(),
		subscribers: make(map[chan Event]struct{}),
	}
	r.jobs[j.ID] = j
	return j.ID
}

// evictLocked drops expired finished jobs, then the oldest ones over maxJobs.
func (r *jobRegistry) evictLocked() {
	cutoff := r.now().Add(-r.ttl)
	drop := 0
	for drop < len(r.finished) {
		j := r.jobs[r.finished[drop]]
		if j.Finished.After(cutoff) && len(r.finished)-drop <= r.maxJobs {
			break
		}
		delete(r.jobs, j.ID)
		drop++
	}
	r.finished = r.finished[drop:]
}

// size returns the number of tracked jobs.
func (r *jobRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// snapshot returns a copy of the job without its subscribers.
func (r *jobRegistry) snapshot(id string) (job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked()
	j, ok := r.jobs[id]
	if !ok {
		return job{}, false
	}
	cp := *j
	cp.subscribers = nil
	return cp, true
}

// progress records p and fans it out without blocking.
func (r *jobRegistry) progress(id string, p simulation.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return
	}
	j.Progress = p
	ev := Event{Type: EventProgress, JobID: id, Progress: &p}
	for ch := range j.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// finish stores the result, sends the final event and closes every stream.
func (r *jobRegistry) finish(id string, res *simulation.Result, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return
	}
	j.Result, j.Err = res, err
	j.Finished = r.now()
	r.finished = append(r.finished, id)
	j.Status = JobDone
	if err != nil {
		j.Status = JobFailed
	}
	final := finalEvent(j)
	for ch := range j.subscribers {
		// the final event always fits: drop queued progress if needed
		select {
		case ch <- final:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- final
		}
		close(ch)
	}
	j.subscribers = nil
	r.evictLocked()
}

// subscribe returns a stream of the job's events. A finished job yields
// its final event and a closed channel.
func (r *jobRegistry) subscribe(id string) (<-chan Event, func(), bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked()
	j, ok := r.jobs[id]
	if !ok {
		return nil, nil, false
	}
	ch := make(chan Event, subscriberBuffer)
	if j.Status != JobRunning {
		ch <- finalEvent(j)
		close(ch)
		return ch, func() {}, true
	}
	j.subscribers[ch] = struct{}{}
	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := j.subscribers[ch]; ok {
			delete(j.subscribers, ch)
			close(ch)
		}
	}
	return ch, cancel, true
}

func finalEvent(j *job) Event {
	if j.Err != nil {
		return Event{Type: EventFailed, JobID: j.ID, Error: j.Err.Error()}
	}
	return Event{Type: EventDone, JobID: j.ID, Outcome: newOutcomeResponse(j.Result.Outcome)}
}
