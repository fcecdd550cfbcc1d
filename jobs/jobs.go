// Package jobs keeps asynchronous scrape jobs in memory until they expire.
package jobs

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/use-agent/shelfscan/models"
	"github.com/use-agent/shelfscan/run"
)

// ErrBusy is returned by Create when the running-job cap is reached.
var ErrBusy = errors.New("jobs: too many running jobs")

// Job is one scrape run. All accessors are safe for concurrent use.
type Job struct {
	ID            string
	WebhookURL    string
	WebhookSecret string

	mu          sync.RWMutex
	status      string
	progress    models.Progress
	result      *run.Result
	err         error
	createdAt   time.Time
	completedAt time.Time
}

// SetProgress records the latest progress event.
func (j *Job) SetProgress(p models.Progress) {
	j.mu.Lock()
	j.progress = p
	j.mu.Unlock()
}

// Finish stores the outcome and moves the job to a terminal status.
func (j *Job) Finish(res *run.Result, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.result = res
	j.err = err
	j.completedAt = time.Now()
	switch {
	case err != nil:
		j.status = models.StatusFailed
	case res == nil || res.Empty():
		j.status = models.StatusEmpty
	default:
		j.status = models.StatusCompleted
	}
}

// Status returns the current status.
func (j *Job) Status() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// Done reports whether the job reached a terminal status.
func (j *Job) Done() bool {
	return j.Status() != models.StatusProcessing
}

// Result returns the outcome of a finished job.
func (j *Job) Result() (*run.Result, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.result, j.err
}

// Snapshot renders the job for the status endpoint.
func (j *Job) Snapshot() models.ScrapeStatusResponse {
	j.mu.RLock()
	defer j.mu.RUnlock()

	resp := models.ScrapeStatusResponse{
		ID:        j.ID,
		Status:    j.status,
		Progress:  j.progress,
		CreatedAt: j.createdAt.Unix(),
	}
	if !j.completedAt.IsZero() {
		resp.CompletedAt = j.completedAt.Unix()
	}
	if j.err != nil {
		resp.Error = models.DetailOf(j.err)
	}
	if r := j.result; r != nil {
		resp.NewRows = r.NewRows
		resp.TotalRows = r.TotalRows
		resp.Columns = r.Columns
		resp.DurationMs = r.Duration.Milliseconds()
		resp.Warning = r.Warning
		if r.Export != nil {
			resp.Filename = r.Export.Filename
		}
	}
	return resp
}

// Store is an in-memory job registry with TTL-based expiry.
type Store struct {
	mu         sync.RWMutex
	jobs       map[string]*Job
	ttl        time.Duration
	maxRunning int
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewStore creates a Store and starts its sweeper. Call Close to stop it.
func NewStore(ttl time.Duration, maxRunning int) *Store {
	s := &Store{
		jobs:       make(map[string]*Job),
		ttl:        ttl,
		maxRunning: maxRunning,
		stop:       make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

// Create registers a new processing job.
func (s *Store) Create(webhookURL, webhookSecret string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxRunning > 0 && s.runningLocked() >= s.maxRunning {
		return nil, ErrBusy
	}
	j := &Job{
		ID:            "scrape-" + randomID(),
		WebhookURL:    webhookURL,
		WebhookSecret: webhookSecret,
		status:        models.StatusProcessing,
		createdAt:     time.Now(),
	}
	s.jobs[j.ID] = j
	return j, nil
}

// Get looks up a job by ID.
func (s *Store) Get(id string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	return j, ok
}

// Stats reports running and stored counts.
func (s *Store) Stats() models.JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.JobStats{
		Running:    s.runningLocked(),
		Stored:     len(s.jobs),
		MaxRunning: s.maxRunning,
	}
}

func (s *Store) runningLocked() int {
	n := 0
	for _, j := range s.jobs {
		if !j.Done() {
			n++
		}
	}
	return n
}

// Sweep removes finished jobs that completed before now-ttl and returns
// how many were removed. Running jobs are never removed.
func (s *Store) Sweep(now time.Time) int {
	cutoff := now.Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, j := range s.jobs {
		j.mu.RLock()
		expired := j.status != models.StatusProcessing && j.completedAt.Before(cutoff)
		j.mu.RUnlock()
		if expired {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// Close stops the sweeper.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// cleanupLoop sweeps expired jobs every 5 minutes.
func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}

func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
