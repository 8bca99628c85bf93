package database

import (
	"context"
	"errors"
	"sync"

	"storefront/models"
)

// ErrStoreClosed is returned by a SerialOrderStore after Close.
var ErrStoreClosed = errors.New("order store closed")

type createJob struct {
	ctx   context.Context
	req   models.OrderRequest
	reply chan createResult
}

type createResult struct {
	record models.OrderRecord
	err    error
}

// SerialOrderStore funnels every Create through a single writer goroutine, so
// the read-modify-write cycles of the wrapped store never overlap.
type SerialOrderStore struct {
	inner OrderStore
	jobs  chan createJob

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewSerialOrderStore(inner OrderStore, queueSize int) *SerialOrderStore {
	s := &SerialOrderStore{
		inner: inner,
		jobs:  make(chan createJob, queueSize),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *SerialOrderStore) run() {
	defer s.wg.Done()
	for job := range s.jobs {
		if err := job.ctx.Err(); err != nil {
			job.reply <- createResult{err: err}
			continue
		}
		record, err := s.inner.Create(job.ctx, job.req)
		job.reply <- createResult{record: record, err: err}
	}
}

func (s *SerialOrderStore) Create(ctx context.Context, req models.OrderRequest) (models.OrderRecord, error) {
	job := createJob{ctx: ctx, req: req, reply: make(chan createResult, 1)}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return models.OrderRecord{}, ErrStoreClosed
	}
	select {
	case s.jobs <- job:
		s.mu.RUnlock()
	case <-ctx.Done():
		s.mu.RUnlock()
		return models.OrderRecord{}, ctx.Err()
	}

	// Once queued the writer always replies.
	res := <-job.reply
	return res.record, res.err
}

func (s *SerialOrderStore) List(ctx context.Context) ([]models.OrderRecord, error) {
	return s.inner.List(ctx)
}

// Close stops accepting orders, waits for the queued ones and closes the
// wrapped store.
func (s *SerialOrderStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.jobs)
	s.mu.Unlock()

	s.wg.Wait()
	return s.inner.Close()
}
