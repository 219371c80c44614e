package services

import (
	"context"
	"sync"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/lightfolio/server/internal/observability"
)

// CleanupService deletes orphaned cached objects in the background. Deletion
// is best-effort with retries; a task that keeps failing is logged and
// dropped so metadata consistency never waits on storage.
type CleanupService struct {
	store    ObjectStore
	tasks    chan cleanupTask
	maxTries uint

	// replaceable in tests to avoid real backoff delays
	newBackOff func() backoff.BackOff

	wg   sync.WaitGroup
	once sync.Once
}

type cleanupTask struct {
	id     string
	object string
}

// NewCleanupService creates a CleanupService with a bounded queue.
func NewCleanupService(store ObjectStore, queueSize int, maxTries uint) *CleanupService {
	if queueSize <= 0 {
		queueSize = 256
	}
	if maxTries == 0 {
		maxTries = 5
	}
	return &CleanupService{
		store:      store,
		tasks:      make(chan cleanupTask, queueSize),
		maxTries:   maxTries,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
}

// Start launches the worker. It drains until Stop is called; ctx bounds the
// individual delete attempts.
func (s *CleanupService) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for task := range s.tasks {
			s.run(ctx, task)
		}
	}()
}

// Stop closes the queue and waits for in-flight deletions to finish.
func (s *CleanupService) Stop() {
	s.once.Do(func() { close(s.tasks) })
	s.wg.Wait()
}

// Enqueue schedules objects for deletion. When the queue is full the task is
// dropped with a log line; the objects are unreachable garbage either way.
func (s *CleanupService) Enqueue(objects ...string) {
	for _, object := range objects {
		task := cleanupTask{id: uuid.New().String(), object: object}
		select {
		case s.tasks <- task:
		default:
			observability.WithFields(map[string]any{
				"task_id": task.id,
				"object":  object,
			}).Warn("cleanup queue full, dropping task")
		}
	}
}

func (s *CleanupService) run(ctx context.Context, task cleanupTask) {
	log := observability.WithFields(map[string]any{
		"task_id": task.id,
		"object":  task.object,
	})

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, s.store.Delete(ctx, task.object)
	}, backoff.WithBackOff(s.newBackOff()), backoff.WithMaxTries(s.maxTries))
	if err != nil {
		log.Warnf("giving up on cached object cleanup: %v", err)
		return
	}
	log.Debug("cached object deleted")
}
