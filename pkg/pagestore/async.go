package pagestore

import (
	"fmt"
	"sync"
)

// AsyncStore moves AddPage calls onto a single background worker with a
// bounded queue, so request threads never block on disk I/O.
//
// Tasks for one session reach the inner store in enqueue order; the
// single worker gives a total order across all sessions, which is more
// than the per-session FIFO the contract requires. When the queue is
// full, AddPage blocks until space frees up: deliberate backpressure,
// work is never dropped.
//
// Pending tasks stay visible: GetPage serves a page still sitting in the
// queue, and RemovePage cancels it.
type AsyncStore struct {
	inner Store
	queue chan *pendingTask

	// pending maps "sessionID#pageID" to the latest queued task so reads
	// observe writes that have not reached the inner store yet.
	pending sync.Map

	stop       chan struct{}
	workerDone chan struct{}
	stopOnce   sync.Once
}

var _ Store = (*AsyncStore)(nil)

type pendingTask struct {
	sessionID string
	ctx       Context
	page      Page
}

// NewAsyncStore wraps inner with an asynchronous relay holding at most
// queueCapacity queued pages. queueCapacity below 1 is treated as 1.
func NewAsyncStore(inner Store, queueCapacity int) *AsyncStore {
	if queueCapacity < 1 {
		queueCapacity = 1
	}

	s := &AsyncStore{
		inner:      inner,
		queue:      make(chan *pendingTask, queueCapacity),
		stop:       make(chan struct{}),
		workerDone: make(chan struct{}),
	}

	go s.worker()

	return s
}

// AddPage enqueues the page for background delivery and returns
// immediately, blocking only when the queue is full.
//
// Delegation falls back to a synchronous call when the inner store
// reports it cannot support asynchronous calls for this context, or when
// the relay has been destroyed. CanBeAsynchronous runs on the calling
// thread so the inner store can bind session state while that is still
// possible.
func (s *AsyncStore) AddPage(ctx Context, page Page) {
	if !s.inner.CanBeAsynchronous(ctx) {
		s.inner.AddPage(ctx, page)

		return
	}

	task := &pendingTask{sessionID: ctx.SessionID(), ctx: ctx, page: page}
	key := taskKey(task.sessionID, page.ID())

	s.pending.Store(key, task)

	select {
	case s.queue <- task:
	case <-s.stop:
		// Relay shut down, deliver on the caller's thread.
		s.pending.CompareAndDelete(key, task)
		s.inner.AddPage(ctx, page)
	}
}

// GetPage serves queued pages first, then delegates inward.
func (s *AsyncStore) GetPage(ctx Context, id int) (Page, error) {
	if v, ok := s.pending.Load(taskKey(ctx.SessionID(), id)); ok {
		task, _ := v.(*pendingTask)

		return task.page, nil
	}

	return s.inner.GetPage(ctx, id)
}

// RemovePage cancels a queued task for the page and delegates inward.
func (s *AsyncStore) RemovePage(ctx Context, page Page) {
	s.pending.Delete(taskKey(ctx.SessionID(), page.ID()))

	s.inner.RemovePage(ctx, page)
}

// RemoveAllPages cancels all queued tasks for the session and delegates
// inward.
func (s *AsyncStore) RemoveAllPages(ctx Context) {
	sessionID := ctx.SessionID()

	s.pending.Range(func(key, value any) bool {
		task, _ := value.(*pendingTask)
		if task.sessionID == sessionID {
			s.pending.Delete(key)
		}

		return true
	})

	s.inner.RemoveAllPages(ctx)
}

// CanBeAsynchronous delegates to the inner store.
func (s *AsyncStore) CanBeAsynchronous(ctx Context) bool {
	return s.inner.CanBeAsynchronous(ctx)
}

// Detach detaches the inner store.
func (s *AsyncStore) Detach(ctx Context) {
	s.inner.Detach(ctx)
}

// Destroy stops intake, drains queued tasks on a best-effort basis, joins
// the worker, then destroys the inner store.
func (s *AsyncStore) Destroy() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})

	<-s.workerDone

	// Late enqueues can slip in between the stop signal and the worker
	// exiting; deliver them here.
	s.drain()

	s.inner.Destroy()
}

func (s *AsyncStore) worker() {
	defer close(s.workerDone)

	for {
		select {
		case task := <-s.queue:
			s.deliver(task)
		case <-s.stop:
			s.drain()

			return
		}
	}
}

func (s *AsyncStore) drain() {
	for {
		select {
		case task := <-s.queue:
			s.deliver(task)
		default:
			return
		}
	}
}

func (s *AsyncStore) deliver(task *pendingTask) {
	key := taskKey(task.sessionID, task.page.ID())

	// A task no longer owning its pending entry was cancelled by
	// RemovePage/RemoveAllPages or superseded by a newer AddPage; it must
	// not resurrect the page in the inner store.
	if current, ok := s.pending.Load(key); !ok || current != task {
		return
	}

	s.inner.AddPage(task.ctx, task.page)

	// Only clear the pending entry if a newer task for the same page has
	// not replaced it in the meantime.
	s.pending.CompareAndDelete(key, task)
}

func taskKey(sessionID string, pageID int) string {
	return fmt.Sprintf("%s#%d", sessionID, pageID)
}
