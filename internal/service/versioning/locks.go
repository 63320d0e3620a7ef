package versioning

import "sync"

// datasetLocks is a per-dataset exclusive try-lock registry. Applies hold
// the lock for their full duration; previews and reads never touch it.
// Lock state is in-process only: the service instance is the single writer
// for its metadata store.
type datasetLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newDatasetLocks() *datasetLocks {
	return &datasetLocks{held: make(map[string]bool)}
}

// TryLock acquires the lock for a dataset. Returns false when another
// apply already holds it.
func (l *datasetLocks) TryLock(datasetID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[datasetID] {
		return false
	}
	l.held[datasetID] = true
	return true
}

// Unlock releases the lock for a dataset.
func (l *datasetLocks) Unlock(datasetID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, datasetID)
}
