package archive

// WriteBuffer counts the changes that were applied to the in-memory delta of an archive
// but not yet written to the archive file. Once the threshold is reached the owner must
// rewrite (flush) the archive and Reset the buffer.
//
// Thread-safety: WriteBuffer is not thread-safe, the archive engine guards it with its lock.
type WriteBuffer struct {
	threshold int
	pending   int
	flushes   int
}

// NewWriteBuffer creates a buffer that requests a flush after threshold changes.
// A threshold below 1 requests a flush after every change.
func NewWriteBuffer(threshold int) *WriteBuffer {
	if threshold < 1 {
		threshold = 1
	}
	return &WriteBuffer{threshold: threshold}
}

// Record registers one uncommitted change and reports whether a flush is due.
func (b *WriteBuffer) Record() (flush bool) {
	b.pending++
	return b.pending >= b.threshold
}

// Pending returns the number of uncommitted changes.
func (b *WriteBuffer) Pending() int {
	return b.pending
}

// Threshold returns the configured flush threshold.
func (b *WriteBuffer) Threshold() int {
	return b.threshold
}

// Flushes returns how often the buffer was reset after a flush.
func (b *WriteBuffer) Flushes() int {
	return b.flushes
}

// Reset marks all pending changes as committed.
func (b *WriteBuffer) Reset() {
	if b.pending > 0 {
		b.flushes++
	}
	b.pending = 0
}
