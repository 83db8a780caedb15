package sharedlock

// Kind enumerates the shared-lock lifecycle events published on a
// Provider's event bus, per spec.md §4.9.
type Kind string

const (
	WriterAcquired Kind = "WRITER_ACQUIRED"
	WriterReleased Kind = "WRITER_RELEASED"
	ReaderAcquired Kind = "READER_ACQUIRED"
	ReaderReleased Kind = "READER_RELEASED"
	ForceReleased  Kind = "FORCE_RELEASED"

	// UnavailableReaderHeld is published when acquireWriter is rejected
	// because a live reader slot exists.
	UnavailableReaderHeld Kind = "UNAVAILABLE_READER_HELD"
	// UnavailableWriterHeld is published when acquireReader or
	// acquireWriter is rejected because the writer is currently held.
	UnavailableWriterHeld Kind = "UNAVAILABLE_WRITER_HELD"
	// UnavailableLimitReached is published when acquireReader is rejected
	// because the reader pool is at limit.
	UnavailableLimitReached Kind = "UNAVAILABLE_LIMIT_REACHED"

	UnexpectedErr Kind = "UNEXPECTED_ERROR"
)

// Event is one lifecycle notification for a given key.
type Event struct {
	Kind Kind
	Key  string
	Err  error
}
