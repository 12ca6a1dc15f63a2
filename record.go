package buildlogs

// Record is a sealed interface representing one decoded line of a build log
// stream. Transport errors come from Stream.Next's error return, not from
// records. The unexported marker method prevents external implementations.
type Record interface {
	record()
}

// RecordMessage is a single log line emitted by the remote build process.
type RecordMessage struct {
	Text string
}

func (RecordMessage) record() {}

// RecordComplete marks the successful end of a stream. No records follow it.
type RecordComplete struct{}

func (RecordComplete) record() {}

// RecordFailed marks the end of a stream whose build or deployment failed.
// No records follow it.
type RecordFailed struct{}

func (RecordFailed) record() {}

// Interface compliance checks.
var (
	_ Record = RecordMessage{}
	_ Record = RecordComplete{}
	_ Record = RecordFailed{}
)

// IsTerminal reports whether r ends the logical stream.
func IsTerminal(r Record) bool {
	switch r.(type) {
	case RecordComplete, RecordFailed:
		return true
	default:
		return false
	}
}
