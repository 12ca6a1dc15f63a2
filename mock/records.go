package mock

import (
	"io"
	"sync"

	"github.com/fastapicloud/buildlogs"
)

// Records returns a Stream that yields recs in order and then io.EOF. A
// RecordComplete or RecordFailed ends the stream like the HTTP source does:
// it moves the state and returns io.EOF without being yielded. The returned
// stream tracks its state and lines the way a real stream would.
func Records(recs ...buildlogs.Record) *Stream {
	return RecordsThen(nil, recs...)
}

// RecordsThen is like Records but returns err instead of io.EOF when recs
// run out without a terminal record. A nil err behaves like Records.
func RecordsThen(err error, recs ...buildlogs.Record) *Stream {
	var (
		mu    sync.Mutex
		i     int
		state = buildlogs.StreamStateIdle
		lines []string
	)
	return &Stream{
		NextFn: func() (buildlogs.Record, error) {
			mu.Lock()
			defer mu.Unlock()
			switch state {
			case buildlogs.StreamStateClosed:
				return nil, buildlogs.ErrStreamClosed
			case buildlogs.StreamStateErrored:
				return nil, err
			}
			if state.Terminal() {
				return nil, io.EOF
			}
			if i >= len(recs) {
				if err != nil {
					state = buildlogs.StreamStateErrored
					return nil, err
				}
				state = buildlogs.StreamStateCompleted
				return nil, io.EOF
			}
			rec := recs[i]
			i++
			switch r := rec.(type) {
			case buildlogs.RecordComplete:
				state = buildlogs.StreamStateCompleted
				return nil, io.EOF
			case buildlogs.RecordFailed:
				state = buildlogs.StreamStateFailed
				return nil, io.EOF
			case buildlogs.RecordMessage:
				state = buildlogs.StreamStateStreaming
				lines = append(lines, r.Text)
			}
			return rec, nil
		},
		StateFn: func() buildlogs.StreamState {
			mu.Lock()
			defer mu.Unlock()
			return state
		},
		LinesFn: func() []string {
			mu.Lock()
			defer mu.Unlock()
			return append([]string(nil), lines...)
		},
		CloseFn: func() error {
			mu.Lock()
			defer mu.Unlock()
			if !state.Terminal() {
				state = buildlogs.StreamStateClosed
			}
			return nil
		},
	}
}
