package main

import (
	"context"
	"fmt"
	"io"

	"github.com/fastapicloud/buildlogs"
	"github.com/fastapicloud/buildlogs/ndjson"
)

// printSession writes the session's lines to w as they arrive and returns
// the final snapshot. In raw mode each line is re-encoded as an NDJSON
// message record and a complete or failed record closes the output.
func printSession(ctx context.Context, w io.Writer, s *buildlogs.Session, raw bool) (buildlogs.Snapshot, error) {
	printed := 0
	for {
		ch := s.Changed()
		delta := s.SnapshotFrom(printed)
		for _, line := range delta.Lines {
			if err := writeLine(w, line, raw); err != nil {
				return s.Snapshot(), err
			}
		}
		printed += len(delta.Lines)

		if delta.State.Terminal() {
			snap := s.Snapshot()
			if raw {
				return snap, writeTerminal(w, snap.State)
			}
			return snap, nil
		}

		select {
		case <-ch:
		case <-s.Done():
		case <-ctx.Done():
			// The session shares ctx and settles as closed shortly.
			<-s.Done()
		}
	}
}

func writeLine(w io.Writer, line string, raw bool) error {
	if !raw {
		_, err := fmt.Fprintln(w, line)
		return err
	}
	data, err := ndjson.Encode(buildlogs.RecordMessage{Text: line})
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func writeTerminal(w io.Writer, state buildlogs.StreamState) error {
	var rec buildlogs.Record
	switch state {
	case buildlogs.StreamStateCompleted, buildlogs.StreamStateMalformed:
		rec = buildlogs.RecordComplete{}
	case buildlogs.StreamStateFailed:
		rec = buildlogs.RecordFailed{}
	default:
		return nil
	}
	data, err := ndjson.Encode(rec)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
