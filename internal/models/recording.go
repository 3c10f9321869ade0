// Package models holds the typed records exchanged with the Zoom API.
// All validation of loosely structured provider metadata happens here, at the
// ingestion boundary, so the engines never probe for missing fields.
package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnparseableTime is returned when a recording's start_time matches
// neither of the timestamp layouts Zoom has been observed to emit.
var ErrUnparseableTime = errors.New("models: unparseable start time")

// Recording is one meeting occurrence and its set of recorded media files,
// as reported by the recordings listing endpoint.
type Recording struct {
	// UUID is the stable, globally unique identifier for this occurrence.
	// The numeric meeting ID repeats across recurring meetings, so the ledger
	// is keyed on the UUID.
	UUID      string `json:"uuid"`
	MeetingID int64  `json:"id"`
	Topic     string `json:"topic"`
	HostEmail string `json:"host_email"`
	StartTime string `json:"start_time"`

	RecordingFiles []RecordingFile `json:"recording_files"`
}

// RecordingFile is a single media asset of a recording. DownloadURL is a
// time-limited, bearer-token-protected link and may be absent for assets
// still being processed on the Zoom side.
type RecordingFile struct {
	ID          string `json:"id"`
	FileType    string `json:"file_type"`
	FileSize    int64  `json:"file_size"`
	DownloadURL string `json:"download_url"`
}

// Zoom returns start_time as RFC 3339 ("2025-01-15T13:34:06Z"), but some
// report surfaces use a space separator instead of the T. Both are accepted
// on the first 19 characters, timezone information is ignored.
const (
	layoutISO   = "2006-01-02T15:04:05"
	layoutSpace = "2006-01-02 15:04:05"
)

// StartsAt parses the recording's start timestamp.
func (r Recording) StartsAt() (time.Time, error) {
	return ParseStartTime(r.StartTime)
}

// ParseStartTime parses a Zoom start_time value in either of the two layouts
// observed in the wild. An unrecognized value yields ErrUnparseableTime.
func ParseStartTime(s string) (time.Time, error) {
	trimmed := s
	if len(trimmed) > 19 {
		trimmed = trimmed[:19]
	}
	if t, err := time.Parse(layoutISO, trimmed); err == nil {
		return t, nil
	}
	if t, err := time.Parse(layoutSpace, trimmed); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableTime, s)
}

// StartDate returns the date portion ("YYYY-MM-DD") of the raw start_time,
// used when composing the meeting folder name.
func (r Recording) StartDate() string {
	if len(r.StartTime) >= 10 {
		return r.StartTime[:10]
	}
	return r.StartTime
}
