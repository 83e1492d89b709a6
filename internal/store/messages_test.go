package store

import (
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func fieldValue(set bson.D, key string) (any, bool) {
	for _, e := range set {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func TestStatusUpdate(t *testing.T) {
	tests := []struct {
		name         string
		status       Status
		errorMessage string
		wantErrored  bool
		wantStopped  bool
		wantErrText  string
	}{
		{
			name:        "done clears both flags",
			status:      StatusDone,
			wantErrored: false,
			wantStopped: false,
		},
		{
			name:         "error sets flag and text",
			status:       StatusError,
			errorMessage: "connection reset",
			wantErrored:  true,
			wantStopped:  false,
			wantErrText:  "connection reset",
		},
		{
			name:        "stopped sets stopped only",
			status:      StatusStopped,
			wantErrored: false,
			wantStopped: true,
		},
		{
			name:        "streaming clears both flags",
			status:      StatusStreaming,
			wantErrored: false,
			wantStopped: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := statusUpdate(tt.status, tt.errorMessage)

			if got, ok := fieldValue(set, "status"); !ok || got != tt.status {
				t.Errorf("status = %v", got)
			}
			if got, ok := fieldValue(set, "isErrored"); !ok || got != tt.wantErrored {
				t.Errorf("isErrored = %v, want %v", got, tt.wantErrored)
			}
			// Leaving a state must clear its flag, not just leave it be.
			if got, ok := fieldValue(set, "isStopped"); !ok || got != tt.wantStopped {
				t.Errorf("isStopped = %v, want %v", got, tt.wantStopped)
			}
			if got, ok := fieldValue(set, "errorMessage"); !ok || got != tt.wantErrText {
				t.Errorf("errorMessage = %v, want %q", got, tt.wantErrText)
			}
			if _, ok := fieldValue(set, "updatedAt"); !ok {
				t.Error("transition must touch updatedAt")
			}
		})
	}
}
