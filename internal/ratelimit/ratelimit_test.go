package ratelimit

import (
	"testing"
	"time"
)

func TestParseReply(t *testing.T) {
	l := New(nil, "ratelimit:chat", 60, time.Minute)

	tests := []struct {
		name          string
		reply         []interface{}
		wantAllowed   bool
		wantRemaining int
		wantErr       bool
	}{
		{
			name:          "first request in window",
			reply:         []interface{}{int64(1), int64(59), int64(1_700_000_060_000)},
			wantAllowed:   true,
			wantRemaining: 59,
		},
		{
			name:          "at the limit",
			reply:         []interface{}{int64(60), int64(0), int64(1_700_000_060_000)},
			wantAllowed:   true,
			wantRemaining: 0,
		},
		{
			name:          "over the limit",
			reply:         []interface{}{int64(61), int64(0), int64(1_700_000_060_000)},
			wantAllowed:   false,
			wantRemaining: 0,
		},
		{
			name:    "wrong value type",
			reply:   []interface{}{"61", int64(0), int64(0)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := l.parseReply(tt.reply)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", res.Allowed, tt.wantAllowed)
			}
			if res.Remaining != tt.wantRemaining {
				t.Errorf("Remaining = %d, want %d", res.Remaining, tt.wantRemaining)
			}
			if res.Limit != 60 {
				t.Errorf("Limit = %d, want 60", res.Limit)
			}
			if res.Reset != time.UnixMilli(1_700_000_060_000) {
				t.Errorf("Reset = %v", res.Reset)
			}
		})
	}
}

func TestNewClientRejectsBadURL(t *testing.T) {
	if _, err := NewClient(t.Context(), "not-a-redis-url"); err == nil {
		t.Error("expected error for invalid URL")
	}
}
