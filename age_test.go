package hishel

import (
	"net/http"
	"testing"
	"time"
)

func TestCalculateAge(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		resp    Response
		now     time.Time
		wantMin time.Duration
		wantMax time.Duration
	}{
		{
			name: "fresh response with matching Date has near-zero age at fetch time",
			resp: Response{
				Header: http.Header{"Date": {base.Format(http.TimeFormat)}},
				Metadata: ResponseMetadata{
					RequestTime:  base,
					ResponseTime: base,
				},
			},
			now:     base,
			wantMin: 0,
			wantMax: time.Second,
		},
		{
			name: "resident time accumulates since response_time",
			resp: Response{
				Header: http.Header{"Date": {base.Format(http.TimeFormat)}},
				Metadata: ResponseMetadata{
					RequestTime:  base,
					ResponseTime: base,
				},
			},
			now:     base.Add(10 * time.Minute),
			wantMin: 10 * time.Minute,
			wantMax: 10*time.Minute + time.Second,
		},
		{
			name: "upstream Age header is added in",
			resp: Response{
				Header: http.Header{
					"Date": {base.Format(http.TimeFormat)},
					"Age":  {"30"},
				},
				Metadata: ResponseMetadata{
					RequestTime:  base,
					ResponseTime: base,
				},
			},
			now:     base,
			wantMin: 30 * time.Second,
			wantMax: 31 * time.Second,
		},
		{
			name: "missing Date header falls back to response time",
			resp: Response{
				Header: http.Header{},
				Metadata: ResponseMetadata{
					RequestTime:  base,
					ResponseTime: base,
				},
			},
			now:     base,
			wantMin: 0,
			wantMax: time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateAge(tt.resp, tt.now)
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("CalculateAge() = %v, want between %v and %v", got, tt.wantMin, tt.wantMax)
			}
		})
	}
}
