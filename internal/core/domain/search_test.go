package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestSearchQueryValidateTrimsText(t *testing.T) {
	q := SearchQuery{Text: "  fold the towel \n", K: 10, Mode: ModeHybrid}
	if err := q.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if q.Text != "fold the towel" {
		t.Fatalf("expected trimmed text, got %q", q.Text)
	}
}

func TestSearchQueryValidateRejectsBadInput(t *testing.T) {
	cases := map[string]SearchQuery{
		"blank text":   {Text: "   ", K: 10, Mode: ModeSemantic},
		"zero k":       {Text: "towel", K: 0, Mode: ModeSemantic},
		"negative k":   {Text: "towel", K: -3, Mode: ModeSemantic},
		"unknown mode": {Text: "towel", K: 5, Mode: "fuzzy"},
	}
	for name, q := range cases {
		err := q.Validate()
		if !IsKind(err, ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", name, err)
		}
	}
}

func TestParseSearchModeIsCaseInsensitive(t *testing.T) {
	mode, err := ParseSearchMode(" Keyword ")
	if err != nil {
		t.Fatalf("ParseSearchMode() error = %v", err)
	}
	if mode != ModeKeyword {
		t.Fatalf("expected keyword, got %q", mode)
	}
}

func TestRawResultFallsBackToCaption(t *testing.T) {
	var r RawResult
	payload := `{"task":"roll_ball","caption":"Roll the red ball","score":0.53,"mp4":"s3://b/a.mp4","hdf5":"s3://b/a.hdf5"}`
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if r.Description != "Roll the red ball" {
		t.Fatalf("expected caption fallback, got %q", r.Description)
	}
	if r.Task != "roll_ball" || r.MP4 != "s3://b/a.mp4" || r.Score != 0.53 {
		t.Fatalf("unexpected decode: %+v", r)
	}
}

func TestRawResultPrefersDescription(t *testing.T) {
	var r RawResult
	payload := `{"description":"primary","caption":"legacy","mode":"keyword"}`
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if r.Description != "primary" {
		t.Fatalf("expected description to win, got %q", r.Description)
	}
	if r.Mode != ModeKeyword {
		t.Fatalf("expected mode keyword, got %q", r.Mode)
	}
}

func TestSearchRequestErrorMatchesUpstreamKind(t *testing.T) {
	var err error = &SearchRequestError{StatusCode: 500, Status: "500 Internal Server Error"}
	wrapped := WrapError(ErrTemporary, "search", err)
	if !errors.Is(wrapped, ErrUpstream) {
		t.Fatalf("expected ErrUpstream match")
	}
	var reqErr *SearchRequestError
	if !errors.As(wrapped, &reqErr) || reqErr.StatusCode != 500 {
		t.Fatalf("expected status 500 through errors.As, got %v", wrapped)
	}
}
