package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type SearchMode string

const (
	ModeSemantic SearchMode = "semantic"
	ModeKeyword  SearchMode = "keyword"
	ModeHybrid   SearchMode = "hybrid"
)

func ParseSearchMode(raw string) (SearchMode, error) {
	switch mode := SearchMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case ModeSemantic, ModeKeyword, ModeHybrid:
		return mode, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse search mode", fmt.Errorf("unsupported mode %q", raw))
	}
}

type SearchQuery struct {
	Text string     `json:"q"`
	K    int        `json:"k"`
	Mode SearchMode `json:"mode"`
}

// Validate trims the query text in place and checks the dispatch preconditions.
func (q *SearchQuery) Validate() error {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return WrapError(ErrInvalidInput, "validate search query", errors.New("please enter a search query"))
	}
	if q.K <= 0 {
		return WrapError(ErrInvalidInput, "validate search query", fmt.Errorf("k must be positive, got %d", q.K))
	}
	if _, err := ParseSearchMode(string(q.Mode)); err != nil {
		return err
	}
	return nil
}

// RawResult is one unprocessed match from the search endpoint. Score is a
// distance until the score transformer inverts it.
type RawResult struct {
	Task        string     `json:"task"`
	Description string     `json:"description"`
	Score       float64    `json:"score"`
	MP4         string     `json:"mp4"`
	HDF5        string     `json:"hdf5"`
	Mode        SearchMode `json:"mode,omitempty"`
}

// UnmarshalJSON accepts the legacy "caption" field when "description" is absent.
func (r *RawResult) UnmarshalJSON(data []byte) error {
	type rawResultAlias RawResult
	var wire struct {
		rawResultAlias
		Caption string `json:"caption"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*r = RawResult(wire.rawResultAlias)
	if r.Description == "" {
		r.Description = wire.Caption
	}
	return nil
}

type FilePair struct {
	MP4  string `json:"mp4"`
	HDF5 string `json:"hdf5"`
}

type FileRef struct {
	MP4   string  `json:"mp4"`
	HDF5  string  `json:"hdf5"`
	Score float64 `json:"score"`
}

func (f FileRef) Pair() FilePair {
	return FilePair{MP4: f.MP4, HDF5: f.HDF5}
}

// GroupedResult collapses every raw result sharing one description.
type GroupedResult struct {
	Task        string    `json:"task"`
	Description string    `json:"description"`
	AvgScore    float64   `json:"avg_score"`
	Files       []FileRef `json:"files"`
}

func (g GroupedResult) Pairs() []FilePair {
	out := make([]FilePair, 0, len(g.Files))
	for _, f := range g.Files {
		out = append(out, f.Pair())
	}
	return out
}

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Notice is the user-facing message the site renders as a toast.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

type SearchOutcome struct {
	Query  SearchQuery     `json:"query"`
	Count  int             `json:"count"`
	Groups []GroupedResult `json:"groups"`
	Notice Notice          `json:"notice"`
}
