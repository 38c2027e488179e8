package domain

type ExportRequest struct {
	Prefix     string     `json:"prefix"`
	Pairs      []FilePair `json:"files"`
	StartIndex int        `json:"start_index,omitempty"`
	Name       string     `json:"name,omitempty"`
}

type ArchiveEntry struct {
	Name string
	URL  string
	Size int64
}

// Archive is a fully assembled bundle; it only exists once every fetch succeeded.
type Archive struct {
	Name    string
	Entries []ArchiveEntry
	Data    []byte
}
