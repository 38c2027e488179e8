package domain

import "time"

// Demo is one recording that can be opened in the Rerun web viewer.
type Demo struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	RRDURL    string `json:"rrd_url" yaml:"rrd_url"`
	ViewerURL string `json:"viewer_url,omitempty" yaml:"-"`
}

type Dataset struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Demos []Demo `json:"demos" yaml:"demos"`
}

// StoredObject is one key returned by an object storage listing.
type StoredObject struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

type ExploreSession struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
