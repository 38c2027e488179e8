package openapi

import (
	"context"
	"testing"
)

func TestLoadEmbeddedDocument(t *testing.T) {
	doc, err := Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, path := range []string{"/v1/search", "/v1/exports", "/v1/interest", "/v1/data-requests"} {
		if doc.Paths.Find(path) == nil {
			t.Fatalf("missing path %s", path)
		}
	}
	for _, name := range []string{"ExportRequest", "InterestForm", "DataRequest", "ExploreSessionRequest"} {
		if _, ok := doc.Components.Schemas[name]; !ok {
			t.Fatalf("missing schema %s", name)
		}
	}
}
