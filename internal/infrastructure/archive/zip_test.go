package archive

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/asimovlabs/egodata-portal/internal/core/ports"
)

func TestBuildPreservesOrderAndContent(t *testing.T) {
	files := []ports.ArchiveFile{
		{Name: "fold_towel_1.mp4", Data: []byte("video-1")},
		{Name: "fold_towel_1.hdf5", Data: bytes.Repeat([]byte("pose"), 100)},
		{Name: "fold_towel_2.mp4", Data: []byte("video-2")},
	}

	data, err := NewZipBuilder().Build(files)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != len(files) {
		t.Fatalf("expected %d entries, got %d", len(files), len(zr.File))
	}
	for i, zf := range zr.File {
		if zf.Name != files[i].Name {
			t.Fatalf("entry %d: expected %q, got %q", i, files[i].Name, zf.Name)
		}
		rc, err := zf.Open()
		if err != nil {
			t.Fatalf("open entry: %v", err)
		}
		body, _ := io.ReadAll(rc)
		_ = rc.Close()
		if !bytes.Equal(body, files[i].Data) {
			t.Fatalf("entry %s content mismatch", zf.Name)
		}
	}
	if zr.File[0].Method != zip.Store || zr.File[1].Method != zip.Deflate {
		t.Fatalf("unexpected methods %d %d", zr.File[0].Method, zr.File[1].Method)
	}
}

func TestBuildRejectsDuplicateNames(t *testing.T) {
	_, err := NewZipBuilder().Build([]ports.ArchiveFile{{Name: "a.mp4"}, {Name: "a.mp4"}})
	if err == nil {
		t.Fatalf("expected duplicate error")
	}
}
