package archive

import (
	"bytes"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/asimovlabs/egodata-portal/internal/core/ports"
)

// storedExtensions are already compressed; deflating them only costs CPU.
var storedExtensions = map[string]bool{
	".mp4": true,
	".zip": true,
	".rrd": true,
}

// ZipBuilder writes files into an in-memory zip archive.
type ZipBuilder struct {
	now func() time.Time
}

func NewZipBuilder() *ZipBuilder {
	return &ZipBuilder{now: time.Now}
}

func (b *ZipBuilder) Build(files []ports.ArchiveFile) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	seen := make(map[string]bool, len(files))
	modified := b.now().UTC()
	for _, f := range files {
		if f.Name == "" {
			return nil, fmt.Errorf("archive entry without name")
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("duplicate archive entry %q", f.Name)
		}
		seen[f.Name] = true

		method := zip.Deflate
		if storedExtensions[strings.ToLower(path.Ext(f.Name))] {
			method = zip.Store
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   method,
			Modified: modified,
		})
		if err != nil {
			return nil, fmt.Errorf("create archive entry %s: %w", f.Name, err)
		}
		if _, err := w.Write(f.Data); err != nil {
			return nil, fmt.Errorf("write archive entry %s: %w", f.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}
