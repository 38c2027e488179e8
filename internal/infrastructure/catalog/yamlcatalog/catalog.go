package yamlcatalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/asimovlabs/egodata-portal/internal/core/domain"
)

type file struct {
	Datasets []domain.Dataset `yaml:"datasets"`
}

// Catalog is a fixed list of explore datasets loaded from YAML.
type Catalog struct {
	datasets []domain.Dataset
}

func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

func Parse(r io.Reader) (*Catalog, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	for i := range f.Datasets {
		ds := &f.Datasets[i]
		if ds.Name == "" {
			return nil, fmt.Errorf("catalog dataset %d has no name", i+1)
		}
		if ds.ID == "" {
			ds.ID = strconv.Itoa(i + 1)
		}
		for j := range ds.Demos {
			demo := &ds.Demos[j]
			if demo.RRDURL == "" {
				return nil, fmt.Errorf("catalog demo %s/%d has no rrd_url", ds.Name, j+1)
			}
			if demo.ID == "" {
				demo.ID = fmt.Sprintf("%s-%d", ds.ID, j+1)
			}
			if demo.Name == "" {
				demo.Name = demo.ID
			}
		}
	}
	return &Catalog{datasets: f.Datasets}, nil
}

// Datasets returns a deep copy; callers may annotate the demos.
func (c *Catalog) Datasets(context.Context) ([]domain.Dataset, error) {
	out := make([]domain.Dataset, len(c.datasets))
	for i, ds := range c.datasets {
		ds.Demos = append([]domain.Demo(nil), ds.Demos...)
		out[i] = ds
	}
	return out, nil
}
