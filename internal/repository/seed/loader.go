// Package seed loads an initial entity set from a YAML file.
package seed

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Eddie-Kan/research-archive-website-sub001/internal/domain/entity"
)

// LoadFile reads entities from path.
func LoadFile(path string) ([]entity.Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Decode(bytes.NewReader(data))
}

// Decode parses a seed document. Every invalid entry is reported; duplicate ids are rejected.
func Decode(r io.Reader) ([]entity.Entity, error) {
	var f fileDTO
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse seed: %w", err)
	}

	out := make([]entity.Entity, 0, len(f.Entities))
	seen := make(map[string]int, len(f.Entities))
	var errs []error
	for i, d := range f.Entities {
		e, err := entity.New(d.params())
		if err != nil {
			errs = append(errs, fmt.Errorf("entities[%d]: %w", i, err))
			continue
		}
		if j, dup := seen[e.ID()]; dup {
			errs = append(errs, fmt.Errorf("entities[%d]: duplicate id %q (first at %d)", i, e.ID(), j))
			continue
		}
		seen[e.ID()] = i
		out = append(out, e)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}
