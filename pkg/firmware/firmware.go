// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package firmware stores demodulator patch blobs keyed by ROM id and splits
// them into the command-sized lines the download protocol expects.
package firmware

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/Thermoquad/tunestat/pkg/engine"
)

// DefaultLineSize is the number of patch bytes sent per command.
const DefaultLineSize = 8

var fileName = regexp.MustCompile(`^rom(\d{1,3})\.bin$`)

// Patch is one firmware patch for a ROM revision.
type Patch struct {
	ROMID    uint8
	Data     []byte
	LineSize int
	Source   string // file the patch was loaded from, if any
}

// Registry maps ROM ids to patches. The zero value is not usable; call
// NewRegistry.
type Registry struct {
	lineSize int
	patches  map[uint8]Patch
}

// NewRegistry creates an empty registry whose patches are sent lineSize
// bytes at a time. A lineSize <= 0 selects DefaultLineSize.
func NewRegistry(lineSize int) *Registry {
	if lineSize <= 0 {
		lineSize = DefaultLineSize
	}
	return &Registry{
		lineSize: lineSize,
		patches:  make(map[uint8]Patch),
	}
}

// Register adds or replaces the patch for id.
func (r *Registry) Register(id uint8, data []byte) error {
	return r.register(Patch{ROMID: id, Data: data, LineSize: r.lineSize})
}

func (r *Registry) register(p Patch) error {
	if p.LineSize > engine.MaxLen {
		return fmt.Errorf("rom %d: line size %d: %w", p.ROMID, p.LineSize, engine.ErrInvalidArgument)
	}
	if len(p.Data) == 0 {
		return fmt.Errorf("rom %d: empty patch: %w", p.ROMID, engine.ErrInvalidArgument)
	}
	r.patches[p.ROMID] = p
	return nil
}

// Lookup returns the patch for id.
func (r *Registry) Lookup(id uint8) (Patch, bool) {
	if r == nil {
		return Patch{}, false
	}
	p, ok := r.patches[id]
	return p, ok
}

// IDs returns the registered ROM ids in ascending order.
func (r *Registry) IDs() []uint8 {
	ids := make([]uint8, 0, len(r.patches))
	for id := range r.patches {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// LoadDir registers every rom<ID>.bin file in dir and returns how many
// patches were loaded. Other files are ignored.
func (r *Registry) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("firmware dir: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := fileName.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		id, err := strconv.ParseUint(m[1], 10, 8)
		if err != nil {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return loaded, fmt.Errorf("firmware %s: %w", path, err)
		}
		if err := r.register(Patch{
			ROMID:    uint8(id),
			Data:     data,
			LineSize: r.lineSize,
			Source:   path,
		}); err != nil {
			return loaded, fmt.Errorf("firmware %s: %w", path, err)
		}
		loaded++
	}
	return loaded, nil
}

// Lines splits a patch into full lines followed by the remainder.
func Lines(p Patch) ([][]byte, error) {
	if p.LineSize <= 0 || p.LineSize > engine.MaxLen {
		return nil, fmt.Errorf("line size %d: %w", p.LineSize, engine.ErrInvalidArgument)
	}

	lines := make([][]byte, 0, (len(p.Data)+p.LineSize-1)/p.LineSize)
	for off := 0; off < len(p.Data); off += p.LineSize {
		end := off + p.LineSize
		if end > len(p.Data) {
			end = len(p.Data)
		}
		lines = append(lines, p.Data[off:end])
	}
	return lines, nil
}
