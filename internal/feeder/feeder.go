// Package feeder supplies test-data records to virtual users.
//
// Records come from CSV files (header row names the fields), JSON files (an
// array of objects or a single object) or memory. Feeders hand records out in
// round-robin order and are safe for concurrent use, so many user instances
// can share one.
package feeder

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Record is one set of named test-data fields.
type Record map[string]string

// Get returns the value of key, or "" when absent.
func (r Record) Get(key string) string {
	return r[key]
}

// Clone returns an independent copy. Cloning nil yields nil.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Keys returns the field names in sorted order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Feeder provides test-data records in deterministic round-robin order.
// Implementations must be safe for concurrent use.
type Feeder interface {
	// Next returns the next record, wrapping to the first after the last.
	Next(ctx context.Context) (Record, error)

	// Close releases any resources held by the feeder.
	Close() error

	// Len returns the total number of records in the dataset.
	Len() int
}

// ErrEmpty is returned when a dataset holds no records.
var ErrEmpty = errors.New("feeder: dataset has no records")

// dataset is the shared round-robin core of every feeder here.
type dataset struct {
	mu      sync.Mutex
	records []Record
	index   int
}

func (d *dataset) Next(ctx context.Context) (Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.records) == 0 {
		return nil, ErrEmpty
	}
	record := d.records[d.index]
	d.index = (d.index + 1) % len(d.records)
	return record.Clone(), nil
}

func (d *dataset) Close() error {
	return nil
}

func (d *dataset) Len() int {
	return len(d.records)
}

// StaticFeeder serves records held in memory.
type StaticFeeder struct {
	dataset
}

// Static returns a feeder over records. Each record is copied.
func Static(records ...Record) *StaticFeeder {
	f := &StaticFeeder{}
	for _, r := range records {
		f.records = append(f.records, r.Clone())
	}
	return f
}

// Open picks a feeder implementation from the file extension.
func Open(path string) (Feeder, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return NewCSVFeeder(path)
	case ".json":
		return NewJSONFeeder(path)
	default:
		return nil, fmt.Errorf("unsupported test data file %q: expected .csv or .json", path)
	}
}

// First opens path and returns its first record.
func First(ctx context.Context, path string) (Record, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Next(ctx)
}
