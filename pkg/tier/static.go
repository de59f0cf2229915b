package tier

import (
	"context"
	"fmt"
	"os"
	"sync"

	json "github.com/goccy/go-json"
)

// StaticDirectory serves tier attributes from an in-memory table. It
// backs deployments without a live subject directory and is handy in
// tests. Unknown subjects return ErrNotFound, which the classifier
// resolves to the standard tier.
type StaticDirectory struct {
	mu      sync.RWMutex
	entries map[string]Attributes
}

// NewStaticDirectory creates an empty directory.
func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{entries: make(map[string]Attributes)}
}

// LoadStaticDirectory reads a JSON file mapping subject IDs to
// attributes:
//
//	{"subject-1": {"subscription": "elevated", "trust_score": 0.95}}
func LoadStaticDirectory(path string) (*StaticDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory file: %w", err)
	}

	entries := make(map[string]Attributes)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse directory file %s: %w", path, err)
	}
	return &StaticDirectory{entries: entries}, nil
}

// Set adds or replaces a subject's attributes.
func (d *StaticDirectory) Set(subjectID string, attrs Attributes) {
	d.mu.Lock()
	d.entries[subjectID] = attrs
	d.mu.Unlock()
}

// TierAttributes implements Directory.
func (d *StaticDirectory) TierAttributes(_ context.Context, subjectID string) (Attributes, error) {
	d.mu.RLock()
	attrs, ok := d.entries[subjectID]
	d.mu.RUnlock()
	if !ok {
		return Attributes{}, ErrNotFound
	}
	return attrs, nil
}
