// Package registry holds completed scan reports. Scans are append-only:
// once a scan is stored it is never mutated or removed.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/hakim/scandash/internal/models"
)

var (
	ErrNotFound    = errors.New("registry: scan not found")
	ErrNotTerminal = errors.New("registry: scan is not in a terminal state")
	ErrDuplicate   = errors.New("registry: scan already recorded")
	ErrMissingID   = errors.New("registry: scan has no id")
)

// Backend persists registry entries. Implementations only ever see
// terminal scans and are never asked to update one.
type Backend interface {
	SaveScan(scan *models.Scan) error
	LoadScans() ([]models.Scan, error)
}

// URLIndex is implemented by backends that can answer a per-target query
// without a full scan.
type URLIndex interface {
	ListScans(target string) ([]models.Scan, error)
}

// Registry is a concurrency-safe, newest-first list of terminal scans,
// optionally written through to a Backend.
type Registry struct {
	mu      sync.RWMutex
	scans   []models.Scan
	index   map[string]struct{}
	backend Backend
	logger  *slog.Logger
}

// New returns an empty registry. backend may be nil for a memory-only
// registry.
func New(backend Backend, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		index:   make(map[string]struct{}),
		backend: backend,
		logger:  logger,
	}
}

// Load fills the registry from the backend without writing anything back.
func (r *Registry) Load() (int, error) {
	if r.backend == nil {
		return 0, nil
	}
	scans, err := r.backend.LoadScans()
	if err != nil {
		return 0, fmt.Errorf("registry: loading backend: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	loaded := 0
	for i := range scans {
		if err := check(&scans[i]); err != nil {
			r.logger.Warn("Skipping stored scan", "scan_id", scans[i].ID, "error", err)
			continue
		}
		if _, ok := r.index[scans[i].ID]; ok {
			continue
		}
		r.insertLocked(scans[i].Clone())
		loaded++
	}
	return loaded, nil
}

// Append stores a terminal scan. The scan is copied; later changes to the
// caller's value are not observed. A reader either sees the whole scan in
// List or does not see it at all.
func (r *Registry) Append(scan models.Scan) error {
	if err := check(&scan); err != nil {
		return err
	}
	stored := scan.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[stored.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, stored.ID)
	}
	if r.backend != nil {
		if err := r.backend.SaveScan(&stored); err != nil {
			return fmt.Errorf("registry: persisting scan %s: %w", stored.ID, err)
		}
	}
	r.insertLocked(stored)
	return nil
}

// Seed appends every terminal scan it has not seen yet and returns how many
// were added. Non-terminal and duplicate entries are skipped.
func (r *Registry) Seed(scans []models.Scan) int {
	added := 0
	for _, s := range scans {
		err := r.Append(s)
		switch {
		case err == nil:
			added++
		case errors.Is(err, ErrDuplicate):
		default:
			r.logger.Warn("Skipping historical scan", "scan_id", s.ID, "url", s.URL, "error", err)
		}
	}
	return added
}

// List returns all stored scans, most recent first.
func (r *Registry) List() []models.Scan {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Scan, len(r.scans))
	for i := range r.scans {
		out[i] = r.scans[i].Clone()
	}
	return out
}

// ListByURL returns the scans of one target, most recent first. It asks the
// backend when it keeps a per-target index and filters in memory otherwise.
// Every entry goes through the backend on Append, so both agree.
func (r *Registry) ListByURL(target string) ([]models.Scan, error) {
	if idx, ok := r.backend.(URLIndex); ok {
		scans, err := idx.ListScans(target)
		if err != nil {
			return nil, fmt.Errorf("registry: listing %s: %w", target, err)
		}
		return scans, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Scan
	for i := range r.scans {
		if r.scans[i].URL == target {
			out = append(out, r.scans[i].Clone())
		}
	}
	return out, nil
}

// Get returns the scan with the given id.
func (r *Registry) Get(id string) (models.Scan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.scans {
		if r.scans[i].ID == id {
			return r.scans[i].Clone(), nil
		}
	}
	return models.Scan{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Len returns the number of stored scans.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.scans)
}

// insertLocked keeps scans sorted by Timestamp descending. Equal
// timestamps place the newest insert first.
func (r *Registry) insertLocked(scan models.Scan) {
	pos := slices.IndexFunc(r.scans, func(s models.Scan) bool {
		return !s.Timestamp.After(scan.Timestamp)
	})
	if pos < 0 {
		pos = len(r.scans)
	}
	r.scans = slices.Insert(r.scans, pos, scan)
	r.index[scan.ID] = struct{}{}
}

func check(scan *models.Scan) error {
	if scan.ID == "" {
		return ErrMissingID
	}
	if !scan.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrNotTerminal, scan.ID, scan.Status)
	}
	return nil
}
