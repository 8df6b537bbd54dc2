// Package view tracks what the operator is looking at: the live scan, a
// historical scan, or nothing, plus the finding opened for detail display.
package view

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hakim/scandash/internal/aggregate"
	"github.com/hakim/scandash/internal/models"
)

var (
	ErrNoFindings   = errors.New("view: no active findings")
	ErrFindingIndex = errors.New("view: finding index out of range")
)

// Kind discriminates ActiveView.
type Kind int

const (
	KindNone Kind = iota
	KindLive
	KindHistorical
)

func (k Kind) String() string {
	switch k {
	case KindLive:
		return "live"
	case KindHistorical:
		return "historical"
	default:
		return "none"
	}
}

// ActiveView is exactly one of None, Live or Historical. The zero value is
// None. Fields are unexported so the variants can only be built through
// the constructors below.
type ActiveView struct {
	kind   Kind
	scanID string
	scan   models.Scan
}

// None is the empty view.
func None() ActiveView { return ActiveView{} }

// Live focuses the scan the orchestrator is polling. Only the id is held;
// the scan itself is always read back through the LiveSource.
func Live(scanID string) ActiveView {
	return ActiveView{kind: KindLive, scanID: scanID}
}

// Historical focuses a registry entry. Registry scans are immutable, so
// holding the value is equivalent to holding a reference.
func Historical(scan models.Scan) ActiveView {
	return ActiveView{kind: KindHistorical, scanID: scan.ID, scan: scan.Clone()}
}

func (v ActiveView) Kind() Kind     { return v.kind }
func (v ActiveView) ScanID() string { return v.scanID }

func (v ActiveView) same(o ActiveView) bool {
	return v.kind == o.kind && v.scanID == o.scanID
}

// LiveSource resolves a live scan id to the orchestrator's current record.
type LiveSource interface {
	Lookup(id string) (models.Scan, bool)
}

// Coordinator owns the active view and the selected finding.
type Coordinator struct {
	live LiveSource

	mu       sync.RWMutex
	view     ActiveView
	selected *models.Finding
}

// New returns a coordinator showing nothing.
func New(live LiveSource) *Coordinator {
	return &Coordinator{live: live}
}

// FocusLive switches to the live scan with the given id.
func (c *Coordinator) FocusLive(scanID string) {
	c.set(Live(scanID))
}

// FocusHistorical switches to a stored scan.
func (c *Coordinator) FocusHistorical(scan models.Scan) {
	c.set(Historical(scan))
}

// Reset switches to the empty view.
func (c *Coordinator) Reset() {
	c.set(None())
}

func (c *Coordinator) set(v ActiveView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.view.same(v) {
		c.selected = nil
	}
	c.view = v
}

// View returns the active view.
func (c *Coordinator) View() ActiveView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.view
}

// Scan resolves the active view to a scan. A live view whose scan the
// orchestrator has since abandoned resolves to nothing.
func (c *Coordinator) Scan() (models.Scan, bool) {
	return c.resolve(c.View())
}

func (c *Coordinator) resolve(v ActiveView) (models.Scan, bool) {
	switch v.kind {
	case KindLive:
		if c.live == nil {
			return models.Scan{}, false
		}
		return c.live.Lookup(v.scanID)
	case KindHistorical:
		return v.scan.Clone(), true
	default:
		return models.Scan{}, false
	}
}

// Findings returns the active finding set; empty when nothing is focused.
func (c *Coordinator) Findings() []models.Finding {
	scan, ok := c.Scan()
	if !ok || scan.Findings == nil {
		return []models.Finding{}
	}
	return scan.Findings
}

// Summary aggregates the active finding set.
func (c *Coordinator) Summary() aggregate.Summary {
	return aggregate.Aggregate(c.Findings())
}

// SelectFindingAt opens the finding at index in the active finding set.
// The lookup and the selection happen under one lock, so a concurrent view
// change either lands first and is indexed, or lands after and clears it.
func (c *Coordinator) SelectFindingAt(index int) (models.Finding, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	scan, ok := c.resolve(c.view)
	if !ok || len(scan.Findings) == 0 {
		return models.Finding{}, ErrNoFindings
	}
	if index < 0 || index >= len(scan.Findings) {
		return models.Finding{}, fmt.Errorf("%w: %d not in [0,%d)", ErrFindingIndex, index, len(scan.Findings))
	}
	f := scan.Findings[index]
	c.selected = &f
	return f, nil
}

// ClearSelectedFinding closes the detail display. The active view is kept.
func (c *Coordinator) ClearSelectedFinding() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = nil
}

// SelectedFinding returns the finding open for detail display.
func (c *Coordinator) SelectedFinding() (models.Finding, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.selected == nil {
		return models.Finding{}, false
	}
	return *c.selected, true
}
