// Package dashboard is the presentation boundary: commands that start and
// select scans, and a read model of what is currently on screen.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/hakim/scandash/internal/aggregate"
	"github.com/hakim/scandash/internal/models"
	"github.com/hakim/scandash/internal/pipeline"
	"github.com/hakim/scandash/internal/view"
)

var (
	ErrNoActiveFindings = view.ErrNoFindings
	ErrFindingIndex     = view.ErrFindingIndex
)

// Orchestrator is the live scan slot, satisfied by *pipeline.Orchestrator.
type Orchestrator interface {
	Start(ctx context.Context, target string) (string, error)
	Stop()
	Current() (models.Scan, bool)
	Lookup(id string) (models.Scan, bool)
}

// History is the scan registry, satisfied by *registry.Registry.
type History interface {
	List() []models.Scan
	ListByURL(target string) ([]models.Scan, error)
	Get(id string) (models.Scan, error)
}

// Service wires the orchestrator, the registry and the view coordinator.
type Service struct {
	orch    Orchestrator
	history History
	view    *view.Coordinator
	log     *slog.Logger

	// focusMu keeps each orchestrator change and the view change it
	// implies together, so concurrent requests cannot leave the view on
	// a scan the orchestrator has already replaced.
	focusMu sync.Mutex
}

// NewService returns a Service showing nothing.
func NewService(orch Orchestrator, history History, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		orch:    orch,
		history: history,
		view:    view.New(orch),
		log:     logger,
	}
}

// StartScan launches a scan of target and focuses it. An invalid target
// leaves the view untouched; a failed launch clears it, since the previous
// live scan has already been abandoned.
func (s *Service) StartScan(ctx context.Context, target string) (string, error) {
	s.focusMu.Lock()
	defer s.focusMu.Unlock()

	id, err := s.orch.Start(ctx, target)
	if err != nil {
		if !errors.Is(err, pipeline.ErrInvalidTarget) {
			s.view.Reset()
		}
		return "", err
	}
	s.view.FocusLive(id)
	return id, nil
}

// SelectHistorical focuses a registry scan. A scan running in the
// background keeps running.
func (s *Service) SelectHistorical(id string) (models.Scan, error) {
	scan, err := s.history.Get(id)
	if err != nil {
		return models.Scan{}, err
	}
	s.focusMu.Lock()
	s.view.FocusHistorical(scan)
	s.focusMu.Unlock()
	s.log.Debug("Historical scan selected", "scan_id", id)
	return scan, nil
}

// SelectFinding opens the finding at index in the active finding set.
func (s *Service) SelectFinding(index int) (models.Finding, error) {
	return s.view.SelectFindingAt(index)
}

// ClearSelectedFinding closes the detail display.
func (s *Service) ClearSelectedFinding() {
	s.view.ClearSelectedFinding()
}

// StopLive halts the live polling task. A view focused on the stopped scan
// is cleared.
func (s *Service) StopLive() {
	s.focusMu.Lock()
	defer s.focusMu.Unlock()

	s.orch.Stop()
	if v := s.view.View(); v.Kind() == view.KindLive {
		if _, ok := s.orch.Lookup(v.ScanID()); !ok {
			s.view.Reset()
		}
	}
}

// Scans returns the registry, newest first.
func (s *Service) Scans() []models.Scan {
	return s.history.List()
}

// ScansFor returns the registry entries of one target, newest first.
func (s *Service) ScansFor(target string) ([]models.Scan, error) {
	scans, err := s.history.ListByURL(target)
	if err != nil {
		return nil, err
	}
	if scans == nil {
		scans = []models.Scan{}
	}
	return scans, nil
}

// Scan returns one registry scan.
func (s *Service) Scan(id string) (models.Scan, error) {
	return s.history.Get(id)
}

// Snapshot is the read model of the dashboard.
type Snapshot struct {
	View            string                `json:"view"`
	ScanID          string                `json:"scan_id,omitempty"`
	Scan            *models.Scan          `json:"scan,omitempty"`
	Summary         aggregate.Summary     `json:"summary"`
	Chart           aggregate.ChartSeries `json:"chart"`
	SelectedFinding *models.Finding       `json:"selected_finding,omitempty"`

	// Live is the scan being polled, whatever the view shows.
	Live *models.Scan `json:"live,omitempty"`
}

// View builds the current read model. Summary and chart are derived from
// the same scan value that is returned, so they always agree.
func (s *Service) View() Snapshot {
	v := s.view.View()
	snap := Snapshot{View: v.Kind().String(), ScanID: v.ScanID()}

	var findings []models.Finding
	if scan, ok := s.view.Scan(); ok {
		snap.Scan = &scan
		findings = scan.Findings
	}
	snap.Summary = aggregate.Aggregate(findings)
	snap.Chart = aggregate.ToChartSeries(snap.Summary)

	if f, ok := s.view.SelectedFinding(); ok {
		snap.SelectedFinding = &f
	}
	if live, ok := s.orch.Current(); ok {
		snap.Live = &live
	}
	return snap
}
