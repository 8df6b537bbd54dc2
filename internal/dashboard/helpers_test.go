package dashboard

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hakim/scandash/internal/models"
	"github.com/hakim/scandash/internal/pipeline"
	"github.com/hakim/scandash/internal/registry"
	"github.com/hakim/scandash/internal/scanner"
)

const waitFor = 2 * time.Second

// stubScanner answers every poll with whatever result is currently set
// for the scan; unset scans report Running.
type stubScanner struct {
	mu        sync.Mutex
	launchErr error
	seq       int
	results   map[string]scanner.PollResult
	polls     map[string]int
}

func newStubScanner() *stubScanner {
	return &stubScanner{results: map[string]scanner.PollResult{}, polls: map[string]int{}}
}

func (s *stubScanner) Launch(context.Context, string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.launchErr != nil {
		return "", s.launchErr
	}
	s.seq++
	return fmt.Sprintf("scan-%d", s.seq), nil
}

func (s *stubScanner) Poll(_ context.Context, id string) (scanner.PollResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls[id]++
	if res, ok := s.results[id]; ok {
		return res, nil
	}
	return scanner.PollResult{Status: models.StatusRunning, Progress: 40}, nil
}

func (s *stubScanner) set(id string, res scanner.PollResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[id] = res
}

func (s *stubScanner) setLaunchErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.launchErr = err
}

func (s *stubScanner) pollCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls[id]
}

type fixture struct {
	scanner *stubScanner
	reg     *registry.Registry
	orch    *pipeline.Orchestrator
	svc     *Service
}

func newFixture(t *testing.T, history ...models.Scan) *fixture {
	t.Helper()
	f := &fixture{scanner: newStubScanner(), reg: registry.New(nil, nil)}
	f.reg.Seed(history)
	f.orch = pipeline.New(f.scanner, f.reg, pipeline.Options{
		PollInterval:   5 * time.Millisecond,
		RequestTimeout: time.Second,
	})
	t.Cleanup(f.orch.Stop)
	f.svc = NewService(f.orch, f.reg, nil)
	return f
}

func completedScan(id string, ts time.Time, risks ...models.Risk) models.Scan {
	s := models.Scan{
		ID:        id,
		URL:       "http://" + id + ".example.com",
		Status:    models.StatusCompleted,
		Progress:  100,
		Timestamp: ts,
		Findings:  []models.Finding{},
	}
	for i, r := range risks {
		s.Findings = append(s.Findings, models.Finding{Name: fmt.Sprintf("finding-%d", i), Risk: r})
	}
	return s
}

func waitStatus(t *testing.T, svc *Service, status models.ScanStatus) Snapshot {
	t.Helper()
	var snap Snapshot
	require.Eventually(t, func() bool {
		snap = svc.View()
		return snap.Scan != nil && snap.Scan.Status == status
	}, waitFor, time.Millisecond)
	return snap
}

func scanPollCompleted() scanner.PollResult {
	return scanner.PollResult{
		Status:   models.StatusCompleted,
		Progress: 100,
		Findings: []models.Finding{{Name: "XSS", Risk: models.RiskHigh}},
	}
}
