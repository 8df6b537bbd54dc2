package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/hakim/scandash/internal/metrics"
	"github.com/hakim/scandash/internal/models"
	"github.com/hakim/scandash/internal/scanner"
)

var (
	// ErrInvalidTarget is returned before any network call when the target
	// is not an absolute http(s) URL or falls outside the configured scope.
	ErrInvalidTarget = errors.New("pipeline: invalid target")

	// ErrLaunchFailed wraps the scanner error when a scan could not be started.
	ErrLaunchFailed = errors.New("pipeline: launch failed")

	// ErrPollTransport marks a scan failed because a poll call errored or
	// timed out.
	ErrPollTransport = errors.New("pipeline: poll transport failure")

	// ErrScanFailed marks a scan the scanner itself reported as failed.
	ErrScanFailed = errors.New("pipeline: scan failed")
)

const (
	// PollFailedMessage is recorded on scans lost to a transport failure.
	PollFailedMessage = "poll failed"

	// UnknownFailureMessage is recorded when the scanner reports failure
	// without saying why.
	UnknownFailureMessage = "unknown error"

	DefaultPollInterval   = 2 * time.Second
	DefaultRequestTimeout = 10 * time.Second
)

// ScannerClient is the part of the external scanner the orchestrator drives.
type ScannerClient interface {
	Launch(ctx context.Context, target string) (string, error)
	Poll(ctx context.Context, scanID string) (scanner.PollResult, error)
}

// HistoryWriter receives scans once they are terminal.
type HistoryWriter interface {
	Append(scan models.Scan) error
}

// Options controls how the Orchestrator polls and what it reports.
type Options struct {
	// PollInterval is the delay between status polls. Default 2s.
	PollInterval time.Duration

	// RequestTimeout bounds Launch and every Poll. Default 10s.
	RequestTimeout time.Duration

	// RecordFailed also appends Failed scans to history.
	RecordFailed bool

	// Scope restricts which hosts may be submitted. Nil allows any host.
	Scope *ScopeConfig

	// OnEvent is called for every lifecycle event, while the orchestrator's
	// state lock is held so that events from an abandoned scan can never
	// follow events from its replacement. Handlers must return quickly and
	// must not call back into the Orchestrator.
	OnEvent func(Event)

	Metrics *metrics.Recorder
	Logger  *slog.Logger

	// Now stamps new scans. Defaults to time.Now.
	Now func() time.Time
}

// Orchestrator owns at most one live scan: it launches it, polls the
// scanner until a terminal state, and hands the finished scan to history.
type Orchestrator struct {
	client  ScannerClient
	history HistoryWriter
	opts    Options
	log     *slog.Logger

	// startMu serialises Start and Stop so that only one polling task can
	// be created at a time.
	startMu sync.Mutex

	mu     sync.Mutex
	epoch  uint64
	live   *models.Scan
	last   *models.Scan
	cancel context.CancelFunc
	task   *conc.WaitGroup
}

// New creates an Orchestrator. history may be nil when nothing should be
// recorded.
func New(client ScannerClient, history HistoryWriter, opts Options) *Orchestrator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		client:  client,
		history: history,
		opts:    opts,
		log:     logger,
	}
}

// ValidateTarget checks that target is an absolute http(s) URL with a host.
func ValidateTarget(target string) (*url.URL, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, fmt.Errorf("%w: empty url", ErrInvalidTarget)
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if !u.IsAbs() || u.Hostname() == "" {
		return nil, fmt.Errorf("%w: %q is not an absolute url", ErrInvalidTarget, target)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidTarget, u.Scheme)
	}
	return u, nil
}

// Start validates target, abandons any live scan, launches a new scan and
// begins polling it. The returned id is the scanner's id for the scan.
//
// ctx only bounds the launch request; the polling task outlives it and is
// stopped by Stop or by the next Start.
func (o *Orchestrator) Start(ctx context.Context, target string) (string, error) {
	u, err := ValidateTarget(target)
	if err != nil {
		return "", err
	}
	if err := o.opts.Scope.CheckURL(u); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	target = strings.TrimSpace(target)

	o.startMu.Lock()
	defer o.startMu.Unlock()

	requestedAt := o.opts.Now().UTC()

	// The previous task must be gone before a new record exists.
	o.halt()

	launchCtx, cancelLaunch := context.WithTimeout(ctx, o.opts.RequestTimeout)
	id, err := o.client.Launch(launchCtx, target)
	cancelLaunch()
	if err != nil {
		o.opts.Metrics.LaunchFailed()
		o.log.Warn("Scan launch failed", "url", target, "error", err)
		return "", fmt.Errorf("%w: %w", ErrLaunchFailed, err)
	}

	scan := models.NewScan(target, requestedAt)
	scan.ID = id
	scan.Status = models.StatusStarting
	scan.Progress = 0

	taskCtx, cancel := context.WithCancel(context.Background())
	task := conc.NewWaitGroup()

	o.mu.Lock()
	o.epoch++
	epoch := o.epoch
	o.live = scan
	o.cancel = cancel
	o.task = task
	o.emitLocked(EventStatusChanged, scan, nil)
	o.mu.Unlock()

	o.opts.Metrics.ScanStarted()
	o.log.Info("Scan launched", "scan_id", id, "url", target)

	task.Go(func() { o.run(taskCtx, epoch, id) })
	return id, nil
}

// Stop cancels the live polling task, if any, and waits until it has
// exited. The abandoned scan is neither recorded nor reported as failed.
func (o *Orchestrator) Stop() {
	o.startMu.Lock()
	defer o.startMu.Unlock()
	o.halt()
}

// Current returns a copy of the live scan.
func (o *Orchestrator) Current() (models.Scan, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.live == nil {
		return models.Scan{}, false
	}
	return o.live.Clone(), true
}

// Last returns a copy of the most recent terminal scan, Failed included.
func (o *Orchestrator) Last() (models.Scan, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return models.Scan{}, false
	}
	return o.last.Clone(), true
}

// Lookup returns the live scan or the last terminal scan with the given id.
func (o *Orchestrator) Lookup(id string) (models.Scan, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch {
	case o.live != nil && o.live.ID == id:
		return o.live.Clone(), true
	case o.last != nil && o.last.ID == id:
		return o.last.Clone(), true
	}
	return models.Scan{}, false
}

// halt invalidates the current epoch, cancels the polling task and waits
// for it to exit. Callers hold startMu.
func (o *Orchestrator) halt() {
	o.mu.Lock()
	o.epoch++
	cancel, task := o.cancel, o.task
	abandoned := o.live
	o.cancel, o.task, o.live = nil, nil, nil
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if task != nil {
		if r := task.WaitAndRecover(); r != nil {
			o.log.Error("Polling task panicked", "error", r.AsError())
		}
	}
	if abandoned != nil {
		o.opts.Metrics.ScanAbandoned()
		o.log.Info("Live scan abandoned", "scan_id", abandoned.ID, "url", abandoned.URL)
	}
}

// run is the polling task. It sleeps between ticks and exits on
// cancellation or once apply reports a terminal state.
func (o *Orchestrator) run(ctx context.Context, epoch uint64, id string) {
	ticker := time.NewTicker(o.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		// Both cases may be ready at once; cancellation wins.
		if ctx.Err() != nil {
			return
		}

		res, err := o.poll(ctx, id)
		done, final, failure := o.apply(epoch, res, err)
		if final != nil {
			o.finish(*final, failure)
		}
		if done {
			return
		}
	}
}

func (o *Orchestrator) poll(ctx context.Context, id string) (res scanner.PollResult, err error) {
	pollCtx, cancel := context.WithTimeout(ctx, o.opts.RequestTimeout)
	defer cancel()

	started := time.Now()
	var pc panics.Catcher
	pc.Try(func() { res, err = o.client.Poll(pollCtx, id) })
	if r := pc.Recovered(); r != nil {
		err = r.AsError()
	}
	o.opts.Metrics.Poll(err, time.Since(started))
	return res, err
}

// apply folds one poll outcome into the live scan. It reports whether
// polling should stop and, for a terminal state, the detached final scan.
// Results from a superseded epoch are dropped.
func (o *Orchestrator) apply(epoch uint64, res scanner.PollResult, pollErr error) (bool, *models.Scan, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if epoch != o.epoch || o.live == nil {
		return true, nil, nil
	}
	scan := o.live

	var failure error
	switch {
	case pollErr != nil:
		scan.Status = models.StatusFailed
		scan.Error = PollFailedMessage
		scan.Findings = []models.Finding{}
		failure = fmt.Errorf("%w: %w", ErrPollTransport, pollErr)
		o.log.Warn("Poll failed", "scan_id", scan.ID, "error", pollErr)

	case res.Status == models.StatusCompleted:
		scan.Status = models.StatusCompleted
		scan.Progress = res.Progress
		scan.Findings = slices.Clone(res.Findings)
		if scan.Findings == nil {
			scan.Findings = []models.Finding{}
		}

	case res.Status == models.StatusFailed:
		scan.Status = models.StatusFailed
		scan.Error = res.Error
		if scan.Error == "" {
			scan.Error = UnknownFailureMessage
		}
		scan.Findings = []models.Finding{}
		failure = fmt.Errorf("%w: %s", ErrScanFailed, scan.Error)

	default:
		changed := scan.Status != models.StatusRunning || scan.Progress != res.Progress
		scan.Status = models.StatusRunning
		scan.Progress = res.Progress
		if changed {
			o.log.Debug("Scan progress", "scan_id", scan.ID, "status", scan.Status, "progress", scan.Progress)
			o.emitLocked(EventStatusChanged, scan, nil)
		}
		return false, nil, nil
	}

	final := scan.Clone()
	o.live = nil
	o.last = &final
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.opts.Metrics.ScanFinished(string(final.Status))
	return true, &final, failure
}

// finish records a terminal scan and reports it. It runs on the polling
// task without the state lock held, so a slow history backend never blocks
// readers. Start and Stop wait for the task, so the terminal event still
// precedes any event of a later scan.
func (o *Orchestrator) finish(final models.Scan, failure error) {
	if o.history != nil && (final.Status == models.StatusCompleted || o.opts.RecordFailed) {
		if err := o.history.Append(final); err != nil {
			o.log.Error("Recording scan failed", "scan_id", final.ID, "error", err)
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if failure != nil {
		o.log.Warn("Scan failed", "scan_id", final.ID, "url", final.URL, "error", final.Error)
		o.emitLocked(EventFailed, &final, failure)
	} else {
		o.log.Info("Scan completed", "scan_id", final.ID, "url", final.URL, "findings", len(final.Findings))
		o.emitLocked(EventCompleted, &final, nil)
	}
}

func (o *Orchestrator) emitLocked(typ EventType, scan *models.Scan, err error) {
	if o.opts.OnEvent == nil {
		return
	}
	o.opts.OnEvent(Event{
		Type: typ,
		Scan: scan.Clone(),
		At:   o.opts.Now().UTC(),
		Err:  err,
	})
}
