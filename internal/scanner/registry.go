// Package scanner discovers attached scanning devices through the SANE
// toolchain and keeps a short-lived last-known-good cache so transient
// detection failures do not take down the scan pipeline.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/scandock/scandock/internal/execrun"
	"github.com/scandock/scandock/internal/models"
)

const (
	listTimeout = 5 * time.Second

	// cacheTTL is how long a scanner that actually produced a scan is
	// trusted as a fallback when detection fails.
	cacheTTL = time.Hour
)

// ErrNoScanners indicates detection completed but found no usable device and
// no fresh cached fallback existed.
var ErrNoScanners = errors.New("no scanners detected")

// Registry runs device discovery and owns the last-known-good cache.
type Registry struct {
	runner execrun.Runner
	now    func() time.Time
	sleep  func(time.Duration)

	mu          sync.Mutex
	lastGood    *models.Scanner
	confirmedAt time.Time // zero until MarkSuccess; Detect never sets it
}

// NewRegistry returns a registry executing commands through runner.
func NewRegistry(runner execrun.Runner) *Registry {
	return &Registry{
		runner: runner,
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// Detect lists attached scanners. On any detection failure (command error,
// explicit no-scanners message, empty or unparseable output) it falls back to
// the cached device if that device produced a scan within the last hour;
// otherwise the failure surfaces as ErrNoScanners.
func (r *Registry) Detect(ctx context.Context) ([]models.Scanner, error) {
	out, errOut, err := r.runner.Run(ctx, listTimeout, "scanimage", "-L")

	if err != nil {
		slog.Warn("Scanner listing command failed", "err", err, "stderr", strings.TrimSpace(errOut))
		return r.fallback(fmt.Errorf("%w: listing command failed: %v", ErrNoScanners, err))
	}

	if strings.Contains(out, "No scanners were identified") || strings.TrimSpace(out) == "" {
		return r.fallback(ErrNoScanners)
	}

	results := ParseListing(out)
	for _, res := range results {
		if !res.Parsed {
			slog.Warn("Unrecognized scanner listing line", "line", res.Raw)
		}
	}

	devices := Devices(results)
	if len(devices) == 0 {
		return r.fallback(fmt.Errorf("%w: no devices parsed from listing output", ErrNoScanners))
	}

	r.mu.Lock()
	if r.lastGood == nil || r.lastGood.Device != devices[0].Device {
		// New descriptor: remember it, but it has not proven itself yet, so
		// the freshness timer stays unset until a scan succeeds.
		d := devices[0]
		r.lastGood = &d
		r.confirmedAt = time.Time{}
	}
	r.mu.Unlock()

	return devices, nil
}

// MarkSuccess records that device just produced a scan, resetting the cache
// freshness timer. This is the only write path for the timer.
func (r *Registry) MarkSuccess(device models.Scanner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := device
	r.lastGood = &d
	r.confirmedAt = r.now()
	slog.Info("Scanner confirmed working", "device", device.Device)
}

// Cached returns the last-known-good scanner if it is still inside the
// freshness window, or nil.
func (r *Registry) Cached() *models.Scanner {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastGood == nil || r.confirmedAt.IsZero() {
		return nil
	}
	if r.now().Sub(r.confirmedAt) >= cacheTTL {
		return nil
	}
	d := *r.lastGood
	return &d
}

func (r *Registry) fallback(cause error) ([]models.Scanner, error) {
	if cached := r.Cached(); cached != nil {
		slog.Info("Detection failed, using cached scanner", "device", cached.Device, "cause", cause)
		return []models.Scanner{*cached}, nil
	}
	return nil, cause
}
