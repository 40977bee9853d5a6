// Package scan drives single and duplex captures through the SANE toolchain,
// with temp-file-then-rename output handling so a crash or failed capture
// never leaves a partial artifact behind.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/scandock/scandock/internal/execrun"
	"github.com/scandock/scandock/internal/models"
	"github.com/scandock/scandock/internal/scanner"
)

const (
	captureTimeout = 2 * time.Minute
	// Duplex batches feed many pages through the ADF; give them room.
	batchTimeout = 5 * time.Minute

	tempSuffix = ".part"
)

var (
	// ErrDeviceUnavailable is the "no device found" failure class; it is the
	// only class that triggers a remediation-and-retry cycle.
	ErrDeviceUnavailable = errors.New("scanner device unavailable")

	// ErrEmptyCapture means the toolchain reported success but produced no
	// usable (non-empty) output file.
	ErrEmptyCapture = errors.New("capture produced no usable output")
)

var batchIndex = regexp.MustCompile(`-p(\d+)\.[^.]+$`)

// Options configures a single scan request.
type Options struct {
	Device     string  // explicit device override; skips discovery entirely
	OutputDir  string  // target directory; empty means the executor default
	Format     string  // output format extension: pdf, png, jpeg, tiff
	Resolution int     // DPI
	Source     string  // e.g. "Flatbed", "ADF", "ADF Duplex"
	Width      float64 // page geometry in mm; zero means toolchain default
	Height     float64
	SkipBlank  bool // drop blank pages in software
	Duplex     bool // batch capture, one file per physical side
}

// Result is a successful capture: the final artifact paths in page order and
// the device that produced them.
type Result struct {
	Files  []string       `json:"files"`
	Device models.Scanner `json:"device"`
}

// Executor runs capture operations against one output directory.
type Executor struct {
	registry  *scanner.Registry
	runner    execrun.Runner
	outputDir string
	now       func() time.Time
}

// New returns an executor writing artifacts under outputDir.
func New(registry *scanner.Registry, runner execrun.Runner, outputDir string) *Executor {
	return &Executor{
		registry:  registry,
		runner:    runner,
		outputDir: outputDir,
		now:       time.Now,
	}
}

// Run resolves a device, performs the capture, and on the known
// device-unavailable failure runs one remediation-and-retry cycle. Any other
// failure is terminal immediately.
func (e *Executor) Run(ctx context.Context, opts Options) (*Result, error) {
	device, discovered, err := e.resolve(ctx, opts)
	if err != nil {
		return nil, err
	}

	files, err := e.capture(ctx, device, opts)
	if err != nil && errors.Is(err, ErrDeviceUnavailable) {
		slog.Warn("Capture failed with missing device, attempting remediation", "device", device.Device, "err", err)
		fix := e.registry.AttemptFix(ctx)
		if !fix.Success {
			return nil, fmt.Errorf("%w: remediation failed: %s", ErrDeviceUnavailable, fix.Message)
		}
		if discovered && len(fix.Devices) > 0 {
			device = fix.Devices[0]
		}
		files, err = e.capture(ctx, device, opts)
	}
	if err != nil {
		return nil, err
	}

	if discovered {
		e.registry.MarkSuccess(device)
	}
	return &Result{Files: files, Device: device}, nil
}

func (e *Executor) resolve(ctx context.Context, opts Options) (models.Scanner, bool, error) {
	if opts.Device != "" {
		return models.Scanner{Device: opts.Device, Kind: models.KindUnknown, Available: true}, false, nil
	}

	devices, err := e.registry.Detect(ctx)
	if err != nil {
		return models.Scanner{}, false, err
	}
	if len(devices) == 0 {
		return models.Scanner{}, false, scanner.ErrNoScanners
	}
	return devices[0], true, nil
}

func (e *Executor) capture(ctx context.Context, device models.Scanner, opts Options) ([]string, error) {
	if opts.Duplex {
		return e.captureBatch(ctx, device, opts)
	}
	return e.captureSingle(ctx, device, opts)
}

func (e *Executor) targetDir(opts Options) (string, error) {
	dir := opts.OutputDir
	if dir == "" {
		dir = e.outputDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create scan output directory: %w", err)
	}
	return dir, nil
}

func (e *Executor) captureSingle(ctx context.Context, device models.Scanner, opts Options) ([]string, error) {
	dir, err := e.targetDir(opts)
	if err != nil {
		return nil, err
	}

	ts := sanitizeTimestamp(e.now())
	final := filepath.Join(dir, fmt.Sprintf("scan-%s.%s", ts, opts.Format))
	temp := final + tempSuffix

	args := e.baseArgs(device, opts)
	args = append(args, "--output-file", temp)

	slog.Info("Starting capture", "device", device.Device, "format", opts.Format, "output", final)
	_, errOut, err := e.runner.Run(ctx, captureTimeout, "scanimage", args...)
	if err != nil {
		removeQuietly(temp)
		return nil, classifyCaptureError(err, errOut)
	}

	info, statErr := os.Stat(temp)
	if statErr != nil || info.Size() == 0 {
		removeQuietly(temp)
		return nil, fmt.Errorf("%w: %s", ErrEmptyCapture, final)
	}

	if err := os.Rename(temp, final); err != nil {
		removeQuietly(temp)
		return nil, fmt.Errorf("failed to finalize scan output: %w", err)
	}

	slog.Info("Capture complete", "file", final, "bytes", info.Size())
	return []string{final}, nil
}

func (e *Executor) captureBatch(ctx context.Context, device models.Scanner, opts Options) ([]string, error) {
	dir, err := e.targetDir(opts)
	if err != nil {
		return nil, err
	}

	ts := sanitizeTimestamp(e.now())
	prefix := fmt.Sprintf("scan-%s-p", ts)
	pattern := filepath.Join(dir, prefix+"%d."+opts.Format)

	args := e.baseArgs(device, opts)
	args = append(args, "--batch="+pattern)

	slog.Info("Starting duplex batch capture", "device", device.Device, "pattern", pattern)
	_, errOut, err := e.runner.Run(ctx, batchTimeout, "scanimage", args...)
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || errors.Is(err, context.DeadlineExceeded) {
			// Timeout or failure to start: remove whatever the batch wrote.
			e.removeBatchFiles(dir, prefix)
			return nil, classifyCaptureError(err, errOut)
		}
		// The toolchain exits non-zero when the feeder runs out of
		// documents, which is how every batch ends. Collect what it wrote
		// and judge the outcome by the files.
		slog.Debug("Batch command exited non-zero", "err", err, "stderr", strings.TrimSpace(errOut))
	}

	files, err := e.collectBatchFiles(dir, prefix)
	if err != nil {
		e.removeBatchFiles(dir, prefix)
		return nil, err
	}
	if len(files) == 0 {
		if isDeviceGone(errOut) {
			return nil, fmt.Errorf("%w: %s", ErrDeviceUnavailable, firstNonEmpty(errOut))
		}
		return nil, fmt.Errorf("%w: batch produced no pages", ErrEmptyCapture)
	}

	slog.Info("Duplex batch complete", "pages", len(files))
	return files, nil
}

func (e *Executor) baseArgs(device models.Scanner, opts Options) []string {
	args := []string{
		"--device-name", device.Device,
		"--format", opts.Format,
		"--resolution", strconv.Itoa(opts.Resolution),
	}
	if opts.Source != "" {
		args = append(args, "--source", opts.Source)
	}
	if opts.Width > 0 {
		args = append(args, "-x", strconv.FormatFloat(opts.Width, 'f', -1, 64))
	}
	if opts.Height > 0 {
		args = append(args, "-y", strconv.FormatFloat(opts.Height, 'f', -1, 64))
	}
	if opts.SkipBlank {
		args = append(args, "--swskip", "10")
	}
	return args
}

// collectBatchFiles gathers batch output sorted by the numeric page index
// embedded in the filename, so p2 orders before p10. Zero-byte files are
// corrupt sides and are removed on sight.
func (e *Executor) collectBatchFiles(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate scan output: %w", err)
	}

	type indexed struct {
		path  string
		index int
	}
	var pages []indexed
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		m := batchIndex.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		idx, _ := strconv.Atoi(m[1])
		path := filepath.Join(dir, entry.Name())

		info, err := entry.Info()
		if err != nil || info.Size() == 0 {
			slog.Warn("Discarding empty batch page", "file", path)
			removeQuietly(path)
			continue
		}
		pages = append(pages, indexed{path: path, index: idx})
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].index < pages[j].index })

	files := make([]string, 0, len(pages))
	for _, p := range pages {
		files = append(files, p.path)
	}
	return files, nil
}

func (e *Executor) removeBatchFiles(dir, prefix string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			removeQuietly(filepath.Join(dir, entry.Name()))
		}
	}
}

func classifyCaptureError(err error, stderr string) error {
	if isDeviceGone(stderr) || isDeviceGone(err.Error()) {
		return fmt.Errorf("%w: %s", ErrDeviceUnavailable, firstNonEmpty(stderr, err.Error()))
	}
	if strings.TrimSpace(stderr) != "" {
		return fmt.Errorf("capture failed: %s: %w", strings.TrimSpace(stderr), err)
	}
	return fmt.Errorf("capture failed: %w", err)
}

func isDeviceGone(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "no sane devices found") || strings.Contains(s, "no such device")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// sanitizeTimestamp renders t in RFC 3339 with nanosecond precision, with the
// characters that are awkward in filenames replaced by dashes. Sub-second
// precision keeps back-to-back captures from colliding on the same name.
func sanitizeTimestamp(t time.Time) string {
	s := t.UTC().Format("2006-01-02T15:04:05.000000000Z")
	s = strings.ReplaceAll(s, ":", "-")
	return strings.ReplaceAll(s, ".", "-")
}

func removeQuietly(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to remove scan artifact", "file", path, "err", err)
	}
}
