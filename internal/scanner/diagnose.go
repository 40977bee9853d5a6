package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/scandock/scandock/internal/models"
)

// Probe is the outcome of one independent diagnostic check. A failed probe
// carries its detail but never aborts the checks that follow it.
type Probe struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

// Diagnosis aggregates every probe plus human-readable suggestions.
type Diagnosis struct {
	Probes      []Probe  `json:"probes"`
	Suggestions []string `json:"suggestions"`
}

// FixResult reports a remediation attempt. Success means a subsequent
// detection found at least one device.
type FixResult struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Devices []models.Scanner `json:"devices,omitempty"`
}

// Diagnose collects best-effort facts about the scanning toolchain and host.
// Every sub-probe is guarded on its own; a missing tool degrades that probe to
// a failure entry instead of blocking the rest.
func (r *Registry) Diagnose(ctx context.Context) Diagnosis {
	var d Diagnosis

	toolPath, err := r.runner.LookPath("scanimage")
	if err != nil {
		d.Probes = append(d.Probes, Probe{Name: "toolchain", Detail: "scanimage not found in PATH"})
		d.Suggestions = append(d.Suggestions, "Install the SANE utilities (e.g. apt install sane-utils)")
	} else {
		d.Probes = append(d.Probes, Probe{Name: "toolchain", OK: true, Detail: toolPath})

		if out, _, err := r.runner.Run(ctx, listTimeout, "scanimage", "--version"); err == nil {
			d.Probes = append(d.Probes, Probe{Name: "version", OK: true, Detail: firstLine(out)})
		} else {
			d.Probes = append(d.Probes, Probe{Name: "version", Detail: err.Error()})
		}
	}

	if out, _, err := r.runner.Run(ctx, listTimeout, "id", "-nG"); err == nil {
		groups := strings.Fields(out)
		if containsFold(groups, "scanner") || containsFold(groups, "lp") {
			d.Probes = append(d.Probes, Probe{Name: "groups", OK: true, Detail: strings.Join(groups, " ")})
		} else {
			d.Probes = append(d.Probes, Probe{Name: "groups", Detail: "user is not in the scanner or lp group"})
			d.Suggestions = append(d.Suggestions, "Add the service user to the scanner group and re-login")
		}
	} else {
		d.Probes = append(d.Probes, Probe{Name: "groups", Detail: err.Error()})
	}

	if out, _, err := r.runner.Run(ctx, listTimeout, "lsusb"); err == nil {
		d.Probes = append(d.Probes, Probe{Name: "usb", OK: true, Detail: fmt.Sprintf("%d USB devices enumerated", len(nonEmptyLines(out)))})
	} else {
		d.Probes = append(d.Probes, Probe{Name: "usb", Detail: err.Error()})
	}

	if len(d.Suggestions) == 0 {
		d.Suggestions = append(d.Suggestions, "Check the scanner is powered on and the USB cable is seated")
	}
	return d
}

// AttemptFix runs the platform remediation sequence and then re-detects once.
// Every remediation step swallows its own failure; only the final detection
// decides the outcome.
func (r *Registry) AttemptFix(ctx context.Context) FixResult {
	if runtime.GOOS == "linux" {
		steps := [][]string{
			{"systemctl", "restart", "saned.socket"},
			{"modprobe", "-r", "usblp"},
			{"modprobe", "usblp"},
		}
		for _, step := range steps {
			if _, errOut, err := r.runner.Run(ctx, 10*time.Second, step[0], step[1:]...); err != nil {
				slog.Debug("Remediation step failed", "cmd", strings.Join(step, " "), "err", err, "stderr", strings.TrimSpace(errOut))
			}
		}
		// Give USB devices a moment to re-enumerate after the module reload.
		r.sleep(2 * time.Second)
	}

	devices, err := r.Detect(ctx)
	if err != nil || len(devices) == 0 {
		return FixResult{Message: "no scanner found after remediation"}
	}
	return FixResult{
		Success: true,
		Message: fmt.Sprintf("scanner available: %s", devices[0].Device),
		Devices: devices,
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}
