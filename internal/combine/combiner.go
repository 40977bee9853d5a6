// Package combine merges a session's ordered pages into one uploadable
// document. PDF pages are merged structurally at the page level; image
// formats are handed to an external merge tool.
package combine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wudi/pdfkit/builder"
	"github.com/wudi/pdfkit/ir"
	"github.com/wudi/pdfkit/writer"

	"github.com/scandock/scandock/internal/execrun"
	"github.com/scandock/scandock/internal/models"
)

const convertTimeout = 60 * time.Second

// ErrNoPages means no usable input page survived validation; nothing was
// produced.
var ErrNoPages = errors.New("no valid pages to combine")

// Combiner builds combined documents under one output directory. It never
// deletes its input pages; the caller clears the session after a successful
// upload.
type Combiner struct {
	runner    execrun.Runner
	outputDir string
	now       func() time.Time
}

// New returns a combiner writing results under outputDir.
func New(runner execrun.Runner, outputDir string) *Combiner {
	return &Combiner{
		runner:    runner,
		outputDir: outputDir,
		now:       time.Now,
	}
}

// Combine merges the session's pages in their page order into a single PDF
// and returns its path. The strategy depends on the page format: PDF pages
// merge structurally, anything else goes through the external merge tool.
func (c *Combiner) Combine(ctx context.Context, sess models.Session, format string) (string, error) {
	if len(sess.Pages) == 0 {
		return "", ErrNoPages
	}

	out := c.outputPath(sess)

	var err error
	if format == "pdf" {
		err = c.mergePDF(ctx, sess, out)
	} else {
		err = c.mergeExternal(ctx, sess, out)
	}
	if err != nil {
		// Never leave a partial combined document in place.
		if rmErr := os.Remove(out); rmErr != nil && !os.IsNotExist(rmErr) {
			slog.Warn("Failed to remove partial combined output", "file", out, "err", rmErr)
		}
		return "", err
	}

	slog.Info("Combined session pages", "session", sess.ID, "pages", len(sess.Pages), "output", out)
	return out, nil
}

// mergePDF appends every content page of every session page document into one
// accumulating output. A missing page file is skipped with a warning as long
// as at least one page makes it in.
func (c *Combiner) mergePDF(ctx context.Context, sess models.Session, out string) error {
	b := builder.NewBuilder()
	merged := 0

	for _, page := range sess.Pages {
		f, err := os.Open(page.Filepath)
		if err != nil {
			slog.Warn("Skipping missing page file", "session", sess.ID, "file", page.Filepath, "err", err)
			continue
		}

		doc, err := ir.NewDefault().Parse(ctx, f)
		f.Close()
		if err != nil {
			slog.Warn("Skipping unreadable page document", "session", sess.ID, "file", page.Filepath, "err", err)
			continue
		}

		for _, p := range doc.Pages {
			b.AddPage(p)
		}
		merged++
	}

	if merged == 0 {
		return ErrNoPages
	}

	doc, err := b.Build()
	if err != nil {
		return fmt.Errorf("failed to assemble combined document: %w", err)
	}

	outFile, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create combined output: %w", err)
	}
	defer outFile.Close()

	cfg := writer.Config{
		Version:     writer.PDF17,
		Compression: 9,
	}
	if err := writer.NewWriter().Write(ctx, doc, outFile, cfg); err != nil {
		return fmt.Errorf("failed to write combined document: %w", err)
	}
	return nil
}

// mergeExternal shells out to the image merge tool over the pages that still
// exist on disk.
func (c *Combiner) mergeExternal(ctx context.Context, sess models.Session, out string) error {
	var inputs []string
	for _, page := range sess.Pages {
		info, err := os.Stat(page.Filepath)
		if err != nil || info.Size() == 0 {
			slog.Warn("Skipping missing page file", "session", sess.ID, "file", page.Filepath)
			continue
		}
		inputs = append(inputs, page.Filepath)
	}
	if len(inputs) == 0 {
		return ErrNoPages
	}

	args := append(inputs, out)
	_, errOut, err := c.runner.Run(ctx, convertTimeout, "convert", args...)
	if err != nil {
		return fmt.Errorf("merge tool failed: %s: %w", firstNonEmpty(errOut, err.Error()), err)
	}

	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("merge tool produced no output: %s", out)
	}
	return nil
}

// outputPath names the combined artifact. A single-page session drops the
// "combined-" prefix.
func (c *Combiner) outputPath(sess models.Session) string {
	ts := c.now().UTC().Format("2006-01-02T15-04-05Z")
	name := fmt.Sprintf("combined-%s-%s.pdf", sess.ID, ts)
	if len(sess.Pages) == 1 {
		name = fmt.Sprintf("%s-%s.pdf", sess.ID, ts)
	}
	return filepath.Join(c.outputDir, name)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
