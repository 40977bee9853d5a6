package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writePage(t *testing.T, dir, name string, content []byte, mod time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatal(err)
	}
	return path
}

func pageNumbers(t *testing.T, s *Store, sessionID string) []int {
	t.Helper()
	sess, err := s.Get(sessionID)
	if err != nil {
		t.Fatal(err)
	}
	nums := make([]int, len(sess.Pages))
	for i, p := range sess.Pages {
		nums[i] = p.Number
	}
	return nums
}

func assertContiguous(t *testing.T, nums []int) {
	t.Helper()
	for i, n := range nums {
		if n != i+1 {
			t.Fatalf("page numbering not contiguous: %v", nums)
		}
	}
}

func TestGetRebuildsFromFilesystem(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	writePage(t, dir, "scan-2026-03-01T12-00-00Z.pdf", []byte("a"), base)
	writePage(t, dir, "scan-2026-03-01T12-05-00Z.pdf", []byte("b"), base.Add(5*time.Minute))
	// Not pages: combined output and an in-flight temp file.
	writePage(t, dir, "combined-default-2026.pdf", []byte("c"), base)
	writePage(t, dir, "scan-2026-03-01T12-06-00Z.pdf.part", []byte("d"), base)

	s := NewStore(dir)
	sess, err := s.Get(DefaultID)
	if err != nil {
		t.Fatal(err)
	}
	if len(sess.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(sess.Pages))
	}
	if sess.Pages[0].Filename != "scan-2026-03-01T12-00-00Z.pdf" {
		t.Errorf("pages not sorted by modification time: %v", sess.Pages)
	}
	assertContiguous(t, pageNumbers(t, s, DefaultID))

	for _, p := range sess.Pages {
		if p.ID == "" {
			t.Error("reconstructed page must get an opaque id")
		}
		if p.SizeBytes == 0 {
			t.Error("page size must come from the file")
		}
	}
}

func TestRebuildDeletesZeroByteFiles(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	writePage(t, dir, "scan-good.pdf", []byte("ok"), now)
	empty := writePage(t, dir, "scan-empty.pdf", nil, now)

	s := NewStore(dir)
	sess, err := s.Get(DefaultID)
	if err != nil {
		t.Fatal(err)
	}
	if len(sess.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(sess.Pages))
	}
	if _, err := os.Stat(empty); !os.IsNotExist(err) {
		t.Error("zero-byte artifact must be deleted during rebuild")
	}
}

func TestAddPageRejectsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	empty := writePage(t, dir, "scan-empty.pdf", nil, time.Now())

	s := NewStore(dir)
	_, err := s.AddPage(DefaultID, empty)
	if !errors.Is(err, ErrEmptyPage) {
		t.Fatalf("error = %v, want ErrEmptyPage", err)
	}
	if _, err := os.Stat(empty); !os.IsNotExist(err) {
		t.Error("zero-byte file must be deleted by AddPage")
	}
}

func TestAddPageRejectsOutsideOutputDir(t *testing.T) {
	dir := t.TempDir()
	other := t.TempDir()
	outside := writePage(t, other, "scan-x.pdf", []byte("x"), time.Now())

	s := NewStore(dir)
	if _, err := s.AddPage(DefaultID, outside); !errors.Is(err, ErrOutsideOutputDir) {
		t.Fatalf("error = %v, want ErrOutsideOutputDir", err)
	}
}

func TestRemovePageRenumbers(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	writePage(t, dir, "scan-1.pdf", []byte("1"), base)
	second := writePage(t, dir, "scan-2.pdf", []byte("2"), base.Add(time.Minute))
	writePage(t, dir, "scan-3.pdf", []byte("3"), base.Add(2*time.Minute))

	s := NewStore(dir)
	sess, err := s.Get(DefaultID)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.RemovePage(DefaultID, sess.Pages[1].ID); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(second); !os.IsNotExist(err) {
		t.Error("removed page's file must be deleted")
	}

	nums := pageNumbers(t, s, DefaultID)
	if len(nums) != 2 {
		t.Fatalf("expected 2 pages, got %v", nums)
	}
	assertContiguous(t, nums)
}

func TestRemovePageByPath(t *testing.T) {
	dir := t.TempDir()
	path := writePage(t, dir, "scan-1.pdf", []byte("1"), time.Now())

	s := NewStore(dir)
	if _, err := s.Get(DefaultID); err != nil {
		t.Fatal(err)
	}
	if err := s.RemovePage(DefaultID, path); err != nil {
		t.Fatalf("removal by path should work: %v", err)
	}
	if err := s.RemovePage(DefaultID, "nope"); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("error = %v, want ErrPageNotFound", err)
	}
}

func TestClearDeletesFilesAndCounts(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	writePage(t, dir, "scan-1.pdf", []byte("1"), now)
	writePage(t, dir, "scan-2.pdf", []byte("2"), now)

	s := NewStore(dir)
	deleted, err := s.Clear(DefaultID)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	sess, err := s.Get(DefaultID)
	if err != nil {
		t.Fatal(err)
	}
	if len(sess.Pages) != 0 {
		t.Errorf("session should be empty after clear, got %v", sess.Pages)
	}
}

func TestReorder(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	writePage(t, dir, "scan-1.pdf", []byte("1"), base)
	writePage(t, dir, "scan-2.pdf", []byte("2"), base.Add(time.Minute))
	writePage(t, dir, "scan-3.pdf", []byte("3"), base.Add(2*time.Minute))

	s := NewStore(dir)
	sess, err := s.Get(DefaultID)
	if err != nil {
		t.Fatal(err)
	}

	order := []string{sess.Pages[2].ID, sess.Pages[0].ID, sess.Pages[1].ID}
	if err := s.Reorder(DefaultID, order); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(DefaultID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Pages[0].Filename != "scan-3.pdf" {
		t.Errorf("reorder not applied: first page is %s", got.Pages[0].Filename)
	}
	assertContiguous(t, pageNumbers(t, s, DefaultID))
}

func TestReorderIsAtomic(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	writePage(t, dir, "scan-1.pdf", []byte("1"), base)
	writePage(t, dir, "scan-2.pdf", []byte("2"), base.Add(time.Minute))

	s := NewStore(dir)
	sess, err := s.Get(DefaultID)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		order []string
	}{
		{"unknown id", []string{sess.Pages[1].ID, "bogus"}},
		{"missing page", []string{sess.Pages[1].ID}},
		{"duplicate id", []string{sess.Pages[1].ID, sess.Pages[1].ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Reorder(DefaultID, tt.order); !errors.Is(err, ErrUnknownPageID) {
				t.Fatalf("error = %v, want ErrUnknownPageID", err)
			}
			got, err := s.Get(DefaultID)
			if err != nil {
				t.Fatal(err)
			}
			if got.Pages[0].Filename != "scan-1.pdf" || got.Pages[1].Filename != "scan-2.pdf" {
				t.Errorf("rejected reorder must leave the order unchanged: %v", got.Pages)
			}
		})
	}
}

func TestNamedSessionsAreIsolated(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	writePage(t, dir, "scan-default.pdf", []byte("d"), now)

	s := NewStore(dir)
	invoiceDir, err := s.Dir("invoices")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(invoiceDir, 0755); err != nil {
		t.Fatal(err)
	}
	writePage(t, invoiceDir, "scan-invoice.pdf", []byte("i"), now)

	def, err := s.Get(DefaultID)
	if err != nil {
		t.Fatal(err)
	}
	inv, err := s.Get("invoices")
	if err != nil {
		t.Fatal(err)
	}
	if len(def.Pages) != 1 || def.Pages[0].Filename != "scan-default.pdf" {
		t.Errorf("default session pages wrong: %v", def.Pages)
	}
	if len(inv.Pages) != 1 || inv.Pages[0].Filename != "scan-invoice.pdf" {
		t.Errorf("named session pages wrong: %v", inv.Pages)
	}

	list, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Errorf("expected 2 sessions, got %d", len(list))
	}
}

func TestTraversalSessionIDsAreRejected(t *testing.T) {
	parent := t.TempDir()
	outside := writePage(t, parent, "scan-outside.pdf", []byte("x"), time.Now())

	dir := filepath.Join(parent, "scans")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	s := NewStore(dir)

	badIDs := []string{"..", ".", "../sibling", "a/b", "/etc", "nested/.."}
	for _, id := range badIDs {
		t.Run(id, func(t *testing.T) {
			if _, err := s.Dir(id); !errors.Is(err, ErrInvalidSessionID) {
				t.Errorf("Dir(%q) error = %v, want ErrInvalidSessionID", id, err)
			}
			if _, err := s.Get(id); !errors.Is(err, ErrInvalidSessionID) {
				t.Errorf("Get(%q) error = %v, want ErrInvalidSessionID", id, err)
			}
			if _, err := s.Clear(id); !errors.Is(err, ErrInvalidSessionID) {
				t.Errorf("Clear(%q) error = %v, want ErrInvalidSessionID", id, err)
			}
			if err := s.RemovePage(id, "whatever"); !errors.Is(err, ErrInvalidSessionID) {
				t.Errorf("RemovePage(%q) error = %v, want ErrInvalidSessionID", id, err)
			}
		})
	}

	// The file one level above the output directory must be untouchable.
	if _, err := os.Stat(outside); err != nil {
		t.Fatalf("file outside the output directory was touched: %v", err)
	}

	// The empty id still means the default session.
	got, err := s.Dir("")
	if err != nil {
		t.Fatal(err)
	}
	if got != dir {
		t.Errorf("Dir(\"\") = %q, want the output directory %q", got, dir)
	}
}

func TestExternallyDeletedFileDropsOut(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	first := writePage(t, dir, "scan-1.pdf", []byte("1"), base)
	writePage(t, dir, "scan-2.pdf", []byte("2"), base.Add(time.Minute))

	s := NewStore(dir)
	if _, err := s.Get(DefaultID); err != nil {
		t.Fatal(err)
	}

	// Something outside the service removes the file; the next read notices.
	if err := os.Remove(first); err != nil {
		t.Fatal(err)
	}

	sess, err := s.Get(DefaultID)
	if err != nil {
		t.Fatal(err)
	}
	if len(sess.Pages) != 1 || sess.Pages[0].Filename != "scan-2.pdf" {
		t.Fatalf("vanished file should drop out: %v", sess.Pages)
	}
	assertContiguous(t, pageNumbers(t, s, DefaultID))
}
