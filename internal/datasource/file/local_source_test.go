package file

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

const sampleExport = "Invoice,StockCode,Quantity\n1001,85123A,6\n"

func writeExport(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "online_retail.csv")
	if err := os.WriteFile(p, []byte(sampleExport), 0o644); err != nil {
		t.Fatalf("write export: %v", err)
	}
	return p
}

// TestLocalOpen_ReadsFile opens a CSV export and reads it back whole.
func TestLocalOpen_ReadsFile(t *testing.T) {
	t.Parallel()

	rc, err := NewLocal(writeExport(t)).Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != sampleExport {
		t.Fatalf("content = %q, want %q", got, sampleExport)
	}
}

/*
TestLocalOpen_MissingFile: a missing export surfaces os.ErrNotExist through
the wrap chain and no ReadCloser leaks out alongside the error.
*/
func TestLocalOpen_MissingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "no_such_export.csv")
	rc, err := NewLocal(path).Open(context.Background())
	if err == nil {
		rc.Close()
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("errors.Is(err, os.ErrNotExist) = false for %v", err)
	}
	if rc != nil {
		rc.Close()
		t.Fatalf("got non-nil ReadCloser alongside error")
	}
}

// TestLocalOpen_CanceledContext: cancellation wins even when the file exists.
func TestLocalOpen_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rc, err := NewLocal(writeExport(t)).Open(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if rc != nil {
		rc.Close()
		t.Fatalf("got non-nil ReadCloser alongside context error")
	}
}

// BenchmarkLocalOpen isolates os.Open plus descriptor churn on a small file.
func BenchmarkLocalOpen(b *testing.B) {
	p := filepath.Join(b.TempDir(), "online_retail.csv")
	if err := os.WriteFile(p, []byte(sampleExport), 0o644); err != nil {
		b.Fatalf("write export: %v", err)
	}
	src := NewLocal(p)
	ctx := context.Background()

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		rc, err := src.Open(ctx)
		if err != nil {
			b.Fatal(err)
		}
		if err := rc.Close(); err != nil {
			b.Fatal(err)
		}
	}
}
