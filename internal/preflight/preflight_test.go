package preflight

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"scribe/internal/config"
	"scribe/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDiskSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckDiskSpace("disk", dir, 0); !result.Passed {
		t.Fatalf("zero requirement must pass: %s", result.Detail)
	}
	if result := CheckDiskSpace("disk", dir, math.MaxUint64); result.Passed {
		t.Fatal("impossible requirement must fail")
	}
	if result := CheckDiskSpace("disk", filepath.Join(dir, "missing"), 0); result.Passed {
		t.Fatal("missing path must fail")
	}
}

func TestCheckBinary(t *testing.T) {
	testsupport.NewConfig(t, testsupport.WithStubbedBinaries("uvx"))
	if result := CheckBinary(context.Background(), "uvx", "uvx", ""); !result.Passed {
		t.Fatalf("expected stubbed uvx to resolve: %s", result.Detail)
	}
	if result := CheckBinary(context.Background(), "ghost", "clearly-not-present-binary", "x"); result.Passed {
		t.Fatal("expected missing binary to fail")
	}
	if result := CheckBinary(context.Background(), "empty", " ", ""); result.Passed {
		t.Fatal("expected empty command to fail")
	}
}

func TestRunAll(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	results := RunAll(context.Background(), cfg)
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}

	cfg.Transcription.Engine = config.EngineOpenAI
	cfg.Transcription.OpenAIAPIKey = ""
	failed := Failed(RunAll(context.Background(), cfg))
	if len(failed) != 1 || failed[0].Name != "OpenAI API key" {
		t.Fatalf("expected missing key failure, got %+v", failed)
	}
}

func TestMiB(t *testing.T) {
	if MiB(0) != 0 || MiB(-5) != 0 {
		t.Fatal("non-positive sizes must map to zero")
	}
	if MiB(2) != 2<<20 {
		t.Fatalf("MiB(2) = %d", MiB(2))
	}
}
