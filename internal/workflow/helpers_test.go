package workflow_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"scribe/internal/blobstore"
	"scribe/internal/config"
	"scribe/internal/engine"
	"scribe/internal/testsupport"
	"scribe/internal/workflow"
)

const sampleTranscript = "Welcome to the show. Today we talk about transcription pipelines and how they recover from crashes."

type countingEngine struct {
	calls atomic.Int32
	fn    engine.Func
}

func (c *countingEngine) Transcribe(ctx context.Context, path, quality, compute string) (string, error) {
	c.calls.Add(1)
	if c.fn != nil {
		return c.fn(ctx, path, quality, compute)
	}
	return sampleTranscript, nil
}

func (c *countingEngine) Calls() int { return int(c.calls.Load()) }

type harness struct {
	cfg    *config.Config
	blobs  *blobstore.Memory
	engine *countingEngine
	runner *workflow.Runner
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	blobs := blobstore.NewMemory()
	eng := &countingEngine{}
	return &harness{
		cfg:    cfg,
		blobs:  blobs,
		engine: eng,
		runner: workflow.NewRunner(cfg, blobs, eng, nil),
	}
}

// restart builds a fresh runner over the same blobs and directories, as a
// new process would after a crash.
func (h *harness) restart(eng *countingEngine) *workflow.Runner {
	h.engine = eng
	return workflow.NewRunner(h.cfg, h.blobs, eng, nil)
}

func (h *harness) putAudio(name string) string {
	return h.blobs.Put(h.cfg.Storage.AudioFolder, name, []byte(strings.Repeat("A", 4096)))
}

// localCopies lists the working copies of name under dir, one per source.
func localCopies(t *testing.T, dir, name string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*", name))
	if err != nil {
		t.Fatalf("glob %s: %v", name, err)
	}
	return matches
}

func (h *harness) metadataStatus(t *testing.T, ref string) string {
	t.Helper()
	value, ok, err := h.blobs.GetMetadata(context.Background(), ref)
	if err != nil || !ok {
		t.Fatalf("GetMetadata(%s): ok=%v err=%v", ref, ok, err)
	}
	var fields struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(value), &fields); err != nil {
		t.Fatalf("decode metadata %q: %v", value, err)
	}
	return fields.Status
}
