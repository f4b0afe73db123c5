package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "knowledge.json")

	h := NewHolder(context.Background(), NewLoader(nil, FileSource{Path: path}))
	reloaded := make(chan LoadReport, 16)
	h.OnSwap(func(kb *KnowledgeBase, r LoadReport) { reloaded <- r })

	w, err := NewWatcher(h, nil)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	if err := os.WriteFile(path, []byte(sampleDoc), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case r := <-reloaded:
		if r.Source != path {
			t.Errorf("reloaded from %s, want %s", r.Source, path)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
	if _, ok := h.Current().Pattern("Simple Circle"); !ok {
		t.Error("holder should serve the new document")
	}
}

func TestWatcher_StopWithoutStart(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := NewStaticHolder(Builtin())
	w, err := NewWatcher(h, nil)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	w.Stop()
}
