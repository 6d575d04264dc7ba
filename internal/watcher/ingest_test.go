package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/search"
	"github.com/hyperjump/kotae/internal/session"
	"github.com/hyperjump/kotae/internal/vector"
)

func TestSessionIngester(t *testing.T) {
	emb := embedding.NewMockEmbedder(32)
	splitter, err := indexer.NewCharacterSplitter(200, 20)
	if err != nil {
		t.Fatal(err)
	}
	ix := indexer.NewIndexer(splitter, vector.NewBuilder(emb), extract.NewExtractor())
	sess := session.NewManager(search.NewEngine(emb)).Pin("watch")
	h := NewSessionIngester(sess, ix, []string{".txt"}, nil)

	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("the quarterly report is due friday"), 0600); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	h.FileChanged(ctx, path)
	h.FileChanged(ctx, path)

	info := sess.Info()
	if len(info.Documents) != 1 || info.Chunks != 1 {
		t.Fatalf("info = %+v", info)
	}
	if info.Documents[0].Name != "notes.txt" {
		t.Errorf("document name = %q", info.Documents[0].Name)
	}

	h.FileRemoved(ctx, path)
	if sess.Info().Chunks != 1 {
		t.Error("removal should not drop chunks")
	}

	h.FileChanged(ctx, filepath.Join(t.TempDir(), "missing.txt"))
	if len(sess.Info().Documents) != 1 {
		t.Error("unreadable file should not add a document")
	}
}
