package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/LangChat/ai-tutorials/internal/config"
	"github.com/LangChat/ai-tutorials/internal/embedding"
	"github.com/LangChat/ai-tutorials/internal/keyword"
	"github.com/LangChat/ai-tutorials/internal/loader"
	"github.com/LangChat/ai-tutorials/internal/models"
	"github.com/LangChat/ai-tutorials/internal/storage"
	"github.com/LangChat/ai-tutorials/internal/vector"
)

func TestExtensionAllowed(t *testing.T) {
	tests := []struct {
		ext     string
		allowed []string
		want    bool
	}{
		{".txt", []string{".txt", ".md"}, true},
		{".TXT", []string{".txt"}, true},
		{".md", []string{"txt", "md"}, true},
		{".go", []string{".txt"}, false},
		{"", []string{".txt"}, false},
		{".rst", []string{".txt", ".md", ".rst"}, true},
	}
	for _, tt := range tests {
		got := extensionAllowed(tt.ext, tt.allowed)
		if got != tt.want {
			t.Errorf("extensionAllowed(%q, %v) = %v, want %v", tt.ext, tt.allowed, got, tt.want)
		}
	}
}

type testEnv struct {
	idx     *Indexer
	storage *storage.SQLiteStorage
	store   *vector.MemoryStore
	keyword *keyword.BleveIndex
}

func newTestEnv(t *testing.T, dir string) *testEnv {
	t.Helper()
	cfg := &config.RAGConfig{Splitter: SplitterParagraph, ChunkSize: 40, ChunkOverlap: 10}
	st, err := storage.NewSQLiteStorage(filepath.Join(dir, "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })
	kw, err := keyword.NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kw.Close() })
	store := vector.NewMemoryStore(0)
	idx, err := NewIndexer(st, embedding.NewMockEmbedder(16), store, kw, cfg)
	if err != nil {
		t.Fatal(err)
	}
	return &testEnv{idx: idx, storage: st, store: store, keyword: kw}
}

func mustAbs(t *testing.T, path string) string {
	t.Helper()
	a, err := filepath.Abs(path)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestNewIndexer_UnknownSplitter(t *testing.T) {
	_, err := NewIndexer(nil, nil, nil, nil, &config.RAGConfig{Splitter: "sentence"})
	if err == nil {
		t.Error("expected error for unknown splitter")
	}
}

func TestIndexDocument(t *testing.T) {
	env := newTestEnv(t, t.TempDir())
	ctx := context.Background()

	doc, err := env.idx.IndexDocument(ctx, &models.DocumentInput{
		ID:      "doc-1",
		Title:   "travel_notes",
		Content: "Paris is the capital of France.\n\nBerlin is the capital of Germany.\n\n\n\nRome   is the capital of Italy.",
	})
	if err != nil {
		t.Fatal(err)
	}
	if doc.ID != "doc-1" {
		t.Errorf("ID = %s", doc.ID)
	}

	segs, err := env.storage.GetSegmentsByDocumentID(ctx, "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 3 {
		t.Fatalf("stored %d segments, want 3", len(segs))
	}
	if segs[2].Text != "Rome is the capital of Italy." {
		t.Errorf("segment 2 = %q", segs[2].Text)
	}
	if segs[0].MetadataString(models.MetaDocumentID) != "doc-1" {
		t.Errorf("segment metadata = %v", segs[0].Metadata)
	}
	if len(segs[0].Embedding) != 16 {
		t.Errorf("segment embedding length = %d", len(segs[0].Embedding))
	}
	if env.store.Size() != 3 {
		t.Errorf("embedding store size = %d, want 3", env.store.Size())
	}
	if n, _ := env.keyword.DocCount(); n != 3 {
		t.Errorf("keyword doc count = %d, want 3", n)
	}
	hits, err := env.keyword.Search(ctx, "travel", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 {
		t.Error("normalized title should be searchable")
	}
}

func TestIndexDocument_Replace(t *testing.T) {
	env := newTestEnv(t, t.TempDir())
	ctx := context.Background()

	in := &models.DocumentInput{ID: "d", Title: "t", Content: "the first paragraph is long\n\nthe second paragraph is long\n\nthe third paragraph is long"}
	if _, err := env.idx.IndexDocument(ctx, in); err != nil {
		t.Fatal(err)
	}
	if env.store.Size() != 3 {
		t.Fatalf("embedding store size = %d, want 3", env.store.Size())
	}
	in.Content = "only one now"
	if _, err := env.idx.IndexDocument(ctx, in); err != nil {
		t.Fatal(err)
	}
	if env.store.Size() != 1 {
		t.Errorf("embedding store size = %d, want 1", env.store.Size())
	}
	if n, _ := env.storage.CountSegments(ctx); n != 1 {
		t.Errorf("stored segments = %d, want 1", n)
	}
}

func TestIndexDocument_Empty(t *testing.T) {
	env := newTestEnv(t, t.TempDir())
	_, err := env.idx.IndexDocument(context.Background(), &models.DocumentInput{Content: "  \n\t "})
	if !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("err = %v, want ErrEmptyDocument", err)
	}
}

func TestIndexDocument_GeneratesID(t *testing.T) {
	env := newTestEnv(t, t.TempDir())
	doc, err := env.idx.IndexDocument(context.Background(), &models.DocumentInput{Content: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if doc.ID == "" || doc.Title != doc.ID {
		t.Errorf("unexpected document %+v", doc)
	}
}

func TestIndexFile_CreateAndUpdate(t *testing.T) {
	dir := t.TempDir()
	env := newTestEnv(t, dir)
	ctx := context.Background()

	fPath := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(fPath, []byte("Hello world content."), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := env.idx.IndexFile(ctx, fPath, []string{".txt", ".md"}); err != nil {
		t.Fatal(err)
	}
	docID := loader.DocumentID(mustAbs(t, fPath))
	doc, err := env.storage.GetDocument(ctx, docID)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Title != "doc.txt" || doc.Content != "Hello world content." {
		t.Errorf("unexpected doc: title=%q content=%q", doc.Title, doc.Content)
	}
	if doc.Metadata[models.MetaSourcePath] != mustAbs(t, fPath) {
		t.Errorf("metadata source_path: got %v", doc.Metadata[models.MetaSourcePath])
	}

	skipped, err := env.idx.IndexFile(ctx, fPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !skipped {
		t.Error("unchanged file should be skipped")
	}

	if err := os.WriteFile(fPath, []byte("Updated content, now longer."), 0600); err != nil {
		t.Fatal(err)
	}
	skipped, err = env.idx.IndexFile(ctx, fPath, []string{".txt"})
	if err != nil {
		t.Fatal(err)
	}
	if skipped {
		t.Error("changed file should be re-indexed")
	}
	doc2, err := env.storage.GetDocument(ctx, docID)
	if err != nil {
		t.Fatal(err)
	}
	if doc2.Content != "Updated content, now longer." {
		t.Errorf("after update: content=%q", doc2.Content)
	}
}

func TestIndexFile_Errors(t *testing.T) {
	dir := t.TempDir()
	env := newTestEnv(t, dir)
	ctx := context.Background()

	script := filepath.Join(dir, "script.sh")
	if err := os.WriteFile(script, []byte("#!/bin/bash"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := env.idx.IndexFile(ctx, script, []string{".txt", ".md"}); err == nil {
		t.Error("expected error for disallowed extension")
	}
	if _, err := env.idx.IndexFile(ctx, dir, nil); err == nil {
		t.Error("expected error for directory")
	}
	if _, err := env.idx.IndexFile(ctx, filepath.Join(dir, "missing.txt"), nil); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestIndexFile_Excel(t *testing.T) {
	dir := t.TempDir()
	env := newTestEnv(t, dir)
	ctx := context.Background()

	fPath := filepath.Join(dir, "data.xlsx")
	f := excelize.NewFile()
	_ = f.SetCellValue("Sheet1", "A1", "Excel searchable content")
	if err := f.SaveAs(fPath); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	_ = f.Close()

	if _, err := env.idx.IndexFile(ctx, fPath, []string{".xlsx", ".txt"}); err != nil {
		t.Fatalf("IndexFile: %v", err)
	}
	doc, err := env.storage.GetDocument(ctx, loader.DocumentID(mustAbs(t, fPath)))
	if err != nil {
		t.Fatal(err)
	}
	if doc.Title != "data.xlsx" || doc.Content != "Excel searchable content" {
		t.Errorf("unexpected doc: title=%q content=%q", doc.Title, doc.Content)
	}
}

func TestDeleteFile(t *testing.T) {
	dir := t.TempDir()
	env := newTestEnv(t, dir)
	ctx := context.Background()

	fPath := filepath.Join(dir, "note.md")
	if err := os.WriteFile(fPath, []byte("Note content."), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := env.idx.IndexFile(ctx, fPath, nil); err != nil {
		t.Fatal(err)
	}
	if err := env.idx.DeleteFile(ctx, fPath); err != nil {
		t.Fatal(err)
	}
	if _, err := env.storage.GetDocument(ctx, loader.DocumentID(mustAbs(t, fPath))); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("document should be deleted, err = %v", err)
	}
	if env.store.Size() != 0 {
		t.Errorf("embedding store size = %d, want 0", env.store.Size())
	}
	if n, _ := env.keyword.DocCount(); n != 0 {
		t.Errorf("keyword doc count = %d, want 0", n)
	}
	if err := env.idx.DeleteFile(ctx, fPath); err != nil {
		t.Errorf("deleting an unindexed file should be a no-op, got %v", err)
	}
}

func TestDeleteDocument_NotFound(t *testing.T) {
	env := newTestEnv(t, t.TempDir())
	err := env.idx.DeleteDocument(context.Background(), "nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestIndexDirectory(t *testing.T) {
	dir := t.TempDir()
	docs := filepath.Join(dir, "docs")
	sub := filepath.Join(docs, "sub")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	for path, body := range map[string]string{
		filepath.Join(docs, "a.txt"):    "file a",
		filepath.Join(docs, "b.txt"):    "file b",
		filepath.Join(sub, "c.txt"):     "file c",
		filepath.Join(docs, "skip.xyz"): "skip",
	} {
		if err := os.WriteFile(path, []byte(body), 0600); err != nil {
			t.Fatal(err)
		}
	}
	ctx := context.Background()

	env := newTestEnv(t, dir)
	n, err := env.idx.IndexDirectory(ctx, docs, []string{".txt"}, true)
	if err != nil {
		t.Fatalf("IndexDirectory: %v", err)
	}
	if n != 3 {
		t.Errorf("IndexDirectory: indexed %d files, want 3", n)
	}
	n, err = env.idx.IndexDirectory(ctx, docs, []string{".txt"}, true)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("second pass indexed %d files, want 0", n)
	}

	flat := newTestEnv(t, t.TempDir())
	n, err = flat.idx.IndexDirectory(ctx, docs, []string{".txt"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("non-recursive: indexed %d files, want 2", n)
	}
}

func TestRestore(t *testing.T) {
	dir := t.TempDir()
	env := newTestEnv(t, dir)
	ctx := context.Background()

	if _, err := env.idx.IndexDocument(ctx, &models.DocumentInput{ID: "d", Title: "restored_doc", Content: "alpha alpha alpha alpha alpha\n\nbeta beta beta beta beta"}); err != nil {
		t.Fatal(err)
	}

	kw, err := keyword.NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	defer kw.Close()
	store := vector.NewMemoryStore(0)
	fresh, err := NewIndexer(env.storage, embedding.NewMockEmbedder(16), store, kw, &config.RAGConfig{})
	if err != nil {
		t.Fatal(err)
	}
	n, err := fresh.Restore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || store.Size() != 2 {
		t.Errorf("restored %d, store size %d, want 2", n, store.Size())
	}
	if c, _ := kw.DocCount(); c != 2 {
		t.Errorf("keyword doc count = %d, want 2", c)
	}
	hits, err := kw.Search(ctx, "restored", 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Errorf("title search after restore: %d hits, want 2", len(hits))
	}
}
