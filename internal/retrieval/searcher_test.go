package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kalambet/vinq/internal/storage"
)

// keywordClient embeds texts onto fixed axes by keyword so ranking is predictable.
type keywordClient struct{}

func (keywordClient) Embed(_ context.Context, _ string, text string) ([]float32, error) {
	t := strings.ToLower(text)
	v := []float32{0.01, 0.01, 0.01}
	if strings.Contains(t, "scratch") {
		v[0] = 1
	}
	if strings.Contains(t, "dent") {
		v[1] = 1
	}
	if strings.Contains(t, "glass") {
		v[2] = 1
	}
	return v, nil
}

type fakeSource struct {
	texts []storage.IndexText
	err   error
}

func (f *fakeSource) IndexTexts(_ context.Context) ([]storage.IndexText, error) {
	return f.texts, f.err
}

type fakeFetcher struct {
	gotIDs []string
	err    error
}

func (f *fakeFetcher) FetchByIDs(_ context.Context, ids []string) ([]storage.Row, error) {
	f.gotIDs = ids
	if f.err != nil {
		return nil, f.err
	}
	rows := make([]storage.Row, len(ids))
	for i, id := range ids {
		rows[i] = storage.Row{"record_id": id}
	}
	return rows, nil
}

var sampleTexts = []storage.IndexText{
	{RecordID: "r1", Text: "Scratch - Door - Minor"},
	{RecordID: "r2", Text: "Dent - Hood - Major"},
	{RecordID: "r3", Text: ""},
	{RecordID: "r4", Text: "Broken glass - Windshield"},
}

func TestBuild_SkipsEmptyTexts(t *testing.T) {
	idx := openTestIndex(t)
	emb := NewEmbedder(keywordClient{}, "m")

	n, err := Build(context.Background(), &fakeSource{texts: sampleTexts}, emb, idx)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if n != 3 {
		t.Errorf("indexed %d, want 3", n)
	}
	count, _ := idx.Count(context.Background())
	if count != 3 {
		t.Errorf("index count = %d, want 3", count)
	}
}

func TestBuild_NoRecords(t *testing.T) {
	idx := openTestIndex(t)
	emb := NewEmbedder(keywordClient{}, "m")

	_, err := Build(context.Background(), &fakeSource{}, emb, idx)
	if !errors.Is(err, ErrNoRecords) {
		t.Fatalf("err = %v, want ErrNoRecords", err)
	}
	if err.Error() != "no records for indexing" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestEnsureIndex_LoadsExisting(t *testing.T) {
	idx := openTestIndex(t)
	emb := NewEmbedder(keywordClient{}, "m")
	ctx := context.Background()

	if err := idx.Rebuild(ctx, []Entry{{Position: 0, RecordID: "kept", Embedding: []float32{1, 0, 0}}}); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	src := &fakeSource{err: errors.New("should not be read")}

	n, err := EnsureIndex(ctx, src, emb, idx, false)
	if err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	if n != 1 {
		t.Errorf("n = %d, want 1", n)
	}
}

func TestEnsureIndex_BuildsWhenEmptyOrForced(t *testing.T) {
	idx := openTestIndex(t)
	emb := NewEmbedder(keywordClient{}, "m")
	ctx := context.Background()
	src := &fakeSource{texts: sampleTexts}

	n, err := EnsureIndex(ctx, src, emb, idx, false)
	if err != nil || n != 3 {
		t.Fatalf("EnsureIndex(empty) = %d, %v; want 3, nil", n, err)
	}

	src.texts = sampleTexts[:1]
	n, err = EnsureIndex(ctx, src, emb, idx, true)
	if err != nil || n != 1 {
		t.Fatalf("EnsureIndex(force) = %d, %v; want 1, nil", n, err)
	}
}

func TestSearcher_Search(t *testing.T) {
	idx := openTestIndex(t)
	emb := NewEmbedder(keywordClient{}, "m")
	ctx := context.Background()
	if _, err := Build(ctx, &fakeSource{texts: sampleTexts}, emb, idx); err != nil {
		t.Fatalf("Build: %v", err)
	}

	fetcher := &fakeFetcher{}
	s := NewSearcher(emb, idx, fetcher, 2)

	rows, err := s.Search(ctx, "cars with dents")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0]["record_id"] != "r2" {
		t.Errorf("top row = %v, want r2", rows[0]["record_id"])
	}
	if len(fetcher.gotIDs) != 2 || fetcher.gotIDs[0] != "r2" {
		t.Errorf("fetched ids = %v, want r2 first", fetcher.gotIDs)
	}
}

func TestSearcher_EmptyIndex(t *testing.T) {
	idx := openTestIndex(t)
	fetcher := &fakeFetcher{}
	s := NewSearcher(NewEmbedder(keywordClient{}, "m"), idx, fetcher, 5)

	rows, err := s.Search(context.Background(), "dent")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("got %d rows, want 0", len(rows))
	}
	if fetcher.gotIDs != nil {
		t.Error("fetcher should not be called for an empty result")
	}
}

func TestSearcher_EmbedError(t *testing.T) {
	failing := &mockClient{embedFn: func(_ context.Context, _ string, _ string) ([]float32, error) {
		return nil, errors.New("dial tcp: connection refused")
	}}
	s := NewSearcher(NewEmbedder(failing, "m"), openTestIndex(t), &fakeFetcher{}, 5)

	if _, err := s.Search(context.Background(), "dent"); err == nil {
		t.Fatal("expected error")
	}
}
