package benchmark

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/LangChat/ai-tutorials/internal/embedding"
	"github.com/LangChat/ai-tutorials/internal/indexer"
	"github.com/LangChat/ai-tutorials/internal/models"
	"github.com/LangChat/ai-tutorials/internal/search"
	"github.com/LangChat/ai-tutorials/internal/vecmath"
	"github.com/LangChat/ai-tutorials/internal/vector"
)

const benchDims = 384

func randomVectors(n, dims int) [][]float32 {
	r := rand.New(rand.NewSource(1))
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dims)
		for j := range v {
			v[j] = r.Float32()*2 - 1
		}
		out[i] = v
	}
	return out
}

func BenchmarkCosineSimilarity(b *testing.B) {
	vecs := randomVectors(2, benchDims)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = vecmath.CosineSimilarity(vecs[0], vecs[1])
	}
}

func BenchmarkFindTopKSimilar(b *testing.B) {
	for _, n := range []int{100, 1000} {
		b.Run(fmt.Sprintf("candidates=%d", n), func(b *testing.B) {
			vecs := randomVectors(n+1, benchDims)
			query, candidates := vecs[0], vecs[1:]
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = vecmath.FindTopKSimilar(query, candidates, 10)
			}
		})
	}
}

func BenchmarkFuse(b *testing.B) {
	kw := make(map[string]float64)
	sem := make(map[string]float64)
	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("seg-%d", i)
		kw[id] = float64(i) / 100
		sem[id] = float64(100-i) / 100
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = search.Fuse(kw, sem, 0.3, 0.7)
	}
}

func BenchmarkMemoryStoreSearch(b *testing.B) {
	ctx := context.Background()
	store := vector.NewMemoryStore(benchDims)
	vecs := randomVectors(1001, benchDims)
	segs := make([]*models.TextSegment, 1000)
	for i := range segs {
		segs[i] = &models.TextSegment{ID: fmt.Sprintf("seg-%d", i), Text: "segment"}
	}
	if _, err := store.AddAll(ctx, vecs[1:], segs); err != nil {
		b.Fatal(err)
	}
	req := &models.SearchRequest{QueryEmbedding: vecs[0], MaxResults: 10}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.Search(ctx, req)
	}
}

func BenchmarkMockEmbedder_Embed(b *testing.B) {
	e := embedding.NewMockEmbedder(benchDims)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, "benchmark query text for embedding")
	}
}

func BenchmarkParagraphSplitter(b *testing.B) {
	para := strings.Repeat("Goroutines are lightweight threads managed by the Go runtime. ", 8)
	text := strings.Repeat(para+"\n\n", 50)
	s := indexer.NewParagraphSplitter(300, 30)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.Split(text)
	}
}
