package normalize

import "testing"

func TestEmbedder_Encode_IsDeterministic(t *testing.T) {
	e := NewEmbedder(64)
	a := e.Encode("bitcoin to 100k", "crypto price target")
	b := e.Encode("bitcoin to 100k", "crypto price target")

	if len(a) != 64 {
		t.Fatalf("expected fixed dimension 64, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expected identical encodings for identical input, differ at index %d: %f vs %f", i, a[i], b[i])
		}
	}
}

func TestEmbedder_Encode_DifferentTextDiffers(t *testing.T) {
	e := NewEmbedder(64)
	a := e.Encode("bitcoin to 100k", "")
	b := e.Encode("ethereum merge upgrade", "")

	if CosineSimilarity(a, b) >= 0.999 {
		t.Error("expected materially different text to produce materially different vectors")
	}
}

func TestCosineSimilarity_IdenticalVectorIsOne(t *testing.T) {
	e := NewEmbedder(32)
	v := e.Encode("will bitcoin hit 100k", "crypto")
	if got := CosineSimilarity(v, v); got < 0.999 {
		t.Errorf("expected cosine similarity ~1 for a vector with itself, got %f", got)
	}
}

func TestCosineSimilarity_MismatchedLengthIsZero(t *testing.T) {
	if got := CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}); got != 0 {
		t.Errorf("expected 0 for mismatched-length vectors, got %f", got)
	}
}
