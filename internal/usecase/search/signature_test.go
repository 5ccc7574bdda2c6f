package search

import "testing"

func TestSignature_NormalizesCaseAndWhitespace(t *testing.T) {
	a := Signature("What is  a Vector Index?", 10, 0.5)
	b := Signature("what is a vector index?", 10, 0.5)
	if a != b {
		t.Error("expected case and whitespace variants to share a signature")
	}

	c := Signature("  what is a vector index?\n", 10, 0.5)
	if a != c {
		t.Error("expected surrounding whitespace to be ignored")
	}
}

func TestSignature_DistinguishesParameters(t *testing.T) {
	base := Signature("query", 10, 0.5)

	if Signature("other query", 10, 0.5) == base {
		t.Error("different query text must change the signature")
	}
	if Signature("query", 20, 0.5) == base {
		t.Error("different topK must change the signature")
	}
	if Signature("query", 10, 0.7) == base {
		t.Error("different minScore must change the signature")
	}
}

func TestSignature_Stable(t *testing.T) {
	if Signature("query", 10, 0.5) != Signature("query", 10, 0.5) {
		t.Error("signature must be deterministic")
	}
}
