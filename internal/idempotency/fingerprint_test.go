package idempotency

import "testing"

func TestFingerprintDeterministic(t *testing.T) {
	a, err := Fingerprint("github", "repos", "POST", map[string]any{"name": "x"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Fingerprint("github", "repos", "POST", map[string]any{"name": "x"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Fatalf("same request produced different fingerprints: %s vs %s", a, b)
	}
}

func TestFingerprintKeyOrderIndependent(t *testing.T) {
	// Structs marshal fields in declaration order; the canonical form must
	// erase that so equivalent payloads collide.
	type ab struct {
		A string `json:"a"`
		B string `json:"b"`
	}
	type ba struct {
		B string `json:"b"`
		A string `json:"a"`
	}

	fp1, err := Fingerprint("github", "repos", "POST", ab{A: "1", B: "2"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fp2, err := Fingerprint("github", "repos", "POST", ba{B: "2", A: "1"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fp1 != fp2 {
		t.Fatal("field order changed the fingerprint")
	}
}

func TestFingerprintNestedKeyOrder(t *testing.T) {
	// Maps already marshal sorted, so these two are a sanity check that
	// nesting survives canonicalization.
	fp1, _ := Fingerprint("github", "repos", "POST",
		map[string]any{"outer": map[string]any{"x": 1, "y": 2}}, nil)
	fp2, _ := Fingerprint("github", "repos", "POST",
		map[string]any{"outer": map[string]any{"y": 2, "x": 1}}, nil)
	if fp1 != fp2 {
		t.Fatal("nested key order changed the fingerprint")
	}
}

func TestFingerprintDistinguishesRequests(t *testing.T) {
	base, _ := Fingerprint("github", "repos", "POST", map[string]any{"name": "x"}, nil)

	variants := []struct {
		name string
		fp   func() (string, error)
	}{
		{"service", func() (string, error) {
			return Fingerprint("gitlab", "repos", "POST", map[string]any{"name": "x"}, nil)
		}},
		{"endpoint", func() (string, error) {
			return Fingerprint("github", "projects", "POST", map[string]any{"name": "x"}, nil)
		}},
		{"method", func() (string, error) {
			return Fingerprint("github", "repos", "PUT", map[string]any{"name": "x"}, nil)
		}},
		{"body", func() (string, error) {
			return Fingerprint("github", "repos", "POST", map[string]any{"name": "y"}, nil)
		}},
		{"query", func() (string, error) {
			return Fingerprint("github", "repos", "POST", map[string]any{"name": "x"},
				map[string]string{"page": "2"})
		}},
	}
	for _, v := range variants {
		fp, err := v.fp()
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", v.name, err)
		}
		if fp == base {
			t.Errorf("changing %s did not change the fingerprint", v.name)
		}
	}
}

func TestFingerprintMethodCaseInsensitive(t *testing.T) {
	fp1, _ := Fingerprint("github", "repos", "post", nil, nil)
	fp2, _ := Fingerprint("github", "repos", "POST", nil, nil)
	if fp1 != fp2 {
		t.Fatal("method case changed the fingerprint")
	}
}

func TestFingerprintUnmarshalableBody(t *testing.T) {
	if _, err := Fingerprint("github", "repos", "POST", func() {}, nil); err == nil {
		t.Fatal("expected error for unmarshalable body")
	}
}
