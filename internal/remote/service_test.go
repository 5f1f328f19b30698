package remote

import "testing"

func TestAuthHeader(t *testing.T) {
	tests := []struct {
		svc       *Service
		token     string
		wantName  string
		wantValue string
	}{
		{GitHub, "abc123", "Authorization", "token abc123"},
		{GitLab, "abc123", "PRIVATE-TOKEN", "abc123"},
	}
	for _, tt := range tests {
		name, value := tt.svc.AuthHeader(tt.token)
		if name != tt.wantName || value != tt.wantValue {
			t.Errorf("%s AuthHeader = (%q, %q), want (%q, %q)",
				tt.svc.ID, name, value, tt.wantName, tt.wantValue)
		}
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()

	s, err := r.Lookup("github")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID != "github" {
		t.Fatalf("expected github, got %q", s.ID)
	}

	// Lookup is case-insensitive.
	if _, err := r.Lookup("GitLab"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := r.Lookup("bitbucket"); err == nil {
		t.Fatal("expected error for unknown service")
	}
}

func TestRegistrySetBaseURL(t *testing.T) {
	r := NewRegistry()

	if err := r.SetBaseURL("gitlab", "https://git.example.com/api/v4/"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s, _ := r.Lookup("gitlab")
	if s.BaseURL != "https://git.example.com/api/v4" {
		t.Fatalf("expected trimmed base URL, got %q", s.BaseURL)
	}

	// Overriding one registry must not touch another.
	other := NewRegistry()
	s2, _ := other.Lookup("gitlab")
	if s2.BaseURL != "https://gitlab.com/api/v4" {
		t.Fatalf("override leaked across registries: %q", s2.BaseURL)
	}

	if err := r.SetBaseURL("bitbucket", "https://x"); err == nil {
		t.Fatal("expected error for unknown service")
	}
}

func TestRegistryDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	r := NewRegistry()
	r.Register(&Service{ID: "github"})
}
