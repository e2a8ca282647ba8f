package utils

import "testing"

func TestGenerateManagementTokenUniqueness(t *testing.T) {
	const samples = 10000

	seen := make(map[string]struct{}, samples)
	for i := 0; i < samples; i++ {
		token, err := GenerateManagementToken()
		if err != nil {
			t.Fatalf("token generation failed: %v", err)
		}
		if token == "" {
			t.Fatal("empty token")
		}
		if _, dup := seen[token]; dup {
			t.Fatalf("duplicate token after %d samples: %s", i, token)
		}
		seen[token] = struct{}{}
	}
}

func TestGenerateManagementTokenLength(t *testing.T) {
	token, err := GenerateManagementToken()
	if err != nil {
		t.Fatalf("token generation failed: %v", err)
	}
	if len(token) != managementTokenBytes*2 {
		t.Errorf("expected %d hex chars, got %d", managementTokenBytes*2, len(token))
	}
}
