package reload

import "testing"

func TestFragment_RoundTrip(t *testing.T) {
	url := EncodeFragment("http://localhost:7800/preview/", 42)

	version, cleaned, found := ExtractFragment(url)
	if !found {
		t.Fatal("marker not found after encoding")
	}
	if version != 42 {
		t.Errorf("version = %d, want 42", version)
	}
	if cleaned != "http://localhost:7800/preview/" {
		t.Errorf("cleaned = %q, marker not fully stripped", cleaned)
	}
}

func TestExtractFragment_PreservesOtherFragmentParts(t *testing.T) {
	version, cleaned, found := ExtractFragment("http://h/p#section&__preview_version=7")
	if !found || version != 7 {
		t.Fatalf("found=%v version=%d, want found 7", found, version)
	}
	if cleaned != "http://h/p#section" {
		t.Errorf("cleaned = %q, want the app fragment kept", cleaned)
	}
}

func TestExtractFragment_AbsentMarker(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"no fragment", "http://h/p"},
		{"unrelated fragment", "http://h/p#anchor"},
		{"malformed value", "http://h/p#__preview_version=abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, cleaned, found := ExtractFragment(tt.url)
			if found {
				t.Errorf("found = true for %q", tt.url)
			}
			if version != -1 {
				t.Errorf("version = %d, want -1", version)
			}
			if cleaned != tt.url {
				t.Errorf("cleaned = %q, want input unchanged", cleaned)
			}
		})
	}
}

func TestEncodeFragment_AppendsToExistingFragment(t *testing.T) {
	got := EncodeFragment("http://h/p#anchor", 3)
	if got != "http://h/p#anchor&__preview_version=3" {
		t.Errorf("EncodeFragment() = %q", got)
	}
}
