package agent

import "testing"

func TestLoadTemplatesFromEmptyDiskDirReturnsErrTemplatesUnavailable(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	_, err := LoadTemplates(t.TempDir())
	if err != ErrTemplatesUnavailable {
		t.Fatalf("expected ErrTemplatesUnavailable for an empty override dir, got %v", err)
	}
}

func TestLoadTemplatesEmbeddedBundleHasPersonas(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	ts, err := LoadTemplates("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.Get("skeptic", "persona") == "" {
		t.Fatal("expected the embedded bundle to carry the skeptic persona template")
	}
}
