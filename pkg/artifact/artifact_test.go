package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testArtifact() Artifact {
	return Artifact{
		Title:       "Checkout flow",
		Description: "As a shopper I can pay for my cart",
		Acceptance:  []string{"payment is captured", "receipt is emailed"},
		DependsOn:   []string{"cart-service"},
		Metadata:    map[string]string{"epic": "payments"},
	}
}

func TestApplyRevisionCopyOnWrite(t *testing.T) {
	original := testArtifact()

	revised := original.ApplyRevision(Revision{
		Description: "As a shopper I can pay with card or wallet",
		Acceptance:  []string{"payment is captured"},
	})

	// Changed fields land on the copy only.
	assert.Equal(t, "As a shopper I can pay for my cart", original.Description)
	assert.Equal(t, "As a shopper I can pay with card or wallet", revised.Description)
	assert.Len(t, original.Acceptance, 2)
	assert.Len(t, revised.Acceptance, 1)

	// Empty revision fields keep the current values.
	assert.Equal(t, original.Title, revised.Title)
	assert.Equal(t, original.DependsOn, revised.DependsOn)
}

func TestApplyRevisionSharesNoStorage(t *testing.T) {
	original := testArtifact()
	revised := original.ApplyRevision(Revision{Title: "Renamed"})

	revised.Acceptance[0] = "overwritten"
	revised.Metadata["epic"] = "overwritten"

	assert.Equal(t, "payment is captured", original.Acceptance[0])
	assert.Equal(t, "payments", original.Metadata["epic"])
}

func TestFingerprintStability(t *testing.T) {
	a := testArtifact()
	b := testArtifact()
	require.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.Description = "changed"
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprintMetadataOrderIndependent(t *testing.T) {
	a := testArtifact()
	a.Metadata = map[string]string{"x": "1", "y": "2", "z": "3"}
	b := testArtifact()
	b.Metadata = map[string]string{"z": "3", "y": "2", "x": "1"}
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, Artifact{}.IsEmpty())
	assert.False(t, Artifact{Title: "x"}.IsEmpty())
	assert.False(t, Artifact{Description: "x"}.IsEmpty())
}

func TestJSONRoundTrip(t *testing.T) {
	a := testArtifact()
	data, err := a.ToJSON()
	require.NoError(t, err)

	back, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint(), back.Fingerprint())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "story.yaml")
	content := `title: Checkout flow
description: As a shopper I can pay for my cart
acceptance:
  - payment is captured
depends_on:
  - cart-service
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	a, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Checkout flow", a.Title)
	assert.Equal(t, []string{"payment is captured"}, a.Acceptance)
	assert.Equal(t, []string{"cart-service"}, a.DependsOn)
}

func TestLoadFileRejectsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("metadata: {}\n"), 0644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestJoinEvidence(t *testing.T) {
	assert.Equal(t, "", JoinEvidence(nil))

	block := JoinEvidence([]EvidenceItem{
		{Source: "wiki", Content: "cart holds up to 50 items"},
		{Source: "ticket-42", Content: "wallet payments planned for Q4"},
	})
	assert.Contains(t, block, "wiki")
	assert.Contains(t, block, "cart holds up to 50 items")
	assert.Contains(t, block, "ticket-42")
}
