package manifest

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Proof is the pair of artifacts a verified run leaves on disk:
// proof.json (the sealed manifest, canonically serialized) and
// proof.hash (the hex SHA-256 digest of proof.json's bytes). A
// verifier reads proof.hash, recomputes SHA-256 over proof.json, and
// rejects the run if they disagree — this catches truncation or
// tampering of proof.json itself, independent of the HMAC inside it.
type Proof struct {
	ManifestJSON []byte
	Digest       string
}

// BuildProof canonically serializes m and computes its SHA-256 digest.
// m must already be sealed (IntegrityHMAC set) — BuildProof does not
// check phase completeness itself; that is Builder.Seal's job.
func BuildProof(m Manifest) (Proof, error) {
	if m.IntegrityHMAC == "" {
		return Proof{}, fmt.Errorf("%w: manifest is not sealed", ErrMalformed)
	}

	payload, err := CanonicalJSON(m)
	if err != nil {
		return Proof{}, err
	}

	sum := sha256.Sum256(payload)
	return Proof{
		ManifestJSON: payload,
		Digest:       fmt.Sprintf("%x", sum[:]),
	}, nil
}

// WriteToDir writes proof.json and proof.hash into dir, overwriting
// any existing files. Neither file is written if either write fails;
// a half-written proof pair must never be mistaken for a valid one.
func (p Proof) WriteToDir(dir string) error {
	jsonPath := filepath.Join(dir, "proof.json")
	hashPath := filepath.Join(dir, "proof.hash")

	if err := os.WriteFile(jsonPath, p.ManifestJSON, 0o644); err != nil {
		return fmt.Errorf("manifest: writing proof.json: %w", err)
	}
	if err := os.WriteFile(hashPath, []byte(p.Digest+"\n"), 0o644); err != nil {
		_ = os.Remove(jsonPath)
		return fmt.Errorf("manifest: writing proof.hash: %w", err)
	}
	return nil
}

// ReadProofFromDir loads proof.json/proof.hash from dir and confirms
// the digest matches the file bytes before unmarshaling. Returns
// ErrMalformed if either file is missing or the digest check fails.
func ReadProofFromDir(dir string) (Manifest, error) {
	jsonPath := filepath.Join(dir, "proof.json")
	hashPath := filepath.Join(dir, "proof.hash")

	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		return Manifest{}, fmt.Errorf("%w: reading proof.json: %v", ErrMalformed, err)
	}
	hashRaw, err := os.ReadFile(hashPath)
	if err != nil {
		return Manifest{}, fmt.Errorf("%w: reading proof.hash: %v", ErrMalformed, err)
	}

	sum := sha256.Sum256(raw)
	digest := fmt.Sprintf("%x", sum[:])
	recorded := trimNewline(string(hashRaw))
	if digest != recorded {
		return Manifest{}, fmt.Errorf("%w: proof.hash does not match proof.json contents", ErrMalformed)
	}

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return Manifest{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return m, nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
