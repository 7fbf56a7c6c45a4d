package engine

// =============================================================================
// NOTE CODEC - Field-level encryption boundary
// =============================================================================

// Codec encrypts free-text note fields before they are persisted and
// decrypts them on the way back out. The core treats the encrypted form as
// an opaque string and never inspects it.
type Codec interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Plaintext is the identity codec, for tests and local development.
type Plaintext struct{}

func (Plaintext) Encrypt(s string) (string, error) { return s, nil }
func (Plaintext) Decrypt(s string) (string, error) { return s, nil }
