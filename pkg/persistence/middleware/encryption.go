package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/aretw0/agentflow/pkg/ports"
)

// EnvelopeKey is the single state key of an encrypted run record.
const EnvelopeKey = "__encrypted__"

// ErrMissingEnvelope is returned when a stored run was not written encrypted.
var ErrMissingEnvelope = errors.New("run is missing encrypted data envelope")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

// payload is the sealed part of a run: everything derived from node output.
type payload struct {
	State domain.State  `json:"state"`
	Log   []domain.Step `json:"log"`
}

type encryptionMiddleware struct {
	next   ports.RunStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that seals run state and step
// log using AES-GCM. Run metadata (status, counters, error) stays readable.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, fmt.Errorf("active key must be 32 bytes (AES-256), got %d", len(config.ActiveKey))
	}
	for i, k := range config.FallbackKeys {
		if len(k) != 32 {
			return nil, fmt.Errorf("fallback key %d must be 32 bytes (AES-256), got %d", i, len(k))
		}
	}
	return func(next ports.RunStore) ports.RunStore {
		return &encryptionMiddleware{next: next, config: config}
	}, nil
}

func (m *encryptionMiddleware) SaveRun(ctx context.Context, run *domain.Run) error {
	plainText, err := json.Marshal(payload{State: run.State, Log: run.Log})
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	ciphertext, err := encrypt(plainText, m.config.ActiveKey, []byte(run.ID))
	if err != nil {
		return fmt.Errorf("failed to encrypt run: %w", err)
	}

	envelope := *run
	envelope.State = domain.State{EnvelopeKey: base64.StdEncoding.EncodeToString(ciphertext)}
	envelope.Log = nil

	return m.next.SaveRun(ctx, &envelope)
}

func (m *encryptionMiddleware) LoadRun(ctx context.Context, runID string) (*domain.Run, error) {
	envelope, err := m.next.LoadRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	// Fail secure: a plain record is never passed through.
	encoded, ok := envelope.State[EnvelopeKey].(string)
	if !ok {
		return nil, ErrMissingEnvelope
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plainText, err := decryptWithRotation(ciphertext, []byte(runID), m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt run %s: %w", runID, err)
	}

	var sealed payload
	if err := json.Unmarshal(plainText, &sealed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted run: %w", err)
	}

	envelope.State = sealed.State
	envelope.Log = sealed.Log
	return envelope, nil
}

func (m *encryptionMiddleware) DeleteRun(ctx context.Context, runID string) error {
	return m.next.DeleteRun(ctx, runID)
}

func (m *encryptionMiddleware) ListRuns(ctx context.Context) ([]string, error) {
	return m.next.ListRuns(ctx)
}

// Helpers

// The run ID is the additional data, so an envelope only opens under its own record.
func encrypt(plaintext []byte, key []byte, runID []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, runID), nil
}

func decryptWithRotation(ciphertext []byte, runID []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey, runID); err == nil {
		return plain, nil
	}

	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key, runID); err == nil {
			return plain, nil
		}
	}

	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte, runID []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, sealed, runID)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
