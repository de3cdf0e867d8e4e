package keyring

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/hkdf"

	"odinbots/internal/util/memzero"
)

const (
	rootKeyFile = "root.pem"
	pemType     = "ODINBOTS ROOT KEY"

	hkdfInfoRoot = "odinbots/root/v1"
)

var (
	// ErrNoRootKey is returned when the key file does not exist yet.
	ErrNoRootKey = errors.New("root key not found (run: odinbots wallet create)")
	// ErrRootKeyExists guards against silently clobbering an existing key,
	// which would orphan every derived bot's funds.
	ErrRootKeyExists = errors.New("root key already exists (use --force to regenerate)")
)

// Keyring holds the root Ed25519 keypair loaded from disk.
type Keyring struct {
	mu   sync.Mutex
	priv ed25519.PrivateKey
}

// Path returns the root key file location under dir.
func Path(dir string) string { return filepath.Join(dir, rootKeyFile) }

// Generate creates a fresh mnemonic, derives the root key from it, and
// writes the key file. Fails with ErrRootKeyExists unless force is set.
func Generate(dir string, force bool) (*Keyring, string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return nil, "", err
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, "", err
	}
	kr, err := FromMnemonic(dir, mnemonic, force)
	if err != nil {
		return nil, "", err
	}
	return kr, mnemonic, nil
}

// FromMnemonic derives the root key from an existing mnemonic and writes
// the key file. Used both for creation and for recovery on a new machine.
func FromMnemonic(dir, mnemonic string, force bool) (*Keyring, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("invalid mnemonic")
	}
	seed := bip39.NewSeed(mnemonic, "")
	defer memzero.Zero(seed)

	edSeed, err := hkdfExpand(seed, hkdfInfoRoot, ed25519.SeedSize)
	if err != nil {
		return nil, err
	}
	if err := writeKeyFile(Path(dir), edSeed, force); err != nil {
		memzero.Zero(edSeed)
		return nil, err
	}
	priv := ed25519.NewKeyFromSeed(edSeed)
	memzero.Zero(edSeed)
	return &Keyring{priv: priv}, nil
}

// Open loads the root key from dir.
func Open(dir string) (*Keyring, error) {
	raw, err := os.ReadFile(Path(dir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoRootKey
	}
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil || block.Type != pemType || len(block.Bytes) != ed25519.SeedSize {
		return nil, fmt.Errorf("malformed root key file %s", Path(dir))
	}
	priv := ed25519.NewKeyFromSeed(block.Bytes)
	memzero.Zero(block.Bytes)
	return &Keyring{priv: priv}, nil
}

// Exists reports whether a root key file is present under dir.
func Exists(dir string) bool {
	_, err := os.Stat(Path(dir))
	return err == nil
}

// PublicKey returns the root public key.
func (k *Keyring) PublicKey() ed25519.PublicKey {
	k.mu.Lock()
	defer k.mu.Unlock()
	pub := make([]byte, ed25519.PublicKeySize)
	copy(pub, k.priv[ed25519.SeedSize:])
	return pub
}

// Sign signs msg with the root key.
func (k *Keyring) Sign(msg []byte) []byte {
	k.mu.Lock()
	defer k.mu.Unlock()
	return ed25519.Sign(k.priv, msg)
}

// Verify verifies sig over msg against the root public key.
func (k *Keyring) Verify(msg, sig []byte) bool {
	return ed25519.Verify(k.PublicKey(), msg, sig)
}

// Close zeroes the in-memory private key. The keyring is unusable after.
func (k *Keyring) Close() {
	k.mu.Lock()
	defer k.mu.Unlock()
	memzero.Zero(k.priv)
	k.priv = nil
}

func writeKeyFile(path string, edSeed []byte, force bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	// 0600 from the start, no race window with looser perms.
	f, err := os.OpenFile(path, flags, 0o600)
	if errors.Is(err, os.ErrExist) {
		return ErrRootKeyExists
	}
	if err != nil {
		return err
	}
	blob := pem.EncodeToMemory(&pem.Block{Type: pemType, Bytes: edSeed})
	if _, err := f.Write(blob); err != nil {
		_ = f.Close()
		return err
	}
	memzero.Zero(blob)
	return f.Close()
}

func hkdfExpand(seed []byte, info string, outLen int) ([]byte, error) {
	r := hkdf.New(sha256.New, seed, nil, []byte(info))
	out := make([]byte, outLen)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}
