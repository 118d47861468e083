package keyfile

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1" // #nosec G505 -- AWS key pair fingerprints are SHA-1 digests
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

// Extension is appended to key file names that lack it.
const Extension = ".pem"

// KeyPair holds an RSA key pair in ready-to-use formats.
type KeyPair struct {
	// PrivateKey is the RSA private key in PEM-encoded PKCS#1 format.
	PrivateKey []byte
	// PublicKey is the public key in OpenSSH authorized_keys format.
	PublicKey []byte
}

// GenerateRSAKeyPair generates a new RSA key pair with the specified bit size.
func GenerateRSAKeyPair(bits int) (*KeyPair, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA private key: %w", err)
	}

	privateKeyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})

	publicRsaKey, err := ssh.NewPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH public key: %w", err)
	}

	return &KeyPair{
		PrivateKey: privateKeyPEM,
		PublicKey:  ssh.MarshalAuthorizedKey(publicRsaKey),
	}, nil
}

// Path returns the key file for app: target when given (with ".pem"
// appended if missing), otherwise "<app>.pem".
func Path(app, target string) string {
	if target == "" {
		return app + Extension
	}
	if !strings.HasSuffix(target, Extension) {
		return target + Extension
	}
	return target
}

// Write stores key material at path with mode 0600. It reports whether an
// existing file was overwritten.
func Write(path string, material []byte) (overwrote bool, err error) {
	if _, err := os.Stat(path); err == nil {
		overwrote = true
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return overwrote, fmt.Errorf("failed to create key directory: %w", err)
		}
	}
	if err := os.WriteFile(path, material, 0o600); err != nil {
		return overwrote, fmt.Errorf("failed to write key file: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, 0o600); err != nil {
		return overwrote, fmt.Errorf("failed to set key file permissions: %w", err)
	}
	return overwrote, nil
}

// Remove deletes the key file. It reports false when there was no file.
func Remove(path string) (bool, error) {
	err := os.Remove(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("failed to remove key file: %w", err)
	}
}

// Exists reports whether a key file is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Load reads an RSA private key from a PEM file (PKCS#1 or PKCS#8).
func Load(path string) (*rsa.PrivateKey, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	return Parse(data)
}

// Parse decodes an RSA private key from PEM data.
func Parse(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("unsupported private key type %T", key)
		}
		return rsaKey, nil
	default:
		return nil, fmt.Errorf("unsupported PEM block %q", block.Type)
	}
}

// AWSFingerprint computes the fingerprint AWS reports for key pairs it
// created: the SHA-1 digest of the PKCS#8 DER private key, colon separated.
func AWSFingerprint(key *rsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", fmt.Errorf("failed to encode private key: %w", err)
	}
	sum := sha1.Sum(der) // #nosec G401
	return colonHex(sum[:]), nil
}

// SSHFingerprint returns the OpenSSH SHA256 fingerprint of the public half.
func SSHFingerprint(key *rsa.PrivateKey) (string, error) {
	pub, err := ssh.NewPublicKey(&key.PublicKey)
	if err != nil {
		return "", fmt.Errorf("failed to derive SSH public key: %w", err)
	}
	return ssh.FingerprintSHA256(pub), nil
}

// DecryptPassword decrypts the base64 password blob returned by
// GetPasswordData for Windows instances.
func DecryptPassword(key *rsa.PrivateKey, encrypted string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encrypted))
	if err != nil {
		return "", fmt.Errorf("failed to decode password data: %w", err)
	}
	plaintext, err := rsa.DecryptPKCS1v15(rand.Reader, key, ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt password data: %w", err)
	}
	return string(plaintext), nil
}

// EncryptPassword is the inverse of DecryptPassword.
func EncryptPassword(pub *rsa.PublicKey, password string) (string, error) {
	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, pub, []byte(password))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt password: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func colonHex(b []byte) string {
	parts := make([]string, len(b))
	for i, c := range b {
		parts[i] = hex.EncodeToString([]byte{c})
	}
	return strings.Join(parts, ":")
}
