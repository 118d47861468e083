// Package keypair manages the single EC2 key pair of an app and its local
// private key file.
package keypair

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	awsplatform "github.com/imamik/quickhost/internal/platform/aws"
	"github.com/imamik/quickhost/internal/provisioning"
	"github.com/imamik/quickhost/internal/util/keyfile"
	"github.com/imamik/quickhost/internal/util/naming"
	"github.com/imamik/quickhost/internal/util/tags"
)

const phase = "keypair"

// ErrPasswordNotReady is returned while a Windows instance has not yet
// published its encrypted administrator password.
var ErrPasswordNotReady = errors.New("password is not available yet, try again later")

// KeyPair is the observed state of an app key pair.
type KeyPair struct {
	KeyID       string
	KeyName     string
	Fingerprint string

	LocalFile       string
	LocalFileExists bool
	// LocalMatches is true when the local private key is the one AWS holds.
	LocalMatches bool
	// SSHFingerprint is the OpenSSH SHA256 fingerprint of the local key.
	SSHFingerprint string
}

// Exists reports whether the key pair exists remotely.
func (k *KeyPair) Exists() bool {
	return k != nil && k.KeyID != ""
}

// Manager owns the key pair of one app.
type Manager struct {
	ec2      awsplatform.EC2API
	observer provisioning.Observer
	app      string
}

// NewManager returns the key pair manager for app.
func NewManager(client awsplatform.EC2API, observer provisioning.Observer, app string) *Manager {
	return &Manager{ec2: client, observer: observer, app: app}
}

// Name is the EC2 key pair name.
func (m *Manager) Name() string {
	return naming.KeyPair(m.app)
}

func (m *Manager) lookup(ctx context.Context) (*ec2types.KeyPairInfo, bool, error) {
	out, err := m.ec2.DescribeKeyPairs(ctx, &ec2.DescribeKeyPairsInput{KeyNames: []string{m.Name()}})
	if awsplatform.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, provisioning.Classify("describe key pair", err)
	}
	if len(out.KeyPairs) == 0 {
		return nil, false, nil
	}
	return &out.KeyPairs[0], true, nil
}

// Create creates the key pair and stores its private key at targetFile
// (default <app>.pem). Private material is only available at creation, so
// an existing key pair is reported and left alone. It reports false when
// the key already existed; overwriting a stale local file only warns.
func (m *Manager) Create(ctx context.Context, targetFile string) (bool, error) {
	path := keyfile.Path(m.app, targetFile)

	existing, found, err := m.lookup(ctx)
	if err != nil {
		return false, err
	}
	if found {
		provisioning.LogResourceExists(m.observer, phase, "key pair", m.Name(), aws.ToString(existing.KeyPairId))
		provisioning.LogWarning(m.observer, phase, "key pair %s already exists, its private key cannot be retrieved again", m.Name())
		return false, nil
	}

	provisioning.LogResourceCreating(m.observer, phase, "key pair", m.Name())
	out, err := m.ec2.CreateKeyPair(ctx, &ec2.CreateKeyPairInput{
		KeyName:           aws.String(m.Name()),
		KeyType:           ec2types.KeyTypeRsa,
		KeyFormat:         ec2types.KeyFormatPem,
		TagSpecifications: tags.ForApp(m.app).Specs(ec2types.ResourceTypeKeyPair),
	})
	if awsplatform.IsAlreadyExists(err) {
		provisioning.LogWarning(m.observer, phase, "key pair %s was created concurrently, its private key cannot be retrieved", m.Name())
		return false, nil
	}
	if err != nil {
		return false, provisioning.Classify("create key pair", err)
	}
	provisioning.LogResourceCreated(m.observer, phase, "key pair", m.Name(), aws.ToString(out.KeyPairId))

	overwrote, err := keyfile.Write(path, []byte(aws.ToString(out.KeyMaterial)))
	if err != nil {
		return false, fmt.Errorf("key pair %s was created but its private key could not be saved: %w", m.Name(), err)
	}
	if overwrote {
		provisioning.LogWarning(m.observer, phase, "overwrote existing key file %s", path)
	}
	m.observer.Printf("[%s] private key saved to %s", phase, path)
	return true, nil
}

// Describe returns remote metadata and local key file state. KeyID is
// empty when the key pair does not exist.
func (m *Manager) Describe(ctx context.Context, targetFile string) (*KeyPair, error) {
	kp := &KeyPair{KeyName: m.Name(), LocalFile: keyfile.Path(m.app, targetFile)}

	info, found, err := m.lookup(ctx)
	if err != nil {
		return nil, err
	}
	if found {
		kp.KeyID = aws.ToString(info.KeyPairId)
		kp.Fingerprint = aws.ToString(info.KeyFingerprint)
	}

	kp.LocalFileExists = keyfile.Exists(kp.LocalFile)
	if !kp.LocalFileExists {
		return kp, nil
	}
	key, err := keyfile.Load(kp.LocalFile)
	if err != nil {
		provisioning.LogWarning(m.observer, phase, "cannot read %s: %v", kp.LocalFile, err)
		return kp, nil
	}
	if fp, err := keyfile.SSHFingerprint(key); err == nil {
		kp.SSHFingerprint = fp
	}
	if kp.Fingerprint != "" {
		if fp, err := keyfile.AWSFingerprint(key); err == nil {
			kp.LocalMatches = fp == kp.Fingerprint
		}
	}
	return kp, nil
}

// Destroy deletes the key pair and its local file. It reports false, and
// leaves the local file alone, when no key pair exists.
func (m *Manager) Destroy(ctx context.Context, targetFile string) (bool, error) {
	path := keyfile.Path(m.app, targetFile)

	_, found, err := m.lookup(ctx)
	if err != nil {
		return false, err
	}
	if !found {
		provisioning.LogResourceAbsent(m.observer, phase, "key pair", m.Name())
		return false, nil
	}

	provisioning.LogResourceDeleting(m.observer, phase, "key pair", m.Name())
	if _, err := m.ec2.DeleteKeyPair(ctx, &ec2.DeleteKeyPairInput{KeyName: aws.String(m.Name())}); err != nil {
		if awsplatform.IsNotFound(err) {
			return false, nil
		}
		return false, provisioning.Classify("delete key pair", err)
	}
	provisioning.LogResourceDeleted(m.observer, phase, "key pair", m.Name())

	removed, err := keyfile.Remove(path)
	if err != nil {
		provisioning.LogWarning(m.observer, phase, "%v", err)
	} else if !removed {
		provisioning.LogWarning(m.observer, phase, "key file %s not found, nothing to remove", path)
	}
	return true, nil
}

// WindowsPassword fetches and decrypts the administrator password of a
// Windows instance with the private key in keyFile.
func (m *Manager) WindowsPassword(ctx context.Context, instanceID, keyFile string) (string, error) {
	out, err := m.ec2.GetPasswordData(ctx, &ec2.GetPasswordDataInput{InstanceId: aws.String(instanceID)})
	if err != nil {
		return "", provisioning.Classify("get password data", err)
	}
	data := aws.ToString(out.PasswordData)
	if data == "" {
		return "", ErrPasswordNotReady
	}
	key, err := keyfile.Load(keyfile.Path(m.app, keyFile))
	if err != nil {
		return "", err
	}
	return keyfile.DecryptPassword(key, data)
}
