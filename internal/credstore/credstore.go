// Package credstore reads and edits the local AWS shared config and
// credentials files.
//
// Only the sections of one named profile are touched. Every write goes to a
// temporary file in the target directory which is then renamed into place,
// so other profiles survive a crash mid-write.
package credstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

const (
	keyRegion          = "region"
	keyOutput          = "output"
	keyAccessKeyID     = "aws_access_key_id"
	keySecretAccessKey = "aws_secret_access_key"
)

// Store locates the two shared files.
type Store struct {
	ConfigPath      string
	CredentialsPath string
}

// Status describes what the store holds for one profile.
type Status struct {
	Profile        string
	HasConfig      bool
	Region         string
	Output         string
	HasCredentials bool
	AccessKeyID    string
}

// New returns a store over explicit file paths.
func New(configPath, credentialsPath string) *Store {
	return &Store{ConfigPath: configPath, CredentialsPath: credentialsPath}
}

// NewDefault returns the store the AWS SDK would read: AWS_CONFIG_FILE and
// AWS_SHARED_CREDENTIALS_FILE when set, else ~/.aws/config and ~/.aws/credentials.
func NewDefault() (*Store, error) {
	cfg := os.Getenv("AWS_CONFIG_FILE")
	creds := os.Getenv("AWS_SHARED_CREDENTIALS_FILE")
	if cfg == "" || creds == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate home directory: %w", err)
		}
		if cfg == "" {
			cfg = filepath.Join(home, ".aws", "config")
		}
		if creds == "" {
			creds = filepath.Join(home, ".aws", "credentials")
		}
	}
	return New(cfg, creds), nil
}

// configSection is the config-file section for profile. The default
// profile is the only one written without the "profile " prefix.
func configSection(profile string) string {
	if profile == "default" {
		return profile
	}
	return "profile " + profile
}

// Status reports what is recorded for profile. Missing files are not an error.
func (s *Store) Status(profile string) (*Status, error) {
	st := &Status{Profile: profile}

	cfg, err := load(s.ConfigPath)
	if err != nil {
		return nil, err
	}
	if sec, err := cfg.GetSection(configSection(profile)); err == nil {
		st.HasConfig = true
		st.Region = sec.Key(keyRegion).String()
		st.Output = sec.Key(keyOutput).String()
	}

	creds, err := load(s.CredentialsPath)
	if err != nil {
		return nil, err
	}
	if sec, err := creds.GetSection(profile); err == nil {
		st.AccessKeyID = sec.Key(keyAccessKeyID).String()
		st.HasCredentials = st.AccessKeyID != "" && sec.Key(keySecretAccessKey).String() != ""
	}
	return st, nil
}

// Credentials returns the stored access key of profile.
func (s *Store) Credentials(profile string) (accessKeyID, secretAccessKey string, err error) {
	creds, err := load(s.CredentialsPath)
	if err != nil {
		return "", "", err
	}
	sec, err := creds.GetSection(profile)
	if err != nil {
		return "", "", fmt.Errorf("no credentials for profile %s in %s", profile, s.CredentialsPath)
	}
	accessKeyID = sec.Key(keyAccessKeyID).String()
	secretAccessKey = sec.Key(keySecretAccessKey).String()
	if accessKeyID == "" || secretAccessKey == "" {
		return "", "", fmt.Errorf("incomplete credentials for profile %s in %s", profile, s.CredentialsPath)
	}
	return accessKeyID, secretAccessKey, nil
}

// HasProfile reports whether profile has a config section or credentials.
func (s *Store) HasProfile(profile string) (bool, error) {
	st, err := s.Status(profile)
	if err != nil {
		return false, err
	}
	return st.HasConfig || st.HasCredentials, nil
}

// PutConfig writes region and output for profile. It reports false without
// writing when the section already exists.
func (s *Store) PutConfig(profile, region, output string) (bool, error) {
	cfg, err := load(s.ConfigPath)
	if err != nil {
		return false, err
	}
	name := configSection(profile)
	if _, err := cfg.GetSection(name); err == nil {
		return false, nil
	}
	sec, err := cfg.NewSection(name)
	if err != nil {
		return false, err
	}
	sec.Key(keyRegion).SetValue(region)
	sec.Key(keyOutput).SetValue(output)
	return true, save(cfg, s.ConfigPath)
}

// PutCredentials stores an access key for profile, replacing any previous one.
func (s *Store) PutCredentials(profile, accessKeyID, secretAccessKey string) error {
	if accessKeyID == "" || secretAccessKey == "" {
		return errors.New("access key id and secret are required")
	}
	creds, err := load(s.CredentialsPath)
	if err != nil {
		return err
	}
	sec := creds.Section(profile)
	sec.Key(keyAccessKeyID).SetValue(accessKeyID)
	sec.Key(keySecretAccessKey).SetValue(secretAccessKey)
	return save(creds, s.CredentialsPath)
}

// DeleteProfile removes the config and credentials sections of profile.
// The two booleans report which sections existed.
func (s *Store) DeleteProfile(profile string) (config, credentials bool, err error) {
	cfg, err := load(s.ConfigPath)
	if err != nil {
		return false, false, err
	}
	if _, gerr := cfg.GetSection(configSection(profile)); gerr == nil {
		cfg.DeleteSection(configSection(profile))
		if err := save(cfg, s.ConfigPath); err != nil {
			return false, false, err
		}
		config = true
	}

	creds, err := load(s.CredentialsPath)
	if err != nil {
		return config, false, err
	}
	if _, gerr := creds.GetSection(profile); gerr == nil {
		creds.DeleteSection(profile)
		if err := save(creds, s.CredentialsPath); err != nil {
			return config, false, err
		}
		credentials = true
	}
	return config, credentials, nil
}

func load(path string) (*ini.File, error) {
	f, err := ini.LoadSources(ini.LoadOptions{Loose: true, AllowNestedValues: true}, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return f, nil
}

func save(f *ini.File, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := f.WriteTo(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
