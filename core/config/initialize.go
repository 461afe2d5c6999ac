package config

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"golang.org/x/crypto/ssh"
)

// Initialize creates a configuration directory at path. Existing files are
// left alone.
func Initialize(fsys afero.Fs, path string, logger *log.Logger) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	logger.Info("creating configuration directory", "path", path)
	if err := fsys.MkdirAll(filepath.Join(path, LogsDirName), 0700); err != nil {
		return err
	}

	configPath := filepath.Join(path, ConfigurationName)
	switch _, err := fsys.Stat(configPath); {
	case os.IsNotExist(err):
		logger.Info("writing default configuration", "path", configPath)
		if err := afero.WriteFile(fsys, configPath, defaultConfigData, 0600); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		logger.Info("configuration already exists", "path", configPath)
	}

	keyPath := filepath.Join(path, PrivateKeyName)
	switch _, err := fsys.Stat(keyPath); {
	case os.IsNotExist(err):
		logger.Info("generating host key", "path", keyPath)
		keyPem, err := generateHostKey()
		if err != nil {
			return err
		}
		if err := afero.WriteFile(fsys, keyPath, keyPem, 0600); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		logger.Info("host key already exists", "path", keyPath)
	}

	return nil
}

func generateHostKey() ([]byte, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	block, err := ssh.MarshalPrivateKey(priv, "forksh host key")
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(block), nil
}
