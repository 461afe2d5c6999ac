package config

import (
	"crypto/subtle"
	_ "embed"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

var (
	//go:embed default/config.yaml
	defaultConfigData []byte
)

const (
	ConfigurationName = "config.yaml"
	LogsDirName       = "session_logs"
	PrivateKeyName    = "host_key"
	AppLogName        = "audit.log"
	HistoryName       = "history"
)

type Configuration struct {
	configFs afero.Fs
	dir      string

	Prompt       string            `json:"prompt" validate:"required"`
	HistoryLimit int               `json:"history_limit" validate:"gte=0"`
	LogLevel     string            `json:"log_level" validate:"omitempty,oneof=debug info warn error"`
	AuditLog     bool              `json:"audit_log"`
	DefaultPath  string            `json:"default_path" validate:"required"`
	Aliases      map[string]string `json:"aliases" validate:"dive,keys,required,endkeys,required"`

	SSH SSH `json:"ssh"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}

type SSH struct {
	Port            int    `json:"port" validate:"gte=0,lte=65535"`
	Banner          string `json:"banner"`
	RecordSessions  bool   `json:"record_sessions"`
	RecordingFormat string `json:"recording_format" validate:"omitempty,oneof=asciicast uml"`
	Users           []User `json:"users" validate:"unique=Username,dive"`
}

type User struct {
	Username  string   `json:"username" validate:"required"`
	Home      string   `json:"home"`
	Passwords []string `json:"passwords" validate:"required,unique"`
}

func (c *Configuration) fs() afero.Fs {
	return c.configFs
}

// Dir is the configuration directory, empty for the built-in defaults.
func (c *Configuration) Dir() string {
	return c.dir
}

// CreateSessionLog creates a terminal recording with the given name.
func (c *Configuration) CreateSessionLog(name string) (afero.File, error) {
	if c.fs() == nil {
		return nil, os.ErrNotExist
	}
	toCreate := filepath.Join(LogsDirName, name)
	return c.fs().Create(toCreate)
}

// PrivateKeyPem returns the bytes of the SSH host key.
func (c *Configuration) PrivateKeyPem() ([]byte, error) {
	if c.fs() == nil {
		return nil, os.ErrNotExist
	}
	return afero.ReadFile(c.fs(), PrivateKeyName)
}

// OpenAppLog opens the audit log in an append only state.
func (c *Configuration) OpenAppLog() (afero.File, error) {
	if c.fs() == nil {
		return nil, os.ErrNotExist
	}
	return c.fs().OpenFile(AppLogName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

// ReadAppLog opens the audit log for reading.
func (c *Configuration) ReadAppLog() (afero.File, error) {
	if c.fs() == nil {
		return nil, os.ErrNotExist
	}
	return c.fs().OpenFile(AppLogName, os.O_RDONLY, 0600)
}

// HistoryPath is the interactive history file, empty when there's no
// configuration directory.
func (c *Configuration) HistoryPath() string {
	if c.dir == "" {
		return ""
	}
	return filepath.Join(c.dir, HistoryName)
}

// GetPasswords returns allowable passwords for the given username.
func (c *Configuration) GetPasswords(username string) []string {
	var out []string
	for _, v := range c.SSH.Users {
		if v.Username == username {
			out = append(out, v.Passwords...)
		}
	}
	return out
}

// CheckPassword reports whether password is valid for username.
func (c *Configuration) CheckPassword(username, password string) bool {
	ok := false
	for _, p := range c.GetPasswords(username) {
		if subtle.ConstantTimeCompare([]byte(p), []byte(password)) == 1 {
			ok = true
		}
	}
	return ok
}

// User returns the configured user with the given name.
func (c *Configuration) User(username string) (User, bool) {
	for _, v := range c.SSH.Users {
		if v.Username == username {
			return v, true
		}
	}
	return User{}, false
}

// Default returns the built-in configuration, which has no directory.
func Default() *Configuration {
	return defaultConfig()
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}
