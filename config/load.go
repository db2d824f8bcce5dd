package config

import (
	"fmt"
	"strings"

	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/microsoft/PackageUploader-sub002/errkind"
	"github.com/microsoft/PackageUploader-sub002/network"
	"github.com/spf13/viper"
)

// Defaults applied to keys missing from the file.
const (
	DefaultMarketGroupName     = "default"
	DefaultMinutesToWait       = 60
	DefaultBlockSize           = "4MiB"
	DefaultHttpTimeoutMs       = 100_000
	DefaultHttpUploadTimeoutMs = 300_000
	DefaultPollIntervalSeconds = 30
)

// Config is implemented by every operation configuration.
type Config interface {
	Validate() error
	BaseConfig() *Base
}

type defaulter interface {
	applyDefaults()
}

// BaseConfig returns the shared part of an operation configuration.
func (b *Base) BaseConfig() *Base { return b }

// Secret is a string that never prints its value.
type Secret string

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "*****"
}

// Loader reads operation configuration files. Secrets come from the
// environment, never from the file.
type Loader struct {
	envRepo env.Repository
	logger  log.Logger
}

// NewLoader ...
func NewLoader(envRepo env.Repository, logger log.Logger) *Loader {
	return &Loader{envRepo: envRepo, logger: logger}
}

// OperationName returns the operationName field of the file at path.
func (l *Loader) OperationName(path string) (string, error) {
	v, err := l.read(path)
	if err != nil {
		return "", err
	}
	name := v.GetString("operationName")
	if name == "" {
		return "", errkind.ConfigError("%s has no operationName", path)
	}
	return name, nil
}

// Load reads the file at path into cfg and validates it.
func (l *Loader) Load(path string, cfg Config) error {
	v, err := l.read(path)
	if err != nil {
		return err
	}
	if err := v.Unmarshal(cfg); err != nil {
		return errkind.ConfigError("parse %s: %s", path, err)
	}
	if d, ok := cfg.(defaulter); ok {
		d.applyDefaults()
	}

	base := cfg.BaseConfig()
	secret := Secret(strings.TrimSpace(l.envRepo.Get(ClientSecretEnvKey)))
	base.AadAuthInfo.ClientSecret = string(secret)
	base.S3Credentials = S3Credentials{
		AccessKeyID:     l.envRepo.Get(S3AccessKeyIDEnvKey),
		SecretAccessKey: l.envRepo.Get(S3SecretAccessKeyEnvKey),
	}

	l.logger.Debugf("Loaded %s operation from %s (client: %s, secret: %s)",
		base.OperationName, path, base.AadAuthInfo.ClientID, secret)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration %s: %w", path, err)
	}
	return nil
}

func (l *Loader) read(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	v.SetDefault("marketGroupName", DefaultMarketGroupName)
	v.SetDefault("minutesToWaitForProcessing", DefaultMinutesToWait)
	v.SetDefault("minutesToWaitForPublishing", DefaultMinutesToWait)
	v.SetDefault("settings.maxParallelism", 24)
	v.SetDefault("settings.blockSize", DefaultBlockSize)
	v.SetDefault("settings.httpTimeoutMs", DefaultHttpTimeoutMs)
	v.SetDefault("settings.httpUploadTimeoutMs", DefaultHttpUploadTimeoutMs)
	v.SetDefault("settings.defaultConnectionLimit", network.DefaultConnectionLimit)
	v.SetDefault("settings.retryCount", network.DefaultRetryCount)
	v.SetDefault("settings.defaultRetryDelayMs", network.DefaultRetryDelay.Milliseconds())
	v.SetDefault("settings.pollIntervalSeconds", DefaultPollIntervalSeconds)

	if err := v.ReadInConfig(); err != nil {
		return nil, errkind.ConfigError("read %s: %s", path, err)
	}
	return v, nil
}

// applyDefaults fills the nested publish section, which has no file defaults
// since its presence enables publishing.
func (c *UploadPackageConfig) applyDefaults() {
	if c.PublishAfterUpload != nil && c.PublishAfterUpload.MinutesToWaitForPublishing == 0 {
		c.PublishAfterUpload.MinutesToWaitForPublishing = DefaultMinutesToWait
	}
}
