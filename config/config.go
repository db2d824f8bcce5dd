// Package config holds the operation configurations. Each operation
// composes the parts it needs and validates them in order, before any
// network call is made.
package config

import (
	"fmt"
	"time"

	"github.com/docker/go-units"
	"github.com/microsoft/PackageUploader-sub002/chunkuploader"
	"github.com/microsoft/PackageUploader-sub002/network"
)

// Operation names accepted in the operationName field.
const (
	OperationUploadPackage   = "UploadPackage"
	OperationGetProduct      = "GetProduct"
	OperationPublishPackages = "PublishPackages"
	OperationRemovePackages  = "RemovePackages"
)

// Environment variables holding secrets.
const (
	ClientSecretEnvKey      = "PACKAGE_UPLOADER_CLIENT_SECRET"
	S3AccessKeyIDEnvKey     = "PACKAGE_UPLOADER_S3_ACCESS_KEY_ID"
	S3SecretAccessKeyEnvKey = "PACKAGE_UPLOADER_S3_SECRET_ACCESS_KEY"
)

// RetailSandbox is the production sandbox, which can never be published to.
const RetailSandbox = "RETAIL"

// AadAuthInfo identifies the Azure AD application calling the Ingestion API.
type AadAuthInfo struct {
	TenantID     string `mapstructure:"tenantId"`
	ClientID     string `mapstructure:"clientId"`
	ClientSecret string `mapstructure:"-"`
}

// Settings tune the transport and the uploader.
type Settings struct {
	IngestionBaseURL       string  `mapstructure:"ingestionBaseUrl"`
	MaxParallelism         int     `mapstructure:"maxParallelism"`
	BlockSize              string  `mapstructure:"blockSize"`
	HttpTimeoutMs          int     `mapstructure:"httpTimeoutMs"`
	HttpUploadTimeoutMs    int     `mapstructure:"httpUploadTimeoutMs"`
	DefaultConnectionLimit int     `mapstructure:"defaultConnectionLimit"`
	RetryCount             int     `mapstructure:"retryCount"`
	DefaultRetryDelayMs    int     `mapstructure:"defaultRetryDelayMs"`
	RequestsPerSecond      float64 `mapstructure:"requestsPerSecond"`
	PollIntervalSeconds    int     `mapstructure:"pollIntervalSeconds"`
	S3Region               string  `mapstructure:"s3Region"`
	Verbose                bool    `mapstructure:"verbose"`
}

// S3Credentials are used for s3:// package locations. When empty the
// default AWS credential chain applies.
type S3Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// Base is shared by every operation.
type Base struct {
	OperationName string      `mapstructure:"operationName"`
	ProductID     string      `mapstructure:"productId"`
	BigID         string      `mapstructure:"bigId"`
	AadAuthInfo   AadAuthInfo `mapstructure:"aadAuthInfo"`
	Settings      Settings    `mapstructure:"settings"`

	S3Credentials S3Credentials `mapstructure:"-"`
}

// Branch selects a branch by friendly name or a flight by name.
type Branch struct {
	BranchFriendlyName string `mapstructure:"branchFriendlyName"`
	FlightName         string `mapstructure:"flightName"`
}

// Upload describes the package file to upload.
type Upload struct {
	PackageFilePath            string `mapstructure:"packageFilePath"`
	MarketGroupName            string `mapstructure:"marketGroupName"`
	MinutesToWaitForProcessing int    `mapstructure:"minutesToWaitForProcessing"`
	DeltaUpload                bool   `mapstructure:"deltaUpload"`
}

// Publish describes where to publish.
type Publish struct {
	DestinationSandboxName     string               `mapstructure:"destinationSandboxName"`
	MinutesToWaitForPublishing int                  `mapstructure:"minutesToWaitForPublishing"`
	PublishConfiguration       PublishConfiguration `mapstructure:"publishConfiguration"`
}

// PublishConfiguration is passed through to the submission.
type PublishConfiguration struct {
	ReleaseTimeInUTC   string `mapstructure:"releaseTimeInUtc"`
	IsManualPublish    bool   `mapstructure:"isManualPublish"`
	CertificationNotes string `mapstructure:"certificationNotes"`
}

// UploadPackageConfig uploads a package and optionally publishes the branch.
type UploadPackageConfig struct {
	Base   `mapstructure:",squash"`
	Branch `mapstructure:",squash"`
	Upload `mapstructure:",squash"`

	// PublishAfterUpload, when set, publishes after processing succeeds.
	PublishAfterUpload *Publish `mapstructure:"publish"`
}

// GetProductConfig reports a product and its branches and flights.
type GetProductConfig struct {
	Base `mapstructure:",squash"`
}

// PublishPackagesConfig publishes a branch or flight without uploading.
type PublishPackagesConfig struct {
	Base    `mapstructure:",squash"`
	Branch  `mapstructure:",squash"`
	Publish `mapstructure:",squash"`
}

// RemovePackagesConfig removes packages from a market group.
type RemovePackagesConfig struct {
	Base   `mapstructure:",squash"`
	Branch `mapstructure:",squash"`

	MarketGroupName string `mapstructure:"marketGroupName"`
	// PackageFileName is a glob matched against package file names.
	PackageFileName string `mapstructure:"packageFileName"`
}

// ProcessingTimeout returns the processing wait window.
func (u Upload) ProcessingTimeout() time.Duration {
	return time.Duration(u.MinutesToWaitForProcessing) * time.Minute
}

// PublishingTimeout returns the publish wait window.
func (p Publish) PublishingTimeout() time.Duration {
	return time.Duration(p.MinutesToWaitForPublishing) * time.Minute
}

// NetworkConfig returns the transport configuration. Upload transports use
// the upload timeout.
func (s Settings) NetworkConfig(upload bool) network.Config {
	timeout := s.HttpTimeoutMs
	if upload {
		timeout = s.HttpUploadTimeoutMs
	}
	return network.Config{
		RetryCount:        s.RetryCount,
		DefaultRetryDelay: time.Duration(s.DefaultRetryDelayMs) * time.Millisecond,
		Timeout:           time.Duration(timeout) * time.Millisecond,
		ConnectionLimit:   s.DefaultConnectionLimit,
		RequestsPerSecond: s.RequestsPerSecond,
		Verbose:           s.Verbose,
	}
}

// UploaderConfig returns the chunk uploader configuration.
func (s Settings) UploaderConfig() (chunkuploader.Config, error) {
	config := chunkuploader.DefaultConfig()
	if s.MaxParallelism > 0 {
		config.MaxParallelism = s.MaxParallelism
	}
	if s.BlockSize != "" {
		size, err := units.RAMInBytes(s.BlockSize)
		if err != nil {
			return chunkuploader.Config{}, fmt.Errorf("parse block size %q: %w", s.BlockSize, err)
		}
		config.BlockSize = size
	}
	return config, nil
}

// PollInterval returns the wait between state queries.
func (s Settings) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalSeconds) * time.Second
}
