package config

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/docker/go-units"
	"github.com/microsoft/PackageUploader-sub002/errkind"
)

// ValidateBase checks the product selector and the credentials.
func ValidateBase(b Base) error {
	if (b.ProductID == "") == (b.BigID == "") {
		return errkind.ConfigError("exactly one of productId and bigId must be set")
	}
	if b.AadAuthInfo.TenantID == "" || b.AadAuthInfo.ClientID == "" {
		return errkind.ConfigError("aadAuthInfo.tenantId and aadAuthInfo.clientId are required")
	}
	if b.AadAuthInfo.ClientSecret == "" {
		return errkind.ConfigError("client secret is not set, export %s", ClientSecretEnvKey)
	}
	return ValidateSettings(b.Settings)
}

// ValidateSettings checks the tuning values.
func ValidateSettings(s Settings) error {
	if s.MaxParallelism < 0 || s.RetryCount < 0 || s.DefaultConnectionLimit < 0 {
		return errkind.ConfigError("settings must not be negative")
	}
	if s.HttpTimeoutMs < 0 || s.HttpUploadTimeoutMs < 0 || s.DefaultRetryDelayMs < 0 || s.RequestsPerSecond < 0 {
		return errkind.ConfigError("settings must not be negative")
	}
	if s.BlockSize != "" {
		size, err := units.RAMInBytes(s.BlockSize)
		if err != nil || size <= 0 {
			return errkind.ConfigError("invalid blockSize %q", s.BlockSize)
		}
	}
	return nil
}

// ValidateBranch requires exactly one of branchFriendlyName and flightName.
func ValidateBranch(b Branch) error {
	hasBranch := strings.TrimSpace(b.BranchFriendlyName) != ""
	hasFlight := strings.TrimSpace(b.FlightName) != ""
	switch {
	case hasBranch && hasFlight:
		return errkind.ConfigError("only one of branchFriendlyName (%q) and flightName (%q) can be set", b.BranchFriendlyName, b.FlightName)
	case !hasBranch && !hasFlight:
		return errkind.ConfigError("one of branchFriendlyName and flightName must be set")
	}
	return nil
}

// ValidateUpload checks the package file settings.
func ValidateUpload(u Upload) error {
	if strings.TrimSpace(u.PackageFilePath) == "" {
		return errkind.ConfigError("packageFilePath is required")
	}
	if u.MinutesToWaitForProcessing <= 0 {
		return errkind.ConfigError("minutesToWaitForProcessing must be positive")
	}
	return nil
}

// ValidatePublish checks the publish target. A branch is published to a
// sandbox, a flight to itself; the retail sandbox is never allowed.
func ValidatePublish(p Publish, b Branch) error {
	if strings.EqualFold(strings.TrimSpace(p.DestinationSandboxName), RetailSandbox) {
		return errkind.ConfigError("publishing to the %s sandbox is not allowed", RetailSandbox)
	}
	if b.FlightName == "" && strings.TrimSpace(p.DestinationSandboxName) == "" {
		return errkind.ConfigError("destinationSandboxName is required to publish a branch")
	}
	if p.MinutesToWaitForPublishing <= 0 {
		return errkind.ConfigError("minutesToWaitForPublishing must be positive")
	}
	return nil
}

// ValidateMarketGroup checks a market group name.
func ValidateMarketGroup(name string) error {
	if strings.TrimSpace(name) == "" {
		return errkind.ConfigError("marketGroupName is required")
	}
	return nil
}

// Validate runs the validations of every part in order.
func (c *UploadPackageConfig) Validate() error {
	if err := ValidateBase(c.Base); err != nil {
		return err
	}
	if err := ValidateBranch(c.Branch); err != nil {
		return err
	}
	if err := ValidateUpload(c.Upload); err != nil {
		return err
	}
	if err := ValidateMarketGroup(c.MarketGroupName); err != nil {
		return err
	}
	if c.PublishAfterUpload != nil {
		return ValidatePublish(*c.PublishAfterUpload, c.Branch)
	}
	return nil
}

// Validate runs the validations of every part in order.
func (c *GetProductConfig) Validate() error {
	return ValidateBase(c.Base)
}

// Validate runs the validations of every part in order.
func (c *PublishPackagesConfig) Validate() error {
	if err := ValidateBase(c.Base); err != nil {
		return err
	}
	if err := ValidateBranch(c.Branch); err != nil {
		return err
	}
	return ValidatePublish(c.Publish, c.Branch)
}

// Validate runs the validations of every part in order.
func (c *RemovePackagesConfig) Validate() error {
	if err := ValidateBase(c.Base); err != nil {
		return err
	}
	if err := ValidateBranch(c.Branch); err != nil {
		return err
	}
	if err := ValidateMarketGroup(c.MarketGroupName); err != nil {
		return err
	}
	if c.PackageFileName == "" || !doublestar.ValidatePattern(c.PackageFileName) {
		return errkind.ConfigError("packageFileName %q is not a valid pattern", c.PackageFileName)
	}
	return nil
}
