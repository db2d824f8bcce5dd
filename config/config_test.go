package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/microsoft/PackageUploader-sub002/errkind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnvRepo struct {
	envVars map[string]string
}

func (repo fakeEnvRepo) Get(key string) string {
	return repo.envVars[key]
}

func (repo fakeEnvRepo) Set(key, value string) error {
	repo.envVars[key] = value
	return nil
}

func (repo fakeEnvRepo) Unset(key string) error {
	delete(repo.envVars, key)
	return nil
}

func (repo fakeEnvRepo) List() []string {
	var envs []string
	for k, v := range repo.envVars {
		envs = append(envs, fmt.Sprintf("%s=%s", k, v))
	}
	return envs
}

func validBase() Base {
	return Base{
		OperationName: OperationUploadPackage,
		ProductID:     "p1",
		AadAuthInfo:   AadAuthInfo{TenantID: "tenant", ClientID: "client", ClientSecret: "secret"},
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestValidateBranch(t *testing.T) {
	tests := []struct {
		name    string
		branch  Branch
		wantErr bool
	}{
		{name: "branch only", branch: Branch{BranchFriendlyName: "Main"}},
		{name: "flight only", branch: Branch{FlightName: "Beta"}},
		{name: "both", branch: Branch{BranchFriendlyName: "Dev", FlightName: "Beta"}, wantErr: true},
		{name: "neither", branch: Branch{}, wantErr: true},
		{name: "blank", branch: Branch{BranchFriendlyName: "  "}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBranch(tt.branch)
			if tt.wantErr {
				assert.True(t, errkind.Is(err, errkind.Config), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePublish(t *testing.T) {
	tests := []struct {
		name    string
		publish Publish
		branch  Branch
		wantErr bool
	}{
		{name: "sandbox", publish: Publish{DestinationSandboxName: "DEV.1", MinutesToWaitForPublishing: 5}, branch: Branch{BranchFriendlyName: "Main"}},
		{name: "flight needs no sandbox", publish: Publish{MinutesToWaitForPublishing: 5}, branch: Branch{FlightName: "Beta"}},
		{name: "branch needs sandbox", publish: Publish{MinutesToWaitForPublishing: 5}, branch: Branch{BranchFriendlyName: "Main"}, wantErr: true},
		{name: "retail", publish: Publish{DestinationSandboxName: "RETAIL", MinutesToWaitForPublishing: 5}, branch: Branch{BranchFriendlyName: "Main"}, wantErr: true},
		{name: "retail any case", publish: Publish{DestinationSandboxName: " retail ", MinutesToWaitForPublishing: 5}, branch: Branch{FlightName: "Beta"}, wantErr: true},
		{name: "no wait", publish: Publish{DestinationSandboxName: "DEV.1"}, branch: Branch{BranchFriendlyName: "Main"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePublish(tt.publish, tt.branch)
			if tt.wantErr {
				assert.True(t, errkind.Is(err, errkind.Config), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateBase(t *testing.T) {
	base := validBase()
	assert.NoError(t, ValidateBase(base))

	both := validBase()
	both.BigID = "9NBLGGH4R315"
	assert.True(t, errkind.Is(ValidateBase(both), errkind.Config))

	noSecret := validBase()
	noSecret.AadAuthInfo.ClientSecret = ""
	assert.ErrorContains(t, ValidateBase(noSecret), ClientSecretEnvKey)

	badBlockSize := validBase()
	badBlockSize.Settings.BlockSize = "lots"
	assert.True(t, errkind.Is(ValidateBase(badBlockSize), errkind.Config))
}

func TestUploadPackageConfig_Validate(t *testing.T) {
	valid := func() UploadPackageConfig {
		return UploadPackageConfig{
			Base:   validBase(),
			Branch: Branch{BranchFriendlyName: "Main"},
			Upload: Upload{PackageFilePath: "game.msixvc", MarketGroupName: "default", MinutesToWaitForProcessing: 60},
		}
	}

	cfg := valid()
	assert.NoError(t, cfg.Validate())

	cfg = valid()
	cfg.FlightName = "Beta"
	cfg.BranchFriendlyName = "Dev"
	assert.True(t, errkind.Is(cfg.Validate(), errkind.Config))

	cfg = valid()
	cfg.PublishAfterUpload = &Publish{DestinationSandboxName: "Retail", MinutesToWaitForPublishing: 10}
	assert.True(t, errkind.Is(cfg.Validate(), errkind.Config))

	cfg = valid()
	cfg.PackageFilePath = ""
	assert.True(t, errkind.Is(cfg.Validate(), errkind.Config))
}

func TestRemovePackagesConfig_Validate(t *testing.T) {
	cfg := RemovePackagesConfig{
		Base:            validBase(),
		Branch:          Branch{BranchFriendlyName: "Main"},
		MarketGroupName: "default",
		PackageFileName: "*.msixvc",
	}
	assert.NoError(t, cfg.Validate())

	cfg.PackageFileName = "[unterminated"
	assert.True(t, errkind.Is(cfg.Validate(), errkind.Config))
}

func TestLoader_Load(t *testing.T) {
	path := writeConfig(t, `{
  "operationName": "UploadPackage",
  "productId": "p1",
  "aadAuthInfo": {"tenantId": "tenant", "clientId": "client"},
  "branchFriendlyName": "Main",
  "packageFilePath": "game.msixvc",
  "settings": {"blockSize": "8MiB", "retryCount": 3},
  "publish": {"destinationSandboxName": "DEV.1"}
}`)
	loader := NewLoader(fakeEnvRepo{envVars: map[string]string{ClientSecretEnvKey: "s3cr3t"}}, log.NewLogger())

	name, err := loader.OperationName(path)
	require.NoError(t, err)
	assert.Equal(t, OperationUploadPackage, name)

	var cfg UploadPackageConfig
	require.NoError(t, loader.Load(path, &cfg))

	assert.Equal(t, "p1", cfg.ProductID)
	assert.Equal(t, "tenant", cfg.AadAuthInfo.TenantID)
	assert.Equal(t, "s3cr3t", cfg.AadAuthInfo.ClientSecret)
	assert.Equal(t, "Main", cfg.BranchFriendlyName)
	assert.Equal(t, DefaultMarketGroupName, cfg.MarketGroupName)
	assert.Equal(t, 60*time.Minute, cfg.ProcessingTimeout())
	require.NotNil(t, cfg.PublishAfterUpload)
	assert.Equal(t, "DEV.1", cfg.PublishAfterUpload.DestinationSandboxName)
	assert.Equal(t, DefaultMinutesToWait, cfg.PublishAfterUpload.MinutesToWaitForPublishing)

	assert.Equal(t, 3, cfg.Settings.RetryCount)
	assert.Equal(t, 24, cfg.Settings.MaxParallelism)
	assert.Equal(t, 30*time.Second, cfg.Settings.PollInterval())

	uploader, err := cfg.Settings.UploaderConfig()
	require.NoError(t, err)
	assert.Equal(t, int64(8*1024*1024), uploader.BlockSize)

	transport := cfg.Settings.NetworkConfig(true)
	assert.Equal(t, 3, transport.RetryCount)
	assert.Equal(t, 300*time.Second, transport.Timeout)
	assert.Equal(t, 30*time.Second, transport.DefaultRetryDelay)
}

func TestLoader_Load_WithoutPublish(t *testing.T) {
	path := writeConfig(t, `{
  "operationName": "UploadPackage",
  "bigId": "9NBLGGH4R315",
  "aadAuthInfo": {"tenantId": "tenant", "clientId": "client"},
  "flightName": "Beta",
  "packageFilePath": "game.msixvc"
}`)
	loader := NewLoader(fakeEnvRepo{envVars: map[string]string{ClientSecretEnvKey: "s3cr3t"}}, log.NewLogger())

	var cfg UploadPackageConfig
	require.NoError(t, loader.Load(path, &cfg))
	assert.Nil(t, cfg.PublishAfterUpload)
	assert.Equal(t, "Beta", cfg.FlightName)
}

func TestLoader_Load_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
	}{
		{
			name:    "branch and flight",
			content: `{"operationName": "PublishPackages", "productId": "p1", "aadAuthInfo": {"tenantId": "t", "clientId": "c"}, "branchFriendlyName": "Dev", "flightName": "Beta", "destinationSandboxName": "DEV.1"}`,
			env:     map[string]string{ClientSecretEnvKey: "s"},
		},
		{
			name:    "retail sandbox",
			content: `{"operationName": "PublishPackages", "productId": "p1", "aadAuthInfo": {"tenantId": "t", "clientId": "c"}, "branchFriendlyName": "Main", "destinationSandboxName": "RETAIL"}`,
			env:     map[string]string{ClientSecretEnvKey: "s"},
		},
		{
			name:    "missing secret",
			content: `{"operationName": "PublishPackages", "productId": "p1", "aadAuthInfo": {"tenantId": "t", "clientId": "c"}, "branchFriendlyName": "Main", "destinationSandboxName": "DEV.1"}`,
			env:     map[string]string{},
		},
		{
			name:    "malformed",
			content: `{"operationName": `,
			env:     map[string]string{ClientSecretEnvKey: "s"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := NewLoader(fakeEnvRepo{envVars: tt.env}, log.NewLogger())
			var cfg PublishPackagesConfig
			err := loader.Load(writeConfig(t, tt.content), &cfg)
			assert.True(t, errkind.Is(err, errkind.Config), "got %v", err)
		})
	}
}

func TestLoader_MissingFile(t *testing.T) {
	loader := NewLoader(fakeEnvRepo{envVars: map[string]string{}}, log.NewLogger())
	_, err := loader.OperationName(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, errkind.Is(err, errkind.Config))
}

func TestSecret_String(t *testing.T) {
	assert.Equal(t, "*****", Secret("value").String())
	assert.Equal(t, "*****", fmt.Sprintf("%s", Secret("value")))
	assert.Equal(t, "", Secret("").String())
}
