// Package operations composes the ingestion API, the package source and the
// chunk uploader into the operations exposed by the command line.
//
// Every operation validates its configuration before the first request.
package operations

import (
	"context"
	"fmt"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/microsoft/PackageUploader-sub002/chunkuploader"
	"github.com/microsoft/PackageUploader-sub002/config"
	"github.com/microsoft/PackageUploader-sub002/errkind"
	"github.com/microsoft/PackageUploader-sub002/ingestion"
	"github.com/microsoft/PackageUploader-sub002/network"
	"github.com/microsoft/PackageUploader-sub002/source"
)

// Runner executes operations.
type Runner struct {
	ingestion       *ingestion.Client
	uploadTransport *network.Client
	resolver        *source.Resolver
	uploaderConfig  chunkuploader.Config
	logger          log.Logger
}

// New creates a runner. uploadTransport carries the package bytes and
// resolver stages the package file.
func New(ingestionClient *ingestion.Client, uploadTransport *network.Client, resolver *source.Resolver, uploaderConfig chunkuploader.Config, logger log.Logger) *Runner {
	return &Runner{
		ingestion:       ingestionClient,
		uploadTransport: uploadTransport,
		resolver:        resolver,
		uploaderConfig:  uploaderConfig,
		logger:          logger,
	}
}

// NewFromConfig wires the clients described by base.
func NewFromConfig(base config.Base, logger log.Logger) (*Runner, error) {
	settings := base.Settings
	uploaderConfig, err := settings.UploaderConfig()
	if err != nil {
		return nil, errkind.ConfigError("%s", err)
	}

	auth := base.AadAuthInfo
	ingestionTransport := network.NewClient(settings.NetworkConfig(false), logger)
	ingestionTransport.Redactor().Add(auth.ClientSecret)
	credentials := network.NewClientSecretCredentials(auth.TenantID, auth.ClientID, auth.ClientSecret)
	requester := network.NewAuthenticatedClient(ingestionTransport, credentials, nil)
	ingestionClient := ingestion.NewClient(requester, settings.IngestionBaseURL, settings.PollInterval(), logger)

	uploadTransport := network.NewClient(settings.NetworkConfig(true), logger)
	uploadTransport.Redactor().Add(base.S3Credentials.SecretAccessKey)
	resolver := source.NewResolver(uploadTransport.StandardClient(), source.S3Config{
		Region:          settings.S3Region,
		AccessKeyID:     base.S3Credentials.AccessKeyID,
		SecretAccessKey: base.S3Credentials.SecretAccessKey,
	}, logger)

	return New(ingestionClient, uploadTransport, resolver, uploaderConfig, logger), nil
}

func (r *Runner) resolveProduct(ctx context.Context, base config.Base) (*ingestion.Product, error) {
	var (
		product *ingestion.Product
		err     error
	)
	if base.ProductID != "" {
		product, err = r.ingestion.GetProduct(ctx, base.ProductID)
	} else {
		product, err = r.ingestion.GetProductByBigID(ctx, base.BigID)
	}
	if err != nil {
		return nil, err
	}
	r.logger.Printf("Product: %s (%s)", product.Name, product.ProductID)
	return product, nil
}

func (r *Runner) resolveBranch(ctx context.Context, productID string, b config.Branch) (*ingestion.PackageBranch, error) {
	var (
		branch *ingestion.PackageBranch
		err    error
	)
	if b.FlightName != "" {
		branch, err = r.ingestion.GetPackageBranchByFlightName(ctx, productID, b.FlightName)
	} else {
		branch, err = r.ingestion.GetPackageBranchByFriendlyName(ctx, productID, b.BranchFriendlyName)
	}
	if err != nil {
		return nil, err
	}
	if branch.IsFlight {
		r.logger.Printf("Flight: %s (%s)", branch.Name, branch.FlightID)
	} else {
		r.logger.Printf("Branch: %s", branch.Name)
	}
	return branch, nil
}

// marketGroup returns the package configuration of the branch draft and the
// named market group in it.
func (r *Runner) marketGroup(ctx context.Context, productID string, branch *ingestion.PackageBranch, name string) (*ingestion.PackageConfiguration, *ingestion.MarketGroupPackage, error) {
	packageConfig, err := r.ingestion.GetPackageConfiguration(ctx, productID, branch)
	if err != nil {
		return nil, nil, err
	}
	group := packageConfig.MarketGroup(name)
	if group == nil {
		return nil, nil, errkind.NotFoundError("get market group", "market group",
			fmt.Errorf("branch %s has no market group %q", branch.Name, name))
	}
	return packageConfig, group, nil
}
