package operations

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/go-units"
	"github.com/microsoft/PackageUploader-sub002/chunkuploader"
	"github.com/microsoft/PackageUploader-sub002/config"
	"github.com/microsoft/PackageUploader-sub002/ingestion"
	"github.com/microsoft/PackageUploader-sub002/xfus"
)

// UploadResult describes a completed UploadPackage operation.
type UploadResult struct {
	Product *ingestion.Product
	Branch  *ingestion.PackageBranch
	Package *ingestion.Package
	Upload  *chunkuploader.Result
	// Submission is set when the operation also published.
	Submission *ingestion.Submission
}

// UploadPackage uploads the configured package to a branch or flight, waits
// until the service processed it, assigns it to the market group and
// optionally publishes.
func (r *Runner) UploadPackage(ctx context.Context, cfg *config.UploadPackageConfig) (*UploadResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	product, err := r.resolveProduct(ctx, cfg.Base)
	if err != nil {
		return nil, err
	}
	branch, err := r.resolveBranch(ctx, product.ProductID, cfg.Branch)
	if err != nil {
		return nil, err
	}
	_, group, err := r.marketGroup(ctx, product.ProductID, branch, cfg.MarketGroupName)
	if err != nil {
		return nil, err
	}

	file, err := r.resolver.Resolve(ctx, cfg.PackageFilePath)
	if err != nil {
		return nil, fmt.Errorf("resolve package file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			r.logger.Warnf("Failed to remove staged package %s: %s", file.Path, err)
		}
	}()

	r.logger.Println()
	r.logger.Infof("Creating package %s (%s)", file.Name, units.HumanSizeWithPrecision(float64(file.Size), 3))
	pkg, err := r.ingestion.CreatePackage(ctx, product.ProductID, branch, file.Name, group.MarketGroupID)
	if err != nil {
		return nil, err
	}
	r.logger.Donef("Created package %s", pkg.ID)

	result, err := r.transfer(ctx, pkg, file.Path, cfg.DeltaUpload)
	if err != nil {
		return nil, err
	}

	r.logger.Println()
	r.logger.Infof("Waiting for package %s to be processed", pkg.ID)
	if _, err := r.ingestion.CommitPackage(ctx, product.ProductID, pkg.ID); err != nil {
		return nil, err
	}
	processingStart := time.Now()
	processed, err := r.ingestion.WaitForPackageProcessing(ctx, product.ProductID, pkg.ID, cfg.ProcessingTimeout())
	if err != nil {
		return nil, err
	}
	r.logger.Donef("Package processed in %s", time.Since(processingStart).Round(time.Second))

	if err := r.assignPackage(ctx, product.ProductID, branch, cfg.MarketGroupName, processed.ID); err != nil {
		return nil, err
	}

	uploadResult := &UploadResult{
		Product: product,
		Branch:  branch,
		Package: processed,
		Upload:  result,
	}
	if cfg.PublishAfterUpload != nil {
		submission, err := r.publish(ctx, product.ProductID, branch, *cfg.PublishAfterUpload)
		if err != nil {
			return nil, err
		}
		uploadResult.Submission = submission
	}
	return uploadResult, nil
}

// transfer moves the package bytes with the credential issued for pkg.
func (r *Runner) transfer(ctx context.Context, pkg *ingestion.Package, path string, delta bool) (*chunkuploader.Result, error) {
	service, err := xfus.NewClient(r.uploadTransport, xfus.UploadCredential{
		Token:        pkg.UploadInfo.Token,
		UploadDomain: pkg.UploadInfo.UploadDomain,
		Tenant:       pkg.UploadInfo.XfusTenant,
		TargetID:     pkg.UploadInfo.XfusID,
	})
	if err != nil {
		return nil, fmt.Errorf("upload package %s: %w", pkg.ID, err)
	}

	uploaderConfig := r.uploaderConfig
	uploaderConfig.Delta = delta
	uploader := chunkuploader.New(service, uploaderConfig, r.logger)

	r.logger.Println()
	r.logger.Infof("Uploading package %s", pkg.ID)
	result, err := uploader.UploadFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("upload package %s: %w", pkg.ID, err)
	}
	return result, nil
}

// assignPackage makes packageID the package of the market group.
func (r *Runner) assignPackage(ctx context.Context, productID string, branch *ingestion.PackageBranch, marketGroup, packageID string) error {
	packageConfig, group, err := r.marketGroup(ctx, productID, branch, marketGroup)
	if err != nil {
		return err
	}
	group.PackageIDs = []string{packageID}
	if _, err := r.ingestion.UpdatePackageConfiguration(ctx, productID, packageConfig); err != nil {
		return err
	}
	r.logger.Donef("Package %s assigned to market group %s", packageID, group.Name)
	return nil
}
