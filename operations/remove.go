package operations

import (
	"context"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/microsoft/PackageUploader-sub002/config"
	"github.com/microsoft/PackageUploader-sub002/errkind"
)

// RemovePackages removes the packages whose file name matches the configured
// pattern from the market group. It returns the removed package ids.
func (r *Runner) RemovePackages(ctx context.Context, cfg *config.RemovePackagesConfig) ([]string, error) {
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
	packageConfig, group, err := r.marketGroup(ctx, product.ProductID, branch, cfg.MarketGroupName)
	if err != nil {
		return nil, err
	}

	var kept, removed []string
	for _, id := range group.PackageIDs {
		pkg, err := r.ingestion.GetPackage(ctx, product.ProductID, id)
		if errkind.Is(err, errkind.NotFound) {
			r.logger.Warnf("Package %s of market group %s no longer exists", id, group.Name)
			kept = append(kept, id)
			continue
		}
		if err != nil {
			return nil, err
		}

		// Validate already rejected malformed patterns.
		if match, _ := doublestar.Match(cfg.PackageFileName, pkg.FileName); match {
			r.logger.Printf("Removing %s (%s)", pkg.FileName, pkg.ID)
			removed = append(removed, id)
		} else {
			kept = append(kept, id)
		}
	}

	if len(removed) == 0 {
		r.logger.Donef("No package in market group %s matches %s", group.Name, cfg.PackageFileName)
		return nil, nil
	}

	group.PackageIDs = kept
	if group.PackageIDs == nil {
		group.PackageIDs = []string{}
	}
	if _, err := r.ingestion.UpdatePackageConfiguration(ctx, product.ProductID, packageConfig); err != nil {
		return nil, err
	}
	r.logger.Donef("Removed %d package(s) from market group %s", len(removed), group.Name)
	return removed, nil
}
