package operations

import (
	"context"

	"github.com/microsoft/PackageUploader-sub002/config"
	"github.com/microsoft/PackageUploader-sub002/ingestion"
)

// ProductReport describes a product and its distribution targets.
type ProductReport struct {
	Product  *ingestion.Product
	Branches []ingestion.PackageBranch
	Flights  []ingestion.Flight
}

// GetProduct resolves the product and lists its branches and flights.
func (r *Runner) GetProduct(ctx context.Context, cfg *config.GetProductConfig) (*ProductReport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	product, err := r.resolveProduct(ctx, cfg.Base)
	if err != nil {
		return nil, err
	}
	branches, err := r.ingestion.GetPackageBranches(ctx, product.ProductID)
	if err != nil {
		return nil, err
	}
	flights, err := r.ingestion.GetFlights(ctx, product.ProductID)
	if err != nil {
		return nil, err
	}

	r.logger.Println()
	r.logger.Infof("%s", product.Name)
	r.logger.Printf("Product id: %s", product.ProductID)
	r.logger.Printf("Big id: %s", product.BigID)
	for _, branch := range branches {
		r.logger.Printf("Branch: %s", branch.Name)
	}
	for _, flight := range flights {
		r.logger.Printf("Flight: %s (%s)", flight.Name, flight.ID)
	}

	return &ProductReport{Product: product, Branches: branches, Flights: flights}, nil
}
