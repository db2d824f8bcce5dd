package operations

import (
	"context"
	"strings"
	"time"

	"github.com/microsoft/PackageUploader-sub002/config"
	"github.com/microsoft/PackageUploader-sub002/errkind"
	"github.com/microsoft/PackageUploader-sub002/ingestion"
)

const submissionResourceType = "Package"

// PublishPackages publishes the current packages of a branch to a sandbox,
// or of a flight to the flight.
func (r *Runner) PublishPackages(ctx context.Context, cfg *config.PublishPackagesConfig) (*ingestion.Submission, error) {
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
	return r.publish(ctx, product.ProductID, branch, cfg.Publish)
}

func (r *Runner) publish(ctx context.Context, productID string, branch *ingestion.PackageBranch, p config.Publish) (*ingestion.Submission, error) {
	req, err := submissionRequest(branch, p)
	if err != nil {
		return nil, err
	}

	r.logger.Println()
	r.logger.Infof("Publishing %s to %s %s", branch.Name, strings.ToLower(string(req.TargetType)), req.TargetID)
	submission, err := r.ingestion.CreateSubmission(ctx, productID, req)
	if err != nil {
		return nil, err
	}
	r.logger.Printf("Submission: %s", submission.ID)

	publishStart := time.Now()
	published, err := r.ingestion.WaitForPublish(ctx, productID, submission.ID, p.PublishingTimeout())
	if err != nil {
		return nil, err
	}
	r.logger.Donef("Published in %s", time.Since(publishStart).Round(time.Second))
	return published, nil
}

// submissionRequest targets the flight of a flight branch, otherwise the
// configured sandbox. The retail sandbox is refused here too.
func submissionRequest(branch *ingestion.PackageBranch, p config.Publish) (ingestion.SubmissionRequest, error) {
	req := ingestion.SubmissionRequest{
		ResourceRefs: []ingestion.ResourceRef{
			{ResourceType: submissionResourceType, ID: branch.CurrentDraftInstanceID},
		},
	}
	if opts := p.PublishConfiguration; opts != (config.PublishConfiguration{}) {
		req.PublishOptions = &ingestion.PublishOptions{
			ReleaseTimeInUTC:   opts.ReleaseTimeInUTC,
			IsManualPublish:    opts.IsManualPublish,
			CertificationNotes: opts.CertificationNotes,
		}
	}

	sandbox := strings.TrimSpace(p.DestinationSandboxName)
	if strings.EqualFold(sandbox, config.RetailSandbox) {
		return ingestion.SubmissionRequest{}, errkind.ConfigError("publishing to the %s sandbox is not allowed", config.RetailSandbox)
	}
	if branch.IsFlight {
		req.TargetType = ingestion.SubmissionTargetFlight
		req.TargetID = branch.FlightID
		return req, nil
	}
	if sandbox == "" {
		return ingestion.SubmissionRequest{}, errkind.ConfigError("destinationSandboxName is required to publish a branch")
	}
	req.TargetType = ingestion.SubmissionTargetSandbox
	req.TargetID = sandbox
	req.BranchName = branch.Name
	return req, nil
}
