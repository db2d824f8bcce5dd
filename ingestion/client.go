// Package ingestion is a client of the Ingestion API, which manages the
// products, branches, packages and submissions of the game catalog.
package ingestion

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/microsoft/PackageUploader-sub002/errkind"
	"github.com/microsoft/PackageUploader-sub002/network"
)

const (
	// DefaultBaseURL is the production Ingestion API.
	DefaultBaseURL = "https://api.partner.microsoft.com/v1.0/ingestion"
	// DefaultPollInterval is the wait between two state queries.
	DefaultPollInterval = 30 * time.Second

	packageResourceType = "GamePackage"
)

// Client calls the Ingestion API. Requests go through an authenticating
// requester, typically a *network.AuthenticatedClient.
type Client struct {
	requester    network.Requester
	baseURL      string
	pollInterval time.Duration
	logger       log.Logger
}

// NewClient creates a client for the API at baseURL. An empty baseURL
// selects DefaultBaseURL and a non-positive pollInterval DefaultPollInterval.
func NewClient(requester network.Requester, baseURL string, pollInterval time.Duration, logger log.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Client{
		requester:    requester,
		baseURL:      strings.TrimRight(baseURL, "/"),
		pollInterval: pollInterval,
		logger:       logger,
	}
}

func (c *Client) url(format string, args ...interface{}) string {
	escaped := make([]interface{}, len(args))
	for i, arg := range args {
		escaped[i] = url.PathEscape(fmt.Sprint(arg))
	}
	return c.baseURL + "/" + fmt.Sprintf(format, escaped...)
}

func (c *Client) get(ctx context.Context, op, resource, url string, out interface{}) error {
	_, err := c.requester.Do(ctx, network.Request{Method: http.MethodGet, URL: url}, out)
	return classify(op, resource, err)
}

func (c *Client) send(ctx context.Context, method, op, resource, url string, body, out interface{}) error {
	_, err := c.requester.Do(ctx, network.Request{Method: method, URL: url, Body: body}, out)
	return classify(op, resource, err)
}

// classify names the missing resource of a 404.
func classify(op, resource string, err error) error {
	if err == nil {
		return nil
	}
	if resource != "" && errkind.KindOf(err) == errkind.NotFound {
		return errkind.NotFoundError(op, resource, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// GetProduct returns the product with the given product id.
func (c *Client) GetProduct(ctx context.Context, productID string) (*Product, error) {
	var product Product
	if err := c.get(ctx, "get product "+productID, "product", c.url("products/%s", productID), &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductByBigID returns the product with the given store id.
func (c *Client) GetProductByBigID(ctx context.Context, bigID string) (*Product, error) {
	op := "get product " + bigID
	var resp listResponse[Product]
	u := c.baseURL + "/products?externalId=" + url.QueryEscape(bigID)
	if err := c.get(ctx, op, "product", u, &resp); err != nil {
		return nil, err
	}
	if len(resp.Value) == 0 {
		return nil, errkind.NotFoundError(op, "product", fmt.Errorf("no product with big id %s", bigID))
	}
	return &resp.Value[0], nil
}

// GetPackageBranches returns all branches of the product.
func (c *Client) GetPackageBranches(ctx context.Context, productID string) ([]PackageBranch, error) {
	var resp listResponse[PackageBranch]
	u := c.url("products/%s", productID) + "/branches/getByModule(module=Package)"
	if err := c.get(ctx, "get branches of "+productID, "product", u, &resp); err != nil {
		return nil, err
	}
	return resp.Value, nil
}

// GetFlights returns all flights of the product.
func (c *Client) GetFlights(ctx context.Context, productID string) ([]Flight, error) {
	var resp listResponse[Flight]
	if err := c.get(ctx, "get flights of "+productID, "product", c.url("products/%s/flights", productID), &resp); err != nil {
		return nil, err
	}
	return resp.Value, nil
}

// GetPackageBranchByFriendlyName returns the branch with the given name.
func (c *Client) GetPackageBranchByFriendlyName(ctx context.Context, productID, name string) (*PackageBranch, error) {
	branches, err := c.GetPackageBranches(ctx, productID)
	if err != nil {
		return nil, err
	}
	for _, branch := range branches {
		if strings.EqualFold(branch.Name, name) {
			branch := branch
			return &branch, nil
		}
	}
	return nil, errkind.NotFoundError("get branch", "branch", fmt.Errorf("no branch named %q", name))
}

// GetPackageBranchByFlightName returns the branch that backs the named flight.
// Flight branches are named after the flight id.
func (c *Client) GetPackageBranchByFlightName(ctx context.Context, productID, flightName string) (*PackageBranch, error) {
	flights, err := c.GetFlights(ctx, productID)
	if err != nil {
		return nil, err
	}

	var flight *Flight
	for i := range flights {
		if strings.EqualFold(flights[i].Name, flightName) {
			flight = &flights[i]
			break
		}
	}
	if flight == nil {
		return nil, errkind.NotFoundError("get flight", "flight", fmt.Errorf("no flight named %q", flightName))
	}

	branches, err := c.GetPackageBranches(ctx, productID)
	if err != nil {
		return nil, err
	}
	for _, branch := range branches {
		if branch.Name == flight.ID {
			branch.IsFlight = true
			branch.FlightID = flight.ID
			branch.Name = flight.Name
			return &branch, nil
		}
	}
	return nil, errkind.NotFoundError("get flight branch", "branch", fmt.Errorf("flight %q has no branch", flightName))
}

// CreatePackage creates a package resource in the branch draft. The returned
// package carries the upload credential.
func (c *Client) CreatePackage(ctx context.Context, productID string, branch *PackageBranch, fileName, marketGroupID string) (*Package, error) {
	var pkg Package
	err := c.send(ctx, http.MethodPost, "create package "+fileName, "product", c.url("products/%s/packages", productID),
		createPackageRequest{
			ResourceType:           packageResourceType,
			FileName:               fileName,
			MarketGroupID:          marketGroupID,
			CurrentDraftInstanceID: branch.CurrentDraftInstanceID,
		}, &pkg)
	if err != nil {
		return nil, err
	}
	if pkg.UploadInfo == nil || pkg.UploadInfo.Token == "" {
		return nil, fmt.Errorf("create package %s: service returned no upload info", fileName)
	}
	return &pkg, nil
}

// GetPackage returns the current state of a package.
func (c *Client) GetPackage(ctx context.Context, productID, packageID string) (*Package, error) {
	var pkg Package
	if err := c.get(ctx, "get package "+packageID, "package", c.url("products/%s/packages/%s", productID, packageID), &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}

// CommitPackage tells the service that all bytes of the package were uploaded.
func (c *Client) CommitPackage(ctx context.Context, productID, packageID string) (*Package, error) {
	var pkg Package
	err := c.send(ctx, http.MethodPost, "commit package "+packageID, "package",
		c.url("products/%s/packages/%s/commit", productID, packageID), struct{}{}, &pkg)
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

// GetPackageConfiguration returns the market group assignments of a branch draft.
func (c *Client) GetPackageConfiguration(ctx context.Context, productID string, branch *PackageBranch) (*PackageConfiguration, error) {
	var config PackageConfiguration
	err := c.get(ctx, "get package configuration", "package configuration",
		c.url("products/%s/packageConfigurations/%s", productID, branch.CurrentDraftInstanceID), &config)
	if err != nil {
		return nil, err
	}
	return &config, nil
}

// UpdatePackageConfiguration replaces the market group assignments.
func (c *Client) UpdatePackageConfiguration(ctx context.Context, productID string, config *PackageConfiguration) (*PackageConfiguration, error) {
	var updated PackageConfiguration
	err := c.send(ctx, http.MethodPut, "update package configuration", "package configuration",
		c.url("products/%s/packageConfigurations/%s", productID, config.ID), config, &updated)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// CreateSubmission starts publishing.
func (c *Client) CreateSubmission(ctx context.Context, productID string, req SubmissionRequest) (*Submission, error) {
	var submission Submission
	err := c.send(ctx, http.MethodPost, "create submission", "product",
		c.url("products/%s/submissions", productID), req, &submission)
	if err != nil {
		return nil, err
	}
	return &submission, nil
}

// GetSubmission returns the current state of a submission.
func (c *Client) GetSubmission(ctx context.Context, productID, submissionID string) (*Submission, error) {
	var submission Submission
	err := c.get(ctx, "get submission "+submissionID, "submission",
		c.url("products/%s/submissions/%s", productID, submissionID), &submission)
	if err != nil {
		return nil, err
	}
	return &submission, nil
}
