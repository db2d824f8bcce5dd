// Package xfus is a client of the package upload service. One Client serves
// one upload session, authorized by the short-lived upload token issued for
// the package.
package xfus

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/microsoft/PackageUploader-sub002/chunkuploader"
	"github.com/microsoft/PackageUploader-sub002/network"
)

const (
	// TenantHeader names the upload tenant on every upload service request.
	TenantHeader = "Tenant"

	blobVersionHeader = "x-ms-version"
	blobVersion       = "2021-08-06"
)

// Client implements chunkuploader.Service.
type Client struct {
	upload   network.Requester
	blob     network.Requester
	assetURL string
}

var _ chunkuploader.Service = (*Client)(nil)

// NewClient creates a client for the session described by credential.
// uploadTransport carries the block uploads; it is typically configured with
// the longer upload timeout.
func NewClient(uploadTransport *network.Client, credential UploadCredential) (*Client, error) {
	if credential.Token == "" {
		return nil, errors.New("upload credential has no token")
	}
	if credential.UploadDomain == "" || credential.TargetID == "" {
		return nil, errors.New("upload credential has no upload domain or target id")
	}

	uploadTransport.Redactor().Add(credential.Token)
	headers := map[string]string{}
	if credential.Tenant != "" {
		headers[TenantHeader] = credential.Tenant
	}

	upload := network.NewAuthenticatedClient(uploadTransport,
		network.StaticCredentials{AccessToken: credential.Token}, headers)
	assetURL := fmt.Sprintf("%s/api/v2/assets/%s",
		strings.TrimRight(credential.UploadDomain, "/"), url.PathEscape(credential.TargetID))

	return &Client{
		upload:   upload,
		blob:     uploadTransport,
		assetURL: assetURL,
	}, nil
}

// Initialize opens the upload session, or resumes it when the service already
// received some blocks.
func (c *Client) Initialize(ctx context.Context, req chunkuploader.InitializeRequest) (*chunkuploader.UploadProgress, error) {
	var resp uploadProgress
	_, err := c.upload.Do(ctx, network.Request{
		Method: http.MethodPost,
		URL:    c.assetURL + "/initialize",
		Body: initializeRequest{
			FileName:  req.FileName,
			FileSize:  req.FileSize,
			BlockSize: req.BlockSize,
			Delta:     req.Delta,
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.toDomain(), nil
}

// Continue reports unchanged blocks and returns the current progress.
func (c *Client) Continue(ctx context.Context, req chunkuploader.ContinueRequest) (*chunkuploader.UploadProgress, error) {
	var resp uploadProgress
	_, err := c.upload.Do(ctx, network.Request{
		Method: http.MethodPost,
		URL:    c.assetURL + "/continue",
		Body:   continueRequest{UnchangedBlockIDs: req.UnchangedBlockIDs},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.toDomain(), nil
}

// UploadBlock sends the contents of one block.
func (c *Client) UploadBlock(ctx context.Context, block chunkuploader.Block, data []byte) error {
	_, err := c.upload.Do(ctx, network.Request{
		Method: http.MethodPut,
		URL:    c.assetURL + "/blocks/" + strconv.FormatInt(block.ID, 10),
		Body:   data,
	}, nil)
	return err
}

// StageDirectBlock uploads one uncommitted block to the blob behind sasURI.
func (c *Client) StageDirectBlock(ctx context.Context, sasURI, blockID string, data []byte) error {
	_, err := c.blob.Do(ctx, network.Request{
		Method:  http.MethodPut,
		URL:     withQuery(sasURI, "comp=block&blockid="+url.QueryEscape(blockID)),
		Body:    data,
		Headers: map[string]string{blobVersionHeader: blobVersion},
	}, nil)
	return err
}

// CommitDirectBlocks writes the blob behind sasURI from the staged blocks, in order.
func (c *Client) CommitDirectBlocks(ctx context.Context, sasURI string, blockIDs []string) error {
	body, err := xml.Marshal(blockList{Latest: blockIDs})
	if err != nil {
		return fmt.Errorf("encode block list: %w", err)
	}
	_, err = c.blob.Do(ctx, network.Request{
		Method: http.MethodPut,
		URL:    withQuery(sasURI, "comp=blocklist"),
		Body:   append([]byte(xml.Header), body...),
		Headers: map[string]string{
			blobVersionHeader: blobVersion,
			"Content-Type":    "application/xml",
		},
	}, nil)
	return err
}

// withQuery appends query to rawURL without re-encoding the signed parameters.
func withQuery(rawURL, query string) string {
	if strings.Contains(rawURL, "?") {
		return rawURL + "&" + query
	}
	return rawURL + "?" + query
}
