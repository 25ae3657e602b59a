package neocities

import (
	"context"
	"net/url"
)

// SiteInfo is the public metadata of a site.
type SiteInfo struct {
	SiteName string   `json:"sitename"`
	Views    int64    `json:"views"`
	Hits     int64    `json:"hits"`
	Domain   string   `json:"domain"`
	Tags     []string `json:"tags"`
}

type infoResponse struct {
	Result string    `json:"result"`
	Info   *SiteInfo `json:"info"`
}

type uploadResponse struct {
	Result  string `json:"result"`
	Message string `json:"message"`
}

// Info fetches the site metadata for the authenticated site.
func (c *Client) Info(ctx context.Context) (*SiteInfo, error) {
	var result infoResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetSuccessResult(&result).
		Get(apiInfo)

	if err := handleAPIError(resp, err, "info"); err != nil {
		return nil, err
	}

	return result.Info, nil
}

// Upload sends a local file to the given remote path. The multipart field
// name carries the destination path, per the upload API contract.
func (c *Client) Upload(ctx context.Context, remotePath, localPath string) error {
	var result uploadResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetFile(remotePath, localPath).
		SetSuccessResult(&result).
		Post(apiUpload)

	return handleAPIError(resp, err, "upload "+remotePath)
}

// Delete removes the given remote files or directories. Directories are
// deleted recursively by the server.
func (c *Client) Delete(ctx context.Context, remotePaths ...string) error {
	form := url.Values{"filenames[]": remotePaths}

	var result uploadResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetFormDataFromValues(form).
		SetSuccessResult(&result).
		Post(apiDelete)

	return handleAPIError(resp, err, "delete")
}
