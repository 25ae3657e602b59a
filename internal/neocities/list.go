package neocities

import (
	"context"
)

// RemoteFile is one entry of the remote site listing.
type RemoteFile struct {
	Path        string `json:"path"`
	IsDirectory bool   `json:"is_directory"`
	Size        int64  `json:"size"`
	SHA1Hash    string `json:"sha1_hash"`
	UpdatedAt   string `json:"updated_at"`
}

type listResponse struct {
	Result string        `json:"result"`
	Files  []*RemoteFile `json:"files"`
}

// List returns the complete remote file listing for the site.
// The result is a read-only snapshot; paths are root-relative with forward
// slashes as reported by the server.
func (c *Client) List(ctx context.Context) ([]*RemoteFile, error) {
	var result listResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetSuccessResult(&result).
		Get(apiList)

	if err := handleAPIError(resp, err, "list"); err != nil {
		return nil, err
	}

	return result.Files, nil
}
