package apiclient

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"

	"github.com/go-resty/resty/v2"
)

// Blob is a downloaded file.
type Blob struct {
	Body        []byte
	Filename    string
	ContentType string
}

// File is one part of a multipart upload.
type File struct {
	Field  string
	Name   string
	Reader io.Reader
}

var filenamePattern = regexp.MustCompile(`filename="?([^";\n]+)"?`)

// FilenameFromDisposition extracts the filename from a Content-Disposition
// header, or returns fallback.
func FilenameFromDisposition(header, fallback string) string {
	if m := filenamePattern.FindStringSubmatch(header); len(m) == 2 && m[1] != "" {
		return m[1]
	}
	return fallback
}

// Download fetches a binary resource. The filename comes from the
// Content-Disposition header when present, else fallbackName.
func (c *Client) Download(ctx context.Context, path string, params url.Values, fallbackName string) (*Blob, error) {
	resp, err := c.execute(ctx, http.MethodGet, path, func(r *resty.Request) {
		r.SetHeader("Accept", "*/*")
		if len(params) > 0 {
			r.SetQueryParamsFromValues(params)
		}
	})
	if err != nil {
		return nil, err
	}
	return &Blob{
		Body:        resp.Body(),
		Filename:    FilenameFromDisposition(resp.Header().Get("Content-Disposition"), fallbackName),
		ContentType: resp.Header().Get("Content-Type"),
	}, nil
}

// Upload posts files as multipart form data and decodes the JSON answer into
// out. Uploads are mutations and are never retried.
func (c *Client) Upload(ctx context.Context, path string, files []File, out any) error {
	resp, err := c.execute(ctx, http.MethodPost, path, func(r *resty.Request) {
		for _, f := range files {
			r.SetFileReader(f.Field, f.Name, f.Reader)
		}
	})
	if err != nil {
		return err
	}
	return decodeInto(resp.Body(), out)
}
