package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Object is one entry of a bucket listing. Folders have a nil ID.
type Object struct {
	Name      string     `json:"name"`
	ID        *string    `json:"id"`
	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// IsFolder reports whether the entry is a virtual folder.
func (o Object) IsFolder() bool {
	return o.ID == nil
}

// Upload stores body at path inside bucket.
func (c *Client) Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string) error {
	_, err := c.do(ctx, request{
		endpoint:    "storage/upload",
		method:      http.MethodPost,
		url:         fmt.Sprintf("%s/object/%s/%s", c.storageURL, bucket, escapePath(path)),
		body:        body,
		contentType: contentType,
		bearer:      c.privilegedKey(),
		headers:     map[string]string{"x-upsert": "false", "cache-control": "max-age=3600"},
	})
	if err != nil {
		return fmt.Errorf("upload %s/%s: %w", bucket, path, err)
	}
	return nil
}

// Remove deletes the given object paths from bucket.
func (c *Client) Remove(ctx context.Context, bucket string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	payload, err := json.Marshal(map[string][]string{"prefixes": paths})
	if err != nil {
		return fmt.Errorf("marshal remove request: %w", err)
	}
	_, err = c.do(ctx, request{
		endpoint: "storage/remove",
		method:   http.MethodDelete,
		url:      fmt.Sprintf("%s/object/%s", c.storageURL, bucket),
		body:     bytes.NewReader(payload),
		bearer:   c.privilegedKey(),
	})
	if err != nil {
		return fmt.Errorf("remove from %s: %w", bucket, err)
	}
	return nil
}

// List returns the entries directly under prefix.
func (c *Client) List(ctx context.Context, bucket, prefix string, limit, offset int) ([]Object, error) {
	if limit <= 0 {
		limit = 100
	}
	payload, err := json.Marshal(map[string]any{
		"prefix": prefix,
		"limit":  limit,
		"offset": offset,
		"sortBy": map[string]string{"column": "name", "order": "asc"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal list request: %w", err)
	}
	body, err := c.do(ctx, request{
		endpoint: "storage/list",
		method:   http.MethodPost,
		url:      fmt.Sprintf("%s/object/list/%s", c.storageURL, bucket),
		body:     bytes.NewReader(payload),
		bearer:   c.privilegedKey(),
	})
	if err != nil {
		return nil, fmt.Errorf("list %s/%s: %w", bucket, prefix, err)
	}
	var objects []Object
	if err := json.Unmarshal(body, &objects); err != nil {
		return nil, fmt.Errorf("unmarshal object list: %w", err)
	}
	return objects, nil
}

// PublicURL returns the unauthenticated download URL of an object in a public bucket.
func (c *Client) PublicURL(bucket, path string) string {
	return fmt.Sprintf("%s/object/public/%s/%s", c.storageURL, bucket, escapePath(path))
}
