package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// RPC calls a Postgres function exposed through PostgREST and decodes the
// result into dest when dest is non-nil.
func (c *Client) RPC(ctx context.Context, fn string, params any, dest any) error {
	payload, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal rpc params: %w", err)
	}
	body, err := c.do(ctx, request{
		endpoint: "rest/rpc",
		method:   http.MethodPost,
		url:      c.restURL + "/rpc/" + url.PathEscape(fn),
		body:     bytes.NewReader(payload),
		bearer:   c.privilegedKey(),
	})
	if err != nil {
		return err
	}
	if dest == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("unmarshal rpc %s: %w", fn, err)
	}
	return nil
}
