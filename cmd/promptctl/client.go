package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/promptguild/promptguild/internal/api/respond"
	"github.com/promptguild/promptguild/internal/auth"
)

const requestTimeout = 90 * time.Second

// apiClient wraps resty with the service's auth and error conventions.
type apiClient struct {
	rc *resty.Client
}

func newClient() *apiClient {
	rc := resty.New().
		SetBaseURL(serviceURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(requestTimeout)
	switch {
	case token != "":
		rc.SetAuthToken(token)
	case devUser != "":
		rc.SetAuthToken(auth.DevToken(devUser))
	}
	return &apiClient{rc: rc}
}

// do sends one request and returns the raw response body.
// Non-2xx responses become errors carrying the service's message.
func (c *apiClient) do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var errResp respond.ErrorResponse
	req := c.rc.R().SetContext(ctx).SetError(&errResp)
	if body != nil {
		req.SetBody(body)
	}

	start := time.Now()
	resp, err := req.Execute(method, "/api"+path)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode()).
		Dur("elapsed", time.Since(start)).
		Msg("request completed")

	if resp.IsError() {
		msg := errResp.Message
		if msg == "" {
			msg = errResp.Error
		}
		if msg == "" {
			msg = string(resp.Body())
		}
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode(), msg)
	}
	return resp.Body(), nil
}

// run executes a request with the command's context and prints the result.
func run(cmd *cobra.Command, method, path string, body interface{}) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()
	data, err := newClient().do(ctx, method, path, body)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), data)
}

func printJSON(w io.Writer, data []byte) error {
	if len(data) == 0 {
		_, err := fmt.Fprintln(w, "ok")
		return err
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// scopePath prefixes p with the guild path when guildID is set.
func scopePath(guildID, p string) string {
	if guildID == "" {
		return p
	}
	return "/guilds/" + guildID + p
}
