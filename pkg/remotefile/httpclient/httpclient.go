// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package httpclient is an HTTP-based remotefile.Client: every file
// operation is one HTTP request against a configured endpoint, with the
// remote status decoded from the response rather than inferred from the
// HTTP status line alone (a 200 can still carry a remote-side failure
// status in its body).
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/eosfusex/cachecore/pkg/remotefile"
	"github.com/google/uuid"
)

var _ remotefile.Client = (*Client)(nil)

// Client is an HTTP-transport remotefile.Client.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a Client against baseURL, using http.DefaultClient if hc is
// nil.
func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{BaseURL: baseURL, HTTP: hc}
}

type statusBody struct {
	Code    remotefile.StatusCode `json:"code"`
	Errno   int                   `json:"errno"`
	Message string                `json:"message"`
}

func (c *Client) endpoint(p string) string {
	return c.BaseURL + p
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Request-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}
	return c.HTTP.Do(req)
}

func decodeStatus(resp *http.Response) (remotefile.Status, []byte, error) {
	statusHeader := resp.Header.Get("X-Remote-Status")
	if statusHeader == "" {
		data, err := io.ReadAll(resp.Body)
		return remotefile.Status{Code: remotefile.StatusOK}, data, err
	}
	var sb statusBody
	if err := json.Unmarshal([]byte(statusHeader), &sb); err != nil {
		return remotefile.Status{Code: remotefile.StatusFatal, Message: err.Error()}, nil, nil
	}
	data, err := io.ReadAll(resp.Body)
	return remotefile.Status{Code: sb.Code, Errno: sb.Errno, Message: sb.Message}, data, err
}

// Open issues a POST to /open with the file's URL, flags and mode encoded
// as query parameters, and returns the handle the remote service assigns.
func (c *Client) Open(ctx context.Context, fileURL string, flags int, mode uint32) (remotefile.Handle, remotefile.Status, error) {
	q := url.Values{}
	q.Set("url", fileURL)
	q.Set("flags", strconv.Itoa(flags))
	q.Set("mode", strconv.FormatUint(uint64(mode), 10))

	resp, err := c.do(ctx, http.MethodPost, "/open?"+q.Encode(), nil)
	if err != nil {
		return "", remotefile.Status{Code: remotefile.StatusConnectionError, Message: err.Error()}, err
	}
	defer resp.Body.Close()

	status, data, err := decodeStatus(resp)
	if err != nil {
		return "", remotefile.Status{Code: remotefile.StatusIOError, Message: err.Error()}, err
	}
	return remotefile.Handle(data), status, nil
}

// Read issues a GET to /read/<handle> with a byte-range header.
func (c *Client) Read(ctx context.Context, h remotefile.Handle, buf []byte, offset int64) (int, remotefile.Status, error) {
	path := fmt.Sprintf("/read/%s?offset=%d&length=%d", url.PathEscape(string(h)), offset, len(buf))
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, remotefile.Status{Code: remotefile.StatusConnectionError, Message: err.Error()}, err
	}
	defer resp.Body.Close()

	status, data, err := decodeStatus(resp)
	if err != nil {
		return 0, remotefile.Status{Code: remotefile.StatusIOError, Message: err.Error()}, err
	}
	n := copy(buf, data)
	return n, status, nil
}

// Write issues a PUT to /write/<handle> carrying buf as the request body.
func (c *Client) Write(ctx context.Context, h remotefile.Handle, buf []byte, offset int64) (int, remotefile.Status, error) {
	path := fmt.Sprintf("/write/%s?offset=%d", url.PathEscape(string(h)), offset)
	resp, err := c.do(ctx, http.MethodPut, path, bytes.NewReader(buf))
	if err != nil {
		return 0, remotefile.Status{Code: remotefile.StatusConnectionError, Message: err.Error()}, err
	}
	defer resp.Body.Close()

	status, _, err := decodeStatus(resp)
	if err != nil {
		return 0, remotefile.Status{Code: remotefile.StatusIOError, Message: err.Error()}, err
	}
	if !status.OK() {
		return 0, status, nil
	}
	return len(buf), status, nil
}

// Truncate issues a POST to /truncate/<handle>.
func (c *Client) Truncate(ctx context.Context, h remotefile.Handle, size int64) (remotefile.Status, error) {
	path := fmt.Sprintf("/truncate/%s?size=%d", url.PathEscape(string(h)), size)
	resp, err := c.do(ctx, http.MethodPost, path, nil)
	if err != nil {
		return remotefile.Status{Code: remotefile.StatusConnectionError, Message: err.Error()}, err
	}
	defer resp.Body.Close()

	status, _, err := decodeStatus(resp)
	return status, err
}

// Close issues a POST to /close/<handle>.
func (c *Client) Close(ctx context.Context, h remotefile.Handle) (remotefile.Status, error) {
	path := fmt.Sprintf("/close/%s", url.PathEscape(string(h)))
	resp, err := c.do(ctx, http.MethodPost, path, nil)
	if err != nil {
		return remotefile.Status{Code: remotefile.StatusConnectionError, Message: err.Error()}, err
	}
	defer resp.Body.Close()

	status, _, err := decodeStatus(resp)
	return status, err
}
