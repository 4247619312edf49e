// Copyright (c) 2023 Canonical Ltd
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License version 3 as
// published by the Free Software Foundation.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package client talks to a wifiio device over HTTP.
package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

const defaultBaseURL = "http://wifiio.local"

// Config allows the user to customize client behavior.
type Config struct {
	// BaseURL is the device address, such as "http://192.168.4.1".
	BaseURL string

	// UserAgent is the User-Agent header sent to the device.
	UserAgent string

	// Timeout bounds requests other than firmware uploads.
	Timeout time.Duration
}

// A Client knows how to talk to the device.
type Client struct {
	baseURL   url.URL
	userAgent string
	doer      *http.Client
	timeout   time.Duration
}

func New(config *Config) (*Client, error) {
	if config == nil {
		config = &Config{}
	}
	base := config.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("cannot parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("cannot use base URL %q: scheme must be http or https", base)
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:   *u,
		userAgent: config.UserAgent,
		doer:      &http.Client{},
		timeout:   timeout,
	}, nil
}

// Error is returned when the device answers with an error status.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("device returned status %d", e.StatusCode)
	}
	return e.Message
}

func (client *Client) raw(method, urlpath string, headers map[string]string, body io.Reader, length int64, timeout time.Duration) (*http.Response, error) {
	u := client.baseURL
	u.Path = path.Join(u.Path, urlpath)
	req, err := http.NewRequest(method, u.String(), body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.ContentLength = length
		if length == 0 {
			req.Body = http.NoBody
		}
	}
	if client.userAgent != "" {
		req.Header.Set("User-Agent", client.userAgent)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	doer := client.doer
	if timeout > 0 {
		d := *doer
		d.Timeout = timeout
		doer = &d
	}
	rsp, err := doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot communicate with device: %w", err)
	}
	return rsp, nil
}

// responseError reads the error message from a failed response.
func responseError(rsp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(rsp.Body, 4096))
	e := &Error{StatusCode: rsp.StatusCode}
	var result struct {
		Message string `json:"message"`
	}
	if strings.HasPrefix(rsp.Header.Get("Content-Type"), "application/json") && json.Unmarshal(data, &result) == nil {
		e.Message = result.Message
	} else {
		e.Message = strings.TrimSpace(string(data))
	}
	return e
}

// doSync performs a request and decodes the JSON answer into v.
func (client *Client) doSync(method, path string, v any) error {
	rsp, err := client.raw(method, path, nil, nil, 0, client.timeout)
	if err != nil {
		return err
	}
	defer rsp.Body.Close()

	if rsp.StatusCode != http.StatusOK {
		return responseError(rsp)
	}
	if err := json.NewDecoder(rsp.Body).Decode(v); err != nil {
		return fmt.Errorf("cannot decode device response: %w", err)
	}
	return nil
}
