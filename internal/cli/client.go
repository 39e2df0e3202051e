package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Health() (map[string]interface{}, error) {
	return c.do(http.MethodGet, "/api/v1/health", nil)
}

func (c *Client) ListRouters() (map[string]interface{}, error) {
	return c.do(http.MethodGet, "/api/v1/routers", nil)
}

func (c *Client) AddRouter(name, host string, port int, username, password string) (map[string]interface{}, error) {
	body := map[string]interface{}{
		"name":     name,
		"host":     host,
		"port":     port,
		"username": username,
		"password": password,
	}
	return c.do(http.MethodPost, "/api/v1/routers", body)
}

func (c *Client) RemoveRouter(id int64) error {
	_, err := c.do(http.MethodDelete, fmt.Sprintf("/api/v1/routers/%d", id), nil)
	return err
}

func (c *Client) RouterStatus(id int64) (map[string]interface{}, error) {
	return c.do(http.MethodGet, fmt.Sprintf("/api/v1/routers/%d/status", id), nil)
}

func (c *Client) Bandwidth(id int64, window string) (map[string]interface{}, error) {
	return c.do(http.MethodGet, fmt.Sprintf("/api/v1/routers/%d/bandwidth?window=%s", id, window), nil)
}

func (c *Client) Series(id int64, ip, window string) (map[string]interface{}, error) {
	return c.do(http.MethodGet, fmt.Sprintf("/api/v1/routers/%d/series?ip=%s&window=%s", id, ip, window), nil)
}

func (c *Client) Logs(id int64, limit, offset int) (map[string]interface{}, error) {
	return c.do(http.MethodGet, fmt.Sprintf("/api/v1/routers/%d/logs?limit=%d&offset=%d", id, limit, offset), nil)
}

func (c *Client) SetRetention(id int64, days int) (map[string]interface{}, error) {
	return c.do(http.MethodPut, fmt.Sprintf("/api/v1/routers/%d/retention", id), map[string]interface{}{"days": days})
}

func (c *Client) Sweep(id int64) (map[string]interface{}, error) {
	return c.do(http.MethodPost, fmt.Sprintf("/api/v1/routers/%d/sweep", id), nil)
}

func (c *Client) do(method, path string, body interface{}) (map[string]interface{}, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(bytes.TrimSpace(data)))
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return result, nil
}
