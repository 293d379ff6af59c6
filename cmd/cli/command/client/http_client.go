package client

// http_client.go = reads the status API of the battleships server.

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"battleships/internal/microservices/http-api/dto"
)

// defines the HTTP client structure and methods
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// constructor for HTTP client
func NewHTTPClient(apiURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: apiURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GetStatus fetches the server summary
func (c *HTTPClient) GetStatus() (*dto.StatusResponse, error) {
	var result dto.StatusResponse
	if err := c.getJSON("/api/v1/status", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetLeaderboard fetches the top players
func (c *HTTPClient) GetLeaderboard(limit int) (*dto.LeaderboardResponse, error) {
	var result dto.LeaderboardResponse
	if err := c.getJSON("/api/v1/leaderboard", limitQuery(limit), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetRecentResults fetches the latest finished rounds
func (c *HTTPClient) GetRecentResults(limit int) (*dto.RecentResultsResponse, error) {
	var result dto.RecentResultsResponse
	if err := c.getJSON("/api/v1/results/recent", limitQuery(limit), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func limitQuery(limit int) url.Values {
	if limit <= 0 {
		return nil
	}
	return url.Values{"limit": {strconv.Itoa(limit)}}
}

func (c *HTTPClient) getJSON(path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	resp, err := c.httpClient.Get(u)
	if err != nil {
		return err
	}
	defer resp.Body.Close() // Ensure the response body is closed

	// check for non-200 status code => surface the server's error message
	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&body) == nil && body.Error != "" {
			return fmt.Errorf("request failed with status %s: %s", resp.Status, body.Error)
		}
		return fmt.Errorf("request failed with status: %s", resp.Status)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
