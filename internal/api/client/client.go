package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"
)

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient() (*Client, error) {
	baseURL := os.Getenv("LEDGEREYE_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	token := os.Getenv("LEDGEREYE_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("LEDGEREYE_TOKEN environment variable is not set")
	}

	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Schedule mirrors the server's schedule view.
type Schedule struct {
	ScheduleID   string     `json:"schedule_id"`
	Name         string     `json:"name"`
	CompanyID    string     `json:"company_id"`
	ReportType   string     `json:"report_type"`
	ExportFormat string     `json:"export_format"`
	Frequency    string     `json:"frequency"`
	TimeOfDay    string     `json:"time_of_day"`
	DayOfWeek    string     `json:"day_of_week"`
	DayOfMonth   *int       `json:"day_of_month"`
	Recipients   []string   `json:"recipients"`
	Enabled      bool       `json:"enabled"`
	NextRun      time.Time  `json:"next_run"`
	LastRun      *time.Time `json:"last_run"`
	TotalRuns    int64      `json:"total_runs"`
}

type HistoryItem struct {
	ExecutedAt      time.Time `json:"executed_at"`
	ReportType      string    `json:"report_type"`
	ExportFormat    string    `json:"export_format"`
	RecipientsCount int       `json:"recipients_count"`
	Success         bool      `json:"success"`
	ErrorMessage    string    `json:"error_message"`
}

type HistoryPage struct {
	Items    []HistoryItem `json:"items"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

type RunResult struct {
	ExecutedAt   time.Time `json:"executed_at"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message"`
}

func (c *Client) ListSchedules(companyID string) ([]Schedule, error) {
	endpoint := "/api/v1/schedules"
	if companyID != "" {
		query := url.Values{}
		query.Set("company_id", companyID)
		endpoint += "?" + query.Encode()
	}

	var schedules []Schedule
	if err := c.get(endpoint, &schedules); err != nil {
		return nil, err
	}
	return schedules, nil
}

func (c *Client) GetSchedule(id string) (*Schedule, error) {
	var schedule Schedule
	if err := c.get(fmt.Sprintf("/api/v1/schedules/%s", id), &schedule); err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (c *Client) CreateSchedule(payload map[string]interface{}) (*Schedule, error) {
	var schedule Schedule
	if err := c.post("/api/v1/schedules", payload, &schedule); err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (c *Client) DeleteSchedule(id string) error {
	resp, err := c.doRequest(http.MethodDelete, fmt.Sprintf("/api/v1/schedules/%s", id), nil)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (c *Client) SetScheduleEnabled(id string, enabled bool) error {
	action := "disable"
	if enabled {
		action = "enable"
	}
	resp, err := c.doRequest(http.MethodPut, fmt.Sprintf("/api/v1/schedules/%s/%s", id, action), nil)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (c *Client) RunSchedule(id string) (*RunResult, error) {
	var result RunResult
	if err := c.post(fmt.Sprintf("/api/v1/schedules/%s/run", id), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ScheduleHistory(id string, page, pageSize int) (*HistoryPage, error) {
	query := url.Values{}
	query.Set("page", fmt.Sprintf("%d", page))
	query.Set("page_size", fmt.Sprintf("%d", pageSize))

	var result HistoryPage
	if err := c.get(fmt.Sprintf("/api/v1/schedules/%s/history?%s", id, query.Encode()), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) get(endpoint string, v interface{}) error {
	resp, err := c.doRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *Client) post(endpoint string, data, v interface{}) error {
	var body io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %v", err)
		}
		body = bytes.NewReader(jsonData)
	}

	resp, err := c.doRequest(http.MethodPost, endpoint, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if v != nil {
		return json.NewDecoder(resp.Body).Decode(v)
	}
	return nil
}

func (c *Client) doRequest(method, endpoint string, body io.Reader) (*http.Response, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %v", err)
	}
	base := u.Path
	if idx := strings.IndexByte(endpoint, '?'); idx >= 0 {
		u.Path = path.Join(base, endpoint[:idx])
		u.RawQuery = endpoint[idx+1:]
	} else {
		u.Path = path.Join(base, endpoint)
	}

	req, err := http.NewRequest(method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %v", err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		var errResp struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
			return nil, fmt.Errorf("API error: %s", errResp.Error)
		}
		return nil, fmt.Errorf("API error: status %d", resp.StatusCode)
	}

	return resp, nil
}
