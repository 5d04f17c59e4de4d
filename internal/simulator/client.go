package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rpm/rpm/internal/domain/vitals"
)

// Client talks to the ingest API as an authenticated service account.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// NewClient returns a client for the server at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Login obtains a bearer token used by later calls.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.post(ctx, "/api/v1/auth/login", body, &tok); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	c.token = tok.AccessToken
	return nil
}

// Ingest posts one batch for a patient.
func (c *Client) Ingest(ctx context.Context, patientID string, batch []vitals.Input) (vitals.Result, error) {
	var res vitals.Result
	body := map[string]interface{}{"patient_id": patientID, "measurements": batch}
	if err := c.post(ctx, "/api/v1/vitals/ingest", body, &res); err != nil {
		return res, fmt.Errorf("ingest %s: %w", patientID, err)
	}
	return res, nil
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
