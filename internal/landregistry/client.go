// internal/landregistry/client.go

// Package landregistry calls the state land-records service to verify a
// survey number and turns the verified record into field updates for the
// reconciliation layer.
package landregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"krishi-sahayak/internal/common/errors"
	"krishi-sahayak/internal/common/logger"
	"krishi-sahayak/internal/models"
)

// Record is a verified land holding as the registry reports it.
type Record struct {
	SurveyNo  string  `json:"surveyNo"`
	Village   string  `json:"village"`
	OwnerName string  `json:"ownerName"`
	AreaAcres float64 `json:"areaAcres"`
	Verified  bool    `json:"verified"`
}

// Client talks to the land registry over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        logger.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Verify looks up a survey number within a village. A reachable registry that
// does not know the survey number is a successful lookup with Verified false;
// only transport and server failures surface as errors.
func (c *Client) Verify(ctx context.Context, surveyNo, village string) (*Record, error) {
	endpoint := fmt.Sprintf("%s/v1/records?surveyNo=%s&village=%s",
		c.baseURL, url.QueryEscape(surveyNo), url.QueryEscape(village))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.NewRegistryLookupFailedError(err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WithError(err).Warn("registry lookup failed", map[string]interface{}{"surveyNo": surveyNo})
		return nil, errors.NewRegistryLookupFailedError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &Record{SurveyNo: surveyNo, Village: village, Verified: false}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewRegistryLookupFailedError(fmt.Errorf("registry returned status %d", resp.StatusCode))
	}

	var record Record
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, errors.NewRegistryLookupFailedError(err)
	}
	record.Verified = true
	return &record, nil
}

// FieldUpdates converts a verified record into reconciliation events. An
// unverified record produces nothing; a failed lookup never writes to a form.
func (r *Record) FieldUpdates() []models.FieldUpdateEvent {
	if !r.Verified {
		return nil
	}
	return []models.FieldUpdateEvent{
		{Field: "acreage", Value: strconv.FormatFloat(r.AreaAcres, 'f', -1, 64)},
		{Field: "farmerName", Value: r.OwnerName},
	}
}
