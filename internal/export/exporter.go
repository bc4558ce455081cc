// Package export ships match summaries to the CRM webhook in batches.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/tradeline-engine/internal/model"
)

// Event summarizes one match run for the CRM.
type Event struct {
	RequestID         string    `json:"request_id"`
	ClientID          string    `json:"client_id,omitempty"`
	QuoteID           string    `json:"quote_id,omitempty"`
	Budget            float64   `json:"budget"`
	TotalOptions      int       `json:"total_options"`
	AvgExpectedImpact int       `json:"avg_expected_impact"`
	Bundles           int       `json:"bundles"`
	BundlesTruncated  bool      `json:"bundles_truncated,omitempty"`
	TopTradelines     []string  `json:"top_tradelines"`
	At                time.Time `json:"at"`
}

// NewEvent builds the event of a finished match run.
func NewEvent(requestID, clientID string, budget float64, result model.MatchResult, at time.Time) Event {
	top := make([]string, 0, len(result.SingleRecommendations))
	for _, rec := range result.SingleRecommendations {
		top = append(top, rec.Tradeline.ID)
	}
	return Event{
		RequestID:         requestID,
		ClientID:          clientID,
		Budget:            budget,
		TotalOptions:      result.Summary.TotalOptions,
		AvgExpectedImpact: result.Summary.AvgExpectedImpact,
		Bundles:           len(result.Bundles),
		BundlesTruncated:  result.Summary.BundlesTruncated,
		TopTradelines:     top,
		At:                at.UTC(),
	}
}

// Config holds configuration for the webhook exporter
type Config struct {
	WebhookURL    string
	WebhookAPIKey string
	BatchSize     int
	Interval      time.Duration
}

// Exporter batches events and posts them when the batch fills or the interval elapses.
// Without a webhook URL it drops every event.
type Exporter struct {
	config     Config
	httpClient *http.Client

	mutex      sync.Mutex
	batch      []Event
	lastExport time.Time
	exported   int
	failures   int

	cancel   context.CancelFunc
	inflight sync.WaitGroup
	done     chan struct{}
}

// New creates an exporter and starts its periodic flush.
func New(cfg Config) *Exporter {
	e := &Exporter{config: cfg}
	if !e.Enabled() {
		return e
	}

	if e.config.BatchSize <= 0 {
		e.config.BatchSize = 100
	}
	if e.config.Interval <= 0 {
		e.config.Interval = time.Minute
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = 10 * time.Second
	rc.Logger = nil
	e.httpClient = rc.StandardClient()

	e.batch = make([]Event, 0, e.config.BatchSize)
	e.done = make(chan struct{})

	var ctx context.Context
	ctx, e.cancel = context.WithCancel(context.Background())
	go e.periodicExport(ctx)

	logrus.WithField("url", cfg.WebhookURL).Info("CRM exporter initialized")
	return e
}

// Enabled reports whether a webhook URL is configured. A disabled exporter drops events.
func (e *Exporter) Enabled() bool {
	return e.config.WebhookURL != ""
}

// Add queues an event, flushing in the background when the batch is full.
func (e *Exporter) Add(event Event) {
	if !e.Enabled() {
		return
	}

	e.mutex.Lock()
	e.batch = append(e.batch, event)
	full := len(e.batch) >= e.config.BatchSize
	e.mutex.Unlock()

	if full {
		e.inflight.Add(1)
		go func() {
			defer e.inflight.Done()
			e.flush()
		}()
	}
}

func (e *Exporter) periodicExport(ctx context.Context) {
	defer close(e.done)

	ticker := time.NewTicker(e.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.flush()
		case <-ctx.Done():
			return
		}
	}
}

// flush posts the current batch. A failed batch is logged and dropped.
func (e *Exporter) flush() {
	e.mutex.Lock()
	if len(e.batch) == 0 {
		e.mutex.Unlock()
		return
	}
	events := e.batch
	e.batch = make([]Event, 0, e.config.BatchSize)
	e.mutex.Unlock()

	err := e.post(events)

	e.mutex.Lock()
	defer e.mutex.Unlock()
	if err != nil {
		e.failures++
		logrus.Errorf("Failed to export %d events to webhook: %v", len(events), err)
		return
	}
	e.exported += len(events)
	e.lastExport = time.Now()
	logrus.Infof("Exported %d events to CRM webhook", len(events))
}

func (e *Exporter) post(events []Event) error {
	payload := struct {
		Events     []Event `json:"events"`
		ExportTime string  `json:"export_time"`
		Count      int     `json:"count"`
	}{
		Events:     events,
		ExportTime: time.Now().UTC().Format(time.RFC3339),
		Count:      len(events),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, e.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.config.WebhookAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.WebhookAPIKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned error status: %d", resp.StatusCode)
	}
	return nil
}

// Stop ends the periodic flush and exports whatever is queued.
func (e *Exporter) Stop() {
	if !e.Enabled() {
		return
	}
	e.cancel()
	<-e.done
	e.inflight.Wait()
	e.flush()
}

// Status describes the exporter for the status endpoint.
type Status struct {
	Enabled      bool       `json:"enabled"`
	BatchSize    int        `json:"batch_size"`
	Interval     string     `json:"interval"`
	CurrentBatch int        `json:"current_batch"`
	Exported     int        `json:"exported"`
	Failures     int        `json:"failures"`
	LastExport   *time.Time `json:"last_export,omitempty"`
}

// Status returns a snapshot of the batch and export counters.
func (e *Exporter) Status() Status {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	s := Status{
		Enabled:      e.Enabled(),
		BatchSize:    e.config.BatchSize,
		Interval:     e.config.Interval.String(),
		CurrentBatch: len(e.batch),
		Exported:     e.exported,
		Failures:     e.failures,
	}
	if !e.lastExport.IsZero() {
		last := e.lastExport
		s.LastExport = &last
	}
	return s
}
