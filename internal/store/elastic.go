// Package store provides read-only access to patient visit records held
// in Elasticsearch. The index is owned by the ingestion pipeline; this
// process never writes to it.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/clinical-assistant-server/internal/domain"
)

// PatientReader retrieves visit records for a named patient.
type PatientReader interface {
	SearchPatient(ctx context.Context, patientName string) ([]domain.PatientRecord, error)
}

// SearchClient queries the patient visit index with a circuit breaker
// guarding the Elasticsearch round trip.
type SearchClient struct {
	es      *elasticsearch.Client
	index   string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Logger
}

// maxVisitRecords bounds a single patient query. Visit histories in the
// index are far smaller than this in practice.
const maxVisitRecords = 500

// NewSearchClient creates a search client for the configured index.
// Transport may be nil outside of tests.
func NewSearchClient(cfg domain.ElasticConfig, transport http.RoundTripper, logger *logrus.Logger) (*SearchClient, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		APIKey:    cfg.APIKey,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "Elasticsearch",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &SearchClient{
		es:      es,
		index:   cfg.IndexName,
		timeout: cfg.Timeout,
		breaker: breaker,
		logger:  logger,
	}, nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source domain.PatientRecord `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// SearchPatient returns every visit record whose patient name matches the
// query. An unreachable cluster or an open breaker is classified as a
// service availability failure so callers can report it without leaking
// transport detail.
func (c *SearchClient) SearchPatient(ctx context.Context, patientName string) ([]domain.PatientRecord, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	query := map[string]interface{}{
		"size": maxVisitRecords,
		"query": map[string]interface{}{
			"match": map[string]interface{}{
				"patient_name": patientName,
			},
		},
		"_source": []string{
			"date_of_visit",
			"patient_complaint",
			"diagnosis",
			"doctor_notes",
			"drugs_prescribed",
			"patient_age_at_visit",
			"patient_name",
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, domain.Wrap(domain.FailureHandlerError, err, "failed to encode patient query")
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doSearch(ctx, &buf)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, domain.E(domain.FailureServiceUnavailable, "patient record store unavailable")
		}
		if ctx.Err() == context.DeadlineExceeded {
			return nil, domain.Wrap(domain.FailureTimeout, err, "patient record query timed out")
		}
		return nil, domain.Wrap(domain.FailureServiceUnavailable, err, "patient record query failed")
	}

	records := result.([]domain.PatientRecord)
	c.logger.WithFields(logrus.Fields{
		"patient_query": patientName,
		"records":       len(records),
	}).Debug("Patient record search completed")

	return records, nil
}

func (c *SearchClient) doSearch(ctx context.Context, body *bytes.Buffer) ([]domain.PatientRecord, error) {
	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(body),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch returned status %s", res.Status())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	records := make([]domain.PatientRecord, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		records = append(records, hit.Source)
	}
	return records, nil
}

// Ping checks that the cluster responds. Used by the health endpoint.
func (c *SearchClient) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return domain.Wrap(domain.FailureServiceUnavailable, err, "patient record store unreachable")
	}
	defer res.Body.Close()

	if res.IsError() {
		return domain.E(domain.FailureServiceUnavailable, "patient record store returned status %s", res.Status())
	}
	return nil
}

// BreakerState reports the current circuit breaker state for diagnostics.
func (c *SearchClient) BreakerState() gobreaker.State {
	return c.breaker.State()
}
