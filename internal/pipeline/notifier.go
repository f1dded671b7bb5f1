// Package pipeline orchestrates one notification: endpoint lookup, a single
// credential exchange, and a parallel send to every endpoint.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tinywideclouds/go-push-webhook/internal/metrics"
	"github.com/tinywideclouds/go-push-webhook/pkg/dispatch"
	"github.com/tinywideclouds/go-push-webhook/pkg/notification"
)

// Status is the outcome of a Notify call that did not fail.
type Status int

const (
	// StatusDispatched means every endpoint received exactly one send.
	StatusDispatched Status = iota
	// StatusNoEndpoints means the user has no registered endpoints.
	StatusNoEndpoints
	// StatusLookupFailed means the directory could not be read. Nothing was sent.
	StatusLookupFailed
)

func (s Status) String() string {
	switch s {
	case StatusDispatched:
		return "dispatched"
	case StatusNoEndpoints:
		return "no_endpoints"
	case StatusLookupFailed:
		return "lookup_failed"
	default:
		return "unknown"
	}
}

// Delivery reports what happened to one record.
type Delivery struct {
	Status Status
	// Results holds one gateway response per endpoint, in lookup order.
	Results []notification.DeliveryResult
	// Cause is set for StatusLookupFailed and matches notification.ErrLookup.
	Cause error
}

// Response builds the success payload returned to the webhook caller.
func (d Delivery) Response() notification.DispatchResponse {
	results := d.Results
	if results == nil {
		results = []notification.DeliveryResult{}
	}
	return notification.DispatchResponse{Success: true, Results: results}
}

type Notifier struct {
	directory   dispatch.Directory
	credentials dispatch.CredentialProvider
	dispatcher  dispatch.Dispatcher
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewNotifier wires the three collaborators. m may be nil.
func NewNotifier(
	directory dispatch.Directory,
	credentials dispatch.CredentialProvider,
	dispatcher dispatch.Dispatcher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Notifier {
	return &Notifier{
		directory:   directory,
		credentials: credentials,
		dispatcher:  dispatcher,
		metrics:     m,
		logger:      logger.With("component", "Notifier"),
	}
}

// Notify delivers record to every endpoint registered for its user.
//
// A lookup failure or an empty endpoint list is reported through the
// returned Delivery, not as an error. Errors are returned for a missing
// record (ErrMissingRecord), a failed credential exchange (ErrAuth) or any
// failed delivery call (ErrDelivery); in the last case partial results are
// discarded.
//
// Once sending starts the calls run to completion even if ctx is cancelled.
func (n *Notifier) Notify(ctx context.Context, record *notification.Record) (Delivery, error) {
	if record == nil {
		return Delivery{}, notification.ErrMissingRecord
	}
	log := n.logger.With("user_id", record.UserID.String())

	endpoints, err := n.directory.Lookup(ctx, record.UserID)
	if err != nil {
		n.metrics.Lookup(metrics.ResultError)
		cause := fmt.Errorf("%w: %w", notification.ErrLookup, err)
		log.Error("Endpoint lookup failed", "err", err)
		return Delivery{Status: StatusLookupFailed, Cause: cause}, nil
	}
	if len(endpoints) == 0 {
		n.metrics.Lookup(metrics.ResultEmpty)
		log.Info("No tokens found for user")
		return Delivery{Status: StatusNoEndpoints}, nil
	}
	n.metrics.Lookup(metrics.ResultOK)

	token, err := n.credentials.Authorize(ctx)
	if err != nil {
		n.metrics.Exchange(metrics.ResultError)
		if !errors.Is(err, notification.ErrAuth) {
			err = fmt.Errorf("%w: %w", notification.ErrAuth, err)
		}
		log.Error("Credential exchange failed", "err", err)
		return Delivery{}, err
	}
	n.metrics.Exchange(metrics.ResultOK)

	results, err := n.fanOut(context.WithoutCancel(ctx), endpoints, record, token)
	if err != nil {
		log.Error("Dispatch failed", "endpoints", len(endpoints), "err", err)
		return Delivery{}, err
	}

	log.Info("Dispatched notification", "endpoints", len(endpoints))
	return Delivery{Status: StatusDispatched, Results: results}, nil
}

// fanOut sends to all endpoints concurrently and waits for every call.
// The first error is returned once all calls have finished.
func (n *Notifier) fanOut(
	ctx context.Context,
	endpoints []notification.DeliveryEndpoint,
	record *notification.Record,
	token notification.AccessToken,
) ([]notification.DeliveryResult, error) {
	start := time.Now()
	defer func() { n.metrics.Dispatched(time.Since(start)) }()

	results := make([]notification.DeliveryResult, len(endpoints))
	var g errgroup.Group
	for i, endpoint := range endpoints {
		g.Go(func() error {
			result, err := n.dispatcher.Send(ctx, endpoint, record, token)
			if err != nil {
				n.metrics.Delivery(metrics.ResultError)
				if !errors.Is(err, notification.ErrDelivery) {
					err = fmt.Errorf("%w: %w", notification.ErrDelivery, err)
				}
				return err
			}
			if isRejection(result) {
				n.metrics.Delivery(metrics.ResultRejected)
			} else {
				n.metrics.Delivery(metrics.ResultOK)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// isRejection reports whether the gateway answered with an error object.
func isRejection(result notification.DeliveryResult) bool {
	var body struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(result, &body); err != nil {
		return false
	}
	return len(body.Error) > 0 && string(body.Error) != "null"
}
