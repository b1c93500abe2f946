// Package metrics holds the relay's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dropbox"

// Finalize triggers.
const (
	TriggerOwner      = "owner"
	TriggerCapability = "capability"
	TriggerSweep      = "sweep"
)

// Metrics is registered once per process on an injected Registerer, so tests
// can use a private registry.
type Metrics struct {
	HTTPRequests       *prometheus.CounterVec
	MessagesPosted     prometheus.Counter
	MessagesDeleted    prometheus.Counter
	PairingCodesIssued prometheus.Counter
	PairingRedemptions *prometheus.CounterVec
	CaptureUploads     prometheus.Counter
	CaptureUploadBytes prometheus.Counter
	CaptureFinalized   *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Number of HTTP requests by route and status",
			},
			[]string{"route", "status"},
		),
		MessagesPosted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_posted_total",
				Help:      "Number of mailbox messages stored",
			},
		),
		MessagesDeleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_deleted_total",
				Help:      "Number of mailbox messages acknowledged",
			},
		),
		PairingCodesIssued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pairing_codes_issued_total",
				Help:      "Number of pairing codes issued",
			},
		),
		PairingRedemptions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pairing_redemptions_total",
				Help:      "Pairing code redemptions by result",
			},
			[]string{"result"},
		),
		CaptureUploads: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "capture",
				Name:      "uploads_total",
				Help:      "Number of capture files uploaded",
			},
		),
		CaptureUploadBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "capture",
				Name:      "upload_bytes_total",
				Help:      "Bytes of capture files uploaded",
			},
		),
		CaptureFinalized: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "capture",
				Name:      "finalized_total",
				Help:      "Capture sessions finalized by trigger",
			},
			[]string{"trigger"},
		),
	}

	reg.MustRegister(
		m.HTTPRequests,
		m.MessagesPosted,
		m.MessagesDeleted,
		m.PairingCodesIssued,
		m.PairingRedemptions,
		m.CaptureUploads,
		m.CaptureUploadBytes,
		m.CaptureFinalized,
	)
	return m
}

// NewNop returns collectors bound to a throwaway registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
