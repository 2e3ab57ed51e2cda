// Package service is the application layer shared by the HTTP, RPC and CLI
// front ends.
package service

import (
	"errors"

	"github.com/xiaot623/gogo/marketing/internal/adapter/ingress"
	"github.com/xiaot623/gogo/marketing/internal/config"
	"github.com/xiaot623/gogo/marketing/internal/conversation"
	"github.com/xiaot623/gogo/marketing/internal/metrics"
	"github.com/xiaot623/gogo/marketing/internal/observe"
	"github.com/xiaot623/gogo/marketing/internal/report"
	store "github.com/xiaot623/gogo/marketing/internal/repository"
	"github.com/xiaot623/gogo/marketing/internal/router"
	"github.com/xiaot623/gogo/marketing/internal/tools"
)

var (
	// ErrEmptyMessage rejects a chat request without text.
	ErrEmptyMessage = errors.New("message is required")
	// ErrEmptyQuery rejects a search without terms.
	ErrEmptyQuery = errors.New("query is required")
	// ErrSessionNotFound is returned for reads of an unknown session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrToolNotFound is returned when invoking an unregistered tool.
	ErrToolNotFound = errors.New("tool not found")
)

// Components are the collaborators a Service is assembled from.
type Components struct {
	Store    store.Store
	Log      *conversation.Log
	Router   *router.Router
	Registry *router.Registry
	Detector *router.Detector
	Reports  *report.Store
	Tools    *tools.Registry
	Config   *config.Config
	Obs      *observe.Observer
	Metrics  *metrics.Metrics
	Ingress  *ingress.Client
}

type Service struct {
	store    store.Store
	log      *conversation.Log
	router   *router.Router
	registry *router.Registry
	detector *router.Detector
	reports  *report.Store
	tools    *tools.Registry
	config   *config.Config
	obs      *observe.Observer
	metrics  *metrics.Metrics
	ingress  *ingress.Client
}

func New(c Components) *Service {
	if c.Obs == nil {
		c.Obs = observe.Discard()
	}
	if c.Config == nil {
		c.Config = &config.Config{}
	}
	if c.Log == nil && c.Store != nil {
		c.Log = conversation.New(c.Store)
	}
	return &Service{
		store:    c.Store,
		log:      c.Log,
		router:   c.Router,
		registry: c.Registry,
		detector: c.Detector,
		reports:  c.Reports,
		tools:    c.Tools,
		config:   c.Config,
		obs:      c.Obs,
		metrics:  c.Metrics,
		ingress:  c.Ingress,
	}
}

// Metrics returns the collectors served on /metrics.
func (s *Service) Metrics() *metrics.Metrics {
	return s.metrics
}

// Close stops the ingress worker and releases the store.
func (s *Service) Close() error {
	_ = s.ingress.Close()
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}
