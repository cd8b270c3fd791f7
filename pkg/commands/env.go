package commands

import (
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"tableflip.dev/levelreq/pkg/app"
	"tableflip.dev/levelreq/pkg/logging"
	"tableflip.dev/levelreq/pkg/metrics"
	"tableflip.dev/levelreq/pkg/remote"
	"tableflip.dev/levelreq/pkg/store"
	"tableflip.dev/levelreq/pkg/syncer"
)

// env is everything a command needs, built from the runtime settings.
type env struct {
	settings *store.Settings
	log      *logrus.Logger
	store    store.Persistence
	registry *prometheus.Registry
	service  *app.Service
}

func loadEnv() (*env, error) {
	settings, err := store.LoadSettings()
	if err != nil {
		return nil, err
	}
	log := logging.New(settings.LogLevel, os.Stderr, settings.LogJSON)

	p, err := store.Load(settings, log)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	client := remote.New(remote.Options{
		Endpoint:       settings.Endpoint,
		ReportEndpoint: settings.ReportEndpoint,
		Timeout:        settings.Timeout,
		Logger:         log,
		Metrics:        m,
		UserAgent:      "levelreq/" + version,
	})

	sync, err := syncer.New(syncer.Options{
		Store:    p,
		Remote:   client,
		Logger:   log,
		Metrics:  m,
		StopWait: client.Timeout(),
	})
	if err != nil {
		return nil, err
	}

	return &env{
		settings: settings,
		log:      log,
		store:    p,
		registry: registry,
		service: &app.Service{
			Sync:   sync,
			Remote: client,
			Logger: log,
		},
	}, nil
}
