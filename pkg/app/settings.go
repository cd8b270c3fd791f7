package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tableflip.dev/levelreq/pkg/config"
	"tableflip.dev/levelreq/pkg/filter"
	"tableflip.dev/levelreq/pkg/level"
)

var errNoPrompt = errors.New("app: donation prompt not due")

// Settings returns the current settings.
func (s *Service) Settings() (config.Config, error) {
	if s.Sync == nil {
		return config.Config{}, errNoSync
	}
	return s.Sync.Config(), nil
}

// UpdateSettings applies fn, validates the result, persists it and pushes
// the public part to the site. Nothing is saved when fn or validation fails.
func (s *Service) UpdateSettings(ctx context.Context, fn func(*config.Config) error) (config.Config, error) {
	if s.Sync == nil {
		return config.Config{}, errNoSync
	}
	cfg, err := s.Sync.UpdateConfig(func(c *config.Config) error {
		if err := fn(c); err != nil {
			return err
		}
		c.AppID = strings.TrimSpace(c.AppID)
		return c.Validate()
	})
	if err != nil {
		return config.Config{}, err
	}
	s.pushConfig(ctx, cfg)
	return cfg, nil
}

// Authenticate stores the app id the site issued for this streamer.
func (s *Service) Authenticate(ctx context.Context, appID string) (config.Config, error) {
	appID = strings.TrimSpace(appID)
	if appID == "" {
		return config.Config{}, ErrEmptyAppID
	}
	return s.UpdateSettings(ctx, func(c *config.Config) error {
		c.AppID = appID
		return nil
	})
}

// TakeDonationPrompt reports whether the one-time donation notice should be
// shown now. It returns true at most once; the shown flag is persisted.
func (s *Service) TakeDonationPrompt() (bool, error) {
	if s.Sync == nil {
		return false, errNoSync
	}
	_, err := s.Sync.UpdateConfig(func(c *config.Config) error {
		if !c.ShowDonate || c.DonateShown {
			return errNoPrompt
		}
		c.DonateShown = true
		return nil
	})
	if errors.Is(err, errNoPrompt) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DisableDonationPrompt turns the donation notice off for good.
func (s *Service) DisableDonationPrompt() error {
	if s.Sync == nil {
		return errNoSync
	}
	_, err := s.Sync.UpdateConfig(func(c *config.Config) error {
		c.ShowDonate = false
		return nil
	})
	return err
}

// SubmitMessage renders the chat reply for the level with id, looking in the
// queue first and then the history.
func (s *Service) SubmitMessage(id string) (string, error) {
	if s.Sync == nil {
		return "", errNoSync
	}
	snap := s.Sync.Snapshot()
	cfg := s.Sync.Config()
	if i := level.Index(snap.Queue, id); i >= 0 {
		return cfg.RenderSubmitMessage(snap.Queue[i]), nil
	}
	// Latest archived copy wins.
	for i := len(snap.History) - 1; i >= 0; i-- {
		if snap.History[i].ID == strings.TrimSpace(id) {
			return cfg.RenderSubmitMessage(snap.History[i]), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSpace(id))
}

// Status summarises the engine for the status command.
type Status struct {
	Authenticated bool   `json:"authenticated"`
	AppID         string `json:"app_id,omitempty"`
	StreamerName  string `json:"streamer_name,omitempty"`
	SubmissionURL string `json:"submission_url,omitempty"`
	Queued        int    `json:"queued"`
	Admitted      int    `json:"admitted"`
	Flagged       int    `json:"flagged"`
	Archived      int    `json:"archived"`
	Polling       bool   `json:"polling"`
}

// Status reports the current counts. site is the submission site base URL.
func (s *Service) Status(site string) (Status, error) {
	if s.Sync == nil {
		return Status{}, errNoSync
	}
	cfg := s.Sync.Config()
	snap := s.Sync.Snapshot()
	st := Status{
		Authenticated: cfg.Authenticated(),
		AppID:         cfg.AppID,
		StreamerName:  cfg.StreamerName,
		SubmissionURL: cfg.SubmissionURL(site),
		Queued:        len(snap.Queue),
		Admitted:      len(filter.Apply(snap.Queue, cfg.Filters)),
		Archived:      len(snap.History),
		Polling:       s.Sync.Polling(),
	}
	for _, r := range snap.Queue {
		if r.Flagged {
			st.Flagged++
		}
	}
	return st, nil
}

func (s *Service) pushConfig(ctx context.Context, cfg config.Config) {
	if s.Remote == nil || !cfg.Authenticated() {
		return
	}
	s.Remote.PushConfig(ctx, cfg.AppID, cfg.RemoteView())
}
