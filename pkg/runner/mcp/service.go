// Package mcp provides the Model Context Protocol server integration for
// levelreq.
package mcp

import (
	"context"
	"errors"
	"strings"

	"tableflip.dev/levelreq/pkg/app"
	"tableflip.dev/levelreq/pkg/level"
)

// Service adapts the queue actions to transport-friendly values.
type Service struct {
	App  *app.Service
	Site string
}

var errNoApp = errors.New("queue service is not configured")

// LevelDTO is a transport-friendly projection of a level.
type LevelDTO struct {
	Position    int    `json:"position,omitempty"`
	ID          string `json:"id"`
	Title       string `json:"title"`
	Name        string `json:"name"`
	Author      string `json:"author"`
	Difficulty  string `json:"difficulty"`
	IsDemon     bool   `json:"isDemon"`
	Length      string `json:"length"`
	Rated       bool   `json:"rated"`
	Stars       int    `json:"stars"`
	Downloads   int    `json:"downloads"`
	Likes       int    `json:"likes"`
	Description string `json:"description,omitempty"`
	Flagged     bool   `json:"flagged"`
	FlagReason  string `json:"flagReason,omitempty"`
	Blacklisted bool   `json:"blacklisted"`
}

// NewService builds a service wrapper around the queue actions.
func NewService(a *app.Service, site string) *Service {
	return &Service{App: a, Site: site}
}

// ListQueue returns the queue in order, optionally only the admitted part.
func (s *Service) ListQueue(ctx context.Context, filtered bool) ([]LevelDTO, error) {
	if s.App == nil {
		return nil, errNoApp
	}
	var (
		records []level.Record
		err     error
	)
	if filtered {
		records, err = s.App.Admitted()
	} else {
		records, err = s.App.Queue()
	}
	if err != nil {
		return nil, err
	}
	return toDTOs(records, true), nil
}

// ListHistory returns the archived levels, oldest first.
func (s *Service) ListHistory(ctx context.Context) ([]LevelDTO, error) {
	if s.App == nil {
		return nil, errNoApp
	}
	records, err := s.App.History()
	if err != nil {
		return nil, err
	}
	return toDTOs(records, false), nil
}

// LevelByID locates a queued level.
func (s *Service) LevelByID(ctx context.Context, id string) (*LevelDTO, error) {
	if s.App == nil {
		return nil, errNoApp
	}
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("id is required")
	}
	r, err := s.App.Find(id)
	if err != nil {
		return nil, err
	}
	dto := toDTO(r)
	return &dto, nil
}

// DeleteLevel moves a queued level to the history.
func (s *Service) DeleteLevel(ctx context.Context, id string) (*LevelDTO, error) {
	if s.App == nil {
		return nil, errNoApp
	}
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("id is required")
	}
	r, err := s.App.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := toDTO(r)
	return &dto, nil
}

// ClearQueue moves every queued level to the history.
func (s *Service) ClearQueue(ctx context.Context) ([]LevelDTO, error) {
	if s.App == nil {
		return nil, errNoApp
	}
	cleared, err := s.App.Clear(ctx)
	if err != nil {
		return nil, err
	}
	return toDTOs(cleared, false), nil
}

// PickRandom chooses a queued level without changing anything.
func (s *Service) PickRandom(ctx context.Context) (*LevelDTO, error) {
	if s.App == nil {
		return nil, errNoApp
	}
	r, err := s.App.PickRandom()
	if err != nil {
		return nil, err
	}
	dto := toDTO(r)
	return &dto, nil
}

// ReportLevel sends a moderation report for a queued level.
func (s *Service) ReportLevel(ctx context.Context, id, reason string) error {
	if s.App == nil {
		return errNoApp
	}
	return s.App.Report(ctx, id, reason)
}

// ExportQueue renders the plain text export.
func (s *Service) ExportQueue(ctx context.Context, filtered bool) (string, error) {
	if s.App == nil {
		return "", errNoApp
	}
	var (
		records []level.Record
		err     error
	)
	if filtered {
		records, err = s.App.Admitted()
	} else {
		records, err = s.App.Queue()
	}
	if err != nil {
		return "", err
	}
	return app.Export(records), nil
}

// RefreshQueue fetches the queue from the site now and returns the result.
func (s *Service) RefreshQueue(ctx context.Context) ([]LevelDTO, error) {
	if s.App == nil {
		return nil, errNoApp
	}
	if err := s.App.Refresh(ctx); err != nil {
		return nil, err
	}
	return s.ListQueue(ctx, false)
}

// Status summarises the local state.
func (s *Service) Status(ctx context.Context) (app.Status, error) {
	if s.App == nil {
		return app.Status{}, errNoApp
	}
	return s.App.Status(s.Site)
}

func toDTOs(records []level.Record, positions bool) []LevelDTO {
	out := make([]LevelDTO, 0, len(records))
	for i, r := range records {
		dto := toDTO(r)
		if positions {
			dto.Position = i + 1
		}
		out = append(out, dto)
	}
	return out
}

func toDTO(r level.Record) LevelDTO {
	dto := LevelDTO{
		ID:          r.ID,
		Title:       r.Title(),
		Name:        r.Name,
		Author:      r.Author,
		Difficulty:  r.Difficulty.String(),
		IsDemon:     r.Difficulty.IsDemon(),
		Length:      r.Length.String(),
		Rated:       r.Rated,
		Stars:       r.Stars,
		Downloads:   r.Downloads,
		Likes:       r.Likes,
		Description: r.Description,
		Flagged:     r.Flagged,
		Blacklisted: r.Blacklisted,
	}
	if r.Flagged {
		dto.FlagReason = r.FlagReason
		if strings.TrimSpace(dto.FlagReason) == "" {
			dto.FlagReason = level.DefaultFlagReason
		}
	}
	return dto
}
