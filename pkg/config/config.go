// Package config defines the streamer's persisted settings document: the
// remote app id, the admission filters, the submission page look and the
// messages shown to viewers.
package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"tableflip.dev/levelreq/pkg/filter"
	"tableflip.dev/levelreq/pkg/level"
)

// Background selects how the public submission page is painted.
type Background string

const (
	BackgroundGradient Background = "gradient"
	BackgroundColor    Background = "color"
	BackgroundImage    Background = "image"
)

// ParseBackground converts a settings value to a Background.
func ParseBackground(raw string) (Background, error) {
	b := Background(strings.ToLower(strings.TrimSpace(raw)))
	switch b {
	case BackgroundGradient, BackgroundColor, BackgroundImage:
		return b, nil
	case "solid", "solid color":
		return BackgroundColor, nil
	}
	return BackgroundGradient, fmt.Errorf("config: unknown background type %q", raw)
}

// Valid reports whether b is a known background type.
func (b Background) Valid() bool {
	switch b {
	case BackgroundGradient, BackgroundColor, BackgroundImage:
		return true
	}
	return false
}

// Template placeholders understood by RenderSubmitMessage.
const (
	PlaceholderLevelName    = "{levelname}"
	PlaceholderAuthor       = "{author}"
	PlaceholderStreamerName = "{streamername}"
)

// Default values.
const (
	DefaultColor1         = "#FF6B6B"
	DefaultColor2         = "#4ECDC4"
	DefaultSubmitMessage  = "Okay! {levelname} submitted to {streamername}"
	DefaultOfflineMessage = "he doesnt have the app on btw :<"
)

// Config is the persisted settings document.
type Config struct {
	AppID          string         `json:"app_id"`
	StreamerName   string         `json:"streamer_name"`
	Filters        filter.Filters `json:"filters"`
	BgType         Background     `json:"bg_type" validate:"oneof=gradient color image"`
	BgColor1       string         `json:"bg_color1" validate:"omitempty,hexcolor"`
	BgColor2       string         `json:"bg_color2" validate:"omitempty,hexcolor"`
	BgImage        string         `json:"bg_image"`
	SubmitMessage  string         `json:"submit_message"`
	OfflineMessage string         `json:"offline_message"`
	ShowDonate     bool           `json:"show_donate"`
	DonateShown    bool           `json:"donate_shown"`
}

// Default returns the built-in settings used when nothing is persisted.
func Default() Config {
	return Config{
		Filters:        filter.Default(),
		BgType:         BackgroundGradient,
		BgColor1:       DefaultColor1,
		BgColor2:       DefaultColor2,
		SubmitMessage:  DefaultSubmitMessage,
		OfflineMessage: DefaultOfflineMessage,
		ShowDonate:     true,
	}
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := c
	out.Filters = c.Filters.Clone()
	return out
}

// Authenticated reports whether an app id is configured.
func (c Config) Authenticated() bool {
	return strings.TrimSpace(c.AppID) != ""
}

// Overlay decodes data over base field by field. Fields missing from data
// keep their base value; enum fields holding unknown values fall back to the
// base value. When data cannot be decoded at all, base is returned unchanged
// together with the decode error.
func Overlay(base Config, data []byte) (Config, error) {
	cfg := base.Clone()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return base.Clone(), fmt.Errorf("config: decode: %w", err)
	}

	if bg, err := ParseBackground(string(cfg.BgType)); err == nil {
		cfg.BgType = bg
	} else {
		cfg.BgType = base.BgType
	}
	if mode, err := filter.ParseRatedMode(string(cfg.Filters.Rated)); err == nil {
		cfg.Filters.Rated = mode
	} else {
		cfg.Filters.Rated = base.Filters.Rated
	}
	if cfg.Filters.Lengths == nil {
		cfg.Filters.Lengths = base.Filters.Clone().Lengths
	} else {
		cfg.Filters.Lengths = canonicalLengths(cfg.Filters.Lengths)
	}
	if cfg.Filters.Difficulties == nil {
		cfg.Filters.Difficulties = base.Filters.Clone().Difficulties
	} else {
		cfg.Filters.Difficulties = canonicalDifficulties(cfg.Filters.Difficulties)
	}
	cfg.AppID = strings.TrimSpace(cfg.AppID)
	return cfg, nil
}

func canonicalLengths(in []level.Length) []level.Length {
	out := make([]level.Length, 0, len(in))
	seen := make(map[level.Length]bool, len(in))
	for _, raw := range in {
		l, err := level.ParseLength(string(raw))
		if err != nil || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

func canonicalDifficulties(in []level.Difficulty) []level.Difficulty {
	out := make([]level.Difficulty, 0, len(in))
	seen := make(map[level.Difficulty]bool, len(in))
	for _, raw := range in {
		d, err := level.ParseDifficulty(string(raw))
		if err != nil || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

// RemoteView is the part of the settings the submission site needs.
type RemoteView struct {
	StreamerName   string         `json:"streamer_name"`
	Filters        filter.Filters `json:"filters"`
	BgType         Background     `json:"bg_type"`
	BgColor1       string         `json:"bg_color1"`
	BgColor2       string         `json:"bg_color2"`
	BgImage        string         `json:"bg_image"`
	SubmitMessage  string         `json:"submit_message"`
	OfflineMessage string         `json:"offline_message"`
}

// RemoteView strips local-only fields (app id, donation flags). The image
// reference is only sent when the background type uses it.
func (c Config) RemoteView() RemoteView {
	view := RemoteView{
		StreamerName:   c.StreamerName,
		Filters:        c.Filters.Clone(),
		BgType:         c.BgType,
		BgColor1:       c.BgColor1,
		BgColor2:       c.BgColor2,
		SubmitMessage:  c.SubmitMessage,
		OfflineMessage: c.OfflineMessage,
	}
	if c.BgType == BackgroundImage {
		view.BgImage = c.BgImage
	}
	return view
}

// RenderSubmitMessage fills the submit message template for r.
func (c Config) RenderSubmitMessage(r level.Record) string {
	tmpl := c.SubmitMessage
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultSubmitMessage
	}
	return strings.NewReplacer(
		PlaceholderLevelName, r.Name,
		PlaceholderAuthor, r.Author,
		PlaceholderStreamerName, c.StreamerName,
	).Replace(tmpl)
}

// SubmissionURL is the public page viewers use to submit levels, or "" when
// no app id is configured.
func (c Config) SubmissionURL(site string) string {
	if !c.Authenticated() {
		return ""
	}
	return fmt.Sprintf("%s/%s/submit", strings.TrimRight(site, "/"), c.AppID)
}
