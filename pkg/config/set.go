package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"tableflip.dev/levelreq/pkg/filter"
	"tableflip.dev/levelreq/pkg/level"
)

// Keys accepted by Set, named after the persisted JSON keys. Filter entries
// take comma separated lists.
const (
	KeyStreamerName   = "streamer_name"
	KeyBgType         = "bg_type"
	KeyBgColor1       = "bg_color1"
	KeyBgColor2       = "bg_color2"
	KeyBgImage        = "bg_image"
	KeySubmitMessage  = "submit_message"
	KeyOfflineMessage = "offline_message"
	KeyShowDonate     = "show_donate"
	KeyLengths        = "length"
	KeyDifficulties   = "difficulty"
	KeyRated          = "rated"
)

var setters = map[string]func(*Config, string) error{
	KeyStreamerName:   func(c *Config, v string) error { c.StreamerName = strings.TrimSpace(v); return nil },
	KeyBgColor1:       func(c *Config, v string) error { c.BgColor1 = strings.TrimSpace(v); return nil },
	KeyBgColor2:       func(c *Config, v string) error { c.BgColor2 = strings.TrimSpace(v); return nil },
	KeyBgImage:        func(c *Config, v string) error { c.BgImage = strings.TrimSpace(v); return nil },
	KeySubmitMessage:  func(c *Config, v string) error { c.SubmitMessage = v; return nil },
	KeyOfflineMessage: func(c *Config, v string) error { c.OfflineMessage = v; return nil },
	KeyBgType: func(c *Config, v string) error {
		bg, err := ParseBackground(v)
		if err != nil {
			return err
		}
		c.BgType = bg
		return nil
	},
	KeyShowDonate: func(c *Config, v string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %s: %w", KeyShowDonate, err)
		}
		c.ShowDonate = b
		return nil
	},
	KeyLengths: func(c *Config, v string) error {
		out := []level.Length{}
		for _, item := range splitList(v) {
			l, err := level.ParseLength(item)
			if err != nil {
				return err
			}
			out = append(out, l)
		}
		c.Filters.Lengths = canonicalLengths(out)
		return nil
	},
	KeyDifficulties: func(c *Config, v string) error {
		out := []level.Difficulty{}
		for _, item := range splitList(v) {
			d, err := level.ParseDifficulty(item)
			if err != nil {
				return err
			}
			out = append(out, d)
		}
		c.Filters.Difficulties = canonicalDifficulties(out)
		return nil
	},
	KeyRated: func(c *Config, v string) error {
		m, err := filter.ParseRatedMode(v)
		if err != nil {
			return err
		}
		c.Filters.Rated = m
		return nil
	},
}

// SettableKeys lists the keys Set understands, sorted.
func SettableKeys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set assigns the textual value to key. "all" selects every length or
// difficulty; an empty list admits nothing.
func (c *Config) Set(key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	fn, ok := setters[key]
	if !ok {
		return fmt.Errorf("config: unknown key %q (one of %s)", key, strings.Join(SettableKeys(), ", "))
	}
	if strings.EqualFold(strings.TrimSpace(value), "all") {
		switch key {
		case KeyLengths:
			c.Filters.Lengths = level.AllLengths()
			return nil
		case KeyDifficulties:
			c.Filters.Difficulties = level.AllDifficulties()
			return nil
		}
	}
	return fn(c, value)
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
