package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterbourgon/diskv/v3"
	"github.com/sirupsen/logrus"

	"tableflip.dev/levelreq/pkg/config"
	"tableflip.dev/levelreq/pkg/level"
	"tableflip.dev/levelreq/pkg/logging"
)

// ErrIO is wrapped by every failed save.
var ErrIO = errors.New("store: io error")

// Document names one of the persisted JSON documents.
type Document string

const (
	DocConfig  Document = "config"
	DocQueue   Document = "queue"
	DocHistory Document = "history"
)

// Documents returns every document the store manages.
func Documents() []Document {
	return []Document{DocConfig, DocQueue, DocHistory}
}

// FileName is the on-disk name of d inside the base directory.
func (d Document) FileName() string {
	return string(d) + documentExt
}

const (
	documentExt = ".json"
	tempDirName = ".tmp"
)

// Persistence defines the persistence contract for the settings, queue and
// history documents. Loads never fail: a missing or unreadable document
// yields its built-in default. Saves report failures wrapped in ErrIO.
type Persistence interface {
	BasePath() string
	LoadConfig() config.Config
	LoadQueue() []level.Record
	LoadHistory() []level.Record
	SaveConfig(cfg config.Config) error
	SaveQueue(queue []level.Record) error
	SaveHistory(history []level.Record) error
	Watch(ctx context.Context) (<-chan Event, error)
}

// Locator tells Load where the documents live.
type Locator interface {
	BasePath() string
}

// Load creates a Persistence backed by diskv in the directory named by loc,
// creating the directory if it is absent. A nil loc reads the runtime
// settings.
func Load(loc Locator, log logrus.FieldLogger) (Persistence, error) {
	if loc == nil {
		s, err := LoadSettings()
		if err != nil {
			return nil, err
		}
		loc = s
	}

	basePath := strings.TrimSpace(loc.BasePath())
	if basePath == "" {
		return nil, errors.New("store: base path unknown")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("%w: ensure base path: %v", ErrIO, err)
	}

	return &persistence{
		d: diskv.New(diskv.Options{
			BasePath:          basePath,
			TempDir:           filepath.Join(basePath, tempDirName),
			AdvancedTransform: keyToPathTransform,
			InverseTransform:  pathToKeyTransform,
			// Documents are re-read from disk on every load so edits made
			// by another process or by hand are visible.
			CacheSizeMax: 0,
		}),
		basePath: basePath,
		log:      logging.OrDiscard(log).WithField("component", "store"),
	}, nil
}

type persistence struct {
	d        *diskv.Diskv
	basePath string
	log      logrus.FieldLogger
}

func (p *persistence) BasePath() string {
	return p.basePath
}

// read returns the raw document, or nil when it does not exist or is empty.
func (p *persistence) read(doc Document) []byte {
	val, err := p.d.Read(string(doc))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			p.log.WithField("doc", doc).WithError(err).Warn("read failed, using defaults")
		}
		return nil
	}
	if len(bytes.TrimSpace(val)) == 0 {
		return nil
	}
	return val
}

func (p *persistence) LoadConfig() config.Config {
	data := p.read(DocConfig)
	if data == nil {
		return config.Default()
	}
	cfg, err := config.Overlay(config.Default(), data)
	if err != nil {
		p.log.WithField("doc", DocConfig).WithError(err).Warn("decode failed, using defaults")
	}
	return cfg
}

func (p *persistence) LoadQueue() []level.Record {
	return p.loadRecords(DocQueue)
}

func (p *persistence) LoadHistory() []level.Record {
	return p.loadRecords(DocHistory)
}

// loadRecords decodes an array document. An undecodable array yields an empty
// list; individual undecodable elements are skipped.
func (p *persistence) loadRecords(doc Document) []level.Record {
	data := p.read(doc)
	if data == nil {
		return []level.Record{}
	}
	log := p.log.WithField("doc", doc)

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		log.WithError(err).Warn("decode failed, using empty list")
		return []level.Record{}
	}
	records := make([]level.Record, 0, len(raw))
	for i, item := range raw {
		var r level.Record
		if err := json.Unmarshal(item, &r); err != nil {
			log.WithError(err).WithField("index", i).Warn("skipping undecodable record")
			continue
		}
		if r.ID == "" {
			log.WithField("index", i).Warn("skipping record without id")
			continue
		}
		records = append(records, r)
	}
	if doc == DocQueue {
		var dropped int
		records, dropped = level.Dedupe(records)
		if dropped > 0 {
			log.WithField("dropped", dropped).Warn("dropped duplicate queue ids")
		}
	}
	return records
}

func (p *persistence) SaveConfig(cfg config.Config) error {
	return p.write(DocConfig, cfg)
}

func (p *persistence) SaveQueue(queue []level.Record) error {
	return p.write(DocQueue, level.Clone(queue))
}

func (p *persistence) SaveHistory(history []level.Record) error {
	return p.write(DocHistory, level.Clone(history))
}

// write stores v as indented JSON. diskv writes into TempDir and renames over
// the target, so a concurrent load sees either the old or the new document.
func (p *persistence) write(doc Document, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrIO, doc, err)
	}
	if err := p.d.Write(string(doc), data); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrIO, doc, err)
	}
	p.log.WithField("doc", doc).WithField("bytes", len(data)).Debug("saved")
	return nil
}

func keyToPathTransform(key string) *diskv.PathKey {
	return &diskv.PathKey{
		Path:     []string{},
		FileName: key + documentExt,
	}
}

func pathToKeyTransform(pathKey *diskv.PathKey) string {
	return strings.TrimSuffix(pathKey.FileName, documentExt)
}

// documentForPath maps a file path inside the base directory to its document.
func (p *persistence) documentForPath(path string) (Document, bool) {
	rel, err := filepath.Rel(p.basePath, path)
	if err != nil || strings.Contains(rel, string(os.PathSeparator)) {
		return "", false
	}
	for _, doc := range Documents() {
		if rel == doc.FileName() {
			return doc, true
		}
	}
	return "", false
}
