package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	iocsFile     = "iocs_results.json"
	clustersFile = "clusters.json"

	descriptionLimit = 200
)

// Document is one per-article snapshot written by the pre-processing stage.
type Document struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Source      string `json:"source"`
	Text        string `json:"text"`
	Description string `json:"description"`
}

// Entry is a listing row derived from a Document.
type Entry struct {
	Title       string
	Link        string
	Source      string
	Description string
}

// Reader reads the read-only local snapshot files produced by external stages.
type Reader struct {
	articlesDir string
	resultsDir  string
	log         logrus.FieldLogger
}

// NewReader creates a Reader over the per-article snapshot directory and the results directory.
func NewReader(articlesDir, resultsDir string, logger logrus.FieldLogger) *Reader {
	return &Reader{
		articlesDir: articlesDir,
		resultsDir:  resultsDir,
		log:         logger.WithField("component", "snapshot"),
	}
}

// Entries reads every *.json document in the articles directory, in file name order.
// Unreadable files and documents without a link are skipped. A missing directory yields no entries.
func (r *Reader) Entries() ([]Entry, error) {
	paths, err := filepath.Glob(filepath.Join(r.articlesDir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots in %s: %w", r.articlesDir, err)
	}
	sort.Strings(paths)

	entries := make([]Entry, 0, len(paths))
	for _, p := range paths {
		var doc Document
		if err := readJSON(p, &doc); err != nil {
			r.log.WithError(err).WithField("file", p).Warn("Skipping unreadable snapshot")
			continue
		}
		if doc.Link == "" {
			continue
		}
		entries = append(entries, toEntry(doc, strings.TrimSuffix(filepath.Base(p), ".json")))
	}
	return entries, nil
}

func toEntry(doc Document, stem string) Entry {
	e := Entry{
		Title:       doc.Title,
		Link:        doc.Link,
		Source:      doc.Source,
		Description: excerpt(doc.Text),
	}
	if e.Description == "" {
		e.Description = doc.Description
	}
	if e.Title == "" {
		e.Title = stem
	}
	if e.Source == "" {
		e.Source = "Unknown"
	}
	return e
}

func excerpt(text string) string {
	r := []rune(text)
	if len(r) <= descriptionLimit {
		return text
	}
	return string(r[:descriptionLimit]) + "..."
}

// Indicators returns the contents of the IOC snapshot, or nil when the file does not exist.
func (r *Reader) Indicators() ([]any, error) {
	var out []any
	found, err := r.readOptional(iocsFile, &out)
	if err != nil || !found {
		return nil, err
	}
	return out, nil
}

// Clusters returns the contents of the cluster snapshot, or nil when the file does not exist.
func (r *Reader) Clusters() (map[string]any, error) {
	var out map[string]any
	found, err := r.readOptional(clustersFile, &out)
	if err != nil || !found {
		return nil, err
	}
	return out, nil
}

func (r *Reader) readOptional(name string, v any) (bool, error) {
	err := readJSON(filepath.Join(r.resultsDir, name), v)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
