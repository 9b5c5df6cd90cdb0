package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mercator-hq/revkeep/pkg/cli"
	"mercator-hq/revkeep/pkg/config"
	"mercator-hq/revkeep/pkg/revision"
)

// contentFile is the layout of a file accepted by the import command.
type contentFile struct {
	Records []recordEntry `yaml:"records"`
}

type recordEntry struct {
	ID      int64           `yaml:"id"`
	Type    string          `yaml:"type"`
	Title   string          `yaml:"title"`
	Owner   string          `yaml:"owner"`
	Status  revision.Status `yaml:"status"`
	Changed time.Time       `yaml:"changed"`

	// Current defaults to the highest revision id.
	Current   int64           `yaml:"current"`
	Revisions []revisionEntry `yaml:"revisions"`
}

type revisionEntry struct {
	ID           int64           `yaml:"id"`
	Timestamp    time.Time       `yaml:"timestamp"`
	Translations map[string]bool `yaml:"translations"`
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Load records and revisions into the content store",
	Long: `Load records and their revisions from a YAML (or JSON) file into the
configured content store. Existing records and revisions with the same ids
are replaced.

File layout:
  records:
    - id: 1
      type: article
      title: Hello
      owner: admin
      status: published
      changed: 2024-01-10T00:00:00Z
      revisions:
        - id: 1
          timestamp: 2023-01-01T00:00:00Z
          translations: {en: true}
        - id: 2
          timestamp: 2024-01-10T00:00:00Z

The current revision is the highest revision id unless "current" is set.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	content, err := readContentFile(args[0])
	if err != nil {
		return cli.NewConfigError("file", err.Error())
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, config.MustGetConfig(), nil)
	if err != nil {
		return cli.NewCommandError("import", err)
	}
	defer a.Close()

	w, ok := a.store.(revision.Writer)
	if !ok {
		return cli.NewCommandError("import", fmt.Errorf("store backend %q does not accept writes", a.cfg.Store.Backend))
	}

	var revisions int
	for _, entry := range content.Records {
		rec, revs := entry.toRevisionTypes()
		if err := w.PutRecord(ctx, rec); err != nil {
			return cli.NewCommandError("import", err)
		}
		for _, rev := range revs {
			if err := w.PutRevision(ctx, rev); err != nil {
				return cli.NewCommandError("import", err)
			}
		}
		revisions += len(revs)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %d records and %d revisions\n", len(content.Records), revisions)
	return nil
}

func readContentFile(path string) (*contentFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}

	var content contentFile
	if err := yaml.Unmarshal(data, &content); err != nil {
		return nil, fmt.Errorf("failed to parse %q: %w", path, err)
	}

	for i, entry := range content.Records {
		if err := entry.validate(); err != nil {
			return nil, fmt.Errorf("records[%d]: %w", i, err)
		}
	}
	return &content, nil
}

func (e *recordEntry) validate() error {
	if e.ID <= 0 {
		return fmt.Errorf("id must be positive")
	}
	if e.Type == "" {
		return fmt.Errorf("record %d: type is required", e.ID)
	}
	if len(e.Revisions) == 0 {
		return fmt.Errorf("record %d: at least one revision is required", e.ID)
	}

	seen := make(map[int64]bool, len(e.Revisions))
	for _, rev := range e.Revisions {
		if rev.ID <= 0 {
			return fmt.Errorf("record %d: revision id must be positive", e.ID)
		}
		if seen[rev.ID] {
			return fmt.Errorf("record %d: duplicate revision %d", e.ID, rev.ID)
		}
		seen[rev.ID] = true
	}
	if e.Current != 0 && !seen[e.Current] {
		return fmt.Errorf("record %d: current revision %d is not listed", e.ID, e.Current)
	}
	return nil
}

// toRevisionTypes converts the entry, filling the defaults for the current
// revision, status and changed time.
func (e *recordEntry) toRevisionTypes() (*revision.Record, []*revision.Revision) {
	current := e.Current
	var latest time.Time
	for _, rev := range e.Revisions {
		if e.Current == 0 && rev.ID > current {
			current = rev.ID
		}
		if rev.Timestamp.After(latest) {
			latest = rev.Timestamp
		}
	}

	rec := &revision.Record{
		ID:                e.ID,
		Type:              e.Type,
		CurrentRevisionID: current,
		Owner:             e.Owner,
		Status:            e.Status,
		Title:             e.Title,
		Changed:           e.Changed,
	}
	if rec.Status == "" {
		rec.Status = revision.StatusPublished
	}
	if rec.Changed.IsZero() {
		rec.Changed = latest
	}

	revs := make([]*revision.Revision, 0, len(e.Revisions))
	for _, r := range e.Revisions {
		revs = append(revs, &revision.Revision{
			ID:           r.ID,
			RecordID:     e.ID,
			Timestamp:    r.Timestamp,
			IsDefault:    r.ID == current,
			Translations: r.Translations,
		})
	}
	return rec, revs
}
