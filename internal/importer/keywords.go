package importer

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"bounty-watch/leadscout/internal/models"
	"bounty-watch/leadscout/internal/storage"
)

// Importer loads watch-phrase rules from a CSV file into the store. The
// store, not the file, is the durable source of truth afterwards.
type Importer struct {
	repo *storage.Repository
}

// NewImporter creates a new keyword importer
func NewImporter(repo *storage.Repository) *Importer {
	return &Importer{repo: repo}
}

// ImportKeywords reads phrase rows from a CSV file and upserts them.
// Expected columns: phrase, comments (optional), status (optional,
// defaults to active). A header row starting with "phrase" is skipped.
func (i *Importer) ImportKeywords(ctx context.Context, csvPath string) error {
	log.Info().Str("csv", csvPath).Msg("Starting keyword import")

	f, err := os.Open(csvPath)
	if err != nil {
		return fmt.Errorf("failed to open keywords CSV: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // rows may omit trailing columns

	imported := 0
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to parse CSV line %d: %w", line, err)
		}

		phrase := strings.TrimSpace(record[0])
		if phrase == "" {
			continue
		}
		if line == 1 && strings.EqualFold(phrase, "phrase") {
			continue
		}

		kw := models.NewKeyword(phrase)
		if len(record) > 1 && strings.TrimSpace(record[1]) != "" {
			kw.Comments = sql.NullString{String: strings.TrimSpace(record[1]), Valid: true}
		}
		if len(record) > 2 && strings.TrimSpace(record[2]) != "" {
			kw.Status = strings.TrimSpace(record[2])
		}

		if err := i.repo.UpsertKeyword(ctx, kw); err != nil {
			return fmt.Errorf("failed to import keyword %q: %w", phrase, err)
		}
		imported++
	}

	log.Info().Int("keywords", imported).Msg("Import completed successfully")
	return nil
}
