package mysql_batch

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/emptyOVO/yelpdp-go/record"
	log "github.com/sirupsen/logrus"
)

// Row is one output record keyed by its key field.
type Row struct {
	Key string
	Doc string
}

// ReadRows reads the JSON records of files. Records missing the key field
// fail the read.
func ReadRows(files []string, keyField string) ([]Row, error) {
	var rows []Row
	for _, file := range files {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			r, err := record.Parse(line)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			key, err := r.String(keyField)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			rows = append(rows, Row{Key: key, Doc: line})
		}
		if err := scanner.Err(); err != nil {
			f.Close()
			return nil, err
		}
		f.Close()
	}
	return rows, nil
}

// ImportRecords upserts the records of files into the target table in one
// transaction. A later record with the same key replaces an earlier one.
func ImportRecords(ctx context.Context, db *sql.DB, cfg SinkConfig, files []string) (int, error) {
	cfg.WithDefaults()
	if cfg.Table == "" {
		return 0, fmt.Errorf("target table is required")
	}
	if cfg.KeyField == "" {
		return 0, fmt.Errorf("key field is required")
	}
	table, err := quoteIdentifier(cfg.Table)
	if err != nil {
		return 0, err
	}
	keyCol, err := quoteIdentifier(cfg.KeyColumn)
	if err != nil {
		return 0, err
	}
	docCol, err := quoteIdentifier(cfg.DocColumn)
	if err != nil {
		return 0, err
	}

	rows, err := ReadRows(files, cfg.KeyField)
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, createTableSQL(table, keyCol, docCol)); err != nil {
		return 0, err
	}
	if cfg.Replace {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, table)); err != nil {
			return 0, err
		}
	}
	for start := 0; start < len(rows); start += cfg.BatchSize {
		end := start + cfg.BatchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]
		args := make([]interface{}, 0, len(batch)*2)
		for _, row := range batch {
			args = append(args, row.Key, row.Doc)
		}
		if _, err := tx.ExecContext(ctx, upsertSQL(table, keyCol, docCol, len(batch)), args...); err != nil {
			return 0, err
		}
		log.Debugf("[MySQLSink] upserted %d/%d rows into %s", end, len(rows), cfg.Table)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func createTableSQL(table, keyCol, docCol string) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  %s VARCHAR(255) NOT NULL,
  %s JSON NOT NULL,
  PRIMARY KEY (%s)
)`, table, keyCol, docCol, keyCol)
}

func upsertSQL(table, keyCol, docCol string, n int) string {
	values := make([]string, n)
	for i := range values {
		values[i] = "(?, ?)"
	}
	return fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES %s ON DUPLICATE KEY UPDATE %s=VALUES(%s)",
		table, keyCol, docCol, strings.Join(values, ","), docCol, docCol)
}
