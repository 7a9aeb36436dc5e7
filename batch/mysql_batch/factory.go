package mysql_batch

import "context"

type SinkAdapter struct {
	db  DBConfig
	cfg SinkConfig
}

func NewSinkAdapter(db DBConfig, cfg SinkConfig) SinkAdapter {
	return SinkAdapter{db: db, cfg: cfg}
}

// Import opens the database and loads files.
func (a SinkAdapter) Import(ctx context.Context, files []string) (int, error) {
	db, err := Open(ctx, a.db)
	if err != nil {
		return 0, err
	}
	defer db.Close()
	return ImportRecords(ctx, db, a.cfg, files)
}
