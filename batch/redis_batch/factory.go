package redis_batch

import "context"

type SinkAdapter struct {
	connCfg ConnConfig
	cfg     SinkConfig
}

func NewSinkAdapter(connCfg ConnConfig, cfg SinkConfig) SinkAdapter {
	return SinkAdapter{connCfg: connCfg, cfg: cfg}
}

func (a SinkAdapter) Import(ctx context.Context, files []string) (int, error) {
	return ImportRecords(ctx, a.connCfg, a.cfg, files)
}
