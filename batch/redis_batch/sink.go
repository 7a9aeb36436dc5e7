package redis_batch

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/emptyOVO/yelpdp-go/record"
	log "github.com/sirupsen/logrus"
)

// SinkConfig configures storing job output records as string keys
// <key_prefix><record key field> holding the JSON record.
type SinkConfig struct {
	KeyPrefix string `json:"key_prefix"`
	// KeyField is the record field naming the key. An empty field means
	// the job's default.
	KeyField   string `json:"key_field"`
	TTLSeconds int    `json:"ttl_seconds"`
	Replace    bool   `json:"replace"`
	Pipeline   int    `json:"pipeline"`
}

func (c *SinkConfig) WithDefaults() {
	if c.KeyPrefix == "" {
		c.KeyPrefix = "yelp:"
	}
	if c.Pipeline <= 0 {
		c.Pipeline = 500
	}
}

// ImportRecords SETs every record of files and returns how many were
// written. Commands are pipelined in groups of cfg.Pipeline.
func ImportRecords(ctx context.Context, connCfg ConnConfig, cfg SinkConfig, files []string) (int, error) {
	cfg.WithDefaults()
	if cfg.KeyField == "" {
		return 0, fmt.Errorf("key field is required")
	}
	c, err := openRedis(ctx, connCfg)
	if err != nil {
		return 0, err
	}
	defer c.close()

	if cfg.Replace {
		n, err := deleteByPrefix(c, cfg.KeyPrefix)
		if err != nil {
			return 0, err
		}
		log.Debugf("[RedisSink] deleted %d keys under %s", n, cfg.KeyPrefix)
	}

	written, pending := 0, 0
	drain := func() error {
		if err := c.flush(); err != nil {
			return err
		}
		for ; pending > 0; pending-- {
			if _, err := c.receive(); err != nil {
				return err
			}
			written++
		}
		return nil
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		f, err := os.Open(file)
		if err != nil {
			return written, err
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
				return written, fmt.Errorf("%s: %w", file, err)
			}
			key, err := r.String(cfg.KeyField)
			if err != nil {
				f.Close()
				return written, fmt.Errorf("%s: %w", file, err)
			}
			args := []string{cfg.KeyPrefix + key, line}
			if cfg.TTLSeconds > 0 {
				args = append(args, "EX", strconv.Itoa(cfg.TTLSeconds))
			}
			if err := c.send("SET", args...); err != nil {
				f.Close()
				return written, err
			}
			if pending++; pending >= cfg.Pipeline {
				if err := drain(); err != nil {
					f.Close()
					return written, err
				}
			}
		}
		if err := scanner.Err(); err != nil {
			f.Close()
			return written, err
		}
		f.Close()
	}
	if err := drain(); err != nil {
		return written, err
	}
	return written, nil
}

// matchPrefix is the SCAN MATCH pattern for keys starting with prefix.
func matchPrefix(prefix string) string {
	var b strings.Builder
	for _, r := range prefix {
		switch r {
		case '\\', '*', '?', '[', ']':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('*')
	return b.String()
}

func deleteByPrefix(c *client, prefix string) (int, error) {
	deleted := 0
	cursor := "0"
	for {
		v, err := c.do("SCAN", cursor, "MATCH", matchPrefix(prefix), "COUNT", "1000")
		if err != nil {
			return deleted, err
		}
		arr, ok := v.([]interface{})
		if !ok || len(arr) != 2 {
			return deleted, fmt.Errorf("unexpected SCAN response")
		}
		cursor = toString(arr[0])
		keysRaw, ok := arr[1].([]interface{})
		if !ok {
			return deleted, fmt.Errorf("unexpected SCAN keys response")
		}
		if len(keysRaw) > 0 {
			keys := make([]string, 0, len(keysRaw))
			for _, k := range keysRaw {
				keys = append(keys, toString(k))
			}
			if _, err := c.do("DEL", keys...); err != nil {
				return deleted, err
			}
			deleted += len(keys)
		}
		if cursor == "0" {
			return deleted, nil
		}
	}
}
