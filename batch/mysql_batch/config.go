package mysql_batch

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"regexp"
	"strconv"

	"github.com/go-sql-driver/mysql"
)

var identifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DBConfig defines MySQL connection parameters.
type DBConfig struct {
	Host     string            `json:"host"`
	Port     int               `json:"port"`
	User     string            `json:"user"`
	Password string            `json:"password"`
	Database string            `json:"database"`
	Params   map[string]string `json:"params"`
}

// DSN renders the go-sql-driver/mysql data source name. Credentials and
// parameters are escaped by the driver.
func (c DBConfig) DSN() string {
	host := c.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := c.Port
	if port == 0 {
		port = 3306
	}
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	cfg.DBName = c.Database
	cfg.ParseTime = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	for k, v := range c.Params {
		if k == "parseTime" {
			if b, err := strconv.ParseBool(v); err == nil {
				cfg.ParseTime = b
				continue
			}
		}
		cfg.Params[k] = v
	}
	return cfg.FormatDSN()
}

// Open connects and pings.
func Open(ctx context.Context, cfg DBConfig) (*sql.DB, error) {
	if cfg.User == "" {
		return nil, fmt.Errorf("db user is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("db database is required")
	}
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// SinkConfig configures loading job output records into a table of
// (key, JSON document) rows.
type SinkConfig struct {
	Table     string `json:"table"`
	KeyColumn string `json:"keycolumn"`
	DocColumn string `json:"doccolumn"`
	// KeyField is the record field whose value becomes the row key. An
	// empty field means the job's default.
	KeyField  string `json:"keyfield"`
	Replace   bool   `json:"replace"`
	BatchSize int    `json:"batchsize"`
}

func (c *SinkConfig) WithDefaults() {
	if c.KeyColumn == "" {
		c.KeyColumn = "doc_key"
	}
	if c.DocColumn == "" {
		c.DocColumn = "doc"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 2000
	}
}

func quoteIdentifier(s string) (string, error) {
	if !identifierRe.MatchString(s) {
		return "", fmt.Errorf("invalid identifier: %s", s)
	}
	return "`" + s + "`", nil
}
