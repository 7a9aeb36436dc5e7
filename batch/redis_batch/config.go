package redis_batch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

type ConnConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

func (c *ConnConfig) WithDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 6379
	}
}

func (c ConnConfig) addr() string {
	c.WithDefaults()
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// client speaks RESP2 over one connection. Commands may be queued with send
// and their replies read in order with receive.
type client struct {
	conn net.Conn
	rd   *bufio.Reader
	wr   *bufio.Writer
}

func openRedis(ctx context.Context, cfg ConnConfig) (*client, error) {
	d := &net.Dialer{Timeout: 5 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", cfg.addr())
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c := &client{conn: conn, rd: bufio.NewReader(conn), wr: bufio.NewWriter(conn)}

	if cfg.Password != "" {
		if _, err := c.do("AUTH", cfg.Password); err != nil {
			conn.Close()
			return nil, err
		}
	}
	if cfg.DB > 0 {
		if _, err := c.do("SELECT", strconv.Itoa(cfg.DB)); err != nil {
			conn.Close()
			return nil, err
		}
	}
	if _, err := c.do("PING"); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *client) close() error {
	return c.conn.Close()
}

func (c *client) do(cmd string, args ...string) (interface{}, error) {
	if err := c.send(cmd, args...); err != nil {
		return nil, err
	}
	if err := c.flush(); err != nil {
		return nil, err
	}
	return c.receive()
}

// send buffers one command.
func (c *client) send(cmd string, args ...string) error {
	return writeCommand(c.wr, append([]string{strings.ToUpper(cmd)}, args...))
}

func (c *client) flush() error {
	return c.wr.Flush()
}

// receive reads the next reply. Server errors become Go errors.
func (c *client) receive() (interface{}, error) {
	v, err := readResp(c.rd)
	if err != nil {
		return nil, err
	}
	if e, ok := v.(respErr); ok {
		return nil, fmt.Errorf("redis: %s", string(e))
	}
	return v, nil
}

func writeCommand(w *bufio.Writer, parts []string) error {
	w.WriteString("*")
	w.WriteString(strconv.Itoa(len(parts)))
	w.WriteString("\r\n")
	for _, p := range parts {
		w.WriteString("$")
		w.WriteString(strconv.Itoa(len(p)))
		w.WriteString("\r\n")
		w.WriteString(p)
		if _, err := w.WriteString("\r\n"); err != nil {
			return err
		}
	}
	return nil
}

type respErr string

func readLine(rd *bufio.Reader) (string, error) {
	s, err := rd.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(strings.TrimSuffix(s, "\n"), "\r"), nil
}

func readResp(rd *bufio.Reader) (interface{}, error) {
	prefix, err := rd.ReadByte()
	if err != nil {
		return nil, err
	}
	line, err := readLine(rd)
	if err != nil {
		return nil, err
	}
	switch prefix {
	case '+':
		return line, nil
	case '-':
		return respErr(line), nil
	case ':':
		return strconv.ParseInt(line, 10, 64)
	case '$':
		n, err := strconv.Atoi(line)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, nil
		}
		buf := make([]byte, n+2)
		if _, err := io.ReadFull(rd, buf); err != nil {
			return nil, err
		}
		return string(buf[:n]), nil
	case '*':
		n, err := strconv.Atoi(line)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, nil
		}
		out := make([]interface{}, 0, n)
		for i := 0; i < n; i++ {
			v, err := readResp(rd)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown redis resp type: %q", string(prefix))
	}
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprint(t)
	}
}
