package worker

import (
	"fmt"
	"strings"
)

// Intermediate files hold one "key\tvalue\n" line per pair. Backslash, tab,
// newline and carriage return are escaped in both fields, so any string
// survives the framing.
var imdEscaper = strings.NewReplacer(`\`, `\\`, "\t", `\t`, "\n", `\n`, "\r", `\r`)

func escapeIMD(s string) string {
	if !strings.ContainsAny(s, "\\\t\n\r") {
		return s
	}
	return imdEscaper.Replace(s)
}

func unescapeIMD(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i++; i == len(s) {
			return "", fmt.Errorf("dangling escape")
		}
		switch s[i] {
		case '\\':
			b.WriteByte('\\')
		case 't':
			b.WriteByte('\t')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		default:
			return "", fmt.Errorf("unknown escape \\%c", s[i])
		}
	}
	return b.String(), nil
}

func encodeIMDKVs(kvs []KV) string {
	if len(kvs) == 0 {
		return ""
	}
	var b strings.Builder
	// Rough pre-size to reduce reallocations for hot path.
	b.Grow(len(kvs) * 64)
	for i := range kvs {
		b.WriteString(escapeIMD(kvs[i].Key))
		b.WriteByte('\t')
		b.WriteString(escapeIMD(kvs[i].Value))
		b.WriteByte('\n')
	}
	return b.String()
}

func decodeIMDKVs(raw string) ([]KV, error) {
	if raw == "" {
		return nil, nil
	}
	lines := strings.Split(raw, "\n")
	out := make([]KV, 0, len(lines))
	for n, line := range lines {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("intermediate line %d has no key separator", n+1)
		}
		key, err := unescapeIMD(parts[0])
		if err != nil {
			return nil, fmt.Errorf("intermediate line %d key: %w", n+1, err)
		}
		value, err := unescapeIMD(parts[1])
		if err != nil {
			return nil, fmt.Errorf("intermediate line %d value: %w", n+1, err)
		}
		out = append(out, KV{Key: key, Value: value})
	}
	return out, nil
}
