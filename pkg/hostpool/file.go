package hostpool

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/nspcc-dev/p2pnet/pkg/wireaddr"
)

// loadFile reads the hosts file: one authority per line, optionally
// followed by "/timestamp/services" (spec.md §6's Persisted state).
// Corrupt lines are skipped with a log warning rather than failing the
// whole load. A missing file yields an empty, non-error result. A nil
// logger discards the warning.
func loadFile(path string, logger *zap.Logger) ([]wireaddr.AddressRecord, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("hostpool: open %s: %w", path, err)
	}
	defer f.Close()

	var records []wireaddr.AddressRecord
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		r, err := parseLine(line)
		if err != nil {
			if logger != nil {
				logger.Warn("hostpool: skipping corrupt line",
					zap.Int("line", lineNo), zap.String("path", path), zap.Error(err))
			}
			continue
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("hostpool: read %s: %w", path, err)
	}
	return records, nil
}

// parseLine parses "authority" or "authority/timestamp/services", where
// authority itself may already carry a trailing "/cidr".
func parseLine(line string) (wireaddr.AddressRecord, error) {
	fields := strings.Split(line, "/")
	switch len(fields) {
	case 1: // "ip:port"
		a, err := wireaddr.NewAuthority(fields[0])
		if err != nil {
			return wireaddr.AddressRecord{}, err
		}
		return wireaddr.NewAddressRecord(a, 0, 0), nil
	case 2: // "ip:port/cidr" with no timestamp/services
		a, err := wireaddr.NewAuthority(fields[0] + "/" + fields[1])
		if err != nil {
			return wireaddr.AddressRecord{}, err
		}
		return wireaddr.NewAddressRecord(a, 0, 0), nil
	case 3: // "ip:port/timestamp/services"
		a, err := wireaddr.NewAuthority(fields[0])
		if err != nil {
			return wireaddr.AddressRecord{}, err
		}
		ts, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return wireaddr.AddressRecord{}, fmt.Errorf("bad timestamp %q: %w", fields[1], err)
		}
		svc, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			return wireaddr.AddressRecord{}, fmt.Errorf("bad services %q: %w", fields[2], err)
		}
		return wireaddr.NewAddressRecord(a, uint32(ts), wireaddr.Service(svc)), nil
	case 4: // "ip:port/cidr/timestamp/services"
		a, err := wireaddr.NewAuthority(fields[0] + "/" + fields[1])
		if err != nil {
			return wireaddr.AddressRecord{}, err
		}
		ts, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			return wireaddr.AddressRecord{}, fmt.Errorf("bad timestamp %q: %w", fields[2], err)
		}
		svc, err := strconv.ParseUint(fields[3], 10, 64)
		if err != nil {
			return wireaddr.AddressRecord{}, fmt.Errorf("bad services %q: %w", fields[3], err)
		}
		return wireaddr.NewAddressRecord(a, uint32(ts), wireaddr.Service(svc)), nil
	default:
		return wireaddr.AddressRecord{}, fmt.Errorf("malformed line %q", line)
	}
}

// formatLine renders r as "ip:port[/cidr]/timestamp/services".
func formatLine(r wireaddr.AddressRecord) string {
	return fmt.Sprintf("%s/%d/%d", r.Authority().String(), r.Timestamp, uint64(r.Services))
}

// saveFile replaces path atomically: write to a temp file in the same
// directory, then rename over the target, per spec.md §6's "file is
// replaced atomically on save".
func saveFile(path string, records []wireaddr.AddressRecord) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("hostpool: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	for _, r := range records {
		if _, err := fmt.Fprintln(w, formatLine(r)); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("hostpool: write %s: %w", tmpName, err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("hostpool: flush %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("hostpool: close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("hostpool: rename %s to %s: %w", tmpName, path, err)
	}
	return nil
}
