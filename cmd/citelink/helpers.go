package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"citelink/internal/records"
)

// resolveRecord accepts either a numeric record ID or a URL.
func resolveRecord(ctx context.Context, store *records.Store, arg string) (*records.Record, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil, fmt.Errorf("empty record reference")
	}

	var (
		rec *records.Record
		err error
	)
	if id, parseErr := strconv.ParseInt(arg, 10, 64); parseErr == nil && id > 0 {
		rec, err = store.GetByID(ctx, id)
	} else {
		rec, err = store.GetByURL(ctx, arg)
	}
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("no record matches %q", arg)
	}
	return rec, nil
}

func truncate(value string, max int) string {
	if max <= 3 || len(value) <= max {
		return value
	}
	return value[:max-3] + "..."
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

// parseOverrides converts repeated key=value flags into an override map.
func parseOverrides(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	overrides := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("invalid override %q (expected key=value)", pair)
		}
		overrides[key] = strings.TrimSpace(value)
	}
	return overrides, nil
}
