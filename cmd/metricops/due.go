package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	whencommon "github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// dueParser understands English phrases like "next friday" or "in 3 days".
var dueParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(whencommon.All...)
	return w
}()

// parseDue resolves a --due value into RFC3339. Empty input stays empty.
func parseDue(raw string, now time.Time) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC().Format(time.RFC3339), nil
	}
	if day, err := time.ParseInLocation("2006-01-02", raw, now.Location()); err == nil {
		return day.UTC().Format(time.RFC3339), nil
	}
	result, err := dueParser.Parse(raw, now)
	if err != nil {
		return "", fmt.Errorf("parse due %q: %w", raw, err)
	}
	if result == nil {
		return "", fmt.Errorf("parse due %q: unrecognized date", raw)
	}
	return result.Time.UTC().Format(time.RFC3339), nil
}
