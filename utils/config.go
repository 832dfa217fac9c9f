// utils/config.go
package utils

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"elo-ladder-system/models"

	"github.com/gosimple/slug"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.Und, cases.NoLower)

// LoadTierRanges reads the tier table from a CSV file with headers
// "role", "min elo", "max elo" (the format the community's deployment
// already maintains). Rows with blank or unparseable values are
// skipped with a log line; at least one valid row is required.
func LoadTierRanges(path string) ([]models.Tier, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tier config %q: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read tier config header: %w", err)
	}

	cols := map[string]int{}
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"role", "min elo", "max elo"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("tier config must have headers: 'role', 'min elo', 'max elo'")
		}
	}

	var tiers []models.Tier
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err != nil {
			break
		}
		name := strings.TrimSpace(record[cols["role"]])
		minStr := strings.TrimSpace(record[cols["min elo"]])
		maxStr := strings.TrimSpace(record[cols["max elo"]])
		if name == "" || minStr == "" || maxStr == "" {
			continue
		}
		minRating, errMin := strconv.ParseFloat(minStr, 64)
		maxRating, errMax := strconv.ParseFloat(maxStr, 64)
		if errMin != nil || errMax != nil {
			log.Printf("[CONFIG] Skipping tier row %d: invalid rating bounds %q..%q", line, minStr, maxStr)
			continue
		}
		tiers = append(tiers, models.Tier{
			Name:      titleCaser.String(name),
			Key:       slug.Make(name),
			MinRating: minRating,
			MaxRating: maxRating,
		})
	}

	if len(tiers) == 0 {
		return nil, fmt.Errorf("no valid tier ranges found in %q", path)
	}
	return tiers, nil
}

// FloatEnv reads a float from the environment, falling back to def
// when unset; a malformed value is fatal.
func FloatEnv(name string, def float64) float64 {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Fatalf("invalid %s: %v", name, err)
	}
	return v
}

// DurationEnv reads a duration (e.g. "30m") from the environment.
func DurationEnv(name string, def time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		log.Fatalf("invalid %s: %v", name, err)
	}
	return v
}
