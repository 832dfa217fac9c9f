package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTierFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "elo_roles.csv")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing tier file: %v", err)
	}
	return path
}

func TestLoadTierRanges(t *testing.T) {
	path := writeTierFile(t, "role,min elo,max elo\n"+
		"grand masters,1800,3000\n"+
		"masters,1500,1799\n"+
		"challengers,1000,1499\n")

	tiers, err := LoadTierRanges(path)
	if err != nil {
		t.Fatalf("LoadTierRanges: %v", err)
	}
	if len(tiers) != 3 {
		t.Fatalf("tiers = %d, want 3", len(tiers))
	}

	top := tiers[0]
	if top.Name != "Grand Masters" {
		t.Errorf("name = %q, want title-cased Grand Masters", top.Name)
	}
	if top.Key != "grand-masters" {
		t.Errorf("key = %q, want grand-masters", top.Key)
	}
	if top.MinRating != 1800 || top.MaxRating != 3000 {
		t.Errorf("bounds = %v..%v, want 1800..3000", top.MinRating, top.MaxRating)
	}
}

func TestLoadTierRangesHeaderOrderAndCase(t *testing.T) {
	path := writeTierFile(t, "Max Elo,Role,Min Elo\n"+
		"1499,challengers,1000\n")

	tiers, err := LoadTierRanges(path)
	if err != nil {
		t.Fatalf("LoadTierRanges: %v", err)
	}
	if len(tiers) != 1 || tiers[0].MinRating != 1000 || tiers[0].MaxRating != 1499 {
		t.Errorf("tiers = %+v, want challengers 1000..1499", tiers)
	}
}

func TestLoadTierRangesSkipsBadRows(t *testing.T) {
	path := writeTierFile(t, "role,min elo,max elo\n"+
		"masters,1500,3000\n"+
		",1000,1499\n"+
		"challengers,not-a-number,1499\n"+
		"challengers,1000,1499\n")

	tiers, err := LoadTierRanges(path)
	if err != nil {
		t.Fatalf("LoadTierRanges: %v", err)
	}
	if len(tiers) != 2 {
		t.Fatalf("tiers = %+v, want the 2 valid rows", tiers)
	}
	if tiers[0].Name != "Masters" || tiers[1].Name != "Challengers" {
		t.Errorf("tiers = %+v", tiers)
	}
}

func TestLoadTierRangesRejectsMissingHeaders(t *testing.T) {
	path := writeTierFile(t, "role,minimum,maximum\nmasters,1500,3000\n")
	if _, err := LoadTierRanges(path); err == nil {
		t.Error("accepted file without the required headers")
	}

	empty := writeTierFile(t, "role,min elo,max elo\n")
	if _, err := LoadTierRanges(empty); err == nil {
		t.Error("accepted file with no tier rows")
	}

	if _, err := LoadTierRanges(filepath.Join(t.TempDir(), "absent.csv")); err == nil {
		t.Error("accepted missing file")
	}
}

func TestFloatEnv(t *testing.T) {
	t.Setenv("LADDER_TEST_FLOAT", "")
	if got := FloatEnv("LADDER_TEST_FLOAT", 1380); got != 1380 {
		t.Errorf("unset = %v, want default 1380", got)
	}
	t.Setenv("LADDER_TEST_FLOAT", "42.5")
	if got := FloatEnv("LADDER_TEST_FLOAT", 1380); got != 42.5 {
		t.Errorf("set = %v, want 42.5", got)
	}
}

func TestDurationEnv(t *testing.T) {
	t.Setenv("LADDER_TEST_TTL", "")
	if got := DurationEnv("LADDER_TEST_TTL", 30*time.Minute); got != 30*time.Minute {
		t.Errorf("unset = %v, want default 30m", got)
	}
	t.Setenv("LADDER_TEST_TTL", "45m")
	if got := DurationEnv("LADDER_TEST_TTL", 30*time.Minute); got != 45*time.Minute {
		t.Errorf("set = %v, want 45m", got)
	}
}
