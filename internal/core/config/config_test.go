package config

import (
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"TZ_SPLIT_DEPTH", "TZ_CACHE_POLICY", "TZ_STORE", "TZ_LOAD_TIMEOUT", "OVERLAP_H3_RES"} {
		t.Setenv(k, "")
	}
	c := FromEnv()
	if c.SplitDepth != 2 || c.Cache.Policy != "full" || c.Store.Driver != "fs" {
		t.Fatalf("defaults=%+v", c)
	}
	if c.Cache.LoadTimeout != 5*time.Second || c.Overlap.H3Res != 7 {
		t.Fatalf("defaults=%+v", c)
	}
}

func TestFromEnv_OverridesAndClamps(t *testing.T) {
	t.Setenv("TZ_SPLIT_DEPTH", "-3")
	t.Setenv("TZ_CACHE_POLICY", "per-run-lottery")
	t.Setenv("TZ_CACHE_CLEAR_PROB", "1.5")
	t.Setenv("TZ_STORE", "REDIS")
	t.Setenv("TZ_DETECT_OVERLAPS", "yes")
	t.Setenv("OVERLAP_H3_RES", "20")
	t.Setenv("TZ_LOAD_TIMEOUT", "250ms")

	c := FromEnv()
	if c.SplitDepth != 0 {
		t.Fatalf("depth=%d want 0", c.SplitDepth)
	}
	if c.Cache.Policy != "per-run-lottery" || c.Cache.ClearProb != 0.2 {
		t.Fatalf("cache=%+v", c.Cache)
	}
	if c.Store.Driver != "redis" || !c.Overlap.Detect || c.Overlap.H3Res != 15 {
		t.Fatalf("config=%+v", c)
	}
	if c.Cache.LoadTimeout != 250*time.Millisecond {
		t.Fatalf("timeout=%v", c.Cache.LoadTimeout)
	}
}

func TestBrokers(t *testing.T) {
	got := Brokers(" a:9092, ,b:9092,")
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Fatalf("Brokers=%v", got)
	}
}
