package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type StoreCfg struct {
	Driver    string // fs or redis
	DataDir   string
	RedisAddr string
	Namespace string
}

type CacheCfg struct {
	Policy      string
	ClearProb   float64
	MaxTiles    int
	LoadTimeout time.Duration
}

type OverlapCfg struct {
	Detect        bool
	EventsEnabled bool
	Brokers       string
	Topic         string
	H3Res         int
	QueueSize     int
}

type Config struct {
	Addr           string
	LogLevel       string
	LogConsole     bool
	LogSampleN     int
	MetricsEnabled bool
	RequestTimeout time.Duration

	BaseName   string
	SplitDepth int
	Store      StoreCfg
	Cache      CacheCfg
	Overlap    OverlapCfg
}

func FromEnv() Config {
	depth := getint("TZ_SPLIT_DEPTH", 2)
	if depth < 0 {
		depth = 0
	}

	prob := getfloat("TZ_CACHE_CLEAR_PROB", 0.2)
	if prob <= 0 || prob > 1 {
		prob = 0.2
	}

	res := getint("OVERLAP_H3_RES", 7)
	if res < 0 {
		res = 0
	}
	if res > 15 {
		res = 15
	}

	return Config{
		Addr:           getenv("ADDR", ":8090"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogConsole:     getbool("LOG_CONSOLE", false),
		LogSampleN:     getint("LOG_SAMPLE_N", 0),
		MetricsEnabled: getbool("METRICS_ENABLED", true),
		RequestTimeout: getduration("REQUEST_TIMEOUT", 2*time.Second),

		BaseName:   getenv("TZ_BASE_NAME", "tz"),
		SplitDepth: depth,
		Store: StoreCfg{
			Driver:    strings.ToLower(getenv("TZ_STORE", "fs")),
			DataDir:   getenv("TZ_DATA_DIR", "./data"),
			RedisAddr: getenv("REDIS_ADDR", "localhost:6379"),
			Namespace: getenv("REDIS_NAMESPACE", "tz"),
		},
		Cache: CacheCfg{
			Policy:      getenv("TZ_CACHE_POLICY", "full"),
			ClearProb:   prob,
			MaxTiles:    getint("TZ_CACHE_MAX_TILES", 4),
			LoadTimeout: getduration("TZ_LOAD_TIMEOUT", 5*time.Second),
		},
		Overlap: OverlapCfg{
			Detect:        getbool("TZ_DETECT_OVERLAPS", false),
			EventsEnabled: getbool("OVERLAP_EVENTS_ENABLED", false),
			Brokers:       getenv("KAFKA_BROKERS", "localhost:9092"),
			Topic:         getenv("OVERLAP_TOPIC", "tz-overlaps"),
			H3Res:         res,
			QueueSize:     getint("OVERLAP_QUEUE_SIZE", 1024),
		},
	}
}

// Brokers splits a comma separated broker list, dropping blanks.
func Brokers(s string) []string {
	var out []string
	for b := range strings.SplitSeq(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
