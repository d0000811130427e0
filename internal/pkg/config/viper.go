package config

import (
	"bytes"
	"encoding/base64"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g. GOVAULT_DATABASE_URL for database.url.
const EnvPrefix = "GOVAULT"

// ErrConfigType is returned when NewViperFromBytes gets no format.
var ErrConfigType = errors.New("config: config type is required")

// Viper is a Config backed by spf13/viper. A file-backed instance reloads
// itself when the file changes.
type Viper struct {
	mu sync.RWMutex
	v  *viper.Viper
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// NewViper loads the file at pathFile; the format follows its extension.
func NewViper(pathFile string) (*Viper, error) {
	v := newViper()
	v.SetConfigFile(filepath.Clean(pathFile))
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	vc := &Viper{v: v}
	v.OnConfigChange(func(ev fsnotify.Event) {
		vc.mu.Lock()
		defer vc.mu.Unlock()

		if err := v.ReadInConfig(); err != nil {
			slog.Error("config reload failed", "path", pathFile, "op", ev.Op.String(), "error", err)
			return
		}
		slog.Info("config reloaded", "path", pathFile)
	})
	v.WatchConfig()

	return vc, nil
}

// NewViperFromBytes loads configuration held in memory, e.g. "yaml" data in tests.
func NewViperFromBytes(configType string, data []byte) (*Viper, error) {
	if strings.TrimSpace(configType) == "" {
		return nil, ErrConfigType
	}

	v := newViper()
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return &Viper{v: v}, nil
}

func read[T any](vc *Viper, get func(*viper.Viper) T) T {
	vc.mu.RLock()
	defer vc.mu.RUnlock()
	return get(vc.v)
}

func scaled(vc *Viper, key string, unit time.Duration) time.Duration {
	return time.Duration(read(vc, func(v *viper.Viper) int64 { return v.GetInt64(key) })) * unit
}

func (vc *Viper) GetBool(key string) bool {
	return read(vc, func(v *viper.Viper) bool { return v.GetBool(key) })
}

func (vc *Viper) GetString(key string) string {
	return read(vc, func(v *viper.Viper) string { return v.GetString(key) })
}

func (vc *Viper) GetInt(key string) int {
	return read(vc, func(v *viper.Viper) int { return v.GetInt(key) })
}

func (vc *Viper) GetInt32(key string) int32 {
	return read(vc, func(v *viper.Viper) int32 { return v.GetInt32(key) })
}

func (vc *Viper) GetInt64(key string) int64 {
	return read(vc, func(v *viper.Viper) int64 { return v.GetInt64(key) })
}

func (vc *Viper) GetUint(key string) uint {
	return read(vc, func(v *viper.Viper) uint { return v.GetUint(key) })
}

func (vc *Viper) GetUint16(key string) uint16 {
	return read(vc, func(v *viper.Viper) uint16 { return v.GetUint16(key) })
}

func (vc *Viper) GetUint32(key string) uint32 {
	return read(vc, func(v *viper.Viper) uint32 { return v.GetUint32(key) })
}

func (vc *Viper) GetUint64(key string) uint64 {
	return read(vc, func(v *viper.Viper) uint64 { return v.GetUint64(key) })
}

func (vc *Viper) GetFloat32(key string) float32 {
	return float32(read(vc, func(v *viper.Viper) float64 { return v.GetFloat64(key) }))
}

func (vc *Viper) GetFloat64(key string) float64 {
	return read(vc, func(v *viper.Viper) float64 { return v.GetFloat64(key) })
}

func (vc *Viper) GetDuration(key string) time.Duration {
	raw := strings.TrimSpace(vc.GetString(key))
	if raw == "" {
		return 0
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return scaled(vc, key, time.Second)
}

func (vc *Viper) GetSecond(key string) time.Duration { return scaled(vc, key, time.Second) }
func (vc *Viper) GetMinute(key string) time.Duration { return scaled(vc, key, time.Minute) }
func (vc *Viper) GetHour(key string) time.Duration   { return scaled(vc, key, time.Hour) }
func (vc *Viper) GetDay(key string) time.Duration    { return scaled(vc, key, 24*time.Hour) }

func (vc *Viper) GetBinary(key string) []byte {
	data, err := base64.StdEncoding.DecodeString(vc.GetString(key))
	if err != nil {
		return nil
	}
	return data
}

func (vc *Viper) GetArray(key string) []string {
	var items []string
	vc.mu.RLock()
	if s, ok := vc.v.Get(key).(string); ok {
		items = strings.Split(s, ",")
	} else {
		items = vc.v.GetStringSlice(key)
	}
	vc.mu.RUnlock()

	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}

func (vc *Viper) GetMap(key string) map[string]string {
	vc.mu.RLock()
	defer vc.mu.RUnlock()

	s, ok := vc.v.Get(key).(string)
	if !ok {
		return vc.v.GetStringMapString(key)
	}

	m := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		if k, val, found := strings.Cut(pair, ":"); found {
			m[strings.TrimSpace(k)] = strings.TrimSpace(val)
		}
	}
	return m
}

// Close implements io.Closer.
func (vc *Viper) Close() error {
	return nil
}
