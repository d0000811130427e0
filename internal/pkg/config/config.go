// Package config exposes typed, read-only access to the service settings.
package config

import (
	"io"
	"time"
)

// Config reads settings by dotted key. Missing or unconvertible values come
// back as the zero value; callers apply their own defaults.
type Config interface {
	io.Closer

	GetBool(key string) bool
	GetString(key string) string

	GetInt(key string) int
	GetInt32(key string) int32
	GetInt64(key string) int64
	GetUint(key string) uint
	GetUint16(key string) uint16
	GetUint32(key string) uint32
	GetUint64(key string) uint64
	GetFloat32(key string) float32
	GetFloat64(key string) float64

	// GetDuration parses a Go duration ("5m", "250ms"); a bare integer is seconds.
	GetDuration(key string) time.Duration
	// GetSecond, GetMinute, GetHour and GetDay scale an integer by their unit.
	GetSecond(key string) time.Duration
	GetMinute(key string) time.Duration
	GetHour(key string) time.Duration
	GetDay(key string) time.Duration

	// GetBinary decodes a base64 value.
	GetBinary(key string) []byte
	// GetArray reads a list, or a comma-separated string from an env
	// override. Blank elements are dropped.
	GetArray(key string) []string
	// GetMap reads a mapping, or "k:v,k:v" from an env override.
	GetMap(key string) map[string]string
}
