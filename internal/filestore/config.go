package filestore

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	defaultMaxFileSize    = 50 * 1024 * 1024        // 50 MiB
	defaultMaxStorageSize = 5 * 1024 * 1024 * 1024   // 5 GiB
)

var defaultAllowedMimeTypes = []string{
	"text/plain", "text/markdown", "text/csv", "text/html",
	"application/pdf", "application/json",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"image/png", "image/jpeg", "image/gif", "image/webp",
	"application/zip", "application/gzip",
	"audio/mpeg", "audio/wav",
}

// Config configures a FileStore. Defaults match spec.md §4.1 exactly.
type Config struct {
	BasePath         string
	MaxFileSize      int64
	MaxStorageSize   int64
	AllowedMimeTypes []string
}

// DefaultConfig returns the spec-mandated defaults before env overrides.
func DefaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		BasePath:         filepath.Join(home, ".tyler", "files"),
		MaxFileSize:      defaultMaxFileSize,
		MaxStorageSize:   defaultMaxStorageSize,
		AllowedMimeTypes: append([]string(nil), defaultAllowedMimeTypes...),
	}
}

// ConfigFromEnv applies TYLER_FILE_STORAGE_PATH, TYLER_MAX_FILE_SIZE,
// TYLER_MAX_STORAGE_SIZE, and TYLER_ALLOWED_MIME_TYPES over the defaults.
// Invalid values fall back to the default with a logged warning, per
// spec.md §4.1.
func ConfigFromEnv(logger *slog.Logger) Config {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := DefaultConfig()

	if v := os.Getenv("TYLER_FILE_STORAGE_PATH"); v != "" {
		cfg.BasePath = v
	}

	if v := os.Getenv("TYLER_MAX_FILE_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxFileSize = n
		} else {
			logger.Warn("invalid TYLER_MAX_FILE_SIZE, using default", "value", v, "default", cfg.MaxFileSize)
		}
	}

	if v := os.Getenv("TYLER_MAX_STORAGE_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxStorageSize = n
		} else {
			logger.Warn("invalid TYLER_MAX_STORAGE_SIZE, using default", "value", v, "default", cfg.MaxStorageSize)
		}
	}

	if v := os.Getenv("TYLER_ALLOWED_MIME_TYPES"); v != "" {
		var types []string
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				types = append(types, part)
			}
		}
		if len(types) > 0 {
			cfg.AllowedMimeTypes = types
		} else {
			logger.Warn("invalid TYLER_ALLOWED_MIME_TYPES, using default", "value", v)
		}
	}

	return cfg
}

func (c Config) mimeAllowed(mime string) bool {
	for _, allowed := range c.AllowedMimeTypes {
		if strings.EqualFold(allowed, mime) {
			return true
		}
	}
	return false
}
