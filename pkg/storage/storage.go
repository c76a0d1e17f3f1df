package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxNameAttempts bounds how many consecutive milliseconds PutUnique tries.
	MaxNameAttempts = 16
	// MaxNameBytes caps a sanitized name so "{millis}_{name}" stays under
	// common 255 byte file name limits.
	MaxNameBytes = 200
	fallbackName = "unknown"
	maxExtBytes  = 16
)

// ErrObjectExists is returned by a backend when the target name is already taken.
var ErrObjectExists = errors.New("storage object already exists")

// ErrNotFound is returned when a location does not resolve to a stored object.
var ErrNotFound = errors.New("storage object not found")

// Store persists raw upload bytes and returns an opaque location string.
type Store interface {
	Save(ctx context.Context, fileName, contentType string, data []byte) (string, error)
	Open(ctx context.Context, location string) (io.ReadCloser, error)
	Delete(ctx context.Context, location string) error
	Ping(ctx context.Context) error
}

// SanitizeFileName strips path separators and control characters from a
// client supplied name and caps it at MaxNameBytes.
func SanitizeFileName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r == '/' || r == '\\':
			b.WriteRune('_')
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" || out == "." || out == ".." {
		return fallbackName
	}
	return TruncateName(out, MaxNameBytes)
}

// TruncateName shortens name to at most limit bytes, keeping a short extension
// and never splitting a rune.
func TruncateName(name string, limit int) string {
	if limit <= 0 || len(name) <= limit {
		return name
	}
	ext := path.Ext(name)
	if len(ext) > maxExtBytes || len(ext) >= limit {
		ext = ""
	}
	stem := name[:len(name)-len(ext)]
	cut := limit - len(ext)
	for cut > 0 && !utf8.RuneStart(stem[cut]) {
		cut--
	}
	return stem[:cut] + ext
}

// ObjectName builds "{unixMillis}_{sanitizedName}".
func ObjectName(at time.Time, fileName string) string {
	return strconv.FormatInt(at.UnixMilli(), 10) + "_" + SanitizeFileName(fileName)
}

// PutUnique calls put with ObjectName(now, fileName) and advances the
// timestamp by one millisecond each time put reports ErrObjectExists.
func PutUnique(ctx context.Context, now time.Time, fileName string, put func(ctx context.Context, name string) error) (string, error) {
	at := now
	for attempt := 0; attempt < MaxNameAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		name := ObjectName(at, fileName)
		err := put(ctx, name)
		if err == nil {
			return name, nil
		}
		if !errors.Is(err, ErrObjectExists) {
			return "", err
		}
		at = at.Add(time.Millisecond)
	}
	return "", fmt.Errorf("no free object name for %q after %d attempts: %w", fileName, MaxNameAttempts, ErrObjectExists)
}

// JoinKey prefixes an object name with an optional key prefix.
func JoinKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// SplitURI parses "{scheme}://bucket/key" locations.
func SplitURI(location, scheme string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(location, scheme+"://")
	if !ok {
		return "", "", fmt.Errorf("location %q is not a %s uri", location, scheme)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("location %q is missing bucket or key", location)
	}
	return bucket, key, nil
}
