// Package pushtoken supplies this installation's push token. The token is
// issued by the platform notification service; here it is treated as an
// opaque string read from configuration or from a file a push agent writes.
package pushtoken

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrUnavailable means no source could supply a token.
var ErrUnavailable = errors.New("push token unavailable")

// Source yields the current local push token.
type Source interface {
	Token(ctx context.Context) (string, error)
}

// Static always returns the same token.
type Static string

func (s Static) Token(context.Context) (string, error) {
	if t := strings.TrimSpace(string(s)); t != "" {
		return t, nil
	}
	return "", ErrUnavailable
}

// File reads the token from a file on every call, so a rotated token is picked up.
type File string

func (f File) Token(context.Context) (string, error) {
	if f == "" {
		return "", ErrUnavailable
	}
	data, err := os.ReadFile(string(f))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrUnavailable
		}
		return "", fmt.Errorf("read push token: %w", err)
	}
	if t := strings.TrimSpace(string(data)); t != "" {
		return t, nil
	}
	return "", ErrUnavailable
}

// Chain returns the first token any source supplies. Sources that fail are skipped.
type Chain []Source

func (c Chain) Token(ctx context.Context) (string, error) {
	var errs []error
	for _, s := range c {
		t, err := s.Token(ctx)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, ErrUnavailable) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return "", errors.Join(append([]error{ErrUnavailable}, errs...)...)
	}
	return "", ErrUnavailable
}
