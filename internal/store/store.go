// Package store persists the local session record: the user's display name,
// this installation's push token and the partner's push token.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Storage keys. They match the layout written by earlier clients.
const (
	KeyUserName         = "userName"
	KeyLocalPushToken   = "expoPushToken"
	KeyPartnerPushToken = "searchedUserToken"
)

var keys = []string{KeyUserName, KeyLocalPushToken, KeyPartnerPushToken}

// ErrEmptyValue is returned when a setter is given an empty string.
var ErrEmptyValue = errors.New("store: empty value")

// KV is the key-value storage the session record lives in.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Record is the persisted session. An empty field means the key is absent.
type Record struct {
	UserName         string
	LocalPushToken   string
	PartnerPushToken string
}

// IsEmpty reports whether no field is set.
func (r Record) IsEmpty() bool {
	return r.UserName == "" && r.LocalPushToken == "" && r.PartnerPushToken == ""
}

// PersistenceError wraps a failed storage operation on one key.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store reads and writes the session record.
type Store struct {
	kv  KV
	log *zap.Logger
}

// New returns a Store over kv. A nil logger discards output.
func New(kv KV, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{kv: kv, log: log}
}

// Load reads all three keys. Read failures are indistinguishable from absent keys.
func (s *Store) Load(ctx context.Context) Record {
	return Record{
		UserName:         s.get(ctx, KeyUserName),
		LocalPushToken:   s.get(ctx, KeyLocalPushToken),
		PartnerPushToken: s.get(ctx, KeyPartnerPushToken),
	}
}

func (s *Store) get(ctx context.Context, key string) string {
	v, err := s.kv.Get(ctx, key)
	if err != nil {
		s.log.Debug("store read treated as absent", zap.String("key", key), zap.Error(err))
		return ""
	}
	return v
}

func (s *Store) SetUserName(ctx context.Context, name string) error {
	return s.set(ctx, KeyUserName, name)
}

func (s *Store) SetLocalPushToken(ctx context.Context, token string) error {
	return s.set(ctx, KeyLocalPushToken, token)
}

func (s *Store) SetPartnerPushToken(ctx context.Context, token string) error {
	return s.set(ctx, KeyPartnerPushToken, token)
}

func (s *Store) set(ctx context.Context, key, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s: %w", key, ErrEmptyValue)
	}
	if err := s.kv.Set(ctx, key, value); err != nil {
		return &PersistenceError{Op: "set", Key: key, Err: err}
	}
	return nil
}

// Clear removes every key. Each removal is independent: a failure on one key
// does not stop the others and nothing is rolled back.
func (s *Store) Clear(ctx context.Context) error {
	var errs []error
	for _, k := range keys {
		if err := s.kv.Delete(ctx, k); err != nil {
			s.log.Warn("store delete failed", zap.String("key", k), zap.Error(err))
			errs = append(errs, &PersistenceError{Op: "delete", Key: k, Err: err})
		}
	}
	return errors.Join(errs...)
}
