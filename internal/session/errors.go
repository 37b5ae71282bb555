package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jask/lovenudge/internal/pushtoken"
	"github.com/jask/lovenudge/internal/relay"
	"github.com/jask/lovenudge/internal/store"
)

var (
	ErrEmptyName        = errors.New("name is required")
	ErrEmptyPartnerName = errors.New("partner name is required")
	ErrEmptyMessage     = errors.New("message is required")
	ErrNoPushToken      = errors.New("push token is not available")
	ErrNoTargetToken    = errors.New("notification token is not available")
	ErrNotRegistered    = errors.New("register a name first")
)

var validation = []error{ErrEmptyName, ErrEmptyPartnerName, ErrEmptyMessage, ErrNoTargetToken, ErrNotRegistered}

// UserMessage turns an action error into the text shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, sentinel := range validation {
		if errors.Is(err, sentinel) {
			msg := sentinel.Error()
			return strings.ToUpper(msg[:1]) + msg[1:]
		}
	}

	var (
		perr *store.PersistenceError
		herr *relay.HTTPStatusError
		derr *relay.DecodeError
		nerr *relay.NetworkError
	)
	switch {
	case errors.Is(err, ErrNoPushToken), errors.Is(err, pushtoken.ErrUnavailable):
		return "Push token is not available yet"
	case errors.Is(err, relay.ErrUserNotFound):
		return "No user with that name"
	case errors.As(err, &perr):
		return fmt.Sprintf("Could not save to local storage: %v", perr.Err)
	case errors.As(err, &herr):
		return fmt.Sprintf("Server rejected the request (HTTP %d)", herr.StatusCode)
	case errors.As(err, &derr):
		return "Server sent an unexpected response"
	case errors.As(err, &nerr):
		return fmt.Sprintf("Could not reach the server: %v", nerr.Err)
	default:
		return err.Error()
	}
}
