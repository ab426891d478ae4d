package session

import "errors"

var (
	// ErrNoActiveExchange is returned by RequireActiveExchange when the
	// session is not currently in an exchange.
	ErrNoActiveExchange = errors.New("no active exchange")
)

// RequireActiveExchange returns the active exchange, or
// ErrNoActiveExchange if state != EXCHANGE. Callers that only want to
// observe without erroring should use ActiveExchange directly.
func (s *SessionContext) RequireActiveExchange() (*Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activeExchange == nil {
		return nil, ErrNoActiveExchange
	}
	return s.activeExchange, nil
}
