package agent

import "errors"

var (
	// ErrTemplatesUnavailable is returned by LoadTemplates when neither
	// the embedded bundle nor an overriding disk directory yields a
	// single persona's worth of prompt content.
	ErrTemplatesUnavailable = errors.New("no persona templates available")
)
