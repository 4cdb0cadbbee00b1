package utils

import (
	"io"

	"github.com/MrSnakeDoc/hotdeals/internal/logger"
)

// CancelOnClose releases a request context once the body it guards is closed.
type CancelOnClose struct {
	io.ReadCloser
	Cancel func()
}

// MustClose closes c and logs any error.
// Use for defer statements where we want to track close errors.
func MustClose(c io.Closer, what string, log logger.Logger) {
	if err := c.Close(); err != nil {
		log.Warn("failed to close", logger.String("resource", what), logger.Error(err))
	}
}

func (c *CancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	if c.Cancel != nil {
		c.Cancel()
	}
	return err
}
