// Package client holds adapters for external services: object storage and
// the text generation endpoint used by live external calls.
package client

import "time"

const defaultTimeout = 60 * time.Second
