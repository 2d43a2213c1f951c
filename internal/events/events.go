package events

import (
	"time"

	"github.com/pubhub-IN/pubhub-sub000/pkg/models"
)

// Connector names reported in events.
const (
	ConnectorBrowser = "browser"
	ConnectorAPI     = "api"
)

// ConnectorCompleteEvent is sent when a connector chain finishes, whether
// it produced records or failed outright.
type ConnectorCompleteEvent struct {
	Connector string                // ConnectorBrowser or ConnectorAPI
	Records   []models.SourceRecord // in precedence order within the connector
	Failures  []string              // item-level failures (non-fatal)
	Err       error                 // fatal failure; Records may still hold partial output
	Duration  time.Duration
	Timestamp time.Time
}

// Failed reports whether the connector failed outright.
func (e ConnectorCompleteEvent) Failed() bool {
	return e.Err != nil
}
