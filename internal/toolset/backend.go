package toolset

import (
	"context"
	"encoding/json"
	"log/slog"
)

// AckBackend acknowledges document operations without applying them. The
// editing surface consumes tool-call-done events and applies edits itself,
// so the server side only needs to confirm and log the operation.
type AckBackend struct{}

func (AckBackend) Apply(_ context.Context, documentID, op string, args json.RawMessage) (string, error) {
	slog.Debug("document operation acknowledged",
		"document_id", documentID,
		"op", op,
		"args", string(args),
	)
	ack, _ := json.Marshal(map[string]any{"applied": op, "document_id": documentID})
	return string(ack), nil
}
