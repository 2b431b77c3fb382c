package core

import "context"

// Memory is the hook surface offered to the host runtime.
type Memory interface {
	BeforeTurn(ctx context.Context, event BeforeTurnEvent) string
	AfterTurn(ctx context.Context, event TurnEvent) int
}
