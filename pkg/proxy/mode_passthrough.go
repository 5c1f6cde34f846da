package proxy

import (
	"context"
	"fmt"
)

// PassthroughHandler implements ModePassthrough (spec.md §3): the
// proxy dials the configured backend, replays the client's handshake
// and any buffered follow-up packet verbatim, and otherwise never
// looks inside the stream again. No encryption or compression state
// is touched; the backend authenticates the client itself.
type PassthroughHandler struct{}

func (PassthroughHandler) Mediate(ctx context.Context, pair *ActorPair) error {
	addr, ok := pair.cfg.PrimaryAddress()
	if !ok {
		return fmt.Errorf("passthrough: %s has no backend address", pair.configID)
	}
	if err := pair.DialServer(ctx, addr); err != nil {
		return err
	}
	for _, payload := range pair.Pending {
		if err := pair.Server.WriteBytes(payload); err != nil {
			return fmt.Errorf("passthrough: replaying packet to backend: %w", err)
		}
	}
	return nil
}
