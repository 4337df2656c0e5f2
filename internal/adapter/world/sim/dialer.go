package sim

import (
	"context"

	"agentbridge/internal/app/ports"
	"agentbridge/internal/domain/world"
)

// Dialer spawns an in-process world per session. The seed is offset by
// the requested port so each port names a stable world.
type Dialer struct {
	Config Config
}

func (d Dialer) Dial(ctx context.Context, opts world.StartOptions) (ports.World, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := d.Config
	cfg.Seed += int64(opts.Port)
	w := New(cfg)
	go w.Run()
	return w, nil
}
