package chain

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/exp/slices"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
	"github.com/smartcontractkit/chainlink-common/pkg/services"

	relayer "github.com/bcnmy/bundler-sub000"
)

var _ services.Service = (*Registry)(nil)

// Registry routes requests to the chain they target.
type Registry struct {
	services.StateMachine
	lggr   logger.Logger
	chains map[uint64]*Chain
}

func NewRegistry(lggr logger.Logger, chains ...*Chain) (*Registry, error) {
	r := &Registry{lggr: logger.Named(lggr, "Registry"), chains: map[uint64]*Chain{}}
	for _, c := range chains {
		if _, ok := r.chains[c.ID()]; ok {
			return nil, fmt.Errorf("duplicate chain %d", c.ID())
		}
		r.chains[c.ID()] = c
	}
	return r, nil
}

func (r *Registry) Get(chainID uint64) (*Chain, error) {
	c, ok := r.chains[chainID]
	if !ok {
		return nil, fmt.Errorf("chain %d is not supported", chainID)
	}
	return c, nil
}

// ChainIDs returns the supported chains in ascending order.
func (r *Registry) ChainIDs() []uint64 {
	ids := make([]uint64, 0, len(r.chains))
	for id := range r.chains {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (r *Registry) Submit(ctx context.Context, req relayer.TransactionRequest) error {
	c, err := r.Get(req.ChainID)
	if err != nil {
		return err
	}
	return c.Submit(ctx, req)
}

func (r *Registry) Name() string {
	return r.lggr.Name()
}

func (r *Registry) Start(ctx context.Context) error {
	return r.StartOnce("Registry", func() error {
		var ms services.MultiStart
		for _, id := range r.ChainIDs() {
			if err := ms.Start(ctx, r.chains[id]); err != nil {
				return err
			}
			r.lggr.Infow("Chain started", "chainID", id)
		}
		return nil
	})
}

func (r *Registry) Close() error {
	return r.StopOnce("Registry", func() error {
		var cs []io.Closer
		for _, c := range r.chains {
			cs = append(cs, c)
		}
		return services.CloseAll(cs...)
	})
}

func (r *Registry) HealthReport() map[string]error {
	report := map[string]error{r.Name(): r.Healthy()}
	for _, c := range r.chains {
		services.CopyHealth(report, c.HealthReport())
	}
	return report
}
