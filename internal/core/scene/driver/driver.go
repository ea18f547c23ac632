// Package driver moves entity state between a local registry and one peer.
//
// Outbound, every tick collects the entities whose dirty flag is set, encodes
// their snapshots as one batch and sends it. Inbound, each received batch is
// decoded in full before anything is applied, so a malformed batch leaves the
// scene untouched. Received states are applied with UpdateTransform and are
// never sent back out.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/observability/log"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/scene/codec"
	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/scene/registry"
)

// Transport sends and receives encoded batches.
type Transport interface {
	SendBatch(ctx context.Context, data []byte) error
	ReceiveBatch(ctx context.Context) ([]byte, error)
	Close() error
}

type Config struct {
	TickRate time.Duration
	// SpawnShadows creates local entities for unknown received ids.
	SpawnShadows bool
}

func DefaultConfig() Config {
	return Config{
		TickRate:     50 * time.Millisecond,
		SpawnShadows: true,
	}
}

// Stats counts driver activity since construction.
type Stats struct {
	BatchesSent     uint64
	StatesSent      uint64
	BatchesReceived uint64
	StatesApplied   uint64
	BatchesDropped  uint64
}

type Driver struct {
	config    Config
	registry  *registry.Registry
	spawn     registry.SpawnFunc
	transport Transport
	logger    log.Log

	batchesSent     atomic.Uint64
	statesSent      atomic.Uint64
	batchesReceived atomic.Uint64
	statesApplied   atomic.Uint64
	batchesDropped  atomic.Uint64
}

// New builds a driver. spawn may be nil, in which case unknown ids are
// skipped regardless of config.
func New(config Config, reg *registry.Registry, spawn registry.SpawnFunc, transport Transport, logger log.Log) *Driver {
	if config.TickRate <= 0 {
		config.TickRate = DefaultConfig().TickRate
	}
	if !config.SpawnShadows {
		spawn = nil
	}
	return &Driver{
		config:    config,
		registry:  reg,
		spawn:     spawn,
		transport: transport,
		logger:    log.OrNop(logger).With(log.String("component", "sync_driver")),
	}
}

// Flush sends one batch with every dirty entity. Nothing is sent when no
// entity is dirty.
func (d *Driver) Flush(ctx context.Context) (int, error) {
	states, err := d.registry.CollectDirty(ctx)
	if err != nil {
		return 0, err
	}
	if len(states) == 0 {
		return 0, nil
	}

	if err = d.transport.SendBatch(ctx, codec.Marshal(states)); err != nil {
		// The dirty flags were already taken; mark the entities again so the
		// states go out with the next batch.
		for _, s := range states {
			if e, ok := d.registry.Get(s.ID); ok {
				e.MarkDirty()
			}
		}
		return 0, fmt.Errorf("send batch: %w", err)
	}

	d.batchesSent.Add(1)
	d.statesSent.Add(uint64(len(states)))
	d.logger.Debug("batch sent", log.Int("states", len(states)))
	return len(states), nil
}

// HandleBatch decodes data and applies it to the registry.
func (d *Driver) HandleBatch(data []byte) (registry.ApplyResult, error) {
	states, err := codec.Unmarshal(data)
	if err != nil {
		return registry.ApplyResult{}, err
	}

	res, err := d.registry.Apply(states, d.spawn)
	if err != nil {
		return res, err
	}

	d.batchesReceived.Add(1)
	d.statesApplied.Add(uint64(res.Updated + res.Spawned))
	return res, nil
}

// Run drives the tick loop and the receive loop until ctx is done or the
// transport fails. Malformed batches are dropped and logged. The transport is
// closed on return.
func (d *Driver) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		ticker := time.NewTicker(d.config.TickRate)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				if _, err := d.Flush(groupCtx); err != nil {
					if groupCtx.Err() != nil {
						return nil
					}
					return err
				}
			}
		}
	})

	group.Go(func() error {
		for {
			data, err := d.transport.ReceiveBatch(groupCtx)
			if err != nil {
				if groupCtx.Err() != nil || errors.Is(err, io.EOF) {
					return err
				}
				return fmt.Errorf("receive batch: %w", err)
			}
			if _, err = d.HandleBatch(data); err != nil {
				if errors.Is(err, codec.ErrMalformedBatch) {
					d.batchesDropped.Add(1)
					d.logger.Warn("dropping malformed batch", log.Int("bytes", len(data)), log.Error(err))
					continue
				}
				return err
			}
		}
	})

	// ReceiveBatch does not watch the context, so closing the transport is
	// what unblocks the receive loop.
	group.Go(func() error {
		<-groupCtx.Done()
		return d.transport.Close()
	})

	err := group.Wait()
	if errors.Is(err, io.EOF) || (err != nil && ctx.Err() != nil) {
		err = nil
	}
	d.logger.Info("sync driver stopped", log.Any("stats", d.Stats()))
	return err
}

func (d *Driver) Stats() Stats {
	return Stats{
		BatchesSent:     d.batchesSent.Load(),
		StatesSent:      d.statesSent.Load(),
		BatchesReceived: d.batchesReceived.Load(),
		StatesApplied:   d.statesApplied.Load(),
		BatchesDropped:  d.batchesDropped.Load(),
	}
}
