package daemon

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxelway/forgelink/internal/bridge"
)

var bridgePingFn = func(b *bridge.Bridge) error {
	return b.Ping()
}

// pinger sends periodic websocket pings so a half-open engine link is
// detected between commands. A failed ping tears the connection down inside
// the bridge, which then owns the reconnect.
type pinger struct {
	br       *bridge.Bridge
	interval time.Duration
	log      zerolog.Logger

	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func newPinger(br *bridge.Bridge, interval time.Duration, log zerolog.Logger) *pinger {
	return &pinger{
		br:       br,
		interval: interval,
		log:      log,
		stop:     make(chan struct{}),
	}
}

func (p *pinger) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if bridgeStateFn(p.br) != bridge.StateConnected {
					continue
				}
				if err := bridgePingFn(p.br); err != nil {
					p.log.Debug().Err(err).Msg("engine ping failed")
				}
			case <-p.stop:
				return
			}
		}
	}()
}

func (p *pinger) Stop() {
	p.once.Do(func() { close(p.stop) })
	p.wg.Wait()
}
