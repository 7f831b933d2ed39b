package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxelway/forgelink/internal/bridge"
	"github.com/voxelway/forgelink/internal/cache"
	"github.com/voxelway/forgelink/internal/config"
	"github.com/voxelway/forgelink/internal/gate"
	"github.com/voxelway/forgelink/internal/ipc"
	"github.com/voxelway/forgelink/internal/ledger"
	"github.com/voxelway/forgelink/internal/manifest"
	"github.com/voxelway/forgelink/internal/paths"
	"github.com/voxelway/forgelink/internal/response"
)

const pingInterval = 15 * time.Second

var (
	bridgeExecuteFn = func(ctx context.Context, b *bridge.Bridge, name string, payload json.RawMessage) (json.RawMessage, error) {
		return b.Execute(ctx, name, payload)
	}
	bridgeSnapshotFn = func(b *bridge.Bridge, channel string) (json.RawMessage, bool) {
		return b.Snapshot(channel)
	}
	bridgeStateFn = func(b *bridge.Bridge) bridge.State {
		return b.State()
	}
	cacheGet         = cache.Get
	cacheGetMetadata = cache.GetMetadata
	cachePut         = cache.Put
	signalShutdownFn = func() {
		p, _ := os.FindProcess(os.Getpid())
		_ = p.Signal(syscall.SIGTERM)
	}
)

// Daemon owns the engine link and serves IPC requests from the CLI and the
// MCP tool server.
type Daemon struct {
	cfg *config.Config
	man *manifest.Manifest
	g   *gate.Gate
	br  *bridge.Bridge
	led *ledger.Ledger
	log zerolog.Logger
}

// Run starts the daemon process. Called when argv[1] == "__daemon".
func Run() error {
	log := zerolog.New(os.Stderr).With().Timestamp().Str("component", "daemon").Logger()

	if err := paths.EnsureDir(paths.RuntimeDir()); err != nil {
		return fmt.Errorf("creating runtime dir: %w", err)
	}
	if err := paths.EnsureDir(paths.StateDir()); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if verr := config.Validate(cfg); verr != nil {
		return fmt.Errorf("invalid config: %w", verr)
	}

	man, err := loadManifest(cfg)
	if err != nil {
		return err
	}

	nonce, err := readOrCreateNonce()
	if err != nil {
		return fmt.Errorf("nonce setup: %w", err)
	}

	led, err := ledger.Open(paths.LedgerFile(), cfg.Billing.TokenBudget)
	if err != nil {
		return fmt.Errorf("opening token ledger: %w", err)
	}

	g := gate.New(man, gate.Entitlements{
		Tier:   cfg.Caller.Tier,
		Scopes: cfg.Caller.Scopes,
	}, led)

	br := bridge.New(bridge.Options{
		URL:            cfg.Engine.URL,
		AuthToken:      cfg.Engine.AuthToken,
		Headers:        headerFromMap(cfg.Engine.Headers),
		CommandTimeout: cfg.CommandTimeout(),
		ReconnectBase:  cfg.ReconnectBase(),
		ReconnectMax:   cfg.ReconnectMax(),
		Logger:         log,
	})
	if err := br.Connect(context.Background()); err != nil {
		return fmt.Errorf("connecting to engine at %s: %w", cfg.Engine.URL, err)
	}
	defer br.Disconnect()

	p := newPinger(br, pingInterval, log)
	p.Start()
	defer p.Stop()

	d := &Daemon{cfg: cfg, man: man, g: g, br: br, led: led, log: log}

	srv := ipc.NewServer(paths.SocketPath(), nonce, d.dispatch, log)
	if err := srv.Start(); err != nil {
		return err
	}
	defer srv.Stop()

	log.Info().
		Str("socket", paths.SocketPath()).
		Str("engine", cfg.Engine.URL).
		Int("commands", len(man.Commands)).
		Msg("listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	return nil
}

// loadManifest reads the configured manifest document, or falls back to the
// builtin catalog. A manifest that fails validation refuses startup outright
// so a bad deploy cannot silently serve half a catalog.
func loadManifest(cfg *config.Config) (*manifest.Manifest, error) {
	var (
		man *manifest.Manifest
		err error
	)
	if cfg.Manifest.Path != "" {
		man, err = manifest.Load(cfg.Manifest.Path)
		if err != nil {
			return nil, fmt.Errorf("loading manifest: %w", err)
		}
	} else {
		man = manifest.Builtin()
	}
	if verr := man.Validate(); verr != nil {
		return nil, fmt.Errorf("invalid manifest: %w", verr)
	}
	return man, nil
}

func headerFromMap(m map[string]string) http.Header {
	if len(m) == 0 {
		return nil
	}
	h := make(http.Header, len(m))
	for k, v := range m {
		h.Set(k, v)
	}
	return h
}

func (d *Daemon) dispatch(ctx context.Context, req *ipc.Request) *ipc.Response {
	switch req.Type {
	case "status":
		return d.status()
	case "commands":
		return d.commands(req.Category, req.Verbose)
	case "schema":
		return d.schema(req.Command)
	case "execute":
		return d.execute(ctx, req)
	case "snapshot":
		return d.snapshot(req.Channel)
	case "shutdown":
		go signalShutdownFn()
		return &ipc.Response{Content: []byte("shutting down\n")}
	default:
		return &ipc.Response{ExitCode: ipc.ExitUsageErr, Stderr: fmt.Sprintf("unknown request type: %s", req.Type)}
	}
}

func (d *Daemon) status() *ipc.Response {
	balance, err := d.led.Balance()
	if err != nil {
		return &ipc.Response{ExitCode: ipc.ExitInternal, Stderr: fmt.Sprintf("reading ledger: %v", err)}
	}

	payload := map[string]any{
		"state":    bridgeStateFn(d.br).String(),
		"engine":   d.cfg.Engine.URL,
		"tier":     d.cfg.Caller.Tier,
		"balance":  balance,
		"commands": len(d.man.Commands),
	}
	data, _ := json.MarshalIndent(payload, "", "  ")
	data = append(data, '\n')
	return &ipc.Response{Content: data}
}

func (d *Daemon) commands(category string, verbose bool) *ipc.Response {
	cat := manifest.Category(category)
	if category != "" && !cat.Known() {
		return &ipc.Response{ExitCode: ipc.ExitUsageErr, Stderr: fmt.Sprintf("unknown category: %s", category)}
	}

	list := d.man.List(cat)

	if verbose {
		data, err := json.Marshal(list)
		if err != nil {
			return &ipc.Response{ExitCode: ipc.ExitInternal, Stderr: fmt.Sprintf("encoding commands: %v", err)}
		}
		return &ipc.Response{Content: append(data, '\n')}
	}

	var out []byte
	for _, cmd := range list {
		line := cmd.Name
		if desc := strings.TrimSpace(cmd.Description); desc != "" {
			line += "\t" + desc
		}
		if cmd.TokenCost > 0 {
			line += fmt.Sprintf("\t(%d tokens)", cmd.TokenCost)
		}
		out = append(out, []byte(line+"\n")...)
	}
	return &ipc.Response{Content: out}
}

func (d *Daemon) schema(name string) *ipc.Response {
	cmd, ok := d.man.Lookup(name)
	if !ok {
		return &ipc.Response{ExitCode: ipc.ExitUsageErr, Stderr: fmt.Sprintf("unknown command: %s", name)}
	}

	payload := map[string]any{
		"name":          cmd.Name,
		"description":   cmd.Description,
		"category":      cmd.Category,
		"tokenCost":     cmd.TokenCost,
		"requiredScope": cmd.RequiredScope,
	}
	if len(cmd.Parameters) > 0 {
		var params any
		if err := json.Unmarshal(cmd.Parameters, &params); err == nil {
			payload["parameters"] = params
		}
	}

	data, _ := json.MarshalIndent(payload, "", "  ")
	data = append(data, '\n')
	return &ipc.Response{Content: data}
}

func (d *Daemon) execute(ctx context.Context, req *ipc.Request) *ipc.Response {
	cmd, receipt, err := d.g.Authorize(ctx, req.Command)
	if err != nil {
		return executeFailure(err)
	}

	ttl, shouldCache := d.effectiveCacheTTL(cmd, req.Cache)
	var logs []string
	if shouldCache {
		if out, ok := cacheGet(cmd.Name, req.Args); ok {
			// Served from disk: no engine work was done, so hand the
			// reservation back.
			if rerr := d.g.Refund(ctx, receipt); rerr != nil {
				d.log.Warn().Err(rerr).Str("command", cmd.Name).Msg("refund after cache hit failed")
			}
			if req.Verbose {
				if age, cachedTTL, ok := cacheGetMetadata(cmd.Name, req.Args); ok {
					logs = append(logs, fmt.Sprintf("forgelink: cache hit (age=%s ttl=%s)", age.Round(time.Millisecond), cachedTTL))
				} else {
					logs = append(logs, "forgelink: cache hit")
				}
			}
			return &ipc.Response{Content: out, Stderr: joinLogs(logs)}
		}
		if req.Verbose {
			logs = append(logs, "forgelink: cache miss")
		}
	}

	result, err := bridgeExecuteFn(ctx, d.br, cmd.Name, req.Args)
	if err != nil {
		if rerr := d.g.Refund(ctx, receipt); rerr != nil {
			d.log.Warn().Err(rerr).Str("command", cmd.Name).Msg("refund after failed command failed")
		}
		resp := executeFailure(err)
		resp.Stderr = joinLogs(append(logs, resp.Stderr))
		return resp
	}

	out := response.Render(result)
	if shouldCache {
		if cerr := cachePut(cmd.Name, req.Args, out, ttl); cerr != nil {
			d.log.Debug().Err(cerr).Str("command", cmd.Name).Msg("cache store failed")
		} else if req.Verbose {
			logs = append(logs, fmt.Sprintf("forgelink: cache store (ttl=%s)", ttl))
		}
	}
	return &ipc.Response{Content: out, Stderr: joinLogs(logs)}
}

// effectiveCacheTTL decides whether this execution reads and writes the
// result cache. Only query-category commands are ever cached; a per-request
// TTL overrides the configured default, and a non-positive TTL disables
// caching for the call.
func (d *Daemon) effectiveCacheTTL(cmd *manifest.Command, reqCache *time.Duration) (time.Duration, bool) {
	if cmd.Category != manifest.CategoryQuery {
		return 0, false
	}
	ttl := d.cfg.QueryCacheTTL()
	if reqCache != nil {
		ttl = *reqCache
	}
	if ttl <= 0 {
		return 0, false
	}
	return ttl, true
}

func (d *Daemon) snapshot(channel string) *ipc.Response {
	if !validChannel(channel) {
		return &ipc.Response{
			ExitCode: ipc.ExitUsageErr,
			Stderr:   fmt.Sprintf("unknown channel: %s (valid: %s)", channel, strings.Join(bridge.Channels(), ", ")),
		}
	}

	data, ok := bridgeSnapshotFn(d.br, channel)
	if !ok {
		return &ipc.Response{
			ExitCode: ipc.ExitCommandErr,
			Stderr:   fmt.Sprintf("no %s snapshot received yet", channel),
		}
	}
	return &ipc.Response{Content: response.Render(data)}
}

func validChannel(channel string) bool {
	for _, known := range bridge.Channels() {
		if channel == known {
			return true
		}
	}
	return false
}

func joinLogs(lines []string) string {
	out := lines[:0]
	for _, line := range lines {
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
