package conflicts

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"zapretd/internal/domain"
	"zapretd/internal/infra/proctable"
	"zapretd/internal/infra/telemetry"
)

const lookupConcurrency = 4

// Entry maps an executable name to the name shown to the user.
type Entry struct {
	ProcessName string
	DisplayName string
}

// DefaultDenylist lists tools known to interfere with the worker.
var DefaultDenylist = []Entry{
	{ProcessName: "goodbyedpi", DisplayName: "GoodbyeDPI"},
	{ProcessName: "openvpn", DisplayName: "OpenVPN"},
	{ProcessName: "wireguard", DisplayName: "WireGuard"},
	{ProcessName: "protonvpn", DisplayName: "Proton VPN"},
	{ProcessName: "tun2socks", DisplayName: "tun2socks"},
}

type Detector struct {
	table    proctable.Table
	denylist []Entry
	metrics  domain.Metrics
	logger   *zap.Logger
}

type Options struct {
	Table    proctable.Table
	Denylist []Entry
	Metrics  domain.Metrics
	Logger   *zap.Logger
}

func New(opts Options) *Detector {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	table := opts.Table
	if table == nil {
		table = proctable.NewSystem()
	}
	denylist := opts.Denylist
	if denylist == nil {
		denylist = DefaultDenylist
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &Detector{
		table:    table,
		denylist: append([]Entry(nil), denylist...),
		metrics:  metrics,
		logger:   logger.Named("conflicts"),
	}
}

// Detect returns the display names of running denylisted processes in denylist
// order. A failed lookup omits that entry; Detect itself never fails.
func (d *Detector) Detect(ctx context.Context) []string {
	found := make([]bool, len(d.denylist))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(lookupConcurrency)
	for i, entry := range d.denylist {
		group.Go(func() error {
			pids, err := d.table.FindByName(groupCtx, entry.ProcessName)
			if err != nil {
				d.logger.Debug("conflict lookup failed",
					zap.String("process", entry.ProcessName),
					zap.Error(err),
				)
				return nil
			}
			found[i] = len(pids) > 0
			return nil
		})
	}
	_ = group.Wait()

	out := make([]string, 0, len(d.denylist))
	for i, entry := range d.denylist {
		if !found[i] {
			continue
		}
		d.logger.Info("conflicting process running",
			telemetry.EventField(telemetry.EventConflict),
			zap.String("process", entry.ProcessName),
			zap.String("name", entry.DisplayName),
		)
		out = append(out, entry.DisplayName)
	}
	d.metrics.SetConflicts(len(out))
	return out
}
