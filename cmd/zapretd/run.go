package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"zapretd/internal/app"
	"zapretd/internal/domain"
	"zapretd/internal/infra/telemetry"
)

type runOptions struct {
	globalAddressSet bool
	gamingAddressSet bool
	showWindow       bool
	force            bool
	watch            bool
}

func newRunCmd(opts *cliOptions) *cobra.Command {
	var runOpts runOptions
	cmd := &cobra.Command{
		Use:   "run [profile paths...]",
		Short: "Start workers for the given profiles and keep them running until interrupted",
		Long: "Start one worker per profile in category priority order. Without arguments the\n" +
			"last saved selection is used. The selection and toggles are saved for next time.",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd, opts, sessionOptions{openSettings: true})
			if err != nil {
				return err
			}
			defer sess.Close()

			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()
			sess.serveMetrics(ctx)

			return runWorkers(ctx, cmd, sess, args, runOpts)
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&runOpts.globalAddressSet, "global-ipset", false, "drop hostlist filters from non-gaming profiles")
	flags.BoolVar(&runOpts.gamingAddressSet, "gaming-ipset", false, "drop hostlist filters from gaming profiles")
	flags.BoolVar(&runOpts.showWindow, "show-window", false, "give each worker a visible console window")
	flags.BoolVar(&runOpts.force, "force", false, "start even when conflicting programs are running")
	flags.BoolVar(&runOpts.watch, "watch", false, "restart workers when their profile files change")
	return cmd
}

func runWorkers(ctx context.Context, cmd *cobra.Command, sess *session, args []string, runOpts runOptions) error {
	out := cmd.OutOrStdout()
	logger := sess.logger.With(zap.String(telemetry.FieldLogSource, telemetry.LogSourceCLI)).Named("cli")

	selected, toggles, err := resolveSelection(ctx, sess.app, args)
	if err != nil {
		return err
	}
	if togglesChanged(cmd) || len(args) > 0 {
		toggles = domain.Toggles{
			GlobalAddressSet: runOpts.globalAddressSet,
			GamingAddressSet: runOpts.gamingAddressSet,
			ShowWindow:       runOpts.showWindow,
		}
	}
	if len(selected) == 0 {
		return domain.E(domain.CodeInvalidArgument, "run", "pass profile paths or save a selection first", domain.ErrNoProfilesSelected)
	}

	if found := sess.app.DetectConflicts(ctx); len(found) > 0 {
		if !runOpts.force {
			return domain.E(domain.CodeFailedPrecond, "run",
				fmt.Sprintf("conflicting programs running: %s (use --force to start anyway)", strings.Join(found, ", ")),
				domain.ErrConflictsDetected)
		}
		logger.Warn("starting despite conflicting programs", zap.Strings("conflicts", found))
	}

	if err := sess.app.SaveSelection(selected, toggles); err != nil {
		logger.Warn("save selection failed", zap.Error(err))
	}

	events, unsubscribe := sess.app.SubscribeStatus(16)
	defer unsubscribe()

	if err := sess.app.Start(ctx, selected, toggles); err != nil {
		return err
	}
	workers := sess.app.Workers()
	fmt.Fprintf(out, "started %d worker(s) from %d profile(s)\n", len(workers), len(selected))
	for _, worker := range workers {
		fmt.Fprintf(out, "  pid=%d %s (%s)\n", worker.PID, worker.Profile.DisplayName(), worker.Profile.Category.DisplayName())
	}

	if runOpts.watch {
		reloader := app.NewProfileReloader(sess.app, selected, sess.logger)
		reloader.OnReload(func(paths []string, err error) {
			if err != nil {
				fmt.Fprintf(out, "reload failed: %v\n", err)
				return
			}
			fmt.Fprintf(out, "reloaded after change to %s\n", strings.Join(paths, ", "))
		})
		reloader.Start(ctx)
	}

	for waiting := true; waiting; {
		select {
		case <-ctx.Done():
			waiting = false
		case event, ok := <-events:
			if !ok {
				waiting = false
				continue
			}
			logger.Debug("status changed", zap.Bool("running", event.Running), zap.Int("workers", event.Workers))
			if !event.Running && !sess.app.IsRunning() {
				fmt.Fprintln(out, "no workers running")
			}
		}
	}

	fmt.Fprintln(out, "stopping workers...")
	return sess.app.Stop(context.Background())
}

// resolveSelection maps command-line paths to profiles, falling back to the
// saved selection and toggles.
func resolveSelection(ctx context.Context, a *app.App, args []string) ([]domain.Profile, domain.Toggles, error) {
	if len(args) == 0 {
		return a.SelectedProfiles(ctx)
	}
	selected := make([]domain.Profile, 0, len(args))
	for _, arg := range args {
		path, err := filepath.Abs(arg)
		if err != nil {
			return nil, domain.Toggles{}, domain.Wrap(domain.CodeInvalidArgument, "run", err)
		}
		profile, err := a.LookupProfile(ctx, path)
		if err != nil {
			return nil, domain.Toggles{}, err
		}
		selected = append(selected, profile)
	}
	return selected, domain.Toggles{}, nil
}

func togglesChanged(cmd *cobra.Command) bool {
	flags := cmd.Flags()
	return flags.Changed("global-ipset") || flags.Changed("gaming-ipset") || flags.Changed("show-window")
}
