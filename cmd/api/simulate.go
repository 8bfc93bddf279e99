package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/n0dr1e/internal/application"
	appscans "github.com/bryanwahyu/n0dr1e/internal/application/scans"
	"github.com/bryanwahyu/n0dr1e/internal/domain/profiles"
	"github.com/bryanwahyu/n0dr1e/internal/domain/threats"
	"github.com/bryanwahyu/n0dr1e/internal/infra/db/memory"
)

type simulateFlags struct {
	user     string
	scanType string
	path     string
	tier     string
	seed     uint64
}

// simulate runs one scan against the memory store and prints its progress.
// Interrupting stops the scan.
func simulateCommand(a *app) *cobra.Command {
	var f simulateFlags
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a simulated scan in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.simulate(cmd.Context(), cmd.OutOrStdout(), f)
		},
	}
	cmd.Flags().StringVar(&f.user, "user", "local", "User id")
	cmd.Flags().StringVarP(&f.scanType, "type", "t", "quick", "Scan type (quick, full, custom)")
	cmd.Flags().StringVarP(&f.path, "path", "p", "", "Path for custom scans")
	cmd.Flags().StringVar(&f.tier, "tier", string(profiles.TierPro), "Subscription tier of the simulated user")
	cmd.Flags().Uint64Var(&f.seed, "seed", 0, "Random seed (0 picks one)")
	return cmd
}

func (a *app) simulate(ctx context.Context, out io.Writer, f simulateFlags) error {
	store := memory.New()
	svc := &appscans.Service{
		Scans:    store.Scans(),
		Threats:  store.Threats(),
		Profiles: store.Profiles(),
		Random:   application.NewRandom(f.seed),
		Logger:   a.logger,
		Config: appscans.SimulatorConfig{
			TickInterval:    a.cfg.Simulator.TickInterval,
			FilesPerTickMin: a.cfg.Simulator.FilesPerTickMin,
			FilesPerTickMax: a.cfg.Simulator.FilesPerTickMax,
		},
	}
	defer svc.Close(context.Background())

	if err := svc.SaveProfile(ctx, &profiles.Profile{UserID: f.user, Tier: profiles.Tier(f.tier)}); err != nil {
		return err
	}

	snaps, release := svc.Subscribe(f.user)
	defer release()

	started, err := svc.StartScan(ctx, appscans.StartScanCommand{UserID: f.user, Type: f.scanType, Path: f.path})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "scan %s (%s) started: %s files\n",
		started.ScanID, started.ScanType, humanize.Comma(int64(started.TotalFiles)))

	// frames can be dropped for slow readers; poll so completion is never missed
	poll := time.NewTicker(250 * time.Millisecond)
	defer poll.Stop()

	last := -1
	for {
		select {
		case <-poll.C:
			if snap := svc.Current(f.user); snap.Phase == appscans.PhaseCompleted {
				return a.report(ctx, out, store, snap)
			}
		case <-ctx.Done():
			snap, err := svc.StopScan(context.Background(), f.user)
			fmt.Fprintf(out, "\nscan stopped (%s)\n", snap.Phase)
			return err
		case snap := <-snaps:
			if snap.Phase == appscans.PhaseRunning && snap.Progress != last {
				last = snap.Progress
				fmt.Fprintf(out, "\r[%3d%%] %s / %s files  %-40.40s",
					snap.Progress, humanize.Comma(int64(snap.FilesScanned)),
					humanize.Comma(int64(snap.TotalFiles)), snap.CurrentFile)
			}
			if snap.Phase == appscans.PhaseCompleted {
				return a.report(ctx, out, store, snap)
			}
		}
	}
}

func (a *app) report(ctx context.Context, out io.Writer, store *memory.Store, snap appscans.Snapshot) error {
	elapsed := time.Duration(0)
	if snap.StartedAt != nil {
		elapsed = time.Since(*snap.StartedAt).Round(time.Millisecond)
	}
	fmt.Fprintf(out, "\r[100%%] %s files scanned in %s, %d threat(s) found\n",
		humanize.Comma(int64(snap.FilesScanned)), elapsed, snap.ThreatsFound)
	if snap.Error != "" {
		fmt.Fprintf(out, "warning: %s\n", snap.Error)
	}

	found, err := store.Threats().List(ctx, snap.UserID, threats.Filter{})
	if err != nil {
		return err
	}
	for _, t := range found {
		fmt.Fprintf(out, "  %-8s %-8s %-14s %s\n", t.Severity, t.Type, t.Name, t.FilePath)
	}
	return nil
}
