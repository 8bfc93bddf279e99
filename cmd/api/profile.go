package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/n0dr1e/internal/application"
	appscans "github.com/bryanwahyu/n0dr1e/internal/application/scans"
	"github.com/bryanwahyu/n0dr1e/internal/config"
	"github.com/bryanwahyu/n0dr1e/internal/domain/profiles"
	"github.com/bryanwahyu/n0dr1e/internal/infra/db"
)

func profileCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage user profiles",
	}

	var p profiles.Profile
	var tier string
	set := &cobra.Command{
		Use:   "set",
		Short: "Create or update a user profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Database.Driver == config.DriverMemory {
				return fmt.Errorf("profile set needs a persistent database, driver is %q", config.DriverMemory)
			}
			store, err := db.Open(cmd.Context(), a.cfg.Database, true)
			if err != nil {
				return err
			}
			defer store.Close()

			svc := &appscans.Service{
				Scans:    store.Scans,
				Threats:  store.Threats,
				Profiles: store.Profiles,
				Clock:    application.SystemClock{},
				Logger:   a.logger,
			}
			p.Tier = profiles.Tier(strings.ToLower(tier))
			if existing, err := store.Profiles.Get(cmd.Context(), p.UserID); err == nil {
				p.CreatedAt = existing.CreatedAt
			}
			if err := svc.SaveProfile(cmd.Context(), &p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "profile %s saved (tier %s)\n", p.UserID, p.Tier)
			return nil
		},
	}
	set.Flags().StringVar(&p.UserID, "user", "", "User id")
	set.Flags().StringVar(&p.Email, "email", "", "Email address")
	set.Flags().StringVar(&p.FullName, "name", "", "Full name")
	set.Flags().StringVar(&tier, "tier", string(profiles.TierFree), "Subscription tier (free, pro, enterprise)")
	set.Flags().StringVar(&p.SubscriptionStatus, "status", "active", "Subscription status")
	_ = set.MarkFlagRequired("user")

	cmd.AddCommand(set)
	return cmd
}
