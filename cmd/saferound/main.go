package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mmynk/saferound/internal/config"
	"github.com/mmynk/saferound/internal/estimator"
	"github.com/mmynk/saferound/internal/groupsync"
	"github.com/mmynk/saferound/internal/models"
	"github.com/mmynk/saferound/internal/remote"
	"github.com/mmynk/saferound/internal/session"
	"github.com/mmynk/saferound/internal/tagscan"
	"github.com/mmynk/saferound/pkg/api"
	"github.com/mmynk/saferound/pkg/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}

type globals struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	var g globals

	root := &cobra.Command{
		Use:           "saferound",
		Short:         "Track drinks, estimate BAC and keep your group in the loop",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", defaultConfigPath(), "client config file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "log level: debug|info|warn|error")

	root.AddCommand(newSessionCmd(&g))
	root.AddCommand(newEstimateCmd(&g))
	root.AddCommand(newGroupsCmd(&g))
	root.AddCommand(newProfileCmd(&g))
	root.AddCommand(newDrinkCmd(&g))
	return root
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "saferound.yaml"
	}
	return filepath.Join(dir, "saferound", "config.yaml")
}

type app struct {
	cfg    config.Client
	client *remote.Client
	logger *slog.Logger
}

func loadApp(g *globals) (*app, error) {
	cfg, err := config.LoadClient(g.configPath)
	if err != nil {
		return nil, err
	}
	logger := logging.New(os.Stderr, logging.ParseLevel(g.logLevel))
	client := remote.New(cfg.ServerURL,
		remote.WithTimeout(cfg.Timeout),
		remote.WithToken(cfg.Token),
		remote.WithLogger(logger),
	)
	return &app{cfg: cfg, client: client, logger: logger}, nil
}

// loadUserApp is loadApp for commands that act as the configured user.
func loadUserApp(g *globals) (*app, error) {
	a, err := loadApp(g)
	if err != nil {
		return nil, err
	}
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

func newSessionCmd(g *globals) *cobra.Command {
	var offline bool
	var tagsPath string

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Start an interactive session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadUserApp(g)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := &syncWriter{w: cmd.OutOrStdout()}
			opts := []session.Option{
				session.WithBiometrics(a.cfg.Biometrics()),
				session.WithLogger(a.logger),
				session.WithPollInterval(a.cfg.PollInterval),
				session.WithReactionOptions(reactionObserver(out)),
			}
			if offline {
				opts = append(opts, session.WithOracle(estimator.LocalOracle{}))
			} else {
				opts = append(opts, session.WithRemote(a.client))
			}
			sess := session.New(a.cfg.UserID, opts...)
			defer sess.Close()

			if tagsPath != "" {
				f, err := os.Open(tagsPath)
				if err != nil {
					return fmt.Errorf("open tag source: %w", err)
				}
				defer f.Close()
				go func() {
					if err := sess.Listen(ctx, tagscan.NewLineSource(f)); err != nil && !errors.Is(err, context.Canceled) {
						a.logger.Warn("Tag source stopped", "error", err)
					}
				}()
			}

			out.println(titleStyle.Render("SafeRound") + mutedStyle.Render(" signed in as "+a.cfg.UserID+", type help"))
			r := &repl{sess: sess, out: out}
			return r.run(ctx, cmd.InOrStdin())
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "estimate locally and skip groups")
	cmd.Flags().StringVar(&tagsPath, "tags", "", "file or FIFO of newline-delimited tag payloads")
	return cmd
}

func newEstimateCmd(g *globals) *cobra.Command {
	var weight, grams, minutes float64
	var sex string
	var local bool

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate BAC for an amount of alcohol",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(g)
			if err != nil {
				return err
			}
			bio := a.cfg.Biometrics()
			if cmd.Flags().Changed("weight") {
				bio.WeightKg = weight
			}
			if cmd.Flags().Changed("sex") {
				if bio.Sex, err = models.ParseSex(sex); err != nil {
					return err
				}
			}
			if !bio.Valid() {
				return estimator.ErrBiometricsRequired
			}

			var bac float64
			var status models.BACStatus
			if local {
				bac, err = estimator.Compute(bio, grams, time.Duration(minutes*float64(time.Minute)))
				if err != nil {
					return err
				}
			} else {
				est, err := a.client.EstimateBAC(cmd.Context(), a.cfg.UserID, bio, grams, minutes)
				if err != nil {
					return err
				}
				bac, status = est.BAC, est.Status
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), renderBAC(bac, status))
			return nil
		},
	}
	cmd.Flags().Float64Var(&weight, "weight", 0, "body weight in kg")
	cmd.Flags().StringVar(&sex, "sex", "", "male|female")
	cmd.Flags().Float64Var(&grams, "grams", models.StandardDrinkGrams, "grams of alcohol consumed")
	cmd.Flags().Float64Var(&minutes, "minutes", 0, "minutes since the first drink")
	cmd.Flags().BoolVar(&local, "local", false, "compute without contacting the server")
	return cmd
}

func newGroupsCmd(g *globals) *cobra.Command {
	groups := &cobra.Command{Use: "groups", Short: "Group commands"}

	groups.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List groups",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(g)
			if err != nil {
				return err
			}
			list, err := a.client.ListGroups(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), renderGroups(list))
			return nil
		},
	})

	groups.AddCommand(&cobra.Command{
		Use:   "create [name]",
		Short: "Create a group",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadUserApp(g)
			if err != nil {
				return err
			}
			summary, err := a.client.CreateGroup(cmd.Context(), a.cfg.UserID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), renderGroups([]models.GroupSummary{summary}))
			return nil
		},
	})

	groups.AddCommand(&cobra.Command{
		Use:   "join <code>",
		Short: "Join a group by code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := groupsync.NormalizeCode(args[0])
			if err != nil {
				return err
			}
			a, err := loadUserApp(g)
			if err != nil {
				return err
			}
			groupID, err := a.client.JoinGroup(cmd.Context(), code, a.cfg.UserID)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "joined %s\n", groupID)
			return nil
		},
	})

	groups.AddCommand(&cobra.Command{
		Use:   "members <group-id>",
		Short: "Show the members of a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(g)
			if err != nil {
				return err
			}
			members, err := a.client.ListMembers(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), renderRoster(models.GroupRoster{GroupID: args[0], Code: args[0], Members: members}))
			return nil
		},
	})

	return groups
}

func newProfileCmd(g *globals) *cobra.Command {
	profile := &cobra.Command{Use: "profile", Short: "Profile commands"}

	profile.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the stored profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadUserApp(g)
			if err != nil {
				return err
			}
			p, err := a.client.GetUser(cmd.Context(), a.cfg.UserID)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(w, titleStyle.Render(strings.TrimSpace(p.FirstName+" "+p.LastName)))
			_, _ = fmt.Fprintf(w, "phone %s\nweight %.1f kg\nsex %s\n", p.Phone, p.WeightKg, p.Sex)
			if p.IsCutOff {
				_, _ = fmt.Fprintln(w, hotStyle.Render("cut off"))
			}
			return nil
		},
	})

	var p api.UserProfile
	set := &cobra.Command{
		Use:   "set",
		Short: "Store the profile on the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadUserApp(g)
			if err != nil {
				return err
			}
			bio := a.cfg.Biometrics()
			if !cmd.Flags().Changed("weight") {
				p.WeightKg = bio.WeightKg
			}
			if !cmd.Flags().Changed("sex") {
				p.Sex = string(bio.Sex)
			}
			p.UserID = a.cfg.UserID
			if err := a.client.PutUser(cmd.Context(), p); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "profile saved")
			return nil
		},
	}
	set.Flags().StringVar(&p.FirstName, "first-name", "", "first name")
	set.Flags().StringVar(&p.LastName, "last-name", "", "last name")
	set.Flags().StringVar(&p.Phone, "phone", "", "phone number")
	set.Flags().Float64Var(&p.WeightKg, "weight", 0, "body weight in kg")
	set.Flags().StringVar(&p.Sex, "sex", "", "male|female")
	profile.AddCommand(set)

	return profile
}

func newDrinkCmd(g *globals) *cobra.Command {
	drink := &cobra.Command{Use: "drink", Short: "Drink service commands"}

	var grams float64
	check := &cobra.Command{
		Use:   "check",
		Short: "Ask the server whether a drink may be served",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadUserApp(g)
			if err != nil {
				return err
			}
			res, err := a.client.ValidateDrink(cmd.Context(), api.ValidateDrinkRequest{
				UserID:       a.cfg.UserID,
				DrinkID:      uuid.New().String(),
				AlcoholGrams: grams,
			})
			if err != nil {
				return err
			}
			msg := res.Message
			if res.Allowed {
				msg = statusStyles[models.BACStatusGreen].Render(msg)
			} else {
				msg = hotStyle.Render(msg)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", msg, mutedStyle.Render(res.Reason))
			return nil
		},
	}
	check.Flags().Float64Var(&grams, "grams", models.StandardDrinkGrams, "grams of alcohol in the drink")
	drink.AddCommand(check)

	return drink
}
