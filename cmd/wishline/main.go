package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"wishline/internal/app"
	"wishline/internal/config"
	"wishline/internal/db"
	"wishline/internal/domain"
	"wishline/internal/engine"
	"wishline/internal/migrate"
	"wishline/internal/repo"
	"wishline/internal/scheduler"
	"wishline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "wishline",
	Short: "Wishline CLI",
	Long: `Wishline runs recurring wish-exchange cycles between matched users.
Core concepts (kid-friendly):
- Workspace: your .wishline toy box holding only the database; config lives in the DB and can be imported from wishline.yml.
- Users: people with a nickname and birth date; adult-only categories stay hidden from minors.
- Categories: wish kinds with a per-period quota and a completion window (min/max days).
- Wishes: things a user would like done for them; only active wishes enter the draw.
- Matches: a pair of users exchanging wishes, private (agreed categories, own cadence) or public (anyone in public mode).
- Periods: the recurring windows a cycle opens; each allocation run starts fresh ones.
- Assignments: wishes randomly drawn for the counterpart to execute before the period ends.
- Negotiations: date/time counter-offers on an assignment until one is accepted.
- Executions: the completion record with a 1..5 rating; rankings are built from these.
- Event log: diary of changes, view with 'wishline log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("WISHLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(categoryCmd())
	rootCmd.AddCommand(wishCmd())
	rootCmd.AddCommand(matchCmd())
	rootCmd.AddCommand(periodCmd())
	rootCmd.AddCommand(assignmentCmd())
	rootCmd.AddCommand(negotiationCmd())
	rootCmd.AddCommand(executionCmd())
	rootCmd.AddCommand(rankCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

func userCmd() *cobra.Command {
	u := &cobra.Command{Use: "user", Short: "Manage users"}
	u.AddCommand(userCreateCmd())
	u.AddCommand(userListCmd())
	u.AddCommand(userShowCmd())
	u.AddCommand(userUpdateCmd())
	return u
}

func userCreateCmd() *cobra.Command {
	var opts engine.UserCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.CreateUser(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Nickname, "nickname", "", "unique nickname")
	cmd.Flags().StringVar(&opts.BirthDate, "birth-date", "", "birth date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&opts.IsPublicModeActive, "public-mode", false, "opt into the public pool")
	_ = cmd.MarkFlagRequired("nickname")
	_ = cmd.MarkFlagRequired("birth-date")
	return cmd
}

func userListCmd() *cobra.Command {
	var f repo.UserFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				users, err := r.ListUsers(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Nickname", "Birth Date", "Active", "Public Mode"})
				for _, u := range users {
					tw.AppendRow(table.Row{u.ID, u.Nickname, u.BirthDate, u.IsActive, u.IsPublicModeActive})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&f.ActiveOnly, "active", false, "active users only")
	cmd.Flags().BoolVar(&f.PublicMode, "public", false, "public-mode users only")
	return cmd
}

func userShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id|nickname>",
		Short: "Show one user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				u, err := r.GetUser(ctx, args[0])
				if errors.Is(err, repo.ErrNotFound) {
					u, err = r.GetUserByNickname(ctx, args[0])
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	return cmd
}

func userUpdateCmd() *cobra.Command {
	var active, publicMode bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update user flags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var activePtr, publicPtr *bool
			if cmd.Flags().Changed("active") {
				activePtr = &active
			}
			if cmd.Flags().Changed("public-mode") {
				publicPtr = &publicMode
			}
			if activePtr == nil && publicPtr == nil {
				return fmt.Errorf("nothing to update; pass --active and/or --public-mode")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.SetUserFlags(ctx, args[0], activePtr, publicPtr, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().BoolVar(&active, "active", true, "account active flag")
	cmd.Flags().BoolVar(&publicMode, "public-mode", false, "public pool participation")
	return cmd
}

func categoryCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "category",
		Short: "Manage wish categories",
		Long:  "Categories bound the draw: each carries a per-period quota, a completion window, and an optional adult-only flag that hides it from minors.",
	}
	c.AddCommand(categoryCreateCmd())
	c.AddCommand(categoryListCmd())
	c.AddCommand(categorySeedCmd())
	c.AddCommand(categorySetActiveCmd())
	return c
}

func categoryCreateCmd() *cobra.Command {
	var opts engine.CategoryCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create category",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.CreateCategory(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "category name")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().BoolVar(&opts.IsAdult, "adult", false, "restrict to adults")
	cmd.Flags().IntVar(&opts.MaxWishesPerPeriod, "quota", 1, "max wishes allocated per period")
	cmd.Flags().IntVar(&opts.MinDaysToComplete, "min-days", 1, "minimum days to complete")
	cmd.Flags().IntVar(&opts.MaxDaysToComplete, "max-days", 30, "maximum days to complete")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func categoryListCmd() *cobra.Command {
	var f repo.CategoryFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				cats, err := r.ListCategories(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cats)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Adult", "Quota", "Window", "Active"})
				for _, c := range cats {
					window := fmt.Sprintf("%d-%dd", c.MinDaysToComplete, c.MaxDaysToComplete)
					tw.AppendRow(table.Row{c.ID, c.Name, c.IsAdult, c.MaxWishesPerPeriod, window, c.IsActive})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&f.ActiveOnly, "active", false, "active categories only")
	cmd.Flags().BoolVar(&f.ExcludeAdult, "safe", false, "exclude adult categories")
	return cmd
}

func categorySeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the configured starter catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				n, err := e.SeedCategories(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"created": n})
			})
		},
	}
	return cmd
}

func categorySetActiveCmd() *cobra.Command {
	var active bool
	cmd := &cobra.Command{
		Use:   "set-active <id>",
		Short: "Enable or disable a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if _, err := r.GetCategory(ctx, args[0]); err != nil {
					return err
				}
				tx, err := r.DB.BeginTx(ctx, nil)
				if err != nil {
					return err
				}
				defer tx.Rollback()
				if err := r.SetCategoryActive(ctx, tx, args[0], active); err != nil {
					return err
				}
				return tx.Commit()
			})
		},
	}
	cmd.Flags().BoolVar(&active, "active", true, "active flag")
	return cmd
}

func wishCmd() *cobra.Command {
	w := &cobra.Command{
		Use:   "wish",
		Short: "Manage wishes",
		Long:  "Wishes are what you would like done for you. Only active wishes enter a cycle's random draw.",
	}
	w.AddCommand(wishCreateCmd())
	w.AddCommand(wishListCmd())
	w.AddCommand(wishShowCmd())
	w.AddCommand(wishSetActiveCmd())
	w.AddCommand(wishDeleteCmd())
	return w
}

func wishCreateCmd() *cobra.Command {
	var opts engine.WishCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create wish",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			if opts.OwnerID == "" {
				opts.OwnerID = opts.ActorID
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.CreateWish(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&opts.OwnerID, "user", "", "owner user id (defaults to actor)")
	cmd.Flags().StringVar(&opts.CategoryID, "category", "", "category id")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func wishListCmd() *cobra.Command {
	var f repo.WishFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List wishes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				wishes, err := r.ListWishes(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(wishes)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Owner", "Category", "Title", "Active"})
				for _, w := range wishes {
					tw.AppendRow(table.Row{w.ID, w.UserID, w.CategoryID, w.Title, w.IsActive})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.UserID, "user", "", "owner filter")
	cmd.Flags().StringVar(&f.CategoryID, "category", "", "category filter")
	cmd.Flags().BoolVar(&f.ActiveOnly, "active", false, "active wishes only")
	return cmd
}

func wishShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one wish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				w, err := r.GetWish(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	return cmd
}

func wishSetActiveCmd() *cobra.Command {
	var active bool
	cmd := &cobra.Command{
		Use:   "set-active <id>",
		Short: "Activate or pause a wish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.SetWishActive(ctx, args[0], active, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().BoolVar(&active, "active", true, "active flag")
	return cmd
}

func wishDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a wish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteWish(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func matchCmd() *cobra.Command {
	m := &cobra.Command{
		Use:   "match",
		Short: "Manage matches",
		Long:  "A match pairs two users. Private matches exchange only their agreed categories on their own cadence; public matches ride the global period.",
	}
	m.AddCommand(matchCreateCmd())
	m.AddCommand(matchListCmd())
	m.AddCommand(matchShowCmd())
	m.AddCommand(matchAcceptCmd())
	m.AddCommand(matchRejectCmd())
	m.AddCommand(matchBlockCmd())
	m.AddCommand(matchAgreeCmd())
	return m
}

func matchCreateCmd() *cobra.Command {
	var opts engine.MatchCreateOptions
	var periodDays int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Propose a match",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			if opts.UserAID == "" {
				opts.UserAID = opts.ActorID
			}
			if cmd.Flags().Changed("period-days") {
				opts.PrivatePeriodDays = &periodDays
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.CreateMatch(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&opts.UserAID, "from", "", "initiating user id (defaults to actor)")
	cmd.Flags().StringVar(&opts.UserBID, "to", "", "counterpart user id")
	cmd.Flags().StringVar(&opts.Mode, "mode", domain.MatchModePrivate, "private or public")
	cmd.Flags().StringArrayVar(&opts.PrivateCategoryIDs, "category", []string{}, "agreed category id (repeatable, private only)")
	cmd.Flags().IntVar(&periodDays, "period-days", 0, "private period length in days")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func matchListCmd() *cobra.Command {
	var f repo.MatchFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List matches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				matches, err := r.ListMatches(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(matches)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "User 1", "User 2", "Mode", "Status"})
				for _, m := range matches {
					tw.AppendRow(table.Row{m.ID, m.User1ID, m.User2ID, m.Mode, m.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Mode, "mode", "", "mode filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.Participant, "user", "", "participant filter")
	return cmd
}

func matchShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				m, err := r.GetMatch(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	return cmd
}

func matchAcceptCmd() *cobra.Command {
	return matchRespondCmd("accept", "Accept a pending match", engine.Engine.AcceptMatch)
}

func matchRejectCmd() *cobra.Command {
	return matchRespondCmd("reject", "Reject a pending match", engine.Engine.RejectMatch)
}

func matchBlockCmd() *cobra.Command {
	return matchRespondCmd("block", "Block a match", engine.Engine.BlockMatch)
}

func matchRespondCmd(use, short string, fn func(engine.Engine, context.Context, string, string) (domain.Match, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := fn(e, ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	return cmd
}

func matchAgreeCmd() *cobra.Command {
	var categories []string
	var periodDays int
	cmd := &cobra.Command{
		Use:   "agree <id>",
		Short: "Update a private match agreement",
		RunE: func(cmd *cobra.Command, args []string) error {
			var daysPtr *int
			if cmd.Flags().Changed("period-days") {
				daysPtr = &periodDays
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.SetMatchAgreement(ctx, args[0], categories, daysPtr, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
		Args: cobra.ExactArgs(1),
	}
	cmd.Flags().StringArrayVar(&categories, "category", []string{}, "agreed category id (repeatable)")
	cmd.Flags().IntVar(&periodDays, "period-days", 0, "private period length in days")
	return cmd
}

func periodCmd() *cobra.Command {
	p := &cobra.Command{
		Use:   "period",
		Short: "Allocation periods",
		Long:  "Each run opens fresh periods and draws random assignments within quotas. Runs are not deduplicated: trigger one per cycle boundary (or let 'serve --allocate-at' do it).",
	}
	p.AddCommand(periodRunCmd())
	p.AddCommand(periodListCmd())
	return p
}

func periodRunCmd() *cobra.Command {
	var opts engine.RunOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one allocation cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				summary, err := e.RunCycle(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(summary)
			})
		},
	}
	cmd.Flags().IntVar(&opts.Days, "days", 0, "period length in days (default from config)")
	cmd.Flags().StringVar(&opts.StartDate, "start", "", "cycle start date (YYYY-MM-DD, default today)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "select without persisting")
	return cmd
}

func periodListCmd() *cobra.Command {
	var f repo.PeriodFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List periods",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				periods, err := r.ListPeriods(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(periods)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Match", "Start", "End", "Active"})
				for _, p := range periods {
					match := "global"
					if p.MatchID != nil {
						match = *p.MatchID
					}
					tw.AppendRow(table.Row{p.ID, match, p.StartDate, p.EndDate, p.IsActive})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.MatchID, "match", "", "match filter")
	cmd.Flags().BoolVar(&f.GlobalOnly, "global", false, "global periods only")
	cmd.Flags().BoolVar(&f.ActiveOnly, "active", false, "active periods only")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max rows")
	return cmd
}

func assignmentCmd() *cobra.Command {
	a := &cobra.Command{
		Use:   "assignment",
		Short: "Manage assignments",
		Long:  "Assignments are the wishes a cycle drew for you to execute. Reject is allowed in public matches only and is terminal.",
	}
	a.AddCommand(assignmentListCmd())
	a.AddCommand(assignmentShowCmd())
	a.AddCommand(assignmentRejectCmd())
	return a
}

func assignmentListCmd() *cobra.Command {
	var f repo.AssignmentFilters
	var open bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List assignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			if open {
				no := false
				f.Completed = &no
				f.Rejected = &no
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListAssignments(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Wish", "Executor", "Due", "Completed", "Rejected"})
				for _, a := range items {
					tw.AppendRow(table.Row{a.ID, a.WishID, a.AssignedTo, a.DueDate, a.IsCompleted, a.IsRejected})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.AssignedTo, "executor", "", "executor filter")
	cmd.Flags().StringVar(&f.OwnerID, "owner", "", "wish owner filter")
	cmd.Flags().StringVar(&f.PeriodID, "period", "", "period filter")
	cmd.Flags().BoolVar(&open, "open", false, "open assignments only")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max rows")
	return cmd
}

func assignmentShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one assignment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				a, err := r.GetAssignment(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func assignmentRejectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject an assignment (public matches only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.RejectAssignment(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	return cmd
}

func negotiationCmd() *cobra.Command {
	n := &cobra.Command{
		Use:   "negotiation",
		Short: "Negotiate assignment dates",
		Long:  "Either side proposes a date/time; the counterpart accepts or rejects. At most one proposal per assignment ends up accepted.",
	}
	n.AddCommand(negotiationProposeCmd())
	n.AddCommand(negotiationListCmd())
	n.AddCommand(negotiationRespondCmd("accept", "Accept a proposal", true))
	n.AddCommand(negotiationRespondCmd("reject", "Reject a proposal", false))
	return n
}

func negotiationProposeCmd() *cobra.Command {
	var opts engine.NegotiationProposeOptions
	var proposedTime string
	cmd := &cobra.Command{
		Use:   "propose",
		Short: "Propose a date/time",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			opts.ProposedTime = optionalString(proposedTime)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.ProposeNegotiation(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&opts.AssignmentID, "assignment", "", "assignment id")
	cmd.Flags().StringVar(&opts.ProposedDate, "date", "", "proposed date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&proposedTime, "time", "", "proposed time (HH:MM)")
	cmd.Flags().StringVar(&opts.Message, "message", "", "message to the counterpart")
	_ = cmd.MarkFlagRequired("assignment")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func negotiationListCmd() *cobra.Command {
	var assignmentID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List proposals for an assignment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListNegotiations(ctx, assignmentID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&assignmentID, "assignment", "", "assignment id")
	_ = cmd.MarkFlagRequired("assignment")
	return cmd
}

func negotiationRespondCmd(use, short string, accept bool) *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.RespondNegotiation(ctx, engine.NegotiationRespondOptions{
					NegotiationID:   args[0],
					ActorID:         viper.GetString("actor-id"),
					Accept:          accept,
					ResponseMessage: message,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&message, "message", "", "response message")
	return cmd
}

func executionCmd() *cobra.Command {
	e := &cobra.Command{
		Use:   "execution",
		Short: "Record completed assignments",
	}
	e.AddCommand(executionRecordCmd())
	e.AddCommand(executionShowCmd())
	return e
}

func executionRecordCmd() *cobra.Command {
	var opts engine.ExecutionRecordOptions
	var completedTime string
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record an execution with a rating",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			opts.CompletedTime = optionalString(completedTime)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.RecordExecution(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&opts.AssignmentID, "assignment", "", "assignment id")
	cmd.Flags().StringVar(&opts.CompletedDate, "date", "", "completion date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&completedTime, "time", "", "completion time (HH:MM)")
	cmd.Flags().IntVar(&opts.Rating, "rating", 0, "rating 1..5")
	cmd.Flags().StringVar(&opts.CommentByCreator, "creator-comment", "", "wish owner comment")
	cmd.Flags().StringVar(&opts.CommentByExecutor, "executor-comment", "", "executor comment")
	_ = cmd.MarkFlagRequired("assignment")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("rating")
	return cmd
}

func executionShowCmd() *cobra.Command {
	var assignmentID string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the execution of an assignment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				res, err := r.GetExecutionByAssignment(ctx, assignmentID)
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&assignmentID, "assignment", "", "assignment id")
	_ = cmd.MarkFlagRequired("assignment")
	return cmd
}

func rankCmd() *cobra.Command {
	r := &cobra.Command{
		Use:   "rank",
		Short: "Leaderboards",
		Long:  "Leaderboards over recorded executions: completion counts, average rating, and average days from assignment to completion.",
	}
	r.AddCommand(rankTableCmd("most-completed", "Executors by completed assignments", engine.Engine.RankMostCompleted))
	r.AddCommand(rankTableCmd("best-rated", "Executors by average rating", engine.Engine.RankBestRated))
	r.AddCommand(rankTableCmd("fastest", "Executors by average completion time", engine.Engine.RankFastestCompletion))
	return r
}

func rankTableCmd(use, short string, fn func(engine.Engine, context.Context) ([]domain.RankingEntry, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entries, err := fn(e, ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"#", "Nickname", "Completed", "Avg Rating", "Avg Days"})
				for i, entry := range entries {
					rating := ""
					if entry.AverageRating != nil {
						rating = fmt.Sprintf("%.2f", *entry.AverageRating)
					}
					days := ""
					if entry.AvgCompletionDays != nil {
						days = fmt.Sprintf("%.1f", *entry.AvgCompletionDays)
					}
					tw.AppendRow(table.Row{i + 1, entry.Nickname, entry.TotalCompleted, rating, days})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	l := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: registrations, matches, allocations, negotiations, and executions.",
	}
	l.AddCommand(logTailCmd())
	return l
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "Config is the rulebook (stored in DB): cycle length, ranking limit, and the starter category catalog. Import from wishline.yml if desired.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configImportCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate stored config",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Config.Validate()
			})
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default wishline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			data, err := config.Default().ToYAML()
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	return cmd
}

func configImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import wishline.yml into the workspace DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.UpsertConfig(ctx, cfg); err != nil {
					return err
				}
				fmt.Println("config imported")
				return nil
			})
		},
	}
	return cmd
}

func apikeyCmd() *cobra.Command {
	k := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys",
		Long:  "API keys authenticate HTTP calls via X-Api-Key. Only the SHA-256 hash is stored; the plaintext key prints once at creation.",
	}
	k.AddCommand(apikeyCreateCmd())
	k.AddCommand(apikeyRevokeCmd())
	return k
}

func apikeyCreateCmd() *cobra.Command {
	var userID, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Issue an API key for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if _, err := r.GetUser(ctx, userID); err != nil {
					return err
				}
				plain := "wish_" + strings.ReplaceAll(uuid.New().String(), "-", "")
				key := domain.APIKey{
					ID:        uuid.New().String(),
					UserID:    userID,
					Name:      name,
					KeyHash:   repo.HashAPIKey(plain),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := r.InsertAPIKey(ctx, key); err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{
					"id":      key.ID,
					"user_id": key.UserID,
					"name":    key.Name,
					"key":     plain,
				})
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id the key authenticates as")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func apikeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath, allocateAt string
	var allocateEvery int
	var allowActorHeader bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			cfg, err := app.ResolveConfig(cmd.Context(), workspace, r)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{
				JWTSecret:        os.Getenv("WISHLINE_JWT_SECRET"),
				AllowActorHeader: allowActorHeader,
			}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("WISHLINE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}

			var sched *scheduler.Scheduler
			if allocateAt != "" || allocateEvery > 0 {
				sched = scheduler.New(time.UTC)
				job := func() {
					ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
					defer cancel()
					summary, err := e.RunCycle(ctx, engine.RunOptions{ActorID: "scheduler"})
					if err != nil {
						fmt.Println("scheduled allocation failed:", err)
						return
					}
					fmt.Printf("scheduled allocation: %d assignments across %d matches and %d public users\n",
						summary.TotalAssignments, summary.PrivateMatchesProcessed, summary.PublicUsersProcessed)
				}
				if allocateAt != "" {
					if _, err := sched.ScheduleDaily(allocateAt, job); err != nil {
						return err
					}
				}
				if allocateEvery > 0 {
					if _, err := sched.ScheduleEveryDays(allocateEvery, job); err != nil {
						return err
					}
				}
				sched.Start()
				defer sched.Stop()
			}

			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Wishline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	cmd.Flags().StringVar(&allocateAt, "allocate-at", "", "run allocation daily at HH:MM (UTC)")
	cmd.Flags().IntVar(&allocateEvery, "allocate-every", 0, "run allocation every N days")
	cmd.Flags().BoolVar(&allowActorHeader, "allow-actor-header", false, "accept X-Actor-Id without credentials (dev only)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	cfg, err := app.ResolveConfig(ctx, workspace, r)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	return fn(ctx, r)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
