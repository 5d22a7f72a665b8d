package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/selivandex/news-digest/internal/adapters/clickhouse"
	"github.com/selivandex/news-digest/internal/adapters/database"
	"github.com/selivandex/news-digest/internal/adapters/news"
	"github.com/selivandex/news-digest/internal/digest"
	"github.com/selivandex/news-digest/internal/preferences"
	"github.com/selivandex/news-digest/internal/sentiment"
	"github.com/selivandex/news-digest/internal/users"
)

const commandTimeout = 2 * time.Minute

func parseID(value, what string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", what, value)
	}
	return id, nil
}

// withStore opens Postgres for the duration of fn
func withStore(cmd *cobra.Command, fn func(ctx context.Context, store *users.Repository) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	db, err := database.New(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(ctx, users.NewRepository(db.DB()))
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newMigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema",
	}

	run := func(action func(db *database.DB) error) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			db, err := database.New(&cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			return action(db)
		}
	}

	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: run(func(db *database.DB) error {
				return database.RunMigrations(db.Conn(), cfg.Storage.MigrationsPath)
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			Args:  cobra.NoArgs,
			RunE: run(func(db *database.DB) error {
				return database.RollbackMigration(db.Conn(), cfg.Storage.MigrationsPath)
			}),
		},
	)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the applied migration version",
		Args:  cobra.NoArgs,
	}
	versionCmd.RunE = run(func(db *database.DB) error {
		version, dirty, err := database.MigrationVersion(db.Conn(), cfg.Storage.MigrationsPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(versionCmd.OutOrStdout(), "version %d (dirty: %v)\n", version, dirty)
		return nil
	})
	migrateCmd.AddCommand(versionCmd)

	return migrateCmd
}

func newUserCmd() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	userCmd.AddCommand(
		&cobra.Command{
			Use:   "create <email> [full name]",
			Short: "Register a user",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				fullName := ""
				if len(args) == 2 {
					fullName = args[1]
				}
				return withStore(cmd, func(ctx context.Context, store *users.Repository) error {
					user, err := store.CreateUser(ctx, args[0], fullName)
					if err != nil {
						return err
					}
					return printJSON(cmd, user)
				})
			},
		},
		&cobra.Command{
			Use:   "link-telegram <user-id> <chat-id>",
			Short: "Link a Telegram chat to a user",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				userID, err := parseID(args[0], "user id")
				if err != nil {
					return err
				}
				chatID, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid chat id %q", args[1])
				}
				return withStore(cmd, func(ctx context.Context, store *users.Repository) error {
					if err := store.LinkTelegramChat(ctx, userID, chatID); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "linked chat %d to user %d\n", chatID, userID)
					return nil
				})
			},
		},
	)

	return userCmd
}

func newAdjustCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "adjust <user-id>",
		Short: "Re-tune a user's preferences from reading history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID(args[0], "user id")
			if err != nil {
				return err
			}
			return withStore(cmd, func(ctx context.Context, store *users.Repository) error {
				result, err := preferences.NewEngine(store).AutoAdjust(ctx, userID)
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			})
		},
	}
}

func newHistoryCmd() *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect, export or clear reading history",
	}

	var limit int
	showCmd := &cobra.Command{
		Use:   "show <user-id>",
		Short: "Print the latest reads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID(args[0], "user id")
			if err != nil {
				return err
			}
			return withStore(cmd, func(ctx context.Context, store *users.Repository) error {
				entries, err := preferences.NewService(store, nil).History(ctx, userID, limit)
				if err != nil {
					return err
				}
				return printJSON(cmd, entries)
			})
		},
	}
	showCmd.Flags().IntVar(&limit, "limit", preferences.DefaultHistoryLimit, "Maximum entries to print")

	clearCmd := &cobra.Command{
		Use:   "clear <user-id>",
		Short: "Delete a user's reading history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID(args[0], "user id")
			if err != nil {
				return err
			}
			return withStore(cmd, func(ctx context.Context, store *users.Repository) error {
				removed, err := preferences.NewService(store, nil).ClearHistory(ctx, userID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", removed)
				return nil
			})
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export <user-id>",
		Short: "Print profile, preferences and full reading history as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID(args[0], "user id")
			if err != nil {
				return err
			}
			return withStore(cmd, func(ctx context.Context, store *users.Repository) error {
				export, err := preferences.NewService(store, nil).Export(ctx, userID)
				if err != nil {
					return err
				}
				return printJSON(cmd, export)
			})
		},
	}

	historyCmd.AddCommand(showCmd, clearCmd, exportCmd)
	return historyCmd
}

func newDigestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "digest <user-id>",
		Short: "Build a digest with the user's stored preferences",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID(args[0], "user id")
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			source, err := news.NewFromConfig(&cfg.News, nil)
			if err != nil {
				return err
			}
			scorer, err := sentiment.New(sentiment.Options{
				Strategy:  cfg.Sentiment.Strategy,
				OpenAIKey: cfg.Sentiment.OpenAIKey,
				Model:     cfg.Sentiment.Model,
				Timeout:   cfg.Sentiment.Timeout,
			})
			if err != nil {
				return err
			}

			aggregator := digest.NewAggregator(source, scorer, nil, digest.Options{
				Country:      cfg.News.Country,
				PageSize:     cfg.News.PageSize,
				Concurrency:  cfg.News.FetchConcurrency,
				FetchTimeout: cfg.News.FetchTimeout,
				ScoreTimeout: cfg.Sentiment.Timeout,
			})

			return withStore(cmd, func(ctx context.Context, store *users.Repository) error {
				prefs, err := preferences.NewService(store, nil).Preferences(ctx, userID)
				if err != nil {
					return err
				}
				return printJSON(cmd, aggregator.FetchDigest(ctx, userID, prefs))
			})
		},
	}
}

func newAnalyticsCmd() *cobra.Command {
	var (
		days  int
		limit int
	)

	topCmd := &cobra.Command{
		Use:   "top-categories",
		Short: "Most read categories across all users (ClickHouse)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			ch, err := database.NewClickHouse(cfg.ClickHouse.GetDSN())
			if err != nil {
				return err
			}
			defer ch.Close()

			since := time.Now().UTC().AddDate(0, 0, -days)
			counts, err := clickhouse.NewRepository(ch.DB()).TopCategories(ctx, since, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, counts)
		},
	}
	topCmd.Flags().IntVar(&days, "days", 7, "Look back this many days")
	topCmd.Flags().IntVar(&limit, "limit", 10, "Maximum categories to print")

	analyticsCmd := &cobra.Command{
		Use:   "analytics",
		Short: "Query read analytics",
	}
	analyticsCmd.AddCommand(topCmd)

	return analyticsCmd
}
