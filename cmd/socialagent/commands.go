package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hrithiknl17/socialagent/internal/agent"
	"github.com/hrithiknl17/socialagent/internal/brief"
	"github.com/hrithiknl17/socialagent/internal/config"
	"github.com/hrithiknl17/socialagent/internal/generation"
)

// withApp loads config, wires the components and runs fn with them.
func withApp(fn func(ctx context.Context, a *app) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()
	return fn(ctx, a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- post ---

var postCmd = &cobra.Command{
	Use:   "post [topic]",
	Short: "Generate captions, hashtags and an image for a topic",
	Long: `Generate three caption options, hashtags and an image for a topic.

Examples:
  socialagent post "rainy day coffee"
  socialagent post --brief ./summer-launch.pdf`,
	RunE: func(cmd *cobra.Command, args []string) error {
		briefPath, _ := cmd.Flags().GetString("brief")
		asJSON, _ := cmd.Flags().GetBool("json")

		topic, err := postTopic(args, briefPath)
		if err != nil {
			return err
		}

		return withApp(func(ctx context.Context, a *app) error {
			post, err := a.generator.SocialPost(ctx, topic)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(post)
			}
			writePost(os.Stdout, post)
			return nil
		})
	},
}

func init() {
	postCmd.Flags().String("brief", "", "PDF creative brief to take the topic from")
	postCmd.Flags().Bool("json", false, "print the result as JSON")
}

func postTopic(args []string, briefPath string) (string, error) {
	switch {
	case briefPath != "" && len(args) > 0:
		return "", errors.New("give either a topic or --brief, not both")
	case briefPath != "":
		return brief.ReadFile(briefPath, 0)
	case len(args) > 0:
		topic := strings.TrimSpace(strings.Join(args, " "))
		if topic == "" {
			return "", generation.ErrEmptyTopic
		}
		return topic, nil
	}
	return "", errors.New("a topic or --brief is required")
}

// --- campaign ---

var campaignCmd = &cobra.Command{
	Use:   "campaign <product-id>",
	Short: "Run the campaign agent for a catalog product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		productID := args[0]
		queue, _ := cmd.Flags().GetBool("queue")
		asJSON, _ := cmd.Flags().GetBool("json")

		if queue {
			return queueCampaign(cmd.Context(), productID)
		}

		return withApp(func(ctx context.Context, a *app) error {
			run := a.agent.Start(ctx, productID)
			run.Follow(func(ev agent.Event) {
				fmt.Fprintln(os.Stderr, formatEvent(ev))
			})
			c, err := run.Wait()
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(c)
			}
			writeCampaign(os.Stdout, c)
			return nil
		})
	},
}

func init() {
	campaignCmd.Flags().Bool("queue", false, "queue the run on a running server instead of running it here")
	campaignCmd.Flags().Bool("json", false, "print the campaign as JSON")
}

func queueCampaign(ctx context.Context, productID string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	resp, err := client.post(ctx, "/v1/campaigns/jobs", map[string]string{"product_id": productID})
	if err != nil {
		return err
	}
	var job struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(resp, &job); err != nil {
		return err
	}

	printSuccess("Queued campaign job %s", job.ID)
	return nil
}

// --- products ---

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "List catalog products",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			products, err := a.catalog.List(ctx)
			if err != nil {
				return err
			}
			writeProducts(os.Stdout, products)
			return nil
		})
	},
}

// --- campaigns ---

var campaignsCmd = &cobra.Command{
	Use:   "campaigns",
	Short: "List stored campaigns, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		return withApp(func(ctx context.Context, a *app) error {
			list, err := a.history.List(ctx)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println("No campaigns yet.")
				return nil
			}
			if limit > 0 && len(list) > limit {
				list = list[:limit]
			}
			for _, c := range list {
				writeCampaign(os.Stdout, c)
				fmt.Println()
			}
			return nil
		})
	},
}

func init() {
	campaignsCmd.Flags().Int("limit", 20, "maximum number of campaigns")
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantic search over stored campaigns",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		limit, _ := cmd.Flags().GetInt("limit")

		return withApp(func(ctx context.Context, a *app) error {
			vec, err := a.generator.Embed(ctx, query)
			if err != nil {
				return err
			}
			matches, err := a.index.Search(ctx, vec, limit)
			if err != nil {
				return err
			}
			if len(matches) == 0 {
				fmt.Println("No results found.")
				return nil
			}
			for i, m := range matches {
				fmt.Printf("\n%s [score: %.3f]\n", colorize(colorBold, fmt.Sprintf("Result %d", i+1)), m.Score)
				fmt.Printf("  %s  %s\n", m.ID, m.Metadata["title"])
				fmt.Printf("  %s\n", m.Content)
			}
			return nil
		})
	},
}

func init() {
	searchCmd.Flags().Int("limit", 5, "maximum number of results")
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(context.Background(), "/health")
		if err != nil {
			printStatus("Server", "stopped")
			return nil
		}
		var health struct {
			Provider string           `json:"provider"`
			Stats    generation.Stats `json:"stats"`
		}
		if err := decodeJSON(resp, &health); err != nil {
			printWarning("unexpected health response: %v", err)
			return nil
		}

		printStatus("Server", "running at %s", client.baseURL)
		printStatus("Provider", "%s", health.Provider)
		printStatus("Provider calls", "%d", health.Stats.ProviderCalls)
		printStatus("Cache hits", "%d", health.Stats.CacheHits)
		printStatus("Fallbacks", "%d", health.Stats.Fallbacks)
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value. Valid keys:\n  " + strings.Join(config.ValidKeys(), "\n  "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s", key)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
