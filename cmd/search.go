package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/prep-assistant/internal/experience"
	"github.com/spigell/prep-assistant/internal/logger"
	"github.com/spigell/prep-assistant/internal/matcher"
)

var searchCmd = &cobra.Command{
	Use:   "search QUERY...",
	Short: "Search shared interview experiences",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runSearch(cmd, strings.Join(args, " "))
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringP("sort", "s", "", "order results by newest, rating or upvotes")
	searchCmd.Flags().IntP("limit", "l", matcher.DefaultSearchLimit, fmt.Sprintf("maximum number of results (up to %d)", matcher.MaxSearchLimit))
}

func runSearch(cmd *cobra.Command, query string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	sortFlag, _ := cmd.Flags().GetString("sort")
	sort, err := matcher.ParseSort(sortFlag)
	if err != nil {
		logger.Fatal("parsing flags", zap.Error(err))
	}
	limit, _ := cmd.Flags().GetInt("limit")

	lookup, err := openLookup(config.Store, logger)
	if err != nil {
		logger.Fatal("opening experience store", zap.Error(err))
	}

	m := matcher.New(lookup, nil, logger)
	c := m.Classify(query)

	records, err := m.Search(ctx, query, matcher.SearchOptions{Sort: sort, Limit: limit})
	if err != nil {
		logger.Fatal("searching experiences", zap.Error(err))
	}

	fields := []zap.Field{zap.String("category", string(c.Category)), zap.Int("count", len(records))}
	if c.Rule != nil {
		fields = append(fields, zap.String("rule", c.Rule.Name))
	}
	logger.Info("search finished", fields...)

	printRecords(cmd.OutOrStdout(), records)
}

func printRecords(out io.Writer, records []experience.Experience) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No interview experiences found.")
		return
	}

	for i := range records {
		r := &records[i]
		m := experience.NewMatch(*r)
		fmt.Fprintf(out, "%d. %s - %s\n", i+1, m.Company, m.Role)
		fmt.Fprintf(out, "   rating: %s, upvotes: %d", r.RatingLabel(), r.Upvotes)
		if !r.CreatedAt.IsZero() {
			fmt.Fprintf(out, ", shared: %s", r.CreatedAt.Format("2006-01-02"))
		}
		fmt.Fprintf(out, "\n   %s\n\n", m.Text())
	}
}
