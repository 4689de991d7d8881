package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spigell/prep-assistant/internal/matcher"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Print the query classification rules in priority order",
	Run: func(cmd *cobra.Command, _ []string) {
		printRules(cmd.OutOrStdout(), matcher.New(nil, nil, nil).Describe())
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}

func printRules(out io.Writer, statuses []matcher.RuleStatus) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tRULE\tCATEGORY\tTRIGGERS\tLOOKUP\tTIPS")

	for _, s := range statuses {
		topic := string(s.Topic)
		if topic == "" {
			topic = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			s.Priority, s.Name, s.Category,
			strings.Join(s.Triggers, ", "),
			strings.Join(s.Clauses, " OR "),
			topic,
		)
	}

	w.Flush()
}
