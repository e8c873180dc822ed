package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen-enrich/internal/model"
	"github.com/sells-group/leadgen-enrich/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the field-level change history of an entity",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "status")
		if err != nil {
			return err
		}
		defer env.Close()

		entity, _ := cmd.Flags().GetString("entity")
		id, _ := cmd.Flags().GetString("id")
		if _, ok := model.DefFor(model.EntityType(entity)); !ok {
			return eris.Errorf("unknown entity %q", entity)
		}

		entries, err := env.Store.ListHistory(ctx, model.EntityType(entity), id)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No history found.")
			return nil
		}
		formatHistory(os.Stdout, entries)
		return nil
	},
}

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List leads or competitors with filters",
	Long:  "Filters are key=value pairs: market, tier, status, state, name, min_score.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "status")
		if err != nil {
			return err
		}
		defer env.Close()

		project, _ := cmd.Flags().GetString("project")
		filters, _ := cmd.Flags().GetStringSlice("filter")
		limit, _ := cmd.Flags().GetInt("limit")
		competitors, _ := cmd.Flags().GetBool("competitors")

		filter, err := parsePartyFilter(filters)
		if err != nil {
			return err
		}
		filter.ProjectID, filter.Limit = project, limit

		entity := model.EntityLead
		if competitors {
			entity = model.EntityCompetitor
		}
		parties, err := env.Store.ListParties(ctx, entity, filter)
		if err != nil {
			return err
		}
		if len(parties) == 0 {
			fmt.Fprintln(os.Stderr, "No results.")
			return nil
		}
		formatParties(os.Stdout, parties)
		return nil
	},
}

// parsePartyFilter maps key=value pairs onto a PartyFilter. Values are
// bound as query parameters by the store.
func parsePartyFilter(pairs []string) (store.PartyFilter, error) {
	var f store.PartyFilter
	for _, p := range pairs {
		key, val, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(val) == "" {
			return f, eris.Errorf("invalid filter %q, want key=value", p)
		}
		val = strings.TrimSpace(val)
		switch strings.TrimSpace(key) {
		case "market":
			f.MarketID = val
		case "tier":
			f.Tier = val
		case "status":
			f.Status = model.ValidationStatus(val)
		case "state":
			f.State = val
		case "name":
			f.Name = val
		case "min_score":
			n, err := strconv.Atoi(val)
			if err != nil {
				return f, eris.Wrapf(err, "invalid min_score %q", val)
			}
			f.MinScore = n
		default:
			return f, eris.Errorf("unknown filter key %q", key)
		}
	}
	return f, nil
}

func init() {
	historyCmd.Flags().String("entity", "", "entity type: client, market, product, competitor, lead (required)")
	historyCmd.Flags().String("id", "", "entity id (required)")
	_ = historyCmd.MarkFlagRequired("entity")
	_ = historyCmd.MarkFlagRequired("id")
	rootCmd.AddCommand(historyCmd)

	leadsCmd.Flags().String("project", "", "project id")
	leadsCmd.Flags().StringSlice("filter", nil, "key=value filter, repeatable")
	leadsCmd.Flags().Int("limit", 50, "max results")
	leadsCmd.Flags().Bool("competitors", false, "list competitors instead of leads")
	rootCmd.AddCommand(leadsCmd)
}
