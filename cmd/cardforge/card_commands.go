package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cardforge/internal/api"
)

func newCardCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "card <token-id>",
		Short: "Fetch or build the trading card for a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			card, err := client.Card(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, card)
			}
			printCard(cmd, card)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the card as JSON")
	return cmd
}

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var force bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "generate <token-id>",
		Short: "Generate (or regenerate) the card for a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			card, err := client.Generate(cmd.Context(), args[0], force)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, card)
			}
			printCard(cmd, card)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Regenerate artwork even when cached")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the card as JSON")
	return cmd
}

func newTraitsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "traits <token-id>",
		Short: "Show the marketplace traits for a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			traits, err := client.Traits(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, traits)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (token %s)\n", traits.Name, traits.TokenID)
			if len(traits.Traits) == 0 {
				fmt.Fprintln(out, "no traits recorded")
				return nil
			}
			if stdoutIsTerminal() {
				rows := make([][]string, 0, len(traits.Traits))
				for _, trait := range traits.Traits {
					rows = append(rows, []string{trait.TraitType, trait.Value})
				}
				fmt.Fprintln(out, renderTable([]string{"Trait", "Value"}, rows, nil))
				return nil
			}
			for _, trait := range traits.Traits {
				fmt.Fprintf(out, "%s: %s\n", trait.TraitType, trait.Value)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the traits as JSON")
	return cmd
}

func printCard(cmd *cobra.Command, card *api.Card) {
	out := cmd.OutOrStdout()

	stats := fmt.Sprintf("ATK %d / DEF %d / COST %d", card.Attack, card.Defense, card.Cost)
	if stdoutIsTerminal() {
		rows := [][]string{
			{"Name", card.Name},
			{"Token", card.TokenID},
			{"Rarity", card.Rarity},
			{"Element", card.Element},
			{"Stats", stats},
			{"Artwork", card.ImageURL},
		}
		if card.FlavorText != "" {
			rows = append(rows, []string{"Flavor", card.FlavorText})
		}
		for i, ability := range card.Abilities {
			label := "Ability"
			if len(card.Abilities) > 1 {
				label = "Ability " + strconv.Itoa(i+1)
			}
			rows = append(rows, []string{label, ability.Name + ": " + ability.Description})
		}
		fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, nil))
		return
	}

	fmt.Fprintf(out, "%s [%s/%s] %s\n", card.Name, card.Rarity, card.Element, stats)
	fmt.Fprintf(out, "token: %s\n", card.TokenID)
	fmt.Fprintf(out, "artwork: %s\n", card.ImageURL)
	if card.FlavorText != "" {
		fmt.Fprintf(out, "flavor: %s\n", card.FlavorText)
	}
	for _, ability := range card.Abilities {
		fmt.Fprintf(out, "ability: %s: %s\n", ability.Name, ability.Description)
	}
	if len(card.Traits) > 0 {
		pairs := make([]string, 0, len(card.Traits))
		for _, trait := range card.Traits {
			pairs = append(pairs, trait.TraitType+"="+trait.Value)
		}
		fmt.Fprintf(out, "traits: %s\n", strings.Join(pairs, " "))
	}
}
