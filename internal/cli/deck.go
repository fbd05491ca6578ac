package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phrazzld/recite/internal/domain"
)

var deckCmd = &cobra.Command{
	Use:   "deck",
	Short: "Manage decks",
}

var deckCreateCmd = &cobra.Command{
	Use:   "create <name> [description]",
	Short: "Create a new deck",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		description := ""
		if len(args) > 1 {
			description = args[1]
		}
		deck, err := store.CreateDeck(context.Background(), args[0], description)
		if err != nil {
			return err
		}
		fmt.Printf("Created deck %q (%s)\n", deck.Name, deck.ID)
		return nil
	},
}

var deckListCmd = &cobra.Command{
	Use:   "list",
	Short: "List decks with card counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		decks, err := store.ListDecks(ctx)
		if err != nil {
			return err
		}
		if len(decks) == 0 {
			fmt.Println("No decks yet. Create one with: recite deck create <name>")
			return nil
		}
		for _, deck := range decks {
			counts, err := store.CountCards(ctx, deck.ID)
			if err != nil {
				return err
			}
			total := 0
			for _, n := range counts {
				total += n
			}
			fmt.Printf("%s  %s  (%d cards: %d new, %d learning, %d review)\n",
				deck.ID, deck.Name, total,
				counts[domain.StateNew],
				counts[domain.StateLearning]+counts[domain.StateRelearning],
				counts[domain.StateReview])
		}
		return nil
	},
}

var noteTags string

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Manage notes",
}

var noteAddCmd = &cobra.Command{
	Use:   "add <deck-name> <front> [back]",
	Short: "Add a note to a deck",
	Long: `Add a note to a deck. With both front and back a basic card is created.
A front containing {{c1::...}} cloze markers creates a cloze card instead.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		deck, err := store.GetDeckByName(ctx, args[0])
		if err != nil {
			return err
		}

		front := args[1]
		modelName := "basic"
		fields := []domain.NoteField{{Name: "Front", Value: front}}
		if strings.Contains(front, "{{c") {
			modelName = "cloze"
			fields[0].Name = "Text"
		} else if len(args) > 2 {
			fields = append(fields, domain.NoteField{Name: "Back", Value: args[2]})
		}

		fieldsJSON, err := json.Marshal(fields)
		if err != nil {
			return err
		}

		cardID, err := store.AddNote(ctx, deck.ID, modelName, string(fieldsJSON), noteTags)
		if err != nil {
			return err
		}
		fmt.Printf("Added %s card %s to %q\n", modelName, cardID, deck.Name)
		return nil
	},
}

func init() {
	noteAddCmd.Flags().StringVar(&noteTags, "tags", "", "Space-separated tags for the note")
	deckCmd.AddCommand(deckCreateCmd, deckListCmd)
	noteCmd.AddCommand(noteAddCmd)
	rootCmd.AddCommand(deckCmd, noteCmd)
}
