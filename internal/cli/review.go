package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/phrazzld/recite/internal/domain"
	"github.com/phrazzld/recite/internal/domain/srs"
	"github.com/phrazzld/recite/internal/platform/gemini"
	"github.com/phrazzld/recite/internal/platform/speech"
	"github.com/phrazzld/recite/internal/session"
)

var (
	reviewCram  bool
	reviewTags  []string
	reviewLimit int
)

var reviewCmd = &cobra.Command{
	Use:   "review <deck-name>",
	Short: "Run an interactive study session",
	Long: `Run an interactive study session in the terminal. Type what you would
say aloud: "answer", "hint", "repeat", "again", "hard", "good", "easy",
"explain", "suspend", "stop". Type /undo to revert the last grade.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		deck, err := store.GetDeckByName(ctx, args[0])
		if err != nil {
			return err
		}

		settings, err := store.GetSettings(ctx, deck.ID)
		if err != nil {
			return err
		}
		scheduler, err := srs.NewServiceWithParams(srs.ParamsFromSettings(settings))
		if err != nil {
			return err
		}

		var explainer session.Explainer
		if cfg.LLM.GeminiAPIKey != "" {
			ex, err := gemini.NewExplainer(ctx, appLog, cfg.LLM)
			if err != nil {
				appLog.Warn("explainer unavailable", "error", err)
			} else {
				explainer = ex
			}
		}

		speaker := speech.NewConsoleSpeaker(os.Stdout)
		engine := session.NewEngine(store, scheduler, speaker, explainer, appLog, session.Options{
			LearningHorizon: time.Duration(cfg.Session.LearningHorizonMinutes) * time.Minute,
			WaitThreshold:   time.Duration(cfg.Session.WaitThresholdSeconds) * time.Second,
			StoreTimeout:    time.Duration(cfg.Session.StoreTimeoutSeconds) * time.Second,
			UndoWindow:      time.Duration(cfg.Session.UndoWindowSeconds) * time.Second,
		})

		done := make(chan struct{})
		go consumeEvents(engine, done)

		err = engine.Start(ctx, session.FetchScope{
			DeckID: deck.ID,
			Limit:  reviewLimit,
			Tags:   reviewTags,
			Cram:   reviewCram,
		})
		if err != nil {
			<-done
			return err
		}

		go readInput(engine)

		<-done
		return nil
	},
}

// consumeEvents drains the engine's event channel until the session ends,
// rendering the events a voice UI would surface.
func consumeEvents(engine *session.Engine, done chan<- struct{}) {
	defer close(done)
	for ev := range engine.Events() {
		switch ev := ev.(type) {
		case session.DeckInfo:
			fmt.Printf("Studying %q\n", ev.Name)
		case session.CardPresented:
			kind := "review"
			if ev.IsLearning {
				kind = "learning"
			}
			fmt.Printf("\n--- Card %d (%s) ---\n", ev.Index+1, kind)
		case session.Listening:
			fmt.Print("> ")
		case session.LearningWait:
			fmt.Printf("Next card in %s...\n", ev.Wait.Round(time.Second))
		case session.UndoAvailable:
			if ev.Available {
				fmt.Println("(/undo to revert)")
			}
		case session.CardSuspended:
			fmt.Println("Card suspended.")
		case session.SessionError:
			fmt.Fprintf(os.Stderr, "error: %s\n", ev.Message)
		case session.SessionEnded:
			printStats(ev.Stats)
		}
	}
}

func printStats(stats session.Stats) {
	fmt.Printf("\nSession complete: %d cards in %s\n",
		stats.CardsReviewed, stats.Duration.Round(time.Second))
	for _, grade := range domain.AllGrades {
		if n := stats.Ratings[grade]; n > 0 {
			fmt.Printf("  %-5s %d\n", grade, n)
		}
	}
}

// readInput feeds stdin lines into the engine as final transcripts. Lines
// starting with / are control commands rather than utterances.
func readInput(engine *session.Engine) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/undo":
			engine.Undo()
		case "/mic":
			engine.ToggleMic()
		case "/audio":
			engine.ToggleAudio()
		default:
			engine.HandleTranscript(line, true)
		}
	}
	engine.Close()
}

func init() {
	reviewCmd.Flags().BoolVar(&reviewCram, "cram", false, "Ignore due times and daily limits")
	reviewCmd.Flags().StringSliceVar(&reviewTags, "tags", nil, "Only cards whose note carries one of these tags")
	reviewCmd.Flags().IntVar(&reviewLimit, "limit", 0, "Cap the number of cards fetched")
	rootCmd.AddCommand(reviewCmd)
}
