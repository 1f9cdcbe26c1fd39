package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/reoring/schemaform/events"
	"github.com/reoring/schemaform/fields"
	"github.com/reoring/schemaform/review"
	"github.com/reoring/schemaform/schema"
	"github.com/reoring/schemaform/schemawatch"
)

var (
	watchSchemaFile string
	notifyStatus    string
	notifyProgress  float64
	notifyError     string
)

var watchCmd = &cobra.Command{
	Use:   "watch <document-id>",
	Short: "Follow extraction events for a document and refresh it",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

var notifyCmd = &cobra.Command{
	Use:   "notify <document-id>",
	Short: "Publish an extraction event for a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runNotify,
}

func init() {
	watchCmd.Flags().StringVar(&watchSchemaFile, "schema", "", "also follow changes to this schema file")
	notifyCmd.Flags().StringVar(&notifyStatus, "status", "completed", "job status")
	notifyCmd.Flags().Float64Var(&notifyProgress, "progress", 1, "job progress between 0 and 1")
	notifyCmd.Flags().StringVar(&notifyError, "error", "", "job error message")
}

func openBus() (*events.Bus, error) {
	return events.NewBus(settings().Redis.URL, events.WithLogger(log().Named("events")))
}

func runWatch(cmd *cobra.Command, args []string) error {
	bus, err := openBus()
	if err != nil {
		return err
	}
	defer bus.Close()
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	sess, err := openSession(cmd, st, args[0], nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	out := cmd.OutOrStdout()
	g, ctx := errgroup.WithContext(contextOf(cmd))
	evs := make(chan review.Event)
	stop, err := bus.Subscribe(ctx, args[0], func(ev review.Event) {
		select {
		case evs <- ev:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return err
	}
	defer stop()

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev := <-evs:
				fmt.Fprintf(out, "%s %3.0f%% %s\n", ev.DocumentID, ev.Progress*100, ev.Status)
				replaced, err := sess.HandleEvent(ctx, ev)
				if err != nil {
					log().Warn("refresh failed", zap.String("document", ev.DocumentID), zap.Error(err))
					continue
				}
				if replaced {
					fmt.Fprintf(out, "%s refreshed\n", ev.DocumentID)
				}
			}
		}
	})
	if watchSchemaFile != "" {
		g.Go(func() error {
			return schemawatch.Watch(ctx, watchSchemaFile, func(n schema.Node) {
				set := fields.Derive(n)
				fmt.Fprintf(out, "schema reloaded: %d fields, %d tables, %d lists\n",
					len(set.Scalars), len(set.ArrayObjects), len(set.Arrays))
			}, schemawatch.WithLogger(log().Named("watch")))
		})
	}
	return g.Wait()
}

func runNotify(cmd *cobra.Command, args []string) error {
	bus, err := openBus()
	if err != nil {
		return err
	}
	defer bus.Close()
	ev := review.Event{DocumentID: args[0], Progress: notifyProgress, Status: notifyStatus, Error: notifyError}
	if err := bus.Publish(contextOf(cmd), ev); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "published %s for %s\n", ev.Status, ev.DocumentID)
	return nil
}
