package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/zoobzio/spanz"
)

type simulateOptions struct {
	reporter string
	endpoint string
	calls    int
	workers  int
	queries  int
}

func newSimulateCommand() *cobra.Command {
	opts := simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run one synthetic transaction and report its spans",
		Long: `Starts a root transaction, a number of service calls and queries, and
hands the flow to worker goroutines through auxiliary contexts. Spans go to
the reporter configured by SPANZ_* variables, or by the flags below.
With the collector reporter the records are printed as JSON.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := spanz.LoadConfig()
			if err != nil {
				return err
			}
			if opts.reporter != "" {
				cfg.Reporter = opts.reporter
			}
			if opts.endpoint != "" {
				cfg.ZipkinEndpoint = opts.endpoint
			}
			return runSimulate(cfg, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&opts.reporter, "reporter", "", "reporter: console, zipkin, collector or none")
	cmd.Flags().StringVar(&opts.endpoint, "zipkin-endpoint", "", "zipkin v2 spans endpoint")
	cmd.Flags().IntVar(&opts.calls, "calls", 3, "service calls made by the root transaction")
	cmd.Flags().IntVar(&opts.queries, "queries", 1, "queries made by the root transaction")
	cmd.Flags().IntVar(&opts.workers, "workers", 2, "worker goroutines continuing the flow")
	return cmd
}

func runSimulate(cfg *spanz.Config, opts simulateOptions, out, logOut io.Writer) error {
	if opts.calls < 0 || opts.queries < 0 || opts.workers < 0 {
		return errors.New("calls, queries and workers must be >= 0")
	}
	logger, err := cfg.Logger(logOut)
	if err != nil {
		return err
	}
	agent, shutdown, err := spanz.NewFromConfig(cfg, logger)
	if err != nil {
		return err
	}

	simulateTransaction(agent, opts)

	var records []spanz.Record
	if c, ok := agent.Reporter().(*spanz.Collector); ok {
		// Close drains queued records before export.
		c.Close()
		records = c.Export()
	}
	if err := shutdown(); err != nil {
		return err
	}
	if records == nil {
		return nil
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(records), "writing records")
}

func simulateTransaction(agent *spanz.Agent, opts simulateOptions) {
	slot := spanz.NewSlot()
	root := agent.StartTransaction("Web", "/simulate", spanz.StaticMessage("GET /simulate"),
		"http request", slot, 0, 0)
	tc := slot.Get()
	tc.SetRequestInfo(&spanz.RequestInfo{Method: "GET", URI: "/simulate"})

	for i := 0; i < opts.calls; i++ {
		call := tc.StartServiceCallEntry("HTTP", fmt.Sprintf("call %d", i),
			spanz.StaticMessage(fmt.Sprintf("GET http://backend/items/%d", i)), "http client request")
		call.End()
	}
	for i := 0; i < opts.queries; i++ {
		q := tc.StartQueryEntry("SQL", "select * from items where id = ?",
			spanz.StaticQueryMessage("jdbc query: ", ""), "jdbc query")
		q.End()
	}

	aux := tc.CreateAuxThreadContext()
	var wg sync.WaitGroup
	for i := 0; i < opts.workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			workerSlot := spanz.NewSlot()
			entry := aux.Start(workerSlot)
			span := workerSlot.Get().StartOutgoingSpan("Messaging",
				spanz.StaticMessage(fmt.Sprintf("publish items.%d", idx)), "messaging")
			span.End()
			entry.End()
		}(i)
	}
	wg.Wait()

	root.End()
}
