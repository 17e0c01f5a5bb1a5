// Package main implements the receptionist CLI: run one find-and-provision flow
// from the terminal, or look up an agent recorded by the worker manager.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"property-receptionist/internal/common/config"
	apphttp "property-receptionist/internal/common/http"
	"property-receptionist/internal/common/logger"
	"property-receptionist/internal/extraction"
	"property-receptionist/internal/models"
	"property-receptionist/internal/orchestrator"
	"property-receptionist/internal/provisioning"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "receptionist",
		Short:   "Set up an AI receptionist for a property",
		Version: version,
	}
	root.AddCommand(newFindCmd(), newLookupCmd())
	return root
}

type findOptions struct {
	place        models.SelectedPlace
	propertyType string
	interactive  bool
	timeout      time.Duration
}

func newFindCmd() *cobra.Command {
	opts := &findOptions{}
	cmd := &cobra.Command{
		Use:   "find",
		Short: "Extract property information and provision a receptionist",
		Long: `Extract property information for a place and provision a receptionist for it.

Examples:
  receptionist find --name "Seaside Inn" --address "1 Ocean Dr, Miami, FL" --country "United States"

  # Ask before retrying a failed stage
  receptionist find --name "Seaside Inn" --interactive`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFindCmd(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.place.Name, "name", "", "place name")
	f.StringVar(&opts.place.FormattedAddress, "address", "", "formatted address")
	f.StringVar(&opts.place.State, "state", "", "state or region")
	f.StringVar(&opts.place.Country, "country", "", "country")
	f.StringVar(&opts.propertyType, "property-type", "", "property type (defaults to extraction.property_type)")
	f.BoolVar(&opts.interactive, "interactive", false, "offer to retry the failed stage")
	f.DurationVar(&opts.timeout, "timeout", 10*time.Minute, "overall time limit")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func runFindCmd(cmd *cobra.Command, opts *findOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Logs go to stderr so stdout carries only the progress display.
	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format, "stderr")

	propertyType := cfg.Extraction.PropertyType
	if opts.propertyType != "" {
		propertyType = opts.propertyType
	}

	out := cmd.OutOrStdout()
	d := newDisplay(out)
	defer d.close()

	o := orchestrator.New(
		extraction.NewHTTPTransport(apphttp.NewClient(cfg.Extraction.ConnectTimeout, cfg.Extraction.APIToken,
			apphttp.WithResponseHeaderTimeout(cfg.Extraction.ConnectTimeout)), cfg.Extraction.URL),
		provisioning.NewGate(apphttp.NewClient(cfg.Provisioning.ConnectTimeout, cfg.Provisioning.APIToken), cfg.Provisioning.URL, log,
			provisioning.WithTimeout(cfg.Provisioning.Timeout)),
		orchestrator.Config{
			Extraction: extraction.Options{
				PropertyType:       propertyType,
				RequestPreliminary: cfg.Extraction.RequestPreliminary,
				IdleTimeout:        cfg.Extraction.IdleTimeout,
			},
			ClientData:   models.ClientData{Name: cfg.Client.Name, Email: cfg.Client.Email, Phone: cfg.Client.Phone},
			PropertyType: propertyType,
		},
		log,
		orchestrator.WithStateListener(d.onState),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	var prompt io.Reader
	if opts.interactive {
		prompt = cmd.InOrStdin()
	}
	state, err := runFind(ctx, o, opts.place, prompt, out)
	if err != nil {
		return err
	}
	printResult(out, opts.place, state)
	return nil
}

// runFind drives o to Ready. When prompt is non-nil a failed stage may be retried
// on the user's confirmation; otherwise the first failure is returned.
func runFind(ctx context.Context, o *orchestrator.Orchestrator, place models.SelectedPlace, prompt io.Reader, out io.Writer) (orchestrator.State, error) {
	if err := o.FindProperty(place); err != nil {
		return o.State(), err
	}

	var answers *bufio.Scanner
	if prompt != nil {
		answers = bufio.NewScanner(prompt)
	}

	for {
		state, err := o.Wait(ctx)
		if err != nil {
			o.Reset()
			return state, err
		}
		if state.Stage != orchestrator.StageFailed {
			return state, nil
		}

		fmt.Fprintf(out, "\nFailed during %s: %s\n", state.RetryStage(), state.Error.Message)
		if answers == nil || !confirm(out, answers, fmt.Sprintf("Retry %s? [y/N] ", state.RetryStage())) {
			return state, state.Error
		}
		if err := o.Retry(); err != nil {
			return state, err
		}
	}
}

func confirm(out io.Writer, answers *bufio.Scanner, question string) bool {
	fmt.Fprint(out, question)
	if !answers.Scan() {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answers.Text())) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func printResult(out io.Writer, place models.SelectedPlace, state orchestrator.State) {
	fmt.Fprintf(out, "\nReceptionist ready for %s", place.Name)
	if label := place.LocationLabel(); label != "" {
		fmt.Fprintf(out, " (%s)", label)
	}
	fmt.Fprintln(out)
	if state.Agent != nil {
		fmt.Fprintf(out, "  Phone:   %s\n", state.Agent.PhoneNumber)
		fmt.Fprintf(out, "  Agent:   %s\n", state.Agent.ID)
	}
	if state.Preliminary != "" {
		fmt.Fprintf(out, "  Summary: %s\n", state.Preliminary)
	}
	fmt.Fprintf(out, "  Session: %s\n", state.SessionID)
}

// ==========================
// lookup
// ==========================

var serverURL string

func newLookupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup <session-id>",
		Short: "Look up the agent recorded for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookup(cmd.Context(), http.DefaultClient, serverURL, args[0], cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:9090", "worker manager URL")
	return cmd
}

func runLookup(ctx context.Context, client *http.Client, server, sessionID string, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(server, "/")+"/agents/"+sessionID, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("lookup failed: %w", err)
	}
	defer resp.Body.Close()

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := body["error"].(string)
		return errors.New("lookup failed: " + msg)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(body)
}
