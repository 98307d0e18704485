package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hrygo/eventchain/plugin/ai"
	"github.com/hrygo/eventchain/plugin/ai/calendar"
	"github.com/hrygo/eventchain/plugin/ai/timeout"
)

var processCmd = &cobra.Command{
	Use:   "process <text>",
	Short: "Run the calendar pipeline on one request and print the confirmation",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runProcess,
}

var batchCmd = &cobra.Command{
	Use:   "batch [file]",
	Short: "Run the calendar pipeline on every line of a file, or stdin, and print JSON lines",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBatch,
}

var quickCmd = &cobra.Command{
	Use:   "quick <text>",
	Short: "Extract event name, date and participants with a single model call",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuick,
}

func init() {
	processCmd.Flags().String("ics", "", "write a confirmed new event to this .ics file")
	processCmd.Flags().Bool("json", false, "print the full result as JSON")
}

func newGateway() (*ai.OpenAIGateway, error) {
	gw, err := ai.NewOpenAIGateway(ai.NewLLMConfigFromProfile(instanceProfile), ai.WithLogger(slog.Default()))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create model gateway")
	}
	return gw, nil
}

func newPipeline(gw ai.Gateway) (*calendar.Pipeline, error) {
	var opts []calendar.Option
	if instanceProfile.TemplateConfirm {
		opts = append(opts, calendar.WithConfirmer(calendar.TemplateConfirmer{}))
	}
	threshold := instanceProfile.ConfidenceThreshold
	pipeline, err := calendar.NewPipeline(calendar.Config{
		ConfidenceThreshold: &threshold,
		Signer:              instanceProfile.Signer,
		Logger:              slog.Default(),
	}, gw, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create pipeline")
	}
	return pipeline, nil
}

func runProcess(cmd *cobra.Command, args []string) error {
	gw, err := newGateway()
	if err != nil {
		return err
	}
	pipeline, err := newPipeline(gw)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout.PipelineTimeout)
	defer cancel()

	now := time.Now().In(instanceProfile.Location())
	res, err := pipeline.Process(ctx, strings.Join(args, " "), now)
	if err != nil {
		return errors.Wrap(err, "failed to process calendar request")
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		renderResult(cmd.OutOrStdout(), res)
	}

	if path, _ := cmd.Flags().GetString("ics"); path != "" {
		return writeICSFile(path, res, now.Location())
	}
	return nil
}

// renderResult prints the confirmation, or the rejection message, of a run.
func renderResult(w io.Writer, res *calendar.Result) {
	if res.Rejection != nil {
		fmt.Fprintln(w, res.Rejection.Message)
		return
	}
	fmt.Fprintln(w, res.Confirmation.Message)
	if res.Confirmation.Link != "" {
		fmt.Fprintf(w, "Link: %s\n", res.Confirmation.Link)
	}
}

func writeICSFile(path string, res *calendar.Result, loc *time.Location) error {
	details, ok := res.Detail.(*calendar.EventDetails)
	if !res.Confirmed() || !ok {
		slog.Warn("no new event to export", "path", path, "state", res.State)
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer f.Close()

	if err := calendar.EncodeICS(f, details, loc); err != nil {
		return errors.Wrap(err, "failed to export event")
	}
	slog.Info("event exported", "path", path)
	return nil
}

// batchLine is one JSON line of batch output.
type batchLine struct {
	Index  int              `json:"index"`
	Input  string           `json:"input"`
	Result *calendar.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	in := cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return errors.Wrapf(err, "failed to open %s", args[0])
		}
		defer f.Close()
		in = f
	}

	inputs, err := readLines(in)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return errors.New("no input lines")
	}

	gw, err := newGateway()
	if err != nil {
		return err
	}
	pipeline, err := newPipeline(gw)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout.BatchTimeout)
	defer cancel()

	now := time.Now().In(instanceProfile.Location())
	items := pipeline.ProcessBatch(ctx, inputs, now, instanceProfile.Concurrency)
	return writeBatchLines(cmd.OutOrStdout(), items)
}

// readLines returns the non-blank lines of r.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read input")
	}
	return lines, nil
}

func writeBatchLines(w io.Writer, items []calendar.BatchItem) error {
	enc := json.NewEncoder(w)
	for _, item := range items {
		line := batchLine{Index: item.Index, Input: item.Input, Result: item.Result}
		if item.Err != nil {
			line.Error = item.Err.Error()
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	return nil
}

func runQuick(cmd *cobra.Command, args []string) error {
	gw, err := newGateway()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout.PipelineTimeout)
	defer cancel()

	ev, err := calendar.QuickExtract(ctx, gw, strings.Join(args, " "))
	if err != nil {
		return errors.Wrap(err, "failed to extract event")
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(ev)
}
