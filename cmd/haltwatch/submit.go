package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rickgao/haltwatch/internal/api"
	"github.com/rickgao/haltwatch/internal/dispatch"
	"github.com/rickgao/haltwatch/internal/model"
)

// submitOptions holds flags for the submit command.
type submitOptions struct {
	*rootOptions
	Action         string
	HaltID         string
	Symbol         string
	HaltType       string
	Status         string
	HaltTime       string
	ResumptionTime string
	HaltReason     string
	RemainReason   string
	Comment        string
	Extended       bool
	Remained       bool
	AllIssue       bool
	Record         string // Full record JSON; flags override its fields
	Endpoint       string
}

func newSubmitCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &submitOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit one halt mutation",
		Long: `Submit one halt mutation with an idempotency key.

Transport failures are retried with the same key and exponential backoff.
An error response from the server is reported immediately.

Examples:
  haltwatch submit --action create-immediate-halt --symbol ABC --halt-type REG --reason T1
  haltwatch submit --action extend-halt --halt-id H123 --extended
  haltwatch submit --action create-scheduled-resumption --halt-id H123 --resumption-time "2026-03-02 15:00:00"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Action, "action", "", "mutation action, e.g. create-immediate-halt (required)")
	f.StringVar(&opts.HaltID, "halt-id", "", "target halt id")
	f.StringVar(&opts.Symbol, "symbol", "", "target symbol, used when no halt exists yet")
	f.StringVar(&opts.HaltType, "halt-type", "", "REG or SSCB")
	f.StringVar(&opts.Status, "status", "", "halt status")
	f.StringVar(&opts.HaltTime, "halt-time", "", "halt time (RFC3339, 2006-01-02 15:04:05 or epoch ms)")
	f.StringVar(&opts.ResumptionTime, "resumption-time", "", "resumption time")
	f.StringVar(&opts.HaltReason, "reason", "", "halt reason code")
	f.StringVar(&opts.RemainReason, "remain-reason", "", "remain reason")
	f.StringVar(&opts.Comment, "comment", "", "free-text comment")
	f.BoolVar(&opts.Extended, "extended", false, "mark the halt extended")
	f.BoolVar(&opts.Remained, "remained", false, "mark the halt remained")
	f.BoolVar(&opts.AllIssue, "all-issue", false, "halt applies to all issues")
	f.StringVar(&opts.Record, "record", "", "full halt record as JSON")
	f.StringVar(&opts.Endpoint, "endpoint", "", "mutation path (default api.mutation_path)")
	_ = cmd.MarkFlagRequired("action")

	return cmd
}

func runSubmit(cmd *cobra.Command, opts *submitOptions) error {
	m, err := buildMutation(opts, cmd.Flags().Changed)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, opts.rootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = a.cfg.API.MutationPath
	}

	d := newDispatcher(a)

	res, err := d.Submit(ctx, endpoint, m)
	if err != nil {
		return describeSubmitError(err)
	}
	return writeResult(cmd.OutOrStdout(), res)
}

// buildMutation assembles the mutation from --record and the flags that
// were set explicitly.
func buildMutation(opts *submitOptions, changed func(string) bool) (model.Mutation, error) {
	var m model.Mutation
	if opts.Record != "" {
		if err := json.Unmarshal([]byte(opts.Record), &m.HaltRecord); err != nil {
			return m, fmt.Errorf("invalid --record JSON: %w", err)
		}
	}
	m.Action = model.Action(opts.Action)

	if changed("halt-id") {
		m.HaltID = opts.HaltID
	}
	if changed("symbol") {
		m.Symbol = opts.Symbol
	}
	m.Symbol = model.NormalizeSymbol(m.Symbol)
	if changed("halt-type") {
		m.HaltType = model.HaltType(strings.ToUpper(opts.HaltType))
	}
	if changed("status") {
		m.Status = model.Status(opts.Status)
	}
	if changed("reason") {
		m.HaltReason = opts.HaltReason
	}
	if changed("remain-reason") {
		m.RemainReason = opts.RemainReason
	}
	if changed("comment") {
		m.Comment = opts.Comment
	}
	if changed("extended") {
		m.ExtendedHalt = opts.Extended
	}
	if changed("remained") {
		m.RemainedHalt = opts.Remained
	}
	if changed("all-issue") {
		m.AllIssue = opts.AllIssue
	}

	for _, tf := range []struct {
		flag  string
		value string
		dst   **model.Timestamp
	}{
		{"halt-time", opts.HaltTime, &m.HaltTime},
		{"resumption-time", opts.ResumptionTime, &m.ResumptionTime},
	} {
		if !changed(tf.flag) {
			continue
		}
		ts, err := model.ParseTimestamp(tf.value)
		if err != nil {
			return m, fmt.Errorf("--%s: %w", tf.flag, err)
		}
		*tf.dst = &ts
	}

	if err := m.Validate(); err != nil {
		return m, fmt.Errorf("%w: %w", dispatch.ErrInvalidMutation, err)
	}
	return m, nil
}

// describeSubmitError keeps the server's structured message in front.
func describeSubmitError(err error) error {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("rejected (%d): %s", apiErr.StatusCode, apiErr.Message)
	}
	return err
}

func writeResult(w io.Writer, res dispatch.Result) error {
	out := struct {
		IdempotencyKey string          `json:"idempotencyKey"`
		Attempts       int             `json:"attempts"`
		Response       json.RawMessage `json:"response,omitempty"`
	}{
		IdempotencyKey: res.IdempotencyKey,
		Attempts:       res.Attempts,
	}
	if json.Valid(res.Body) {
		out.Response = res.Body
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
