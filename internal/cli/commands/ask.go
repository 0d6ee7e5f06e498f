package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/querydesk/internal/api"
	"github.com/leapstack-labs/querydesk/internal/appctx"
	"github.com/leapstack-labs/querydesk/internal/authoring"
	"github.com/leapstack-labs/querydesk/internal/cli/output"
)

const askPrompt = "querydesk> "

// NewAskCommand creates the interactive ask command.
func NewAskCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ask",
		Short: "Interactive generate, estimate and run session",
		Long: `Start an interactive session. Each line is sent as a prompt and the
generated SQL becomes the current query. Estimate it with .estimate and run
it with .run; a run is refused while the estimate exceeds the cost limit.`,
		Example: `  querydesk ask
  querydesk ask --market EU`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAsk(cmd)
		},
	}
}

// askShell holds one interactive session.
type askShell struct {
	session *authoring.Session
	app     appctx.Context
	r       *output.Renderer
}

func newAskShell(cc *CommandContext) *askShell {
	limits := authoring.NewLimitsHolder(cc.Cfg.Limits.Limits())
	return &askShell{
		session: authoring.NewSession(cc.Client, limits, cc.Logger),
		app:     cc.Cfg.App(),
		r:       cc.Renderer,
	}
}

func runAsk(cmd *cobra.Command) error {
	cc := NewCommandContext(cmd)
	sh := newAskShell(cc)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          askPrompt,
		HistoryFile:     historyFile(),
		AutoComplete:    askCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	sh.r.Printf("QueryDesk (market: %s, project: %s)\n", sh.app.Market, sh.app.ProjectName)
	sh.r.Println("Type a question to generate SQL, .help for commands, .quit to exit")
	sh.r.Println("")

	ctx := cmd.Context()
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if sh.handle(ctx, line) {
			break
		}
	}
	return nil
}

// historyFile is kept in the user config directory, or disabled when there
// is none.
func historyFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "querydesk")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return ""
	}
	return filepath.Join(dir, "ask_history")
}

func askCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".show"),
		readline.PcItem(".sql"),
		readline.PcItem(".estimate"),
		readline.PcItem(".run"),
		readline.PcItem(".unit",
			readline.PcItem(string(authoring.UnitBytes)),
			readline.PcItem(string(authoring.UnitGB)),
			readline.PcItem(string(authoring.UnitTB)),
		),
		readline.PcItem(".csv"),
		readline.PcItem(".new"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}

// handle processes one input line and reports whether to quit.
func (sh *askShell) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, ".") {
		sh.generate(ctx, line)
		return false
	}

	command, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(command) {
	case ".quit", ".exit":
		return true
	case ".help":
		printAskHelp(sh.r)
	case ".show":
		sh.show()
	case ".sql":
		sh.edit(rest)
	case ".estimate":
		sh.estimate(ctx)
	case ".run":
		sh.run(ctx)
	case ".unit":
		sh.unit(rest)
	case ".csv":
		sh.export(rest)
	case ".new":
		sh.session.NewPrompt()
		sh.r.Println("Started a new query.")
	default:
		sh.r.Error(fmt.Sprintf("Unknown command: %s (type .help for commands)", command))
	}
	return false
}

func (sh *askShell) generate(ctx context.Context, prompt string) {
	st, err := sh.session.Generate(ctx, sh.app, prompt)
	if sh.report(st, err) {
		return
	}
	sh.r.Code("sql", st.Query)
	sh.r.Success(st.Notice)
}

func (sh *askShell) show() {
	st := sh.session.Snapshot()
	if st.Query == "" {
		sh.r.Println("No query yet. Type a question to generate one.")
		return
	}
	sh.r.Code("sql", st.Query)
	if st.Estimate != nil {
		sh.printEstimate(st)
	}
}

func (sh *askShell) edit(text string) {
	if text == "" {
		sh.r.Error("Usage: .sql <query text>")
		return
	}
	if _, err := sh.session.Edit(text); err != nil {
		sh.r.Error("The query can no longer be edited. Type a new question to start over.")
		return
	}
	sh.r.Success("Query updated.")
}

func (sh *askShell) estimate(ctx context.Context) bool {
	st, err := sh.session.Estimate(ctx, sh.app)
	if errors.Is(err, authoring.ErrNoQuery) {
		sh.r.Error("Nothing to estimate. Type a question to generate a query.")
		return false
	}
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			sh.r.Error(failure(err, "").Error())
		} else {
			sh.r.Error(st.EstimateError)
		}
		return false
	}
	sh.printEstimate(st)
	return true
}

func (sh *askShell) printEstimate(st authoring.State) {
	sh.r.KeyValue("Estimated cost", fmt.Sprintf("$%.2f", st.Estimate.EstimatedCostUSD))
	sh.r.KeyValue("Processed ("+string(st.Unit)+")", st.BytesDisplay())
	sh.r.KeyValue("Estimated runtime", fmt.Sprintf("%.1fs", st.Assessment.Seconds))
	if st.Assessment.TooExpensive || st.Assessment.TimeoutRisk {
		sh.r.Warning(st.ExecuteTooltip())
	}
}

// run estimates first when the current query has no estimate.
func (sh *askShell) run(ctx context.Context) {
	st := sh.session.Snapshot()
	if st.Query != "" && st.Estimate == nil && st.EstimateError == "" && !st.Executed {
		if !sh.estimate(ctx) {
			return
		}
	}
	st, err := sh.session.Execute(ctx, sh.app)
	if errors.Is(err, authoring.ErrExecuteBlocked) {
		if st.Query == "" {
			sh.r.Error("Nothing to run. Type a question to generate a query.")
		} else {
			sh.r.Error(st.ExecuteTooltip())
		}
		return
	}
	if sh.report(st, err) {
		return
	}
	if err := printResults(sh.r, st.Results, st.Insights); err != nil {
		sh.r.Error(err.Error())
	}
}

func (sh *askShell) unit(arg string) {
	u := authoring.ParseByteUnit(strings.ToLower(arg))
	st := sh.session.SetUnit(u)
	sh.r.Printf("Bytes processed shown in %s.\n", u)
	if st.Estimate != nil {
		sh.r.KeyValue("Processed ("+string(u)+")", st.BytesDisplay())
	}
}

func (sh *askShell) export(path string) {
	st := sh.session.Snapshot()
	if !st.Executed {
		sh.r.Error("No results to export. Run a query with .run first.")
		return
	}
	if path == "" {
		path = authoring.ResultsFileName
	}
	if err := writeResultsFile(path, st.Results); err != nil {
		sh.r.Error(fmt.Sprintf("Export failed: %v", err))
		return
	}
	sh.r.Success(fmt.Sprintf("Wrote %s rows to %s", output.Count(st.Results.Len()), path))
}

func writeResultsFile(path string, rs api.ResultSet) (err error) {
	f, err := os.Create(path) //nolint:gosec // path is typed by the user
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return authoring.WriteCSV(f, rs)
}

// report prints a failure and dismisses it. It returns true when there was
// one.
func (sh *askShell) report(st authoring.State, err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		sh.r.Error(failure(err, "").Error())
	case st.Failure != nil:
		sh.r.Error(st.Failure.Message)
		for _, s := range st.Failure.Suggestions {
			sh.r.Println("  - " + s)
		}
		sh.session.DismissFailure()
	default:
		sh.r.Error(err.Error())
	}
	return true
}

func printAskHelp(r *output.Renderer) {
	r.Println(`
Commands:
  <question>      Generate SQL for a question
  .show           Show the current query and estimate
  .sql <text>     Replace the current query text
  .estimate       Estimate the cost of the current query
  .run            Run the current query (estimates first if needed)
  .unit <u>       Show bytes processed in bytes, gb or tb
  .csv [file]     Export the last results as CSV
  .new            Clear the current query
  .quit / .exit   Exit

Tips:
  - A query runs once; type a new question to run again
  - Use arrow keys to navigate history`)
}
