package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/lotas/tradersecho/internal/api"
	"github.com/lotas/tradersecho/internal/applog"
	"github.com/lotas/tradersecho/internal/channel"
	"github.com/lotas/tradersecho/internal/config"
	"github.com/lotas/tradersecho/internal/dashboard"
	"github.com/lotas/tradersecho/internal/event"
	"github.com/lotas/tradersecho/internal/export"
	"github.com/lotas/tradersecho/internal/reconcile"
	"github.com/lotas/tradersecho/internal/session"
	"github.com/lotas/tradersecho/internal/snapshot"
	"github.com/lotas/tradersecho/internal/storage"
	"github.com/lotas/tradersecho/internal/tokenstore"
	"github.com/lotas/tradersecho/internal/tui"
	"github.com/lotas/tradersecho/internal/types"
	"github.com/lotas/tradersecho/internal/view"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "login":
			runAuth(os.Args[2:], false)
			return
		case "signup":
			runAuth(os.Args[2:], true)
			return
		case "logout":
			runLogout(os.Args[2:])
			return
		case "whoami":
			runWhoami(os.Args[2:])
			return
		case "daily":
			runDaily(os.Args[2:])
			return
		case "stream":
			runStream(os.Args[2:])
			return
		case "upgrade":
			runUpgrade(os.Args[2:])
			return
		case "snapshot":
			runSnapshot(os.Args[2:])
			return
		case "health":
			runHealth(os.Args[2:])
			return
		case "help", "--help", "-h":
			printHelp()
			return
		}
	}

	fs := flag.NewFlagSet("tradersecho", flag.ExitOnError)
	cf := bindCommon(fs)
	fl := bindFilter(fs)
	fs.Parse(os.Args[1:])

	a := mustSetup(cf)
	defer a.close()
	fl.apply(a.cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	model := tui.NewModel(ctx, a.dashboard(), tui.Options{DB: a.db, MeInterval: a.cfg.MeInterval})
	p := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Print(`tradersecho — social interest dashboard for stock tickers

Usage:
  tradersecho                                          Start the TUI (default)
    --tickers <list>       Initial ticker filter, e.g. AAPL,TSLA
    --limit <n>            Rows per page (default: 10, max 100)
    --sort <key>           interest_score, mentions, zscore, pos, neg, neu, ticker, day

  tradersecho login [--user name]                      Log in and store the credential
  tradersecho signup [--user name]                     Create an account and log in
    --password-stdin       Read the password from stdin instead of prompting
  tradersecho logout                                   Forget the stored credential
  tradersecho whoami                                   Show the resolved identity

  tradersecho daily                                    Print the free daily rollup
    --tickers, --limit, --sort as above
    --from <date> --to <date> --page <n>
    --json                 Output JSON
    --md                   Output markdown
    --out <file>           Output file path (default: stdout)
    --save [--label text]  Also save the table as a snapshot

  tradersecho stream [--count n] [--save]              Follow the live pro table
  tradersecho upgrade [--copy]                         Start a Pro checkout

  tradersecho snapshot save [--mode free|pro] [--label "text"]  Save the current table (only if changed)
  tradersecho snapshot list [--mode free|pro]          List saved snapshots
  tradersecho snapshot diff [rev] [rev2] [--mode X]    Compare snapshots or the current table
  tradersecho snapshot delete <rev> [--mode X] [--yes] Delete a snapshot

  tradersecho health                                   Check the backend

Every command accepts:
    --config <file>        Config file (default: ~/.config/tradersecho/config.yaml)
    --api <url>            API base URL (env: TRADERSECHO_API_BASE)
    --data-dir <dir>       Local state directory (env: TRADERSECHO_DATA_DIR)
`)
}

// --- Setup ---

type commonFlags struct {
	config  *string
	api     *string
	dataDir *string
}

func bindCommon(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		config:  fs.String("config", config.DefaultPath(), "Config file path"),
		api:     fs.String("api", "", "API base URL"),
		dataDir: fs.String("data-dir", "", "Local state directory"),
	}
}

type filterFlags struct {
	tickers *string
	limit   *int
	sort    *string
}

func bindFilter(fs *flag.FlagSet) *filterFlags {
	return &filterFlags{
		tickers: fs.String("tickers", "", "Comma separated tickers"),
		limit:   fs.Int("limit", 0, "Rows per page"),
		sort:    fs.String("sort", "", "Sort key"),
	}
}

func (f *filterFlags) apply(cfg *config.Config) {
	if *f.tickers != "" {
		cfg.Tickers = types.ParseTickers(*f.tickers)
	}
	if *f.limit > 0 {
		cfg.Limit = *f.limit
	}
	if *f.sort != "" {
		cfg.Sort = *f.sort
	}
}

// app holds what every command needs.
type app struct {
	cfg    *config.Config
	db     *sql.DB // nil when the database could not be opened
	store  *tokenstore.Durable
	client *api.Client
}

func setup(cf *commonFlags) (*app, error) {
	cfg, err := config.Load(*cf.config)
	if err != nil {
		return nil, err
	}
	if *cf.api != "" {
		cfg.APIBase = strings.TrimRight(*cf.api, "/")
	}
	if *cf.dataDir != "" {
		cfg.DataDir = *cf.dataDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := applog.Init(cfg.LogDir()); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}

	a := &app{cfg: cfg, client: api.New(cfg.APIBase, nil)}
	db, err := storage.OpenDB(cfg.DBPath())
	if err != nil {
		applog.Error("storage.open", err, "path", cfg.DBPath())
		fmt.Fprintf(os.Stderr, "Warning: %v; the login will not survive a restart\n", err)
	} else {
		a.db = db
	}
	a.store = tokenstore.NewDurable(a.db)
	return a, nil
}

func mustSetup(cf *commonFlags) *app {
	a, err := setup(cf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return a
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
	applog.Close()
}

func (a *app) requireDB() *sql.DB {
	if a.db == nil {
		fmt.Fprintln(os.Stderr, "Error: local database unavailable")
		os.Exit(1)
	}
	return a.db
}

func (a *app) session() *session.Controller {
	sess := session.New(a.store, a.client)
	sess.SetRequestTimeout(a.cfg.RequestTimeout)
	return sess
}

func (a *app) dashboard() *dashboard.Dashboard {
	free := channel.NewFree(a.client, a.cfg.Filter())
	pro := channel.NewPro(a.client, channel.StreamDialer(a.cfg.APIBase), channel.ProOptions{
		Window: a.cfg.Window,
		Grace:  a.cfg.BaselineGrace,
		Retry: channel.RetryPolicy{
			Initial:     a.cfg.Retry.Initial,
			Max:         a.cfg.Retry.Max,
			MaxAttempts: a.cfg.Retry.MaxAttempts,
		},
	})
	return dashboard.New(a.session(), free, pro)
}

func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// resolved reports whether identity resolution has finished, one way or the
// other.
func resolved(m dashboard.Model) bool {
	return m.Selection.Screen != view.Loading
}

// --- Auth ---

func runAuth(args []string, signup bool) {
	name := "login"
	if signup {
		name = "signup"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	cf := bindCommon(fs)
	user := fs.String("user", "", "Username")
	passStdin := fs.Bool("password-stdin", false, "Read the password from stdin")
	fs.Parse(args)

	a := mustSetup(cf)
	defer a.close()

	in := bufio.NewReader(os.Stdin)
	username := *user
	if username == "" {
		username = prompt(in, "Username: ")
	}
	var password string
	if *passStdin {
		b, err := io.ReadAll(in)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading password: %v\n", err)
			os.Exit(1)
		}
		password = strings.TrimRight(string(b), "\r\n")
	} else {
		password = prompt(in, "Password: ")
	}

	ctx, cancel := interruptContext()
	defer cancel()

	d := a.dashboard()
	if d.Session().State() != session.Anonymous {
		fmt.Fprintln(os.Stderr, "Already logged in. Run `tradersecho logout` first.")
		os.Exit(1)
	}
	var cmds []event.Cmd
	if signup {
		cmds = d.Signup(username, password)
	} else {
		cmds = d.Login(username, password)
	}
	if len(cmds) == 0 {
		fmt.Fprintf(os.Stderr, "Error: %v\n", d.Snapshot().AuthErr)
		os.Exit(1)
	}

	var last dashboard.Model
	err := dashboard.Run(ctx, d, cmds, func(m dashboard.Model) bool {
		last = m
		if m.AuthErr != nil {
			return false
		}
		return m.State == session.Anonymous || !resolved(m)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if last.AuthErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", last.AuthErr)
		os.Exit(1)
	}
	if a.store.Degraded() {
		fmt.Fprintln(os.Stderr, "Warning: credential kept in memory only; it will be lost on exit")
	}
	printIdentity(last)
}

func prompt(in *bufio.Reader, label string) string {
	fmt.Fprint(os.Stderr, label)
	line, _ := in.ReadString('\n')
	return strings.TrimSpace(line)
}

func runLogout(args []string) {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	cf := bindCommon(fs)
	fs.Parse(args)

	a := mustSetup(cf)
	defer a.close()

	sess := a.session()
	if sess.State() == session.Anonymous {
		fmt.Println("Not logged in.")
		return
	}
	sess.Logout()
	fmt.Println("Logged out.")
}

func runWhoami(args []string) {
	fs := flag.NewFlagSet("whoami", flag.ExitOnError)
	cf := bindCommon(fs)
	fs.Parse(args)

	a := mustSetup(cf)
	defer a.close()

	d := a.dashboard()
	if d.Session().State() == session.Anonymous {
		fmt.Println("Not logged in.")
		return
	}

	ctx, cancel := interruptContext()
	defer cancel()

	var last dashboard.Model
	err := dashboard.Run(ctx, d, d.Start(), func(m dashboard.Model) bool {
		last = m
		return !resolved(m)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	printIdentity(last)

	if claims, ok := session.ParseClaims(d.Session().Credential()); ok && !claims.Expires.IsZero() {
		if claims.Expired(time.Now()) {
			fmt.Printf("Credential expired %s\n", humanize.Time(claims.Expires))
		} else {
			fmt.Printf("Credential expires %s\n", humanize.Time(claims.Expires))
		}
	}
}

func printIdentity(m dashboard.Model) {
	who := m.Subject
	if who == "" {
		who = "(unknown user)"
	}
	switch {
	case m.State == session.Pending && m.ResolveErr != nil:
		fmt.Printf("Logged in as %s, tier unknown (%v); treated as free\n", who, m.ResolveErr)
	default:
		fmt.Printf("Logged in as %s (%s)\n", who, m.Tier)
	}
}

// --- Data ---

func runDaily(args []string) {
	fs := flag.NewFlagSet("daily", flag.ExitOnError)
	cf := bindCommon(fs)
	fl := bindFilter(fs)
	from := fs.String("from", "", "First date (YYYY-MM-DD)")
	to := fs.String("to", "", "Last date (YYYY-MM-DD)")
	page := fs.Int("page", 0, "Page number")
	jsonFlag := fs.Bool("json", false, "Output JSON")
	mdFlag := fs.Bool("md", false, "Output markdown")
	outFile := fs.String("out", "", "Output file path (default: stdout)")
	save := fs.Bool("save", false, "Save the table as a snapshot")
	label := fs.String("label", "", "Snapshot label")
	fs.Parse(args)

	a := mustSetup(cf)
	defer a.close()
	fl.apply(a.cfg)

	filter := a.cfg.Filter()
	filter.DateFrom, filter.DateTo, filter.Page = *from, *to, *page

	ctx, cancel := interruptContext()
	defer cancel()

	// The free list works with or without a credential.
	free := channel.NewFree(a.client, filter)
	msg := free.Activate(a.store.Get())(ctx).(channel.FreeLoaded)
	rows, ok := free.Handle(msg)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: %v\n", free.Err())
		os.Exit(1)
	}
	table := reconcile.Apply(reconcile.Empty(), rows)

	if *save {
		saveTable(a.requireDB(), "free", table, *label)
	}
	writeTable("free", table, *jsonFlag, *mdFlag, *outFile)
}

func writeTable(mode string, table reconcile.Table, asJSON, asMarkdown bool, outFile string) {
	var output string
	var err error
	switch {
	case asJSON:
		output, err = export.JSON(mode, table.Rows(), time.Now())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating JSON: %v\n", err)
			os.Exit(1)
		}
	case asMarkdown:
		output = export.Markdown(mode, table.Rows(), time.Now())
	default:
		output = formatRows(table.Rows())
	}

	if outFile != "" {
		if err := os.WriteFile(outFile, []byte(output), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
			os.Exit(1)
		}
	} else {
		fmt.Print(output)
	}
}

func formatRows(rows []types.Row) string {
	if len(rows) == 0 {
		return "No rows.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-6s %-10s %8s %9s %9s %7s\n", "TICKER", "DATE", "INTEREST", "MENTIONS", "SENTIMENT", "VS AVG")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-6s %-10s %8.2f %9s %+9.2f %+6.0f%%\n",
			r.Ticker, r.Date, r.InterestScore, humanize.Comma(int64(r.Mentions)), r.Sentiment, r.ChangeVsAvg*100)
	}
	return b.String()
}

func saveTable(db *sql.DB, mode string, table reconcile.Table, label string) {
	rev, created, changes, err := snapshot.Create(db, mode, table, label)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating snapshot: %v\n", err)
		os.Exit(1)
	}
	if !created {
		fmt.Fprintf(os.Stderr, "No changes since %s snapshot #%d\n", mode, rev)
		return
	}
	fmt.Fprintf(os.Stderr, "Snapshot #%d created: %d rows (%s)\n", rev, table.Len(), mode)
	if changes != nil && !changes.Empty() {
		fmt.Fprint(os.Stderr, reconcile.Format(*changes))
	}
}

func runStream(args []string) {
	fs := flag.NewFlagSet("stream", flag.ExitOnError)
	cf := bindCommon(fs)
	count := fs.Int("count", 0, "Stop after this many updates (0 = until interrupted)")
	save := fs.Bool("save", false, "Save the last table as a snapshot on exit")
	label := fs.String("label", "", "Snapshot label")
	fs.Parse(args)

	a := mustSetup(cf)
	defer a.close()

	d := a.dashboard()
	if d.Session().State() == session.Anonymous {
		fmt.Fprintln(os.Stderr, "Error: not logged in")
		os.Exit(1)
	}

	ctx, cancel := interruptContext()
	defer cancel()

	var (
		updates  int
		lastSeen time.Time
		status   channel.Status
		denied   bool
		offline  bool
	)
	err := dashboard.Run(ctx, d, d.Start(), func(m dashboard.Model) bool {
		if !resolved(m) {
			return true
		}
		if m.Selection.Screen != view.ProLive {
			denied = true
			return false
		}
		if m.ProStatus != status {
			status = m.ProStatus
			fmt.Fprintf(os.Stderr, "[%s] %s", time.Now().Format("15:04:05"), status)
			if m.ProErr != nil && status != channel.Live {
				fmt.Fprintf(os.Stderr, ": %v", m.ProErr)
			}
			fmt.Fprintln(os.Stderr)
		}
		if status == channel.Offline {
			offline = true
			return false
		}
		if !m.UpdatedAt.IsZero() && m.UpdatedAt != lastSeen {
			lastSeen = m.UpdatedAt
			updates++
			fmt.Printf("\n%s · %d rows\n", lastSeen.Format("15:04:05"), len(m.Rows))
			fmt.Print(formatRows(m.Rows))
		}
		return *count == 0 || updates < *count
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if denied {
		fmt.Fprintln(os.Stderr, "Error: live data requires Pro. Run `tradersecho upgrade`.")
		os.Exit(1)
	}
	if *save && d.Table().Len() > 0 {
		saveTable(a.requireDB(), "pro", d.Table(), *label)
	}
	if offline {
		fmt.Fprintf(os.Stderr, "Error: gave up after %d reconnect attempts\n", a.cfg.Retry.MaxAttempts)
		os.Exit(1)
	}
}

func runUpgrade(args []string) {
	fs := flag.NewFlagSet("upgrade", flag.ExitOnError)
	cf := bindCommon(fs)
	copyURL := fs.Bool("copy", false, "Copy the checkout link to the clipboard")
	fs.Parse(args)

	a := mustSetup(cf)
	defer a.close()

	token := a.store.Get()
	if token == "" {
		fmt.Fprintln(os.Stderr, "Error: not logged in")
		os.Exit(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.RequestTimeout)
	defer cancel()

	url, err := a.client.Checkout(ctx, token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(url)
	if *copyURL {
		if err := clipboard.WriteAll(url); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: copy failed: %v\n", err)
		} else {
			fmt.Fprintln(os.Stderr, "Copied to clipboard.")
		}
	}
}

func runHealth(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	cf := bindCommon(fs)
	fs.Parse(args)

	a := mustSetup(cf)
	defer a.close()

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.RequestTimeout)
	defer cancel()

	h, err := a.client.Health(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !h.OK {
		fmt.Fprintf(os.Stderr, "%s is unhealthy\n", a.cfg.APIBase)
		os.Exit(1)
	}
	fmt.Printf("%s ok (server time %s)\n", a.cfg.APIBase, h.Time)
}

// --- Snapshots ---

// reorderArgs moves flag arguments before positional arguments so that
// flag.Parse handles them correctly (it stops at the first non-flag arg).
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if strings.HasPrefix(args[i], "-") {
			flags = append(flags, args[i])
			if !strings.Contains(args[i], "=") && !isBoolFlag(args[i]) && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				flags = append(flags, args[i+1])
				i++
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}

func isBoolFlag(arg string) bool {
	switch strings.TrimLeft(arg, "-") {
	case "yes":
		return true
	}
	return false
}

func runSnapshot(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: tradersecho snapshot save|list|diff|delete [flags]")
		os.Exit(1)
	}

	subcmd := args[0]
	subArgs := args[1:]

	switch subcmd {
	case "save":
		runSnapshotSave(subArgs)
	case "list":
		runSnapshotList(subArgs)
	case "diff":
		runSnapshotDiff(subArgs)
	case "delete":
		runSnapshotDelete(subArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown snapshot command %q. Use save, list, diff, or delete.\n", subcmd)
		os.Exit(1)
	}
}

func parseMode(s string) string {
	switch s {
	case "free", "pro":
		return s
	}
	fmt.Fprintf(os.Stderr, "Invalid mode %q: use free or pro\n", s)
	os.Exit(1)
	return ""
}

// fetchTable loads the current table for mode with one request.
func fetchTable(a *app, mode string) (reconcile.Table, error) {
	ctx, cancel := interruptContext()
	defer cancel()

	var rows []types.Row
	var err error
	if mode == "pro" {
		token := a.store.Get()
		if token == "" {
			return reconcile.Table{}, errors.New("not logged in")
		}
		rows, err = a.client.ProSnapshot(ctx, token, a.cfg.Window)
	} else {
		rows, err = a.client.FreeDaily(ctx, a.store.Get(), a.cfg.Filter())
	}
	if err != nil {
		return reconcile.Table{}, err
	}
	return reconcile.Apply(reconcile.Empty(), rows), nil
}

func runSnapshotSave(args []string) {
	fs := flag.NewFlagSet("snapshot save", flag.ExitOnError)
	cf := bindCommon(fs)
	fl := bindFilter(fs)
	mode := fs.String("mode", "free", "Table to save: free or pro")
	label := fs.String("label", "", "Optional label for the snapshot")
	fs.Parse(args)

	a := mustSetup(cf)
	defer a.close()
	fl.apply(a.cfg)

	table, err := fetchTable(a, parseMode(*mode))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	saveTable(a.requireDB(), *mode, table, *label)
}

func runSnapshotList(args []string) {
	fs := flag.NewFlagSet("snapshot list", flag.ExitOnError)
	cf := bindCommon(fs)
	mode := fs.String("mode", "", "Only list free or pro snapshots")
	fs.Parse(args)

	a := mustSetup(cf)
	defer a.close()
	if *mode != "" {
		parseMode(*mode)
	}

	snaps, err := storage.ListSnapshots(a.requireDB(), *mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing snapshots: %v\n", err)
		os.Exit(1)
	}

	if len(snaps) == 0 {
		fmt.Println("No snapshots found.")
		return
	}

	fmt.Printf("%-5s %5s  %-5s %-20s  %s\n", "REV", "ROWS", "MODE", "LABEL", "CREATED")
	for _, s := range snaps {
		fmt.Printf("%5d %5d  %-5s %-20s  %s\n",
			s.Rev,
			s.RowCount,
			s.Mode,
			s.Label,
			s.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
}

func runSnapshotDiff(args []string) {
	fs := flag.NewFlagSet("snapshot diff", flag.ExitOnError)
	cf := bindCommon(fs)
	mode := fs.String("mode", "free", "free or pro")
	fs.Parse(reorderArgs(args))

	a := mustSetup(cf)
	defer a.close()
	m := parseMode(*mode)
	db := a.requireDB()

	revs := make([]int, fs.NArg())
	for i := range revs {
		rev, err := strconv.Atoi(fs.Arg(i))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid revision number: %s\n", fs.Arg(i))
			os.Exit(1)
		}
		revs[i] = rev
	}

	var result *snapshot.DiffResult
	var err error
	switch len(revs) {
	case 0, 1:
		// Diff latest, or a specific rev, against the current table.
		rev := 0
		if len(revs) == 1 {
			rev = revs[0]
		}
		var current reconcile.Table
		current, err = fetchTable(a, m)
		if err == nil {
			result, err = snapshot.DiffAgainstCurrent(db, m, rev, current)
		}
	case 2:
		result, err = snapshot.Diff(db, m, revs[0], revs[1])
	default:
		fmt.Fprintln(os.Stderr, "Usage: tradersecho snapshot diff [rev] [rev2] [--mode free|pro]")
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(snapshot.FormatDiff(result))
}

func runSnapshotDelete(args []string) {
	fs := flag.NewFlagSet("snapshot delete", flag.ExitOnError)
	cf := bindCommon(fs)
	mode := fs.String("mode", "free", "free or pro")
	yes := fs.Bool("yes", false, "Skip confirmation prompt")
	fs.Parse(reorderArgs(args))

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: tradersecho snapshot delete <rev> [--mode free|pro] [--yes]")
		os.Exit(1)
	}

	rev, err := strconv.Atoi(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid revision number: %s\n", fs.Arg(0))
		os.Exit(1)
	}

	a := mustSetup(cf)
	defer a.close()
	m := parseMode(*mode)

	if !*yes {
		fmt.Printf("Delete %s snapshot #%d? [y/N] ", m, rev)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		answer = strings.TrimSpace(strings.ToLower(answer))
		if answer != "y" && answer != "yes" {
			fmt.Println("Aborted.")
			return
		}
	}

	if err := storage.DeleteSnapshot(a.requireDB(), m, rev); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Deleted %s snapshot #%d\n", m, rev)
}
