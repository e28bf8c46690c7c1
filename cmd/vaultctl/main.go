// vaultctl drives the family and document controllers from a terminal,
// against the same vault backend the web front-end uses.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/pflag"

	"familyvault/internal/api"
	"familyvault/internal/auth"
	"familyvault/internal/clock"
	"familyvault/internal/config"
	"familyvault/internal/documents"
	"familyvault/internal/dom"
	"familyvault/internal/family"
	"familyvault/internal/logging"
	"familyvault/internal/model"
	"familyvault/internal/notify"
	"familyvault/internal/repository"
	"familyvault/internal/repository/memory"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

const usage = `Usage: vaultctl [global flags] <command> [args]

Commands:
  invite EMAIL [--role ROLE]   invite someone into your family group
  pending                      list invitations addressed to you
  accept TOKEN                 accept an invitation
  decline TOKEN                decline an invitation (asks first unless --yes)
  dismiss TOKEN                hide an invitation locally and list the rest
  members                      list your family members
  docs [filters]               list documents

Global flags:
`

// env is what every command runs against.
type env struct {
	out      io.Writer
	page     *dom.Page
	alerts   *notify.Buffer
	family   *family.Controller
	docs     *documents.Controller
	terminal *terminal
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg := config.Load()

	var (
		baseURL = cfg.API.BaseURL
		token   = os.Getenv("VAULT_TOKEN")
		timeout = cfg.API.Timeout()
		yes     bool
		verbose bool
	)
	flags := pflag.NewFlagSet("vaultctl", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.SetInterspersed(false)
	flags.StringVar(&baseURL, "api", baseURL, "vault API base URL")
	flags.StringVar(&token, "token", token, "identity token (default $VAULT_TOKEN)")
	flags.DurationVar(&timeout, "timeout", timeout, "per-request timeout")
	flags.BoolVarP(&yes, "yes", "y", false, "answer yes to confirmation prompts")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log backend calls to stderr")
	flags.Usage = func() {
		fmt.Fprint(stderr, usage)
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return errors.New("missing command")
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	ctx = logging.WithLogger(ctx, logger)

	e, err := newEnv(ctx, cfg, baseURL, token, timeout, logger, stdin, stdout, yes)
	if err != nil {
		return err
	}

	cmd, rest := flags.Arg(0), flags.Args()[1:]
	switch cmd {
	case "invite":
		err = e.invite(ctx, rest)
	case "pending":
		err = e.pending(ctx)
	case "accept":
		err = e.accept(ctx, rest)
	case "decline":
		err = e.decline(ctx, rest)
	case "dismiss":
		err = e.dismiss(ctx, rest)
	case "members":
		err = e.members(ctx)
	case "docs":
		err = e.listDocuments(ctx, rest)
	default:
		flags.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
	e.flush()
	return err
}

func newEnv(ctx context.Context, cfg *config.AppConfig, baseURL, token string, timeout time.Duration,
	logger *slog.Logger, stdin io.Reader, stdout io.Writer, yes bool) (*env, error) {
	storage := memory.NewLocalStorage().Scope("vaultctl")
	var session auth.Session
	switch {
	case token != "":
		if err := storage.Set(ctx, repository.KeyToken, token); err != nil {
			return nil, err
		}
	case cfg.OAuth.Enabled():
		s, err := auth.NewOAuthSession(ctx, cfg.OAuth)
		if err != nil {
			return nil, err
		}
		session = s
	}
	client := api.New(baseURL, auth.NewTokenProvider(session, storage), api.WithTimeout(timeout))

	e := &env{
		out:      stdout,
		page:     dom.NewPage(),
		alerts:   notify.NewBuffer(),
		terminal: &terminal{in: bufio.NewReader(stdin), out: stdout, yes: yes},
	}
	e.family = family.NewController(family.Deps{
		API:      client,
		Document: e.page,
		Window:   e.terminal,
		Alerts:   e.alerts,
		Storage:  storage,
		Clock:    clock.Real(),
		Logger:   logger,
	})
	e.docs = documents.NewController(documents.Deps{
		API:      client,
		Document: e.page,
		Window:   e.terminal,
		Alerts:   e.alerts,
		Clock:    clock.Real(),
		Logger:   logger,
		PageSize: cfg.UI.PageSize,
	})
	e.docs.LoadCategories()
	return e, nil
}

// flush prints the alerts raised by the command.
func (e *env) flush() {
	for _, m := range e.alerts.Drain() {
		fmt.Fprintf(e.out, "[%s] %s\n", m.Level, m.Text)
	}
}

func oneArg(args []string, name string) (string, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "", fmt.Errorf("expected exactly one %s", name)
	}
	return args[0], nil
}

func (e *env) invite(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("invite", pflag.ContinueOnError)
	role := fs.String("role", model.RoleMember, "relationship of the invitee")
	if err := fs.Parse(args); err != nil {
		return err
	}
	email, err := oneArg(fs.Args(), "email")
	if err != nil {
		return err
	}
	return e.family.SendInvitation(ctx, email, *role)
}

func (e *env) pending(ctx context.Context) error {
	invs, err := e.family.LoadPending(ctx)
	if err != nil {
		return err
	}
	e.printInvitations(invs)
	return nil
}

func (e *env) printInvitations(invs []model.Invitation) {
	if len(invs) == 0 {
		fmt.Fprintln(e.out, "no pending invitations")
		return
	}
	for _, inv := range invs {
		fmt.Fprintf(e.out, "%s\t%s\tfrom %s", inv.ActionToken(), inv.GroupName(), inv.InvitedBy.String())
		if inv.Role != "" {
			fmt.Fprintf(e.out, "\tas %s", inv.Role)
		}
		if !inv.ExpiresAt.IsZero() {
			fmt.Fprintf(e.out, "\texpires %s", inv.ExpiresAt.Format("2006-01-02"))
		}
		fmt.Fprintln(e.out)
	}
}

func (e *env) accept(ctx context.Context, args []string) error {
	token, err := oneArg(args, "invitation token")
	if err != nil {
		return err
	}
	return e.family.Accept(ctx, token)
}

func (e *env) decline(ctx context.Context, args []string) error {
	token, err := oneArg(args, "invitation token")
	if err != nil {
		return err
	}
	declined, err := e.family.Decline(ctx, token)
	if err == nil && !declined {
		fmt.Fprintln(e.out, "not declined")
	}
	return err
}

// dismiss only hides the invitation in this view; the backend keeps it.
func (e *env) dismiss(ctx context.Context, args []string) error {
	token, err := oneArg(args, "invitation token")
	if err != nil {
		return err
	}
	invs, err := e.family.LoadPending(ctx)
	if err != nil {
		return err
	}
	if e.family.Dismiss(token) == 0 {
		return fmt.Errorf("no pending invitation with token %q", token)
	}
	kept := invs[:0]
	for _, inv := range invs {
		if inv.ActionToken() != token {
			kept = append(kept, inv)
		}
	}
	e.printInvitations(kept)
	return nil
}

func (e *env) members(ctx context.Context) error {
	members, err := e.family.LoadMembers(ctx)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		fmt.Fprintln(e.out, "no family members yet")
		return nil
	}
	for _, m := range members {
		fmt.Fprintf(e.out, "%s\t%s\t%s\n", m.DisplayName(), m.Role, m.Status)
	}
	return nil
}

func (e *env) listDocuments(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("docs", pflag.ContinueOnError)
	page := fs.Int("page", 1, "page number")
	stats := fs.Bool("stats", false, "also print dashboard counters")
	filters := documents.Filters{}
	for _, key := range []string{documents.FilterSearch, documents.FilterCategory, documents.FilterDepartment, documents.FilterStatus} {
		filters[key] = ""
		fs.Func(key, "filter by "+key, func(v string) error {
			filters[key] = v
			return nil
		})
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	// SetFilters loads page one; only reload when another page is wanted.
	if err := e.docs.SetFilters(ctx, filters); err != nil {
		return err
	}
	if *page > 1 {
		if err := e.docs.ChangePage(ctx, *page); err != nil {
			return err
		}
	}

	st := e.docs.State()
	for _, d := range st.Documents {
		fmt.Fprintf(e.out, "%s\t%s\t%s\t%s\n", d.ID, d.Title, e.docs.CategoryLabel(d.Category), documents.FormatFileSize(d.FileSize))
	}
	fmt.Fprintf(e.out, "page %d of %d (%d documents)\n", st.Pagination.Page, max(st.Pagination.Pages, 1), st.Pagination.Total)

	if *stats {
		s, err := e.docs.LoadStats(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "total %d, shared %d, recent %d, expiring %d\n", s.Total, s.Shared, s.Recent, s.Expiring)
	}
	return nil
}

// terminal is the dom.Window of the command line.
type terminal struct {
	in  *bufio.Reader
	out io.Writer
	yes bool
}

var _ dom.Window = (*terminal)(nil)

func (t *terminal) Confirm(message string) bool {
	if t.yes {
		return true
	}
	fmt.Fprintf(t.out, "%s [y/N] ", message)
	line, _ := t.in.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func (t *terminal) Open(url string)     { fmt.Fprintln(t.out, "open:", url) }
func (t *terminal) Redirect(url string) { fmt.Fprintln(t.out, "redirect:", url) }
