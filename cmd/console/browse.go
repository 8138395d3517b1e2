package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/pitabwire/crmconsole/internal/access"
	"github.com/pitabwire/crmconsole/internal/export"
	"github.com/pitabwire/crmconsole/internal/kanban"
	"github.com/pitabwire/crmconsole/internal/listview"
	"github.com/pitabwire/crmconsole/model"
)

var browseResource string

const browseHelp = `Type to search; results refresh after a short pause.
  :submit           apply the search now
  :page N           go to page N
  :view list|kanban switch layout
  :status [VALUE]   filter by status, or clear the filter
  :refresh          reload the current page
  :quit             leave`

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse complaints or leads interactively",
	Long: `Browse a resource interactively. Each line typed is treated as search
input and committed after the configured debounce; lines starting with ':'
are commands.

` + browseHelp,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		switch browseResource {
		case access.ModuleComplaints:
			a, ctx, err := moduleSession(ctx, access.ModuleComplaints)
			if err != nil {
				return err
			}
			b := &browser[model.ComplaintFilters, model.Complaint]{
				c: listview.NewComplaints(a.services.Complaints, a.listOptions()...),
				withStatus: func(f model.ComplaintFilters, s string) model.ComplaintFilters {
					f.Status = model.ComplaintStatus(s)
					return f
				},
				table:   export.ComplaintTable,
				id:      func(c model.Complaint) string { return c.ID },
				columns: kanban.ComplaintColumns,
				card:    complaintCard,
				out:     cmd.OutOrStdout(),
			}
			return b.run(ctx, cmd.InOrStdin())
		case access.ModuleLeads:
			a, ctx, err := moduleSession(ctx, access.ModuleLeads)
			if err != nil {
				return err
			}
			b := &browser[model.LeadFilters, model.Lead]{
				c: listview.NewLeads(a.services.Leads, a.listOptions()...),
				withStatus: func(f model.LeadFilters, s string) model.LeadFilters {
					f.Status = model.LeadStatus(s)
					return f
				},
				table:   export.LeadTable,
				id:      func(l model.Lead) string { return l.ID },
				columns: kanban.LeadColumns,
				card:    leadCard,
				out:     cmd.OutOrStdout(),
			}
			return b.run(ctx, cmd.InOrStdin())
		default:
			return fmt.Errorf("--resource must be %s or %s", access.ModuleComplaints, access.ModuleLeads)
		}
	},
}

// browser drives a list controller from line-oriented input.
type browser[F listview.Filters[F], T any] struct {
	c          *listview.Controller[F, T]
	withStatus func(F, string) F
	table      func([]T) export.Table
	id         func(T) string
	columns    func([]T) []kanban.Column[T]
	card       func(T) string

	mu  sync.Mutex
	out io.Writer
}

func (b *browser[F, T]) run(ctx context.Context, in io.Reader) error {
	b.c.OnResult(b.print)
	b.c.AutoRefresh(ctx)
	b.c.Refresh(ctx)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if done := b.handle(ctx, line); done {
				return nil
			}
		}
	}
}

// handle applies one input line and reports whether the loop should end.
func (b *browser[F, T]) handle(ctx context.Context, line string) bool {
	if !strings.HasPrefix(line, ":") {
		b.c.Type(line)
		return false
	}
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, ":"), " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "q", "quit":
		return true
	case "submit":
		b.c.Submit()
	case "page":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			b.printf("page must be a positive number\n")
			return false
		}
		b.c.SetPage(n)
	case "view":
		mode := listview.ViewMode(arg)
		if !mode.Valid() {
			b.printf("view must be list or kanban\n")
			return false
		}
		b.c.SetViewMode(mode)
	case "status":
		b.c.UpdateFilters(func(f F) F { return b.withStatus(f, arg) })
	case "refresh":
		go b.c.Refresh(ctx)
	case "help":
		b.printf("%s\n", browseHelp)
	default:
		b.printf("unknown command :%s (try :help)\n", name)
	}
	return false
}

func (b *browser[F, T]) printf(format string, args ...any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fmt.Fprintf(b.out, format, args...)
}

// print renders an applied result for the controller's current state.
func (b *browser[F, T]) print(res listview.Result[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.c.State()
	fmt.Fprintf(b.out, "\n-- %s", st.ViewMode)
	if term := st.Filters.SearchTerm(); term != "" {
		fmt.Fprintf(b.out, ", search %q", term)
	}
	fmt.Fprintln(b.out)

	if res.Status == listview.StatusFailure {
		fmt.Fprintf(b.out, "Error: %s\n", res.Message)
		return
	}
	if st.ViewMode == listview.ModeKanban {
		writeBoard(b.out, b.columns(res.Items), b.card)
		return
	}
	if len(res.Items) == 0 {
		fmt.Fprintln(b.out, "No results")
		return
	}
	ids := make([]string, len(res.Items))
	for i, item := range res.Items {
		ids[i] = b.id(item)
	}
	if err := writeTable(b.out, withIDs(b.table(res.Items), ids)); err != nil {
		return
	}
	writePagination(b.out, res.Pagination, b.c.ShowPagination())
}

func init() {
	browseCmd.Flags().StringVar(&browseResource, "resource", access.ModuleComplaints, "complaints or leads")
}
