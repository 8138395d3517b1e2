package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pitabwire/crmconsole/internal/access"
	"github.com/pitabwire/crmconsole/internal/apiclient"
	"github.com/pitabwire/crmconsole/internal/editform"
	"github.com/pitabwire/crmconsole/internal/export"
	"github.com/pitabwire/crmconsole/internal/kanban"
	"github.com/pitabwire/crmconsole/internal/listview"
	"github.com/pitabwire/crmconsole/internal/resources"
	"github.com/pitabwire/crmconsole/model"
)

var complaintsCmd = &cobra.Command{
	Use:     "complaints",
	Aliases: []string{"complaint"},
	Short:   "Manage complaints",
}

var complaintFilterFlags struct {
	view       string
	status     string
	priority   string
	assignedTo string
	search     string
	from       string
	to         string
	page       int
}

var complaintCreateFlags model.CreateComplaintPayload

var (
	setFlags   []string
	formatFlag string
	fileFlag   string
)

// moduleSession opens a session and checks the user may use moduleID.
func moduleSession(ctx context.Context, moduleID string) (*app, context.Context, error) {
	a, err := cliApp()
	if err != nil {
		return nil, nil, err
	}
	ctx, user, err := a.session(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := a.requireModule(user, moduleID); err != nil {
		return nil, nil, err
	}
	return a, ctx, nil
}

func (a *app) listOptions() []listview.Option {
	return []listview.Option{
		listview.FromConfig(a.cfg.Views),
		listview.WithMetrics(a.metrics),
		listview.WithLogger(a.logger),
	}
}

func currentComplaintFilters() model.ComplaintFilters {
	f := complaintFilterFlags
	return model.ComplaintFilters{
		Status:     model.ComplaintStatus(f.status),
		Priority:   model.ComplaintPriority(f.priority),
		AssignedTo: f.assignedTo,
		Search:     f.search,
		DateFrom:   f.from,
		DateTo:     f.to,
	}
}

var complaintsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List complaints as a table or a board",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := moduleSession(cmd.Context(), access.ModuleComplaints)
		if err != nil {
			return err
		}
		mode := listview.ViewMode(complaintFilterFlags.view)
		if !mode.Valid() {
			return fmt.Errorf("--view must be list or kanban")
		}

		c := listview.NewComplaints(a.services.Complaints, a.listOptions()...)
		c.SetViewMode(mode)
		c.SetFilters(currentComplaintFilters())
		c.SetPage(complaintFilterFlags.page)
		res := c.Refresh(ctx)
		if res.Status == listview.StatusFailure {
			return res.Err
		}
		return renderComplaints(cmd, c, res)
	},
}

func renderComplaints(cmd *cobra.Command, c *listview.Complaints, res listview.Result[model.Complaint]) error {
	out := cmd.OutOrStdout()
	kanbanMode := c.State().ViewMode == listview.ModeKanban
	if outputFlag == "json" {
		if kanbanMode {
			return writeJSON(out, kanban.ComplaintColumns(res.Items))
		}
		return writeJSON(out, model.ListResponse[model.Complaint]{Data: res.Items, Pagination: res.Pagination})
	}
	if kanbanMode {
		writeBoard(out, kanban.ComplaintColumns(res.Items), complaintCard)
		return nil
	}
	if len(res.Items) == 0 {
		fmt.Fprintln(out, "No complaints found")
		return nil
	}
	ids := make([]string, len(res.Items))
	for i, item := range res.Items {
		ids[i] = item.ID
	}
	if err := writeTable(out, withIDs(export.ComplaintTable(res.Items), ids)); err != nil {
		return err
	}
	writePagination(out, res.Pagination, c.ShowPagination())
	return nil
}

var complaintsShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one complaint with its comments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := moduleSession(cmd.Context(), access.ModuleComplaints)
		if err != nil {
			return err
		}
		c, err := a.services.Complaints.Get(ctx, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if outputFlag == "json" {
			return writeJSON(out, c)
		}
		fmt.Fprintf(out, "%s\n%s\n\n", c.Subject, c.Description)
		fmt.Fprintf(out, "Status:    %s\n", model.OptionLabel(model.ComplaintStatuses, string(c.Status)))
		fmt.Fprintf(out, "Priority:  %s\n", model.OptionLabel(model.ComplaintPriorities, string(c.Priority)))
		fmt.Fprintf(out, "User:      %s\n", c.User.DisplayName())
		fmt.Fprintf(out, "Assigned:  %s\n", c.AssignedTo.DisplayName())
		if c.ProductModel != "" {
			fmt.Fprintf(out, "Product:   %s %s\n", c.ProductModel, c.SerialNumber)
		}
		if c.InternalNotes != "" {
			fmt.Fprintf(out, "Notes:     %s\n", c.InternalNotes)
		}
		for _, cm := range c.Comments {
			fmt.Fprintf(out, "\n%s, %s:\n  %s\n", cm.Author.DisplayName(), cm.CreatedAt.Format(export.DateLayout), cm.Text)
		}
		return nil
	},
}

var complaintsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a complaint",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := moduleSession(cmd.Context(), access.ModuleComplaints)
		if err != nil {
			return err
		}
		c, err := a.services.Complaints.Create(ctx, complaintCreateFlags)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created complaint %s\n", c.ID)
		return nil
	},
}

var complaintsEditCmd = &cobra.Command{
	Use:   "edit ID --set field=value...",
	Short: "Edit a complaint, sending only the fields that changed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := moduleSession(cmd.Context(), access.ModuleComplaints)
		if err != nil {
			return err
		}
		svc := a.services.Complaints
		snapshot, err := svc.Get(ctx, args[0])
		if err != nil {
			return err
		}
		s := editform.NewComplaintSession(svc, a.metrics)
		return runEdit(ctx, cmd, s, args[0], editform.ComplaintValues(snapshot), editform.ComplaintFields)
	},
}

// runEdit seeds s with the snapshot, applies --set pairs and saves.
func runEdit(ctx context.Context, cmd *cobra.Command, s *editform.Session, id string, snapshot editform.Values, fields []editform.Field) error {
	s.Open(id)
	s.Observe(id, snapshot)
	for _, kv := range setFlags {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("--set %q: expected field=value", kv)
		}
		if !knownField(fields, name) {
			return fmt.Errorf("--set %q: %s cannot be edited", kv, name)
		}
		s.Set(name, value)
	}
	patch, err := s.Save(ctx)
	if err != nil {
		return err
	}
	if patch.Empty() {
		fmt.Fprintln(cmd.OutOrStdout(), "No changes")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated %s: %s\n", id, strings.Join(patch.Fields(), ", "))
	return nil
}

func knownField(fields []editform.Field, name string) bool {
	for _, f := range fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

var complaintsMoveCmd = &cobra.Command{
	Use:   "move ID STATUS",
	Short: "Move a complaint to another board column",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := moduleSession(cmd.Context(), access.ModuleComplaints)
		if err != nil {
			return err
		}
		c, err := a.services.Complaints.Get(ctx, args[0])
		if err != nil {
			return err
		}
		engine := kanban.NewComplaintEngine(a.services.Complaints, a.metrics, a.logger)
		outcome, err := engine.Drop(ctx, c.ID, string(c.Status), args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), moveMessage(outcome, args[0], args[1]))
		return nil
	},
}

func moveMessage(outcome kanban.Outcome, id, status string) string {
	if outcome == kanban.OutcomeNoop {
		return fmt.Sprintf("%s is already %s", id, status)
	}
	return fmt.Sprintf("Moved %s to %s", id, status)
}

var complaintsDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a complaint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := moduleSession(cmd.Context(), access.ModuleComplaints)
		if err != nil {
			return err
		}
		if err := a.services.Complaints.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

var complaintsCommentCmd = &cobra.Command{
	Use:   "comment ID TEXT",
	Short: "Add a comment to a complaint",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := moduleSession(cmd.Context(), access.ModuleComplaints)
		if err != nil {
			return err
		}
		if _, err := a.services.Complaints.AddComment(ctx, args[0], model.CommentPayload{Text: args[1]}); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Comment added")
		return nil
	},
}

var complaintsAttachCmd = &cobra.Command{
	Use:   "attach ID FILE...",
	Short: "Upload images to a complaint",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := moduleSession(cmd.Context(), access.ModuleComplaints)
		if err != nil {
			return err
		}
		files := make([]apiclient.File, 0, len(args)-1)
		for _, path := range args[1:] {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			files = append(files, apiclient.File{Name: filepath.Base(path), Reader: f})
		}
		c, err := a.services.Complaints.UploadImages(ctx, args[0], files)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s now has %d images\n", c.ID, len(c.Images))
		return nil
	},
}

var complaintsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the complaints matching the filters to CSV or XLSX",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := moduleSession(cmd.Context(), access.ModuleComplaints)
		if err != nil {
			return err
		}
		format := model.ExportFormat(formatFlag)
		if !format.Valid() {
			return fmt.Errorf("--format must be csv or xlsx")
		}
		resp, err := a.services.Complaints.List(ctx, resources.ComplaintQuery{
			ComplaintFilters: currentComplaintFilters(),
			Page:             resources.Page{Page: 1, Limit: a.cfg.Views.KanbanLimit},
		})
		if err != nil {
			return err
		}

		name := fileFlag
		if name == "" {
			name = export.DatedFilename("complaints", time.Now(), format)
		} else {
			name = export.Filename(name, format)
		}
		f, err := os.Create(name)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := export.Write(f, format, "Complaints", export.ComplaintTable(resp.Data)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d complaints to %s\n", len(resp.Data), name)
		return nil
	},
}

func bindComplaintFilters(c *cobra.Command) {
	f := c.Flags()
	f.StringVar(&complaintFilterFlags.status, "status", "", "filter by status")
	f.StringVar(&complaintFilterFlags.priority, "priority", "", "filter by priority")
	f.StringVar(&complaintFilterFlags.assignedTo, "assigned-to", "", "filter by assignee id")
	f.StringVar(&complaintFilterFlags.search, "search", "", "search text")
	f.StringVar(&complaintFilterFlags.from, "from", "", "created on or after (YYYY-MM-DD)")
	f.StringVar(&complaintFilterFlags.to, "to", "", "created on or before (YYYY-MM-DD)")
}

func init() {
	bindComplaintFilters(complaintsListCmd)
	complaintsListCmd.Flags().StringVar(&complaintFilterFlags.view, "view", "list", "list or kanban")
	complaintsListCmd.Flags().IntVar(&complaintFilterFlags.page, "page", 1, "page number")

	bindComplaintFilters(complaintsExportCmd)
	complaintsExportCmd.Flags().StringVar(&formatFlag, "format", "csv", "csv or xlsx")
	complaintsExportCmd.Flags().StringVar(&fileFlag, "file", "", "output file (default complaints-<date>.<format>)")

	cf := complaintsCreateCmd.Flags()
	cf.StringVar(&complaintCreateFlags.Subject, "subject", "", "subject")
	cf.StringVar(&complaintCreateFlags.Description, "description", "", "description")
	cf.StringVar((*string)(&complaintCreateFlags.Priority), "priority", "", "low, medium or high")
	cf.StringVar(&complaintCreateFlags.ProductModel, "product", "", "product model")
	cf.StringVar(&complaintCreateFlags.SerialNumber, "serial", "", "serial number")
	cf.StringVar(&complaintCreateFlags.OrderReference, "order", "", "order reference")
	cf.StringVar(&complaintCreateFlags.AssignedTo, "assign", "", "assignee id")

	complaintsEditCmd.Flags().StringArrayVar(&setFlags, "set", nil, "field=value to change (repeatable)")

	complaintsCmd.AddCommand(
		complaintsListCmd,
		complaintsShowCmd,
		complaintsCreateCmd,
		complaintsEditCmd,
		complaintsMoveCmd,
		complaintsDeleteCmd,
		complaintsCommentCmd,
		complaintsAttachCmd,
		complaintsExportCmd,
	)
}
