package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pitabwire/crmconsole/internal/access"
	"github.com/pitabwire/crmconsole/internal/apiclient"
	"github.com/pitabwire/crmconsole/internal/editform"
	"github.com/pitabwire/crmconsole/internal/export"
	"github.com/pitabwire/crmconsole/internal/kanban"
	"github.com/pitabwire/crmconsole/internal/listview"
	"github.com/pitabwire/crmconsole/model"
)

var leadsCmd = &cobra.Command{
	Use:     "leads",
	Aliases: []string{"lead"},
	Short:   "Manage leads",
}

var leadFilterFlags struct {
	view       string
	status     string
	assignedTo string
	search     string
	page       int
}

var leadCreateFlags model.CreateLeadPayload

func currentLeadFilters() model.LeadFilters {
	return model.LeadFilters{
		Status:     model.LeadStatus(leadFilterFlags.status),
		AssignedTo: leadFilterFlags.assignedTo,
		Search:     leadFilterFlags.search,
	}
}

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads as a table or a board",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := moduleSession(cmd.Context(), access.ModuleLeads)
		if err != nil {
			return err
		}
		mode := listview.ViewMode(leadFilterFlags.view)
		if !mode.Valid() {
			return fmt.Errorf("--view must be list or kanban")
		}

		c := listview.NewLeads(a.services.Leads, a.listOptions()...)
		c.SetViewMode(mode)
		c.SetFilters(currentLeadFilters())
		c.SetPage(leadFilterFlags.page)
		res := c.Refresh(ctx)
		if res.Status == listview.StatusFailure {
			return res.Err
		}
		return renderLeads(cmd, c, res)
	},
}

func renderLeads(cmd *cobra.Command, c *listview.Leads, res listview.Result[model.Lead]) error {
	out := cmd.OutOrStdout()
	kanbanMode := c.State().ViewMode == listview.ModeKanban
	if outputFlag == "json" {
		if kanbanMode {
			return writeJSON(out, kanban.LeadColumns(res.Items))
		}
		return writeJSON(out, model.ListResponse[model.Lead]{Data: res.Items, Pagination: res.Pagination})
	}
	if kanbanMode {
		writeBoard(out, kanban.LeadColumns(res.Items), leadCard)
		return nil
	}
	if len(res.Items) == 0 {
		fmt.Fprintln(out, "No leads found")
		return nil
	}
	ids := make([]string, len(res.Items))
	for i, item := range res.Items {
		ids[i] = item.ID
	}
	if err := writeTable(out, withIDs(export.LeadTable(res.Items), ids)); err != nil {
		return err
	}
	writePagination(out, res.Pagination, c.ShowPagination())
	return nil
}

var leadsShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := moduleSession(cmd.Context(), access.ModuleLeads)
		if err != nil {
			return err
		}
		l, err := a.services.Leads.Get(ctx, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if outputFlag == "json" {
			return writeJSON(out, l)
		}
		fmt.Fprintf(out, "%s\n\n", l.Name)
		fmt.Fprintf(out, "Phone:     %s\n", l.Phone)
		if l.Email != "" {
			fmt.Fprintf(out, "Email:     %s\n", l.Email)
		}
		if l.Company != "" {
			fmt.Fprintf(out, "Company:   %s\n", l.Company)
		}
		fmt.Fprintf(out, "Status:    %s\n", model.OptionLabel(model.LeadStatuses, string(l.Status)))
		fmt.Fprintf(out, "Source:    %s\n", model.OptionLabel(model.LeadSources, string(l.Source)))
		fmt.Fprintf(out, "Assigned:  %s\n", l.AssignedTo.DisplayName())
		if l.Notes != "" {
			fmt.Fprintf(out, "Notes:     %s\n", l.Notes)
		}
		return nil
	},
}

var leadsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a lead",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := moduleSession(cmd.Context(), access.ModuleLeads)
		if err != nil {
			return err
		}
		l, err := a.services.Leads.Create(ctx, leadCreateFlags)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created lead %s\n", l.ID)
		return nil
	},
}

var leadsEditCmd = &cobra.Command{
	Use:   "edit ID --set field=value...",
	Short: "Edit a lead, sending only the fields that changed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := moduleSession(cmd.Context(), access.ModuleLeads)
		if err != nil {
			return err
		}
		svc := a.services.Leads
		snapshot, err := svc.Get(ctx, args[0])
		if err != nil {
			return err
		}
		s := editform.NewLeadSession(svc, a.metrics)
		return runEdit(ctx, cmd, s, args[0], editform.LeadValues(snapshot), editform.LeadFields)
	},
}

var leadsMoveCmd = &cobra.Command{
	Use:   "move ID STATUS",
	Short: "Move a lead to another board column",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := moduleSession(cmd.Context(), access.ModuleLeads)
		if err != nil {
			return err
		}
		l, err := a.services.Leads.Get(ctx, args[0])
		if err != nil {
			return err
		}
		engine := kanban.NewLeadEngine(a.services.Leads, a.metrics, a.logger)
		outcome, err := engine.Drop(ctx, l.ID, string(l.Status), args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), moveMessage(outcome, args[0], args[1]))
		return nil
	},
}

var leadsDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := moduleSession(cmd.Context(), access.ModuleLeads)
		if err != nil {
			return err
		}
		if err := a.services.Leads.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

var leadsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Download the leads matching the filters as CSV or XLSX",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := moduleSession(cmd.Context(), access.ModuleLeads)
		if err != nil {
			return err
		}
		format := model.ExportFormat(formatFlag)
		blob, err := a.services.Leads.Export(ctx, format, currentLeadFilters())
		if err != nil {
			return err
		}
		name := blob.Filename
		if fileFlag != "" {
			name = export.Filename(fileFlag, format)
		}
		if err := os.WriteFile(name, blob.Body, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes)\n", name, len(blob.Body))
		return nil
	},
}

var leadsImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Bulk upload leads from a CSV or XLSX file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := moduleSession(cmd.Context(), access.ModuleLeads)
		if err != nil {
			return err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		res, err := a.services.Leads.BulkUpload(ctx, apiclient.File{Name: filepath.Base(args[0]), Reader: f})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if outputFlag == "json" {
			return writeJSON(out, res)
		}
		fmt.Fprintf(out, "Created %d leads, %d failed\n", res.Created, res.Failed)
		for _, e := range res.Errors {
			fmt.Fprintf(out, "  row %d: %s\n", e.Row, e.Message)
		}
		return nil
	},
}

func bindLeadFilters(c *cobra.Command) {
	f := c.Flags()
	f.StringVar(&leadFilterFlags.status, "status", "", "filter by status")
	f.StringVar(&leadFilterFlags.assignedTo, "assigned-to", "", "filter by assignee id")
	f.StringVar(&leadFilterFlags.search, "search", "", "search text")
}

func init() {
	bindLeadFilters(leadsListCmd)
	leadsListCmd.Flags().StringVar(&leadFilterFlags.view, "view", "list", "list or kanban")
	leadsListCmd.Flags().IntVar(&leadFilterFlags.page, "page", 1, "page number")

	bindLeadFilters(leadsExportCmd)
	leadsExportCmd.Flags().StringVar(&formatFlag, "format", "csv", "csv or xlsx")
	leadsExportCmd.Flags().StringVar(&fileFlag, "file", "", "output file (default: the name sent by the server)")

	lf := leadsCreateCmd.Flags()
	lf.StringVar(&leadCreateFlags.Name, "name", "", "lead name")
	lf.StringVar(&leadCreateFlags.Phone, "phone", "", "phone number")
	lf.StringVar(&leadCreateFlags.Email, "email", "", "email address")
	lf.StringVar(&leadCreateFlags.Company, "company", "", "company")
	lf.StringVar((*string)(&leadCreateFlags.Status), "status", "", "new, contacted, proposal or closed")
	lf.StringVar((*string)(&leadCreateFlags.Source), "source", "", "website, referral, cold_call, campaign or other")
	lf.StringVar(&leadCreateFlags.Notes, "notes", "", "notes")
	lf.StringVar(&leadCreateFlags.AssignedTo, "assign", "", "assignee id")

	leadsEditCmd.Flags().StringArrayVar(&setFlags, "set", nil, "field=value to change (repeatable)")

	leadsCmd.AddCommand(
		leadsListCmd,
		leadsShowCmd,
		leadsCreateCmd,
		leadsEditCmd,
		leadsMoveCmd,
		leadsDeleteCmd,
		leadsExportCmd,
		leadsImportCmd,
	)
}
