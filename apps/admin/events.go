package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/humanistchoir/members/core/event"
)

func newTable(cli *commandLine, header ...interface{}) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(cli.out)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(header)
	return tw
}

func eventIDArg(cmd *cobra.Command, args []string) (int64, error) {
	if len(args) != 1 {
		_ = cmd.Help()
		return 0, errHelp
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid event id %q", args[0])
	}
	return id, nil
}

func (cli *commandLine) eventsCommand() *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.listEvents(search)
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "Only events whose title contains this")
	return cmd
}

func (cli *commandLine) listEvents(search string) error {
	events, err := cli.svcs.EventSvc.QueryEvents(context.Background(), &event.EventFilter{Search: search})
	if err != nil {
		return err
	}
	tw := newTable(cli, "ID", "Title", "Type", "Description")
	for _, e := range events {
		tw.AppendRow(table.Row{e.ID, e.Title, e.EventType.Label, e.Description})
	}
	tw.Render()
	return nil
}

func (cli *commandLine) scheduleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule EVENT_ID",
		Short: "Print the upcoming schedule of an event",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := eventIDArg(cmd, args)
			if err != nil {
				return err
			}
			return cli.printSchedule(id)
		},
	}
}

func (cli *commandLine) printSchedule(eventID int64) error {
	e, entries, err := cli.svcs.EventSvc.PrintableSchedule(context.Background(), eventID)
	if err != nil {
		return err
	}
	tw := newTable(cli, "Date", "Time", "Location")
	tw.SetTitle(e.Title)
	for _, entry := range entries {
		switch entry.Type {
		case event.EntryMonth:
			tw.AppendSeparator()
			tw.AppendRow(table.Row{entry.Month.Format("January 2006"), "", ""})
		case event.EntryOccurrence:
			o := entry.Occurrence
			when := o.Start.Format("15:04")
			if o.AllDay {
				when = "all day"
			} else if !o.End.IsZero() {
				when += "-" + o.End.Format("15:04")
			}
			where := o.Location
			if o.IsBreak {
				where = "No rehearsal"
			}
			tw.AppendRow(table.Row{o.Start.Format("Mon 2 Jan"), when, where})
		case event.EntryNoRehearsal:
			tw.AppendRow(table.Row{entry.DisplayDate.Format("Mon 2 Jan"), "", "No rehearsal"})
		}
	}
	tw.Render()
	return nil
}

func (cli *commandLine) exportAttendanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export-attendance EVENT_ID",
		Short: "Export an event's attendance register to a spreadsheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := eventIDArg(cmd, args)
			if err != nil {
				return err
			}
			url, err := cli.svcs.EventSvc.ExportAttendance(context.Background(), id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cli.out, url)
			return nil
		},
	}
}
