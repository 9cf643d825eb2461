package main

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/humanistchoir/members/core/event"
	"github.com/humanistchoir/members/core/music"
	"github.com/humanistchoir/members/core/page"
)

type (
	importFile struct {
		EventTypes []string      `yaml:"event_types"`
		Songs      []importSong  `yaml:"songs"`
		Events     []importEvent `yaml:"events"`
		Pages      []importPage  `yaml:"pages"`
	}

	importSong struct {
		Name    string   `yaml:"name"`
		Slug    string   `yaml:"slug"`
		Current *bool    `yaml:"current"`
		Files   []string `yaml:"files"`
		Embed   string   `yaml:"embed"`
	}

	importEvent struct {
		event.NewEvent `yaml:",inline"`
		Type           string `yaml:"type"`
	}

	importPage struct {
		URL                  string `yaml:"url"`
		Title                string `yaml:"title"`
		Content              string `yaml:"content"`
		RegistrationRequired bool   `yaml:"registration_required"`
	}

	importSummary struct {
		EventTypes, Songs, Events, Occurrences, Pages int
	}
)

func (cli *commandLine) importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE.yaml",
		Short: "Load event types, songs, events and pages from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				_ = cmd.Help()
				return errHelp
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			sum, err := cli.importYAML(data)
			if err != nil {
				return err
			}
			cmd.Printf("imported %d event types, %d songs, %d events (%d occurrences), %d pages\n",
				sum.EventTypes, sum.Songs, sum.Events, sum.Occurrences, sum.Pages)
			return nil
		},
	}
}

// importYAML stops at the first invalid record; records stored before it are kept.
func (cli *commandLine) importYAML(data []byte) (importSummary, error) {
	var f importFile
	var sum importSummary
	if err := yaml.Unmarshal(data, &f); err != nil {
		return sum, errors.Wrap(err, "parsing yaml")
	}
	ctx := context.Background()
	evtSvc := cli.svcs.EventSvc

	for _, label := range f.EventTypes {
		if _, err := evtSvc.EnsureType(ctx, label); err != nil {
			return sum, errors.Wrapf(err, "event type %q", label)
		}
		sum.EventTypes++
	}

	for _, s := range f.Songs {
		ns := music.NewSong{Name: s.Name, Slug: s.Slug, Current: s.Current, Files: s.Files, Embed: s.Embed}
		if err := ns.Validate(ctx, cli.svcs.MusicSvc); err != nil {
			return sum, errors.Wrapf(err, "song %q", s.Name)
		}
		if _, err := cli.svcs.MusicSvc.Create(ctx, ns); err != nil {
			return sum, err
		}
		sum.Songs++
	}

	for _, e := range f.Events {
		et, err := evtSvc.EnsureType(ctx, e.Type)
		if err != nil {
			return sum, errors.Wrapf(err, "event %q: type %q", e.Title, e.Type)
		}
		ne := e.NewEvent
		ne.EventTypeID = et.ID
		_, occs, err := evtSvc.CreateEvent(ctx, ne)
		if err != nil {
			return sum, errors.Wrapf(err, "event %q", e.Title)
		}
		sum.Events++
		sum.Occurrences += len(occs)
	}

	for _, p := range f.Pages {
		np := page.NewFlatPage{URL: p.URL, Title: p.Title, Content: p.Content, RegistrationRequired: p.RegistrationRequired}
		if _, err := cli.svcs.PageSvc.Create(ctx, np); err != nil {
			return sum, errors.Wrapf(err, "page %q", p.URL)
		}
		sum.Pages++
	}
	return sum, nil
}
