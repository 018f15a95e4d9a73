package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"zapretd/internal/domain"
)

type profileView struct {
	Name     string `json:"name" yaml:"name"`
	Category string `json:"category" yaml:"category"`
	Path     string `json:"path" yaml:"path"`
}

func newProfilesCmd(opts *cliOptions) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List profile files by category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := openSession(cmd, opts, sessionOptions{})
			if err != nil {
				return err
			}
			defer sess.Close()

			ctx := cmd.Context()
			var list []domain.Profile
			if category != "" {
				parsed, err := domain.ParseCategory(category)
				if err != nil {
					return domain.E(domain.CodeInvalidArgument, "profiles", fmt.Sprintf("unknown category %q", category), err)
				}
				list = sess.app.ListProfilesForCategory(ctx, parsed)
			} else {
				list = sess.app.ListAllProfiles(ctx)
			}

			views := make([]profileView, 0, len(list))
			for _, profile := range list {
				views = append(views, profileView{
					Name:     profile.DisplayName(),
					Category: profile.Category.FolderName(),
					Path:     profile.FilePath,
				})
			}
			out := cmd.OutOrStdout()
			if handled, err := writeStructured(out, opts.output, views); handled {
				return err
			}
			if len(views) == 0 {
				fmt.Fprintf(out, "no profiles under %s\n", sess.cfg.ProfilesDir)
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CATEGORY\tNAME\tPATH")
			for _, view := range views {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", view.Category, view.Name, view.Path)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only list one category (discord, youtube_twitch, gaming, universal)")
	return cmd
}

func newConflictsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "conflicts",
		Short: "Report running programs known to interfere with the worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := openSession(cmd, opts, sessionOptions{})
			if err != nil {
				return err
			}
			defer sess.Close()

			found := sess.app.DetectConflicts(cmd.Context())
			out := cmd.OutOrStdout()
			if handled, err := writeStructured(out, opts.output, map[string]any{"conflicts": found}); handled {
				return err
			}
			if len(found) == 0 {
				fmt.Fprintln(out, "no conflicting programs running")
				return nil
			}
			for _, name := range found {
				fmt.Fprintln(out, name)
			}
			return nil
		},
	}
}
