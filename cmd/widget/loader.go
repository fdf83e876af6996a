package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/companin/widget/internal/loader"
	"github.com/companin/widget/internal/model"
)

func newLoaderCommand(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loader",
		Short: "Render loader scripts and embed snippets",
	}
	cmd.AddCommand(newLoaderScriptCommand(load))
	cmd.AddCommand(newLoaderEmbedCommand(load))
	return cmd
}

func newLoaderScriptCommand(load configLoader) *cobra.Command {
	var variant, baseURL string

	cmd := &cobra.Command{
		Use:   "script",
		Short: "Print a loader script",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			v, err := model.ParseVariant(variant)
			if err != nil {
				return err
			}

			sc := scriptConfig(cfg)
			if baseURL != "" {
				sc.BaseURL = baseURL
			}
			script, err := loader.Render(v, sc)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(script)
			return err
		},
	}
	cmd.Flags().StringVar(&variant, "variant", "session", "loader variant (session or docs)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "widget base URL (defaults to PUBLIC_BASE_URL)")
	return cmd
}

func newLoaderEmbedCommand(load configLoader) *cobra.Command {
	var variant string
	attrs := map[string]*string{}
	flags := []struct{ name, attr, usage string }{
		{"client-id", "data-client-id", "client id"},
		{"assistant-id", "data-assistant-id", "assistant id"},
		{"config-id", "data-config-id", "widget config id"},
		{"locale", "data-locale", "widget locale"},
		{"start-open", "data-start-open", "\"true\" to open the widget on load"},
		{"suggestions", "data-suggestions", "docs suggestions, \"|\" separated"},
	}

	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Print the script tag and iframe URL for a widget",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			v, err := model.ParseVariant(variant)
			if err != nil {
				return err
			}
			script, err := loader.ScriptName(v)
			if err != nil {
				return err
			}

			data := make(map[string]string, len(attrs))
			for attr, value := range attrs {
				if *value != "" {
					data[attr] = *value
				}
			}
			a := loader.FromDataAttributes(data)
			if err := a.Validate(v); err != nil {
				return err
			}

			base := strings.TrimRight(cfg.PublicBaseURL, "/")
			var tag strings.Builder
			fmt.Fprintf(&tag, "<script src=%q", base+"/"+script)
			for _, f := range flags {
				if val := data[f.attr]; val != "" {
					fmt.Fprintf(&tag, " %s=%q", f.attr, val)
				}
			}
			tag.WriteString("></script>")

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, tag.String())
			fmt.Fprintln(out, loader.IframeURL(base, v, a))
			return nil
		},
	}
	cmd.Flags().StringVar(&variant, "variant", "session", "widget variant (session or docs)")
	for _, f := range flags {
		attrs[f.attr] = cmd.Flags().String(f.name, "", f.usage)
	}
	return cmd
}
