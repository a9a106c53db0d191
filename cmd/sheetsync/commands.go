package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Ratio1/sheetsync_sdk_go/pkg/sheetsync"
)

func keyArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

func newGetCmd() *cobra.Command {
	var (
		out         outputOptions
		noCacheBust bool
	)
	cmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Fetch a document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			rec, err := s.client.Get(s.ctx, keyArg(args), !noCacheBust)
			if err != nil {
				return err
			}
			return printRecord(cmd.OutOrStdout(), rec, out)
		},
	}
	out.bind(cmd)
	cmd.Flags().BoolVar(&noCacheBust, "no-cache-bust", false, "do not add a cache-busting parameter")
	return cmd
}

func newSaveCmd() *cobra.Command {
	var (
		out      outputOptions
		file     string
		password string
	)
	cmd := &cobra.Command{
		Use:   "save [key]",
		Short: "Store HTML read from --file or stdin, then print the stored document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			html, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			rec, err := s.client.Save(s.ctx, keyArg(args), html, firstSet(password, s.cfg.Password))
			if err != nil {
				return err
			}
			if rec.OK && rec.HTML != html {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: stored document differs from the input; the write may have been rejected")
			}
			return printRecord(cmd.OutOrStdout(), rec, out)
		},
	}
	out.bind(cmd)
	cmd.Flags().StringVarP(&file, "file", "f", "-", "HTML file to upload, - for stdin")
	cmd.Flags().StringVarP(&password, "password", "p", "", "write password (default $SHEETSYNC_PASSWORD)")
	return cmd
}

func newClearCmd() *cobra.Command {
	var (
		out      outputOptions
		password string
	)
	cmd := &cobra.Command{
		Use:   "clear [key]",
		Short: "Empty a document, then print what the store holds",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			rec, err := s.client.Clear(s.ctx, keyArg(args), firstSet(password, s.cfg.Password))
			if err != nil {
				return err
			}
			return printRecord(cmd.OutOrStdout(), rec, out)
		},
	}
	out.bind(cmd)
	cmd.Flags().StringVarP(&password, "password", "p", "", "write password (default $SHEETSYNC_PASSWORD)")
	return cmd
}

func newWrapCmd() *cobra.Command {
	var (
		title  string
		styles bool
	)
	cmd := &cobra.Command{
		Use:   "wrap [file]",
		Short: "Wrap an HTML fragment into a standalone document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			html, err := readInput(cmd.InOrStdin(), firstSet(keyArg(args), "-"))
			if err != nil {
				return err
			}
			if title == "" {
				title = sheetsync.DocumentTitle(html)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), sheetsync.WrapIfFragment(html, sheetsync.WrapOptions{
				Title:             title,
				IncludeBaseStyles: styles,
			}))
			return err
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "document title (default: first <title> or <h1>)")
	cmd.Flags().BoolVar(&styles, "styles", true, "include the default stylesheet")
	return cmd
}

func readInput(stdin io.Reader, path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func firstSet(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
