package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/example/taskplanner/internal/application"
)

func newCodesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codes",
		Short: "Manage access codes",
	}
	cmd.AddCommand(newCodesHashCmd(opts), newCodesAddCmd(opts), newCodesListCmd(opts))
	return cmd
}

func newCodesHashCmd(opts *rootOptions) *cobra.Command {
	var code string
	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Print the stored hash of an access code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load(cmd)
			if err != nil {
				return err
			}
			hasher, err := application.NewCodeHasher(cfg.Auth.SecretKey, cfg.Auth.HashScheme)
			if err != nil {
				return err
			}
			if code, err = readCode(cmd, code); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hasher.Hash(code))
			return nil
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "access code (prompted when omitted)")
	return cmd
}

func newCodesAddCmd(opts *rootOptions) *cobra.Command {
	var label, role, code string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new access code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if code, err = readCode(cmd, code); err != nil {
				return err
			}

			a, err := newApp(ctx, cfg, logger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			view, err := a.access.RegisterAccessCode(ctx, application.CreateAccessCodeParams{
				Label: label,
				Code:  code,
				Role:  role,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %q as %s (id %d)\n", view.Label, view.Role, view.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "display label, e.g. \"SAM (9127SAM)\"")
	cmd.Flags().StringVar(&role, "role", string(application.RoleMember), "member or admin")
	cmd.Flags().StringVar(&code, "code", "", "access code (prompted when omitted)")
	_ = cmd.MarkFlagRequired("label")
	return cmd
}

func newCodesListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered access codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(ctx, cfg, logger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			views, err := a.access.AccessCodes(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, v := range views {
				state := "active"
				if !v.IsActive {
					state = "inactive"
				}
				fmt.Fprintf(out, "%d\t%-6s\t%-8s\t%s\n", v.ID, v.Role, state, v.Label)
			}
			return nil
		},
	}
}

// readCode returns flagValue when set, otherwise prompts on a terminal or
// reads one line from stdin.
func readCode(cmd *cobra.Command, flagValue string) (string, error) {
	if strings.TrimSpace(flagValue) != "" {
		return strings.TrimSpace(flagValue), nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Access code: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read access code: %w", err)
		}
		return requireCode(string(raw))
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read access code: %w", err)
	}
	return requireCode(line)
}

func requireCode(raw string) (string, error) {
	code := strings.TrimSpace(raw)
	if code == "" {
		return "", errors.New("access code must not be empty")
	}
	return code, nil
}
