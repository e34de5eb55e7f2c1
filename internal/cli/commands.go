package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"NewsDigest/internal/config"
	"NewsDigest/internal/domain"
)

func newRunCommand(opts *rootOptions) *cobra.Command {
	var preferences, email string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build and send one digest",
		Long: `Run the pipeline once for a single reader.

Missing --preferences or --email values are asked for interactively.

Examples:
  newsdigest run
  newsdigest run --preferences "space exploration and Elon Musk" --email me@example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := promptRequest(cmd.InOrStdin(), cmd.OutOrStdout(), preferences, email)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			application, err := opts.build(ctx, config.NeedDatabase, config.NeedModel, config.NeedEmail)
			if err != nil {
				return err
			}
			defer application.Close(context.WithoutCancel(ctx))

			res := application.RunDigest(ctx, req)
			fmt.Fprintln(cmd.OutOrStdout(), res.Message())
			if res.Failed() {
				return fmt.Errorf("digest run %s did not complete", res.RunID)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&preferences, "preferences", "p", "", "topics the digest should cover")
	cmd.Flags().StringVarP(&email, "email", "e", "", "recipient address")
	return cmd
}

// promptRequest fills in missing values from in, one line each.
func promptRequest(in io.Reader, out io.Writer, preferences, email string) (domain.DigestRequest, error) {
	reader := bufio.NewReader(in)

	ask := func(label string) (string, error) {
		fmt.Fprint(out, label)
		line, err := reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), err)
		}
		return strings.TrimSpace(line), nil
	}

	var err error
	if strings.TrimSpace(preferences) == "" {
		if preferences, err = ask("News preferences: "); err != nil {
			return domain.DigestRequest{}, err
		}
	}
	if strings.TrimSpace(email) == "" {
		if email, err = ask("Email address: "); err != nil {
			return domain.DigestRequest{}, err
		}
	}

	req := domain.DigestRequest{Preferences: strings.TrimSpace(preferences), Recipient: strings.TrimSpace(email)}
	if req.Preferences == "" || req.Recipient == "" {
		return domain.DigestRequest{}, fmt.Errorf("%w: preferences and email are required", domain.ErrInvalidRequest)
	}
	return req, nil
}

func newRefreshCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Rebuild the headline index from today's news",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			application, err := opts.build(ctx, config.NeedDatabase, config.NeedModel, config.NeedNews)
			if err != nil {
				return err
			}
			defer application.Close(context.WithoutCancel(ctx))

			if err := application.Refresh(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Headline index refreshed")
			return nil
		},
	}
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			application, err := opts.build(ctx, config.NeedDatabase, config.NeedModel, config.NeedEmail)
			if err != nil {
				return err
			}
			defer application.Close(context.WithoutCancel(ctx))

			return application.Serve(ctx)
		},
	}
}

func newScheduleCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the index refresh and subscriber digests on their cron schedules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			application, err := opts.build(ctx, config.NeedDatabase, config.NeedModel, config.NeedNews, config.NeedEmail)
			if err != nil {
				return err
			}
			defer application.Close(context.WithoutCancel(ctx))

			return application.Schedule(ctx)
		},
	}
}
