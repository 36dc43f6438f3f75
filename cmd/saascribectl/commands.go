package main

import (
	"context"
	"fmt"
	"time"

	"saascribe-platform/internal/auth"
	"saascribe-platform/internal/rag"
	"saascribe-platform/models"

	"github.com/spf13/cobra"
)

type backend interface {
	IssueToken(ctx context.Context, userID, email string) (*auth.TokenPair, error)
	EnsureIndexed(ctx context.Context, ownerID, documentID string) (*rag.Namespace, error)
	Status(ctx context.Context, documentID string) (*models.Document, rag.NamespaceStats, error)
	Close()
}

type opener func(ctx context.Context) (backend, error)

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "saascribectl",
		Short:         "Operate the document chat platform",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newTokenCmd(open), newIndexCmd(open))
	return root
}

// withBackend opens the backend for the duration of one command.
func withBackend(open opener, fn func(ctx context.Context, b backend) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		b, err := open(ctx)
		if err != nil {
			return err
		}
		defer b.Close()
		return fn(ctx, b)
	}
}

func newTokenCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage session tokens",
	}

	var userID, email string
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue an access/refresh token pair for a user",
		Args:  cobra.NoArgs,
	}
	issue.RunE = withBackend(open, func(ctx context.Context, b backend) error {
		pair, err := b.IssueToken(ctx, userID, email)
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		out := issue.OutOrStdout()
		fmt.Fprintf(out, "access_token:  %s\n", pair.AccessToken)
		fmt.Fprintf(out, "refresh_token: %s\n", pair.RefreshToken)
		fmt.Fprintf(out, "expires:       %s\n", pair.AccessExp.UTC().Format(time.RFC3339))
		return nil
	})
	issue.Flags().StringVar(&userID, "user", "", "User ID to embed in the token")
	issue.Flags().StringVar(&email, "email", "", "Email to embed in the token")
	_ = issue.MarkFlagRequired("user")

	cmd.AddCommand(issue)
	return cmd
}

func newIndexCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Inspect and drive document ingestion",
	}

	var ownerID, documentID string
	ensure := &cobra.Command{
		Use:   "ensure",
		Short: "Index a document now unless its namespace is already populated",
		Args:  cobra.NoArgs,
	}
	ensure.RunE = withBackend(open, func(ctx context.Context, b backend) error {
		ns, err := b.EnsureIndexed(ctx, ownerID, documentID)
		if err != nil {
			return err
		}
		fmt.Fprintf(ensure.OutOrStdout(), "namespace %s: %d chunks\n", ns.Name, ns.RecordCount)
		return nil
	})
	ensure.Flags().StringVar(&ownerID, "user", "", "Owner of the document")
	ensure.Flags().StringVar(&documentID, "doc", "", "Document ID")
	_ = ensure.MarkFlagRequired("user")
	_ = ensure.MarkFlagRequired("doc")

	var statusID string
	status := &cobra.Command{
		Use:   "status",
		Short: "Show a document's ingestion state and vector count",
		Args:  cobra.NoArgs,
	}
	status.RunE = withBackend(open, func(ctx context.Context, b backend) error {
		doc, stats, err := b.Status(ctx, statusID)
		if err != nil {
			return err
		}
		out := status.OutOrStdout()
		fmt.Fprintf(out, "document: %s (%s)\n", doc.ID, doc.Name)
		fmt.Fprintf(out, "owner:    %s\n", doc.OwnerID)
		fmt.Fprintf(out, "status:   %s\n", doc.IndexStatus)
		if doc.IndexError != "" {
			fmt.Fprintf(out, "error:    %s\n", doc.IndexError)
		}
		fmt.Fprintf(out, "vectors:  %d\n", stats.RecordCount)
		return nil
	})
	status.Flags().StringVar(&statusID, "doc", "", "Document ID")
	_ = status.MarkFlagRequired("doc")

	cmd.AddCommand(ensure, status)
	return cmd
}
