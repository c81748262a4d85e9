package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/opensource-finance/kestrel/internal/bootstrap"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/worker"
)

func newLookupCmd() *cobra.Command {
	var (
		async   bool
		asJSON  bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "lookup <customer name>",
		Short: "Check a customer's loan status",
		Long: `Look up a customer by exact name, score the record with the loaded model and
print the decision with its reasons. With --async the request travels over the
event bus and is answered by a worker.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.Join(args, " ")

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			app, err := bootstrap.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			var resp *domain.LookupResponse
			if async {
				resp, err = lookupOverBus(ctx, app, name)
			} else {
				var result *domain.LookupResult
				result, err = app.Lookup.Lookup(ctx, name)
				if result != nil {
					resp = result.ToResponse()
				}
			}
			if err != nil {
				return describeLookupError(cmd.ErrOrStderr(), name, err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			printLookup(cmd.OutOrStdout(), resp)
			return nil
		},
	}

	cmd.Flags().BoolVar(&async, "async", false, "send the lookup over the event bus")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full response as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall lookup timeout")
	return cmd
}

// lookupOverBus issues a request-reply lookup. The in-process channel bus has
// no remote workers, so one is started locally for the duration of the call.
func lookupOverBus(ctx context.Context, app *bootstrap.App, name string) (*domain.LookupResponse, error) {
	if app.Config.EventBus.Type == "channel" {
		w := worker.NewWorker(app.Bus, app.Lookup)
		if err := w.Start(worker.Config{Concurrency: 1}); err != nil {
			return nil, err
		}
		defer w.Stop()
	}

	reply, err := bus.RequestLookup(ctx, app.Bus, domain.LookupRequest{
		RequestID: uuid.New().String(),
		Name:      name,
	})
	if err != nil {
		return nil, fmt.Errorf("lookup request failed: %w", err)
	}
	if reply.Failure != nil {
		return nil, failureError(reply.Failure)
	}
	if reply.Response == nil {
		return nil, errors.New("empty lookup reply")
	}
	return reply.Response, nil
}

// failureError rebuilds a matchable error from a bus failure.
func failureError(f *domain.LookupFailure) error {
	switch f.Kind {
	case domain.KindNotFound:
		return fmt.Errorf("%w: %s", domain.ErrCustomerNotFound, f.Name)
	case domain.KindUnknownCategory:
		return &domain.UnknownCategoryError{Column: f.Column, Value: f.Value}
	default:
		return fmt.Errorf("%s: %s", f.Kind, f.Error)
	}
}

func describeLookupError(w io.Writer, name string, err error) error {
	var uc *domain.UnknownCategoryError
	switch {
	case errors.Is(err, domain.ErrCustomerNotFound):
		fmt.Fprintf(w, "Customer not found: %s\n", name)
	case errors.As(err, &uc):
		fmt.Fprintf(w, "Cannot score %s: %s value %q was not seen in training\n", name, uc.Column, uc.Value)
	}
	return err
}

func printLookup(w io.Writer, resp *domain.LookupResponse) {
	c := resp.Customer

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Customer:        %s\n", c.Name)
	if c.Age != nil {
		fmt.Fprintf(w, "  Age:             %d\n", *c.Age)
	}
	if c.Gender != "" {
		fmt.Fprintf(w, "  Gender:          %s\n", c.Gender)
	}
	if c.Phone != "" {
		fmt.Fprintf(w, "  Phone:           %s\n", c.Phone)
	}
	if c.City != "" {
		fmt.Fprintf(w, "  Location:        %s, %s %s\n", c.City, c.State, c.Pincode)
	}
	fmt.Fprintf(w, "  Bank Balance:    %.2f\n", c.BankBalance)
	fmt.Fprintf(w, "  CIBIL Score:     %d\n", c.CIBILScore)
	fmt.Fprintf(w, "  Existing Loans:  %s\n", c.ExistingLoans)
	fmt.Fprintf(w, "  Loan Requested:  %.2f\n", c.LoanAmountRequested)
	if c.LoanTenureMonths != nil {
		fmt.Fprintf(w, "  Tenure (months): %d\n", *c.LoanTenureMonths)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Loan Status:     %s\n", resp.Status)
	fmt.Fprintln(w, "  Reasons:")
	for _, r := range resp.ReasonDetails {
		if r.Detail != "" {
			fmt.Fprintf(w, "    - %s (%s)\n", r.Text, r.Detail)
		} else {
			fmt.Fprintf(w, "    - %s\n", r.Text)
		}
	}
	if resp.RationaleDisagrees {
		fmt.Fprintln(w, "  Note: none of the listed reasons support this decision.")
	}
	fmt.Fprintf(w, "\n  Lookup ID: %s  (model %s, %d ms)\n\n", resp.LookupID, resp.Metadata.ModelVersion, resp.Metadata.TotalMs)
}
