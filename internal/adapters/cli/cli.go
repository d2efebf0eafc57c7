package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"accounting-engine/internal/app"
	"accounting-engine/internal/core"
)

const usage = `Available: bal, reconcile, stock, journal <id>, payables, receivables,
  inventory-method [FIFO|LIFO|AVG], margin <productID> <amount>,
  purchase, sale, purchase-return, sale-return (JSON input on stdin)`

// ErrUsage is returned for unknown commands and missing arguments.
var ErrUsage = errors.New("usage")

// Run executes a one-shot CLI command. args[0] is the subcommand name.
// JSON document commands read their input from in; all output goes to out.
func Run(ctx context.Context, svc app.ApplicationService, args []string, in io.Reader, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: no command\n%s", ErrUsage, usage)
	}

	switch args[0] {
	case "bal", "balances":
		result, err := svc.GetTrialBalance(ctx)
		if err != nil {
			return fmt.Errorf("failed to get balances: %w", err)
		}
		printTrialBalance(out, result)

	case "reconcile", "verify":
		report, err := svc.Reconcile(ctx)
		if err != nil {
			return fmt.Errorf("failed to reconcile: %w", err)
		}
		printReconciliation(out, report)
		if !report.OK() {
			return core.InvariantViolationf("%d reconciliation mismatch(es)", len(report.Mismatches))
		}

	case "stock":
		levels, err := svc.GetStockLevels(ctx)
		if err != nil {
			return fmt.Errorf("failed to get stock levels: %w", err)
		}
		printStock(out, levels)

	case "journal":
		id, err := intArg(args, 1, "journal <id>")
		if err != nil {
			return err
		}
		j, err := svc.GetJournal(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get journal: %w", err)
		}
		return printJSON(out, j)

	case "payables", "receivables":
		kind := core.Payable
		if args[0] == "receivables" {
			kind = core.Receivable
		}
		list, err := svc.ListObligations(ctx, kind)
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", args[0], err)
		}
		printObligations(out, kind, list)

	case "inventory-method", "method":
		if len(args) < 2 {
			s, err := svc.GetSettings(ctx)
			if err != nil {
				return fmt.Errorf("failed to get settings: %w", err)
			}
			fmt.Fprintf(out, "Inventory method: %s\n", s.InventoryMethod)
			return nil
		}
		s, err := svc.UpdateInventoryMethod(ctx, core.InventoryMethod(strings.ToUpper(args[1])))
		if err != nil {
			return fmt.Errorf("failed to update inventory method: %w", err)
		}
		fmt.Fprintf(out, "Inventory method set to %s.\n", s.InventoryMethod)

	case "margin":
		id, err := intArg(args, 1, "margin <productID> <amount>")
		if err != nil {
			return err
		}
		if len(args) < 3 {
			return fmt.Errorf("%w: margin <productID> <amount>", ErrUsage)
		}
		margin, err := decimal.NewFromString(args[2])
		if err != nil {
			return core.Validationf("invalid margin %q", args[2])
		}
		p, err := svc.UpdateProfitMargin(ctx, id, margin)
		if err != nil {
			return fmt.Errorf("failed to update margin: %w", err)
		}
		fmt.Fprintf(out, "%s margin %s, selling price %s.\n", p.Code, p.ProfitMargin.StringFixed(2), p.SellingPrice.StringFixed(2))

	case "purchase":
		var input core.PurchaseInput
		if err := decodeInput(in, &input); err != nil {
			return err
		}
		p, err := svc.CreatePurchase(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to post purchase: %w", err)
		}
		fmt.Fprintf(out, "Posted %s total %s.\n", p.Reference, p.Total.StringFixed(2))

	case "sale":
		var input core.SaleInput
		if err := decodeInput(in, &input); err != nil {
			return err
		}
		s, err := svc.CreateSale(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to post sale: %w", err)
		}
		fmt.Fprintf(out, "Posted %s total %s.\n", s.Reference, s.Total.StringFixed(2))

	case "purchase-return":
		var input core.PurchaseReturnInput
		if err := decodeInput(in, &input); err != nil {
			return err
		}
		r, err := svc.CreatePurchaseReturn(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to post purchase return: %w", err)
		}
		return printJSON(out, r)

	case "sale-return":
		var input core.SaleReturnInput
		if err := decodeInput(in, &input); err != nil {
			return err
		}
		r, err := svc.CreateSaleReturn(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to post sale return: %w", err)
		}
		return printJSON(out, r)

	default:
		return fmt.Errorf("%w: unknown command %s\n%s", ErrUsage, args[0], usage)
	}
	return nil
}

func intArg(args []string, i int, form string) (int, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("%w: %s", ErrUsage, form)
	}
	n, err := strconv.Atoi(args[i])
	if err != nil || n <= 0 {
		return 0, core.Validationf("invalid id %q", args[i])
	}
	return n, nil
}

func decodeInput(in io.Reader, v any) error {
	if in == nil {
		return fmt.Errorf("%w: JSON input required on stdin", ErrUsage)
	}
	dec := json.NewDecoder(in)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return core.Validationf("invalid JSON input: %v", err)
	}
	return nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTrialBalance(out io.Writer, result *app.TrialBalanceResult) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", 62))
	fmt.Fprintf(out, "  %-58s\n", "TRIAL BALANCE")
	fmt.Fprintln(out, strings.Repeat("=", 62))
	fmt.Fprintf(out, "  %-10s %-30s %15s\n", "CODE", "NAME", "BALANCE")
	fmt.Fprintln(out, strings.Repeat("-", 62))
	for _, b := range result.Accounts {
		fmt.Fprintf(out, "  %-10s %-30s %15s\n", b.Code, b.Name, b.Balance.StringFixed(2))
	}
	fmt.Fprintln(out, strings.Repeat("-", 62))
	fmt.Fprintf(out, "  %-41s %15s\n", "Debit-normal total", result.TotalDebit.StringFixed(2))
	fmt.Fprintf(out, "  %-41s %15s\n", "Credit-normal total", result.TotalCredit.StringFixed(2))
	fmt.Fprintln(out, strings.Repeat("=", 62))
	if !result.Balanced {
		fmt.Fprintln(out, "  WARNING: totals do not agree")
	}
}

func printReconciliation(out io.Writer, report *core.ReconciliationReport) {
	fmt.Fprintf(out, "Checked %d journals, %d accounts, %d products.\n", report.Journals, report.Accounts, report.Products)
	if report.OK() {
		fmt.Fprintln(out, "Books reconcile.")
		return
	}
	for _, m := range report.Mismatches {
		fmt.Fprintf(out, "  [%s] %s: expected %s, got %s\n", m.Check, m.Subject, m.Expected, m.Actual)
	}
}

func printStock(out io.Writer, levels []core.StockLevel) {
	fmt.Fprintf(out, "  %-10s %-24s %8s %12s %12s\n", "CODE", "NAME", "ON HAND", "UNIT COST", "PRICE")
	fmt.Fprintln(out, strings.Repeat("-", 70))
	for _, l := range levels {
		fmt.Fprintf(out, "  %-10s %-24s %8d %12s %12s\n",
			l.ProductCode, l.ProductName, l.OnHand, l.UnitCost.StringFixed(2), l.SellingPrice.StringFixed(2))
	}
}

func printObligations(out io.Writer, kind core.ObligationKind, list []core.Obligation) {
	if len(list) == 0 {
		fmt.Fprintf(out, "No %s obligations.\n", strings.ToLower(string(kind)))
		return
	}
	fmt.Fprintf(out, "  %-6s %-8s %12s %12s %12s  %s\n", "ID", "SOURCE", "AMOUNT", "PAID", "REMAINING", "STATUS")
	for _, o := range list {
		fmt.Fprintf(out, "  %-6d %-8d %12s %12s %12s  %s\n", o.ID, o.SourceID,
			o.Amount.StringFixed(2), o.PaidAmount.StringFixed(2), o.RemainingAmount.StringFixed(2), o.Status)
	}
}
