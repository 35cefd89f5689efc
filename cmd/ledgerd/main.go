// Command ledgerd is the operational entrypoint of the ledger: schema
// migration, balance inspection and the integrity sweep.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	log "github.com/charmbracelet/log"
	"github.com/creatorpay/ledger/infra"
	"github.com/creatorpay/ledger/infra/initializer"
	infrarepo "github.com/creatorpay/ledger/infra/repository"
	"github.com/creatorpay/ledger/pkg/config"
	"github.com/creatorpay/ledger/pkg/service/integrity"
	payoutsvc "github.com/creatorpay/ledger/pkg/service/payout"
	"github.com/fatih/color"
	"github.com/google/uuid"
)

// reconcileAge is how long a payout may sit in APPROVED before the sweep
// reports it as stuck.
const reconcileAge = 15 * time.Minute

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if len(os.Args) < 2 {
		usage()
		return nil
	}

	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logger := initializer.SetupLogger(cfg.Log)

	db, err := infra.NewDBConnection(cfg.DB, cfg.Env)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	uow := infrarepo.NewUoW(db, cfg.Ledger.CurrencyCode())
	ctx := context.Background()

	switch os.Args[1] {
	case "migrate":
		if err := infrarepo.Migrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		color.Green("schema up to date")
		return nil

	case "balance":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: ledgerd balance <user_id>")
		}
		userID, err := uuid.Parse(os.Args[2])
		if err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}
		wallets, err := uow.WalletRepository()
		if err != nil {
			return err
		}
		w, err := wallets.GetByUser(ctx, userID)
		if err != nil {
			return err
		}
		fmt.Printf("wallet %s\n", w.ID)
		fmt.Printf("  available: %s\n", w.Available)
		fmt.Printf("  pending:   %s\n", w.Pending)
		fmt.Printf("  earned:    %s\n", w.LifetimeEarned)
		fmt.Printf("  withdrawn: %s\n", w.LifetimeWithdrawn)
		return nil

	case "verify":
		verifier := integrity.New(uow, logger)
		if len(os.Args) >= 3 {
			userID, err := uuid.Parse(os.Args[2])
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}
			report, err := verifier.Verify(ctx, userID)
			if err != nil {
				return err
			}
			printReport(report)
			if !report.Consistent {
				os.Exit(1)
			}
			return nil
		}

		reports, err := verifier.VerifyAll(ctx)
		if err != nil {
			return err
		}
		var broken int
		for _, report := range reports {
			printReport(report)
			if !report.Consistent {
				broken++
			}
		}
		fmt.Printf("%d wallets verified, %d inconsistent\n", len(reports), broken)
		if broken > 0 {
			os.Exit(1)
		}
		return nil

	case "stuck-payouts":
		payouts := payoutsvc.New(uow, nil, cfg.Ledger, logger)
		stuck, err := payouts.ListApprovedOlderThan(ctx, reconcileAge)
		if err != nil {
			return err
		}
		if len(stuck) == 0 {
			color.Green("no payouts stuck in APPROVED")
			return nil
		}
		for _, p := range stuck {
			color.Yellow("payout %s user %s amount %s approved since %s",
				p.ID, p.UserID, p.RequestedAmount, p.CreatedAt.Format(time.RFC3339))
		}
		return nil

	default:
		usage()
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

func printReport(r *integrity.Report) {
	if r.Consistent {
		color.Green("wallet %s consistent (%d entries)", r.WalletID, r.Entries)
		return
	}
	color.Red("wallet %s INCONSISTENT: computed (%d, %d) stored (%d, %d) over %d entries",
		r.WalletID, r.ComputedAvailable, r.ComputedPending,
		r.StoredAvailable, r.StoredPending, r.Entries)
}

func usage() {
	fmt.Println("Usage: ledgerd <command> [arguments]")
	fmt.Println("Commands:")
	fmt.Println("  migrate              create or update the database schema")
	fmt.Println("  balance <user_id>    print a user's wallet balances")
	fmt.Println("  verify [user_id]     recompute balances from the transaction log")
	fmt.Println("  stuck-payouts        list payouts stuck in APPROVED")
}
