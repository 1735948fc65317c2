package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/thazinfarms/dairybooks_backend/config"
	"github.com/thazinfarms/dairybooks_backend/models"
	"github.com/thazinfarms/dairybooks_backend/utils"
)

// ledger-verify re-checks the two invariants the posting engine maintains:
// every parent account equals the sum of its direct children, and every
// valuation record satisfies total = qty * average. It reports drift and
// exits non-zero; it never corrects anything.
func main() {
	farmID := flag.String("farm-id", "", "Optional: verify only one farm. If empty, verifies all farms.")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	var farms []models.Farm
	farmQuery := db.WithContext(ctx).Model(&models.Farm{})
	if strings.TrimSpace(*farmID) != "" {
		farmQuery = farmQuery.Where("id = ?", strings.TrimSpace(*farmID))
	}
	if err := farmQuery.Find(&farms).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to list farms: %v\n", err)
		os.Exit(1)
	}
	if len(farms) == 0 {
		fmt.Fprintln(os.Stderr, "no farms found to verify")
		return
	}

	totalDrift := 0
	for _, farm := range farms {
		fid := farm.ID.String()
		fctx := utils.SetFarmIdInContext(ctx, fid)

		accountDrift, err := models.VerifyAccountRollups(fctx, fid)
		if err != nil {
			fmt.Fprintf(os.Stderr, "farm %s: account verification failed: %v\n", fid, err)
			os.Exit(1)
		}
		valuationDrift, err := models.VerifyInventoryValuations(fctx, fid)
		if err != nil {
			fmt.Fprintf(os.Stderr, "farm %s: valuation verification failed: %v\n", fid, err)
			os.Exit(1)
		}

		for _, line := range accountDrift {
			fmt.Printf("farm %s: %s\n", fid, line)
		}
		for _, line := range valuationDrift {
			fmt.Printf("farm %s: %s\n", fid, line)
		}
		totalDrift += len(accountDrift) + len(valuationDrift)
	}

	if totalDrift > 0 {
		fmt.Fprintf(os.Stderr, "%d invariant violation(s) found\n", totalDrift)
		os.Exit(1)
	}
	fmt.Printf("verified %d farm(s): no drift\n", len(farms))
}
