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
	"gorm.io/gorm"
)

func main() {
	name := flag.String("name", "", "Farm name (required for a new farm)")
	farmID := flag.String("farm-id", "", "Optional: re-seed default accounts for an existing farm instead of creating one")
	email := flag.String("email", "", "Optional: farm contact email")
	phone := flag.String("phone", "", "Optional: farm contact phone")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 0)
	ctx = utils.SetUserNameInContext(ctx, "SeedFarm")

	if strings.TrimSpace(*farmID) != "" {
		// existing farm: make sure the default chart is complete
		id := strings.TrimSpace(*farmID)
		err := models.RunAtomic(ctx, func(tx *gorm.DB) error {
			return models.CreateDefaultAccounts(tx, ctx, id)
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to seed accounts for farm %s: %v\n", id, err)
			os.Exit(1)
		}
		fmt.Printf("default accounts ensured for farm %s\n", id)
		return
	}

	if strings.TrimSpace(*name) == "" {
		fmt.Fprintln(os.Stderr, "either -name (new farm) or -farm-id (existing farm) is required")
		os.Exit(1)
	}

	farm, err := models.CreateFarm(ctx, &models.NewFarm{
		Name:  strings.TrimSpace(*name),
		Email: strings.TrimSpace(*email),
		Phone: strings.TrimSpace(*phone),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create farm: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("created farm %s (%s) with default chart of accounts\n", farm.Name, farm.ID)
}
