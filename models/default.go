package models

import (
	"context"

	"gorm.io/gorm"
)

// System account codes. Posting paths resolve these through
// GetSystemAccounts; products additionally carry their own linked accounts.
const (
	AccountCodeCurrentAssets          = "CAS"
	AccountCodeInventoryAssets        = "IVA"
	AccountCodeRawMilkInventory       = "RMI"
	AccountCodeFinishedGoodsInventory = "FGI"
	AccountCodeFeedInventory          = "FDI"
	AccountCodeMedicineInventory      = "MDI"
	AccountCodeAccountsReceivable     = "ARV"
	AccountCodeCash                   = "CSH"
	AccountCodeAccountsPayable        = "APY"
	AccountCodeDairySales             = "SLS"
	AccountCodeCostOfGoodsSold        = "CGS"
	AccountCodeOperatingExpenses      = "OPX"
	AccountCodeFeedExpense            = "FEX"
	AccountCodeVeterinaryExpense      = "VEX"
	AccountCodeInventoryWriteOff      = "WOF"
	AccountCodeOpeningBalance         = "OBE"
)

type NewSystemAccount struct {
	DetailType      AccountDetailType
	MainType        AccountMainType
	Name            string
	Code            string
	Description     string
	ParentAccountId int
}

// CreateDefaultAccounts seeds the farm's chart of accounts. Idempotent via
// EnsureAccount, so re-running setup is harmless. Summary accounts (current
// assets, inventory assets, operating expenses) exist purely as rollup
// parents; only leaves are ever posted to.
func CreateDefaultAccounts(tx *gorm.DB, ctx context.Context, farmId string) error {

	currentAssets, err := EnsureAccount(tx, ctx, farmId, &NewSystemAccount{
		DetailType:  AccountDetailTypeOtherAsset,
		MainType:    AccountMainTypeAsset,
		Name:        "Current Assets",
		Code:        AccountCodeCurrentAssets,
		Description: "Rollup parent of liquid and inventory assets",
	})
	if err != nil {
		return err
	}

	inventoryAssets, err := EnsureAccount(tx, ctx, farmId, &NewSystemAccount{
		DetailType:      AccountDetailTypeStock,
		MainType:        AccountMainTypeAsset,
		Name:            "Inventory Assets",
		Code:            AccountCodeInventoryAssets,
		Description:     "Rollup parent of inventory accounts",
		ParentAccountId: currentAssets.ID,
	})
	if err != nil {
		return err
	}

	inventoryLeaves := []NewSystemAccount{
		{DetailType: AccountDetailTypeStock, MainType: AccountMainTypeAsset, Name: "Raw Milk Inventory", Code: AccountCodeRawMilkInventory, ParentAccountId: inventoryAssets.ID},
		{DetailType: AccountDetailTypeStock, MainType: AccountMainTypeAsset, Name: "Finished Goods Inventory", Code: AccountCodeFinishedGoodsInventory, ParentAccountId: inventoryAssets.ID},
		{DetailType: AccountDetailTypeStock, MainType: AccountMainTypeAsset, Name: "Feed Inventory", Code: AccountCodeFeedInventory, ParentAccountId: inventoryAssets.ID},
		{DetailType: AccountDetailTypeStock, MainType: AccountMainTypeAsset, Name: "Medicine Inventory", Code: AccountCodeMedicineInventory, ParentAccountId: inventoryAssets.ID},
	}
	for i := range inventoryLeaves {
		if _, err := EnsureAccount(tx, ctx, farmId, &inventoryLeaves[i]); err != nil {
			return err
		}
	}

	assetLeaves := []NewSystemAccount{
		{DetailType: AccountDetailTypeAccountsReceivable, MainType: AccountMainTypeAsset, Name: "Accounts Receivable", Code: AccountCodeAccountsReceivable, ParentAccountId: currentAssets.ID},
		{DetailType: AccountDetailTypeCash, MainType: AccountMainTypeAsset, Name: "Cash", Code: AccountCodeCash, ParentAccountId: currentAssets.ID},
	}
	for i := range assetLeaves {
		if _, err := EnsureAccount(tx, ctx, farmId, &assetLeaves[i]); err != nil {
			return err
		}
	}

	if _, err := EnsureAccount(tx, ctx, farmId, &NewSystemAccount{
		DetailType: AccountDetailTypeAccountsPayable,
		MainType:   AccountMainTypeLiability,
		Name:       "Accounts Payable",
		Code:       AccountCodeAccountsPayable,
	}); err != nil {
		return err
	}

	if _, err := EnsureAccount(tx, ctx, farmId, &NewSystemAccount{
		DetailType: AccountDetailTypeEquity,
		MainType:   AccountMainTypeEquity,
		Name:       "Opening Balance Equity",
		Code:       AccountCodeOpeningBalance,
	}); err != nil {
		return err
	}

	if _, err := EnsureAccount(tx, ctx, farmId, &NewSystemAccount{
		DetailType: AccountDetailTypeIncome,
		MainType:   AccountMainTypeIncome,
		Name:       "Dairy Sales",
		Code:       AccountCodeDairySales,
	}); err != nil {
		return err
	}

	if _, err := EnsureAccount(tx, ctx, farmId, &NewSystemAccount{
		DetailType: AccountDetailTypeCostOfGoodsSold,
		MainType:   AccountMainTypeExpense,
		Name:       "Cost of Goods Sold",
		Code:       AccountCodeCostOfGoodsSold,
	}); err != nil {
		return err
	}

	operatingExpenses, err := EnsureAccount(tx, ctx, farmId, &NewSystemAccount{
		DetailType:  AccountDetailTypeExpense,
		MainType:    AccountMainTypeExpense,
		Name:        "Operating Expenses",
		Code:        AccountCodeOperatingExpenses,
		Description: "Rollup parent of farm running costs",
	})
	if err != nil {
		return err
	}

	expenseLeaves := []NewSystemAccount{
		{DetailType: AccountDetailTypeExpense, MainType: AccountMainTypeExpense, Name: "Feed Expense", Code: AccountCodeFeedExpense, ParentAccountId: operatingExpenses.ID},
		{DetailType: AccountDetailTypeExpense, MainType: AccountMainTypeExpense, Name: "Veterinary Expense", Code: AccountCodeVeterinaryExpense, ParentAccountId: operatingExpenses.ID},
		{DetailType: AccountDetailTypeOtherExpense, MainType: AccountMainTypeExpense, Name: "Inventory Write-off", Code: AccountCodeInventoryWriteOff, ParentAccountId: operatingExpenses.ID},
	}
	for i := range expenseLeaves {
		if _, err := EnsureAccount(tx, ctx, farmId, &expenseLeaves[i]); err != nil {
			return err
		}
	}

	return nil
}
