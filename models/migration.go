package models

import (
	"github.com/thazinfarms/dairybooks_backend/config"
	"github.com/thazinfarms/dairybooks_backend/utils"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Farm{},
		&Account{},
		&AccountTransaction{},
		&Product{},
		&InventoryValuation{},
		&Cattle{},
		&Customer{},
		&Supplier{},
		&Employee{},
		&MilkProduction{},
		&FeedUsage{},
		&HealthEvent{},
		&ProcessingBatch{},
		&ProcessingBatchOutput{},
		&SalesInvoice{},
		&SalesInvoiceDetail{},
		&Bill{},
		&BillDetail{},
		&InventoryWriteOff{},
	)
	utils.ErrorPanic(err)
}
