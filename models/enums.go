package models

type AccountMainType string

const (
	AccountMainTypeAsset     AccountMainType = "Asset"
	AccountMainTypeLiability AccountMainType = "Liability"
	AccountMainTypeEquity    AccountMainType = "Equity"
	AccountMainTypeIncome    AccountMainType = "Income"
	AccountMainTypeExpense   AccountMainType = "Expense"
)

type AccountDetailType string

const (
	AccountDetailTypeOtherAsset         AccountDetailType = "OtherAsset"
	AccountDetailTypeCash               AccountDetailType = "Cash"
	AccountDetailTypeBank               AccountDetailType = "Bank"
	AccountDetailTypeStock              AccountDetailType = "Stock"
	AccountDetailTypeAccountsReceivable AccountDetailType = "AccountsReceivable"
	AccountDetailTypeAccountsPayable    AccountDetailType = "AccountsPayable"
	AccountDetailTypeEquity             AccountDetailType = "Equity"
	AccountDetailTypeIncome             AccountDetailType = "Income"
	AccountDetailTypeExpense            AccountDetailType = "Expense"
	AccountDetailTypeCostOfGoodsSold    AccountDetailType = "CostOfGoodsSold"
	AccountDetailTypeOtherExpense       AccountDetailType = "OtherExpense"
)

// ProductCategory classifies what a product is to the farm: produced raw
// milk, processed finished goods, or purchased consumables.
type ProductCategory string

const (
	ProductCategoryRawMilk      ProductCategory = "RawMilk"
	ProductCategoryFinishedGood ProductCategory = "FinishedGood"
	ProductCategoryFeed         ProductCategory = "Feed"
	ProductCategoryMedicine     ProductCategory = "Medicine"
)

type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "Pending"
	BatchStatusInProgress BatchStatus = "InProgress"
	BatchStatusCompleted  BatchStatus = "Completed"
	BatchStatusCancelled  BatchStatus = "Cancelled"
)

// ApprovalStatus is shared by invoice-like documents (sales invoices,
// purchase bills, write-offs).
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "Pending"
	ApprovalStatusApproved ApprovalStatus = "Approved"
	ApprovalStatusRejected ApprovalStatus = "Rejected"
)

type HealthEventStatus string

const (
	HealthEventStatusScheduled HealthEventStatus = "Scheduled"
	HealthEventStatusCompleted HealthEventStatus = "Completed"
)

// ReferenceType tags account transactions with the document that caused them.
type ReferenceType string

const (
	ReferenceTypeMilkProduction  ReferenceType = "MP"
	ReferenceTypeFeedUsage       ReferenceType = "FU"
	ReferenceTypeHealthEvent     ReferenceType = "HE"
	ReferenceTypeProcessingBatch ReferenceType = "PB"
	ReferenceTypeSalesInvoice    ReferenceType = "IV"
	ReferenceTypeBill            ReferenceType = "BL"
	ReferenceTypeWriteOff        ReferenceType = "WO"
	ReferenceTypeOpeningStock    ReferenceType = "OB"
)
