package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/thazinfarms/dairybooks_backend/config"
	"github.com/thazinfarms/dairybooks_backend/models"
	"github.com/thazinfarms/dairybooks_backend/utils"
)

// End-to-end posting cycle against real MySQL and Redis: purchase feed,
// consume it, produce milk, process milk into finished goods, sell, and
// reverse — checking valuations, account balances and rollups at each step.
func TestDairyLedgerPostingCycle(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "dairybooks_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")

	farm, err := models.CreateFarm(ctx, &models.NewFarm{Name: "Thazin Dairy"})
	if err != nil {
		t.Fatalf("CreateFarm: %v", err)
	}
	farmId := farm.ID.String()
	ctx = utils.SetFarmIdInContext(ctx, farmId)

	sysAccounts, err := models.GetSystemAccounts(farmId)
	if err != nil {
		t.Fatalf("GetSystemAccounts: %v", err)
	}

	rawMilk, err := models.CreateProduct(ctx, &models.NewProduct{
		Name: "Raw Milk", Category: models.ProductCategoryRawMilk,
		UnitOfMeasure: "L", StandardCost: decimal.NewFromInt(2),
	})
	if err != nil {
		t.Fatalf("CreateProduct(raw milk): %v", err)
	}
	cheese, err := models.CreateProduct(ctx, &models.NewProduct{
		Name: "Cheese", Category: models.ProductCategoryFinishedGood,
		UnitOfMeasure: "kg", SalesPrice: decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatalf("CreateProduct(cheese): %v", err)
	}
	butter, err := models.CreateProduct(ctx, &models.NewProduct{
		Name: "Butter", Category: models.ProductCategoryFinishedGood,
		UnitOfMeasure: "kg", SalesPrice: decimal.NewFromInt(12),
	})
	if err != nil {
		t.Fatalf("CreateProduct(butter): %v", err)
	}
	feed, err := models.CreateProduct(ctx, &models.NewProduct{
		Name: "Hay Feed", Category: models.ProductCategoryFeed, UnitOfMeasure: "kg",
	})
	if err != nil {
		t.Fatalf("CreateProduct(feed): %v", err)
	}
	medicine, err := models.CreateProduct(ctx, &models.NewProduct{
		Name: "Penicillin", Category: models.ProductCategoryMedicine,
	})
	if err != nil {
		t.Fatalf("CreateProduct(medicine): %v", err)
	}

	cow, err := models.CreateCattle(ctx, &models.NewCattle{TagNo: "C-001", ProductId: rawMilk.ID})
	if err != nil {
		t.Fatalf("CreateCattle: %v", err)
	}

	// 1) Purchase 100kg feed at 1.50 from a supplier and approve the bill.
	supplier, err := models.CreateSupplier(ctx, &models.NewSupplier{Name: "AgroSupply"})
	if err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}
	bill, err := models.CreateBill(ctx, &models.NewBill{
		SupplierId: supplier.ID,
		BillDate:   time.Now().UTC(),
		Details: []models.NewBillDetail{
			{ProductId: feed.ID, Qty: decimal.NewFromInt(100), UnitCost: decimal.RequireFromString("1.5")},
		},
	})
	if err != nil {
		t.Fatalf("CreateBill: %v", err)
	}
	if _, err := models.UpdateBillStatus(ctx, bill.ID, models.ApprovalStatusApproved); err != nil {
		t.Fatalf("approve bill: %v", err)
	}

	assertValuation(t, ctx, feed.ID, "100", "1.5", "150")
	assertBalance(t, ctx, feed.InventoryAccountId, "150")
	assertBalance(t, ctx, sysAccounts[models.AccountCodeAccountsPayable], "150")
	// rollup: feed inventory -> inventory assets -> current assets
	assertBalance(t, ctx, sysAccounts[models.AccountCodeInventoryAssets], "150")
	assertBalance(t, ctx, sysAccounts[models.AccountCodeCurrentAssets], "150")

	// approving an already-approved bill is rejected up front
	if _, err := models.UpdateBillStatus(ctx, bill.ID, models.ApprovalStatusApproved); !utils.IsValidationError(err) {
		t.Fatalf("double approve: expected validation error; got %v", err)
	}

	// effect-applied guard: even if the status is forced back, the applied
	// effect must refuse to apply twice
	db := config.GetDB()
	if err := db.Model(&models.Bill{}).Where("id = ?", bill.ID).
		Update("status", models.ApprovalStatusPending).Error; err != nil {
		t.Fatalf("force bill status: %v", err)
	}
	if _, err := models.UpdateBillStatus(ctx, bill.ID, models.ApprovalStatusApproved); !utils.IsConflictError(err) {
		t.Fatalf("re-apply with effect applied: expected conflict error; got %v", err)
	}
	assertValuation(t, ctx, feed.ID, "100", "1.5", "150")
	if err := db.Model(&models.Bill{}).Where("id = ?", bill.ID).
		Update("status", models.ApprovalStatusApproved).Error; err != nil {
		t.Fatalf("restore bill status: %v", err)
	}

	// 2) Feed 10kg to the cow: feed stock down, feed expense up.
	if _, err := models.RecordFeedUsage(ctx, &models.NewFeedUsage{
		CattleId:  cow.ID,
		ProductId: feed.ID,
		Qty:       decimal.NewFromInt(10),
		UsageDate: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("RecordFeedUsage: %v", err)
	}
	assertValuation(t, ctx, feed.ID, "90", "1.5", "135")
	assertBalance(t, ctx, feed.InventoryAccountId, "135")
	assertBalance(t, ctx, sysAccounts[models.AccountCodeFeedExpense], "15")

	// 3) Milk 30L. The trailing window has no prior production volume, so the
	// unit cost falls back to the product's standard cost of 2.00.
	if _, err := models.RecordMilkProduction(ctx, &models.NewMilkProduction{
		CattleId:       cow.ID,
		Qty:            decimal.NewFromInt(30),
		ProductionDate: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("RecordMilkProduction: %v", err)
	}
	assertValuation(t, ctx, rawMilk.ID, "30", "2", "60")
	assertBalance(t, ctx, rawMilk.InventoryAccountId, "60")
	assertBalance(t, ctx, sysAccounts[models.AccountCodeCostOfGoodsSold], "-60")

	// 4) Opening stock of medicine, then a completed treatment consumes one
	// unit at average cost.
	if _, err := models.SetOpeningStock(ctx, medicine.ID, decimal.NewFromInt(10), decimal.NewFromInt(5)); err != nil {
		t.Fatalf("SetOpeningStock: %v", err)
	}
	event, err := models.RecordHealthEvent(ctx, &models.NewHealthEvent{
		CattleId:  cow.ID,
		ProductId: medicine.ID,
		EventType: "Vaccination",
		EventDate: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("RecordHealthEvent: %v", err)
	}
	if _, err := models.CompleteHealthEvent(ctx, event.ID); err != nil {
		t.Fatalf("CompleteHealthEvent: %v", err)
	}
	assertValuation(t, ctx, medicine.ID, "9", "5", "45")
	assertBalance(t, ctx, medicine.InventoryAccountId, "45")
	assertBalance(t, ctx, sysAccounts[models.AccountCodeVeterinaryExpense], "5")

	if _, err := models.CompleteHealthEvent(ctx, event.ID); !utils.IsConflictError(err) {
		t.Fatalf("double complete: expected conflict error; got %v", err)
	}

	// 5) Process 20L raw milk (cost 40) into cheese 6kg and butter 4kg,
	// then cancel: the round trip must restore the pre-complete state.
	preMilk := snapshotValuation(t, ctx, rawMilk.ID)
	preMilkBal := snapshotBalance(t, ctx, rawMilk.InventoryAccountId)

	batch, err := models.CreateProcessingBatch(ctx, &models.NewProcessingBatch{
		InputProductId: rawMilk.ID,
		InputQty:       decimal.NewFromInt(20),
		StartDate:      time.Now().UTC(),
		Outputs: []models.NewBatchOutput{
			{ProductId: cheese.ID, Qty: decimal.NewFromInt(6)},
			{ProductId: butter.ID, Qty: decimal.NewFromInt(4)},
		},
	})
	if err != nil {
		t.Fatalf("CreateProcessingBatch: %v", err)
	}
	if _, err := models.UpdateProcessingBatchStatus(ctx, batch.ID, models.BatchStatusCompleted); err != nil {
		t.Fatalf("complete batch: %v", err)
	}

	// 40 total allocated 6:4 -> cheese 24, butter 16
	assertValuation(t, ctx, rawMilk.ID, "10", "2", "20")
	assertValuation(t, ctx, cheese.ID, "6", "4", "24")
	assertValuation(t, ctx, butter.ID, "4", "4", "16")

	if _, err := models.UpdateProcessingBatchStatus(ctx, batch.ID, models.BatchStatusCancelled); err != nil {
		t.Fatalf("cancel batch: %v", err)
	}
	postMilk := snapshotValuation(t, ctx, rawMilk.ID)
	if postMilk.Qty.Sub(preMilk.Qty).Abs().GreaterThan(tolerance()) ||
		postMilk.TotalCost.Sub(preMilk.TotalCost).Abs().GreaterThan(tolerance()) {
		t.Fatalf("cancel did not restore raw milk valuation: pre=%s/%s post=%s/%s",
			preMilk.Qty, preMilk.TotalCost, postMilk.Qty, postMilk.TotalCost)
	}
	postMilkBal := snapshotBalance(t, ctx, rawMilk.InventoryAccountId)
	if postMilkBal.Sub(preMilkBal).Abs().GreaterThan(tolerance()) {
		t.Fatalf("cancel did not restore raw milk account: pre=%s post=%s", preMilkBal, postMilkBal)
	}
	assertValuation(t, ctx, cheese.ID, "0", "0", "0")

	// cancelled is terminal
	if _, err := models.UpdateProcessingBatchStatus(ctx, batch.ID, models.BatchStatusCompleted); !utils.IsValidationError(err) {
		t.Fatalf("cancelled->completed: expected validation error; got %v", err)
	}

	// 6) Run a second batch for real so there is cheese to sell.
	batch2, err := models.CreateProcessingBatch(ctx, &models.NewProcessingBatch{
		InputProductId: rawMilk.ID,
		InputQty:       decimal.NewFromInt(20),
		StartDate:      time.Now().UTC(),
		Outputs: []models.NewBatchOutput{
			{ProductId: cheese.ID, Qty: decimal.NewFromInt(6)},
			{ProductId: butter.ID, Qty: decimal.NewFromInt(4)},
		},
	})
	if err != nil {
		t.Fatalf("CreateProcessingBatch(2): %v", err)
	}
	if _, err := models.UpdateProcessingBatchStatus(ctx, batch2.ID, models.BatchStatusCompleted); err != nil {
		t.Fatalf("complete batch 2: %v", err)
	}

	// 7) Sell 5kg cheese at 10. ActualCost snapshots the average of 4.00;
	// rejection later restores quantity and cost exactly.
	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{Name: "City Mart"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	invoice, err := models.CreateSalesInvoice(ctx, &models.NewSalesInvoice{
		CustomerId:  customer.ID,
		InvoiceDate: time.Now().UTC(),
		Details: []models.NewSalesInvoiceDetail{
			{ProductId: cheese.ID, Qty: decimal.NewFromInt(5), UnitPrice: decimal.NewFromInt(10)},
		},
	})
	if err != nil {
		t.Fatalf("CreateSalesInvoice: %v", err)
	}
	if _, err := models.UpdateSalesInvoiceStatus(ctx, invoice.ID, models.ApprovalStatusApproved); err != nil {
		t.Fatalf("approve invoice: %v", err)
	}

	approved, err := models.GetSalesInvoice(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("GetSalesInvoice: %v", err)
	}
	if !approved.Details[0].ActualCost.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected line actual cost 20; got %s", approved.Details[0].ActualCost)
	}
	assertValuation(t, ctx, cheese.ID, "1", "4", "4")
	assertBalance(t, ctx, sysAccounts[models.AccountCodeAccountsReceivable], "50")
	assertBalance(t, ctx, cheese.SalesAccountId, "50")

	if _, err := models.UpdateSalesInvoiceStatus(ctx, invoice.ID, models.ApprovalStatusRejected); err != nil {
		t.Fatalf("reject invoice: %v", err)
	}
	assertValuation(t, ctx, cheese.ID, "6", "4", "24")
	assertBalance(t, ctx, sysAccounts[models.AccountCodeAccountsReceivable], "0")
	assertBalance(t, ctx, cheese.SalesAccountId, "0")

	// 8) Insufficient stock never mutates the record.
	big, err := models.CreateSalesInvoice(ctx, &models.NewSalesInvoice{
		CustomerId:  customer.ID,
		InvoiceDate: time.Now().UTC(),
		Details: []models.NewSalesInvoiceDetail{
			{ProductId: cheese.ID, Qty: decimal.NewFromInt(1000), UnitPrice: decimal.NewFromInt(10)},
		},
	})
	if err != nil {
		t.Fatalf("CreateSalesInvoice(big): %v", err)
	}
	if _, err := models.UpdateSalesInvoiceStatus(ctx, big.ID, models.ApprovalStatusApproved); !utils.IsConflictError(err) {
		t.Fatalf("oversell: expected conflict error; got %v", err)
	}
	assertValuation(t, ctx, cheese.ID, "6", "4", "24")

	// 9) Write off one spoiled kg of cheese.
	writeOff, err := models.CreateInventoryWriteOff(ctx, &models.NewInventoryWriteOff{
		ProductId:    cheese.ID,
		Qty:          decimal.NewFromInt(1),
		Reason:       "spoilage",
		WriteOffDate: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateInventoryWriteOff: %v", err)
	}
	if _, err := models.UpdateInventoryWriteOffStatus(ctx, writeOff.ID, models.ApprovalStatusApproved); err != nil {
		t.Fatalf("approve write-off: %v", err)
	}
	assertValuation(t, ctx, cheese.ID, "5", "4", "20")
	assertBalance(t, ctx, sysAccounts[models.AccountCodeInventoryWriteOff], "4")

	// 10) Two concurrent approvals of the same bill: exactly one applies the
	// effect, the loser fails on the lock or the in-tx transition check, and
	// the postings land once.
	bill2, err := models.CreateBill(ctx, &models.NewBill{
		SupplierId: supplier.ID,
		BillDate:   time.Now().UTC(),
		Details: []models.NewBillDetail{
			{ProductId: feed.ID, Qty: decimal.NewFromInt(10), UnitCost: decimal.RequireFromString("1.5")},
		},
	})
	if err != nil {
		t.Fatalf("CreateBill(2): %v", err)
	}
	results := make([]error, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = models.UpdateBillStatus(ctx, bill2.ID, models.ApprovalStatusApproved)
		}(i)
	}
	wg.Wait()
	succeeded := 0
	for _, rerr := range results {
		if rerr == nil {
			succeeded++
		}
	}
	if succeeded != 1 {
		t.Fatalf("concurrent approve: expected exactly 1 success; got %d (errors: %v, %v)", succeeded, results[0], results[1])
	}
	assertValuation(t, ctx, feed.ID, "100", "1.5", "150")
	assertBalance(t, ctx, feed.InventoryAccountId, "150")
	assertBalance(t, ctx, sysAccounts[models.AccountCodeAccountsPayable], "165")

	// 11) Nothing drifted: every parent equals the sum of its children and
	// every valuation satisfies total = qty * avg.
	accountDrift, err := models.VerifyAccountRollups(ctx, farmId)
	if err != nil {
		t.Fatalf("VerifyAccountRollups: %v", err)
	}
	if len(accountDrift) > 0 {
		t.Fatalf("account rollup drift: %v", accountDrift)
	}
	valuationDrift, err := models.VerifyInventoryValuations(ctx, farmId)
	if err != nil {
		t.Fatalf("VerifyInventoryValuations: %v", err)
	}
	if len(valuationDrift) > 0 {
		t.Fatalf("valuation drift: %v", valuationDrift)
	}
}

func tolerance() decimal.Decimal {
	return decimal.RequireFromString("0.0001")
}

func snapshotValuation(t *testing.T, ctx context.Context, productId int) *models.InventoryValuation {
	t.Helper()
	v, err := models.GetInventoryValuation(ctx, productId)
	if err != nil {
		t.Fatalf("GetInventoryValuation(%d): %v", productId, err)
	}
	return v
}

func snapshotBalance(t *testing.T, ctx context.Context, accountId int) decimal.Decimal {
	t.Helper()
	account, err := models.GetAccount(ctx, accountId)
	if err != nil {
		t.Fatalf("GetAccount(%d): %v", accountId, err)
	}
	return account.CurrentBalance
}

func assertValuation(t *testing.T, ctx context.Context, productId int, qty, avg, total string) {
	t.Helper()
	v := snapshotValuation(t, ctx, productId)
	if v.Qty.Sub(decimal.RequireFromString(qty)).Abs().GreaterThan(tolerance()) ||
		v.AverageCost.Sub(decimal.RequireFromString(avg)).Abs().GreaterThan(tolerance()) ||
		v.TotalCost.Sub(decimal.RequireFromString(total)).Abs().GreaterThan(tolerance()) {
		t.Fatalf("product %d: expected qty=%s avg=%s total=%s; got qty=%s avg=%s total=%s",
			productId, qty, avg, total, v.Qty, v.AverageCost, v.TotalCost)
	}
}

func assertBalance(t *testing.T, ctx context.Context, accountId int, expected string) {
	t.Helper()
	balance := snapshotBalance(t, ctx, accountId)
	if balance.Sub(decimal.RequireFromString(expected)).Abs().GreaterThan(tolerance()) {
		t.Fatalf("account %d: expected balance %s; got %s", accountId, expected, balance)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("dairybooks-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("dairybooks-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=dairybooks_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
