package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/hisabworks/hisab_backend/config"
	"github.com/hisabworks/hisab_backend/models"
	"github.com/hisabworks/hisab_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// End-to-end posting flows against a real MySQL: stock conservation, voucher
// number uniqueness vs. edit, GRN receive-then-bill, back-date rejection and
// transactional atomicity.
func TestVoucherPostingLifecycle(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "hisab_test")

	db := config.ConnectDatabaseWithRetry()
	if err := models.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}

	adminCtx := models.SetActorInContext(context.Background(), models.Actor{
		Username: "admin",
		Name:     "Administrator",
		Role:     models.UserRoleAdmin,
	})
	operatorCtx := models.SetActorInContext(context.Background(), models.Actor{
		Username:    "clerk",
		Name:        "Clerk One",
		Role:        models.UserRoleOperator,
		Permissions: []string{models.PermissionFinance, models.PermissionStore},
	})

	// Masters on top of the seeded groups.
	cash := mustCreateLedger(t, adminCtx, db, "Cash", "Cash-in-Hand")
	sales := mustCreateLedger(t, adminCtx, db, "Local Sales", "Sales Accounts")
	purchases := mustCreateLedger(t, adminCtx, db, "General Purchases", "Purchase Accounts")
	vendor := mustCreateLedger(t, adminCtx, db, "Acme Traders", "Sundry Creditors")

	widget, err := models.CreateItem(adminCtx, db, &models.NewItem{Name: "Widget"})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	today := time.Now()

	t.Run("purchase then sale conserves stock", func(t *testing.T) {
		// Direct purchase: 5 @ 10.
		_, err := models.PostVoucher(adminCtx, db, &models.VoucherInput{
			VoucherNumber: "PUR-001",
			Type:          "Purchase",
			VoucherDate:   today,
			Narration:     "Opening purchase",
			AccountingEntries: []models.AccountingEntryInput{
				{LedgerId: purchases.ID, Debit: decimal.NewFromInt(50)},
				{LedgerId: vendor.ID, Credit: decimal.NewFromInt(50)},
			},
			InventoryEntries: []models.InventoryEntryInput{
				{ItemId: widget.ID, Qty: decimal.NewFromInt(5), Rate: decimal.NewFromInt(10)},
			},
		})
		if err != nil {
			t.Fatalf("PostVoucher purchase: %v", err)
		}
		assertStock(t, db, widget.ID, "5")

		item, err := models.GetItem(adminCtx, db, widget.ID)
		if err != nil {
			t.Fatalf("GetItem: %v", err)
		}
		if !item.StdCost.Equal(decimal.NewFromInt(10)) {
			t.Fatalf("std_cost = %s, want 10", item.StdCost)
		}

		// Sale of 3 brings stock to 2.
		_, err = models.PostVoucher(adminCtx, db, &models.VoucherInput{
			VoucherNumber: "SAL-001",
			Type:          "Sales",
			VoucherDate:   today,
			AccountingEntries: []models.AccountingEntryInput{
				{LedgerId: cash.ID, Debit: decimal.NewFromInt(45)},
				{LedgerId: sales.ID, Credit: decimal.NewFromInt(45)},
			},
			InventoryEntries: []models.InventoryEntryInput{
				{ItemId: widget.ID, Qty: decimal.NewFromInt(3), Rate: decimal.NewFromInt(15)},
			},
		})
		if err != nil {
			t.Fatalf("PostVoucher sale: %v", err)
		}
		assertStock(t, db, widget.ID, "2")
	})

	t.Run("duplicate voucher number conflicts, same-id edit passes", func(t *testing.T) {
		_, err := models.PostVoucher(adminCtx, db, &models.VoucherInput{
			VoucherNumber: "PUR-001",
			Type:          "Payment",
			VoucherDate:   today,
			AccountingEntries: []models.AccountingEntryInput{
				{LedgerId: vendor.ID, Debit: decimal.NewFromInt(50)},
				{LedgerId: cash.ID, Credit: decimal.NewFromInt(50)},
			},
		})
		if err == nil {
			t.Fatal("duplicate voucher number accepted")
		}
		if !utils.IsConflict(err) {
			t.Fatalf("expected conflict error, got %T: %v", err, err)
		}

		// Edit of PUR-001 under its own id keeps the number and must not
		// double-count stock.
		existing, err := models.GetAllVouchers(adminCtx, db)
		if err != nil {
			t.Fatalf("GetAllVouchers: %v", err)
		}
		var pur *models.Voucher
		for _, v := range existing {
			if v.VoucherNumber == "PUR-001" {
				pur = v
			}
		}
		if pur == nil {
			t.Fatal("PUR-001 not found")
		}
		_, err = models.PostVoucher(adminCtx, db, &models.VoucherInput{
			ID:            pur.ID,
			VoucherNumber: "PUR-001",
			Type:          "Purchase",
			VoucherDate:   today,
			Narration:     "Opening purchase (edited)",
			AccountingEntries: []models.AccountingEntryInput{
				{LedgerId: purchases.ID, Debit: decimal.NewFromInt(50)},
				{LedgerId: vendor.ID, Credit: decimal.NewFromInt(50)},
			},
			InventoryEntries: []models.InventoryEntryInput{
				{ItemId: widget.ID, Qty: decimal.NewFromInt(5), Rate: decimal.NewFromInt(10)},
			},
		})
		if err != nil {
			t.Fatalf("edit PUR-001: %v", err)
		}
		assertStock(t, db, widget.ID, "2")

		edited, err := models.GetVoucher(adminCtx, db, pur.ID)
		if err != nil {
			t.Fatalf("GetVoucher: %v", err)
		}
		if len(edited.AccountingEntries) != 2 || len(edited.InventoryEntries) != 1 {
			t.Fatalf("edit left stale entries: acc=%d inv=%d",
				len(edited.AccountingEntries), len(edited.InventoryEntries))
		}
	})

	t.Run("grn receipt then billing counts stock once", func(t *testing.T) {
		expiry := today.AddDate(1, 0, 0)
		grn, err := models.CreateGRN(operatorCtx, db, &models.NewGrn{
			GrnNumber: "GRN-001",
			VendorId:  vendor.ID,
			GrnDate:   today,
			Items: []models.NewGrnItem{
				{ItemId: widget.ID, Qty: decimal.NewFromInt(20), Rate: decimal.NewFromInt(12),
					BatchNumber: "B-42", ExpiryDate: &expiry},
			},
		})
		if err != nil {
			t.Fatalf("CreateGRN: %v", err)
		}
		if grn.Status != models.GrnStatusPendingBill {
			t.Fatalf("fresh grn status = %s", grn.Status)
		}
		assertStock(t, db, widget.ID, "22")

		batches, err := models.GetBatchesByItem(adminCtx, db, widget.ID)
		if err != nil {
			t.Fatalf("GetBatchesByItem: %v", err)
		}
		if len(batches) != 1 || batches[0].BatchNumber != "B-42" {
			t.Fatalf("batch row missing: %+v", batches)
		}

		// Billing the GRN must not re-adjust stock.
		billed, err := models.PostVoucher(operatorCtx, db, &models.VoucherInput{
			VoucherNumber: "PUR-002",
			Type:          "Purchase",
			VoucherDate:   today,
			GrnId:         &grn.ID,
			AccountingEntries: []models.AccountingEntryInput{
				{LedgerId: purchases.ID, Debit: decimal.NewFromInt(240)},
				{LedgerId: vendor.ID, Credit: decimal.NewFromInt(240)},
			},
			InventoryEntries: []models.InventoryEntryInput{
				{ItemId: widget.ID, Qty: decimal.NewFromInt(20), Rate: decimal.NewFromInt(12)},
			},
		})
		if err != nil {
			t.Fatalf("PostVoucher grn bill: %v", err)
		}
		assertStock(t, db, widget.ID, "22")

		got, err := models.GetGrn(adminCtx, db, grn.ID)
		if err != nil {
			t.Fatalf("GetGrn: %v", err)
		}
		if got.Status != models.GrnStatusBilled {
			t.Fatalf("grn status after billing = %s", got.Status)
		}

		// Re-saving the bill is idempotent for both stock and GRN status.
		_, err = models.PostVoucher(operatorCtx, db, &models.VoucherInput{
			ID:            billed.ID,
			VoucherNumber: "PUR-002",
			Type:          "Purchase",
			VoucherDate:   today,
			GrnId:         &grn.ID,
			AccountingEntries: []models.AccountingEntryInput{
				{LedgerId: purchases.ID, Debit: decimal.NewFromInt(240)},
				{LedgerId: vendor.ID, Credit: decimal.NewFromInt(240)},
			},
			InventoryEntries: []models.InventoryEntryInput{
				{ItemId: widget.ID, Qty: decimal.NewFromInt(20), Rate: decimal.NewFromInt(12)},
			},
		})
		if err != nil {
			t.Fatalf("re-save grn bill: %v", err)
		}
		assertStock(t, db, widget.ID, "22")
	})

	t.Run("back-dated entry by operator leaves no rows", func(t *testing.T) {
		before := countRows(t, db, &models.Voucher{})
		historiesBefore := countRows(t, db, &models.History{})

		_, err := models.PostVoucher(operatorCtx, db, &models.VoucherInput{
			VoucherNumber: "SAL-OLD",
			Type:          "Sales",
			VoucherDate:   today.AddDate(0, 0, -2),
			AccountingEntries: []models.AccountingEntryInput{
				{LedgerId: cash.ID, Debit: decimal.NewFromInt(10)},
				{LedgerId: sales.ID, Credit: decimal.NewFromInt(10)},
			},
		})
		if err == nil {
			t.Fatal("back-dated voucher accepted for operator")
		}
		if !utils.IsSecurity(err) {
			t.Fatalf("expected security error, got %T: %v", err, err)
		}
		if got := countRows(t, db, &models.Voucher{}); got != before {
			t.Fatalf("voucher count changed: %d -> %d", before, got)
		}
		if got := countRows(t, db, &models.History{}); got != historiesBefore {
			t.Fatalf("history count changed: %d -> %d", historiesBefore, got)
		}
	})

	t.Run("mid-transaction failure rolls everything back", func(t *testing.T) {
		vouchersBefore := countRows(t, db, &models.Voucher{})
		entriesBefore := countRows(t, db, &models.AccountingEntry{})

		// References a GRN that does not exist; the failure happens after the
		// header insert, inside the transaction.
		missingGrn := 99999
		_, err := models.PostVoucher(adminCtx, db, &models.VoucherInput{
			VoucherNumber: "PUR-BROKEN",
			Type:          "Purchase",
			VoucherDate:   today,
			GrnId:         &missingGrn,
			AccountingEntries: []models.AccountingEntryInput{
				{LedgerId: purchases.ID, Debit: decimal.NewFromInt(100)},
				{LedgerId: vendor.ID, Credit: decimal.NewFromInt(100)},
			},
		})
		if err == nil {
			t.Fatal("voucher with missing grn accepted")
		}
		if got := countRows(t, db, &models.Voucher{}); got != vouchersBefore {
			t.Fatalf("voucher row leaked: %d -> %d", vouchersBefore, got)
		}
		if got := countRows(t, db, &models.AccountingEntry{}); got != entriesBefore {
			t.Fatalf("accounting entries leaked: %d -> %d", entriesBefore, got)
		}
		assertStock(t, db, widget.ID, "22")
	})
}

func mustCreateLedger(t *testing.T, ctx context.Context, db *gorm.DB, name, groupName string) *models.Ledger {
	t.Helper()
	var group models.Group
	if err := db.Where("name = ?", groupName).First(&group).Error; err != nil {
		t.Fatalf("seeded group %q missing: %v", groupName, err)
	}
	ledger, err := models.CreateLedger(ctx, db, &models.NewLedger{Name: name, GroupId: group.ID})
	if err != nil {
		t.Fatalf("CreateLedger(%s): %v", name, err)
	}
	return ledger
}

func assertStock(t *testing.T, db *gorm.DB, itemId int, want string) {
	t.Helper()
	var item models.Item
	if err := db.First(&item, itemId).Error; err != nil {
		t.Fatalf("load item: %v", err)
	}
	if !item.CurrentStock.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("current_stock = %s, want %s", item.CurrentStock, want)
	}
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var count int64
	if err := db.Model(model).Count(&count).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return count
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("hisab-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=hisab_test",
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
