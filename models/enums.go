package models

import "errors"

type VoucherType string

const (
	VoucherTypeSales    VoucherType = "Sales"
	VoucherTypePurchase VoucherType = "Purchase"
	VoucherTypePayment  VoucherType = "Payment"
	VoucherTypeReceipt  VoucherType = "Receipt"
	VoucherTypeJournal  VoucherType = "Journal"
	VoucherTypeContra   VoucherType = "Contra"
)

func ParseVoucherType(s string) (VoucherType, error) {
	switch VoucherType(s) {
	case VoucherTypeSales, VoucherTypePurchase, VoucherTypePayment,
		VoucherTypeReceipt, VoucherTypeJournal, VoucherTypeContra:
		return VoucherType(s), nil
	}
	return "", errors.New("invalid voucher type")
}

type GrnStatus string

const (
	GrnStatusPendingBill GrnStatus = "PENDING_BILL"
	GrnStatusBilled      GrnStatus = "BILLED"
)

type GroupNature string

const (
	GroupNatureAsset     GroupNature = "Asset"
	GroupNatureLiability GroupNature = "Liability"
	GroupNatureIncome    GroupNature = "Income"
	GroupNatureExpense   GroupNature = "Expense"
)

func ParseGroupNature(s string) (GroupNature, error) {
	switch GroupNature(s) {
	case GroupNatureAsset, GroupNatureLiability, GroupNatureIncome, GroupNatureExpense:
		return GroupNature(s), nil
	}
	return "", errors.New("invalid group nature")
}

type UserRole string

const (
	UserRoleAdmin    UserRole = "admin"
	UserRoleOperator UserRole = "operator"
	UserRoleGuest    UserRole = "guest"
)

// Permission names gate mutating operations. Admins bypass the check.
const (
	PermissionFinance = "finance"
	PermissionStore   = "store"
	PermissionMasters = "masters"
	PermissionUsers   = "users"
)

// StockMovementKind tells AdjustStock why stock is moving, which decides
// whether std_cost is refreshed and whether a batch row may be created.
type StockMovementKind string

const (
	StockMovementSale       StockMovementKind = "Sale"
	StockMovementPurchase   StockMovementKind = "Purchase"
	StockMovementGrnReceipt StockMovementKind = "GrnReceipt"
	StockMovementReversal   StockMovementKind = "Reversal"
)
