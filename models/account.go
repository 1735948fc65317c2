package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/thazinfarms/dairybooks_backend/config"
	"github.com/thazinfarms/dairybooks_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maximum ancestor hops before a parent chain is treated as cyclic
const maxAccountDepth = 16

type Account struct {
	ID              int               `gorm:"primary_key" json:"id"`
	FarmId          string            `gorm:"index;not null" json:"farm_id"`
	DetailType      AccountDetailType `gorm:"type:enum('OtherAsset','Cash','Bank','Stock','AccountsReceivable','AccountsPayable','Equity','Income','Expense','CostOfGoodsSold','OtherExpense');default:'Expense';index;size:50;not null" json:"detail_type"`
	MainType        AccountMainType   `gorm:"type:enum('Asset','Liability','Equity','Income','Expense');default:'Expense';index;size:10;not null" json:"main_type"`
	Name            string            `gorm:"index;size:100;not null" json:"name"`
	Code            string            `gorm:"index;size:10" json:"code"`
	Description     string            `gorm:"type:text" json:"description"`
	ParentAccountId int               `gorm:"index;not null;default:0" json:"parent_account_id"`
	CurrentBalance  decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"current_balance"`
	IsActive        *bool             `gorm:"not null;default:true" json:"is_active"`
	IsSystemDefault *bool             `gorm:"not null;default:false" json:"is_system_default"`
	CreatedAt       time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewAccount struct {
	DetailType      AccountDetailType `json:"detail_type" validate:"required"`
	MainType        AccountMainType   `json:"main_type" validate:"required"`
	Name            string            `json:"name" validate:"required"`
	Code            string            `json:"code"`
	Description     string            `json:"description"`
	ParentAccountId int               `json:"parent_account_id"`
}

func (a *Account) GetId() int {
	return a.ID
}

// validate input for both create & update. (id = 0 for create)
func (input *NewAccount) validate(ctx context.Context, farmId string, id int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if id > 0 {
		if id == input.ParentAccountId {
			return utils.NewValidationError("self-parent not allowed")
		}
		if err := utils.ValidateResourceId[Account](ctx, farmId, id); err != nil {
			return err
		}
	}
	if err := utils.ValidateUnique[Account](ctx, farmId, "name", input.Name, id); err != nil {
		return err
	}
	if input.Code != "" {
		if err := utils.ValidateUnique[Account](ctx, farmId, "code", input.Code, id); err != nil {
			return err
		}
	}
	if input.ParentAccountId > 0 {
		if err := utils.ValidateResourceId[Account](ctx, farmId, input.ParentAccountId); err != nil {
			return errors.New("parent not found")
		}
	}
	return nil
}

func CreateAccount(ctx context.Context, input *NewAccount) (*Account, error) {

	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}

	if err := input.validate(ctx, farmId, 0); err != nil {
		return nil, err
	}

	account := Account{
		FarmId:          farmId,
		DetailType:      input.DetailType,
		MainType:        input.MainType,
		Name:            input.Name,
		Code:            input.Code,
		Description:     input.Description,
		ParentAccountId: input.ParentAccountId,
		IsActive:        utils.NewTrue(),
		IsSystemDefault: utils.NewFalse(),
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func GetAccount(ctx context.Context, id int) (*Account, error) {
	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}
	return utils.FetchModel[Account](ctx, farmId, id)
}

func GetAccounts(ctx context.Context, name *string) ([]*Account, error) {

	db := config.GetDB()
	var results []*Account

	farmId, ok := utils.GetFarmIdFromContext(ctx)
	if !ok || farmId == "" {
		return nil, ErrFarmIdRequired
	}

	dbCtx := db.WithContext(ctx).Where("farm_id = ?", farmId)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	err := dbCtx.Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// EnsureAccount creates the named account once per farm; subsequent calls
// return the existing row. All system-default accounts are created through
// this at farm setup, so posting paths never race on lookup-or-create.
func EnsureAccount(tx *gorm.DB, ctx context.Context, farmId string, input *NewSystemAccount) (*Account, error) {

	var account Account
	err := tx.WithContext(ctx).
		Where("farm_id = ? AND code = ?", farmId, input.Code).
		First(&account).Error
	if err == nil {
		return &account, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	account = Account{
		FarmId:          farmId,
		DetailType:      input.DetailType,
		MainType:        input.MainType,
		Name:            input.Name,
		Code:            input.Code,
		Description:     input.Description,
		ParentAccountId: input.ParentAccountId,
		IsActive:        utils.NewTrue(),
		IsSystemDefault: utils.NewTrue(),
	}
	if err := tx.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// GetSystemAccounts resolves the farm's system account codes to ids,
// cached in redis since the chart is seeded once and never renamed.
func GetSystemAccounts(farmId string) (map[string]int, error) {
	var accounts []*Account
	var sysAccounts map[string]int

	exists, err := config.GetRedisObject("SystemAccounts:"+farmId, &sysAccounts)
	if err != nil {
		return nil, err
	}
	if !exists {
		db := config.GetDB()
		if err := db.Select("id", "code").
			Where("farm_id = ?", farmId).
			Where("is_system_default = ?", true).
			Find(&accounts).Error; err != nil {
			return nil, err
		}
		sysAccounts = make(map[string]int)
		for _, acc := range accounts {
			sysAccounts[acc.Code] = acc.ID
		}
		if err := config.SetRedisObject("SystemAccounts:"+farmId, &sysAccounts, 0); err != nil {
			return nil, err
		}
	}
	return sysAccounts, nil
}

// PostAccountDelta mutates a leaf account's balance by amount and rolls the
// change up through every ancestor, all on the caller's tx. Each leaf posting
// also appends an AccountTransaction audit row. Posting to an account that
// has children is rejected: parents carry rollup balances only.
//
// No negative-balance constraint is enforced here; that is a caller concern.
func PostAccountDelta(tx *gorm.DB, farmId string, accountId int, amount decimal.Decimal, refType ReferenceType, refId int, description string) error {

	var account Account
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("farm_id = ?", farmId).First(&account, accountId).Error; err != nil {
		return utils.ErrorRecordNotFound
	}

	var childCount int64
	if err := tx.Model(&Account{}).
		Where("farm_id = ? AND parent_account_id = ?", farmId, accountId).
		Count(&childCount).Error; err != nil {
		return err
	}
	if childCount > 0 {
		return utils.NewValidationError("account %q is a summary account and cannot be posted to", account.Name)
	}

	if err := tx.Model(&account).
		Update("current_balance", account.CurrentBalance.Add(amount)).Error; err != nil {
		return err
	}

	entry := AccountTransaction{
		FarmId:        farmId,
		AccountId:     accountId,
		Amount:        amount,
		ReferenceType: refType,
		ReferenceId:   refId,
		Description:   description,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return err
	}

	return rollupAncestorBalances(tx, farmId, account.ParentAccountId)
}

// rollupAncestorBalances recomputes each ancestor as the sum of its direct
// children, walking to the root inside the same tx as the leaf mutation.
func rollupAncestorBalances(tx *gorm.DB, farmId string, parentId int) error {

	depth := 0
	for parentId > 0 {
		depth++
		if depth > maxAccountDepth {
			return utils.NewConsistencyError("account tree exceeds depth %d (cycle suspected) at account %d", maxAccountDepth, parentId)
		}

		var parent Account
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("farm_id = ?", farmId).First(&parent, parentId).Error; err != nil {
			return utils.NewConsistencyError("parent account %d missing during rollup", parentId)
		}

		var childSum decimal.NullDecimal
		if err := tx.Model(&Account{}).
			Select("SUM(current_balance)").
			Where("farm_id = ? AND parent_account_id = ?", farmId, parentId).
			Scan(&childSum).Error; err != nil {
			return err
		}

		sum := decimal.Zero
		if childSum.Valid {
			sum = childSum.Decimal
		}
		if err := tx.Model(&parent).Update("current_balance", sum).Error; err != nil {
			return err
		}

		parentId = parent.ParentAccountId
	}
	return nil
}

// VerifyAccountRollups re-checks that every parent account equals the sum of
// its direct children. Returns a drift report; any entry is a consistency
// failure that warrants investigation, never silent correction.
func VerifyAccountRollups(ctx context.Context, farmId string) ([]string, error) {

	db := config.GetDB()
	var parents []*Account
	if err := db.WithContext(ctx).
		Where("farm_id = ? AND id IN (SELECT DISTINCT parent_account_id FROM accounts WHERE farm_id = ? AND parent_account_id > 0)", farmId, farmId).
		Find(&parents).Error; err != nil {
		return nil, err
	}

	var drift []string
	for _, parent := range parents {
		var childSum decimal.NullDecimal
		if err := db.WithContext(ctx).Model(&Account{}).
			Select("SUM(current_balance)").
			Where("farm_id = ? AND parent_account_id = ?", farmId, parent.ID).
			Scan(&childSum).Error; err != nil {
			return nil, err
		}
		sum := decimal.Zero
		if childSum.Valid {
			sum = childSum.Decimal
		}
		if parent.CurrentBalance.Sub(sum).Abs().GreaterThan(costTolerance) {
			drift = append(drift, "account "+parent.Name+": balance "+parent.CurrentBalance.String()+" != children sum "+sum.String())
		}
	}
	return drift, nil
}
