package utils

import (
	"context"
	"reflect"

	"github.com/thazinfarms/dairybooks_backend/config"
)

// check if id exists, using ctx's farm_id in WHERE, return RecordNotFound Error
func ValidateResourceId[T any](ctx context.Context, farmId string, id interface{}) error {

	count, err := ResourceCountWhere[T](ctx, farmId, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}

	return nil
}

// check if ALL id exists, using ctx's farm_id in WHERE, return RecordNotFound Error
func ValidateResourcesId[M any, ID comparable](ctx context.Context, farmId string, ids []ID) error {
	unqIds := UniqueSlice(ids)

	count, err := ResourceCountWhere[M](ctx, farmId, "id IN ?", unqIds)
	if err != nil {
		return err
	}
	if count != int64(len(unqIds)) {
		return ErrorRecordNotFound
	}

	return nil
}

func ValidateUnique[T any](ctx context.Context, farmId string, column string, value interface{}, exceptId interface{}) error {
	var count int64
	var err error
	if reflect.ValueOf(exceptId).IsZero() {
		count, err = ResourceCountWhere[T](ctx, farmId, column+" = ?", value)
	} else {
		count, err = ResourceCountWhere[T](ctx, farmId, column+" = ? AND NOT id = ?", value, exceptId)
	}

	if err != nil {
		return err
	}
	if count > 0 {
		return NewConflictError(GetTypeName[T](), 0, "duplicate %s", column)
	}
	return nil
}

// count records, using WHERE farm_id = ? AND $condition
// farm_id can be blank for admin tooling
func ResourceCountWhere[T any](ctx context.Context, farmId string, condition string, value ...interface{}) (int64, error) {
	var model T

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&model)
	var count int64
	if farmId != "" {
		dbCtx = dbCtx.Where("farm_id = ?", farmId)
	}
	dbCtx = dbCtx.Where(condition, value...)
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
