package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
	"github.com/thazinfarms/dairybooks_backend/config"
	"github.com/ttacon/libphonenumber"
)

var CountryCode = "MM"

var validate = validator.New()

// ValidateStruct runs validator/v10 tag validation on an input struct and
// folds the first failure into a ValidationError.
func ValidateStruct(input interface{}) error {
	if err := validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			ve := verrs[0]
			return NewValidationError("field %s failed on %s", ve.Field(), ve.Tag())
		}
		return NewValidationError("%s", err.Error())
	}
	return nil
}

func ValidatePhoneNumber(phoneNumber, countryCode string) error {
	p, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil {
		return NewValidationError("phone number is not valid")
	}

	if !libphonenumber.IsValidNumber(p) {
		return NewValidationError("phone number is not valid")
	}

	return nil
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

// returns slice removing duplicate elements
func UniqueSlice[T comparable](slice []T) []T {
	inResult := make(map[T]bool)
	var result []T
	for _, elm := range slice {
		if _, ok := inResult[elm]; !ok {
			inResult[elm] = true
			result = append(result, elm)
		}
	}
	return result
}

// TrailingWindow returns [end-days, end] for cost estimation windows.
func TrailingWindow(end time.Time, days int) (time.Time, time.Time) {
	return end.AddDate(0, 0, -days), end
}

// FarmLock serializes ledger postings per farm. The caller must hold the
// returned lock across its whole unit of work and release it after commit or
// rollback; the TTL only bounds how long a crashed holder can block others.
func FarmLock(ctx context.Context, farmId string, lockType string, moduleName string, functionName string) (*redislock.Lock, error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		config.LogError(logger, moduleName, functionName, "Redis lock not initialized", farmId, errors.New("redis lock is nil"))
		return nil, errors.New("service not ready (redis lock not initialized)")
	}
	lockKey := fmt.Sprintf("%s:%s", lockType, farmId)
	lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, nil)
	if err == redislock.ErrNotObtained {
		config.LogError(logger, moduleName, functionName, "Could not obtain lock for farmId", farmId, err)
		return nil, errors.New("could not obtain lock for farmId")
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining lock for farmId", farmId, err)
		return nil, err
	}
	return lock, nil
}
