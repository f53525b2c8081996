package automation

import "errors"

// Sentinel errors for the automation stores.
var (
	ErrRuleNotFound     = errors.New("automation rule not found")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrProfileNotFound  = errors.New("profile not found")
	ErrInvalidTrigger   = errors.New("unknown trigger type")
	ErrInvalidAction    = errors.New("unknown action type")
)
