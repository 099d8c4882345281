package dto

import "time"

type BalanceResponse struct {
	Balance int64 `json:"balance"`
}

type ConsumeResponse struct {
	Success bool  `json:"success"`
	Balance int64 `json:"balance"`
}

type ActionRequest struct {
	Action string `json:"action"`
}

type RecordUsageResponse struct {
	Success bool  `json:"success"`
	Used    int64 `json:"used"`
}

type ProfileResponse struct {
	ID                           string     `json:"id"`
	Email                        string     `json:"email"`
	Username                     string     `json:"username"`
	Plan                         string     `json:"plan"`
	SubscriptionStatus           string     `json:"subscription_status"`
	SubscriptionCurrentPeriodEnd *time.Time `json:"subscription_current_period_end"`
	EarlyAccess                  bool       `json:"early_access"`
	Balance                      int64      `json:"balance"`
}

type AdminCreditRequest struct {
	Amount int64 `json:"amount"`
}
