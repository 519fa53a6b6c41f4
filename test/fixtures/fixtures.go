package fixtures

import (
	"time"

	"github.com/retailcore/till-service/internal/model"
	"github.com/shopspring/decimal"
)

var (
	BranchMain   = "BR-001"
	BranchMall   = "BR-002"
	BranchClosed = "BR-999"

	SettingsDefault = model.TillSettings{
		BranchID:                  BranchMain,
		TillCashManagementEnabled: true,
		TillCountRemindersEnabled: true,
		VarianceAlertsEnabled:     true,
		MaxTillAmount:             decimal.NewFromInt(5000),
		MinTillAmount:             decimal.NewFromInt(500),
		VarianceThreshold:         decimal.NewFromInt(10),
	}

	SettingsStrict = model.TillSettings{
		BranchID:                  BranchMall,
		TillCashManagementEnabled: true,
		TillCountRemindersEnabled: true,
		VarianceAlertsEnabled:     true,
		MaxTillAmount:             decimal.NewFromInt(2000),
		MinTillAmount:             decimal.NewFromInt(200),
		VarianceThreshold:         decimal.NewFromInt(1),
	}
)

func NewOpenSessionRequest(branchID string, opening float64) model.OpenSessionRequest {
	return model.OpenSessionRequest{
		BranchID:      branchID,
		OpeningAmount: decimal.NewFromFloat(opening),
	}
}

func NewCloseSessionRequest(branchID string, closing float64) model.CloseSessionRequest {
	return model.CloseSessionRequest{
		BranchID:      branchID,
		ClosingAmount: decimal.NewFromFloat(closing),
	}
}

func NewCashDropRequest(branchID string, amount float64, reason string) model.CashDropRequest {
	return model.CashDropRequest{
		BranchID: branchID,
		Amount:   decimal.NewFromFloat(amount),
		Reason:   reason,
	}
}

func NewCreateVarianceRequest(sessionID int64, branchID string, vtype model.VarianceType, amount float64) model.CreateVarianceRequest {
	return model.CreateVarianceRequest{
		SessionID: sessionID,
		BranchID:  branchID,
		Type:      vtype,
		Amount:    decimal.NewFromFloat(amount),
		Category:  model.CategoryUnknown,
	}
}

func NewVarianceAlert(eventID string, varianceID int64, branchID string, amount float64) model.VarianceAlert {
	return model.VarianceAlert{
		EventID:    eventID,
		VarianceID: varianceID,
		SessionID:  varianceID,
		BranchID:   branchID,
		Type:       model.VarianceShortage,
		Amount:     decimal.NewFromFloat(amount),
		Threshold:  decimal.NewFromInt(10),
		OccurredAt: time.Now().UTC(),
	}
}

var (
	ValidDropReasons = []string{
		"safe drop",
		"till over limit",
		"end of shift skim",
	}

	InvalidAmounts = []float64{
		0,
		-1,
		-250.75,
	}
)
