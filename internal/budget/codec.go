package budget

import (
	"github.com/dvloznov/budget-tracker/internal/docstore"
	"github.com/dvloznov/budget-tracker/internal/domain"
)

func encodeItem(v domain.ValidatedItem) map[string]interface{} {
	return map[string]interface{}{
		"amount":      docstore.Float(v.Amount),
		"description": v.Description,
		"type":        string(v.Type),
		"date":        v.Date.String(),
		"createdAt":   docstore.ServerTimestamp,
	}
}

func decodeItem(d docstore.Document) domain.Item {
	return domain.Item{
		ID:          d.ID,
		Amount:      docstore.Decimal(d.Data, "amount"),
		Description: docstore.String(d.Data, "description"),
		Type:        domain.TransactionType(docstore.String(d.Data, "type")),
		Date:        docstore.Date(d.Data, "date"),
	}
}

func encodeSummary(s domain.BudgetSummary) map[string]interface{} {
	return map[string]interface{}{
		"budget":  docstore.Float(s.Budget),
		"income":  docstore.Float(s.Income),
		"expense": docstore.Float(s.Expense),
	}
}

func decodeSummary(data map[string]interface{}) domain.BudgetSummary {
	return domain.BudgetSummary{
		Budget:  docstore.Decimal(data, "budget"),
		Income:  docstore.Decimal(data, "income"),
		Expense: docstore.Decimal(data, "expense"),
	}
}
