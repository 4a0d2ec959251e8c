package forecast

import (
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

// BuildPrompt renders the item history, one line per item, followed by the
// instructions for the model.
func BuildPrompt(items []domain.Item, now time.Time) string {
	var b strings.Builder

	b.WriteString("You are a personal finance assistant.\n\n")
	b.WriteString("Here is the user's budget history (type, amount, description, date):\n")
	if len(items) == 0 {
		b.WriteString("(no entries yet)\n")
	}
	for _, it := range items {
		fmt.Fprintf(&b, "- %s: %s, %s, %s\n",
			it.Type, it.Amount.StringFixed(2), it.Description, it.Date.String())
	}

	fmt.Fprintf(&b, "\nToday is %s.\n", now.Format("2006-01-02"))
	fmt.Fprintf(&b, "Task:\n"+
		"- Predict the budget, income and expense for each of the next %d months.\n"+
		"- Label each month as \"YYYY-MM\".\n"+
		"- Output a JSON array of objects with the fields \"month\", \"predictedBudget\", "+
		"\"predictedIncome\" and \"predictedExpense\".\n"+
		"- Amounts are plain numbers without currency symbols.\n\n"+
		"Return ONLY valid raw JSON.\n", Months)

	return b.String()
}

// ResponseSchema constrains the model output to the forecast record shape.
func ResponseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"month":            {Type: genai.TypeString, Description: "Month label, YYYY-MM"},
				"predictedBudget":  {Type: genai.TypeNumber},
				"predictedIncome":  {Type: genai.TypeNumber},
				"predictedExpense": {Type: genai.TypeNumber},
			},
			Required:         []string{"month", "predictedBudget", "predictedIncome", "predictedExpense"},
			PropertyOrdering: []string{"month", "predictedBudget", "predictedIncome", "predictedExpense"},
		},
	}
}
