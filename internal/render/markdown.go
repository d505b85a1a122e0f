package render

import (
	"fmt"
	"strings"

	"github.com/thebtf/factura/pkg/models"
)

// BusinessMarkdown formats a business record for the company panel.
func BusinessMarkdown(biz *models.Business) string {
	if biz == nil {
		return "### Company does not exist"
	}

	var b strings.Builder
	b.WriteString("#### Business Details\n")
	fmt.Fprintf(&b, "**Name**: %s\n\n", orNA(biz.Info.Name))
	fmt.Fprintf(&b, "**Address**: %s\n\n", orNA(biz.Info.Address))
	fmt.Fprintf(&b, "**Contact**: %s\n\n", orNA(biz.Info.Contact))

	if len(biz.Items) > 0 {
		b.WriteString("#### Available Items\n\n")
		b.WriteString("| Item Name | Unit Price (Tax included) | Tax Rate |\n")
		b.WriteString("|----------|------------|----------|\n")
		for _, item := range biz.Items {
			fmt.Fprintf(&b, "| %s | €%.2f | %g%% |\n", item.ItemName, item.UnitPrice, item.TaxRatePercent)
		}
		b.WriteString("\n")
	}

	if len(biz.Customers) > 0 {
		b.WriteString("#### Customers\n\n")
		for i, customer := range biz.Customers {
			fmt.Fprintf(&b, "**Customer %d**: %s\n\n", i+1, orNA(customer.Name))
			fmt.Fprintf(&b, "**Address**: %s\n\n", orNA(customer.Address))
			fmt.Fprintf(&b, "**Contact**: %s\n\n", orNA(customer.Contact))
		}
	}
	return b.String()
}

// ItemsMarkdownTable formats line items as a Markdown table.
func ItemsMarkdownTable(items []models.LineItemView) string {
	if len(items) == 0 {
		return "No relevant items found."
	}

	var b strings.Builder
	b.WriteString("| Item Name | Quantity | Unit Price | Tax Rate | Total |\n")
	b.WriteString("|----------|----------|------------|----------|-------|\n")
	for _, item := range items {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			item.Name,
			item.Quantity.String(),
			mdPrice(item.UnitPrice),
			mdRate(item.TaxRatePercent),
			mdMoney(item.TotalPrice),
		)
	}
	return b.String()
}

// ReasoningMarkdown formats the model's narratives with an optional header.
func ReasoningMarkdown(analysis models.AnalysisResult, header string) string {
	var b strings.Builder
	if header != "" {
		fmt.Fprintf(&b, "### %s\n\n", header)
	}

	if analysis.AnalysisNarrative != "" {
		b.WriteString("#### Analysis\n")
		b.WriteString(analysis.AnalysisNarrative)
		b.WriteString("\n\n")
	}
	if len(analysis.AvailableItems) > 0 {
		b.WriteString("**Relevant Items:**\n\n")
		views := make([]models.LineItemView, 0, len(analysis.AvailableItems))
		for _, item := range analysis.AvailableItems {
			views = append(views, models.LineItemView{
				Name:           item.Name,
				Quantity:       models.IntValue(item.Quantity),
				UnitPrice:      models.NumberValue(item.UnitPrice),
				TaxRatePercent: models.NumberValue(item.TaxRatePercent),
				TotalPrice:     models.KnownAmount(item.TotalPrice),
			})
		}
		b.WriteString(ItemsMarkdownTable(views))
		b.WriteString("\n")
	}
	if analysis.DecisionNarrative != "" {
		b.WriteString("#### Decisions\n")
		b.WriteString(analysis.DecisionNarrative)
		b.WriteString("\n\n")
	}
	if analysis.CalculationsNarrative != "" {
		b.WriteString("#### Calculations\n")
		b.WriteString(analysis.CalculationsNarrative)
		b.WriteString("\n\n")
	}
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func mdPrice(v models.Value) string {
	if f, err := v.Float(); err == nil {
		return fmt.Sprintf("€%.2f", f)
	}
	return v.String()
}

func mdRate(v models.Value) string {
	if f, err := v.Float(); err == nil {
		return fmt.Sprintf("%g%%", f)
	}
	return v.String()
}

func mdMoney(a models.Amount) string {
	if a.Known() {
		return fmt.Sprintf("€%.2f", a.Float())
	}
	return models.PlaceholderToken
}
