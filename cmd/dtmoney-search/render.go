package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"dtmoney/internal/core"
	"dtmoney/internal/store"
)

var (
	green  = lipgloss.Color("#33cc95")
	red    = lipgloss.Color("#e52e4d")
	purple = lipgloss.Color("#5429cc")

	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(purple).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	incomeStyle  = cellStyle.Foreground(green)
	outcomeStyle = cellStyle.Foreground(red)
	labelStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Faint(true)

	brazil = time.FixedZone("BRT", -3*60*60)
)

const priceColumn = 1

func render(snap *store.Snapshot, sum core.Summary) string {
	var b strings.Builder
	b.WriteString(renderTable(snap))
	b.WriteString("\n")
	b.WriteString(renderSummary(sum))
	return b.String()
}

func renderTable(snap *store.Snapshot) string {
	if len(snap.Transactions) == 0 {
		if snap.Query != "" {
			return mutedStyle.Render(fmt.Sprintf("Nenhuma transação encontrada para %q.", snap.Query))
		}
		return mutedStyle.Render("Nenhuma transação cadastrada.")
	}

	rows := make([][]string, 0, len(snap.Transactions))
	for _, t := range snap.Transactions {
		price := core.FormatBRL(t.Price)
		if t.Type == core.Outcome {
			price = "- " + price
		}
		rows = append(rows, []string{t.Description, price, t.Category, t.CreatedAt.In(brazil).Format("02/01/2006")})
	}

	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(purple)).
		Headers("Título", "Preço", "Categoria", "Data").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row < 0 || row >= len(snap.Transactions):
				return cellStyle
			case col == priceColumn && snap.Transactions[row].Type == core.Income:
				return incomeStyle
			case col == priceColumn:
				return outcomeStyle
			default:
				return cellStyle
			}
		})
	return tbl.String()
}

func renderSummary(sum core.Summary) string {
	total := incomeStyle
	if sum.Total.IsNegative() {
		total = outcomeStyle
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		labelStyle.Render("Entradas"), incomeStyle.Render(core.FormatBRL(sum.Income)),
		labelStyle.Render("  Saídas"), outcomeStyle.Render(core.FormatBRL(sum.Outcome)),
		labelStyle.Render("  Total"), total.Render(core.FormatBRL(sum.Total)),
	)
}
