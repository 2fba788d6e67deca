// Package views holds the templ components of the dashboard and the helpers
// they call. Every helper that needs the request takes its context, which
// carries the localizer, the base path, the CSRF token and the user.
package views

//go:generate templ generate

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/lappka/lappka/internal/chart"
	"github.com/lappka/lappka/internal/expert"
	appI18n "github.com/lappka/lappka/internal/i18n"
	"github.com/lappka/lappka/internal/irt"
	"github.com/lappka/lappka/internal/model"
	"github.com/lappka/lappka/internal/questions"
)

func t(ctx context.Context, id string) string { return appI18n.T(ctx, id) }

func tp(ctx context.Context, id string, n int) string { return appI18n.Tp(ctx, id, n) }

func td(ctx context.Context, id string, data map[string]any) string {
	return appI18n.Td(ctx, id, data)
}

func msg(ctx context.Context, m expert.Message) string { return appI18n.Td(ctx, m.ID, m.Data) }

func path(ctx context.Context, p string) string { return model.BasePathFromContext(ctx) + p }

func csrf(ctx context.Context) string { return model.CSRFTokenFromContext(ctx) }

func lang(ctx context.Context) string { return appI18n.Lang(ctx) }

func f1(v float64) string { return fmt.Sprintf("%.1f", v) }

func f2(v float64) string { return fmt.Sprintf("%.2f", v) }

func pct(v float64) string { return fmt.Sprintf("%.0f%%", v*100) }

// num prints a filter bound without trailing zeros.
func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

type sortOption struct {
	order questions.SortOrder
	label string
}

var sortOptions = []sortOption{
	{questions.SortDefault, "SortDefault"},
	{questions.SortDifficulty, "SortDifficulty"},
	{questions.SortDiscrimination, "SortDiscrimination"},
	{questions.SortType, "SortType"},
}

var roles = []model.UserRole{model.UserRoleTeacher, model.UserRoleAdmin}

// reasons translates rework reasons into one line.
func reasons(ctx context.Context, ids []string) string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = appI18n.T(ctx, id)
	}
	return strings.Join(out, "; ")
}

func attemptsList(qs []expert.AttemptsQuestion) string {
	parts := make([]string, len(qs))
	for i, q := range qs {
		parts[i] = fmt.Sprintf("%s (%d)", q.DisplayID, q.Attempts)
	}
	return strings.Join(parts, ", ")
}

func kbtbComponents(ctx context.Context, k expert.KBTB) string {
	return appI18n.Td(ctx, "KBTBComponents", map[string]any{
		"Type":    f2(k.PenaltyType),
		"Level":   f2(k.PenaltyLevel),
		"Rework":  f2(k.PenaltyRework),
		"Size":    f2(k.PenaltyCount),
		"R":       pct(k.R),
		"N":       k.N,
		"NRework": k.NRework,
	})
}

func personItemMap(ctx context.Context, m irt.Map) string {
	return chart.PersonItemMap(m, chart.MapLabels{
		Title:    appI18n.T(ctx, "ChartMapTitle"),
		Students: appI18n.T(ctx, "ChartStudents"),
		Items:    appI18n.T(ctx, "ChartItems"),
		Axis:     appI18n.T(ctx, "ChartLogits"),
	})
}

func boxplot(ctx context.Context, spreads []irt.TypeSpread) string {
	return chart.Boxplot(spreads, appI18n.T(ctx, "ChartByTypeTitle"))
}

func categoryCounts(ctx context.Context, cats []questions.CategoryStat) string {
	return chart.CategoryCounts(cats, distributionLabels(ctx))
}

func categoryMetrics(ctx context.Context, cats []questions.CategoryStat) string {
	return chart.CategoryMetrics(cats, distributionLabels(ctx))
}

func distributionLabels(ctx context.Context) chart.DistributionLabels {
	return chart.DistributionLabels{
		CountTitle:     appI18n.T(ctx, "ChartCountTitle"),
		MetricsTitle:   appI18n.T(ctx, "ChartMetricsTitle"),
		Difficulty:     appI18n.T(ctx, "Difficulty"),
		Discrimination: appI18n.T(ctx, "Discrimination"),
		Efficiency:     appI18n.T(ctx, "Efficiency"),
		MarkedNote:     appI18n.T(ctx, "ChartMarkedNote"),
	}
}
