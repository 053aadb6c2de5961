package httpapi

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/service"
)

func (a *API) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	report, err := a.service.DailyReport(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.writeReport(w, r, report)
}

func (a *API) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	year, err := pathInt(r, "year")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	month, err := pathInt(r, "month")
	if err != nil {
		a.fail(w, r, err)
		return
	}

	report, err := a.service.MonthlyReport(r.Context(), year, month)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.writeReport(w, r, report)
}

func (a *API) handleYearlyReport(w http.ResponseWriter, r *http.Request) {
	year, err := pathInt(r, "year")
	if err != nil {
		a.fail(w, r, err)
		return
	}

	report, err := a.service.YearlyReport(r.Context(), year)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.writeReport(w, r, report)
}

// writeReport answers with JSON, or with a CSV attachment for ?format=csv.
func (a *API) writeReport(w http.ResponseWriter, r *http.Request, report domain.PeriodReport) {
	if !strings.EqualFold(r.URL.Query().Get("format"), "csv") {
		writeJSON(w, http.StatusOK, report)
		return
	}

	body, err := reportToCSV(report)
	if err != nil {
		a.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	filename := fmt.Sprintf("%s-report-%s.csv", report.Period, report.From.Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func reportToCSV(report domain.PeriodReport) ([]byte, error) {
	rows := [][]string{
		{"section", "key", "value"},
		{"summary", "period", report.Period},
		{"summary", "from", report.From.Format("2006-01-02")},
		{"summary", "to", report.To.Format("2006-01-02")},
		{"summary", "sales_count", strconv.Itoa(report.SalesCount)},
		{"summary", "gross_sales", report.GrossSales.StringFixed(2)},
		{"summary", "collected", report.Collected.StringFixed(2)},
		{"summary", "outstanding", report.Outstanding.StringFixed(2)},
		{"summary", "purchase_count", strconv.Itoa(report.PurchaseCount)},
		{"summary", "purchases_total", report.PurchasesTotal.StringFixed(2)},
		{"summary", "purchases_paid", report.PurchasesPaid.StringFixed(2)},
		{"summary", "expense_count", strconv.Itoa(report.ExpenseCount)},
		{"summary", "expenses_paid", report.ExpensesPaid.StringFixed(2)},
		{"summary", "net", report.Net.StringFixed(2)},
	}

	methods := make([]domain.PaymentMethod, 0, len(report.ByMethod))
	for method := range report.ByMethod {
		methods = append(methods, method)
	}
	slices.Sort(methods)
	for _, method := range methods {
		totals := report.ByMethod[method]
		key := strings.ToLower(string(method))
		rows = append(rows,
			[]string{"payment", key + "_count", strconv.Itoa(totals.Count)},
			[]string{"payment", key + "_paid", totals.AmountPaid.StringFixed(2)},
			[]string{"payment", key + "_remaining", totals.RemainingBalance.StringFixed(2)},
		)
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func pathInt(r *http.Request, name string) (int, error) {
	value, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		return 0, &service.ValidationError{Err: service.ErrValidation, Details: name + " must be a number"}
	}
	return value, nil
}
