package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"cardspend/internal/core"
	ports "cardspend/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultSheetName is the base name of the expenses tab. Rows land in
// "<year> <base>", one tab per year.
const DefaultSheetName = "Expenses"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
}

var _ ports.ExpenseExporter = (*Client)(nil)

// New creates a Sheets exporter authenticated with service account
// credentials from the environment.
func New(ctx context.Context, spreadsheetID, sheetBase string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetBase = strings.TrimSpace(sheetBase)
	if sheetBase == "" {
		sheetBase = DefaultSheetName
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetBase: sheetBase}, nil
}

// newSheetsService initializes a Sheets Service. OAuth user credentials
// (GOOGLE_OAUTH_CLIENT_* plus GOOGLE_OAUTH_TOKEN_*) are preferred; otherwise
// service account credentials come from GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	ts, err := oauthTokenSource(ctx)
	switch {
	case err == nil:
		service, err := gsheet.NewService(ctx, goption.WithTokenSource(ts))
		if err != nil {
			return nil, fmt.Errorf("create sheets service: %w", err)
		}
		slog.InfoContext(ctx, "Google Sheets service created", "auth", "oauth")
		return service, nil
	case !errors.Is(err, ErrNoOAuthCredentials):
		return nil, err
	}

	credentialsJSON, err := serviceAccountCredentials()
	if err != nil {
		return nil, err
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created", "auth", "service_account", "credentials_size", len(credentialsJSON))
	return service, nil
}

func serviceAccountCredentials() ([]byte, error) {
	inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// AppendExpenses appends rows [date, description, amount, category] to the
// yearly tab of each expense.
func (c *Client) AppendExpenses(ctx context.Context, expenses []core.Expense) (string, error) {
	if len(expenses) == 0 {
		return "", nil
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	var refs []string
	for _, group := range groupByYear(expenses) {
		sheet := yearPrefixedName(c.sheetBase, group.year)
		rng := fmt.Sprintf("%s!A:D", sheet)
		vr := &gsheet.ValueRange{Values: expenseRows(group.expenses)}

		resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
		if err != nil {
			return strings.Join(refs, ","), fmt.Errorf("append to sheet %s: %w", sheet, err)
		}

		ref := rng
		if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
			ref = resp.Updates.UpdatedRange
		}
		refs = append(refs, ref)
		slog.InfoContext(ctx, "Appended expenses to sheet", "sheet", sheet, "rows", len(group.expenses), "range", ref)
	}
	return strings.Join(refs, ","), nil
}

type yearGroup struct {
	year     int
	expenses []core.Expense
}

// groupByYear splits expenses by calendar year, oldest year first,
// preserving input order within a year.
func groupByYear(expenses []core.Expense) []yearGroup {
	idx := map[int]int{}
	var groups []yearGroup
	for _, e := range expenses {
		y := e.Date.Year()
		i, ok := idx[y]
		if !ok {
			i = len(groups)
			idx[y] = i
			groups = append(groups, yearGroup{year: y})
		}
		groups[i].expenses = append(groups[i].expenses, e)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].year < groups[j].year })
	return groups
}

func expenseRows(expenses []core.Expense) [][]any {
	rows := make([][]any, 0, len(expenses))
	for _, e := range expenses {
		rows = append(rows, []any{e.Date.String(), e.Description, e.Amount.Float(), e.Category})
	}
	return rows
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
