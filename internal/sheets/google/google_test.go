package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"famfin/internal/core"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{CredentialsJSON: "{}"})
	if err == nil || err.Error() != "missing spreadsheet id" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Options{SpreadsheetID: "sheet"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Ledger", 2025, "2025 Ledger"},
		{"2024 Ledger", 2025, "2024 Ledger"},
		{"  Ledger  ", 2026, "2026 Ledger"},
		{"", 2025, ""},
		{"12345", 2025, "2025 12345"},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}

func TestClient_AppendWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "test", sheetBase: "Ledger", loc: time.UTC}
	if _, err := c.Append(context.Background(), core.Transaction{ID: "t1"}); err == nil {
		t.Fatal("expected error with nil service")
	}
	if _, err := c.Append(context.Background(), core.Transaction{}); err == nil {
		t.Fatal("expected error for transaction without id")
	}
}

func TestClient_Append(t *testing.T) {
	var (
		gotPath string
		gotBody gsheet.ValueRange
		gotOpt  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		gotPath = r.URL.Path
		gotOpt = r.URL.Query().Get("valueInputOption")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"updates":{"updatedRange":"'2025 Ledger'!A2:I2"}}`))
	}))
	defer srv.Close()

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	c := newClient(svc, Options{SpreadsheetID: "sheet-1"})

	ref, err := c.Append(context.Background(), core.Transaction{
		ID:              "t1",
		Type:            core.Expense,
		Amount:          core.Money{Cents: 4599},
		Date:            time.Date(2025, 5, 4, 10, 0, 0, 0, time.UTC),
		SourceAccountID: "acct",
		UserID:          "u1",
	})
	if err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if ref != "'2025 Ledger'!A2:I2" {
		t.Errorf("ref = %q", ref)
	}
	if !strings.Contains(gotPath, "sheet-1") || !strings.HasSuffix(gotPath, ":append") {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotOpt != "USER_ENTERED" {
		t.Errorf("valueInputOption = %q", gotOpt)
	}
	if len(gotBody.Values) != 1 || len(gotBody.Values[0]) != 9 {
		t.Fatalf("unexpected values: %v", gotBody.Values)
	}
	if gotBody.Values[0][0] != "2025-05-04" || gotBody.Values[0][2] != 45.99 || gotBody.Values[0][8] != "t1" {
		t.Errorf("unexpected row: %v", gotBody.Values[0])
	}
}
