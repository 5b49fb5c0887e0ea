package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/releve-parser/internal/database"
	"github.com/insightdelivered/releve-parser/internal/models"
)

func TestOutputPath(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  options
		many  bool
		want  string
	}{
		{"next to input", filepath.Join("in", "jan.pdf"), options{format: "csv"}, false, filepath.Join("in", "jan.csv")},
		{"xlsx extension", "jan.txt", options{format: "xlsx"}, false, "jan.xlsx"},
		{"explicit file", "jan.pdf", options{output: "out.csv"}, false, "out.csv"},
		{"directory for many", filepath.Join("in", "feb.pdf"), options{output: "out"}, true, filepath.Join("out", "feb.csv")},
		{"trailing separator", "jan.pdf", options{output: "out" + string(filepath.Separator), format: "xlsx"}, false, filepath.Join("out", "jan.xlsx")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outputPath(tt.input, tt.opts, tt.many); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestListFiles(t *testing.T) {
	docs := map[string][]string{
		"jan.pdf":     {"Relevé de vos comptes - n°1\nRelevé édité le 15 janvier 2023\n"},
		"facture.pdf": {"Facture EDF\n"},
	}
	load := func(path string) ([]string, error) {
		if pages, ok := docs[path]; ok {
			return pages, nil
		}
		return nil, errors.New("unreadable")
	}

	var buf bytes.Buffer
	listFiles(&buf, []string{"jan.pdf", "facture.pdf", "broken.pdf"}, load)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), buf.String())
	}
	tests := []struct {
		line int
		want string
	}{
		{1, "2023-01-15"},
		{2, "not a statement"},
		{3, "error: unreadable"},
	}
	for _, tt := range tests {
		if !strings.Contains(lines[tt.line], tt.want) {
			t.Errorf("line %d: got %q, want it to contain %q", tt.line, lines[tt.line], tt.want)
		}
	}
}

func TestListStored(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "releve.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	stmt := &models.Statement{
		Document:     "jan.pdf",
		EmissionDate: time.Date(2023, time.January, 15, 0, 0, 0, 0, time.UTC),
		Headers:      []string{"Date"},
		Transactions: []models.Transaction{{
			Offset:       10,
			Date:         time.Date(2023, time.January, 3, 0, 0, 0, 0, time.UTC),
			Description:  "PRELEVEMENT EDF",
			Amount:       decimal.RequireFromString("78.90"),
			SignedAmount: decimal.RequireFromString("-78.90"),
			Sign:         models.SignDebit,
			Keyword:      "PRELEVEMENT",
		}},
	}
	if _, err := db.SaveStatement(ctx, stmt); err != nil {
		t.Fatalf("save: %v", err)
	}

	var buf bytes.Buffer
	if err := listStored(ctx, &buf, db); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "jan.pdf") || !strings.Contains(out, "2023-01-15") {
		t.Errorf("expected stored statement in listing, got:\n%s", out)
	}
}
