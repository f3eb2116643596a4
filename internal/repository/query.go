package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DocumentFilter narrows invoice, proforma and delivery note listings.
type DocumentFilter struct {
	Status    string
	ClientID  *uuid.UUID
	Search    string
	StartDate *time.Time
	EndDate   *time.Time
	Ordering  string
}

// likePattern builds a case-insensitive contains pattern. Columns are compared
// through LOWER() so the same query runs on Postgres and SQLite.
func likePattern(search string) string {
	return "%" + strings.ToLower(strings.TrimSpace(search)) + "%"
}

// applyDocumentFilter adds the shared document filters. table qualifies column
// names because the search joins clients.
func applyDocumentFilter(query *gorm.DB, table string, f DocumentFilter, searchColumns ...string) *gorm.DB {
	if f.Status != "" {
		query = query.Where(table+".status = ?", f.Status)
	}
	if f.ClientID != nil {
		query = query.Where(table+".client_id = ?", *f.ClientID)
	}
	if f.StartDate != nil {
		query = query.Where(table+".date >= ?", *f.StartDate)
	}
	if f.EndDate != nil {
		query = query.Where(table+".date <= ?", *f.EndDate)
	}
	if s := strings.TrimSpace(f.Search); s != "" && len(searchColumns) > 0 {
		like := likePattern(s)
		conds := make([]string, len(searchColumns))
		args := make([]interface{}, len(searchColumns))
		for i, col := range searchColumns {
			conds[i] = "LOWER(" + col + ") LIKE ?"
			args[i] = like
		}
		query = query.
			Joins("LEFT JOIN clients ON clients.id = " + table + ".client_id").
			Where(strings.Join(conds, " OR "), args...)
	}
	return query
}

// orderClause maps an ordering query value ("date", "-total_ttc", ...) to a
// SQL ORDER BY. Unknown fields fall back to newest first.
func orderClause(table, ordering string, allowed ...string) string {
	fallback := table + ".date DESC, " + table + ".created_at DESC"
	field := strings.TrimPrefix(ordering, "-")
	for _, a := range allowed {
		if a == field {
			dir := "ASC"
			if strings.HasPrefix(ordering, "-") {
				dir = "DESC"
			}
			return table + "." + field + " " + dir
		}
	}
	return fallback
}

// nextNumber returns prefix followed by the successor of the highest sequence
// already issued under prefix, zero padded to three digits. Numbers are
// compared by length first so that 1000 sorts after 999.
func nextNumber(ctx context.Context, db *gorm.DB, model interface{}, prefix string) (string, error) {
	var numbers []string
	err := GetDB(ctx, db).Model(model).
		Where("number LIKE ?", prefix+"%").
		Order("LENGTH(number) DESC, number DESC").
		Limit(1).
		Pluck("number", &numbers).Error
	if err != nil {
		return "", err
	}

	seq := 1
	if len(numbers) > 0 {
		last, convErr := strconv.Atoi(strings.TrimPrefix(numbers[0], prefix))
		if convErr != nil {
			return "", fmt.Errorf("malformed document number %q: %w", numbers[0], convErr)
		}
		seq = last + 1
	}
	return fmt.Sprintf("%s%03d", prefix, seq), nil
}
