package facts

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FilterFromValues parses the common cohort query parameters. branch_id /
// department_id accept repeated parameters or comma-separated lists; from /
// to take YYYY-MM-DD. Range defaults are left to the operation.
func FilterFromValues(values url.Values) (CohortFilter, error) {
	var f CohortFilter
	var err error

	if f.BranchIDs, err = parseIDList(values["branch_id"], "branch_id"); err != nil {
		return f, err
	}
	if f.DepartmentIDs, err = parseIDList(values["department_id"], "department_id"); err != nil {
		return f, err
	}

	if raw := values.Get("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return f, fmt.Errorf("invalid from date %q: %w", raw, err)
		}
		f.From = t
	}
	if raw := values.Get("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return f, fmt.Errorf("invalid to date %q: %w", raw, err)
		}
		f.To = t
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return f, fmt.Errorf("to date %s precedes from date %s", f.To.Format("2006-01-02"), f.From.Format("2006-01-02"))
	}
	return f, nil
}

func parseIDList(params []string, name string) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, param := range params {
		for _, raw := range strings.Split(param, ",") {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid %s %q: %w", name, raw, err)
			}
			out = append(out, id)
		}
	}
	return out, nil
}
