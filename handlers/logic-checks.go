package handlers

import (
	"net/http"

	"github.com/bsaid97/go-ladm-topology/rules"
)

type ruleResult struct {
	Rule   string           `json:"rule"`
	Table  string           `json:"table"`
	Count  int              `json:"count"`
	Errors []rules.ErrorRow `json:"errors"`
}

// logicChecks runs the requested rules, or all of them, against the
// configured database.
func (s *Server) logicChecks(w http.ResponseWriter, req *request) error {
	db, err := s.database()
	if err != nil {
		return err
	}
	ids := req.Rules
	if len(ids) == 0 {
		ids = rules.Rules()
	}

	results := make([]ruleResult, 0, len(ids))
	for _, id := range ids {
		query, err := rules.QueryFor(id, db.Schema())
		if err != nil {
			return err
		}
		// One table per request.
		count, table, err := s.checker.Run(req.ctx, db, id, rules.NewErrorTable(query.TableName, id))
		if err != nil {
			return err
		}
		results = append(results, ruleResult{Rule: id, Table: table.Name, Count: count, Errors: table.Rows})
	}
	return sendJSON(w, map[string]any{"rules": results})
}
