package history

import (
	"database/sql"
	"fmt"
	"strings"
)

// Search finds answered exchanges whose question or answer mention every
// query term, best matches first.
func (s *Store) Search(query string, limit int) ([]Exchange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	rows, err := s.searchRows(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanExchanges(rows)
}

func (s *Store) searchRows(query string, limit int) (*sql.Rows, error) {
	if s.ftsEnabled {
		rows, err := s.searchRowsFTS(query, limit)
		if err == nil {
			return rows, nil
		}
		fallback, fbErr := s.searchRowsLike(query, limit)
		if fbErr != nil {
			return nil, fmt.Errorf("search exchanges (fts and fallback failed): fts=%w, fallback=%v", err, fbErr)
		}
		return fallback, nil
	}
	return s.searchRowsLike(query, limit)
}

func (s *Store) searchRowsFTS(query string, limit int) (*sql.Rows, error) {
	ftsQuery := buildFTSQuery(query)
	if ftsQuery == "" {
		return nil, fmt.Errorf("empty fts query")
	}
	rows, err := s.db.Query(`
		SELECT e.id, e.video_id, COALESCE(e.asked_ts, 0), COALESCE(e.question, ''), COALESCE(e.answer, ''), COALESCE(e.error, '')
		FROM exchanges_fts f
		JOIN exchanges e ON e.id = f.rowid
		WHERE exchanges_fts MATCH ?
		ORDER BY bm25(exchanges_fts), e.asked_ts DESC
		LIMIT ?
	`, ftsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("fts query failed: %w", err)
	}
	return rows, nil
}

func (s *Store) searchRowsLike(query string, limit int) (*sql.Rows, error) {
	terms := tokenizeSearchTerms(query)
	if len(terms) == 0 {
		terms = []string{strings.ToLower(query)}
	}

	var b strings.Builder
	b.WriteString(`
		SELECT id, video_id, COALESCE(asked_ts, 0), COALESCE(question, ''), COALESCE(answer, ''), COALESCE(error, '')
		FROM exchanges
		WHERE COALESCE(answer, '') != ''`)
	args := make([]any, 0, 2*len(terms)+1)
	for _, term := range terms {
		b.WriteString(" AND (LOWER(question) LIKE ? OR LOWER(answer) LIKE ?)")
		args = append(args, "%"+term+"%", "%"+term+"%")
	}
	b.WriteString(`
		ORDER BY asked_ts DESC, id DESC
		LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.Query(b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("like query failed: %w", err)
	}
	return rows, nil
}

func buildFTSQuery(raw string) string {
	parts := tokenizeSearchTerms(raw)
	if len(parts) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ReplaceAll(p, `"`, "")
		if p == "" {
			continue
		}
		quoted = append(quoted, fmt.Sprintf(`"%s"*`, p))
	}
	return strings.Join(quoted, " AND ")
}

func tokenizeSearchTerms(raw string) []string {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(raw)))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "`\"'.,:;!?()[]{}<>|")
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
