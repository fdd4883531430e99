package search

import (
	"strings"

	"github.com/LangChat/ai-tutorials/internal/models"
)

// ProcessQuery trims the query text, then validates it and applies defaults.
func ProcessQuery(query *models.RetrievalQuery) error {
	query.Query = strings.TrimSpace(query.Query)
	return query.Validate()
}
