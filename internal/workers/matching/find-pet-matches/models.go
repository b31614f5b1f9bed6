// internal/workers/matching/find-pet-matches/models.go
package findpetmatches

import "petcare-workers/internal/models"

// Input either carries the subject inline or names it for lookup. A nil Pool
// loads every active report of the opposite kind.
type Input struct {
	Subject     *models.PetRecord  `json:"subject,omitempty"`
	SubjectID   string             `json:"subjectId,omitempty"`
	SubjectKind string             `json:"subjectKind,omitempty"`
	Pool        []models.PetRecord `json:"pool,omitempty"`
	Limit       int                `json:"limit,omitempty"`
}

type Output struct {
	RunID       string               `json:"runId"`
	SubjectID   string               `json:"subjectId"`
	SubjectKind models.Kind          `json:"subjectKind"`
	Matches     []models.MatchResult `json:"matches"`
	MatchCount  int                  `json:"matchCount"`
	PoolSize    int                  `json:"poolSize"`
	Truncated   bool                 `json:"truncated"`
}
