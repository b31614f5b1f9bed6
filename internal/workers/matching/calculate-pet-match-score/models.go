// internal/workers/matching/calculate-pet-match-score/models.go
package calculatepetmatchscore

import "petcare-workers/internal/models"

type Input struct {
	A models.PetRecord `json:"a"`
	B models.PetRecord `json:"b"`
}

type Output struct {
	MatchScore   int                   `json:"matchScore"`
	Confidence   models.Confidence     `json:"confidence"`
	MatchFactors models.MatchBreakdown `json:"matchFactors"`
}
