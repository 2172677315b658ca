package service

import "github.com/noah-isme/lostfound-go-api/internal/models"

// IsDuplicate reports whether existing already holds a report by the candidate's owner
// with the same kind, category and location. Status and the remaining fields are ignored.
func IsDuplicate(candidate models.Report, existing []models.Report) bool {
	for _, report := range existing {
		if report.OwnerID != candidate.OwnerID {
			continue
		}
		if report.Kind == candidate.Kind &&
			report.Category == candidate.Category &&
			report.Location == candidate.Location {
			return true
		}
	}
	return false
}
