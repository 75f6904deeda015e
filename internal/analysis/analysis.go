// Package analysis grades abuse reports. It maps the category a reporter
// picked to a complaint type and the severity weight stored with it.
package analysis

import (
	"strings"

	"strangerchat/backend/internal/config"
)

// GetWeight returns the weight (penalty) for a given complaint type.
// It returns 0 if the complaint type is not recognized.
func GetWeight(complaintType string) int {
	return config.ComplaintWeights[complaintType]
}

// Classify returns the complaint type for a report category. Free-text and
// unknown categories are graded "Low".
func Classify(category string) string {
	if t, ok := config.CategoryComplaintType[strings.ToLower(strings.TrimSpace(category))]; ok {
		return t
	}
	return "Low"
}
