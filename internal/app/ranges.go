package app

import "psd-quiz-service/internal/domain"

// DefaultRanges are the practice bands offered on the range selection screen.
var DefaultRanges = []domain.QuestionRange{
	{Label: "1-60", Start: 0, End: 59},
	{Label: "61-121", Start: 60, End: 120},
	{Label: "122-182", Start: 121, End: 181},
	{Label: "183-243", Start: 182, End: 242},
	{Label: "244-305", Start: 243, End: 304},
}

// SelectRange slices the bank for the band with the given label, or returns
// the whole bank for domain.RangeAll. Bands are clamped to the bank size.
func SelectRange(bank []domain.Question, ranges []domain.QuestionRange, label string) ([]domain.Question, error) {
	if label == domain.RangeAll {
		if len(bank) == 0 {
			return nil, domain.ErrEmptySelection
		}
		return bank, nil
	}
	for _, r := range ranges {
		if r.Label != label {
			continue
		}
		end := r.End + 1
		if end > len(bank) {
			end = len(bank)
		}
		if r.Start < 0 || r.Start >= end {
			return nil, domain.ErrEmptySelection
		}
		return bank[r.Start:end], nil
	}
	return nil, domain.ErrUnknownRange
}
