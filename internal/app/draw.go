package app

import (
	"fmt"
	"math/rand"

	"knowledge-test-service/internal/domain"
)

// DrawQuestionSet picks QuestionsPerSection questions from each section's
// pool, uniformly without replacement: repeatedly pick a random index into a
// shrinking candidate list and remove it. Sections keep their order; the flat
// sequence is the section groups concatenated.
func DrawQuestionSet(sections []domain.Section, rnd *rand.Rand) (domain.QuestionSet, error) {
	if len(sections) != domain.SectionCount {
		return domain.QuestionSet{}, fmt.Errorf("%w: got %d sections, want %d", domain.ErrBankShape, len(sections), domain.SectionCount)
	}

	picked := make([][]domain.Question, 0, len(sections))
	for _, section := range sections {
		if len(section.Questions) < domain.QuestionsPerSection {
			return domain.QuestionSet{}, fmt.Errorf("%w: section %d has %d questions, need %d",
				domain.ErrSectionTooSmall, section.Category, len(section.Questions), domain.QuestionsPerSection)
		}
		pool := append([]domain.Question(nil), section.Questions...)
		group := make([]domain.Question, 0, domain.QuestionsPerSection)
		for i := 0; i < domain.QuestionsPerSection; i++ {
			j := rnd.Intn(len(pool))
			group = append(group, pool[j])
			pool = append(pool[:j], pool[j+1:]...)
		}
		picked = append(picked, group)
	}

	flat := make([]domain.Question, 0, domain.TotalQuestions)
	index := make(map[int]domain.Question, domain.TotalQuestions)
	for _, group := range picked {
		for _, q := range group {
			if _, dup := index[q.ID]; dup {
				return domain.QuestionSet{}, fmt.Errorf("%w: duplicate question id %d", domain.ErrBankShape, q.ID)
			}
			index[q.ID] = q
			flat = append(flat, q)
		}
	}

	return domain.QuestionSet{Sections: picked, Flat: flat, Index: index}, nil
}

// ScoreAttempt compares a complete submission against the drawn set. Pure:
// the same set and answers always yield the same score and records. Records
// follow the flattened section order.
func ScoreAttempt(set domain.QuestionSet, answers map[int]bool) (int, []domain.ResultQuestion) {
	score := 0
	results := make([]domain.ResultQuestion, 0, len(set.Flat))
	for _, q := range set.Flat {
		answer := answers[q.ID]
		pass := 0
		if answer == q.CorrectAnswer {
			pass = 1
			score++
		}
		results = append(results, domain.ResultQuestion{
			Category: q.Category,
			ID:       q.ID,
			Question: q.Prompt,
			Answer:   boolToInt(answer),
			Pass:     pass,
		})
	}
	return score, results
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
