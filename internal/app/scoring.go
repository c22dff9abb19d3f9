package app

import (
	"sort"
	"strconv"

	"hello-world-api/internal/domain"
)

// QuestionResult is the outcome for one question. WrongAnswers holds the
// expected value of every key the user got wrong.
type QuestionResult struct {
	Question       domain.QuestionView `json:"question"`
	CorrectAnswers domain.AnswerIndex  `json:"correct_answers"`
	WrongAnswers   []int               `json:"wrong_answers"`
}

func (r QuestionResult) Correct() bool { return len(r.WrongAnswers) == 0 }

// Results maps a 1-based question ordinal to its outcome.
type Results map[int]QuestionResult

// Score counts the correctly answered questions.
func (r Results) Score() int {
	score := 0
	for _, result := range r {
		if result.Correct() {
			score++
		}
	}
	return score
}

// Score grades answers against questions, which must be in quiz order.
// A question with no answer row counts every expected value as wrong.
func Score(questions []*domain.QuizQuestion, answers []*domain.Answer) Results {
	byQuestion := make(map[int64]*domain.Answer, len(answers))
	for _, answer := range answers {
		byQuestion[answer.QuestionID] = answer
	}

	results := make(Results, len(questions))
	for i, question := range questions {
		keys := sortedKeys(question.CorrectAnswerIndex)
		wrong := make([]int, 0, len(keys))

		answer, ok := byQuestion[question.ID]
		for _, key := range keys {
			expected := question.CorrectAnswerIndex[key]
			if !ok {
				wrong = append(wrong, expected)
				continue
			}
			if chosen, found := answer.ChosenAnswersIndex[key]; !found || chosen != expected {
				wrong = append(wrong, expected)
			}
		}

		results[i+1] = QuestionResult{
			Question:       question.View(),
			CorrectAnswers: question.CorrectAnswerIndex,
			WrongAnswers:   wrong,
		}
	}
	return results
}

// sortedKeys orders position keys numerically, falling back to string order
// for keys that are not integers.
func sortedKeys(index domain.AnswerIndex) []string {
	keys := make([]string, 0, len(index))
	for key := range index {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})
	return keys
}
