package app_test

import (
	"reflect"
	"testing"

	"hello-world-api/internal/app"
	"hello-world-api/internal/domain"
)

func TestScore(t *testing.T) {
	question := &domain.QuizQuestion{ID: 1, CorrectAnswerIndex: domain.AnswerIndex{"0": 2}}

	tests := []struct {
		name    string
		answers []*domain.Answer
		correct bool
		wrong   []int
	}{
		{
			name:    "matching answer",
			answers: []*domain.Answer{{QuestionID: 1, ChosenAnswersIndex: domain.AnswerIndex{"0": 2}}},
			correct: true,
			wrong:   []int{},
		},
		{
			name:    "wrong choice records expected value",
			answers: []*domain.Answer{{QuestionID: 1, ChosenAnswersIndex: domain.AnswerIndex{"0": 1}}},
			wrong:   []int{2},
		},
		{
			name:  "no answer row",
			wrong: []int{2},
		},
		{
			name:    "missing key",
			answers: []*domain.Answer{{QuestionID: 1, ChosenAnswersIndex: domain.AnswerIndex{"1": 2}}},
			wrong:   []int{2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := app.Score([]*domain.QuizQuestion{question}, tt.answers)
			got, ok := results[1]
			if !ok {
				t.Fatalf("expected result at ordinal 1, got %v", results)
			}
			if got.Correct() != tt.correct {
				t.Fatalf("expected correct=%v, got %v", tt.correct, got.Correct())
			}
			if !reflect.DeepEqual(got.WrongAnswers, tt.wrong) {
				t.Fatalf("expected wrong answers %v, got %v", tt.wrong, got.WrongAnswers)
			}
		})
	}
}

func TestScoreMultipleChoiceOrdering(t *testing.T) {
	questions := []*domain.QuizQuestion{
		{ID: 10, Kind: domain.QuestionMultiple, CorrectAnswerIndex: domain.AnswerIndex{"0": 1, "1": 3, "10": 4, "2": 0}},
		{ID: 11, CorrectAnswerIndex: domain.AnswerIndex{"0": 0}},
	}
	answers := []*domain.Answer{
		{QuestionID: 10, ChosenAnswersIndex: domain.AnswerIndex{"0": 1, "1": 2, "2": 0}},
		{QuestionID: 11, ChosenAnswersIndex: domain.AnswerIndex{"0": 0}},
	}

	results := app.Score(questions, answers)
	if results.Score() != 1 {
		t.Fatalf("expected score 1, got %d", results.Score())
	}
	if want := []int{3, 4}; !reflect.DeepEqual(results[1].WrongAnswers, want) {
		t.Fatalf("expected wrong answers %v in key order, got %v", want, results[1].WrongAnswers)
	}
	if !results[2].Correct() {
		t.Fatalf("expected second question correct")
	}
	if results[2].Question.ID != 11 {
		t.Fatalf("expected ordinal 2 to be question 11, got %d", results[2].Question.ID)
	}
}

func TestChosenIndex(t *testing.T) {
	got := app.ChosenIndex([]int{3, 0})
	want := domain.AnswerIndex{"0": 3, "1": 0}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
