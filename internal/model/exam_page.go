package model

// ExamPage is everything the hosting page hands to the exam session at load
// time: the time budget, where to autosave, the form to submit and the
// questions rendered inside it.
type ExamPage struct {
	ExamID    string            `json:"exam_id" validate:"required"`
	Remaining int               `json:"remaining" validate:"gte=0"`
	SaveURL   string            `json:"save_url" validate:"required"`
	Form      FormSpec          `json:"form"`
	Questions []Question        `json:"questions" validate:"required,min=1,dive"`
	Answers   map[string]string `json:"answers,omitempty"`
}

// FormSpec describes the submit target of the exam form.
type FormSpec struct {
	Action string            `json:"action" validate:"required"`
	Method string            `json:"method" validate:"omitempty,oneof=GET POST get post"`
	Hidden map[string]string `json:"hidden,omitempty"`
}

// Question is a single multiple-choice question as shown to the student.
// The correct answer is never part of the page.
type Question struct {
	ID      string   `json:"id" validate:"required"`
	Text    string   `json:"text" validate:"required"`
	Options []Option `json:"options" validate:"required,min=2,dive"`
}

// Option is one selectable answer of a question.
type Option struct {
	Key  string `json:"key" validate:"required"`
	Text string `json:"text"`
}
