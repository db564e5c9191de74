package domain

// Extraction is the document the image-extraction service returns. Fields are
// pointers so a missing key can be told apart from an empty value.
type Extraction struct {
	Questions []ExtractedQuestion `json:"questions" validate:"dive"`
}

type ExtractedQuestion struct {
	QuestionText *string           `json:"question_text" validate:"required"`
	Choices      []ExtractedChoice `json:"choices" validate:"dive"`
}

type ExtractedChoice struct {
	ChoiceText *string `json:"choice_text" validate:"required"`
	IsCorrect  bool    `json:"is_correct"`
}
