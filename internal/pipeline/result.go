package pipeline

import (
	"time"

	"github.com/MeKo-Tech/idextract/internal/classifier"
	"github.com/MeKo-Tech/idextract/internal/parser"
	"github.com/MeKo-Tech/idextract/internal/recognizer"
)

// Result is the response envelope. Data holds the template's record on
// success; Error and Code describe a failure. No partial data is surfaced.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`

	// Fragments holds the full-page words when Config.WordBoxes is set.
	Fragments []recognizer.Fragment `json:"fragments,omitempty"`

	// Template is empty when the document was never classified.
	Template string  `json:"-"`
	Timings  Timings `json:"-"`
}

// Timings records where the time of one extraction went.
type Timings struct {
	Normalize   time.Duration
	Recognition time.Duration
	Regions     time.Duration
	Total       time.Duration
}

// Assemble wraps a parsed record into a success envelope.
func Assemble(tpl classifier.Template, record any) *Result {
	return &Result{Success: true, Data: record, Template: tpl.String()}
}

// Failure builds the failure envelope for err.
func Failure(err error) Result {
	return Result{Success: false, Error: err.Error(), Code: ErrorCode(err)}
}

// labeledData puts the labeled record under extracted_data.
func labeledData(rec parser.LabeledIDRecord) parser.LabeledIDEnvelope {
	return parser.LabeledIDEnvelope{ExtractedData: rec}
}
