package entries

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MinDescriptionWords is the minimum word count of a task description.
const MinDescriptionWords = 10

// Issue describes a single invalid field.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every invalid field of an entry or patch.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Issues) == 0 {
		return ErrValidation.Error()
	}
	return e.Issues[0].Message
}

// Unwrap lets callers match the error with errors.Is(err, ErrValidation).
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Fields maps field names to messages.
func (e *ValidationError) Fields() map[string]string {
	out := make(map[string]string, len(e.Issues))
	for _, issue := range e.Issues {
		if _, ok := out[issue.Field]; !ok {
			out[issue.Field] = issue.Message
		}
	}
	return out
}

// Validator checks entries before they reach the queue or the store.
type Validator struct {
	validate *validator.Validate
}

// NewValidator constructs a Validator with the journal specific rules.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("minwords", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return WordCount(fl.Field().String()) >= limit
	})
	return &Validator{validate: v}
}

// WordCount counts whitespace separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Entry validates a full entry.
func (v *Validator) Entry(e Entry) error {
	err := v.validate.Struct(e)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("entries: validate: %w", err)
	}
	issues := make([]Issue, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		issues = append(issues, issueFor(fe.Field(), fe.Tag(), fe.Value()))
	}
	return &ValidationError{Issues: issues}
}

// Patch validates only the fields present in p.
func (v *Validator) Patch(p Patch) error {
	var issues []Issue
	check := func(field string, value any, tags string) {
		if err := v.validate.Var(value, tags); err != nil {
			var fieldErrs validator.ValidationErrors
			if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
				issues = append(issues, issueFor(field, fieldErrs[0].Tag(), value))
				return
			}
			issues = append(issues, Issue{Field: field, Message: err.Error()})
		}
	}
	if p.WeekOfJournal != nil {
		check("weekOfJournal", *p.WeekOfJournal, "gte=1")
	}
	if p.JournalName != nil {
		check("journalName", *p.JournalName, "notblank")
	}
	if p.JournalDate != nil {
		check("journalDate", *p.JournalDate, "notblank,datetime=2006-01-02")
	}
	if p.TaskName != nil {
		check("taskName", *p.TaskName, "notblank")
	}
	if p.TaskDescription != nil {
		check("taskDescription", *p.TaskDescription, "notblank,minwords=10")
	}
	if p.Technologies != nil {
		check("technologies", []string(p.Technologies), "min=1,dive,notblank")
	}
	if len(issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: issues}
}

func issueFor(field, tag string, value any) Issue {
	// dive errors are reported as technologies[0]
	if strings.HasPrefix(field, "technologies[") || (field == "technologies" && tag == "notblank") {
		return Issue{Field: "technologies", Message: "technologies must not contain blank names"}
	}
	switch {
	case field == "weekOfJournal":
		if tag == "required" {
			return Issue{Field: field, Message: "Missing required field: weekOfJournal"}
		}
		return Issue{Field: field, Message: "weekOfJournal must be a positive integer"}
	case field == "technologies":
		return Issue{Field: field, Message: "technologies must be a non-empty array"}
	case tag == "minwords":
		text, _ := value.(string)
		return Issue{Field: field, Message: fmt.Sprintf("Description must have at least %d words (has %d)", MinDescriptionWords, WordCount(text))}
	case tag == "datetime":
		return Issue{Field: field, Message: "journalDate must be a date formatted as YYYY-MM-DD"}
	default:
		return Issue{Field: field, Message: "Missing required field: " + field}
	}
}
