package calls

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"telbill/internal/pipeline"
)

const msgBadTimestamp = "Datetime has wrong format. Use one of these formats instead: YYYY-MM-DDThh:mm:ss[.uuuuuu][+HH:MM|-HH:MM|Z]."

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("timestamp", func(fl validator.FieldLevel) bool {
		_, err := ParseTimestamp(fl.Field().String())
		return err == nil
	})
	return v
}

// Payload reads the top-level fields of a JSON object message. It only
// separates a missing key from a null or mistyped one, which struct tags
// cannot see; the rules themselves live on the input struct passed to Check.
type Payload struct {
	raw      map[string]json.RawMessage
	present  map[string]bool
	nullable bool
	verr     *pipeline.ValidationError
}

// DecodePayload fails with a non_field_errors entry carrying notObject when
// the message is not a JSON object. A nullable payload treats null fields
// as missing.
func DecodePayload(message, notObject string, nullable bool) (*Payload, *pipeline.ValidationError) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(message), &raw); err != nil || raw == nil {
		verr := pipeline.NewValidationError()
		verr.Add("non_field_errors", notObject)
		return nil, verr
	}
	return &Payload{
		raw:      raw,
		present:  make(map[string]bool),
		nullable: nullable,
		verr:     pipeline.NewValidationError(),
	}, nil
}

func (p *Payload) value(field string) (json.RawMessage, bool) {
	v, ok := p.raw[field]
	if !ok {
		return nil, false
	}
	v = bytes.TrimSpace(v)
	if bytes.Equal(v, []byte("null")) {
		if !p.nullable {
			p.verr.Add(field, msgNotNull)
		}
		return nil, false
	}
	p.present[field] = true
	return v, true
}

// String returns the trimmed text of field, or "" when it is absent, null or
// not a string.
func (p *Payload) String(field string) string {
	v, ok := p.value(field)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		p.verr.Add(field, msgInvalidString)
		return ""
	}
	return strings.TrimSpace(s)
}

// CallID accepts a string or a number and returns it as text.
func (p *Payload) CallID() string {
	v, ok := p.value("call_id")
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String()
	}
	p.verr.Add("call_id", msgInvalidCallID)
	return ""
}

// Check runs the validate tags of input and returns every problem found, or
// nil. Fields already rejected while reading are not reported twice.
func (p *Payload) Check(input any) *pipeline.ValidationError {
	var errs validator.ValidationErrors
	if err := validate.Struct(input); errors.As(err, &errs) {
		for _, fe := range errs {
			field := fe.Field()
			if _, seen := p.verr.Fields[field]; seen {
				continue
			}
			p.verr.Add(field, p.message(fe))
		}
	}
	if p.verr.Empty() {
		return nil
	}
	return p.verr
}

func (p *Payload) message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		if p.present[fe.Field()] {
			return msgBlank
		}
		return msgRequired
	case "oneof":
		return fmt.Sprintf("%q is not a valid choice.", fe.Value())
	case "timestamp":
		return msgBadTimestamp
	default:
		return fmt.Sprintf("Failed on the %s rule.", fe.Tag())
	}
}
