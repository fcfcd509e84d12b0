// Package ageparams owns the validated editing controls and the deterministic
// instruction string rendered from them.
package ageparams

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// HairColor values accepted from clients.
const (
	HairPreserve = "preserve"
	HairBlack    = "black"
	HairBrown    = "brown"
	HairBlonde   = "blonde"
	HairRed      = "red"
	HairGray     = "gray"
	HairWhite    = "white"
)

// Glasses values accepted from clients.
const (
	GlassesPreserve = "preserve"
	GlassesAdd      = "add"
	GlassesRemove   = "remove"
)

// Quality values accepted from clients.
const (
	QualityLow    = "low"
	QualityMedium = "medium"
	QualityHigh   = "high"
)

// AgeParams is the fully validated set of editing controls. Every field was
// range-checked; there is no partial acceptance and no defaulting.
type AgeParams struct {
	AgeDelta         int     `json:"age_delta"`
	Intensity        float64 `json:"intensity"`
	HairColor        string  `json:"hair_color"`
	Glasses          string  `json:"glasses"`
	Baldness         float64 `json:"baldness"`
	BlemishFix       float64 `json:"blemish_fix"`
	SkinTexture      float64 `json:"skin_texture"`
	Quality          string  `json:"quality"`
	PreserveIdentity bool    `json:"preserve_identity"`
}

// rawParams is the decode target. Pointer fields make a missing member
// distinguishable from a zero value, and JSON type errors (numeric strings,
// non-boolean booleans) surface before validation runs.
type rawParams struct {
	AgeDelta         *float64 `json:"age_delta" validate:"required,gte=-40,lte=40,whole"`
	Intensity        *float64 `json:"intensity" validate:"required,gte=0,lte=1"`
	HairColor        *string  `json:"hair_color" validate:"required,oneof=preserve black brown blonde red gray white"`
	Glasses          *string  `json:"glasses" validate:"required,oneof=preserve add remove"`
	Baldness         *float64 `json:"baldness" validate:"required,gte=0,lte=100"`
	BlemishFix       *float64 `json:"blemish_fix" validate:"required,gte=0,lte=100"`
	SkinTexture      *float64 `json:"skin_texture" validate:"required,gte=-100,lte=100"`
	Quality          *string  `json:"quality" validate:"required,oneof=low medium high"`
	PreserveIdentity *bool    `json:"preserve_identity" validate:"required"`
}

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("whole", validateWhole)
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateWhole(fl validator.FieldLevel) bool {
	v := fl.Field().Float()
	return v == math.Trunc(v)
}

// Parse validates an arbitrary JSON value against the AgeParams contract.
// The error names the offending field; the whole object is rejected on the
// first failure.
func Parse(raw []byte) (*AgeParams, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, errors.New("params must be valid JSON")
	}
	if trimmed[0] != '{' {
		return nil, errors.New("params must be a JSON object")
	}

	var rp rawParams
	if err := json.Unmarshal(raw, &rp); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			if typeErr.Field == "" {
				return nil, errors.New("params must be a JSON object")
			}
			return nil, fmt.Errorf("%s must be a %s", typeErr.Field, expectedKind(typeErr.Type))
		}
		return nil, errors.New("params must be valid JSON")
	}

	if err := validate.Struct(&rp); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return nil, errors.New(describeFailure(fieldErrs[0]))
		}
		return nil, err
	}

	return &AgeParams{
		AgeDelta:         int(*rp.AgeDelta),
		Intensity:        *rp.Intensity,
		HairColor:        *rp.HairColor,
		Glasses:          *rp.Glasses,
		Baldness:         *rp.Baldness,
		BlemishFix:       *rp.BlemishFix,
		SkinTexture:      *rp.SkinTexture,
		Quality:          *rp.Quality,
		PreserveIdentity: *rp.PreserveIdentity,
	}, nil
}

func expectedKind(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.String:
		return "string"
	default:
		return t.Kind().String()
	}
}

func describeFailure(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "whole":
		return field + " must be a whole number"
	case "oneof":
		return field + " is invalid"
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return field + " is invalid"
	}
}
