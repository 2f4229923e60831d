package validation

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/veranemoloko/vidbatch/internal/videoid"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("video_link", validateVideoLink)
}

// Struct validates v against its `validate` struct tags.
func Struct(v any) error {
	return validate.Struct(v)
}

// VideoIDs returns the identifiers of the links that point at a video,
// in input order. Every link without one is skipped and reported in skipped.
func VideoIDs(links []string) (ids []videoid.ID, skipped []error) {
	for _, link := range links {
		if err := ValidateVideoLink(link); err != nil {
			skipped = append(skipped, err)
			continue
		}
		id, _ := videoid.Extract(link)
		ids = append(ids, id)
	}
	return ids, skipped
}

// ValidateVideoLink reports why link does not point at a video, if it doesn't.
func ValidateVideoLink(link string) error {
	if err := validate.Var(link, "required,video_link"); err != nil {
		return fmt.Errorf("invalid video link %q: %w", link, err)
	}
	return nil
}

func validateVideoLink(fl validator.FieldLevel) bool {
	_, ok := videoid.Extract(fl.Field().String())
	return ok
}
