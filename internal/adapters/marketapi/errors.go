package marketapi

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/athebyme/gomarket-platform/internal/domain/models"
)

// ErrorDetail элемент списка ошибок в ответе маркетплейса
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIError ошибка, возвращенная маркетплейсом
type APIError struct {
	Status int
	Errors []ErrorDetail
	Body   string
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("marketplace api error %d: %s", e.Status, e.Body)
	}
	parts := make([]string, 0, len(e.Errors))
	for _, d := range e.Errors {
		parts = append(parts, d.Code+": "+d.Message)
	}
	return fmt.Sprintf("marketplace api error %d: %s", e.Status, strings.Join(parts, "; "))
}

var mappingNotFoundRe = regexp.MustCompile(`Unable to find mapping for marketSku: (\d+)`)

// ClassifyError превращает ответ 4xx в ошибку. Сообщения об отсутствии маппинга
// SKU дают *models.MappingNotFoundError со списком затронутых SKU.
func ClassifyError(status int, body []byte) error {
	apiErr := &APIError{Status: status, Body: string(body)}

	var envelope struct {
		Errors []ErrorDetail `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		apiErr.Errors = envelope.Errors
	}

	var skus []string
	seen := make(map[string]bool)
	collect := func(text string) {
		for _, m := range mappingNotFoundRe.FindAllStringSubmatch(text, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				skus = append(skus, m[1])
			}
		}
	}
	if len(apiErr.Errors) > 0 {
		for _, d := range apiErr.Errors {
			collect(d.Message)
		}
	} else {
		collect(apiErr.Body)
	}

	if len(skus) > 0 {
		return &models.MappingNotFoundError{SKUs: skus, Err: apiErr}
	}
	return apiErr
}
