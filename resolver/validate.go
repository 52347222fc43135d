package resolver

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/rushteam/shoprec/core"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator 返回全局 validator（缓存结构体信息，并发安全）。
// 字段名使用 json tag，错误信息与 API 参数名一致。
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		validate.RegisterStructValidation(requestStructLevel, core.RecommendationRequest{})
	})
	return validate
}

// requestStructLevel 是跨字段校验：PRODUCT 主体只支持 ITEM_BASED / TRENDING。
func requestStructLevel(sl validator.StructLevel) {
	req, ok := sl.Current().Interface().(core.RecommendationRequest)
	if !ok {
		return
	}
	if req.SubjectType == core.SubjectProduct &&
		req.Strategy != core.StrategyItemBased && req.Strategy != core.StrategyTrending {
		sl.ReportError(req.Strategy, "strategy", "Strategy", "product_strategy", string(req.Strategy))
	}
	if strings.TrimSpace(req.SubjectID) == "" && req.SubjectID != "" {
		sl.ReportError(req.SubjectID, "subject_id", "SubjectID", "required", "")
	}
}

var messageTemplates = map[string]string{
	"required":         "%s is required",
	"oneof":            "%s must be one of: %s",
	"min":              "%s must be at least %s",
	"product_strategy": "%s %s is not supported for PRODUCT subjects",
}

// Validate 校验已补全默认值的请求，失败返回 INVALID_INPUT。
func Validate(req *core.RecommendationRequest) error {
	if req == nil {
		return core.NewDomainError(core.ModuleResolver, core.ErrorCodeInvalidInput, "resolver: request is nil")
	}
	err := getValidator().Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return core.WrapDomainError(core.ModuleResolver, core.ErrorCodeInvalidInput, "resolver: invalid request", err)
	}
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, translate(fe))
	}
	return core.WrapDomainError(core.ModuleResolver, core.ErrorCodeInvalidInput,
		"resolver: invalid request: "+strings.Join(messages, "; "), err)
}

func translate(fe validator.FieldError) string {
	tmpl, ok := messageTemplates[fe.Tag()]
	if !ok {
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
	if strings.Count(tmpl, "%s") == 1 {
		return fmt.Sprintf(tmpl, fe.Field())
	}
	return fmt.Sprintf(tmpl, fe.Field(), fe.Param())
}

// normalize 补全默认值：strategy 为空时 USER 默认 HYBRID，PRODUCT 默认 ITEM_BASED；
// limit 为 0 时取 core.DefaultLimit。返回副本，不修改调用方的请求。
func normalize(req *core.RecommendationRequest, defaultLimit int) *core.RecommendationRequest {
	if req == nil {
		return nil
	}
	out := *req
	out.CategoryFilter = append([]string(nil), req.CategoryFilter...)
	out.SubjectType = core.SubjectType(strings.ToUpper(string(out.SubjectType)))
	out.Strategy = core.Strategy(strings.ToUpper(string(out.Strategy)))
	if out.Strategy == "" {
		switch out.SubjectType {
		case core.SubjectProduct:
			out.Strategy = core.StrategyItemBased
		default:
			out.Strategy = core.StrategyHybrid
		}
	}
	if out.Limit == 0 {
		out.Limit = defaultLimit
	}
	return &out
}
