package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/joshu-sajeev/delayedjobs/common"
)

var validate = validator.New()

// Bind decodes the JSON body into dest and validates it.
func Bind[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		c.Error(common.Errf(http.StatusBadRequest, "invalid json: %v", err.Error()))
		return false
	}

	return check(c, dest)
}

// BindOptional is Bind for endpoints whose body may be omitted.
func BindOptional[T any](c *gin.Context, dest *T) bool {
	if c.Request.ContentLength == 0 {
		return check(c, dest)
	}
	return Bind(c, dest)
}

// BindQuery binds the query string into dest using its form tags.
func BindQuery[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindQuery(dest); err != nil {
		c.Error(common.Errf(http.StatusBadRequest, "invalid query: %v", err.Error()))
		return false
	}

	return check(c, dest)
}

func check[T any](c *gin.Context, dest *T) bool {
	if err := validate.Struct(dest); err != nil {
		c.Error(common.APIError{
			Status:  http.StatusBadRequest,
			Message: "validation failed",
			Fields:  FormatValidationErrors(err),
		})
		return false
	}

	return true
}

func FormatValidationErrors(err error) map[string]any {
	errors := map[string]any{}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		errors["_"] = err.Error()
		return errors
	}
	for _, e := range verrs {
		errors[e.Field()] = "failed " + e.Tag()
	}
	return errors
}
