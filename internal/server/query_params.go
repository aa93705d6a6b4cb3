package server

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

const dateOnlyLayout = "2006-01-02"

var errInvalidID = newValidationError("id", "invalid_id", "invalid id")

// pathID reads a snowflake path parameter.
func pathID(c *gin.Context, name string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param(name)))
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

func parseOptionalBool(value string) (*bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseOptionalInt(value string) (*int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseOptionalSnowflakeID(value string) (*snowflake.ID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := snowflake.ParseString(trimmed)
	if err != nil || parsed <= 0 {
		return nil, errors.New("invalid_snowflake_id")
	}
	return &parsed, nil
}

func parseOptionalSnowflakeIDs(values []string) ([]snowflake.ID, error) {
	ids := make([]snowflake.ID, 0, len(values))
	for _, value := range values {
		id, err := parseOptionalSnowflakeID(value)
		if err != nil {
			return nil, err
		}
		if id != nil {
			ids = append(ids, *id)
		}
	}
	return ids, nil
}

// parseOptionalTime accepts RFC3339 or a plain date. Dates resolve to
// the start of the day unless endOfDay is set.
func parseOptionalTime(value string, endOfDay bool) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return &parsed, nil
	}
	if parsed, err := time.Parse(dateOnlyLayout, trimmed); err == nil {
		if endOfDay {
			parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
		}
		return &parsed, nil
	}
	return nil, errors.New("invalid_time")
}

// parseDate is parseOptionalTime for body fields, reporting the field name.
func parseDate(field, value string) (*time.Time, error) {
	parsed, err := parseOptionalTime(value, false)
	if err != nil {
		return nil, newValidationError(field, "invalid_"+field, "invalid "+field)
	}
	return parsed, nil
}

func derefDate(value *time.Time) time.Time {
	if value == nil {
		return time.Time{}
	}
	return *value
}

// bodyID parses an id sent in a JSON body. Empty means absent.
func bodyID(field, value string) (*snowflake.ID, error) {
	id, err := parseOptionalSnowflakeID(value)
	if err != nil {
		return nil, newValidationError(field, "invalid_"+field, "invalid "+field)
	}
	return id, nil
}

func requiredBodyID(field, value string) (snowflake.ID, error) {
	id, err := bodyID(field, value)
	if err != nil {
		return 0, err
	}
	if id == nil {
		return 0, newValidationError(field, "invalid_"+field, field+" is required")
	}
	return *id, nil
}

func bodyIDs(field string, values []string) ([]snowflake.ID, error) {
	ids, err := parseOptionalSnowflakeIDs(values)
	if err != nil {
		return nil, newValidationError(field, "invalid_"+field, "invalid "+field)
	}
	return ids, nil
}

func requiredBodyIDPtr(field, value string) (*snowflake.ID, error) {
	id, err := requiredBodyID(field, value)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
