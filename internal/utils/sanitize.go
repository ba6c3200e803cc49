package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	triggerTypePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	uuidPattern        = regexp.MustCompile(`^[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}$`)
	liveAlertIDPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*__[^\s/]+$`)
)

// ValidateTriggerType validates that a trigger type key is snake_case
func ValidateTriggerType(name string) error {
	if name == "" {
		return fmt.Errorf("trigger type is required")
	}
	if len(name) > 64 {
		return fmt.Errorf("trigger type too long (max 64 characters)")
	}
	if !triggerTypePattern.MatchString(name) {
		return fmt.Errorf("trigger type must be snake_case (lowercase letters, numbers, and underscores only, starting with a letter)")
	}
	return nil
}

// ValidateInstanceID validates that an alert instance id is a UUID
func ValidateInstanceID(id string) error {
	if id == "" {
		return fmt.Errorf("alert id is required")
	}
	if !uuidPattern.MatchString(strings.ToLower(id)) {
		return fmt.Errorf("invalid UUID format")
	}
	return nil
}

// ValidateLiveAlertID validates a live alert id of the form type__subject
func ValidateLiveAlertID(id string) error {
	if id == "" {
		return fmt.Errorf("live alert id is required")
	}
	if len(id) > 200 {
		return fmt.Errorf("live alert id too long (max 200 characters)")
	}
	if !liveAlertIDPattern.MatchString(id) {
		return fmt.Errorf("live alert id must look like <trigger_type>__<subject>")
	}
	return nil
}

// EscapeForLogging escapes untrusted content for safe logging
func EscapeForLogging(text string, maxLen int) string {
	if len(text) > maxLen {
		text = text[:maxLen] + "..."
	}

	text = strings.ReplaceAll(text, "\n", "\\n")
	text = strings.ReplaceAll(text, "\r", "\\r")
	text = strings.ReplaceAll(text, "\t", "\\t")

	return text
}
