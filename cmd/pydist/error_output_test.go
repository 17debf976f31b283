package main

import (
	stderrors "errors"
	"strings"
	"testing"

	coreerrors "github.com/pydist/pydist/core/errors"
)

func TestMarshalOutputWithErrorEnvelope(t *testing.T) {
	payload := map[string]any{
		"ok":    false,
		"error": "boom",
	}
	encoded, err := marshalOutputWithErrorEnvelope(payload, exitInvalidInput)
	if err != nil {
		t.Fatalf("marshalOutputWithErrorEnvelope error: %v", err)
	}
	result := string(encoded)
	if !strings.Contains(result, `"error_code":"invalid_input"`) {
		t.Fatalf("missing error_code in output: %s", result)
	}
	if !strings.Contains(result, `"error_category":"invalid_input"`) {
		t.Fatalf("missing error_category in output: %s", result)
	}
	if !strings.Contains(result, `"hint":"check command usage and input documents"`) {
		t.Fatalf("missing hint in output: %s", result)
	}
}

func TestMarshalOutputKeepsExplicitFields(t *testing.T) {
	payload := map[string]any{
		"ok":             false,
		"error":          "drift detected",
		"error_code":     "native_config_drift",
		"error_category": "config_drift",
		"hint":           "reconcile the catalog",
	}
	encoded, err := marshalOutputWithErrorEnvelope(payload, exitVerifyFailed)
	if err != nil {
		t.Fatalf("marshalOutputWithErrorEnvelope error: %v", err)
	}
	result := string(encoded)
	if !strings.Contains(result, `"error_code":"native_config_drift"`) {
		t.Fatalf("explicit error_code overwritten: %s", result)
	}
	if !strings.Contains(result, `"error_category":"config_drift"`) {
		t.Fatalf("explicit error_category overwritten: %s", result)
	}
}

func TestMarshalOutputSuccessLeavesEnvelopeEmpty(t *testing.T) {
	encoded, err := marshalOutputWithErrorEnvelope(map[string]any{"ok": true}, exitOK)
	if err != nil {
		t.Fatalf("marshalOutputWithErrorEnvelope error: %v", err)
	}
	if strings.Contains(string(encoded), "error_code") {
		t.Fatalf("success output should not carry envelope fields: %s", encoded)
	}
}

func TestExitCodeForError(t *testing.T) {
	if got := exitCodeForError(stderrors.New("plain"), exitInvalidInput); got != exitInvalidInput {
		t.Fatalf("plain error: expected fallback %d got %d", exitInvalidInput, got)
	}
	if got := exitCodeForError(nil, exitInvalidInput); got != exitOK {
		t.Fatalf("nil error: expected %d got %d", exitOK, got)
	}

	cases := map[coreerrors.Category]int{
		coreerrors.CategoryInvalidInput:       exitInvalidInput,
		coreerrors.CategorySchemaViolation:    exitInvalidInput,
		coreerrors.CategoryConfigDrift:        exitVerifyFailed,
		coreerrors.CategoryMalformedDirective: exitVerifyFailed,
		coreerrors.CategoryUnattributedLink:   exitVerifyFailed,
		coreerrors.CategoryMissingLicense:     exitVerifyFailed,
		coreerrors.CategoryArchiveIntegrity:   exitVerifyFailed,
		coreerrors.CategoryIOFailure:          exitInternalFailure,
		coreerrors.CategoryInternalFailure:    exitInternalFailure,
	}
	for category, expected := range cases {
		err := coreerrors.Wrap(stderrors.New("boom"), category, "code", "")
		if got := exitCodeForError(err, exitOK); got != expected {
			t.Fatalf("category %s: expected %d got %d", category, expected, got)
		}
	}
}
