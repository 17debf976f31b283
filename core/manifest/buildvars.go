package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pydist/pydist/core/errors"
	"github.com/pydist/pydist/core/schema/v1/distribution"
)

// LoadBuildVars strict-decodes the build-variables side document the native
// build reports back. Unknown fields are rejected: a misspelled key here
// would silently drop link-flag validation.
func LoadBuildVars(data []byte) (distribution.BuildVars, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	var vars distribution.BuildVars
	if err := decoder.Decode(&vars); err != nil {
		return distribution.BuildVars{}, errors.Wrap(fmt.Errorf("parse build vars: %w", err), errors.CategorySchemaViolation, "build_vars_decode", "the build vars document does not match the expected shape")
	}
	var trailing any
	if err := decoder.Decode(&trailing); err != io.EOF {
		return distribution.BuildVars{}, errors.Wrap(fmt.Errorf("trailing data after build vars document"), errors.CategorySchemaViolation, "build_vars_trailing", "")
	}
	if vars.ObjectFileFormat == "" {
		return distribution.BuildVars{}, errors.Wrap(fmt.Errorf("build vars missing object_file_format"), errors.CategorySchemaViolation, "build_vars_incomplete", "the native build must report the object file format it produced")
	}
	return vars, nil
}

// LoadBuildVarsFile reads and strict-decodes a build-variables document.
func LoadBuildVarsFile(path string) (distribution.BuildVars, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return distribution.BuildVars{}, errors.Wrap(fmt.Errorf("read build vars: %w", err), errors.CategoryIOFailure, "build_vars_read", "check that the build vars path exists")
	}
	return LoadBuildVars(data)
}
