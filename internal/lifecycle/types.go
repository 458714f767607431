package lifecycle

import "fmt"

// Settings carries the process configuration the manager needs. There is no
// hidden global state; the working directory always arrives through here.
type Settings struct {
	// WorkingDir is where canonical configuration files live, one file per
	// saved configuration.
	WorkingDir string
}

// FileError reports a filesystem side effect that failed after the relational
// write already succeeded or was rolled back. Callers should treat it as a
// consistency warning, not a validation problem.
type FileError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// placeholderDatasource stands in for real datasources when validating a
// draft, so the parent record can exist before its children are attached.
// It never reaches the canonical file: saving requires real children.
var placeholderDatasource = map[string]any{
	"name":                 "pending",
	"portal_datasource_id": "pending",
	"description":          "placeholder until datasources are attached",
	"primary_entity":       "pending",
}
