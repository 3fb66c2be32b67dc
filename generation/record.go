package generation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/csakilan/FoundryBackend/errors"
)

// Record is one persisted generation: the rendered provisioning
// document submitted for a deployment plus the metadata around it.
type Record struct {
	// Identity
	ID        string `json:"id"`
	StackName string `json:"stackName"`

	// Version for optimistic concurrency control
	Version int64 `json:"version"`

	// Rendered provisioning document exactly as submitted to the engine
	Document json.RawMessage `json:"document"`

	// Audit
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks if the record is storable
func (r *Record) Validate() error {
	if r.ID == "" {
		return errors.WrapInvalid(fmt.Errorf("record ID cannot be empty"),
			"generation", "Validate", "validation failed")
	}
	// The ID becomes part of a file name
	if strings.ContainsAny(r.ID, `/\`) || strings.Contains(r.ID, "..") {
		return errors.WrapInvalid(fmt.Errorf("record ID %q is not a valid file name", r.ID),
			"generation", "Validate", "validation failed")
	}
	if r.StackName == "" {
		return errors.WrapInvalid(fmt.Errorf("stack name cannot be empty"),
			"generation", "Validate", "validation failed")
	}
	if len(r.Document) == 0 {
		return errors.WrapInvalid(fmt.Errorf("record has no document"),
			"generation", "Validate", "validation failed")
	}
	if !json.Valid(r.Document) {
		return errors.WrapInvalid(fmt.Errorf("document is not valid JSON"),
			"generation", "Validate", "document validation failed")
	}
	return nil
}
