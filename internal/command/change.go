package command

import (
	"encoding/json"
	"strings"

	"github.com/opendogma/dogma/common"
)

// Change is the tagged union over a single file-path mutation (spec.md
// §3 Change). Every variant's path must satisfy common.ValidatePath.
type Change interface {
	ChangeType() string
	ChangePath() string
}

type UpsertJSON struct {
	Path    string          `json:"path"`
	Content json.RawMessage `json:"content"`
}

func (c *UpsertJSON) ChangeType() string { return "UPSERT_JSON" }
func (c *UpsertJSON) ChangePath() string { return c.Path }

type UpsertYAML struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (c *UpsertYAML) ChangeType() string { return "UPSERT_YAML" }
func (c *UpsertYAML) ChangePath() string { return c.Path }

// UpsertText carries newline-sanitized text: CRLF is normalized to LF and
// a trailing newline is enforced by Sanitize before the change is applied.
type UpsertText struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (c *UpsertText) ChangeType() string { return "UPSERT_TEXT" }
func (c *UpsertText) ChangePath() string { return c.Path }

// Sanitize normalizes line endings and enforces a trailing newline,
// per the UpsertText invariant in spec.md §3.
func (c *UpsertText) Sanitize() {
	s := strings.ReplaceAll(c.Content, "\r\n", "\n")
	if s != "" && s[len(s)-1] != '\n' {
		s += "\n"
	}

	c.Content = s
}

// Remove addresses a regular file or a directory (recursive removal).
type Remove struct {
	Path string `json:"path"`
}

func (c *Remove) ChangeType() string { return "REMOVE" }
func (c *Remove) ChangePath() string { return c.Path }

// Rename moves a file or directory; the target must not already exist.
type Rename struct {
	Path    string `json:"path"`
	NewPath string `json:"newPath"`
}

func (c *Rename) ChangeType() string { return "RENAME" }
func (c *Rename) ChangePath() string { return c.Path }

type ApplyJSONPatch struct {
	Path  string          `json:"path"`
	Patch json.RawMessage `json:"patch"`
}

func (c *ApplyJSONPatch) ChangeType() string { return "APPLY_JSON_PATCH" }
func (c *ApplyJSONPatch) ChangePath() string { return c.Path }

// ApplyTextPatch carries a unified diff applied against the current
// content of Path.
type ApplyTextPatch struct {
	Path        string `json:"path"`
	UnifiedDiff string `json:"unifiedDiff"`
}

func (c *ApplyTextPatch) ChangeType() string { return "APPLY_TEXT_PATCH" }
func (c *ApplyTextPatch) ChangePath() string { return c.Path }

// ValidateChange enforces the path invariant shared by every variant.
func ValidateChange(c Change) error {
	if err := common.ValidatePath(c.ChangePath()); err != nil {
		return err
	}

	if r, ok := c.(*Rename); ok {
		return common.ValidatePath(r.NewPath)
	}

	return nil
}
