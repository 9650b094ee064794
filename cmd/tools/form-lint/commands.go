// cmd/tools/form-lint/commands.go
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"appcc-workers/internal/forms"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// CHECK COMMAND - template structure validation
// =============================================================================

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <template.json|yaml>...",
		Short: "Parse control templates and report structure errors",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0

			for _, path := range args {
				structure, err := loadStructure(path)
				if err != nil {
					failed++
					fmt.Fprintf(out, "FAIL %s\n", path)
					for _, line := range describeError(err) {
						fmt.Fprintf(out, "  - %s\n", line)
					}
					continue
				}
				fmt.Fprintf(out, "ok   %s (%d sections, %d fields)\n", path, len(structure.Sections), len(structure.Fields()))
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d templates are invalid", failed, len(args))
			}
			return nil
		},
	}
}

// =============================================================================
// TYPES COMMAND - supported field types
// =============================================================================

func newTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the field types a template may use",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, t := range forms.FieldTypes() {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
		},
	}
}

// =============================================================================
// VALIDATE COMMAND - values against a template
// =============================================================================

func newValidateCmd() *cobra.Command {
	var (
		templatePath string
		valuesPath   string
		signed       bool
	)

	cmd := &cobra.Command{
		Use:   "validate --template t.json --values v.yaml [--signed]",
		Short: "Validate sample values against a template and print the error map",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			structure, err := loadStructure(templatePath)
			if err != nil {
				return err
			}
			values, err := loadValues(valuesPath)
			if err != nil {
				return err
			}

			result := forms.Validate(structure, values, signed, false)
			out := cmd.OutOrStdout()
			if result.Valid {
				fmt.Fprintln(out, "valid")
				return nil
			}

			keys := make([]string, 0, len(result.Errors))
			for k := range result.Errors {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "%s: %s\n", k, result.Errors[k])
			}
			return fmt.Errorf("%d field errors", len(result.Errors))
		},
	}

	cmd.Flags().StringVar(&templatePath, "template", "", "template or form structure file (json or yaml)")
	cmd.Flags().StringVar(&valuesPath, "values", "", "captured values file (json or yaml)")
	cmd.Flags().BoolVar(&signed, "signed", false, "treat the control as signed")
	_ = cmd.MarkFlagRequired("template")
	_ = cmd.MarkFlagRequired("values")
	return cmd
}

// =============================================================================
// FILE LOADING
// =============================================================================

// loadStructure reads either a bare form structure or a template object
// carrying it under "formStructure".
func loadStructure(path string) (*forms.FormStructure, error) {
	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}

	obj, ok := doc.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%s: expected an object at the top level", path)
	}
	if embedded, ok := obj["formStructure"]; ok {
		if s, ok := embedded.(string); ok {
			return forms.ParseStructure(s)
		}
		raw, err := json.Marshal(embedded)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return forms.ParseStructure(string(raw))
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return forms.ParseStructure(string(raw))
}

func loadValues(path string) (forms.Values, error) {
	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return forms.Values{}, nil
	}
	obj, ok := doc.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%s: values must be an object", path)
	}
	return forms.Values(obj), nil
}

func readDocument(path string) (interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var doc interface{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return doc, nil
}

func describeError(err error) []string {
	var schemaErr *forms.SchemaError
	if !errors.As(err, &schemaErr) || len(schemaErr.Problems) == 0 {
		return []string{err.Error()}
	}
	return schemaErr.Problems
}
