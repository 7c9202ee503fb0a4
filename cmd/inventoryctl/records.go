package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"inventorycore/internal/core"
	"inventorycore/pkg/domain"
)

// errBlocked is returned after validation issues were printed.
var errBlocked = errors.New("record has blocking issues")

func parseType(s string) (domain.EntityType, error) {
	switch t := domain.EntityType(s); t {
	case domain.EntityCollection, domain.EntityItem, domain.EntityConfig, domain.EntityDBSharing:
		return t, nil
	default:
		return "", fmt.Errorf("unknown record type %q", s)
	}
}

func newEntityCommand(opts *rootOptions, kind string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   kind,
		Short: "Manage " + kind + " records",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "save [file]",
		Short: "Normalize, validate and save a " + kind + " read as JSON",
		Long: `Reads one JSON object from the file argument or standard input. Include
"id" and "rev" to update an existing record.`,
		Example: `  inventoryctl ` + kind + ` save ` + kind + `.json
  echo '{"name":"Tools"}' | inventoryctl ` + kind + ` save`,
		Args: cobra.MaximumNArgs(1),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			e, err := readRecord(cmd, domain.EntityType(kind), args)
			if err != nil {
				return err
			}
			saved, err := a.svc.Save(ctx, e)
			if err != nil {
				return describeError(cmd, err)
			}
			return writeRecord(cmd.OutOrStdout(), saved)
		}),
	})
	return cmd
}

func newGetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <type> <id>",
		Short: "Print one record",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			t, err := parseType(args[0])
			if err != nil {
				return err
			}
			e, err := a.svc.Get(ctx, t, args[1])
			if err != nil {
				return err
			}
			return writeRecord(cmd.OutOrStdout(), e)
		}),
	}
}

func newListCommand(opts *rootOptions) *cobra.Command {
	var (
		where []string
		sorts []string
		skip  int
		limit int
		count bool
	)
	cmd := &cobra.Command{
		Use:   "list <type>",
		Short: "List live records",
		Example: `  inventoryctl list item --where collection_id=abc --sort name --limit 20
  inventoryctl list collection --count`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			t, err := parseType(args[0])
			if err != nil {
				return err
			}
			cond, err := parseWhere(where)
			if err != nil {
				return err
			}
			if count {
				n, err := a.svc.Count(ctx, t, cond)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
				return err
			}
			records, err := a.svc.List(ctx, t, cond, core.QueryOptions{Skip: skip, Limit: limit, Sort: parseSort(sorts)})
			if err != nil {
				return err
			}
			out := make([]map[string]any, 0, len(records))
			for _, e := range records {
				m, err := recordMap(e)
				if err != nil {
					return err
				}
				out = append(out, m)
			}
			return writeJSON(cmd.OutOrStdout(), out)
		}),
	}
	cmd.Flags().StringArrayVar(&where, "where", nil, "field=value equality filter, or field? / !field for presence")
	cmd.Flags().StringArrayVar(&sorts, "sort", nil, "sort field, suffix :desc for descending")
	cmd.Flags().IntVar(&skip, "skip", 0, "records to skip")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum records to return")
	cmd.Flags().BoolVar(&count, "count", false, "print the number of matching records")
	return cmd
}

func newDeleteCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <type> <id>",
		Short: "Soft-delete a record",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			t, err := parseType(args[0])
			if err != nil {
				return err
			}
			deleted, err := a.svc.Delete(ctx, t, args[1])
			if err != nil {
				return describeError(cmd, err)
			}
			return writeRecord(cmd.OutOrStdout(), deleted)
		}),
	}
}

func newValidateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <type> [file]",
		Short: "Normalize and validate a record without saving it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withApp(opts, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			t, err := parseType(args[0])
			if err != nil {
				return err
			}
			e, err := readRecord(cmd, t, args[1:])
			if err != nil {
				return err
			}
			normalized, issues, err := a.svc.Validate(ctx, e)
			if err != nil {
				return err
			}
			m, err := recordMap(normalized)
			if err != nil {
				return err
			}
			if issues == nil {
				issues = []domain.Issue{}
			}
			if err := writeJSON(cmd.OutOrStdout(), map[string]any{"record": m, "issues": issues}); err != nil {
				return err
			}
			if len(issues) > 0 {
				return errBlocked
			}
			return nil
		}),
	}
}

// describeError prints validation issues the way the UI shows them.
func describeError(cmd *cobra.Command, err error) error {
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	msg := core.GetValidationResultMessage(verr.Issues, core.MessageOptions{Bullet: "-", JoinWith: "\n"})
	fmt.Fprintln(cmd.ErrOrStderr(), msg)
	return errBlocked
}

func readRecord(cmd *cobra.Command, t domain.EntityType, args []string) (domain.Entity, error) {
	var (
		data []byte
		err  error
	)
	if len(args) > 0 && args[0] != "-" {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	return decodeRecord(t, data)
}

// decodeRecord reads the record fields plus the "id" and "rev" envelope keys.
func decodeRecord(t domain.EntityType, data []byte) (domain.Entity, error) {
	var envelope struct {
		ID  string `json:"id"`
		Rev string `json:"rev"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode %s: %w", t, err)
	}
	var (
		e   domain.Entity
		err error
	)
	switch t {
	case domain.EntityCollection:
		var c domain.Collection
		err = json.Unmarshal(data, &c)
		e = c
	case domain.EntityItem:
		var i domain.Item
		err = json.Unmarshal(data, &i)
		e = i
	case domain.EntityConfig:
		var c domain.Config
		err = json.Unmarshal(data, &c)
		e = c
	case domain.EntityDBSharing:
		var s domain.DBSharing
		err = json.Unmarshal(data, &s)
		e = s
	default:
		return nil, fmt.Errorf("unknown record type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", t, err)
	}
	meta := e.Metadata()
	meta.ID, meta.Rev = envelope.ID, envelope.Rev
	return e.WithMetadata(meta), nil
}

func recordMap(e domain.Entity) (map[string]any, error) {
	meta := e.Metadata()
	m := map[string]any{}
	if meta.Invalid {
		for k, v := range meta.Raw {
			m[k] = v
		}
		m["errors"] = meta.Errors
	} else {
		b, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, err
		}
	}
	m["id"] = meta.ID
	m["rev"] = meta.Rev
	if meta.Deleted {
		m["deleted"] = true
	}
	if !meta.UpdatedAt.IsZero() {
		m["updated_at"] = meta.UpdatedAt
	}
	return m, nil
}

func writeRecord(w io.Writer, e domain.Entity) error {
	m, err := recordMap(e)
	if err != nil {
		return err
	}
	return writeJSON(w, m)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseWhere(exprs []string) (domain.Conditions, error) {
	if len(exprs) == 0 {
		return domain.Conditions{}, nil
	}
	preds := make(map[string]domain.Predicate, len(exprs))
	for _, expr := range exprs {
		switch {
		case strings.HasPrefix(expr, "!"):
			preds[strings.TrimPrefix(expr, "!")] = domain.Exists(false)
		case strings.HasSuffix(expr, "?"):
			preds[strings.TrimSuffix(expr, "?")] = domain.Exists(true)
		default:
			field, value, ok := strings.Cut(expr, "=")
			if !ok || field == "" {
				return domain.Conditions{}, fmt.Errorf("invalid filter %q, want field=value", expr)
			}
			preds[field] = domain.Eq(parseLiteral(value))
		}
	}
	return domain.Where(preds), nil
}

// parseLiteral reads a filter value as a JSON number, bool or quoted string
// and falls back to the raw text.
func parseLiteral(value string) any {
	var v any
	if err := json.Unmarshal([]byte(value), &v); err != nil {
		return value
	}
	switch v.(type) {
	case bool, float64, string:
		return v
	}
	return value
}

func parseSort(specs []string) []domain.SortField {
	var out []domain.SortField
	for _, spec := range specs {
		field, dir, _ := strings.Cut(spec, ":")
		out = append(out, domain.SortField{Field: field, Desc: strings.EqualFold(dir, "desc")})
	}
	return out
}
